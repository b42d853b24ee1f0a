// internal/database/sqlite_history.go - SQLite probe history backend
package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// Fixed-width UTC timestamps keep lexical and chronological order identical.
const sqliteTimeLayout = "2006-01-02T15:04:05.000000000Z"

// SQLiteHistory stores probe records in an append-only SQLite table.
type SQLiteHistory struct {
	db *sql.DB
}

func NewSQLiteHistory(ctx context.Context, path string) (*SQLiteHistory, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	db, err := sql.Open("sqlite", fmt.Sprintf("%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", path))
	if err != nil {
		return nil, fmt.Errorf("unable to open sqlite database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("unable to ping database: %w", err)
	}

	h := &SQLiteHistory{db: db}
	if err := h.migrate(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	return h, nil
}

func (h *SQLiteHistory) migrate(ctx context.Context) error {
	schema := `
CREATE TABLE IF NOT EXISTS probe_records (
	id               TEXT PRIMARY KEY,
	monitor_id       TEXT NOT NULL,
	probed_at        TEXT NOT NULL,
	completed_at     TEXT NOT NULL,
	duration_seconds REAL,
	response_code    TEXT,
	response_message TEXT,
	response_body    TEXT NOT NULL DEFAULT '',
	body_truncated   INTEGER NOT NULL DEFAULT 0,
	content_length   INTEGER NOT NULL DEFAULT 0,
	content_type     TEXT,
	healthy          INTEGER NOT NULL,
	diagnostics      TEXT NOT NULL DEFAULT '[]',
	error            TEXT
);
CREATE INDEX IF NOT EXISTS idx_probe_records_monitor_probed_at ON probe_records (monitor_id, probed_at DESC);
`
	_, err := h.db.ExecContext(ctx, schema)
	return err
}

func (h *SQLiteHistory) InsertProbeRecord(ctx context.Context, r *ProbeRecord) error {
	if r.ID == "" {
		r.ID = uuid.New().String()
	}
	diags, err := json.Marshal(r.Diagnostics)
	if err != nil {
		return fmt.Errorf("failed to marshal diagnostics: %w", err)
	}

	query := `INSERT INTO probe_records (id, monitor_id, probed_at, completed_at, duration_seconds,
		response_code, response_message, response_body, body_truncated, content_length, content_type,
		healthy, diagnostics, error) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err = h.db.ExecContext(ctx, query,
		r.ID, r.MonitorID,
		r.ProbedAt.UTC().Format(sqliteTimeLayout), r.CompletedAt.UTC().Format(sqliteTimeLayout),
		r.DurationSeconds, r.ResponseCode, r.ResponseMessage, r.ResponseBody, r.BodyTruncated,
		r.ContentLength, r.ContentType, r.Healthy, string(diags), r.Error)
	if err != nil {
		return fmt.Errorf("failed to insert probe record: %w", err)
	}
	return nil
}

func (h *SQLiteHistory) GetProbeHistory(ctx context.Context, filters HistoryFilters) ([]ProbeRecord, error) {
	var (
		args []interface{}
		cond []string
	)
	if filters.MonitorID != "" {
		cond = append(cond, "monitor_id = ?")
		args = append(args, filters.MonitorID)
	}
	if filters.Since != nil {
		cond = append(cond, "probed_at > ?")
		args = append(args, filters.Since.UTC().Format(sqliteTimeLayout))
	}

	qb := strings.Builder{}
	qb.WriteString(`SELECT id, monitor_id, probed_at, completed_at, duration_seconds, response_code,
		response_message, response_body, body_truncated, content_length, content_type, healthy,
		diagnostics, error FROM probe_records`)
	if len(cond) > 0 {
		qb.WriteString(" WHERE " + strings.Join(cond, " AND "))
	}
	qb.WriteString(" ORDER BY probed_at DESC")
	if filters.Limit > 0 {
		qb.WriteString(" LIMIT ?")
		args = append(args, filters.Limit)
	}

	rows, err := h.db.QueryContext(ctx, qb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list probe records: %w", err)
	}
	defer rows.Close()

	var records []ProbeRecord
	for rows.Next() {
		var (
			r                     ProbeRecord
			probedAt, completedAt string
			diags                 string
		)
		if err := rows.Scan(&r.ID, &r.MonitorID, &probedAt, &completedAt, &r.DurationSeconds,
			&r.ResponseCode, &r.ResponseMessage, &r.ResponseBody, &r.BodyTruncated, &r.ContentLength,
			&r.ContentType, &r.Healthy, &diags, &r.Error); err != nil {
			return nil, fmt.Errorf("failed to scan probe record row: %w", err)
		}
		r.ProbedAt, _ = time.Parse(sqliteTimeLayout, probedAt)
		r.CompletedAt, _ = time.Parse(sqliteTimeLayout, completedAt)
		if err := json.Unmarshal([]byte(diags), &r.Diagnostics); err != nil {
			return nil, fmt.Errorf("failed to decode diagnostics for %s: %w", r.ID, err)
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

func (h *SQLiteHistory) DeleteProbeHistoryBefore(ctx context.Context, cutoff time.Time) (int, error) {
	res, err := h.db.ExecContext(ctx, `DELETE FROM probe_records WHERE probed_at < ?`,
		cutoff.UTC().Format(sqliteTimeLayout))
	if err != nil {
		return 0, fmt.Errorf("failed to purge probe records: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

func (h *SQLiteHistory) CountProbeRecords(ctx context.Context) (int, time.Time, time.Time, error) {
	var (
		count          int
		oldest, newest sql.NullString
	)
	err := h.db.QueryRowContext(ctx,
		`SELECT COUNT(*), MIN(probed_at), MAX(probed_at) FROM probe_records`).Scan(&count, &oldest, &newest)
	if err != nil {
		return 0, time.Time{}, time.Time{}, fmt.Errorf("failed to count probe records: %w", err)
	}
	var o, n time.Time
	if oldest.Valid {
		o, _ = time.Parse(sqliteTimeLayout, oldest.String)
	}
	if newest.Valid {
		n, _ = time.Parse(sqliteTimeLayout, newest.String)
	}
	return count, o, n, nil
}

func (h *SQLiteHistory) Close() error { return h.db.Close() }
