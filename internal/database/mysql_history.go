// internal/database/mysql_history.go - MySQL probe history backend (gorm)
package database

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/guregu/null/v5"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type probeRecordRow struct {
	ID              string      `gorm:"primaryKey;size:36"`
	MonitorID       string      `gorm:"size:64;not null;index:idx_probe_monitor_time,priority:1"`
	ProbedAt        time.Time   `gorm:"not null;index:idx_probe_monitor_time,priority:2"`
	CompletedAt     time.Time   `gorm:"not null"`
	DurationSeconds null.Float  `gorm:"type:double"`
	ResponseCode    null.String `gorm:"size:3"`
	ResponseMessage null.String `gorm:"type:text"`
	ResponseBody    string      `gorm:"type:longtext"`
	BodyTruncated   bool
	ContentLength   int64
	ContentType     null.String `gorm:"type:text"`
	Healthy         bool
	Diagnostics     string      `gorm:"type:text"`
	Error           null.String `gorm:"type:text"`
}

func (probeRecordRow) TableName() string { return "probe_records" }

func toRow(r *ProbeRecord) (*probeRecordRow, error) {
	diags, err := json.Marshal(r.Diagnostics)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal diagnostics: %w", err)
	}
	return &probeRecordRow{
		ID:              r.ID,
		MonitorID:       r.MonitorID,
		ProbedAt:        r.ProbedAt.UTC(),
		CompletedAt:     r.CompletedAt.UTC(),
		DurationSeconds: r.DurationSeconds,
		ResponseCode:    r.ResponseCode,
		ResponseMessage: r.ResponseMessage,
		ResponseBody:    r.ResponseBody,
		BodyTruncated:   r.BodyTruncated,
		ContentLength:   r.ContentLength,
		ContentType:     r.ContentType,
		Healthy:         r.Healthy,
		Diagnostics:     string(diags),
		Error:           r.Error,
	}, nil
}

func (row *probeRecordRow) record() (ProbeRecord, error) {
	r := ProbeRecord{
		ID:              row.ID,
		MonitorID:       row.MonitorID,
		ProbedAt:        row.ProbedAt,
		CompletedAt:     row.CompletedAt,
		DurationSeconds: row.DurationSeconds,
		ResponseCode:    row.ResponseCode,
		ResponseMessage: row.ResponseMessage,
		ResponseBody:    row.ResponseBody,
		BodyTruncated:   row.BodyTruncated,
		ContentLength:   row.ContentLength,
		ContentType:     row.ContentType,
		Healthy:         row.Healthy,
		Error:           row.Error,
	}
	if row.Diagnostics != "" {
		if err := json.Unmarshal([]byte(row.Diagnostics), &r.Diagnostics); err != nil {
			return r, fmt.Errorf("failed to decode diagnostics for %s: %w", row.ID, err)
		}
	}
	return r, nil
}

// MySQLHistory stores probe records in MySQL through gorm.
type MySQLHistory struct {
	db *gorm.DB
}

func NewMySQLHistory(dsn string) (*MySQLHistory, error) {
	if dsn == "" {
		return nil, fmt.Errorf("mysql dsn is required")
	}

	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open mysql: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to access mysql pool: %w", err)
	}
	sqlDB.SetConnMaxLifetime(time.Hour)
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetMaxOpenConns(20)

	if err := db.AutoMigrate(&probeRecordRow{}); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to migrate probe_records: %w", err)
	}
	return &MySQLHistory{db: db}, nil
}

func (h *MySQLHistory) InsertProbeRecord(ctx context.Context, r *ProbeRecord) error {
	if r.ID == "" {
		r.ID = uuid.New().String()
	}
	row, err := toRow(r)
	if err != nil {
		return err
	}
	if err := h.db.WithContext(ctx).Create(row).Error; err != nil {
		return fmt.Errorf("failed to insert probe record: %w", err)
	}
	return nil
}

func (h *MySQLHistory) GetProbeHistory(ctx context.Context, filters HistoryFilters) ([]ProbeRecord, error) {
	q := h.db.WithContext(ctx).Model(&probeRecordRow{})
	if filters.MonitorID != "" {
		q = q.Where("monitor_id = ?", filters.MonitorID)
	}
	if filters.Since != nil {
		q = q.Where("probed_at > ?", filters.Since.UTC())
	}
	q = q.Order("probed_at DESC")
	if filters.Limit > 0 {
		q = q.Limit(filters.Limit)
	}

	var rows []probeRecordRow
	if err := q.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list probe records: %w", err)
	}

	records := make([]ProbeRecord, 0, len(rows))
	for i := range rows {
		r, err := rows[i].record()
		if err != nil {
			return nil, err
		}
		records = append(records, r)
	}
	return records, nil
}

func (h *MySQLHistory) DeleteProbeHistoryBefore(ctx context.Context, cutoff time.Time) (int, error) {
	res := h.db.WithContext(ctx).Where("probed_at < ?", cutoff.UTC()).Delete(&probeRecordRow{})
	if res.Error != nil {
		return 0, fmt.Errorf("failed to purge probe records: %w", res.Error)
	}
	return int(res.RowsAffected), nil
}

func (h *MySQLHistory) CountProbeRecords(ctx context.Context) (int, time.Time, time.Time, error) {
	var agg struct {
		Count  int64
		Oldest *time.Time
		Newest *time.Time
	}
	err := h.db.WithContext(ctx).Model(&probeRecordRow{}).
		Select("COUNT(*) AS count, MIN(probed_at) AS oldest, MAX(probed_at) AS newest").
		Scan(&agg).Error
	if err != nil {
		return 0, time.Time{}, time.Time{}, fmt.Errorf("failed to count probe records: %w", err)
	}
	var oldest, newest time.Time
	if agg.Oldest != nil {
		oldest = *agg.Oldest
	}
	if agg.Newest != nil {
		newest = *agg.Newest
	}
	return int(agg.Count), oldest, newest, nil
}

func (h *MySQLHistory) Close() error {
	sqlDB, err := h.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
