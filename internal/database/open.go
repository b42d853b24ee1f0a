// internal/database/open.go
package database

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/sirupsen/logrus"
)

const (
	BackendBolt   = "boltdb"
	BackendSQLite = "sqlite"
	BackendMySQL  = "mysql"
	BackendMemory = "memory"
)

type Options struct {
	Path           string
	HistoryBackend string
	SQLitePath     string
	MySQLDSN       string
}

// Open returns a Store keeping monitors in BoltDB and probe history in the
// configured backend.
func Open(ctx context.Context, opts Options) (Store, error) {
	bolt, err := NewBoltStore(opts.Path)
	if err != nil {
		return nil, err
	}

	var history HistoryStore
	switch opts.HistoryBackend {
	case "", BackendBolt:
		return bolt, nil
	case BackendSQLite:
		history, err = NewSQLiteHistory(ctx, opts.SQLitePath)
	case BackendMySQL:
		history, err = NewMySQLHistory(opts.MySQLDSN)
	case BackendMemory:
		history = NewMemoryStore()
	default:
		err = fmt.Errorf("unsupported history backend %q", opts.HistoryBackend)
	}
	if err != nil {
		bolt.Close()
		return nil, err
	}

	logrus.WithField("backend", opts.HistoryBackend).Info("Using external probe history backend")
	return &SplitStore{BoltStore: bolt, history: history, backend: opts.HistoryBackend}, nil
}

// SplitStore serves monitors from BoltDB and history from another backend.
type SplitStore struct {
	*BoltStore
	history HistoryStore
	backend string
}

func (s *SplitStore) InsertProbeRecord(ctx context.Context, record *ProbeRecord) error {
	return s.history.InsertProbeRecord(ctx, record)
}

func (s *SplitStore) GetProbeHistory(ctx context.Context, filters HistoryFilters) ([]ProbeRecord, error) {
	return s.history.GetProbeHistory(ctx, filters)
}

func (s *SplitStore) DeleteProbeHistoryBefore(ctx context.Context, cutoff time.Time) (int, error) {
	rs, ok := s.history.(RetentionStore)
	if !ok {
		return 0, fmt.Errorf("history backend %s does not support retention", s.backend)
	}
	return rs.DeleteProbeHistoryBefore(ctx, cutoff)
}

func (s *SplitStore) GetDatabaseStats(ctx context.Context) (*DatabaseStats, error) {
	stats := &DatabaseStats{HistoryBackend: s.backend}

	monitors, err := s.BoltStore.GetMonitors(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count monitors: %w", err)
	}
	stats.TotalMonitors = len(monitors)

	if hc, ok := s.history.(HistoryCounter); ok {
		count, oldest, newest, err := hc.CountProbeRecords(ctx)
		if err != nil {
			return nil, err
		}
		stats.TotalProbeRecords = count
		stats.OldestProbeRecord = oldest
		stats.NewestProbeRecord = newest
	}

	if fileInfo, err := os.Stat(s.path); err == nil {
		stats.DatabaseSize = fileInfo.Size()
	}
	return stats, nil
}

func (s *SplitStore) Close() error {
	herr := s.history.Close()
	if err := s.BoltStore.Close(); err != nil {
		return err
	}
	return herr
}

func (s *SplitStore) CountProbeRecords(ctx context.Context) (int, time.Time, time.Time, error) {
	hc, ok := s.history.(HistoryCounter)
	if !ok {
		return 0, time.Time{}, time.Time{}, fmt.Errorf("history backend %s cannot count records", s.backend)
	}
	return hc.CountProbeRecords(ctx)
}
