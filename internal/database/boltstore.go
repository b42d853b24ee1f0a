// internal/database/boltstore.go - BoltDB monitor store and default history log
package database

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.etcd.io/bbolt"
)

var (
	MonitorsBucket = []byte("monitors")
	HistoryBucket  = []byte("probe_history")
	MetaBucket     = []byte("meta")
)

type BoltStore struct {
	db   *bbolt.DB
	path string
}

func NewBoltStore(path string) (*BoltStore, error) {
	// Create directory if it doesn't exist
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	db, err := bbolt.Open(path, 0600, &bbolt.Options{
		Timeout: 1 * time.Second,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open BoltDB: %w", err)
	}

	store := &BoltStore{db: db, path: path}

	if err := store.initBuckets(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize buckets: %w", err)
	}

	return store, nil
}

func (s *BoltStore) initBuckets() error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		for _, bucket := range [][]byte{MonitorsBucket, HistoryBucket, MetaBucket} {
			if _, err := tx.CreateBucketIfNotExists(bucket); err != nil {
				return fmt.Errorf("failed to create bucket %s: %w", bucket, err)
			}
		}
		return nil
	})
}

func (s *BoltStore) GetMonitors(ctx context.Context) ([]Monitor, error) {
	var monitors []Monitor

	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(MonitorsBucket)
		return b.ForEach(func(k, v []byte) error {
			var monitor Monitor
			if err := json.Unmarshal(v, &monitor); err != nil {
				return fmt.Errorf("failed to unmarshal monitor %s: %w", k, err)
			}
			monitors = append(monitors, monitor)
			return nil
		})
	})

	return monitors, err
}

func (s *BoltStore) ListDueCandidates(ctx context.Context) ([]Monitor, error) {
	return s.GetMonitors(ctx)
}

func (s *BoltStore) GetMonitor(ctx context.Context, id string) (*Monitor, error) {
	var monitor Monitor

	err := s.db.View(func(tx *bbolt.Tx) error {
		v := tx.Bucket(MonitorsBucket).Get([]byte(id))
		if v == nil {
			return ErrMonitorNotFound
		}
		return json.Unmarshal(v, &monitor)
	})

	if err != nil {
		return nil, err
	}
	return &monitor, nil
}

func (s *BoltStore) CreateMonitor(ctx context.Context, monitor *Monitor) error {
	if monitor.ID == "" {
		monitor.ID = uuid.New().String()
	}
	now := time.Now()
	monitor.CreatedAt = now
	monitor.UpdatedAt = now

	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(MonitorsBucket)
		if b.Get([]byte(monitor.ID)) != nil {
			return fmt.Errorf("monitor %s already exists", monitor.ID)
		}
		return putJSON(b, monitor.ID, monitor)
	})
}

func (s *BoltStore) UpdateMonitor(ctx context.Context, monitor *Monitor) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(MonitorsBucket)
		v := b.Get([]byte(monitor.ID))
		if v == nil {
			return ErrMonitorNotFound
		}

		var existing Monitor
		if err := json.Unmarshal(v, &existing); err != nil {
			return fmt.Errorf("failed to unmarshal monitor %s: %w", monitor.ID, err)
		}

		existing.Name = monitor.Name
		existing.URL = monitor.URL
		existing.ExpectedStatusCode = monitor.ExpectedStatusCode
		existing.ExpectedLocation = monitor.ExpectedLocation
		existing.RequiredSubstring = monitor.RequiredSubstring
		existing.UpdatedAt = time.Now()

		if err := putJSON(b, existing.ID, &existing); err != nil {
			return err
		}
		*monitor = existing
		return nil
	})
}

func (s *BoltStore) DeleteMonitor(ctx context.Context, id string) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(MonitorsBucket)
		if b.Get([]byte(id)) == nil {
			return ErrMonitorNotFound
		}
		return b.Delete([]byte(id))
	})
}

func (s *BoltStore) UpdateLastState(ctx context.Context, id string, state LastState, checkedAt time.Time) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(MonitorsBucket)
		v := b.Get([]byte(id))
		if v == nil {
			return ErrMonitorNotFound
		}

		var monitor Monitor
		if err := json.Unmarshal(v, &monitor); err != nil {
			return fmt.Errorf("failed to unmarshal monitor %s: %w", id, err)
		}

		if monitor.LastCheckedAt == nil || !checkedAt.Before(*monitor.LastCheckedAt) {
			t := checkedAt
			monitor.LastCheckedAt = &t
		}
		monitor.LastState = &state

		return putJSON(b, id, &monitor)
	})
}

// History keys are "<monitor>:<big-endian unix nanos>:<record id>" so a
// prefix seek walks one monitor's records in time order.
func historyKey(r *ProbeRecord) []byte {
	key := make([]byte, 0, len(r.MonitorID)+len(r.ID)+10)
	key = append(key, r.MonitorID...)
	key = append(key, ':')
	key = binary.BigEndian.AppendUint64(key, uint64(r.ProbedAt.UnixNano()))
	key = append(key, ':')
	key = append(key, r.ID...)
	return key
}

func (s *BoltStore) InsertProbeRecord(ctx context.Context, record *ProbeRecord) error {
	if record.ID == "" {
		record.ID = uuid.New().String()
	}

	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal probe record: %w", err)
	}

	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(HistoryBucket).Put(historyKey(record), data)
	})
}

// GetProbeHistory returns records newest first.
func (s *BoltStore) GetProbeHistory(ctx context.Context, filters HistoryFilters) ([]ProbeRecord, error) {
	var records []ProbeRecord

	err := s.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket(HistoryBucket).Cursor()

		prefix := []byte(filters.MonitorID + ":")
		if filters.MonitorID == "" {
			prefix = nil
		}

		for k, v := c.Seek(prefix); k != nil && strings.HasPrefix(string(k), string(prefix)); k, v = c.Next() {
			var record ProbeRecord
			if err := json.Unmarshal(v, &record); err != nil {
				continue
			}
			if filters.Since != nil && !record.ProbedAt.After(*filters.Since) {
				continue
			}
			records = append(records, record)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.SliceStable(records, func(i, j int) bool {
		return records[i].ProbedAt.After(records[j].ProbedAt)
	})
	if filters.Limit > 0 && len(records) > filters.Limit {
		records = records[:filters.Limit]
	}
	return records, nil
}

func (s *BoltStore) Close() error {
	return s.db.Close()
}

func putJSON(b *bbolt.Bucket, key string, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", key, err)
	}
	return b.Put([]byte(key), data)
}
