// internal/database/boltstore_extended.go - retention and stats for the BoltDB store
package database

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/sirupsen/logrus"
	"go.etcd.io/bbolt"
)

// DeleteProbeHistoryBefore removes records probed before cutoff.
func (s *BoltStore) DeleteProbeHistoryBefore(ctx context.Context, cutoff time.Time) (int, error) {
	deletedCount := 0

	err := s.db.Update(func(tx *bbolt.Tx) error {
		historyBucket := tx.Bucket(HistoryBucket)

		var keysToDelete [][]byte
		cursor := historyBucket.Cursor()
		for k, v := cursor.First(); k != nil; k, v = cursor.Next() {
			var record ProbeRecord
			if err := json.Unmarshal(v, &record); err != nil {
				continue
			}
			if record.ProbedAt.Before(cutoff) {
				keysToDelete = append(keysToDelete, copyBytes(k))
			}
		}

		for _, key := range keysToDelete {
			if err := historyBucket.Delete(key); err != nil {
				return fmt.Errorf("failed to delete history entry: %w", err)
			}
			deletedCount++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	logrus.WithFields(logrus.Fields{
		"cutoff":  cutoff,
		"deleted": deletedCount,
	}).Debug("Purged probe history")

	return deletedCount, nil
}

func (s *BoltStore) CountProbeRecords(ctx context.Context) (int, time.Time, time.Time, error) {
	var (
		count          int
		oldest, newest time.Time
	)

	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(HistoryBucket).ForEach(func(k, v []byte) error {
			var record ProbeRecord
			if err := json.Unmarshal(v, &record); err != nil {
				return nil
			}
			count++
			if oldest.IsZero() || record.ProbedAt.Before(oldest) {
				oldest = record.ProbedAt
			}
			if record.ProbedAt.After(newest) {
				newest = record.ProbedAt
			}
			return nil
		})
	})

	return count, oldest, newest, err
}

// GetDatabaseStats returns information about database size and contents
func (s *BoltStore) GetDatabaseStats(ctx context.Context) (*DatabaseStats, error) {
	stats := &DatabaseStats{HistoryBackend: BackendBolt}

	err := s.db.View(func(tx *bbolt.Tx) error {
		stats.TotalMonitors = tx.Bucket(MonitorsBucket).Stats().KeyN
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get database stats: %w", err)
	}

	count, oldest, newest, err := s.CountProbeRecords(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count probe history: %w", err)
	}
	stats.TotalProbeRecords = count
	stats.OldestProbeRecord = oldest
	stats.NewestProbeRecord = newest

	if fileInfo, err := os.Stat(s.path); err == nil {
		stats.DatabaseSize = fileInfo.Size()
	}

	return stats, nil
}

// copyBytes creates a copy of a byte slice
func copyBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	copied := make([]byte, len(b))
	copy(copied, b)
	return copied
}
