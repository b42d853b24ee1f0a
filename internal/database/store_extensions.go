// internal/database/store_extensions.go - optional capabilities of history backends
package database

import (
	"context"
	"time"
)

// RetentionStore is implemented by history backends that support purging
// records older than a retention window. History stays append-only unless an
// operator opts in to retention.
type RetentionStore interface {
	DeleteProbeHistoryBefore(ctx context.Context, cutoff time.Time) (int, error)
}

// HistoryCounter reports size information for a history backend.
type HistoryCounter interface {
	CountProbeRecords(ctx context.Context) (count int, oldest, newest time.Time, err error)
}
