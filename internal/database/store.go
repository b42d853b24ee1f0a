// internal/database/store.go
package database

import (
	"context"
	"errors"
	"time"
)

var ErrMonitorNotFound = errors.New("monitor not found")

// MonitorStore holds monitor definitions and their derived last state.
type MonitorStore interface {
	GetMonitors(ctx context.Context) ([]Monitor, error)
	GetMonitor(ctx context.Context, id string) (*Monitor, error)
	CreateMonitor(ctx context.Context, monitor *Monitor) error
	// UpdateMonitor replaces the definition fields only; derived state is kept.
	UpdateMonitor(ctx context.Context, monitor *Monitor) error
	DeleteMonitor(ctx context.Context, id string) error

	// ListDueCandidates returns every monitor eligible for scheduling.
	ListDueCandidates(ctx context.Context) ([]Monitor, error)
	// UpdateLastState writes the derived fields of a single monitor atomically.
	// A checkedAt older than the stored value leaves last_checked_at untouched.
	UpdateLastState(ctx context.Context, id string, state LastState, checkedAt time.Time) error
}

// HistoryStore is the append-only probe log.
type HistoryStore interface {
	InsertProbeRecord(ctx context.Context, record *ProbeRecord) error
	GetProbeHistory(ctx context.Context, filters HistoryFilters) ([]ProbeRecord, error)
	Close() error
}

// Store combines monitor state with a history backend.
type Store interface {
	MonitorStore
	HistoryStore
	GetDatabaseStats(ctx context.Context) (*DatabaseStats, error)
}
