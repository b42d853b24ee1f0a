package monitoring

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"ravenwatch/internal/config"
	"ravenwatch/internal/database"
	"ravenwatch/internal/metrics"
)

type recordingSink struct {
	mu     sync.Mutex
	events []Event
}

func (s *recordingSink) Name() string { return "recording" }

func (s *recordingSink) Publish(ctx context.Context, e Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, e)
	return nil
}

func (s *recordingSink) kinds(monitorID string) []EventKind {
	s.mu.Lock()
	defer s.mu.Unlock()
	var kinds []EventKind
	for _, e := range s.events {
		if e.MonitorID == monitorID {
			kinds = append(kinds, e.Kind)
		}
	}
	return kinds
}

type failingSink struct{}

func (failingSink) Name() string { return "failing" }

func (failingSink) Publish(ctx context.Context, e Event) error {
	return errors.New("sink unavailable")
}

// flakyHistory fails inserts for the listed monitors.
type flakyHistory struct {
	*database.MemoryStore
	failFor map[string]bool
}

func (f *flakyHistory) InsertProbeRecord(ctx context.Context, r *database.ProbeRecord) error {
	if f.failFor[r.MonitorID] {
		return errors.New("disk full")
	}
	return f.MemoryStore.InsertProbeRecord(ctx, r)
}

// frozenStore never persists last state, so only the in-memory overlay
// can move a monitor back in the queue.
type frozenStore struct {
	*database.MemoryStore
}

func (f *frozenStore) UpdateLastState(ctx context.Context, id string, state database.LastState, checkedAt time.Time) error {
	return errors.New("read-only")
}

type executorFunc func(ctx context.Context, target string) Outcome

func (f executorFunc) Probe(ctx context.Context, target string) Outcome { return f(ctx, target) }

func testConfig() *config.Config {
	return &config.Config{
		Monitoring: config.MonitoringConfig{
			Interval:  time.Hour,
			BatchSize: DefaultBatchSize,
			Workers:   3,
		},
		Probe: config.ProbeConfig{
			Timeout:      2 * time.Second,
			UserAgent:    config.DefaultUserAgent,
			MaxBodyBytes: DefaultMaxBodyBytes,
		},
	}
}

func newTestEngine(t *testing.T, store Store, sinks ...EventSink) *Engine {
	t.Helper()
	engine, err := NewEngine(testConfig(), store, metrics.NewCollector(database.NewMemoryStore()), sinks...)
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	return engine
}

func addMonitor(t *testing.T, store *database.MemoryStore, m database.Monitor) {
	t.Helper()
	if err := store.CreateMonitor(context.Background(), &m); err != nil {
		t.Fatalf("CreateMonitor(%s): %v", m.ID, err)
	}
}

func historyFor(t *testing.T, store database.HistoryStore, id string) []database.ProbeRecord {
	t.Helper()
	records, err := store.GetProbeHistory(context.Background(), database.HistoryFilters{MonitorID: id})
	if err != nil {
		t.Fatalf("GetProbeHistory(%s): %v", id, err)
	}
	return records
}
