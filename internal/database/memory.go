// internal/database/memory.go - in-process store, used for ephemeral runs and tests
package database

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore keeps monitors and history in maps. Nothing survives a restart.
type MemoryStore struct {
	mu       sync.RWMutex
	monitors map[string]Monitor
	history  []ProbeRecord
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{monitors: make(map[string]Monitor)}
}

func (s *MemoryStore) GetMonitors(ctx context.Context) ([]Monitor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	monitors := make([]Monitor, 0, len(s.monitors))
	for _, m := range s.monitors {
		monitors = append(monitors, cloneMonitor(m))
	}
	sort.Slice(monitors, func(i, j int) bool { return monitors[i].ID < monitors[j].ID })
	return monitors, nil
}

func (s *MemoryStore) ListDueCandidates(ctx context.Context) ([]Monitor, error) {
	return s.GetMonitors(ctx)
}

func (s *MemoryStore) GetMonitor(ctx context.Context, id string) (*Monitor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	m, ok := s.monitors[id]
	if !ok {
		return nil, ErrMonitorNotFound
	}
	m = cloneMonitor(m)
	return &m, nil
}

func (s *MemoryStore) CreateMonitor(ctx context.Context, monitor *Monitor) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if monitor.ID == "" {
		monitor.ID = uuid.New().String()
	}
	if _, exists := s.monitors[monitor.ID]; exists {
		return fmt.Errorf("monitor %s already exists", monitor.ID)
	}
	now := time.Now()
	monitor.CreatedAt = now
	monitor.UpdatedAt = now
	s.monitors[monitor.ID] = cloneMonitor(*monitor)
	return nil
}

func (s *MemoryStore) UpdateMonitor(ctx context.Context, monitor *Monitor) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.monitors[monitor.ID]
	if !ok {
		return ErrMonitorNotFound
	}
	existing.Name = monitor.Name
	existing.URL = monitor.URL
	existing.ExpectedStatusCode = monitor.ExpectedStatusCode
	existing.ExpectedLocation = monitor.ExpectedLocation
	existing.RequiredSubstring = monitor.RequiredSubstring
	existing.UpdatedAt = time.Now()
	s.monitors[monitor.ID] = existing
	*monitor = cloneMonitor(existing)
	return nil
}

func (s *MemoryStore) DeleteMonitor(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.monitors[id]; !ok {
		return ErrMonitorNotFound
	}
	delete(s.monitors, id)
	return nil
}

func (s *MemoryStore) UpdateLastState(ctx context.Context, id string, state LastState, checkedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.monitors[id]
	if !ok {
		return ErrMonitorNotFound
	}
	if m.LastCheckedAt == nil || !checkedAt.Before(*m.LastCheckedAt) {
		t := checkedAt
		m.LastCheckedAt = &t
	}
	m.LastState = &state
	s.monitors[id] = m
	return nil
}

func (s *MemoryStore) InsertProbeRecord(ctx context.Context, record *ProbeRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if record.ID == "" {
		record.ID = uuid.New().String()
	}
	s.history = append(s.history, *record)
	return nil
}

// GetProbeHistory returns records newest first.
func (s *MemoryStore) GetProbeHistory(ctx context.Context, filters HistoryFilters) ([]ProbeRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var records []ProbeRecord
	for _, r := range s.history {
		if filters.MonitorID != "" && r.MonitorID != filters.MonitorID {
			continue
		}
		if filters.Since != nil && !r.ProbedAt.After(*filters.Since) {
			continue
		}
		records = append(records, r)
	}
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].ProbedAt.After(records[j].ProbedAt)
	})
	if filters.Limit > 0 && len(records) > filters.Limit {
		records = records[:filters.Limit]
	}
	return records, nil
}

func (s *MemoryStore) DeleteProbeHistoryBefore(ctx context.Context, cutoff time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.history[:0]
	purged := 0
	for _, r := range s.history {
		if r.ProbedAt.Before(cutoff) {
			purged++
			continue
		}
		kept = append(kept, r)
	}
	s.history = kept
	return purged, nil
}

func (s *MemoryStore) CountProbeRecords(ctx context.Context) (count int, oldest, newest time.Time, err error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for i, r := range s.history {
		if i == 0 || r.ProbedAt.Before(oldest) {
			oldest = r.ProbedAt
		}
		if r.ProbedAt.After(newest) {
			newest = r.ProbedAt
		}
	}
	return len(s.history), oldest, newest, nil
}

func (s *MemoryStore) GetDatabaseStats(ctx context.Context) (*DatabaseStats, error) {
	count, oldest, newest, _ := s.CountProbeRecords(ctx)

	s.mu.RLock()
	defer s.mu.RUnlock()
	return &DatabaseStats{
		TotalMonitors:     len(s.monitors),
		TotalProbeRecords: count,
		OldestProbeRecord: oldest,
		NewestProbeRecord: newest,
		HistoryBackend:    BackendMemory,
	}, nil
}

func (s *MemoryStore) Close() error {
	return nil
}

func cloneMonitor(m Monitor) Monitor {
	if m.LastCheckedAt != nil {
		t := *m.LastCheckedAt
		m.LastCheckedAt = &t
	}
	if m.LastState != nil {
		st := *m.LastState
		st.Diagnostics = append([]string(nil), st.Diagnostics...)
		m.LastState = &st
	}
	return m
}
