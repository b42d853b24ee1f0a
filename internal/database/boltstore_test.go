package database

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/guregu/null/v5"
)

func newTestBoltStore(t *testing.T) *BoltStore {
	t.Helper()
	s, err := NewBoltStore(filepath.Join(t.TempDir(), "data", "raven.db"))
	if err != nil {
		t.Fatalf("NewBoltStore: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestBoltStore_MonitorCRUD(t *testing.T) {
	ctx := context.Background()
	s := newTestBoltStore(t)

	m := &Monitor{Name: "home", URL: "https://example.com"}
	if err := s.CreateMonitor(ctx, m); err != nil {
		t.Fatalf("CreateMonitor: %v", err)
	}
	if m.ID == "" {
		t.Fatal("expected generated ID")
	}
	if err := s.CreateMonitor(ctx, &Monitor{ID: m.ID}); err == nil {
		t.Error("expected error creating duplicate monitor")
	}

	got, err := s.GetMonitor(ctx, m.ID)
	if err != nil {
		t.Fatalf("GetMonitor: %v", err)
	}
	if got.URL != m.URL || got.Name != "home" {
		t.Errorf("unexpected monitor: %+v", got)
	}
	if got.EffectiveStatusCode() != "200" {
		t.Errorf("expected default status code 200, got %q", got.EffectiveStatusCode())
	}

	if _, err := s.GetMonitor(ctx, "missing"); !errors.Is(err, ErrMonitorNotFound) {
		t.Errorf("expected ErrMonitorNotFound, got %v", err)
	}

	all, err := s.GetMonitors(ctx)
	if err != nil || len(all) != 1 {
		t.Fatalf("GetMonitors = %d, %v", len(all), err)
	}

	if err := s.DeleteMonitor(ctx, m.ID); err != nil {
		t.Fatalf("DeleteMonitor: %v", err)
	}
	if err := s.DeleteMonitor(ctx, m.ID); !errors.Is(err, ErrMonitorNotFound) {
		t.Errorf("expected ErrMonitorNotFound on second delete, got %v", err)
	}
}

func TestBoltStore_UpdateMonitorKeepsDerivedState(t *testing.T) {
	ctx := context.Background()
	s := newTestBoltStore(t)

	m := &Monitor{ID: "m1", URL: "https://a.example"}
	if err := s.CreateMonitor(ctx, m); err != nil {
		t.Fatal(err)
	}
	checked := time.Now().Truncate(time.Second)
	state := LastState{ResponseCode: null.StringFrom("200"), Healthy: true}
	if err := s.UpdateLastState(ctx, "m1", state, checked); err != nil {
		t.Fatalf("UpdateLastState: %v", err)
	}

	edit := &Monitor{ID: "m1", URL: "https://b.example", RequiredSubstring: "OK"}
	if err := s.UpdateMonitor(ctx, edit); err != nil {
		t.Fatalf("UpdateMonitor: %v", err)
	}

	got, _ := s.GetMonitor(ctx, "m1")
	if got.URL != "https://b.example" || got.RequiredSubstring != "OK" {
		t.Errorf("definition not updated: %+v", got)
	}
	if got.LastCheckedAt == nil || !got.LastCheckedAt.Equal(checked) {
		t.Errorf("last_checked_at lost: %v", got.LastCheckedAt)
	}
	if got.LastState == nil || got.LastState.ResponseCode.String != "200" {
		t.Errorf("last_state lost: %+v", got.LastState)
	}

	if err := s.UpdateMonitor(ctx, &Monitor{ID: "nope"}); !errors.Is(err, ErrMonitorNotFound) {
		t.Errorf("expected ErrMonitorNotFound, got %v", err)
	}
}

func TestBoltStore_UpdateLastStateNeverMovesBackwards(t *testing.T) {
	ctx := context.Background()
	s := newTestBoltStore(t)
	if err := s.CreateMonitor(ctx, &Monitor{ID: "m1", URL: "https://a.example"}); err != nil {
		t.Fatal(err)
	}

	later := time.Now()
	earlier := later.Add(-time.Minute)
	if err := s.UpdateLastState(ctx, "m1", LastState{ResponseCode: null.StringFrom("500")}, later); err != nil {
		t.Fatal(err)
	}
	if err := s.UpdateLastState(ctx, "m1", LastState{ResponseCode: null.StringFrom("200")}, earlier); err != nil {
		t.Fatal(err)
	}

	got, _ := s.GetMonitor(ctx, "m1")
	if !got.LastCheckedAt.Equal(later) {
		t.Errorf("expected last_checked_at %v, got %v", later, got.LastCheckedAt)
	}
	if got.LastState.ResponseCode.String != "200" {
		t.Errorf("expected last write to win for outcome fields, got %q", got.LastState.ResponseCode.String)
	}

	if err := s.UpdateLastState(ctx, "missing", LastState{}, later); !errors.Is(err, ErrMonitorNotFound) {
		t.Errorf("expected ErrMonitorNotFound, got %v", err)
	}
}

func TestBoltStore_ProbeHistory(t *testing.T) {
	ctx := context.Background()
	s := newTestBoltStore(t)

	base := time.Now().Add(-time.Hour)
	for i := 0; i < 3; i++ {
		r := &ProbeRecord{MonitorID: "m1", ProbedAt: base.Add(time.Duration(i) * time.Minute)}
		if err := s.InsertProbeRecord(ctx, r); err != nil {
			t.Fatalf("InsertProbeRecord: %v", err)
		}
		if r.ID == "" {
			t.Fatal("expected generated record ID")
		}
	}
	if err := s.InsertProbeRecord(ctx, &ProbeRecord{MonitorID: "m10", ProbedAt: base}); err != nil {
		t.Fatal(err)
	}

	records, err := s.GetProbeHistory(ctx, HistoryFilters{MonitorID: "m1"})
	if err != nil {
		t.Fatalf("GetProbeHistory: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("expected 3 records for m1, got %d", len(records))
	}
	if !records[0].ProbedAt.After(records[2].ProbedAt) {
		t.Error("expected newest first")
	}

	since := base.Add(30 * time.Second)
	records, _ = s.GetProbeHistory(ctx, HistoryFilters{MonitorID: "m1", Since: &since, Limit: 1})
	if len(records) != 1 || !records[0].ProbedAt.Equal(base.Add(2*time.Minute)) {
		t.Errorf("unexpected filtered history: %+v", records)
	}

	all, _ := s.GetProbeHistory(ctx, HistoryFilters{})
	if len(all) != 4 {
		t.Errorf("expected 4 records overall, got %d", len(all))
	}
}

func TestBoltStore_RetentionAndStats(t *testing.T) {
	ctx := context.Background()
	s := newTestBoltStore(t)
	if err := s.CreateMonitor(ctx, &Monitor{ID: "m1", URL: "https://a.example"}); err != nil {
		t.Fatal(err)
	}

	now := time.Now()
	old := &ProbeRecord{MonitorID: "m1", ProbedAt: now.Add(-48 * time.Hour)}
	fresh := &ProbeRecord{MonitorID: "m1", ProbedAt: now}
	for _, r := range []*ProbeRecord{old, fresh} {
		if err := s.InsertProbeRecord(ctx, r); err != nil {
			t.Fatal(err)
		}
	}

	stats, err := s.GetDatabaseStats(ctx)
	if err != nil {
		t.Fatalf("GetDatabaseStats: %v", err)
	}
	if stats.TotalMonitors != 1 || stats.TotalProbeRecords != 2 {
		t.Errorf("unexpected stats: %+v", stats)
	}
	if stats.DatabaseSize == 0 {
		t.Error("expected non-zero database size")
	}

	deleted, err := s.DeleteProbeHistoryBefore(ctx, now.Add(-24*time.Hour))
	if err != nil {
		t.Fatalf("DeleteProbeHistoryBefore: %v", err)
	}
	if deleted != 1 {
		t.Errorf("expected 1 deleted, got %d", deleted)
	}
	records, _ := s.GetProbeHistory(ctx, HistoryFilters{MonitorID: "m1"})
	if len(records) != 1 || records[0].ID != fresh.ID {
		t.Errorf("expected only the fresh record, got %+v", records)
	}
}
