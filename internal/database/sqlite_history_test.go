package database

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/guregu/null/v5"
)

func newTestSQLiteHistory(t *testing.T) *SQLiteHistory {
	t.Helper()
	h, err := NewSQLiteHistory(context.Background(), filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatalf("NewSQLiteHistory: %v", err)
	}
	t.Cleanup(func() { h.Close() })
	return h
}

func TestSQLiteHistory_RoundTripsNullableFields(t *testing.T) {
	ctx := context.Background()
	h := newTestSQLiteHistory(t)

	probed := time.Now().Add(-time.Minute)
	failed := &ProbeRecord{
		MonitorID:   "m1",
		ProbedAt:    probed,
		CompletedAt: probed.Add(time.Second),
		Diagnostics: []string{"no response received"},
		Error:       null.StringFrom("dial tcp: connection refused"),
	}
	ok := &ProbeRecord{
		MonitorID:       "m1",
		ProbedAt:        probed.Add(30 * time.Second),
		CompletedAt:     probed.Add(31 * time.Second),
		DurationSeconds: null.FloatFrom(0.25),
		ResponseCode:    null.StringFrom("200"),
		ResponseMessage: null.StringFrom("OK"),
		ResponseBody:    "hello",
		ContentLength:   5,
		ContentType:     null.StringFrom("text/plain"),
		Healthy:         true,
	}
	for _, r := range []*ProbeRecord{failed, ok} {
		if err := h.InsertProbeRecord(ctx, r); err != nil {
			t.Fatalf("InsertProbeRecord: %v", err)
		}
	}

	records, err := h.GetProbeHistory(ctx, HistoryFilters{MonitorID: "m1"})
	if err != nil {
		t.Fatalf("GetProbeHistory: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}
	if records[0].ID != ok.ID {
		t.Errorf("expected newest record first, got %s", records[0].ID)
	}
	if !records[0].Healthy || records[0].ResponseCode.String != "200" || records[0].DurationSeconds.Float64 != 0.25 {
		t.Errorf("unexpected healthy record: %+v", records[0])
	}

	got := records[1]
	if got.ResponseCode.Valid || got.DurationSeconds.Valid || got.ContentType.Valid {
		t.Errorf("expected null response fields on transport failure, got %+v", got)
	}
	if len(got.Diagnostics) != 1 || got.Diagnostics[0] != "no response received" {
		t.Errorf("unexpected diagnostics: %v", got.Diagnostics)
	}
	if !got.ProbedAt.Equal(probed) {
		t.Errorf("probed_at mismatch: %v vs %v", got.ProbedAt, probed)
	}
}

func TestSQLiteHistory_FiltersRetentionAndCount(t *testing.T) {
	ctx := context.Background()
	h := newTestSQLiteHistory(t)

	now := time.Now()
	for i := 0; i < 4; i++ {
		r := &ProbeRecord{MonitorID: "m1", ProbedAt: now.Add(-time.Duration(i) * time.Hour), CompletedAt: now}
		if err := h.InsertProbeRecord(ctx, r); err != nil {
			t.Fatal(err)
		}
	}
	if err := h.InsertProbeRecord(ctx, &ProbeRecord{MonitorID: "m2", ProbedAt: now, CompletedAt: now}); err != nil {
		t.Fatal(err)
	}

	since := now.Add(-90 * time.Minute)
	records, err := h.GetProbeHistory(ctx, HistoryFilters{MonitorID: "m1", Since: &since})
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 2 {
		t.Errorf("expected 2 records since cutoff, got %d", len(records))
	}

	limited, _ := h.GetProbeHistory(ctx, HistoryFilters{Limit: 3})
	if len(limited) != 3 {
		t.Errorf("expected limit of 3, got %d", len(limited))
	}

	count, oldest, newest, err := h.CountProbeRecords(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if count != 5 || !newest.After(oldest) {
		t.Errorf("unexpected count stats: %d %v %v", count, oldest, newest)
	}

	deleted, err := h.DeleteProbeHistoryBefore(ctx, now.Add(-150*time.Minute))
	if err != nil {
		t.Fatal(err)
	}
	if deleted != 1 {
		t.Errorf("expected 1 purged record, got %d", deleted)
	}
}

func TestOpen_SplitStoreWithSQLiteHistory(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	store, err := Open(ctx, Options{
		Path:           filepath.Join(dir, "raven.db"),
		HistoryBackend: BackendSQLite,
		SQLitePath:     filepath.Join(dir, "history.db"),
	})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer store.Close()

	if err := store.CreateMonitor(ctx, &Monitor{ID: "m1", URL: "https://a.example"}); err != nil {
		t.Fatal(err)
	}
	if err := store.InsertProbeRecord(ctx, &ProbeRecord{MonitorID: "m1", ProbedAt: time.Now(), CompletedAt: time.Now()}); err != nil {
		t.Fatal(err)
	}

	stats, err := store.GetDatabaseStats(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if stats.HistoryBackend != BackendSQLite || stats.TotalMonitors != 1 || stats.TotalProbeRecords != 1 {
		t.Errorf("unexpected stats: %+v", stats)
	}

	if _, err := Open(ctx, Options{Path: filepath.Join(dir, "other.db"), HistoryBackend: "cassandra"}); err == nil {
		t.Error("expected error for unsupported backend")
	}
}
