package monitoring

import (
	"context"
	"testing"
	"time"

	"ravenwatch/internal/database"
)

func TestRetentionPurgesExpiredRecords(t *testing.T) {
	store := database.NewMemoryStore()
	now := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	ctx := context.Background()

	for _, age := range []time.Duration{48 * time.Hour, 30 * time.Hour, time.Hour} {
		store.InsertProbeRecord(ctx, &database.ProbeRecord{MonitorID: "m", ProbedAt: now.Add(-age)})
	}

	rm := NewRetentionManager(store, 24*time.Hour)
	rm.now = func() time.Time { return now }

	purged, err := rm.PurgeExpired(ctx)
	if err != nil {
		t.Fatalf("PurgeExpired: %v", err)
	}
	if purged != 2 {
		t.Errorf("purged = %d, want 2", purged)
	}
	if n := len(historyFor(t, store, "m")); n != 1 {
		t.Errorf("remaining = %d, want 1", n)
	}
}

func TestRetentionDisabled(t *testing.T) {
	store := database.NewMemoryStore()
	store.InsertProbeRecord(context.Background(), &database.ProbeRecord{MonitorID: "m", ProbedAt: time.Unix(0, 0)})

	purged, err := NewRetentionManager(store, 0).PurgeExpired(context.Background())
	if err != nil || purged != 0 {
		t.Fatalf("purged = %d, err = %v", purged, err)
	}
}
