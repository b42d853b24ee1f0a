// internal/notifications/throttle.go
package notifications

import (
	"sync"
	"time"

	"ravenwatch/internal/config"
)

// NotificationThrottler limits notifications per monitor and overall within
// a sliding window.
type NotificationThrottler struct {
	config        config.ThrottleConfig
	monitorCounts map[string][]time.Time
	totalCounts   []time.Time
	now           func() time.Time
	mu            sync.Mutex
}

func NewNotificationThrottler(cfg config.ThrottleConfig) *NotificationThrottler {
	return &NotificationThrottler{
		config:        cfg,
		monitorCounts: make(map[string][]time.Time),
		now:           time.Now,
	}
}

// Allow reports whether a notification for monitorID may be sent now and,
// if so, counts it against the window.
func (nt *NotificationThrottler) Allow(monitorID string) bool {
	if !nt.config.Enabled {
		return true
	}

	nt.mu.Lock()
	defer nt.mu.Unlock()

	now := nt.now()
	nt.cleanup(now.Add(-nt.config.Window))

	if len(nt.monitorCounts[monitorID]) >= nt.config.MaxPerMonitor {
		return false
	}
	if len(nt.totalCounts) >= nt.config.MaxTotal {
		return false
	}

	nt.monitorCounts[monitorID] = append(nt.monitorCounts[monitorID], now)
	nt.totalCounts = append(nt.totalCounts, now)
	return true
}

func (nt *NotificationThrottler) cleanup(windowStart time.Time) {
	for id, times := range nt.monitorCounts {
		kept := recent(times, windowStart)
		if len(kept) == 0 {
			delete(nt.monitorCounts, id)
		} else {
			nt.monitorCounts[id] = kept
		}
	}
	nt.totalCounts = recent(nt.totalCounts, windowStart)
}

func recent(times []time.Time, windowStart time.Time) []time.Time {
	kept := times[:0]
	for _, t := range times {
		if t.After(windowStart) {
			kept = append(kept, t)
		}
	}
	return kept
}

// Snapshot returns the number of tracked monitors and recent notifications.
func (nt *NotificationThrottler) Snapshot() (monitors, total int) {
	nt.mu.Lock()
	defer nt.mu.Unlock()
	return len(nt.monitorCounts), len(nt.totalCounts)
}
