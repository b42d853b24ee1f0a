// internal/monitoring/retention.go - history retention janitor
package monitoring

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"ravenwatch/internal/database"
)

// RetentionManager purges probe records older than a configured window.
// History is append-only unless retention is explicitly enabled.
type RetentionManager struct {
	store     database.RetentionStore
	retention time.Duration
	now       func() time.Time
}

func NewRetentionManager(store database.RetentionStore, retention time.Duration) *RetentionManager {
	return &RetentionManager{
		store:     store,
		retention: retention,
		now:       time.Now,
	}
}

// PurgeExpired deletes every record probed before now minus the retention window.
func (rm *RetentionManager) PurgeExpired(ctx context.Context) (int, error) {
	if rm.retention <= 0 {
		return 0, nil
	}

	cutoff := rm.now().Add(-rm.retention)
	purged, err := rm.store.DeleteProbeHistoryBefore(ctx, cutoff)
	if err != nil {
		return purged, fmt.Errorf("failed to purge history before %s: %w", cutoff.Format(time.RFC3339), err)
	}

	if purged > 0 {
		logrus.WithFields(logrus.Fields{
			"purged": purged,
			"cutoff": cutoff,
		}).Info("History retention purge completed")
	} else {
		logrus.Debug("No expired probe records to purge")
	}
	return purged, nil
}

// SchedulePeriodicPurge purges once immediately and then on every interval
// until ctx is cancelled.
func (rm *RetentionManager) SchedulePeriodicPurge(ctx context.Context, interval time.Duration) {
	go func() {
		if _, err := rm.PurgeExpired(ctx); err != nil {
			logrus.WithError(err).Error("Initial history purge failed")
		}

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				logrus.Debug("Stopping history retention janitor")
				return
			case <-ticker.C:
				if _, err := rm.PurgeExpired(ctx); err != nil {
					logrus.WithError(err).Error("Scheduled history purge failed")
				}
			}
		}
	}()

	logrus.WithFields(logrus.Fields{
		"interval":  interval,
		"retention": rm.retention,
	}).Info("Scheduled history retention purging")
}
