// internal/notifications/service.go - notification event sink
package notifications

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"ravenwatch/internal/config"
	"ravenwatch/internal/monitoring"
)

// Channel delivers rendered messages to one destination.
type Channel interface {
	Name() string
	Kinds() []string
	Send(ctx context.Context, msg Message) error
}

// NotificationService is an event sink that renders events and forwards
// them to every channel subscribed to the event's kind.
type NotificationService struct {
	config    *config.NotificationConfig
	renderer  *Renderer
	channels  []Channel
	throttler *NotificationThrottler
}

func NewNotificationService(cfg *config.NotificationConfig) (*NotificationService, error) {
	renderer, err := NewRenderer(cfg.Title, cfg.Template)
	if err != nil {
		return nil, err
	}

	service := &NotificationService{
		config:    cfg,
		renderer:  renderer,
		throttler: NewNotificationThrottler(cfg.Throttle),
	}

	httpClient := &http.Client{Timeout: 30 * time.Second}
	if cfg.Enabled && cfg.Pushover.Enabled {
		service.channels = append(service.channels, NewPushoverService(cfg.Pushover, httpClient))
	}
	if cfg.Enabled && cfg.Slack.Enabled {
		service.channels = append(service.channels, NewSlackService(cfg.Slack, httpClient))
	}

	logrus.WithFields(logrus.Fields{
		"notifications_enabled": cfg.Enabled,
		"pushover_enabled":      cfg.Pushover.Enabled,
		"slack_enabled":         cfg.Slack.Enabled,
		"throttle_enabled":      cfg.Throttle.Enabled,
	}).Info("Notification service initialized")

	return service, nil
}

func (ns *NotificationService) Name() string { return "notifications" }

// Publish implements monitoring.EventSink.
func (ns *NotificationService) Publish(ctx context.Context, e monitoring.Event) error {
	if !ns.config.Enabled {
		return nil
	}

	var targets []Channel
	for _, ch := range ns.channels {
		if wants(ch.Kinds(), e.Kind) {
			targets = append(targets, ch)
		}
	}
	if len(targets) == 0 {
		return nil
	}

	if e.Kind == monitoring.EventProblem && !ns.throttler.Allow(e.MonitorID) {
		logrus.WithField("monitor", e.MonitorID).Debug("Notification throttled")
		return nil
	}

	msg, err := ns.renderer.Render(e)
	if err != nil {
		return err
	}

	var errs []error
	for _, ch := range targets {
		if err := ch.Send(ctx, msg); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", ch.Name(), err))
		}
	}
	return errors.Join(errs...)
}

// TestNotification sends message through every configured channel.
func (ns *NotificationService) TestNotification(ctx context.Context, message string) error {
	if !ns.config.Enabled || len(ns.channels) == 0 {
		return fmt.Errorf("notifications are not enabled or configured")
	}

	msg := Message{
		Title: "Raven Test Notification",
		Text:  message,
		Event: monitoring.Event{Healthy: true, ProbedAt: time.Now()},
	}
	var errs []error
	for _, ch := range ns.channels {
		if err := ch.Send(ctx, msg); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", ch.Name(), err))
		}
	}
	return errors.Join(errs...)
}

// GetStats returns notification statistics
func (ns *NotificationService) GetStats() map[string]interface{} {
	names := make([]string, 0, len(ns.channels))
	for _, ch := range ns.channels {
		names = append(names, ch.Name())
	}
	stats := map[string]interface{}{
		"enabled":          ns.config.Enabled,
		"channels":         names,
		"throttle_enabled": ns.config.Throttle.Enabled,
	}
	if ns.config.Throttle.Enabled {
		monitors, total := ns.throttler.Snapshot()
		stats["throttle_window"] = ns.config.Throttle.Window.String()
		stats["throttle_max_per_monitor"] = ns.config.Throttle.MaxPerMonitor
		stats["throttle_max_total"] = ns.config.Throttle.MaxTotal
		stats["throttle_monitor_count"] = monitors
		stats["throttle_total_recent"] = total
	}
	return stats
}

func wants(kinds []string, kind monitoring.EventKind) bool {
	for _, k := range kinds {
		if k == string(kind) {
			return true
		}
	}
	return false
}
