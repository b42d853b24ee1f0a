// internal/config/notifications.go - notification sink configuration
package config

import (
	"fmt"
	"text/template"
	"time"
)

type NotificationConfig struct {
	Enabled  bool           `yaml:"enabled"`
	Slack    SlackConfig    `yaml:"slack"`
	Pushover PushoverConfig `yaml:"pushover"`
	Throttle ThrottleConfig `yaml:"throttle"`
	// Title and Template render every notification; see notifications.Render.
	Title    string `yaml:"title"`
	Template string `yaml:"template"`
}

type SlackConfig struct {
	Enabled    bool     `yaml:"enabled"`
	WebhookURL string   `yaml:"webhook_url"`
	Channel    string   `yaml:"channel,omitempty"`
	Username   string   `yaml:"username,omitempty"`
	Kinds      []string `yaml:"kinds"` // checked, problem
}

type PushoverConfig struct {
	Enabled    bool        `yaml:"enabled"`
	APIToken   string      `yaml:"api_token"`
	UserKey    string      `yaml:"user_key"`
	Priority   int         `yaml:"priority"` // -2 (silent) to 2 (emergency)
	Retry      int         `yaml:"retry"`    // emergency priority only (seconds)
	Expire     int         `yaml:"expire"`   // emergency priority only (seconds)
	Sound      string      `yaml:"sound"`
	Device     string      `yaml:"device,omitempty"`
	Kinds      []string    `yaml:"kinds"`
	QuietHours *QuietHours `yaml:"quiet_hours,omitempty"`
}

// QuietHours defines when notifications should be suppressed
type QuietHours struct {
	Enabled   bool   `yaml:"enabled"`
	StartHour int    `yaml:"start_hour"` // 0-23
	EndHour   int    `yaml:"end_hour"`   // 0-23
	Timezone  string `yaml:"timezone"`   // IANA timezone, e.g., "America/New_York"
}

// ThrottleConfig limits problem notifications per monitor and overall.
type ThrottleConfig struct {
	Enabled       bool          `yaml:"enabled"`
	Window        time.Duration `yaml:"window"`
	MaxPerMonitor int           `yaml:"max_per_monitor"`
	MaxTotal      int           `yaml:"max_total"`
}

const (
	DefaultNotificationTitle    = "Raven: {{.MonitorName}}"
	DefaultNotificationTemplate = "{{.MonitorName}} was just checked, response code was `{{.ResponseCode}}`{{if .Error}}: {{.Error}}{{end}} » {{.URL}}"
)

func mergeNotificationConfig(main *NotificationConfig, partial *NotificationConfig) {
	main.Enabled = partial.Enabled
	if partial.Title != "" {
		main.Title = partial.Title
	}
	if partial.Template != "" {
		main.Template = partial.Template
	}
	if partial.Slack.Enabled {
		main.Slack = partial.Slack
	}
	if partial.Pushover.Enabled {
		main.Pushover = partial.Pushover
	}
	if partial.Throttle.Enabled {
		main.Throttle = partial.Throttle
	}
}

func setNotificationDefaults(n *NotificationConfig) {
	if n.Title == "" {
		n.Title = DefaultNotificationTitle
	}
	if n.Template == "" {
		n.Template = DefaultNotificationTemplate
	}
	if len(n.Slack.Kinds) == 0 {
		n.Slack.Kinds = []string{"problem"}
	}
	if n.Slack.Username == "" {
		n.Slack.Username = "raven"
	}
	if len(n.Pushover.Kinds) == 0 {
		n.Pushover.Kinds = []string{"problem"}
	}
	if n.Pushover.Sound == "" {
		n.Pushover.Sound = "pushover"
	}
	if n.Throttle.Window == 0 {
		n.Throttle.Window = 15 * time.Minute
	}
	if n.Throttle.MaxPerMonitor == 0 {
		n.Throttle.MaxPerMonitor = 5
	}
	if n.Throttle.MaxTotal == 0 {
		n.Throttle.MaxTotal = 20
	}
	if n.Pushover.QuietHours != nil && n.Pushover.QuietHours.Timezone == "" {
		n.Pushover.QuietHours.Timezone = "UTC"
	}
}

func validateNotifications(n *NotificationConfig) error {
	if _, err := template.New("title").Parse(n.Title); err != nil {
		return fmt.Errorf("notifications.title: %w", err)
	}
	if _, err := template.New("message").Parse(n.Template); err != nil {
		return fmt.Errorf("notifications.template: %w", err)
	}

	if !n.Enabled {
		return nil
	}

	if err := validateKinds("notifications.slack.kinds", n.Slack.Kinds); err != nil {
		return err
	}
	if err := validateKinds("notifications.pushover.kinds", n.Pushover.Kinds); err != nil {
		return err
	}

	if n.Slack.Enabled && n.Slack.WebhookURL == "" {
		return fmt.Errorf("notifications.slack.webhook_url is required when Slack is enabled")
	}

	p := n.Pushover
	if p.Enabled {
		if p.APIToken == "" {
			return fmt.Errorf("notifications.pushover.api_token is required when Pushover is enabled")
		}
		if p.UserKey == "" {
			return fmt.Errorf("notifications.pushover.user_key is required when Pushover is enabled")
		}
		if p.Priority < -2 || p.Priority > 2 {
			return fmt.Errorf("notifications.pushover.priority must be between -2 and 2")
		}
		// Emergency priority requires retry and expire
		if p.Priority == 2 {
			if p.Retry < 30 {
				return fmt.Errorf("notifications.pushover.retry must be at least 30 seconds for emergency priority")
			}
			if p.Expire < 60 || p.Expire > 10800 {
				return fmt.Errorf("notifications.pushover.expire must be between 60 and 10800 seconds for emergency priority")
			}
		}
		if q := p.QuietHours; q != nil && q.Enabled {
			if q.StartHour < 0 || q.StartHour > 23 || q.EndHour < 0 || q.EndHour > 23 {
				return fmt.Errorf("notifications.pushover.quiet_hours hours must be between 0 and 23")
			}
			if _, err := time.LoadLocation(q.Timezone); err != nil {
				return fmt.Errorf("notifications.pushover.quiet_hours.timezone: %w", err)
			}
		}
	}

	if n.Throttle.Enabled && (n.Throttle.MaxPerMonitor < 1 || n.Throttle.MaxTotal < 1) {
		return fmt.Errorf("notifications.throttle limits must be at least 1")
	}
	return nil
}

func validateKinds(field string, kinds []string) error {
	for _, k := range kinds {
		if k != "checked" && k != "problem" {
			return fmt.Errorf("%s: unknown event kind %q", field, k)
		}
	}
	return nil
}
