// internal/config/env.go - .env loading and RAVEN_* overrides
package config

import (
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

// applyEnv loads a .env file next to the config file (or in the working
// directory) without clobbering variables already set, then applies the
// RAVEN_* overrides on top of the YAML values.
func applyEnv(cfg *Config, configDir string) {
	for _, candidate := range []string{filepath.Join(configDir, ".env"), ".env"} {
		if _, err := os.Stat(candidate); err != nil {
			continue
		}
		if err := godotenv.Load(candidate); err != nil {
			logrus.WithError(err).WithField("file", candidate).Warn("Failed to load env file")
		}
		break
	}

	overrides := []struct {
		key    string
		target *string
	}{
		{"RAVEN_PORT", &cfg.Server.Port},
		{"RAVEN_DATABASE_PATH", &cfg.Database.Path},
		{"RAVEN_HISTORY_BACKEND", &cfg.Database.HistoryBackend},
		{"RAVEN_SQLITE_PATH", &cfg.Database.SQLitePath},
		{"RAVEN_MYSQL_DSN", &cfg.Database.MySQLDSN},
		{"RAVEN_LOG_LEVEL", &cfg.Logging.Level},
		{"RAVEN_SLACK_WEBHOOK", &cfg.Notifications.Slack.WebhookURL},
		{"RAVEN_PUSHOVER_TOKEN", &cfg.Notifications.Pushover.APIToken},
		{"RAVEN_PUSHOVER_USER", &cfg.Notifications.Pushover.UserKey},
	}
	for _, o := range overrides {
		if v := os.Getenv(o.key); v != "" {
			*o.target = v
		}
	}
}
