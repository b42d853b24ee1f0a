package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestLoad_Defaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	writeFile(t, path, `
monitors:
  - id: home
    url: https://example.com
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Monitoring.Interval != 5*time.Minute {
		t.Errorf("expected 5m interval, got %v", cfg.Monitoring.Interval)
	}
	if cfg.Monitoring.BatchSize != 5 {
		t.Errorf("expected batch size 5, got %d", cfg.Monitoring.BatchSize)
	}
	if cfg.Monitoring.Workers != 3 {
		t.Errorf("expected 3 workers, got %d", cfg.Monitoring.Workers)
	}
	if cfg.Probe.Timeout != 30*time.Second {
		t.Errorf("expected 30s probe timeout, got %v", cfg.Probe.Timeout)
	}
	if cfg.Probe.UserAgent != DefaultUserAgent {
		t.Errorf("unexpected user agent %q", cfg.Probe.UserAgent)
	}
	if cfg.Database.HistoryBackend != "boltdb" {
		t.Errorf("expected boltdb history, got %q", cfg.Database.HistoryBackend)
	}
	if !cfg.Monitoring.ShouldCheckOnSave() {
		t.Error("expected check_on_save to default to true")
	}
	if len(cfg.Notifications.Slack.Kinds) != 1 || cfg.Notifications.Slack.Kinds[0] != "problem" {
		t.Errorf("unexpected slack kinds %v", cfg.Notifications.Slack.Kinds)
	}
}

func TestLoad_IncludesMergeMonitors(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	writeFile(t, path, `
include:
  enabled: true
  directory: conf.d
monitors:
  - id: home
    url: https://example.com
`)
	writeFile(t, filepath.Join(dir, "conf.d", "10-more.yaml"), `
monitors:
  - id: home
    url: https://example.com/replaced
    required_substring: Welcome
  - id: api
    url: https://api.example.com/health
`)
	writeFile(t, filepath.Join(dir, "conf.d", "20-redirect.yml"), `
monitors:
  - id: old
    url: http://example.com/old
    expected_status_code: "301"
    expected_location: https://example.com/new
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(cfg.Monitors) != 3 {
		t.Fatalf("expected 3 monitors, got %d", len(cfg.Monitors))
	}
	if cfg.Monitors[0].URL != "https://example.com/replaced" || cfg.Monitors[0].RequiredSubstring != "Welcome" {
		t.Errorf("expected include to replace monitor, got %+v", cfg.Monitors[0])
	}
	if cfg.Monitors[2].ExpectedLocation != "https://example.com/new" {
		t.Errorf("expected .yml include to load, got %+v", cfg.Monitors[2])
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	writeFile(t, path, "logging:\n  level: info\n")
	writeFile(t, filepath.Join(dir, ".env"), "RAVEN_SLACK_WEBHOOK=https://hooks.example/abc\n")
	t.Setenv("RAVEN_LOG_LEVEL", "debug")
	t.Setenv("RAVEN_HISTORY_BACKEND", "sqlite")
	t.Cleanup(func() { os.Unsetenv("RAVEN_SLACK_WEBHOOK") })

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("expected env level override, got %q", cfg.Logging.Level)
	}
	if cfg.Database.HistoryBackend != "sqlite" {
		t.Errorf("expected sqlite backend, got %q", cfg.Database.HistoryBackend)
	}
	if cfg.Notifications.Slack.WebhookURL != "https://hooks.example/abc" {
		t.Errorf("expected webhook from .env, got %q", cfg.Notifications.Slack.WebhookURL)
	}
}

func TestLoad_ValidationErrors(t *testing.T) {
	cases := []struct {
		name string
		yaml string
		want string
	}{
		{"missing id", "monitors:\n  - url: https://example.com\n", "id is required"},
		{"duplicate id", "monitors:\n  - id: a\n  - id: a\n", "duplicate id"},
		{"colon in id", "monitors:\n  - id: a:b\n", "must not contain"},
		{"bad url", "monitors:\n  - id: a\n    url: ftp://example.com\n", "absolute http(s) URL"},
		{"bad backend", "database:\n  history_backend: cassandra\n", "history_backend"},
		{"mysql without dsn", "database:\n  history_backend: mysql\n", "mysql_dsn"},
		{"negative workers", "monitoring:\n  workers: -1\n", "workers"},
		{"bad format", "logging:\n  format: xml\n", "logging.format"},
		{"slack without webhook", "notifications:\n  enabled: true\n  slack:\n    enabled: true\n", "webhook_url"},
		{"bad kind", "notifications:\n  enabled: true\n  slack:\n    kinds: [recovered]\n", "unknown event kind"},
		{"pushover priority", "notifications:\n  enabled: true\n  pushover:\n    enabled: true\n    api_token: t\n    user_key: u\n    priority: 3\n", "priority"},
		{"bad template", "notifications:\n  template: \"{{.Broken\"\n", "notifications.template"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.yaml")
			writeFile(t, path, tc.yaml)
			_, err := Load(path)
			if err == nil {
				t.Fatalf("expected error containing %q", tc.want)
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Errorf("expected error containing %q, got %v", tc.want, err)
			}
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("expected error for missing config file")
	}
}
