// internal/config/config.go
package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultUserAgent is the browser signature probes identify themselves with.
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 6.1; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/40.0.2214.85 Safari/537.36"

type Config struct {
	Server        ServerConfig       `yaml:"server"`
	Database      DatabaseConfig     `yaml:"database"`
	Prometheus    PrometheusConfig   `yaml:"prometheus"`
	Monitoring    MonitoringConfig   `yaml:"monitoring"`
	Probe         ProbeConfig        `yaml:"probe"`
	Logging       LoggingConfig      `yaml:"logging"`
	Notifications NotificationConfig `yaml:"notifications"`
	Monitors      []MonitorConfig    `yaml:"monitors"`
	Include       IncludeConfig      `yaml:"include"`
}

type IncludeConfig struct {
	Directory string `yaml:"directory"`
	Pattern   string `yaml:"pattern"`
	Enabled   bool   `yaml:"enabled"`
}

type ServerConfig struct {
	Port         string          `yaml:"port"`
	ReadTimeout  time.Duration   `yaml:"read_timeout"`
	WriteTimeout time.Duration   `yaml:"write_timeout"`
	RateLimit    RateLimitConfig `yaml:"rate_limit"`
}

type RateLimitConfig struct {
	Enabled           bool    `yaml:"enabled"`
	RequestsPerSecond float64 `yaml:"requests_per_second"`
	Burst             int     `yaml:"burst"`
}

type DatabaseConfig struct {
	Path             string        `yaml:"path"`
	HistoryBackend   string        `yaml:"history_backend"` // boltdb, sqlite, mysql or memory
	SQLitePath       string        `yaml:"sqlite_path"`
	MySQLDSN         string        `yaml:"mysql_dsn"`
	HistoryRetention time.Duration `yaml:"history_retention"` // 0 keeps history forever
	CleanupInterval  time.Duration `yaml:"cleanup_interval"`
}

type PrometheusConfig struct {
	Enabled     bool   `yaml:"enabled"`
	MetricsPath string `yaml:"metrics_path"`
}

type MonitoringConfig struct {
	Interval    time.Duration `yaml:"interval"`
	BatchSize   int           `yaml:"batch_size"`
	Workers     int           `yaml:"workers"`
	RunOnStart  bool          `yaml:"run_on_start"`
	CheckOnSave *bool         `yaml:"check_on_save"`
}

// ShouldCheckOnSave reports whether a monitor is probed right after it is saved.
func (m MonitoringConfig) ShouldCheckOnSave() bool {
	return m.CheckOnSave == nil || *m.CheckOnSave
}

type ProbeConfig struct {
	Timeout      time.Duration `yaml:"timeout"`
	UserAgent    string        `yaml:"user_agent"`
	MaxBodyBytes int64         `yaml:"max_body_bytes"`
	DNS          DNSConfig     `yaml:"dns"`
}

// DNSConfig enables classification of transport failures with a direct
// query against Server.
type DNSConfig struct {
	Enabled bool          `yaml:"enabled"`
	Server  string        `yaml:"server"`
	Timeout time.Duration `yaml:"timeout"`
}

type LoggingConfig struct {
	Level      string `yaml:"level"`
	Format     string `yaml:"format"`
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
	Compress   bool   `yaml:"compress"`
}

type MonitorConfig struct {
	ID                 string `yaml:"id"`
	Name               string `yaml:"name"`
	URL                string `yaml:"url"`
	ExpectedStatusCode string `yaml:"expected_status_code,omitempty"`
	ExpectedLocation   string `yaml:"expected_location,omitempty"`
	RequiredSubstring  string `yaml:"required_substring,omitempty"`
}

// PartialConfig is the shape of an include file.
type PartialConfig struct {
	Monitors      []MonitorConfig     `yaml:"monitors,omitempty"`
	Notifications *NotificationConfig `yaml:"notifications,omitempty"`
}

func Load(filename string) (*Config, error) {
	// Load the main config file
	config, err := loadConfigFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to load main config file: %w", err)
	}

	// Process includes if enabled
	if config.Include.Enabled && config.Include.Directory != "" {
		if err := loadIncludes(config, filepath.Dir(filename)); err != nil {
			return nil, fmt.Errorf("failed to load includes: %w", err)
		}
	}

	applyEnv(config, filepath.Dir(filename))

	setDefaults(config)

	if err := validate(config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

func loadConfigFile(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	return &config, nil
}

func loadIncludes(config *Config, baseDir string) error {
	includeDir := config.Include.Directory

	// Make include directory relative to main config file if not absolute
	if !filepath.IsAbs(includeDir) {
		includeDir = filepath.Join(baseDir, includeDir)
	}

	if _, err := os.Stat(includeDir); os.IsNotExist(err) {
		return fmt.Errorf("include directory does not exist: %s", includeDir)
	}

	pattern := config.Include.Pattern
	if pattern == "" {
		pattern = "*.yaml"
	}

	matches, err := filepath.Glob(filepath.Join(includeDir, pattern))
	if err != nil {
		return fmt.Errorf("failed to glob include pattern: %w", err)
	}
	if pattern == "*.yaml" {
		ymlMatches, err := filepath.Glob(filepath.Join(includeDir, "*.yml"))
		if err != nil {
			return fmt.Errorf("failed to glob .yml files: %w", err)
		}
		matches = append(matches, ymlMatches...)
	}

	sort.Slice(matches, func(i, j int) bool {
		return filepath.Base(matches[i]) < filepath.Base(matches[j])
	})

	for _, match := range matches {
		if err := loadAndMergeInclude(config, match); err != nil {
			return fmt.Errorf("failed to load include file %s: %w", match, err)
		}
	}

	return nil
}

func loadAndMergeInclude(config *Config, filename string) error {
	data, err := os.ReadFile(filename)
	if err != nil {
		return fmt.Errorf("failed to read include file: %w", err)
	}

	var partial PartialConfig
	if err := yaml.Unmarshal(data, &partial); err != nil {
		return fmt.Errorf("failed to parse include file YAML: %w", err)
	}

	mergePartialConfig(config, &partial)
	return nil
}

func mergePartialConfig(config *Config, partial *PartialConfig) {
	if len(partial.Monitors) > 0 {
		mergeMonitors(config, partial.Monitors)
	}
	if partial.Notifications != nil {
		mergeNotificationConfig(&config.Notifications, partial.Notifications)
	}
}

// mergeMonitors appends new monitors and replaces ones with a matching ID.
func mergeMonitors(config *Config, monitors []MonitorConfig) {
	index := make(map[string]int, len(config.Monitors))
	for i, m := range config.Monitors {
		if m.ID != "" {
			index[m.ID] = i
		}
	}

	for _, m := range monitors {
		if i, exists := index[m.ID]; exists && m.ID != "" {
			config.Monitors[i] = m
			continue
		}
		config.Monitors = append(config.Monitors, m)
		if m.ID != "" {
			index[m.ID] = len(config.Monitors) - 1
		}
	}
}

func setDefaults(cfg *Config) {
	// Server defaults
	if cfg.Server.Port == "" {
		cfg.Server.Port = ":8000"
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = 15 * time.Second
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = 60 * time.Second
	}
	if cfg.Server.RateLimit.RequestsPerSecond == 0 {
		cfg.Server.RateLimit.RequestsPerSecond = 20
	}
	if cfg.Server.RateLimit.Burst == 0 {
		cfg.Server.RateLimit.Burst = 40
	}

	// Database defaults
	if cfg.Database.Path == "" {
		cfg.Database.Path = "./data/raven.db"
	}
	if cfg.Database.HistoryBackend == "" {
		cfg.Database.HistoryBackend = "boltdb"
	}
	if cfg.Database.SQLitePath == "" {
		cfg.Database.SQLitePath = filepath.Join(filepath.Dir(cfg.Database.Path), "history.sqlite")
	}
	if cfg.Database.CleanupInterval == 0 {
		cfg.Database.CleanupInterval = 6 * time.Hour
	}

	// Monitoring defaults
	if cfg.Monitoring.Interval == 0 {
		cfg.Monitoring.Interval = 5 * time.Minute
	}
	if cfg.Monitoring.BatchSize == 0 {
		cfg.Monitoring.BatchSize = 5
	}
	if cfg.Monitoring.Workers == 0 {
		cfg.Monitoring.Workers = 3
	}

	// Probe defaults
	if cfg.Probe.Timeout == 0 {
		cfg.Probe.Timeout = 30 * time.Second
	}
	if cfg.Probe.UserAgent == "" {
		cfg.Probe.UserAgent = DefaultUserAgent
	}
	if cfg.Probe.MaxBodyBytes == 0 {
		cfg.Probe.MaxBodyBytes = 1 << 20
	}
	if cfg.Probe.DNS.Server == "" {
		cfg.Probe.DNS.Server = "1.1.1.1:53"
	}
	if cfg.Probe.DNS.Timeout == 0 {
		cfg.Probe.DNS.Timeout = 3 * time.Second
	}

	// Prometheus defaults
	if cfg.Prometheus.MetricsPath == "" {
		cfg.Prometheus.MetricsPath = "/metrics"
	}

	// Logging defaults
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "text"
	}
	if cfg.Logging.MaxSizeMB == 0 {
		cfg.Logging.MaxSizeMB = 100
	}

	// Include defaults
	if cfg.Include.Pattern == "" {
		cfg.Include.Pattern = "*.yaml"
	}

	setNotificationDefaults(&cfg.Notifications)
}

func validate(cfg *Config) error {
	if cfg.Monitoring.Workers < 1 {
		return fmt.Errorf("monitoring.workers must be at least 1")
	}
	if cfg.Monitoring.BatchSize < 1 {
		return fmt.Errorf("monitoring.batch_size must be at least 1")
	}
	if cfg.Monitoring.Interval <= 0 {
		return fmt.Errorf("monitoring.interval must be positive")
	}
	if cfg.Probe.Timeout <= 0 {
		return fmt.Errorf("probe.timeout must be positive")
	}
	if cfg.Probe.MaxBodyBytes < 0 {
		return fmt.Errorf("probe.max_body_bytes cannot be negative")
	}

	switch cfg.Database.HistoryBackend {
	case "boltdb", "sqlite", "memory":
	case "mysql":
		if cfg.Database.MySQLDSN == "" {
			return fmt.Errorf("database.mysql_dsn is required for the mysql history backend")
		}
	default:
		return fmt.Errorf("database.history_backend must be one of boltdb, sqlite, mysql, memory")
	}
	if cfg.Database.HistoryRetention < 0 {
		return fmt.Errorf("database.history_retention cannot be negative")
	}

	if cfg.Logging.Format != "text" && cfg.Logging.Format != "json" {
		return fmt.Errorf("logging.format must be text or json")
	}

	if cfg.Server.RateLimit.Enabled && cfg.Server.RateLimit.RequestsPerSecond <= 0 {
		return fmt.Errorf("server.rate_limit.requests_per_second must be positive")
	}

	seen := make(map[string]bool)
	for i, m := range cfg.Monitors {
		if m.ID == "" {
			return fmt.Errorf("monitors[%d]: id is required", i)
		}
		if strings.Contains(m.ID, ":") {
			return fmt.Errorf("monitors[%d]: id %q must not contain ':'", i, m.ID)
		}
		if seen[m.ID] {
			return fmt.Errorf("monitors[%d]: duplicate id %q", i, m.ID)
		}
		seen[m.ID] = true
		if m.URL != "" && !IsValidURL(m.URL) {
			return fmt.Errorf("monitors[%d]: url %q must be an absolute http(s) URL", i, m.URL)
		}
	}

	if cfg.Include.Enabled {
		if !isValidGlobPattern(cfg.Include.Pattern) {
			return fmt.Errorf("include.pattern %q is not a valid file pattern", cfg.Include.Pattern)
		}
	}

	return validateNotifications(&cfg.Notifications)
}

// IsValidURL reports whether str is an absolute http or https URL.
func IsValidURL(str string) bool {
	u, err := url.Parse(str)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// isValidGlobPattern checks if a string is a valid glob pattern
func isValidGlobPattern(pattern string) bool {
	if strings.Contains(pattern, "/") || strings.Contains(pattern, "\\") {
		return false
	}
	_, err := filepath.Match(pattern, "test.yaml")
	return err == nil
}
