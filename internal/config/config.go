// Package config handles configuration loading, validation, and defaults for
// ransomwatch.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"ransomwatch/internal/detector"
)

// Config holds the complete monitor configuration.
type Config struct {
	// Watch configuration for the monitored folder.
	Watch WatchConfig `toml:"watch" json:"watch" yaml:"watch"`

	// Detector thresholds and suppression.
	Detector DetectorConfig `toml:"detector" json:"detector" yaml:"detector"`

	// Storage configuration for the SQLite event and alert log.
	Storage StorageConfig `toml:"storage" json:"storage" yaml:"storage"`

	// State configuration for the shared dashboard file.
	State StateConfig `toml:"state" json:"state" yaml:"state"`

	// Metrics configuration for the HTTP exporter.
	Metrics MetricsConfig `toml:"metrics" json:"metrics" yaml:"metrics"`

	// Notify configuration for desktop notifications.
	Notify NotifyConfig `toml:"notify" json:"notify" yaml:"notify"`

	// Logging configuration.
	Logging LoggingConfig `toml:"logging" json:"logging" yaml:"logging"`
}

// WatchConfig holds file watching configuration.
type WatchConfig struct {
	// Path is the directory to monitor.
	Path string `toml:"path" json:"path" yaml:"path"`

	// Recursive determines whether to watch subdirectories.
	Recursive bool `toml:"recursive" json:"recursive" yaml:"recursive"`

	// ExcludePatterns are glob patterns for paths to ignore.
	ExcludePatterns []string `toml:"exclude_patterns" json:"exclude_patterns" yaml:"exclude_patterns"`

	// RenamePairMs is how long a rename waits for its destination.
	RenamePairMs int `toml:"rename_pair_ms" json:"rename_pair_ms" yaml:"rename_pair_ms"`

	// QueueSize is the capacity of the event queue.
	QueueSize int `toml:"queue_size" json:"queue_size" yaml:"queue_size"`
}

// DetectorConfig holds the rule thresholds.
type DetectorConfig struct {
	WindowSeconds           int      `toml:"window_seconds" json:"window_seconds" yaml:"window_seconds"`
	MassChangeThreshold     int      `toml:"mass_change_threshold" json:"mass_change_threshold" yaml:"mass_change_threshold"`
	ExtensionSpikeThreshold int      `toml:"extension_spike_threshold" json:"extension_spike_threshold" yaml:"extension_spike_threshold"`
	EntropyAlertThreshold   float64  `toml:"entropy_alert_threshold" json:"entropy_alert_threshold" yaml:"entropy_alert_threshold"`
	EntropyMinIncrease      float64  `toml:"entropy_min_increase" json:"entropy_min_increase" yaml:"entropy_min_increase"`
	EntropyExtAllowlist     []string `toml:"entropy_ext_allowlist" json:"entropy_ext_allowlist" yaml:"entropy_ext_allowlist"`

	// EntropyMemorySize caps remembered entropy scores. 0 means unbounded.
	EntropyMemorySize int `toml:"entropy_memory_size" json:"entropy_memory_size" yaml:"entropy_memory_size"`

	Cooldown CooldownConfig `toml:"cooldown" json:"cooldown" yaml:"cooldown"`
}

// CooldownConfig holds per-rule alert suppression in seconds. An
// ExtensionSpikeSec of -1 follows detector.window_seconds.
type CooldownConfig struct {
	MassChangeSec     int `toml:"mass_change_sec" json:"mass_change_sec" yaml:"mass_change_sec"`
	ExtensionSpikeSec int `toml:"extension_spike_sec" json:"extension_spike_sec" yaml:"extension_spike_sec"`
	EntropySpikeSec   int `toml:"entropy_spike_sec" json:"entropy_spike_sec" yaml:"entropy_spike_sec"`
}

// StorageConfig holds persistence configuration.
type StorageConfig struct {
	// Enabled determines whether events and alerts are persisted.
	Enabled bool `toml:"enabled" json:"enabled" yaml:"enabled"`

	// Path is the path to the database file.
	Path string `toml:"path" json:"path" yaml:"path"`

	// BusyTimeoutMs is the SQLite busy timeout in milliseconds.
	BusyTimeoutMs int `toml:"busy_timeout_ms" json:"busy_timeout_ms" yaml:"busy_timeout_ms"`
}

// StateConfig holds the shared state file configuration.
type StateConfig struct {
	Enabled   bool   `toml:"enabled" json:"enabled" yaml:"enabled"`
	Path      string `toml:"path" json:"path" yaml:"path"`
	MaxEvents int    `toml:"max_events" json:"max_events" yaml:"max_events"`
	MaxAlerts int    `toml:"max_alerts" json:"max_alerts" yaml:"max_alerts"`
}

// MetricsConfig holds the metrics exporter configuration.
type MetricsConfig struct {
	Enabled   bool   `toml:"enabled" json:"enabled" yaml:"enabled"`
	Addr      string `toml:"addr" json:"addr" yaml:"addr"`
	Namespace string `toml:"namespace" json:"namespace" yaml:"namespace"`
}

// NotifyConfig holds desktop notification configuration.
type NotifyConfig struct {
	Enabled   bool   `toml:"enabled" json:"enabled" yaml:"enabled"`
	AppName   string `toml:"app_name" json:"app_name" yaml:"app_name"`
	TimeoutMs int    `toml:"timeout_ms" json:"timeout_ms" yaml:"timeout_ms"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	// Level is the log level: "debug", "info", "warn", "error".
	Level string `toml:"level" json:"level" yaml:"level"`

	// Format is the log format: "text" or "json".
	Format string `toml:"format" json:"format" yaml:"format"`

	// Output is the log output: "stdout", "stderr", "file", or "both".
	Output string `toml:"output" json:"output" yaml:"output"`

	// FilePath is the path to the log file.
	FilePath string `toml:"file_path" json:"file_path" yaml:"file_path"`

	// LogEvents logs every canonical event at debug level.
	LogEvents bool `toml:"log_events" json:"log_events" yaml:"log_events"`

	MaxSizeMB  int  `toml:"max_size_mb" json:"max_size_mb" yaml:"max_size_mb"`
	MaxBackups int  `toml:"max_backups" json:"max_backups" yaml:"max_backups"`
	MaxAgeDays int  `toml:"max_age_days" json:"max_age_days" yaml:"max_age_days"`
	Compress   bool `toml:"compress" json:"compress" yaml:"compress"`
}

// CooldownFollowsWindow makes the extension-spike cooldown equal to the
// window length, so one saturation of the window raises one alert.
const CooldownFollowsWindow = -1

// DefaultConfig returns a configuration with the stock thresholds.
func DefaultConfig() *Config {
	dir := DataDir()
	det := detector.DefaultConfig()

	return &Config{
		Watch: WatchConfig{
			Path:            filepath.Join("data", "watch_folder"),
			Recursive:       true,
			ExcludePatterns: []string{},
			RenamePairMs:    50,
			QueueSize:       1024,
		},
		Detector: DetectorConfig{
			WindowSeconds:           int(det.Window / time.Second),
			MassChangeThreshold:     det.MassChangeThreshold,
			ExtensionSpikeThreshold: det.ExtensionSpikeThreshold,
			EntropyAlertThreshold:   det.EntropyAlertThreshold,
			EntropyMinIncrease:      det.EntropyMinIncrease,
			EntropyExtAllowlist:     append([]string{}, det.EntropyAllowlist...),
			EntropyMemorySize:       det.EntropyMemorySize,
			Cooldown: CooldownConfig{
				MassChangeSec:     int(det.Cooldowns.MassChange / time.Second),
				ExtensionSpikeSec: CooldownFollowsWindow,
				EntropySpikeSec:   int(det.Cooldowns.EntropySpike / time.Second),
			},
		},
		Storage: StorageConfig{
			Enabled:       true,
			Path:          filepath.Join(dir, "ransomwatch.db"),
			BusyTimeoutMs: 5000,
		},
		State: StateConfig{
			Enabled:   true,
			Path:      filepath.Join(dir, "state.json"),
			MaxEvents: 500,
			MaxAlerts: 200,
		},
		Metrics: MetricsConfig{
			Enabled:   false,
			Addr:      "127.0.0.1:9464",
			Namespace: "ransomwatch",
		},
		Notify: NotifyConfig{
			Enabled:   false,
			AppName:   "ransomwatch",
			TimeoutMs: 10000,
		},
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "text",
			Output:     "stderr",
			FilePath:   filepath.Join(dir, "ransomwatch.log"),
			MaxSizeMB:  50,
			MaxBackups: 5,
			MaxAgeDays: 30,
			Compress:   true,
		},
	}
}

// Load reads configuration from the specified path.
// If the file doesn't exist, returns default configuration.
// Supports TOML, JSON, and YAML formats based on file extension.
func Load(path string) (*Config, error) {
	if path == "" {
		path = ConfigPath()
	}

	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.ApplyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("read config file: %w", err)
	}

	if err := decode(path, data, cfg); err != nil {
		return nil, err
	}

	cfg.ApplyEnvOverrides()
	return cfg, nil
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	return ValidateConfig(c)
}

// EnsureDirectories creates the parent directories of every output file.
func (c *Config) EnsureDirectories() error {
	var dirs []string
	if c.Storage.Enabled {
		dirs = append(dirs, filepath.Dir(c.Storage.Path))
	}
	if c.State.Enabled {
		dirs = append(dirs, filepath.Dir(c.State.Path))
	}
	if c.Logging.Output == "file" || c.Logging.Output == "both" {
		dirs = append(dirs, filepath.Dir(c.Logging.FilePath))
	}

	for _, dir := range dirs {
		if dir == "" || dir == "." {
			continue
		}
		if err := os.MkdirAll(dir, 0700); err != nil {
			return fmt.Errorf("create directory %s: %w", dir, err)
		}
	}
	return nil
}

// ApplyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables are prefixed with RANSOMWATCH_. Unparsable numeric
// values are ignored.
func (c *Config) ApplyEnvOverrides() {
	if v := os.Getenv("RANSOMWATCH_WATCH_PATH"); v != "" {
		c.Watch.Path = v
	}
	if v := os.Getenv("RANSOMWATCH_EXCLUDE"); v != "" {
		c.Watch.ExcludePatterns = splitList(v)
	}

	envInt("RANSOMWATCH_WINDOW_SECONDS", &c.Detector.WindowSeconds)
	envInt("RANSOMWATCH_MASS_CHANGE_THRESHOLD", &c.Detector.MassChangeThreshold)
	envInt("RANSOMWATCH_EXTENSION_SPIKE_THRESHOLD", &c.Detector.ExtensionSpikeThreshold)
	envFloat("RANSOMWATCH_ENTROPY_ALERT_THRESHOLD", &c.Detector.EntropyAlertThreshold)
	if v := os.Getenv("RANSOMWATCH_ENTROPY_EXT_ALLOWLIST"); v != "" {
		c.Detector.EntropyExtAllowlist = splitList(v)
	}

	if v := os.Getenv("RANSOMWATCH_STORAGE_PATH"); v != "" {
		c.Storage.Path = v
	}
	if v := os.Getenv("RANSOMWATCH_STATE_PATH"); v != "" {
		c.State.Path = v
	}
	if v := os.Getenv("RANSOMWATCH_METRICS_ADDR"); v != "" {
		c.Metrics.Addr = v
		c.Metrics.Enabled = true
	}

	if v := os.Getenv("RANSOMWATCH_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("RANSOMWATCH_LOG_PATH"); v != "" {
		c.Logging.FilePath = v
	}
}

// Clone returns a deep copy of the configuration.
func (c *Config) Clone() *Config {
	clone := *c
	clone.Watch.ExcludePatterns = append([]string{}, c.Watch.ExcludePatterns...)
	clone.Detector.EntropyExtAllowlist = append([]string{}, c.Detector.EntropyExtAllowlist...)
	return &clone
}

// DetectorConfig projects the configuration onto the detector's immutable config.
func (c *Config) DetectorConfig() detector.Config {
	d := c.Detector
	extCooldown := d.Cooldown.ExtensionSpikeSec
	if extCooldown == CooldownFollowsWindow {
		extCooldown = d.WindowSeconds
	}
	return detector.Config{
		Window:                  time.Duration(d.WindowSeconds) * time.Second,
		MassChangeThreshold:     d.MassChangeThreshold,
		ExtensionSpikeThreshold: d.ExtensionSpikeThreshold,
		EntropyAlertThreshold:   d.EntropyAlertThreshold,
		EntropyMinIncrease:      d.EntropyMinIncrease,
		EntropyAllowlist:        append([]string(nil), d.EntropyExtAllowlist...),
		EntropyMemorySize:       d.EntropyMemorySize,
		Cooldowns: detector.Cooldowns{
			MassChange:     time.Duration(d.Cooldown.MassChangeSec) * time.Second,
			ExtensionSpike: time.Duration(extCooldown) * time.Second,
			EntropySpike:   time.Duration(d.Cooldown.EntropySpikeSec) * time.Second,
		},
	}
}

// RenamePair returns the rename pairing window.
func (c *Config) RenamePair() time.Duration {
	return time.Duration(c.Watch.RenamePairMs) * time.Millisecond
}

// NotifyTimeout returns the notification display timeout.
func (c *Config) NotifyTimeout() time.Duration {
	return time.Duration(c.Notify.TimeoutMs) * time.Millisecond
}

// BusyTimeout returns the SQLite busy timeout.
func (c *Config) BusyTimeout() time.Duration {
	return time.Duration(c.Storage.BusyTimeoutMs) * time.Millisecond
}

func envInt(key string, dst *int) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func envFloat(key string, dst *float64) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
