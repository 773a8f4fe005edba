package config

import (
	"errors"
	"fmt"
	"net"
	"path/filepath"
	"strings"
)

// ErrInvalidConfig is returned when validation fails.
var ErrInvalidConfig = errors.New("invalid configuration")

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("config: %s: %s", e.Field, e.Message)
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	var msgs []string
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

// Is lets errors.Is(err, ErrInvalidConfig) match a non-empty set.
func (e ValidationErrors) Is(target error) bool {
	return target == ErrInvalidConfig && len(e) > 0
}

// Fields returns the names of the offending fields.
func (e ValidationErrors) Fields() []string {
	fields := make([]string, 0, len(e))
	for _, err := range e {
		fields = append(fields, err.Field)
	}
	return fields
}

// ValidateConfig performs comprehensive validation of the configuration.
func ValidateConfig(c *Config) error {
	var errs ValidationErrors

	errs = append(errs, validateWatch(&c.Watch)...)
	errs = append(errs, validateDetector(&c.Detector)...)
	errs = append(errs, validateStorage(&c.Storage)...)
	errs = append(errs, validateState(&c.State)...)
	errs = append(errs, validateMetrics(&c.Metrics)...)
	errs = append(errs, validateNotify(&c.Notify)...)
	errs = append(errs, validateLogging(&c.Logging)...)

	if len(errs) > 0 {
		return errs
	}
	return nil
}

func validateWatch(w *WatchConfig) ValidationErrors {
	var errs ValidationErrors

	if strings.TrimSpace(w.Path) == "" {
		errs = append(errs, ValidationError{Field: "watch.path", Message: "path cannot be empty"})
	}
	if w.RenamePairMs < 1 || w.RenamePairMs > 5000 {
		errs = append(errs, ValidationError{
			Field:   "watch.rename_pair_ms",
			Message: "rename pairing window must be between 1 and 5000 ms",
		})
	}
	if w.QueueSize < 0 {
		errs = append(errs, ValidationError{Field: "watch.queue_size", Message: "queue size cannot be negative"})
	}
	for i, pattern := range w.ExcludePatterns {
		if !isValidGlobPattern(pattern) {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("watch.exclude_patterns[%d]", i),
				Message: fmt.Sprintf("invalid glob pattern: %s", pattern),
			})
		}
	}
	return errs
}

func validateDetector(d *DetectorConfig) ValidationErrors {
	var errs ValidationErrors

	if d.WindowSeconds < 1 {
		errs = append(errs, ValidationError{Field: "detector.window_seconds", Message: "window must be at least 1 second"})
	}
	if d.MassChangeThreshold < 1 {
		errs = append(errs, ValidationError{Field: "detector.mass_change_threshold", Message: "threshold must be at least 1"})
	}
	if d.ExtensionSpikeThreshold < 1 {
		errs = append(errs, ValidationError{Field: "detector.extension_spike_threshold", Message: "threshold must be at least 1"})
	}
	if d.EntropyAlertThreshold < 0 || d.EntropyAlertThreshold > 8 {
		errs = append(errs, ValidationError{
			Field:   "detector.entropy_alert_threshold",
			Message: "threshold must be between 0 and 8 bits per byte",
		})
	}
	if d.EntropyMinIncrease < 0 {
		errs = append(errs, ValidationError{Field: "detector.entropy_min_increase", Message: "minimum increase cannot be negative"})
	}
	if d.EntropyMemorySize < 0 {
		errs = append(errs, ValidationError{Field: "detector.entropy_memory_size", Message: "memory size cannot be negative"})
	}

	c := d.Cooldown
	if c.MassChangeSec < 0 || c.ExtensionSpikeSec < CooldownFollowsWindow || c.EntropySpikeSec < 0 {
		errs = append(errs, ValidationError{Field: "detector.cooldown", Message: "cooldowns cannot be negative"})
	}
	return errs
}

func validateStorage(s *StorageConfig) ValidationErrors {
	var errs ValidationErrors
	if !s.Enabled {
		return errs
	}
	if s.Path == "" {
		errs = append(errs, ValidationError{Field: "storage.path", Message: "database path is required"})
	}
	if s.BusyTimeoutMs < 0 {
		errs = append(errs, ValidationError{Field: "storage.busy_timeout_ms", Message: "busy timeout cannot be negative"})
	}
	return errs
}

func validateState(s *StateConfig) ValidationErrors {
	var errs ValidationErrors
	if !s.Enabled {
		return errs
	}
	if s.Path == "" {
		errs = append(errs, ValidationError{Field: "state.path", Message: "state path is required"})
	}
	if s.MaxEvents < 1 {
		errs = append(errs, ValidationError{Field: "state.max_events", Message: "must keep at least 1 event"})
	}
	if s.MaxAlerts < 1 {
		errs = append(errs, ValidationError{Field: "state.max_alerts", Message: "must keep at least 1 alert"})
	}
	return errs
}

func validateMetrics(m *MetricsConfig) ValidationErrors {
	var errs ValidationErrors
	if !m.Enabled {
		return errs
	}
	if _, _, err := net.SplitHostPort(m.Addr); err != nil {
		errs = append(errs, ValidationError{
			Field:   "metrics.addr",
			Message: fmt.Sprintf("invalid listen address %q: %v", m.Addr, err),
		})
	}
	return errs
}

func validateNotify(n *NotifyConfig) ValidationErrors {
	var errs ValidationErrors
	if !n.Enabled {
		return errs
	}
	if n.AppName == "" {
		errs = append(errs, ValidationError{Field: "notify.app_name", Message: "app name is required"})
	}
	if n.TimeoutMs < -1 {
		errs = append(errs, ValidationError{Field: "notify.timeout_ms", Message: "timeout must be -1 (server default) or more"})
	}
	return errs
}

func validateLogging(l *LoggingConfig) ValidationErrors {
	var errs ValidationErrors

	switch l.Level {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, ValidationError{
			Field:   "logging.level",
			Message: fmt.Sprintf("invalid log level: %s (valid: debug, info, warn, error)", l.Level),
		})
	}

	switch l.Format {
	case "text", "json":
	default:
		errs = append(errs, ValidationError{
			Field:   "logging.format",
			Message: fmt.Sprintf("invalid log format: %s (valid: text, json)", l.Format),
		})
	}

	switch l.Output {
	case "stdout", "stderr":
	case "file", "both":
		if l.FilePath == "" {
			errs = append(errs, ValidationError{
				Field:   "logging.file_path",
				Message: fmt.Sprintf("file path is required when output is '%s'", l.Output),
			})
		}
	default:
		errs = append(errs, ValidationError{
			Field:   "logging.output",
			Message: fmt.Sprintf("invalid log output: %s (valid: stdout, stderr, file, both)", l.Output),
		})
	}

	if l.MaxSizeMB < 1 {
		errs = append(errs, ValidationError{Field: "logging.max_size_mb", Message: "max size must be at least 1 MB"})
	}
	if l.MaxBackups < 0 {
		errs = append(errs, ValidationError{Field: "logging.max_backups", Message: "max backups cannot be negative"})
	}
	if l.MaxAgeDays < 0 {
		errs = append(errs, ValidationError{Field: "logging.max_age_days", Message: "max age cannot be negative"})
	}
	return errs
}

func isValidGlobPattern(pattern string) bool {
	if pattern == "" {
		return false
	}
	_, err := filepath.Match(pattern, "test")
	return err == nil
}
