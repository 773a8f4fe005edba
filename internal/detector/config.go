// Package detector is the behavioral detection engine: a sliding window of
// canonical events and the rules evaluated against it after every event.
package detector

import (
	"strings"
	"time"
)

// Cooldowns is the per-rule alert suppression policy. A rule that fired is
// silenced for its cooldown; zero lets it fire on every qualifying event.
type Cooldowns struct {
	MassChange     time.Duration
	ExtensionSpike time.Duration
	EntropySpike   time.Duration
}

// Config is the immutable detector configuration.
type Config struct {
	// Window is the trailing interval of events kept for aggregate rules.
	Window time.Duration

	// MassChangeThreshold is the number of events in the window that
	// raises MASS_FILE_ACTIVITY.
	MassChangeThreshold int

	// ExtensionSpikeThreshold is the number of suffix-changing moves in
	// the window that raises EXTENSION_CHANGE_SPIKE.
	ExtensionSpikeThreshold int

	// EntropyAlertThreshold is the minimum score (bits/byte) for
	// ENTROPY_SPIKE.
	EntropyAlertThreshold float64

	// EntropyMinIncrease is the rise over the previous score of the same
	// path that must be exceeded for ENTROPY_SPIKE.
	EntropyMinIncrease float64

	// EntropyAllowlist lists the extensions sampled for entropy. Files
	// without an extension are always sampled.
	EntropyAllowlist []string

	// EntropyMemorySize caps the number of paths whose last score is
	// remembered. Zero means no cap.
	EntropyMemorySize int

	Cooldowns Cooldowns
}

// DefaultEntropyAllowlist is the set of plaintext and structured-text
// extensions sampled by default.
var DefaultEntropyAllowlist = []string{".txt", ".csv", ".log", ".json", ".md", ".html", ".js", ".css"}

// DefaultConfig returns the stock thresholds.
func DefaultConfig() Config {
	return Config{
		Window:                  20 * time.Second,
		MassChangeThreshold:     25,
		ExtensionSpikeThreshold: 10,
		EntropyAlertThreshold:   7.2,
		EntropyMinIncrease:      0.8,
		EntropyAllowlist:        append([]string(nil), DefaultEntropyAllowlist...),
		EntropyMemorySize:       10_000,
		Cooldowns: Cooldowns{
			ExtensionSpike: 20 * time.Second,
		},
	}
}

// massChangeKeep is the number of most recent events kept after
// MASS_FILE_ACTIVITY fires.
func (c Config) massChangeKeep() int {
	return max(5, c.MassChangeThreshold/4)
}

func (c Config) allowSet() map[string]struct{} {
	set := make(map[string]struct{}, len(c.EntropyAllowlist))
	for _, ext := range c.EntropyAllowlist {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext == "" {
			continue
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		set[ext] = struct{}{}
	}
	return set
}
