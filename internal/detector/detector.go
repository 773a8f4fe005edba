package detector

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"
	"time"

	"ransomwatch/internal/entropy"
	"ransomwatch/internal/model"
	"ransomwatch/internal/normalize"
)

// Stats is a point-in-time view of detector state.
type Stats struct {
	WindowLen      int
	MemoryLen      int
	EntropySkipped uint64
}

// Detector aggregates canonical events in a sliding window and evaluates
// the mass-change, extension-spike and entropy-spike rules after each one.
//
// A Detector is owned by a single goroutine; see Engine.
type Detector struct {
	cfg      Config
	allow    map[string]struct{}
	window   *Window
	memory   *entropy.Memory
	suppress *suppressor
	now      func() time.Time
	logger   *slog.Logger

	entropySkipped uint64
}

// Option configures a Detector.
type Option func(*Detector)

// WithClock replaces time.Now. Tests use it to drive the window.
func WithClock(now func() time.Time) Option {
	return func(d *Detector) { d.now = now }
}

// WithLogger sets the logger used for skipped samples and fired rules.
func WithLogger(l *slog.Logger) Option {
	return func(d *Detector) { d.logger = l }
}

// New creates a Detector for cfg.
func New(cfg Config, opts ...Option) (*Detector, error) {
	if cfg.Window <= 0 {
		return nil, fmt.Errorf("detector: window must be positive, got %s", cfg.Window)
	}
	if cfg.MassChangeThreshold <= 0 || cfg.ExtensionSpikeThreshold <= 0 {
		return nil, errors.New("detector: thresholds must be positive")
	}

	memory, err := entropy.NewMemory(cfg.EntropyMemorySize)
	if err != nil {
		return nil, fmt.Errorf("detector: entropy memory: %w", err)
	}

	d := &Detector{
		cfg:      cfg,
		allow:    cfg.allowSet(),
		window:   NewWindow(cfg.Window),
		memory:   memory,
		suppress: newSuppressor(),
		now:      time.Now,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

// Config returns the configuration the detector was built with.
func (d *Detector) Config() Config {
	return d.cfg
}

// Normalize builds the canonical event for n stamped with the detector clock.
func (d *Detector) Normalize(n model.Notification) model.CanonicalEvent {
	return normalize.Event(n, d.now())
}

// Record adds ev to the window, trims it, and runs every rule. It returns
// the alerts raised, in rule order.
func (d *Detector) Record(ev model.CanonicalEvent) []model.Alert {
	now := d.now()
	d.window.Add(ev, now)

	var alerts []model.Alert
	if a, ok := d.massChange(now); ok {
		alerts = append(alerts, a)
	}
	if a, ok := d.extensionSpike(now); ok {
		alerts = append(alerts, a)
	}
	if a, ok := d.entropySpike(ev, now); ok {
		alerts = append(alerts, a)
	}
	return alerts
}

// Window exposes the current window for inspection.
func (d *Detector) Window() *Window {
	return d.window
}

// Stats returns counters describing the detector state.
func (d *Detector) Stats() Stats {
	return Stats{
		WindowLen:      d.window.Len(),
		MemoryLen:      d.memory.Len(),
		EntropySkipped: d.entropySkipped,
	}
}

func (d *Detector) windowSeconds() int {
	return int(d.cfg.Window / time.Second)
}

// massChange fires when the window holds at least MassChangeThreshold
// events, then cuts the window back so one flood does not alert on every
// subsequent event.
func (d *Detector) massChange(now time.Time) (model.Alert, bool) {
	n := d.window.Len()
	if n < d.cfg.MassChangeThreshold {
		return model.Alert{}, false
	}

	d.window.KeepLast(d.cfg.massChangeKeep())

	if !d.suppress.allow(model.RuleMassChange, "", now, d.cfg.Cooldowns.MassChange) {
		return model.Alert{}, false
	}
	return model.NewAlert(now, model.RuleMassChange, model.SeverityHigh,
		fmt.Sprintf("%d file events within %ds (threshold=%d).",
			n, d.windowSeconds(), d.cfg.MassChangeThreshold)), true
}

// extensionSpike fires when enough moves in the window changed the file
// suffix. Only moves count; a delete followed by a create with a new
// suffix does not.
func (d *Detector) extensionSpike(now time.Time) (model.Alert, bool) {
	changes := d.window.ExtensionChanges()
	if changes < d.cfg.ExtensionSpikeThreshold {
		return model.Alert{}, false
	}
	if !d.suppress.allow(model.RuleExtensionSpike, "", now, d.cfg.Cooldowns.ExtensionSpike) {
		return model.Alert{}, false
	}
	return model.NewAlert(now, model.RuleExtensionSpike, model.SeverityHigh,
		fmt.Sprintf("%d extension changes within %ds (threshold=%d).",
			changes, d.windowSeconds(), d.cfg.ExtensionSpikeThreshold)), true
}

// entropySpike samples the file behind a create or modify and fires when
// its score is high and rose sharply since the previous sample. The stored
// score is replaced on every successful sample.
func (d *Detector) entropySpike(ev model.CanonicalEvent, now time.Time) (model.Alert, bool) {
	if ev.Kind != model.KindCreated && ev.Kind != model.KindModified {
		return model.Alert{}, false
	}

	path := ev.Path()
	if ext := normalize.Extension(path); ext != "" {
		if _, ok := d.allow[ext]; !ok {
			return model.Alert{}, false
		}
	}

	score, err := entropy.File(path)
	if err != nil {
		// The file may be gone already (deleted or renamed right after
		// the write) or unreadable; neither is worth an alert.
		d.entropySkipped++
		if !errors.Is(err, fs.ErrNotExist) {
			d.logger.Debug("entropy sample skipped", "path", path, "error", err)
		}
		return model.Alert{}, false
	}

	prev := d.memory.Observe(path, score)
	if score < d.cfg.EntropyAlertThreshold || score-prev <= d.cfg.EntropyMinIncrease {
		return model.Alert{}, false
	}
	if !d.suppress.allow(model.RuleEntropySpike, path, now, d.cfg.Cooldowns.EntropySpike) {
		return model.Alert{}, false
	}
	return model.NewAlert(now, model.RuleEntropySpike, model.SeverityMedium,
		fmt.Sprintf("Entropy increased for %s: %.2f -> %.2f (threshold=%g).",
			filepath.Base(path), prev, score, d.cfg.EntropyAlertThreshold)), true
}
