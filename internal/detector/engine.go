package detector

import (
	"context"
	"log/slog"
	"time"

	"ransomwatch/internal/model"
	"ransomwatch/internal/sink"
)

// Observer is notified of every processed event and fired alert. The
// metrics package implements it.
type Observer interface {
	ObserveEvent(ev model.CanonicalEvent)
	ObserveAlert(a model.Alert)
	ObserveRecord(elapsed time.Duration, stats Stats)
}

// Engine is the single consumer of filesystem notifications. It owns the
// Detector: notifications are normalized, recorded and evaluated strictly
// one at a time, in the order they were queued.
type Engine struct {
	det      *Detector
	sink     sink.Sink
	observer Observer
	logger   *slog.Logger
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithObserver attaches an Observer.
func WithObserver(o Observer) EngineOption {
	return func(e *Engine) { e.observer = o }
}

// WithEngineLogger sets the logger used for sink failures.
func WithEngineLogger(l *slog.Logger) EngineOption {
	return func(e *Engine) { e.logger = l }
}

// NewEngine wires det to s. A nil sink discards everything.
func NewEngine(det *Detector, s sink.Sink, opts ...EngineOption) *Engine {
	if s == nil {
		s = sink.Discard{}
	}
	e := &Engine{
		det:    det,
		sink:   s,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Run drains in until it is closed or ctx is done. It never returns early
// because of a failing sink or an unreadable file.
func (e *Engine) Run(ctx context.Context, in <-chan model.Notification) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case n, ok := <-in:
			if !ok {
				return nil
			}
			e.Handle(ctx, n)
		}
	}
}

// Handle processes a single notification and returns the alerts it raised.
// Callers other than Run must not invoke it concurrently.
func (e *Engine) Handle(ctx context.Context, n model.Notification) []model.Alert {
	if !n.Kind.Valid() {
		e.logger.Warn("ignoring notification with unknown kind", "kind", n.Kind, "path", n.SrcPath)
		return nil
	}

	start := time.Now()
	ev := e.det.Normalize(n)
	alerts := e.det.Record(ev)

	if err := e.sink.WriteEvent(ctx, ev); err != nil {
		e.logger.Error("event sink write failed", "path", ev.SrcPath, "error", err)
	}
	for _, a := range alerts {
		if err := e.sink.WriteAlert(ctx, a); err != nil {
			e.logger.Error("alert sink write failed", "rule", a.Rule, "error", err)
		}
	}

	if e.observer != nil {
		e.observer.ObserveEvent(ev)
		for _, a := range alerts {
			e.observer.ObserveAlert(a)
		}
		e.observer.ObserveRecord(time.Since(start), e.det.Stats())
	}
	return alerts
}

// Detector returns the engine's detector.
func (e *Engine) Detector() *Detector {
	return e.det
}
