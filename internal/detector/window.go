package detector

import (
	"time"

	"ransomwatch/internal/model"
)

// Window holds the events observed within a trailing interval, in arrival
// order. It is not safe for concurrent use.
type Window struct {
	span   time.Duration
	events []model.CanonicalEvent
}

// NewWindow returns an empty window spanning span.
func NewWindow(span time.Duration) *Window {
	return &Window{
		span:   span,
		events: make([]model.CanonicalEvent, 0, 64),
	}
}

// Add appends ev and drops every event older than now minus the span.
func (w *Window) Add(ev model.CanonicalEvent, now time.Time) {
	w.events = append(w.events, ev)
	w.Trim(now)
}

// Trim drops every event whose timestamp precedes now minus the span.
// Arrival order is usually but not strictly timestamp order, so every
// element is checked.
func (w *Window) Trim(now time.Time) int {
	cutoff := now.Add(-w.span)
	kept := w.events[:0]
	for _, ev := range w.events {
		if !ev.Timestamp.Before(cutoff) {
			kept = append(kept, ev)
		}
	}
	removed := len(w.events) - len(kept)
	clear(w.events[len(kept):])
	w.events = kept
	return removed
}

// KeepLast discards all but the n most recent events.
func (w *Window) KeepLast(n int) {
	if n < 0 {
		n = 0
	}
	if len(w.events) <= n {
		return
	}
	drop := len(w.events) - n
	copy(w.events, w.events[drop:])
	clear(w.events[n:])
	w.events = w.events[:n]
}

// Len returns the number of events in the window.
func (w *Window) Len() int {
	return len(w.events)
}

// Span returns the window length.
func (w *Window) Span() time.Duration {
	return w.span
}

// ExtensionChanges counts the moves in the window that changed the suffix.
func (w *Window) ExtensionChanges() int {
	n := 0
	for _, ev := range w.events {
		if ev.ExtensionChanged() {
			n++
		}
	}
	return n
}

// Events returns a copy of the window contents.
func (w *Window) Events() []model.CanonicalEvent {
	out := make([]model.CanonicalEvent, len(w.events))
	copy(out, w.events)
	return out
}
