// Package sink defines the destinations that receive canonical events and
// alerts, and combinators over them.
package sink

import (
	"context"
	"errors"

	"ransomwatch/internal/model"
)

// Sink receives every observed event and every fired alert.
type Sink interface {
	WriteEvent(ctx context.Context, ev model.CanonicalEvent) error
	WriteAlert(ctx context.Context, a model.Alert) error
	Close() error
}

// Multi fans out records to several sinks. A failing sink does not stop
// delivery to the ones after it.
type Multi struct {
	sinks []Sink
}

// NewMulti creates a Multi over sinks. Nil entries are skipped.
func NewMulti(sinks ...Sink) *Multi {
	m := &Multi{sinks: make([]Sink, 0, len(sinks))}
	for _, s := range sinks {
		if s != nil {
			m.sinks = append(m.sinks, s)
		}
	}
	return m
}

// Add appends s to the fan-out.
func (m *Multi) Add(s Sink) {
	if s != nil {
		m.sinks = append(m.sinks, s)
	}
}

// Len returns the number of wrapped sinks.
func (m *Multi) Len() int {
	return len(m.sinks)
}

// WriteEvent delivers ev to every sink and joins their errors.
func (m *Multi) WriteEvent(ctx context.Context, ev model.CanonicalEvent) error {
	var errs []error
	for _, s := range m.sinks {
		if err := s.WriteEvent(ctx, ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// WriteAlert delivers a to every sink and joins their errors.
func (m *Multi) WriteAlert(ctx context.Context, a model.Alert) error {
	var errs []error
	for _, s := range m.sinks {
		if err := s.WriteAlert(ctx, a); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Close closes every sink and joins their errors.
func (m *Multi) Close() error {
	var errs []error
	for _, s := range m.sinks {
		if err := s.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Discard drops everything.
type Discard struct{}

func (Discard) WriteEvent(context.Context, model.CanonicalEvent) error { return nil }
func (Discard) WriteAlert(context.Context, model.Alert) error          { return nil }
func (Discard) Close() error                                           { return nil }
