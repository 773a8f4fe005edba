// Package state maintains the small JSON document a live dashboard polls:
// the most recent events and alerts, bounded in size.
//
// Every write re-reads the file, appends, truncates and rewrites it. The
// rewrite goes through a temporary file and a rename so readers never see
// a half-written document, though they may see one that is a write behind.
// Writers in different processes serialize on an advisory lock file.
package state

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"ransomwatch/internal/fsutil"
	"ransomwatch/internal/model"
)

// Default retention limits.
const (
	DefaultMaxEvents = 500
	DefaultMaxAlerts = 200
)

// State is the dashboard document.
type State struct {
	Events []model.EventRecord `json:"events"`
	Alerts []model.AlertRecord `json:"alerts"`
}

func empty() *State {
	return &State{
		Events: []model.EventRecord{},
		Alerts: []model.AlertRecord{},
	}
}

// Read loads the state at path. A missing, unparsable or malformed file is
// an empty state, not an error; only unexpected I/O failures are returned.
func Read(path string) (*State, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return empty(), nil
		}
		return empty(), fmt.Errorf("read state: %w", err)
	}
	return decode(data), nil
}

func decode(data []byte) *State {
	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		return empty()
	}
	if err := validate(doc); err != nil {
		return empty()
	}

	st := empty()
	if err := json.Unmarshal(data, st); err != nil {
		return empty()
	}
	if st.Events == nil {
		st.Events = []model.EventRecord{}
	}
	if st.Alerts == nil {
		st.Alerts = []model.AlertRecord{}
	}
	return st
}

// File is a sink that mirrors events and alerts into the state file.
type File struct {
	path      string
	maxEvents int
	maxAlerts int
	logger    *slog.Logger
	mu        sync.Mutex
}

// Option configures a File.
type Option func(*File)

// WithLimits overrides the retention limits.
func WithLimits(maxEvents, maxAlerts int) Option {
	return func(f *File) {
		if maxEvents > 0 {
			f.maxEvents = maxEvents
		}
		if maxAlerts > 0 {
			f.maxAlerts = maxAlerts
		}
	}
}

// WithLogger sets the logger used to report a discarded corrupt file.
func WithLogger(l *slog.Logger) Option {
	return func(f *File) { f.logger = l }
}

// NewFile returns a File writing to path. The parent directory is created.
func NewFile(path string, opts ...Option) (*File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create state directory: %w", err)
	}
	f := &File{
		path:      path,
		maxEvents: DefaultMaxEvents,
		maxAlerts: DefaultMaxAlerts,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f, nil
}

// Path returns the state file location.
func (f *File) Path() string {
	return f.path
}

// WriteEvent appends ev, keeping the newest maxEvents entries.
func (f *File) WriteEvent(_ context.Context, ev model.CanonicalEvent) error {
	return f.update(func(st *State) {
		st.Events = appendBounded(st.Events, ev.Record(), f.maxEvents)
	})
}

// WriteAlert appends a, keeping the newest maxAlerts entries.
func (f *File) WriteAlert(_ context.Context, a model.Alert) error {
	return f.update(func(st *State) {
		st.Alerts = appendBounded(st.Alerts, a.Record(), f.maxAlerts)
	})
}

// Close is a no-op; the file is rewritten on every call.
func (f *File) Close() error { return nil }

func (f *File) update(mutate func(*State)) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	lock, err := fsutil.LockPath(f.path)
	if err != nil {
		return fmt.Errorf("lock state: %w", err)
	}
	defer lock.Unlock()

	st, err := Read(f.path)
	if err != nil {
		f.logger.Warn("state file unreadable, starting empty", "path", f.path, "error", err)
	}
	mutate(st)

	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}
	return fsutil.WriteFile(f.path, data, 0644)
}

func appendBounded[T any](list []T, v T, limit int) []T {
	list = append(list, v)
	if len(list) > limit {
		list = append(list[:0:0], list[len(list)-limit:]...)
	}
	return list
}
