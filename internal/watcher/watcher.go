// Package watcher turns fsnotify events under a directory tree into
// ordered model.Notification values.
package watcher

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"ransomwatch/internal/model"
)

// DefaultRenamePair is how long a Rename waits for its matching Create.
const DefaultRenamePair = 50 * time.Millisecond

// ErrNotDirectory is returned when the watch root is not a directory.
var ErrNotDirectory = errors.New("watch root is not a directory")

// Option configures a Watcher.
type Option func(*Watcher)

// WithRecursive controls whether subdirectories are watched. Default true.
func WithRecursive(r bool) Option {
	return func(w *Watcher) { w.recursive = r }
}

// WithExclude ignores paths whose base name or root-relative path matches
// one of the filepath.Match patterns.
func WithExclude(patterns ...string) Option {
	return func(w *Watcher) { w.exclude = append(w.exclude, patterns...) }
}

// WithIgnore drops events for the given files and their sidecars: any name
// in the same directory that extends the file name with "-" or "." (such
// as "-wal", ".lock" or ".tmp.*"). Relative paths are made absolute.
func WithIgnore(paths ...string) Option {
	return func(w *Watcher) {
		for _, p := range paths {
			if p == "" {
				continue
			}
			if abs, err := filepath.Abs(p); err == nil {
				p = abs
			}
			w.ignore = append(w.ignore, filepath.Clean(p))
		}
	}
}

// WithRenamePair sets the rename pairing window.
func WithRenamePair(d time.Duration) Option {
	return func(w *Watcher) {
		if d > 0 {
			w.renamePair = d
		}
	}
}

// WithBuffer sets the capacity of the notification channel.
func WithBuffer(n int) Option {
	return func(w *Watcher) {
		if n >= 0 {
			w.buffer = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(w *Watcher) { w.logger = l }
}

// Watcher monitors a directory tree.
type Watcher struct {
	fsWatcher *fsnotify.Watcher
	root      string

	recursive  bool
	exclude    []string
	ignore     []string
	renamePair time.Duration
	buffer     int
	logger     *slog.Logger

	// Owned by the event loop.
	dirs    map[string]struct{}
	pending string

	events chan model.Notification
	errors chan error

	done     chan struct{}
	wg       sync.WaitGroup
	stopOnce sync.Once
	stopErr  error
}

// New creates a watcher for root. Call Start to begin delivering events.
func New(root string, opts ...Option) (*Watcher, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve watch root: %w", err)
	}

	w := &Watcher{
		root:       abs,
		recursive:  true,
		renamePair: DefaultRenamePair,
		buffer:     1024,
		logger:     slog.Default(),
		dirs:       make(map[string]struct{}),
		errors:     make(chan error, 16),
		done:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	w.events = make(chan model.Notification, w.buffer)

	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create fsnotify watcher: %w", err)
	}
	w.fsWatcher = fsWatcher
	return w, nil
}

// Root returns the absolute watch root.
func (w *Watcher) Root() string {
	return w.root
}

// Events returns the notification channel. It is closed by Stop.
func (w *Watcher) Events() <-chan model.Notification {
	return w.events
}

// Errors returns asynchronous watch errors. Errors are dropped when the
// channel is full.
func (w *Watcher) Errors() <-chan error {
	return w.errors
}

// Start adds the root (and, when recursive, every subdirectory) and starts
// the event loop.
func (w *Watcher) Start() error {
	info, err := os.Stat(w.root)
	if err != nil {
		w.fsWatcher.Close()
		return fmt.Errorf("stat watch root: %w", err)
	}
	if !info.IsDir() {
		w.fsWatcher.Close()
		return fmt.Errorf("%s: %w", w.root, ErrNotDirectory)
	}

	if err := w.addTree(w.root); err != nil {
		w.fsWatcher.Close()
		return err
	}

	w.wg.Add(1)
	go w.loop()
	return nil
}

// Stop shuts the watcher down and closes both channels. It is safe to call
// more than once.
func (w *Watcher) Stop() error {
	w.stopOnce.Do(func() {
		close(w.done)
		w.wg.Wait()
		w.stopErr = w.fsWatcher.Close()
		close(w.events)
		close(w.errors)
	})
	return w.stopErr
}

// WatchedDirs returns the number of directories currently watched.
func (w *Watcher) WatchedDirs() int {
	return len(w.fsWatcher.WatchList())
}

func (w *Watcher) addTree(dir string) error {
	if !w.recursive {
		return w.addDir(dir)
	}
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			// Vanished or unreadable subtrees are skipped.
			if path == dir {
				return err
			}
			return fs.SkipDir
		}
		if !d.IsDir() {
			return nil
		}
		if path != w.root && w.excluded(path) {
			return fs.SkipDir
		}
		return w.addDir(path)
	})
}

func (w *Watcher) addDir(dir string) error {
	if err := w.fsWatcher.Add(dir); err != nil {
		return fmt.Errorf("watch %s: %w", dir, err)
	}
	w.dirs[dir] = struct{}{}
	return nil
}

func (w *Watcher) loop() {
	defer w.wg.Done()

	timer := time.NewTimer(w.renamePair)
	timer.Stop()
	defer timer.Stop()

	for {
		var expire <-chan time.Time
		if w.pending != "" {
			expire = timer.C
		}

		select {
		case <-w.done:
			return

		case ev, ok := <-w.fsWatcher.Events:
			if !ok {
				return
			}
			out, armed := w.translate(ev)
			if armed {
				timer.Reset(w.renamePair)
			}
			for _, n := range out {
				if !w.emit(n) {
					return
				}
			}

		case <-expire:
			for _, n := range w.flushPending() {
				if !w.emit(n) {
					return
				}
			}

		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return
			}
			w.reportError(err)
		}
	}
}

// translate maps one fsnotify event to zero or more notifications. armed
// is true when a new rename started waiting for its pair.
func (w *Watcher) translate(ev fsnotify.Event) (out []model.Notification, armed bool) {
	name := filepath.Clean(ev.Name)
	if w.excluded(name) {
		return nil, false
	}

	if ev.Has(fsnotify.Create) {
		if info, err := os.Lstat(name); err == nil && info.IsDir() {
			out = w.flushPending()
			if w.recursive {
				if err := w.addTree(name); err != nil {
					w.reportError(err)
				}
			}
			return out, false
		}
		if w.pending != "" {
			src := w.pending
			w.pending = ""
			return []model.Notification{{Kind: model.KindMoved, SrcPath: src, DestPath: name}}, false
		}
		return []model.Notification{{Kind: model.KindCreated, SrcPath: name}}, false
	}

	// Anything other than a Create means the pending rename left the tree.
	out = w.flushPending()

	switch {
	case ev.Has(fsnotify.Rename):
		if w.forgetDir(name) {
			return out, false
		}
		w.pending = name
		return out, true
	case ev.Has(fsnotify.Remove):
		if w.forgetDir(name) {
			return out, false
		}
		return append(out, model.Notification{Kind: model.KindDeleted, SrcPath: name}), false
	case ev.Has(fsnotify.Write):
		if _, ok := w.dirs[name]; ok {
			return out, false
		}
		return append(out, model.Notification{Kind: model.KindModified, SrcPath: name}), false
	}
	return out, false
}

func (w *Watcher) flushPending() []model.Notification {
	if w.pending == "" {
		return nil
	}
	src := w.pending
	w.pending = ""
	return []model.Notification{{Kind: model.KindDeleted, SrcPath: src}}
}

func (w *Watcher) forgetDir(name string) bool {
	if _, ok := w.dirs[name]; !ok {
		return false
	}
	delete(w.dirs, name)
	return true
}

func (w *Watcher) excluded(path string) bool {
	if w.ignored(path) {
		return true
	}
	if len(w.exclude) == 0 {
		return false
	}
	base := filepath.Base(path)
	rel, err := filepath.Rel(w.root, path)
	if err != nil {
		rel = path
	}
	for _, pattern := range w.exclude {
		if ok, _ := filepath.Match(pattern, base); ok {
			return true
		}
		if ok, _ := filepath.Match(pattern, rel); ok {
			return true
		}
	}
	return false
}

func (w *Watcher) ignored(path string) bool {
	for _, p := range w.ignore {
		if path == p {
			return true
		}
		if rest, ok := strings.CutPrefix(path, p); ok && (rest[0] == '-' || rest[0] == '.') &&
			filepath.Dir(path) == filepath.Dir(p) {
			return true
		}
	}
	return false
}

// emit blocks until the consumer accepts n so ordering is preserved. It
// returns false when the watcher is stopping.
func (w *Watcher) emit(n model.Notification) bool {
	select {
	case w.events <- n:
		return true
	case <-w.done:
		return false
	}
}

func (w *Watcher) reportError(err error) {
	select {
	case w.errors <- err:
	default:
		w.logger.Warn("dropping watch error", "error", err)
	}
}
