package watcher

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"

	"ransomwatch/internal/model"
)

func newStarted(t *testing.T, root string, opts ...Option) *Watcher {
	t.Helper()
	w, err := New(root, opts...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := w.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(func() { w.Stop() })
	return w
}

// waitFor reads notifications until one matches kind and src, skipping
// unrelated ones (a WriteFile yields created followed by modified).
func waitFor(t *testing.T, w *Watcher, kind model.Kind, src string) model.Notification {
	t.Helper()
	deadline := time.After(3 * time.Second)
	for {
		select {
		case n, ok := <-w.Events():
			if !ok {
				t.Fatalf("events channel closed waiting for %s %s", kind, src)
			}
			if n.Kind == kind && n.SrcPath == src {
				return n
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %s %s", kind, src)
		}
	}
}

func TestStartRejectsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "file.txt")
	if err := os.WriteFile(path, []byte("x"), 0600); err != nil {
		t.Fatalf("write: %v", err)
	}
	w, err := New(path)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := w.Start(); !errors.Is(err, ErrNotDirectory) {
		t.Fatalf("expected ErrNotDirectory, got %v", err)
	}
}

func TestStartMissingRoot(t *testing.T) {
	w, err := New(filepath.Join(t.TempDir(), "missing"))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := w.Start(); err == nil {
		t.Fatal("expected error for missing root")
	}
}

func TestStopIdempotent(t *testing.T) {
	w := newStarted(t, t.TempDir())
	if err := w.Stop(); err != nil {
		t.Fatalf("first Stop: %v", err)
	}
	if err := w.Stop(); err != nil {
		t.Fatalf("second Stop: %v", err)
	}
	if _, ok := <-w.Events(); ok {
		t.Error("events channel should be closed")
	}
}

func TestCreateModifyDelete(t *testing.T) {
	dir := t.TempDir()
	w := newStarted(t, dir)
	path := filepath.Join(w.Root(), "report.docx")

	if err := os.WriteFile(path, []byte("draft"), 0600); err != nil {
		t.Fatalf("write: %v", err)
	}
	waitFor(t, w, model.KindCreated, path)

	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if _, err := f.WriteString(" more"); err != nil {
		t.Fatalf("append: %v", err)
	}
	f.Close()
	waitFor(t, w, model.KindModified, path)

	if err := os.Remove(path); err != nil {
		t.Fatalf("remove: %v", err)
	}
	waitFor(t, w, model.KindDeleted, path)
}

func TestRenameWithinTree(t *testing.T) {
	dir := t.TempDir()
	w := newStarted(t, dir)
	src := filepath.Join(w.Root(), "photo.jpg")
	dst := filepath.Join(w.Root(), "photo.jpg.locked")

	if err := os.WriteFile(src, []byte("jpeg"), 0600); err != nil {
		t.Fatalf("write: %v", err)
	}
	waitFor(t, w, model.KindCreated, src)

	if err := os.Rename(src, dst); err != nil {
		t.Fatalf("rename: %v", err)
	}
	n := waitFor(t, w, model.KindMoved, src)
	if n.DestPath != dst {
		t.Errorf("expected dest %s, got %s", dst, n.DestPath)
	}
}

func TestRenameOutOfTreeIsDelete(t *testing.T) {
	dir := t.TempDir()
	outside := t.TempDir()
	w := newStarted(t, dir)
	src := filepath.Join(w.Root(), "notes.txt")

	if err := os.WriteFile(src, []byte("notes"), 0600); err != nil {
		t.Fatalf("write: %v", err)
	}
	waitFor(t, w, model.KindCreated, src)

	if err := os.Rename(src, filepath.Join(outside, "notes.txt")); err != nil {
		t.Fatalf("rename: %v", err)
	}
	waitFor(t, w, model.KindDeleted, src)
}

func TestRecursiveNewDirectory(t *testing.T) {
	dir := t.TempDir()
	w := newStarted(t, dir)
	sub := filepath.Join(w.Root(), "nested")

	if err := os.Mkdir(sub, 0700); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	// Let the loop add the new directory before writing into it.
	time.Sleep(200 * time.Millisecond)

	path := filepath.Join(sub, "a.txt")
	if err := os.WriteFile(path, []byte("a"), 0600); err != nil {
		t.Fatalf("write: %v", err)
	}
	waitFor(t, w, model.KindCreated, path)
}

func TestTranslate(t *testing.T) {
	root := t.TempDir()
	w, err := New(root, WithExclude("*.swp", "cache/*"))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer w.Stop()

	a := filepath.Join(w.Root(), "a.txt")
	b := filepath.Join(w.Root(), "a.enc")

	out, _ := w.translate(fsnotify.Event{Name: a, Op: fsnotify.Chmod})
	if len(out) != 0 {
		t.Errorf("chmod should be ignored, got %v", out)
	}

	out, _ = w.translate(fsnotify.Event{Name: filepath.Join(w.Root(), ".a.txt.swp"), Op: fsnotify.Write})
	if len(out) != 0 {
		t.Errorf("excluded base name should be ignored, got %v", out)
	}
	out, _ = w.translate(fsnotify.Event{Name: filepath.Join(w.Root(), "cache", "x"), Op: fsnotify.Write})
	if len(out) != 0 {
		t.Errorf("excluded relative path should be ignored, got %v", out)
	}

	out, armed := w.translate(fsnotify.Event{Name: a, Op: fsnotify.Rename})
	if len(out) != 0 || !armed {
		t.Fatalf("rename should arm pairing, got out=%v armed=%v", out, armed)
	}
	out, _ = w.translate(fsnotify.Event{Name: b, Op: fsnotify.Create})
	if len(out) != 1 || out[0].Kind != model.KindMoved || out[0].SrcPath != a || out[0].DestPath != b {
		t.Fatalf("expected moved a -> b, got %v", out)
	}

	// An unrelated event flushes the pending rename first, keeping order.
	w.translate(fsnotify.Event{Name: a, Op: fsnotify.Rename})
	out, _ = w.translate(fsnotify.Event{Name: b, Op: fsnotify.Write})
	if len(out) != 2 || out[0].Kind != model.KindDeleted || out[1].Kind != model.KindModified {
		t.Fatalf("expected deleted then modified, got %v", out)
	}

	w.translate(fsnotify.Event{Name: a, Op: fsnotify.Rename})
	out = w.flushPending()
	if len(out) != 1 || out[0].Kind != model.KindDeleted || out[0].SrcPath != a {
		t.Fatalf("expected flushed delete, got %v", out)
	}
	if out = w.flushPending(); len(out) != 0 {
		t.Errorf("second flush should be empty, got %v", out)
	}
}

func TestIgnoreOutputFiles(t *testing.T) {
	root := t.TempDir()
	data := filepath.Join(root, "data")
	w, err := New(root, WithIgnore(filepath.Join(data, "ransomwatch.db"), filepath.Join(data, "state.json")))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer w.Stop()

	ignored := []string{
		"ransomwatch.db",
		"ransomwatch.db-wal",
		"ransomwatch.db-shm",
		"state.json",
		"state.json.lock",
		"state.json.tmp.0123abcd",
	}
	for _, name := range ignored {
		for _, op := range []fsnotify.Op{fsnotify.Create, fsnotify.Write, fsnotify.Remove, fsnotify.Rename} {
			out, armed := w.translate(fsnotify.Event{Name: filepath.Join(data, name), Op: op})
			if len(out) != 0 || armed {
				t.Errorf("%s %s should be ignored, got out=%v armed=%v", op, name, out, armed)
			}
		}
	}

	kept := []string{
		filepath.Join(data, "state.jsonl"),
		filepath.Join(data, "notes.txt"),
		filepath.Join(root, "state.json"),
	}
	for _, path := range kept {
		out, _ := w.translate(fsnotify.Event{Name: path, Op: fsnotify.Write})
		if len(out) != 1 || out[0].Kind != model.KindModified || out[0].SrcPath != path {
			t.Errorf("%s should be reported, got %v", path, out)
		}
	}
}
