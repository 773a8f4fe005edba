package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ransomwatch/internal/config"
	"ransomwatch/internal/logging"
	"ransomwatch/internal/model"
	"ransomwatch/internal/state"
	"ransomwatch/internal/store"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	cfg := config.DefaultConfig()
	cfg.Watch.Path = filepath.Join(dir, "watch")
	cfg.Storage.Path = filepath.Join(dir, "ransomwatch.db")
	cfg.State.Path = filepath.Join(dir, "state.json")
	require.NoError(t, os.MkdirAll(cfg.Watch.Path, 0755))
	require.NoError(t, cfg.Validate())
	return cfg
}

func TestPipelineDetectsRenameBurst(t *testing.T) {
	cfg := testConfig(t)
	logger, err := logging.New(&logging.Config{Writer: io.Discard})
	require.NoError(t, err)

	// Seeded before the watcher starts so only the renames are observed.
	for i := 0; i < 11; i++ {
		src := filepath.Join(cfg.Watch.Path, fmt.Sprintf("doc_%d.txt", i))
		require.NoError(t, os.WriteFile(src, []byte("hello world\n"), 0644))
	}

	p, err := newPipeline(cfg, logger)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.run(ctx) }()
	time.Sleep(200 * time.Millisecond)

	for i := 0; i < 11; i++ {
		src := filepath.Join(cfg.Watch.Path, fmt.Sprintf("doc_%d.txt", i))
		require.NoError(t, os.Rename(src, filepath.Join(cfg.Watch.Path, fmt.Sprintf("doc_%d.locked", i))))
	}

	require.Eventually(t, func() bool {
		st, err := state.Read(cfg.State.Path)
		if err != nil {
			return false
		}
		var moved, spikes int
		for _, ev := range st.Events {
			if ev.Type == string(model.KindMoved) {
				moved++
			}
		}
		for _, a := range st.Alerts {
			if a.Rule == string(model.RuleExtensionSpike) {
				spikes++
			}
		}
		return moved == 11 && spikes > 0
	}, 5*time.Second, 50*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("pipeline did not stop")
	}

	st, err := store.Open(cfg.Storage.Path)
	require.NoError(t, err)
	defer st.Close()

	counts, err := st.AlertCounts(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, counts[model.RuleExtensionSpike])

	events, err := st.RecentEvents(context.Background(), 100)
	require.NoError(t, err)
	var moved int
	for _, ev := range events {
		if ev.Kind == model.KindMoved {
			moved++
			assert.Equal(t, ".txt", ev.ExtBefore)
			assert.Equal(t, ".locked", ev.ExtAfter)
		}
	}
	assert.Equal(t, 11, moved)
}

func TestPipelineMissingWatchFolder(t *testing.T) {
	cfg := testConfig(t)
	cfg.Watch.Path = filepath.Join(t.TempDir(), "missing")
	cfg.Storage.Enabled = false

	logger, err := logging.New(&logging.Config{Writer: io.Discard})
	require.NoError(t, err)

	p, err := newPipeline(cfg, logger)
	require.NoError(t, err)
	assert.Error(t, p.run(context.Background()))
}

func TestPipelineIgnoresOwnOutputs(t *testing.T) {
	cfg := testConfig(t)
	data := filepath.Join(cfg.Watch.Path, "data")
	cfg.Storage.Path = filepath.Join(data, "ransomwatch.db")
	cfg.State.Path = filepath.Join(data, "state.json")
	cfg.Logging.Output = "file"
	cfg.Logging.FilePath = filepath.Join(data, "ransomwatch.log")
	require.NoError(t, cfg.EnsureDirectories())

	logger, err := newLogger(cfg)
	require.NoError(t, err)
	defer logger.Close()

	p, err := newPipeline(cfg, logger)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.run(ctx) }()
	time.Sleep(200 * time.Millisecond)

	user := filepath.Join(cfg.Watch.Path, "one.txt")
	require.NoError(t, os.WriteFile(user, []byte("hello\n"), 0644))

	require.Eventually(t, func() bool {
		st, err := state.Read(cfg.State.Path)
		return err == nil && len(st.Events) > 0
	}, 5*time.Second, 50*time.Millisecond)

	// Every recorded event rewrites the state file and the database; give
	// any feedback time to show up.
	time.Sleep(1500 * time.Millisecond)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("pipeline did not stop")
	}

	st, err := state.Read(cfg.State.Path)
	require.NoError(t, err)
	assert.Empty(t, st.Alerts)
	assert.LessOrEqual(t, len(st.Events), 2, "only the created and modified events of one.txt")
	for _, ev := range st.Events {
		assert.Equal(t, user, ev.SrcPath)
	}
}
