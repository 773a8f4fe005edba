// Package simulate generates benign filesystem activity that exercises the
// detection rules: bulk modifications, renames to a ".locked" suffix, and
// new files. It never encrypts or destroys content.
package simulate

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const (
	seedFiles     = 10
	renameChance  = 0.25
	createChance  = 0.20
	lockedSuffix  = ".locked"
	defaultPeriod = 200 * time.Millisecond
)

// Stats counts what a run did.
type Stats struct {
	Seeded   int
	Modified int
	Renamed  int
	Created  int
	Reseeded int
}

// Option configures a Generator.
type Option func(*Generator)

// WithInterval sets the pause between iterations.
func WithInterval(d time.Duration) Option {
	return func(g *Generator) { g.interval = d }
}

// WithRand sets the random source. Tests use a seeded one.
func WithRand(r *rand.Rand) Option {
	return func(g *Generator) { g.rng = r }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(g *Generator) { g.logger = l }
}

// Generator produces activity inside one directory.
type Generator struct {
	dir      string
	interval time.Duration
	rng      *rand.Rand
	logger   *slog.Logger

	files []string
	stats Stats
}

// New returns a generator for dir.
func New(dir string, opts ...Option) *Generator {
	g := &Generator{
		dir:      dir,
		interval: defaultPeriod,
		rng:      rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0)),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Run seeds the directory and generates activity until duration elapses or
// ctx is cancelled. Individual file errors are logged and skipped.
func (g *Generator) Run(ctx context.Context, duration time.Duration) (Stats, error) {
	if err := os.MkdirAll(g.dir, 0755); err != nil {
		return g.stats, fmt.Errorf("create test folder: %w", err)
	}

	content := strings.Repeat("hello world\n", 10)
	for i := 0; i < seedFiles; i++ {
		p := filepath.Join(g.dir, fmt.Sprintf("doc_%d.txt", i))
		if err := os.WriteFile(p, []byte(content), 0644); err != nil {
			g.logger.Warn("seed file failed", "path", p, "error", err)
			continue
		}
		g.files = append(g.files, p)
		g.stats.Seeded++
	}

	deadline := time.Now().Add(duration)
	ticker := time.NewTicker(g.interval)
	defer ticker.Stop()

	for time.Now().Before(deadline) {
		g.step()

		select {
		case <-ctx.Done():
			return g.stats, ctx.Err()
		case <-ticker.C:
		}
	}
	return g.stats, nil
}

func (g *Generator) step() {
	g.prune()

	if len(g.files) == 0 {
		p := filepath.Join(g.dir, fmt.Sprintf("doc_reseed_%d.txt", time.Now().UnixNano()))
		if err := os.WriteFile(p, []byte("reseed\n"), 0644); err != nil {
			g.logger.Warn("reseed failed", "path", p, "error", err)
			return
		}
		g.files = append(g.files, p)
		g.stats.Reseeded++
	}

	g.modify(g.pick())

	if g.rng.Float64() < renameChance && len(g.files) > 0 {
		g.lock(g.rng.IntN(len(g.files)))
	}

	if g.rng.Float64() < createChance {
		p := filepath.Join(g.dir, fmt.Sprintf("new_%d.txt", time.Now().UnixNano()))
		if err := os.WriteFile(p, []byte("new file\n"), 0644); err == nil {
			g.files = append(g.files, p)
			g.stats.Created++
		}
	}
}

// prune drops files that were renamed or deleted behind our back.
func (g *Generator) prune() {
	kept := g.files[:0]
	for _, p := range g.files {
		if _, err := os.Stat(p); err == nil {
			kept = append(kept, p)
		}
	}
	g.files = kept
}

func (g *Generator) pick() string {
	return g.files[g.rng.IntN(len(g.files))]
}

func (g *Generator) modify(p string) {
	f, err := os.OpenFile(p, os.O_APPEND|os.O_WRONLY, 0)
	if err != nil {
		return
	}
	defer f.Close()

	if _, err := f.WriteString("update-" + g.randomWord(20) + "\n"); err == nil {
		g.stats.Modified++
	}
}

// lock swaps the file's extension for ".locked". The content is untouched.
func (g *Generator) lock(i int) {
	old := g.files[i]
	renamed := strings.TrimSuffix(old, filepath.Ext(old)) + lockedSuffix
	if renamed == old {
		return
	}
	if err := os.Rename(old, renamed); err != nil {
		return
	}
	g.files[i] = renamed
	g.stats.Renamed++
}

func (g *Generator) randomWord(n int) string {
	b := make([]byte, n)
	for i := range b {
		b[i] = byte('a' + g.rng.IntN(26))
	}
	return string(b)
}
