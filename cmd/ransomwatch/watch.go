package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"ransomwatch/internal/config"
	"ransomwatch/internal/detector"
	"ransomwatch/internal/health"
	"ransomwatch/internal/logging"
	"ransomwatch/internal/metrics"
	"ransomwatch/internal/notify"
	"ransomwatch/internal/simulate"
	"ransomwatch/internal/sink"
	"ransomwatch/internal/state"
	"ransomwatch/internal/store"
	"ransomwatch/internal/watcher"
)

// pipeline is watcher -> engine -> sinks, plus the optional metrics server.
type pipeline struct {
	cfg     *config.Config
	logger  *logging.Logger
	watcher *watcher.Watcher
	engine  *detector.Engine
	sinks   *sink.Multi
	store   *store.Store
	server  *metrics.Server
	health  *health.Checker
}

func newPipeline(cfg *config.Config, logger *logging.Logger) (*pipeline, error) {
	p := &pipeline{cfg: cfg, logger: logger}

	det, err := detector.New(cfg.DetectorConfig(), detector.WithLogger(logger.WithComponent("detector")))
	if err != nil {
		return nil, fmt.Errorf("create detector: %w", err)
	}

	p.sinks = sink.NewMulti(sink.NewLog(logger.WithComponent("alerts"), cfg.Logging.LogEvents))

	if cfg.Storage.Enabled {
		st, err := store.OpenWithTimeout(cfg.Storage.Path, cfg.BusyTimeout())
		if err != nil {
			return nil, err
		}
		p.store = st
		p.sinks.Add(st)
	}

	if cfg.State.Enabled {
		f, err := state.NewFile(cfg.State.Path,
			state.WithLimits(cfg.State.MaxEvents, cfg.State.MaxAlerts),
			state.WithLogger(logger.WithComponent("state")),
		)
		if err != nil {
			p.sinks.Close()
			return nil, err
		}
		p.sinks.Add(f)
	}

	if cfg.Notify.Enabled {
		d, err := notify.Connect(cfg.Notify.AppName, cfg.NotifyTimeout())
		if err != nil {
			logger.Warn("desktop notifications unavailable", "error", err)
		} else {
			p.sinks.Add(d)
		}
	}

	engineOpts := []detector.EngineOption{detector.WithEngineLogger(logger.WithComponent("engine"))}
	if cfg.Metrics.Enabled {
		m := metrics.New(cfg.Metrics.Namespace)
		statePath := ""
		if cfg.State.Enabled {
			statePath = cfg.State.Path
		}
		p.health = health.NewChecker()
		p.server = metrics.NewServer(cfg.Metrics.Addr, m, statePath, p.health, logger.WithComponent("metrics"))
		engineOpts = append(engineOpts, detector.WithObserver(m))
	}
	p.engine = detector.NewEngine(det, p.sinks, engineOpts...)

	w, err := watcher.New(cfg.Watch.Path,
		watcher.WithRecursive(cfg.Watch.Recursive),
		watcher.WithExclude(cfg.Watch.ExcludePatterns...),
		watcher.WithIgnore(outputPaths(cfg)...),
		watcher.WithRenamePair(cfg.RenamePair()),
		watcher.WithBuffer(cfg.Watch.QueueSize),
		watcher.WithLogger(logger.WithComponent("watcher")),
	)
	if err != nil {
		p.sinks.Close()
		return nil, err
	}
	p.watcher = w

	if p.health != nil {
		p.health.Register("watcher", true, health.WatcherCheck(w.WatchedDirs))
		if p.store != nil {
			p.health.Register("store", true, health.DatabaseCheck(p.store.Ping))
		}
		if cfg.State.Enabled {
			p.health.Register("state", false, health.WritableDirCheck(filepath.Dir(cfg.State.Path)))
		}
	}
	return p, nil
}

// outputPaths lists the files ransomwatch itself writes. They may live
// inside the watched tree, and their writes must not be recorded as events.
func outputPaths(cfg *config.Config) []string {
	var paths []string
	if cfg.Storage.Enabled {
		paths = append(paths, cfg.Storage.Path)
	}
	if cfg.State.Enabled {
		paths = append(paths, cfg.State.Path)
		// Temp files of the writable-directory health check.
		paths = append(paths, filepath.Join(filepath.Dir(cfg.State.Path), ".health"))
	}
	if out := cfg.Logging.Output; out == "file" || out == "both" {
		// Rotated backups are named <stem>-<timestamp><ext>.
		log := cfg.Logging.FilePath
		paths = append(paths, log, strings.TrimSuffix(log, filepath.Ext(log)))
	}
	return paths
}

// run watches until ctx is done, then shuts everything down.
func (p *pipeline) run(ctx context.Context) error {
	if err := p.watcher.Start(); err != nil {
		p.sinks.Close()
		return fmt.Errorf("start watcher: %w", err)
	}
	if p.server != nil {
		p.server.Start()
		p.health.SetReady(true)
	}

	go func() {
		for err := range p.watcher.Errors() {
			p.logger.Warn("watch error", "error", err)
		}
	}()

	p.logger.Info("monitoring", "path", p.watcher.Root(), "window_seconds", p.cfg.Detector.WindowSeconds)
	runErr := p.engine.Run(ctx, p.watcher.Events())

	var errs []error
	if err := p.watcher.Stop(); err != nil {
		errs = append(errs, fmt.Errorf("stop watcher: %w", err))
	}
	if p.server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := p.server.Shutdown(shutdownCtx); err != nil {
			errs = append(errs, fmt.Errorf("stop metrics server: %w", err))
		}
		cancel()
	}
	if err := p.sinks.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close sinks: %w", err))
	}

	if runErr != nil && !errors.Is(runErr, context.Canceled) && !errors.Is(runErr, context.DeadlineExceeded) {
		errs = append(errs, runErr)
	}
	return errors.Join(errs...)
}

func prepare(args []string, name string, extra func(*flag.FlagSet)) (*config.Config, *logging.Logger, error) {
	fs := flag.NewFlagSet(name, flag.ExitOnError)
	path := fs.String("path", "", "folder to watch (overrides watch.path)")
	if extra != nil {
		extra(fs)
	}
	if err := fs.Parse(args); err != nil {
		return nil, nil, err
	}

	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}
	if *path != "" {
		cfg.Watch.Path = *path
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, nil, err
	}
	if err := os.MkdirAll(cfg.Watch.Path, 0755); err != nil {
		return nil, nil, fmt.Errorf("create watch folder: %w", err)
	}

	logger, err := newLogger(cfg)
	if err != nil {
		return nil, nil, err
	}
	logger.SetDefault()
	return cfg, logger, nil
}

func cmdWatch(args []string) error {
	cfg, logger, err := prepare(args, "watch", nil)
	if err != nil {
		return err
	}
	defer logger.Close()

	p, err := newPipeline(cfg, logger)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return p.run(ctx)
}

func cmdSafeTest(args []string) error {
	var seconds int
	cfg, logger, err := prepare(args, "safe-test", func(fs *flag.FlagSet) {
		fs.IntVar(&seconds, "seconds", 15, "how long to generate activity")
	})
	if err != nil {
		return err
	}
	defer logger.Close()

	p, err := newPipeline(cfg, logger)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	gen := simulate.New(cfg.Watch.Path, simulate.WithLogger(logger.WithComponent("simulate")))
	go func() {
		// Give the watcher time to register before generating activity.
		time.Sleep(500 * time.Millisecond)
		stats, err := gen.Run(ctx, time.Duration(seconds)*time.Second)
		if err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("safe test generator failed", "error", err)
		}
		logger.Info("safe test finished",
			"modified", stats.Modified,
			"renamed", stats.Renamed,
			"created", stats.Created,
		)
		// Let the engine drain the tail of the activity.
		time.Sleep(time.Second)
		cancel()
	}()

	fmt.Println("Running SAFE test generator (benign activity)...")
	if err := p.run(ctx); err != nil {
		return err
	}
	return printAlertSummary(cfg)
}
