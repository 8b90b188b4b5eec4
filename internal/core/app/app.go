// Package app wires configuration, the repository client, the journal and the monitor together.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"slices"
	"sync"
	"time"

	"go.uber.org/multierr"

	"revwatch/internal/core/config"
	"revwatch/internal/core/errors"
	"revwatch/internal/core/monitor"
	"revwatch/internal/core/ports"
	"revwatch/internal/core/watcher"
	"revwatch/internal/data/changes"
	"revwatch/internal/data/gitrepo"
	"revwatch/internal/data/journal"
	"revwatch/internal/data/p4cli"
	"revwatch/internal/engine/archive"
	"revwatch/internal/shared/observability"
	"revwatch/internal/shared/util"
)

const shutdownTimeout = 5 * time.Second

type App struct {
	Config     *config.Config
	ConfigPath string
	Monitor    *monitor.Monitor
	Client     ports.RepositoryClient

	journal         *journal.Store
	writer          *journalWriter
	watcher         *config.Watcher
	refs            *watcher.RefWatcher
	shutdownTracing func(context.Context) error

	mu      sync.Mutex
	applied config.Config
	closed  bool
}

// LoadConfig reads path, applies REVWATCH_* overrides, resolves relative paths
// against the file and validates the result.
func LoadConfig(path string) (*config.Config, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	config.ApplyEnvOverrides(cfg)

	cwd, err := os.Getwd()
	if err != nil {
		return nil, err
	}
	if err := config.ResolvePaths(cfg, path, cwd); err != nil {
		return nil, err
	}
	if err := multierr.Combine(config.Validate(cfg)...); err != nil {
		return nil, err
	}
	return cfg, nil
}

// OpenClient builds the repository client named by repository.driver, rate limited
// and instrumented.
func OpenClient(cfg *config.Config) (ports.RepositoryClient, error) {
	var inner ports.RepositoryClient
	switch cfg.Repository.Driver {
	case "git":
		client, err := gitrepo.Open(cfg.Repository.Path, cfg.Client.DiffCacheSize)
		if err != nil {
			return nil, err
		}
		inner = client
	case "p4":
		inner = p4cli.New(p4cli.Options{
			Bin:     cfg.Repository.P4Bin,
			Port:    cfg.Repository.P4Port,
			User:    cfg.Repository.P4User,
			Client:  cfg.Repository.P4Client,
			Timeout: cfg.Repository.CommandTimeout,
		})
	default:
		return nil, errors.New(errors.CodeValidationError, fmt.Sprintf("unknown repository driver %q", cfg.Repository.Driver))
	}
	return util.NewRateLimitedClient(inner, cfg.Client.RateLimit, cfg.Client.Burst), nil
}

// New opens the configured repository and builds the app around it.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	client, err := OpenClient(cfg)
	if err != nil {
		return nil, err
	}
	return NewWithClient(ctx, cfg, client)
}

// NewWithClient builds the app around an existing client. The monitor is not started.
func NewWithClient(ctx context.Context, cfg *config.Config, client ports.RepositoryClient) (*App, error) {
	a := &App{
		Config:  cfg,
		Client:  client,
		applied: *cfg,
	}

	if cfg.Observability.EnableTracing {
		shutdown, err := observability.SetupTracing(ctx, cfg.Observability.OTLPEndpoint)
		if err != nil {
			return nil, fmt.Errorf("setup tracing: %w", err)
		}
		a.shutdownTracing = shutdown
	}

	var cycleJournal ports.CycleJournal
	if cfg.DB.Enabled {
		store, err := journal.Open(cfg.DB.Path, journalTarget(cfg))
		if err != nil {
			return nil, multierr.Append(err, a.Close())
		}
		a.journal = store
		a.writer = newJournalWriter(store, defaultJournalQueue, cfg.DB.KeepCycles)
		cycleJournal = a.writer
	}

	a.Monitor = monitor.New(client, monitorOptions(cfg, cycleJournal))
	return a, nil
}

func monitorOptions(cfg *config.Config, j ports.CycleJournal) monitor.Options {
	return monitor.Options{
		WatchPaths:     slices.Clone(cfg.Repository.WatchPaths),
		CodeExtensions: slices.Clone(cfg.Monitor.CodeExtensions),
		Retention:      cfg.Monitor.Retention,
		PollInterval:   cfg.Monitor.PollInterval,
		ClassifySlack:  cfg.Monitor.ClassifySlack,
		StopTimeout:    cfg.Monitor.StopTimeout,
		Author:         cfg.Monitor.Author,
		Archive: archive.Options{
			ConfigPath:   cfg.Archive.ConfigPath,
			Section:      cfg.Archive.Section,
			Key:          cfg.Archive.Key,
			MaxRevisions: cfg.Archive.MaxRevisions,
		},
		Rewrite: changes.NewAuthorRewriter(cfg.Rewrite.Marker, cfg.Rewrite.Replacement),
		Journal: j,
	}
}

func journalTarget(cfg *config.Config) string {
	if cfg.Repository.Driver == "p4" {
		return fmt.Sprintf("p4:%s/%s", cfg.Repository.P4Port, cfg.Repository.P4Client)
	}
	return "git:" + cfg.Repository.Path
}

// Start launches the monitor, the git ref watcher when enabled and, when
// ConfigPath is set, the config reload watcher.
func (a *App) Start(ctx context.Context) error {
	if err := a.Monitor.Start(ctx); err != nil {
		return err
	}
	a.startRefWatcher()
	if a.ConfigPath == "" {
		return nil
	}
	a.watcher = config.NewWatcher(a.ConfigPath, LoadConfig, a.ApplyConfig)
	if err := a.watcher.Start(ctx); err != nil {
		slog.Warn("config watcher unavailable, hot reload disabled", "path", a.ConfigPath, "error", err)
		a.watcher = nil
	}
	return nil
}

func (a *App) startRefWatcher() {
	repo := a.Config.Repository
	if !repo.WatchRefs || repo.Driver != "git" {
		return
	}
	w, err := watcher.NewRefWatcher(repo.Path, repo.RefDebounce, nil, func(refs []string) {
		slog.Debug("git refs moved, refreshing", "refs", refs)
		a.Monitor.RequestRefresh()
	})
	if err == nil {
		err = w.Start()
		if err != nil {
			_ = w.Close()
		}
	}
	if err != nil {
		slog.Warn("ref watcher unavailable, relying on polling", "path", repo.Path, "error", err)
		return
	}
	a.refs = w
}

// ApplyConfig takes the settings of a reloaded file that can change without a
// restart. Anything else is logged and ignored until the next start.
func (a *App) ApplyConfig(cfg *config.Config) {
	a.mu.Lock()
	prev := a.applied
	a.applied = *cfg
	a.mu.Unlock()

	if cfg.Monitor.Retention != prev.Monitor.Retention {
		slog.Info("retention target changed", "from", prev.Monitor.Retention, "to", cfg.Monitor.Retention)
		a.Monitor.SetRetentionTarget(cfg.Monitor.Retention)
	}
	if cfg.Monitor.PollInterval != prev.Monitor.PollInterval {
		slog.Info("poll interval changed", "from", prev.Monitor.PollInterval, "to", cfg.Monitor.PollInterval)
		a.Monitor.SetPollInterval(cfg.Monitor.PollInterval)
	}
	if restartRequired(prev, *cfg) {
		slog.Warn("config change requires a restart to take effect", "path", a.ConfigPath)
	}
	a.Monitor.RequestRefresh()
}

func restartRequired(prev, next config.Config) bool {
	return prev.Repository.Driver != next.Repository.Driver ||
		prev.Repository.Path != next.Repository.Path ||
		prev.Repository.WatchRefs != next.Repository.WatchRefs ||
		!slices.Equal(prev.Repository.WatchPaths, next.Repository.WatchPaths) ||
		!slices.Equal(prev.Monitor.CodeExtensions, next.Monitor.CodeExtensions) ||
		prev.Archive != next.Archive ||
		prev.Rewrite != next.Rewrite ||
		prev.DB.Enabled != next.DB.Enabled ||
		prev.DB.Path != next.DB.Path
}

// RecentCycles lists journaled cycles, newest first. It is empty when the journal is disabled.
func (a *App) RecentCycles(ctx context.Context, limit int) ([]ports.CycleRecord, error) {
	if a.writer == nil {
		return []ports.CycleRecord{}, nil
	}
	return a.writer.Recent(ctx, limit)
}

func (a *App) JournalEnabled() bool {
	return a.writer != nil
}

// Close stops everything the app started. It is safe to call more than once.
func (a *App) Close() error {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return nil
	}
	a.closed = true
	a.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	var err error
	if a.watcher != nil {
		a.watcher.Stop()
	}
	if a.refs != nil {
		err = multierr.Append(err, a.refs.Close())
	}
	if a.Monitor != nil {
		err = multierr.Append(err, a.Monitor.Dispose())
	}
	if a.writer != nil {
		err = multierr.Append(err, a.writer.stop(ctx))
	}
	if a.journal != nil {
		err = multierr.Append(err, a.journal.Close())
	}
	if a.shutdownTracing != nil {
		err = multierr.Append(err, a.shutdownTracing(ctx))
	}
	return err
}
