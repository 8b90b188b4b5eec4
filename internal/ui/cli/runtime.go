package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/charmbracelet/lipgloss"
	ltable "github.com/charmbracelet/lipgloss/table"
	"go.uber.org/multierr"

	coreapp "revwatch/internal/core/app"
	"revwatch/internal/core/config"
	"revwatch/internal/core/ports"
)

func Run(args []string) int {
	opts, err := parseOptions(args)
	if err != nil {
		return 2
	}

	if opts.version {
		fmt.Printf("revwatch v%s\n", versionString)
		return 0
	}

	cleanupLogs := configureLogging(opts.ui, opts.verbose)
	defer cleanupLogs()

	cfg, cfgPath, err := loadConfig(opts.configPath)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		return 1
	}
	if author := strings.TrimSpace(opts.author); author != "" {
		cfg.Monitor.Author = author
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := coreapp.New(ctx, cfg)
	if err != nil {
		slog.Error("failed to initialize app", "error", err)
		return 1
	}
	app.ConfigPath = cfgPath
	defer func() {
		if err := app.Close(); err != nil {
			slog.Warn("shutdown incomplete", "error", err)
		}
	}()

	if opts.once {
		return runOnce(ctx, app, opts.limit, os.Stdout)
	}

	if err := app.Start(ctx); err != nil {
		slog.Error("failed to start monitor", "error", err)
		return 1
	}

	var server *ObservabilityServer
	if cfg.Observability.Enabled {
		server = NewObservabilityServer(cfg.Observability.Address, app)
		if err := server.Start(ctx); err != nil {
			slog.Error("failed to start observability server", "error", err)
			return 1
		}
	}

	code := 0
	if opts.ui {
		if err := runUI(app, cfg.Monitor.Author); err != nil {
			slog.Error("failed to run UI", "error", err)
			code = 1
		}
	} else {
		slog.Info("monitoring", "driver", cfg.Repository.Driver, "watch_paths", cfg.Repository.WatchPaths, "interval", cfg.Monitor.PollInterval)
		<-ctx.Done()
		slog.Info("shutting down")
	}

	if server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Stop(shutdownCtx); err != nil {
			slog.Warn("observability server shutdown failed", "error", err)
		}
	}
	return code
}

func runOnce(ctx context.Context, app *coreapp.App, limit int, out io.Writer) int {
	pollErr := app.Monitor.PollNow(ctx)
	views := app.Monitor.Views()
	if limit > 0 && limit < len(views) {
		views = views[:limit]
	}
	fmt.Fprintln(out, renderChanges(views))
	fmt.Fprintln(out, app.Monitor.LastStatusMessage())
	if pollErr != nil {
		slog.Error("poll failed", "error", pollErr)
		return 1
	}
	return 0
}

func renderChanges(views []ports.ChangeView) string {
	t := ltable.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(lipgloss.Color("#64748B"))).
		Headers("CHANGE", "TYPE", "AUTHOR", "ARCHIVE", "DESCRIPTION")
	for _, v := range views {
		desc, _, _ := strings.Cut(v.Description, "\n")
		t.Row(strconv.Itoa(v.Number), v.Type, v.Author, v.Archive, desc)
	}
	return t.Render()
}

// loadConfig falls back to defaults when the default config file is absent. An
// explicit -config path must exist.
func loadConfig(path string) (*config.Config, string, error) {
	cfg, err := coreapp.LoadConfig(path)
	if err == nil {
		abs, absErr := filepath.Abs(path)
		if absErr != nil {
			abs = path
		}
		return cfg, abs, nil
	}
	if path != defaultConfigPath {
		return nil, "", err
	}
	if _, statErr := os.Stat(path); statErr == nil {
		return nil, "", err
	}

	slog.Info("no config file found, using defaults", "path", path)
	cfg = config.Default()
	config.ApplyEnvOverrides(cfg)
	cwd, err := os.Getwd()
	if err != nil {
		return nil, "", err
	}
	if err := config.ResolvePaths(cfg, "", cwd); err != nil {
		return nil, "", err
	}
	if err := multierr.Combine(config.Validate(cfg)...); err != nil {
		return nil, "", err
	}
	return cfg, "", nil
}

func configureLogging(uiMode, verbose bool) func() {
	logLevel := slog.LevelInfo
	if verbose {
		logLevel = slog.LevelDebug
	}

	output := os.Stdout
	var closeFn func() = func() {}
	if uiMode {
		logPath := resolveLogPath()
		if err := os.MkdirAll(filepath.Dir(logPath), 0o700); err != nil {
			fmt.Fprintf(os.Stderr, "warning: failed to create log dir for %s: %v\n", logPath, err)
		} else {
			if fi, err := os.Lstat(logPath); err == nil && (fi.Mode()&os.ModeSymlink) != 0 {
				fmt.Fprintf(os.Stderr, "warning: refusing to write logs to symlink path %s\n", logPath)
			} else {
				f, err := os.OpenFile(logPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
				if err == nil {
					output = f
					closeFn = func() { _ = f.Close() }
				} else {
					fmt.Fprintf(os.Stderr, "warning: failed to open log file %s: %v\n", logPath, err)
				}
			}
		}
	}

	logger := slog.New(slog.NewTextHandler(output, &slog.HandlerOptions{Level: logLevel}))
	slog.SetDefault(logger)
	return closeFn
}

func resolveLogPath() string {
	dir, err := config.StateDir()
	if err != nil {
		return "revwatch.log"
	}
	return filepath.Join(dir, "revwatch.log")
}
