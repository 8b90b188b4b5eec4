package config

import (
	"fmt"
	"net"
	"os"
	"strings"
	"time"

	"revwatch/internal/core/errors"
	"revwatch/internal/data/changes"
)

func invalid(format string, args ...any) error {
	return errors.New(errors.CodeValidationError, fmt.Sprintf(format, args...))
}

func validateVersion(cfg *Config) error {
	if cfg.Version != 1 {
		return invalid("unsupported config version %d; supported version is 1", cfg.Version)
	}
	return nil
}

func validateRepository(cfg *Config) error {
	repo := cfg.Repository
	switch repo.Driver {
	case "git":
		if repo.Path == "" {
			return invalid("repository.path must not be empty when repository.driver=git")
		}
	case "p4":
	default:
		return invalid("repository.driver must be one of: git, p4")
	}
	if len(repo.WatchPaths) == 0 {
		return invalid("repository.watch_paths must contain at least one path")
	}
	seen := make(map[string]bool, len(repo.WatchPaths))
	for i, raw := range repo.WatchPaths {
		f := changes.ParseFilter(raw)
		if f.HasAfter {
			return invalid("repository.watch_paths[%d] %q must not carry a change bound", i, raw)
		}
		if seen[f.Path] {
			return invalid("duplicate watch path %q", f.Path)
		}
		seen[f.Path] = true
	}
	if repo.CommandTimeout < time.Second {
		return invalid("repository.command_timeout must be at least 1s")
	}
	if repo.WatchRefs && repo.Driver != "git" {
		return invalid("repository.watch_refs requires repository.driver=git")
	}
	return nil
}

func validateMonitor(cfg *Config) error {
	m := cfg.Monitor
	if m.Retention < 1 {
		return invalid("monitor.retention must be >= 1, got %d", m.Retention)
	}
	if m.PollInterval <= 0 {
		return invalid("monitor.poll_interval must be positive")
	}
	if m.ClassifySlack < 0 {
		return invalid("monitor.classify_slack must be >= 0")
	}
	if m.StopTimeout <= 0 {
		return invalid("monitor.stop_timeout must be positive")
	}
	seen := make(map[string]bool, len(m.CodeExtensions))
	for i, ext := range m.CodeExtensions {
		if len(ext) < 2 || !strings.HasPrefix(ext, ".") || strings.ContainsAny(ext, "/\\ *?") {
			return invalid("monitor.code_extensions[%d] %q must look like \".ext\"", i, ext)
		}
		if seen[ext] {
			return invalid("monitor.code_extensions repeats %q", ext)
		}
		seen[ext] = true
	}
	return nil
}

func validateArchive(cfg *Config) error {
	a := cfg.Archive
	if a.ConfigPath == "" {
		return nil
	}
	if strings.Contains(a.ConfigPath, "...") || strings.Contains(a.ConfigPath, "@") {
		return invalid("archive.config_path must name a single file, got %q", a.ConfigPath)
	}
	if strings.TrimSpace(a.Key) == "" {
		return invalid("archive.key must not be empty")
	}
	if a.MaxRevisions < 1 {
		return invalid("archive.max_revisions must be >= 1")
	}
	return nil
}

func validateClient(cfg *Config) error {
	c := cfg.Client
	if c.RateLimit < 0 {
		return invalid("client.rate_limit must be >= 0")
	}
	if c.Burst < 1 {
		return invalid("client.burst must be >= 1")
	}
	if c.DiffCacheSize < 1 {
		return invalid("client.diff_cache_size must be >= 1")
	}
	return nil
}

func validateDatabase(cfg *Config) error {
	if !cfg.DB.Enabled {
		return nil
	}
	if strings.TrimSpace(cfg.DB.Path) == "" {
		return invalid("db.path must not be empty")
	}
	if cfg.DB.KeepCycles < 0 {
		return invalid("db.keep_cycles must be >= 0")
	}
	return nil
}

func validateObservability(cfg *Config) error {
	o := cfg.Observability
	if o.Enabled {
		if _, _, err := net.SplitHostPort(o.Address); err != nil {
			return invalid("observability.address %q is not host:port: %v", o.Address, err)
		}
	}
	if o.EnableTracing && o.OTLPEndpoint == "" {
		return invalid("observability.otlp_endpoint must be set when observability.enable_tracing=true")
	}
	return nil
}

// Validate runs every check and reports all failures instead of stopping at the first.
func Validate(cfg *Config) []error {
	var errs []error

	checks := []func(*Config) error{
		validateVersion,
		validateRepository,
		validateMonitor,
		validateArchive,
		validateClient,
		validateDatabase,
		validateObservability,
	}
	for _, check := range checks {
		if err := check(cfg); err != nil {
			errs = append(errs, err)
		}
	}

	errs = append(errs, validatePaths(cfg)...)
	return errs
}

// validatePaths checks paths that must exist on this machine. Load does not run it,
// so a config can be written before the working copy is checked out.
func validatePaths(cfg *Config) []error {
	var errs []error
	if cfg.Repository.Driver == "git" {
		info, err := os.Stat(cfg.Repository.Path)
		switch {
		case err != nil:
			errs = append(errs, invalid("repository.path %q: %v", cfg.Repository.Path, err))
		case !info.IsDir():
			errs = append(errs, invalid("repository.path %q is not a directory", cfg.Repository.Path))
		}
	}
	if cfg.DB.Enabled {
		if info, err := os.Stat(cfg.DB.Path); err == nil && info.IsDir() {
			errs = append(errs, invalid("db.path %q is a directory, expected file", cfg.DB.Path))
		}
	}
	return errs
}
