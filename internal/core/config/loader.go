package config

import (
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"revwatch/internal/core/errors"
)

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.AddContext(errors.Wrap(err, errors.CodeNotFound, "config file not found"), errors.CtxPath, path)
		}
		return nil, err
	}

	var cfg Config
	if _, err := toml.Decode(string(data), &cfg); err != nil {
		return nil, errors.AddContext(errors.Wrap(err, errors.CodeValidationError, "decode config"), errors.CtxPath, path)
	}

	applyDefaults(&cfg)
	normalize(&cfg)

	if err := validateVersion(&cfg); err != nil {
		return nil, err
	}
	if err := validateRepository(&cfg); err != nil {
		return nil, err
	}
	if err := validateMonitor(&cfg); err != nil {
		return nil, err
	}
	if err := validateArchive(&cfg); err != nil {
		return nil, err
	}
	if err := validateClient(&cfg); err != nil {
		return nil, err
	}
	if err := validateDatabase(&cfg); err != nil {
		return nil, err
	}
	if err := validateObservability(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Version == 0 {
		cfg.Version = 1
	}

	if strings.TrimSpace(cfg.Repository.Driver) == "" {
		cfg.Repository.Driver = "git"
	}
	if strings.TrimSpace(cfg.Repository.Path) == "" {
		cfg.Repository.Path = "."
	}
	if len(cfg.Repository.WatchPaths) == 0 {
		cfg.Repository.WatchPaths = []string{"..."}
	}
	if strings.TrimSpace(cfg.Repository.P4Bin) == "" {
		cfg.Repository.P4Bin = "p4"
	}
	if cfg.Repository.CommandTimeout <= 0 {
		cfg.Repository.CommandTimeout = 30 * time.Second
	}
	if cfg.Repository.RefDebounce <= 0 {
		cfg.Repository.RefDebounce = 250 * time.Millisecond
	}

	if cfg.Monitor.PollInterval == 0 {
		cfg.Monitor.PollInterval = 60 * time.Second
	}
	if cfg.Monitor.Retention == 0 {
		cfg.Monitor.Retention = 100
	}
	if cfg.Monitor.ClassifySlack == 0 {
		cfg.Monitor.ClassifySlack = 10
	}
	if cfg.Monitor.StopTimeout == 0 {
		cfg.Monitor.StopTimeout = 5 * time.Second
	}
	if cfg.Monitor.CodeExtensions == nil {
		cfg.Monitor.CodeExtensions = append([]string(nil), DefaultCodeExtensions...)
	}

	if strings.TrimSpace(cfg.Archive.Section) == "" {
		cfg.Archive.Section = "RevWatch"
	}
	if strings.TrimSpace(cfg.Archive.Key) == "" {
		cfg.Archive.Key = "ArchivePathTemplate"
	}
	if cfg.Archive.MaxRevisions == 0 {
		cfg.Archive.MaxRevisions = 100
	}

	if strings.TrimSpace(cfg.Rewrite.Marker) == "" {
		cfg.Rewrite.Marker = "#ROBOMERGE-AUTHOR:"
	}
	if strings.TrimSpace(cfg.Rewrite.Replacement) == "" {
		cfg.Rewrite.Replacement = "ROBOMERGE:"
	}

	if cfg.Client.Burst == 0 {
		cfg.Client.Burst = 10
	}
	if cfg.Client.DiffCacheSize == 0 {
		cfg.Client.DiffCacheSize = 4096
	}

	if strings.TrimSpace(cfg.DB.Path) == "" {
		cfg.DB.Path = "data/revwatch.db"
	}
	if cfg.DB.BusyTimeout <= 0 {
		cfg.DB.BusyTimeout = 2 * time.Second
	}
	if cfg.DB.KeepCycles == 0 {
		cfg.DB.KeepCycles = 1000
	}

	if strings.TrimSpace(cfg.Observability.Address) == "" {
		cfg.Observability.Address = "127.0.0.1:9464"
	}
}

func normalize(cfg *Config) {
	cfg.Repository.Driver = strings.ToLower(strings.TrimSpace(cfg.Repository.Driver))
	cfg.Repository.Path = strings.TrimSpace(cfg.Repository.Path)
	cfg.Repository.P4Port = strings.TrimSpace(cfg.Repository.P4Port)
	cfg.Repository.P4User = strings.TrimSpace(cfg.Repository.P4User)
	cfg.Repository.P4Client = strings.TrimSpace(cfg.Repository.P4Client)

	paths := make([]string, 0, len(cfg.Repository.WatchPaths))
	for _, p := range cfg.Repository.WatchPaths {
		if p = strings.TrimSpace(p); p != "" {
			paths = append(paths, p)
		}
	}
	cfg.Repository.WatchPaths = paths

	exts := make([]string, 0, len(cfg.Monitor.CodeExtensions))
	for _, ext := range cfg.Monitor.CodeExtensions {
		exts = append(exts, strings.ToLower(strings.TrimSpace(ext)))
	}
	cfg.Monitor.CodeExtensions = exts
	cfg.Monitor.Author = strings.TrimSpace(cfg.Monitor.Author)

	cfg.Archive.ConfigPath = strings.TrimSpace(cfg.Archive.ConfigPath)
	cfg.Observability.Address = strings.TrimSpace(cfg.Observability.Address)
	cfg.Observability.OTLPEndpoint = strings.TrimSpace(cfg.Observability.OTLPEndpoint)
}
