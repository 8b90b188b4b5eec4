package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ResolvePaths makes repository.path and db.path absolute. Relative values are taken
// relative to the directory holding the config file, falling back to cwd.
func ResolvePaths(cfg *Config, configPath, cwd string) error {
	if strings.TrimSpace(cwd) == "" {
		return fmt.Errorf("cwd must not be empty")
	}
	base := cwd
	if strings.TrimSpace(configPath) != "" {
		base = filepath.Dir(ResolveRelative(cwd, configPath))
	}
	if cfg.Repository.Driver == "git" {
		cfg.Repository.Path = ResolveRelative(base, cfg.Repository.Path)
	}
	cfg.DB.Path = ResolveRelative(base, cfg.DB.Path)
	return nil
}

func ResolveRelative(base, value string) string {
	raw := strings.TrimSpace(value)
	if raw == "" {
		return filepath.Clean(base)
	}
	if filepath.IsAbs(raw) {
		return filepath.Clean(raw)
	}
	return filepath.Clean(filepath.Join(base, raw))
}

// StateDir returns the directory used for log files when the terminal is taken by the viewer.
func StateDir() (string, error) {
	if dir := strings.TrimSpace(os.Getenv("XDG_STATE_HOME")); dir != "" {
		return filepath.Join(dir, "revwatch"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".local", "state", "revwatch"), nil
}
