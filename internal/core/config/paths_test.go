package config

import (
	"path/filepath"
	"testing"
)

func TestResolvePaths_RelativeToConfig(t *testing.T) {
	root := t.TempDir()
	cfg := Default()
	cfg.Repository.Path = "../src"
	cfg.DB.Path = "data/revwatch.db"

	if err := ResolvePaths(cfg, "conf/revwatch.toml", root); err != nil {
		t.Fatal(err)
	}
	if cfg.Repository.Path != filepath.Join(root, "src") {
		t.Fatalf("unexpected repository path %q", cfg.Repository.Path)
	}
	if cfg.DB.Path != filepath.Join(root, "conf", "data", "revwatch.db") {
		t.Fatalf("unexpected db path %q", cfg.DB.Path)
	}
}

func TestResolvePaths_AbsoluteAndNoConfig(t *testing.T) {
	root := t.TempDir()
	abs := filepath.Join(root, "abs.db")
	cfg := Default()
	cfg.DB.Path = abs

	if err := ResolvePaths(cfg, "", root); err != nil {
		t.Fatal(err)
	}
	if cfg.DB.Path != abs {
		t.Fatalf("absolute path must be kept, got %q", cfg.DB.Path)
	}
	if cfg.Repository.Path != filepath.Clean(root) {
		t.Fatalf("expected repository path to resolve to cwd, got %q", cfg.Repository.Path)
	}
	if err := ResolvePaths(cfg, "", " "); err == nil {
		t.Fatal("expected error for empty cwd")
	}
}

func TestStateDir(t *testing.T) {
	t.Setenv("XDG_STATE_HOME", "/tmp/state")
	dir, err := StateDir()
	if err != nil {
		t.Fatal(err)
	}
	if dir != filepath.Join("/tmp/state", "revwatch") {
		t.Fatalf("unexpected state dir %q", dir)
	}
}
