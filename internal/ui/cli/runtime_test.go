package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestParseOptions(t *testing.T) {
	opts, err := parseOptions([]string{"-once", "-author", "alice", "-config", "x.toml", "-limit", "5"})
	if err != nil {
		t.Fatalf("parseOptions failed: %v", err)
	}
	if !opts.once || opts.author != "alice" || opts.configPath != "x.toml" || opts.limit != 5 {
		t.Fatalf("unexpected options %+v", opts)
	}

	opts, err = parseOptions(nil)
	if err != nil {
		t.Fatalf("parseOptions failed: %v", err)
	}
	if opts.configPath != defaultConfigPath || opts.ui || opts.once {
		t.Fatalf("unexpected defaults %+v", opts)
	}

	if _, err := parseOptions([]string{"-unknown"}); err == nil {
		t.Fatal("expected error for unknown flag")
	}
}

func TestRunOnce_PrintsTable(t *testing.T) {
	app := newTestApp(t, nil, sampleCommits()...)

	var out bytes.Buffer
	if code := runOnce(context.Background(), app, 2, &out); code != 0 {
		t.Fatalf("expected exit code 0, got %d", code)
	}
	text := out.String()
	for _, want := range []string{"CHANGE", "carol", "update docs", "content", "Last update took"} {
		if !strings.Contains(text, want) {
			t.Errorf("expected %q in output:\n%s", want, text)
		}
	}
	if strings.Contains(text, "longer body") {
		t.Error("expected only the first description line")
	}
	if strings.Contains(text, "add engine") {
		t.Error("expected -limit to drop the oldest change")
	}
}

func TestLoadConfig_DefaultsWhenDefaultFileMissing(t *testing.T) {
	dir := t.TempDir()
	wd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = os.Chdir(wd) })

	cfg, path, err := loadConfig(defaultConfigPath)
	if err != nil {
		t.Fatalf("loadConfig failed: %v", err)
	}
	if path != "" {
		t.Fatalf("expected no config path to watch, got %q", path)
	}
	if cfg.Repository.Driver != "git" {
		t.Fatalf("expected defaults, got %+v", cfg.Repository)
	}

	if _, _, err := loadConfig(filepath.Join(dir, "missing.toml")); err == nil {
		t.Fatal("expected explicit missing config to fail")
	}
}

func TestLoadConfig_ExplicitFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "revwatch.toml")
	if err := os.WriteFile(path, []byte("[monitor]\nretention = 20\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, watched, err := loadConfig(path)
	if err != nil {
		t.Fatalf("loadConfig failed: %v", err)
	}
	if watched != path || cfg.Monitor.Retention != 20 {
		t.Fatalf("unexpected result %q %+v", watched, cfg.Monitor)
	}
}
