package cli

import (
	"context"
	"testing"
	"time"

	"github.com/go-git/go-billy/v5/memfs"
	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/storage/memory"

	coreapp "revwatch/internal/core/app"
	"revwatch/internal/core/config"
	"revwatch/internal/data/gitrepo"
)

type commitSpec struct {
	author  string
	message string
	files   map[string]string
}

func newTestApp(t *testing.T, cfg *config.Config, commits ...commitSpec) *coreapp.App {
	t.Helper()
	repo, err := gogit.Init(memory.NewStorage(), memfs.New())
	if err != nil {
		t.Fatalf("init repo: %v", err)
	}
	wt, err := repo.Worktree()
	if err != nil {
		t.Fatalf("worktree: %v", err)
	}
	when := time.Date(2026, 4, 1, 8, 0, 0, 0, time.UTC)
	for i, c := range commits {
		for name, content := range c.files {
			f, err := wt.Filesystem.Create(name)
			if err != nil {
				t.Fatalf("create %s: %v", name, err)
			}
			if _, err := f.Write([]byte(content)); err != nil {
				t.Fatalf("write %s: %v", name, err)
			}
			_ = f.Close()
			if _, err := wt.Add(name); err != nil {
				t.Fatalf("add %s: %v", name, err)
			}
		}
		_, err := wt.Commit(c.message, &gogit.CommitOptions{
			Author: &object.Signature{Name: c.author, Email: c.author + "@example.com", When: when.Add(time.Duration(i) * time.Minute)},
		})
		if err != nil {
			t.Fatalf("commit: %v", err)
		}
	}
	client, err := gitrepo.New(repo, 16)
	if err != nil {
		t.Fatalf("client: %v", err)
	}
	if cfg == nil {
		cfg = config.Default()
	}
	a, err := coreapp.NewWithClient(context.Background(), cfg, client)
	if err != nil {
		t.Fatalf("app: %v", err)
	}
	t.Cleanup(func() { _ = a.Close() })
	return a
}

// sampleCommits builds three changes: code by alice, content by bob, a merged code change.
func sampleCommits() []commitSpec {
	return []commitSpec{
		{author: "alice", message: "add engine", files: map[string]string{"src/engine.cpp": "int main() {}\n"}},
		{author: "bob", message: "update docs\n\nlonger body", files: map[string]string{"docs/readme.md": "hello\n"}},
		{author: "robomerge", message: "#ROBOMERGE-AUTHOR: carol merged fix", files: map[string]string{"src/engine.h": "#pragma once\n"}},
	}
}
