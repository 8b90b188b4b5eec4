package gitrepo

import (
	"context"
	"testing"
	"time"

	"github.com/go-git/go-billy/v5/memfs"
	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/storage/memory"
	"github.com/google/go-cmp/cmp"

	"revwatch/internal/core/errors"
	"revwatch/internal/data/changes"
)

type testRepo struct {
	t    *testing.T
	repo *gogit.Repository
	wt   *gogit.Worktree
	when time.Time
}

func newTestRepo(t *testing.T) *testRepo {
	t.Helper()
	repo, err := gogit.Init(memory.NewStorage(), memfs.New())
	if err != nil {
		t.Fatalf("failed to init repo: %v", err)
	}
	wt, err := repo.Worktree()
	if err != nil {
		t.Fatalf("failed to get worktree: %v", err)
	}
	return &testRepo{t: t, repo: repo, wt: wt, when: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (r *testRepo) write(name, content string) {
	r.t.Helper()
	f, err := r.wt.Filesystem.Create(name)
	if err != nil {
		r.t.Fatalf("failed to create %s: %v", name, err)
	}
	if _, err := f.Write([]byte(content)); err != nil {
		r.t.Fatalf("failed to write %s: %v", name, err)
	}
	if err := f.Close(); err != nil {
		r.t.Fatalf("failed to close %s: %v", name, err)
	}
	if _, err := r.wt.Add(name); err != nil {
		r.t.Fatalf("failed to add %s: %v", name, err)
	}
}

func (r *testRepo) remove(name string) {
	r.t.Helper()
	if _, err := r.wt.Remove(name); err != nil {
		r.t.Fatalf("failed to remove %s: %v", name, err)
	}
}

func (r *testRepo) commit(author, message string) {
	r.t.Helper()
	r.when = r.when.Add(time.Hour)
	_, err := r.wt.Commit(message, &gogit.CommitOptions{
		Author: &object.Signature{Name: author, Email: author + "@example.com", When: r.when},
	})
	if err != nil {
		r.t.Fatalf("failed to commit: %v", err)
	}
}

// seed builds six changes:
//
//	1 add src/main.go, README.md
//	2 edit README.md
//	3 add Build/RevWatch.ini
//	4 add Archive/Editor.zip "[CL1] build"
//	5 edit src/main.go, Archive/Editor.zip "[CL2] build"
//	6 delete README.md
func seed(t *testing.T) (*testRepo, *Client) {
	t.Helper()
	r := newTestRepo(t)
	r.write("src/main.go", "package main\n")
	r.write("README.md", "v1\n")
	r.commit("alice", "initial import")

	r.write("README.md", "v2\n")
	r.commit("bob", "docs")

	r.write("Build/RevWatch.ini", "[RevWatch]\nArchivePathTemplate=Archive/...\n")
	r.commit("build", "archive settings")

	r.write("Archive/Editor.zip", "zip1")
	r.commit("build", "[CL1] build")

	r.write("src/main.go", "package main\n\nfunc main() {}\n")
	r.write("Archive/Editor.zip", "zip2")
	r.commit("alice", "[CL2] build")

	r.remove("README.md")
	r.commit("bob", "drop readme")

	client, err := New(r.repo, 16)
	if err != nil {
		t.Fatalf("failed to create client: %v", err)
	}
	return r, client
}

func numbersOf(list []changes.ChangeSummary) []int {
	out := make([]int, 0, len(list))
	for _, c := range list {
		out = append(out, c.Number)
	}
	return out
}

func TestFindChanges_Filters(t *testing.T) {
	_, client := seed(t)
	ctx := context.Background()

	tests := []struct {
		name    string
		filters []string
		max     int
		want    []int
	}{
		{name: "everything", filters: []string{"..."}, max: -1, want: []int{6, 5, 4, 3, 2, 1}},
		{name: "limited", filters: []string{"..."}, max: 2, want: []int{6, 5}},
		{name: "lower bound", filters: []string{"...@>4"}, max: -1, want: []int{6, 5}},
		{name: "extension", filters: []string{"....go@>0"}, max: -1, want: []int{5, 1}},
		{name: "directory", filters: []string{"src/..."}, max: -1, want: []int{5, 1}},
		{name: "depot style", filters: []string{"//Archive/..."}, max: -1, want: []int{5, 4}},
		{name: "single file", filters: []string{"Build/RevWatch.ini"}, max: 1, want: []int{3}},
		{name: "union", filters: []string{"README.md@>1", "Build/..."}, max: -1, want: []int{6, 3, 2}},
		{name: "no match", filters: []string{"nope/..."}, max: -1, want: []int{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := client.FindChanges(ctx, tt.filters, tt.max)
			if err != nil {
				t.Fatalf("FindChanges failed: %v", err)
			}
			if diff := cmp.Diff(tt.want, numbersOf(got)); diff != "" {
				t.Fatalf("unexpected changes (-want +got):\n%s", diff)
			}
		})
	}
}

func TestFindChanges_Summary(t *testing.T) {
	_, client := seed(t)
	got, err := client.FindChanges(context.Background(), []string{"..."}, 1)
	if err != nil {
		t.Fatalf("FindChanges failed: %v", err)
	}
	if got[0].Author != "bob" || got[0].Description != "drop readme" || got[0].Timestamp.IsZero() {
		t.Fatalf("unexpected summary %+v", got[0])
	}
}

func TestFindChanges_PicksUpNewCommits(t *testing.T) {
	r, client := seed(t)
	ctx := context.Background()
	if _, err := client.FindChanges(ctx, []string{"..."}, -1); err != nil {
		t.Fatalf("FindChanges failed: %v", err)
	}

	r.write("src/util.go", "package main\n")
	r.commit("carol", "helpers")

	got, err := client.FindChanges(ctx, []string{"...@>6"}, -1)
	if err != nil {
		t.Fatalf("FindChanges failed: %v", err)
	}
	if diff := cmp.Diff([]int{7}, numbersOf(got)); diff != "" {
		t.Fatalf("unexpected changes (-want +got):\n%s", diff)
	}
	if got[0].Author != "carol" {
		t.Fatalf("unexpected author %q", got[0].Author)
	}
}

func TestFindFileChanges(t *testing.T) {
	_, client := seed(t)
	ctx := context.Background()

	archives, err := client.FindFileChanges(ctx, "Archive/...", 100)
	if err != nil {
		t.Fatalf("FindFileChanges failed: %v", err)
	}
	want := []changes.FileChangeSummary{
		{Path: "Archive/Editor.zip", Revision: 2, Number: 5, Action: changes.ActionEdit, Author: "alice", Description: "[CL2] build"},
		{Path: "Archive/Editor.zip", Revision: 1, Number: 4, Action: changes.ActionAdd, Author: "build", Description: "[CL1] build"},
	}
	if diff := cmp.Diff(want, archives, cmp.FilterPath(func(p cmp.Path) bool {
		return p.Last().String() == ".Timestamp"
	}, cmp.Ignore())); diff != "" {
		t.Fatalf("unexpected archive history (-want +got):\n%s", diff)
	}

	readme, err := client.FindFileChanges(ctx, "README.md", 2)
	if err != nil {
		t.Fatalf("FindFileChanges failed: %v", err)
	}
	if len(readme) != 2 || readme[0].Action != changes.ActionDelete || readme[0].Revision != 3 || readme[1].Number != 2 {
		t.Fatalf("unexpected readme history %+v", readme)
	}

	if _, err := client.FindFileChanges(ctx, "missing.txt", 10); !errors.IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestPrint(t *testing.T) {
	_, client := seed(t)
	ctx := context.Background()

	lines, err := client.Print(ctx, "Build/RevWatch.ini@3")
	if err != nil {
		t.Fatalf("Print failed: %v", err)
	}
	if diff := cmp.Diff([]string{"[RevWatch]", "ArchivePathTemplate=Archive/..."}, lines); diff != "" {
		t.Fatalf("unexpected lines (-want +got):\n%s", diff)
	}

	if _, err := client.Print(ctx, "Build/RevWatch.ini@2"); !errors.IsNotFound(err) {
		t.Fatalf("expected not found before the file existed, got %v", err)
	}
	if _, err := client.Print(ctx, "README.md"); !errors.IsNotFound(err) {
		t.Fatalf("expected not found after delete, got %v", err)
	}
	lines, err = client.Print(ctx, "README.md@2")
	if err != nil || len(lines) != 1 || lines[0] != "v2" {
		t.Fatalf("unexpected README at 2: %v, %v", lines, err)
	}
	if _, err := client.Print(ctx, "README.md@99"); !errors.IsNotFound(err) {
		t.Fatalf("expected not found for unknown change, got %v", err)
	}
}

func TestGetActiveContext(t *testing.T) {
	_, client := seed(t)
	name, ok := client.GetActiveContext(context.Background())
	if !ok || name != "master" {
		t.Fatalf("expected master branch, got %q (ok=%v)", name, ok)
	}
}

func TestEmptyRepository(t *testing.T) {
	r := newTestRepo(t)
	client, err := New(r.repo, 0)
	if err != nil {
		t.Fatalf("failed to create client: %v", err)
	}
	got, err := client.FindChanges(context.Background(), []string{"..."}, -1)
	if err != nil || len(got) != 0 {
		t.Fatalf("expected no changes, got %v, %v", got, err)
	}
	if _, err := client.Print(context.Background(), "a.txt"); !errors.IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestCompilePattern(t *testing.T) {
	tests := []struct {
		raw   string
		path  string
		match bool
	}{
		{raw: "...", path: "a/b/c.txt", match: true},
		{raw: "src/...", path: "src/x/y.go", match: true},
		{raw: "src/...", path: "srcx/y.go", match: false},
		{raw: "....cpp@>5", path: "deep/dir/file.cpp", match: true},
		{raw: "....cpp", path: "file.h", match: false},
		{raw: "docs/[draft].md", path: "docs/[draft].md", match: true},
		{raw: "./Build/RevWatch.ini", path: "Build/RevWatch.ini", match: true},
	}
	for _, tt := range tests {
		p, err := compilePattern(tt.raw)
		if err != nil {
			t.Fatalf("compile %q: %v", tt.raw, err)
		}
		if got := p.match.Match(tt.path); got != tt.match {
			t.Fatalf("%q vs %q: want %v, got %v", tt.raw, tt.path, tt.match, got)
		}
	}
}
