// Package watcher turns filesystem activity under a git directory into
// debounced "refs moved" notifications.
package watcher

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/gobwas/glob"

	"revwatch/internal/core/errors"
	"revwatch/internal/shared/observability"
)

// DefaultRefPatterns are matched against slash separated paths relative to the git dir.
var DefaultRefPatterns = []string{"HEAD", "packed-refs", "refs/heads/**", "refs/remotes/**", "refs/tags/**"}

type RefWatcher struct {
	fsWatcher *fsnotify.Watcher
	gitDir    string
	debounce  time.Duration
	include   []glob.Glob
	onChange  func([]string)

	callbackMu sync.Mutex

	pending   map[string]struct{}
	pendingMu sync.Mutex
	timer     *time.Timer
	closed    bool
}

// NewRefWatcher watches repoPath, which may be a working tree or a bare repository.
func NewRefWatcher(repoPath string, debounce time.Duration, patterns []string, onChange func([]string)) (*RefWatcher, error) {
	if onChange == nil {
		return nil, os.ErrInvalid
	}
	if len(patterns) == 0 {
		patterns = DefaultRefPatterns
	}

	include := make([]glob.Glob, 0, len(patterns))
	for _, pattern := range patterns {
		g, err := glob.Compile(pattern, '/')
		if err != nil {
			return nil, errors.Wrap(err, errors.CodeValidationError, "compile ref pattern "+pattern)
		}
		include = append(include, g)
	}

	gitDir, err := resolveGitDir(repoPath)
	if err != nil {
		return nil, err
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeInternal, "create fs watcher")
	}

	return &RefWatcher{
		fsWatcher: fsw,
		gitDir:    gitDir,
		debounce:  debounce,
		include:   include,
		onChange:  onChange,
		pending:   make(map[string]struct{}),
	}, nil
}

func resolveGitDir(repoPath string) (string, error) {
	dotGit := filepath.Join(repoPath, ".git")
	if info, err := os.Stat(dotGit); err == nil && info.IsDir() {
		return dotGit, nil
	}
	if info, err := os.Stat(filepath.Join(repoPath, "refs")); err == nil && info.IsDir() {
		return repoPath, nil
	}
	return "", errors.AddContext(
		errors.New(errors.CodeNotFound, "no git directory found"),
		errors.CtxPath, repoPath,
	)
}

// GitDir is the directory actually being watched.
func (w *RefWatcher) GitDir() string {
	return w.gitDir
}

// Start registers the git dir and its refs tree and begins delivering events.
func (w *RefWatcher) Start() error {
	if err := w.fsWatcher.Add(w.gitDir); err != nil {
		return errors.AddContext(errors.Wrap(err, errors.CodeInternal, "watch git dir"), errors.CtxPath, w.gitDir)
	}
	refs := filepath.Join(w.gitDir, "refs")
	if _, err := os.Stat(refs); err == nil {
		if err := w.watchRecursive(refs); err != nil {
			return err
		}
	}

	go w.run()
	return nil
}

func (w *RefWatcher) watchRecursive(root string) error {
	return filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return w.fsWatcher.Add(path)
		}
		return nil
	})
}

func (w *RefWatcher) run() {
	for {
		select {
		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return
			}
			observability.RefEventsTotal.Inc()

			if event.Op&fsnotify.Create == fsnotify.Create {
				info, err := os.Stat(event.Name)
				if err == nil && info.IsDir() {
					if err := w.watchRecursive(event.Name); err != nil {
						slog.Warn("failed to watch new ref directory", "path", event.Name, "error", err)
					}
					continue
				}
			}

			ref, ok := w.match(event.Name)
			if !ok {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) != 0 {
				w.schedule(ref)
			}

		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return
			}
			slog.Error("ref watcher error", "error", err)
		}
	}
}

// match maps an absolute event path to its ref name. Lock files never match.
func (w *RefWatcher) match(path string) (string, bool) {
	rel, err := filepath.Rel(w.gitDir, path)
	if err != nil || strings.HasPrefix(rel, "..") {
		return "", false
	}
	rel = filepath.ToSlash(rel)
	if strings.HasSuffix(rel, ".lock") {
		return "", false
	}
	for _, g := range w.include {
		if g.Match(rel) {
			return rel, true
		}
	}
	return "", false
}

func (w *RefWatcher) schedule(ref string) {
	w.pendingMu.Lock()
	defer w.pendingMu.Unlock()
	if w.closed {
		return
	}

	w.pending[ref] = struct{}{}
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, w.flush)
}

func (w *RefWatcher) flush() {
	w.pendingMu.Lock()
	if w.closed {
		w.pendingMu.Unlock()
		return
	}
	refs := make([]string, 0, len(w.pending))
	for ref := range w.pending {
		refs = append(refs, ref)
	}
	w.pending = make(map[string]struct{})
	w.pendingMu.Unlock()

	if len(refs) > 0 {
		w.callbackMu.Lock()
		defer w.callbackMu.Unlock()
		w.onChange(refs)
	}
}

func (w *RefWatcher) Close() error {
	w.pendingMu.Lock()
	w.closed = true
	if w.timer != nil {
		w.timer.Stop()
	}
	w.pendingMu.Unlock()
	return w.fsWatcher.Close()
}
