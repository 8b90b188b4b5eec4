// Package gitrepo serves repository history from a local git repository. Commits on
// HEAD's first-parent chain are numbered 1..N from the root, so they order the same
// way changelists do.
package gitrepo

import (
	"context"
	stderrors "errors"
	"fmt"
	"strconv"
	"strings"
	"sync"

	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/utils/merkletrie"
	lru "github.com/hashicorp/golang-lru/v2"

	"revwatch/internal/core/errors"
	"revwatch/internal/core/ports"
	"revwatch/internal/data/changes"
	"revwatch/internal/shared/observability"
)

const DefaultCacheSize = 4096

type fileChange struct {
	path   string
	action string
}

// Client implements ports.RepositoryClient over a go-git repository.
type Client struct {
	repo *gogit.Repository

	mu       sync.Mutex
	headHash plumbing.Hash
	chain    []*object.Commit // oldest first; chain[i] is change i+1

	diffs *lru.Cache[plumbing.Hash, []fileChange]
}

var _ ports.RepositoryClient = (*Client)(nil)

// Open opens the repository containing path.
func Open(path string, cacheSize int) (*Client, error) {
	repo, err := gogit.PlainOpenWithOptions(path, &gogit.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return nil, errors.AddContext(errors.Wrap(err, errors.CodeNotFound, "open git repository"), errors.CtxPath, path)
	}
	return New(repo, cacheSize)
}

func New(repo *gogit.Repository, cacheSize int) (*Client, error) {
	if cacheSize <= 0 {
		cacheSize = DefaultCacheSize
	}
	diffs, err := lru.New[plumbing.Hash, []fileChange](cacheSize)
	if err != nil {
		return nil, fmt.Errorf("create diff cache: %w", err)
	}
	return &Client{repo: repo, diffs: diffs}, nil
}

func (c *Client) FindChanges(ctx context.Context, pathFilters []string, maxCount int) ([]changes.ChangeSummary, error) {
	patterns, err := compilePatterns(pathFilters)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeValidationError, "path filter")
	}
	chain, err := c.history(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]changes.ChangeSummary, 0)
	if maxCount == 0 || len(patterns) == 0 {
		return out, nil
	}
	stop := floor(patterns)
	for i := len(chain) - 1; i >= 0; i-- {
		number := i + 1
		if number <= stop || (maxCount > 0 && len(out) >= maxCount) {
			break
		}
		if err := ctx.Err(); err != nil {
			return nil, errors.Wrap(err, errors.CodeTransport, "find changes")
		}

		commit := chain[i]
		files, err := c.changedFiles(commit)
		if err != nil {
			return nil, err
		}
		for _, p := range patterns {
			if p.filter.Admits(number) && p.matchesAny(files) {
				out = append(out, summarize(number, commit))
				break
			}
		}
	}
	return out, nil
}

func (c *Client) FindFileChanges(ctx context.Context, path string, maxCount int) ([]changes.FileChangeSummary, error) {
	p, err := compilePattern(path)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeValidationError, "path filter")
	}
	chain, err := c.history(ctx)
	if err != nil {
		return nil, err
	}

	revisions := map[string]int{}
	var out []changes.FileChangeSummary
	for i, commit := range chain {
		if err := ctx.Err(); err != nil {
			return nil, errors.Wrap(err, errors.CodeTransport, "find file changes")
		}
		files, err := c.changedFiles(commit)
		if err != nil {
			return nil, err
		}
		for _, f := range files {
			if !p.match.Match(f.path) {
				continue
			}
			revisions[f.path]++
			sum := summarize(i+1, commit)
			out = append(out, changes.FileChangeSummary{
				Path:        f.path,
				Revision:    revisions[f.path],
				Number:      sum.Number,
				Action:      f.action,
				Author:      sum.Author,
				Description: sum.Description,
				Timestamp:   sum.Timestamp,
			})
		}
	}
	if len(out) == 0 {
		return nil, errors.AddContext(errors.New(errors.CodeNotFound, "no such file(s)"), errors.CtxPath, path)
	}

	// newest first
	for l, r := 0, len(out)-1; l < r; l, r = l+1, r-1 {
		out[l], out[r] = out[r], out[l]
	}
	if maxCount >= 0 && len(out) > maxCount {
		out = out[:maxCount]
	}
	return out, nil
}

// Print accepts "path" (HEAD) or "path@N" (as of change N).
func (c *Client) Print(ctx context.Context, path string) ([]string, error) {
	chain, err := c.history(ctx)
	if err != nil {
		return nil, err
	}
	if len(chain) == 0 {
		return nil, errors.AddContext(errors.New(errors.CodeNotFound, "empty repository"), errors.CtxPath, path)
	}

	file, number := splitRevision(path)
	commit := chain[len(chain)-1]
	if number > 0 {
		if number > len(chain) {
			return nil, errors.AddContext(errors.New(errors.CodeNotFound, "no such change"), errors.CtxChange, number)
		}
		commit = chain[number-1]
	}

	f, err := commit.File(normalizePath(file))
	if stderrors.Is(err, object.ErrFileNotFound) {
		return nil, errors.AddContext(errors.New(errors.CodeNotFound, "no such file(s)"), errors.CtxPath, path)
	}
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeTransport, "read file")
	}
	contents, err := f.Contents()
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeTransport, "read file")
	}
	contents = strings.TrimSuffix(strings.ReplaceAll(contents, "\r\n", "\n"), "\n")
	if contents == "" {
		return []string{}, nil
	}
	return strings.Split(contents, "\n"), nil
}

// GetActiveContext returns the checked-out branch.
func (c *Client) GetActiveContext(context.Context) (string, bool) {
	ref, err := c.repo.Head()
	if err != nil || !ref.Name().IsBranch() {
		return "", false
	}
	return ref.Name().Short(), true
}

func splitRevision(path string) (string, int) {
	idx := strings.LastIndex(path, "@")
	if idx < 0 {
		return path, 0
	}
	n, err := strconv.Atoi(path[idx+1:])
	if err != nil || n < 1 {
		return path, 0
	}
	return path[:idx], n
}

// history returns the first-parent chain of HEAD, extending the cached chain when
// HEAD moved forward and rebuilding it when history was rewritten.
func (c *Client) history(ctx context.Context) ([]*object.Commit, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	ref, err := c.repo.Head()
	if stderrors.Is(err, plumbing.ErrReferenceNotFound) {
		c.headHash, c.chain = plumbing.ZeroHash, nil
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeTransport, "resolve HEAD")
	}
	if ref.Hash() == c.headHash {
		return c.chain, nil
	}

	commit, err := c.repo.CommitObject(ref.Hash())
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeTransport, "load HEAD commit")
	}

	var fresh []*object.Commit
	reachedCache := false
	for {
		if err := ctx.Err(); err != nil {
			return nil, errors.Wrap(err, errors.CodeTransport, "walk history")
		}
		if len(c.chain) > 0 && commit.Hash == c.headHash {
			reachedCache = true
			break
		}
		fresh = append(fresh, commit)
		if commit.NumParents() == 0 {
			break
		}
		commit, err = commit.Parent(0)
		if err != nil {
			return nil, errors.Wrap(err, errors.CodeTransport, "walk history")
		}
	}

	for l, r := 0, len(fresh)-1; l < r; l, r = l+1, r-1 {
		fresh[l], fresh[r] = fresh[r], fresh[l]
	}
	if reachedCache {
		chain := make([]*object.Commit, 0, len(c.chain)+len(fresh))
		c.chain = append(append(chain, c.chain...), fresh...)
	} else {
		c.chain = fresh
	}
	c.headHash = ref.Hash()
	return c.chain, nil
}

// changedFiles diffs a commit against its first parent. Results are cached per commit.
func (c *Client) changedFiles(commit *object.Commit) ([]fileChange, error) {
	if files, ok := c.diffs.Get(commit.Hash); ok {
		observability.DiffCacheLookupsTotal.WithLabelValues("hit").Inc()
		return files, nil
	}
	observability.DiffCacheLookupsTotal.WithLabelValues("miss").Inc()

	tree, err := commit.Tree()
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeTransport, "load tree")
	}
	var parentTree *object.Tree
	if commit.NumParents() > 0 {
		parent, err := commit.Parent(0)
		if err != nil {
			return nil, errors.Wrap(err, errors.CodeTransport, "load parent")
		}
		if parentTree, err = parent.Tree(); err != nil {
			return nil, errors.Wrap(err, errors.CodeTransport, "load parent tree")
		}
	}

	diff, err := object.DiffTree(parentTree, tree)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeTransport, "diff tree")
	}

	files := make([]fileChange, 0, len(diff))
	for _, ch := range diff {
		action, err := ch.Action()
		if err != nil {
			continue
		}
		switch action {
		case merkletrie.Insert:
			files = append(files, fileChange{path: ch.To.Name, action: changes.ActionAdd})
		case merkletrie.Delete:
			files = append(files, fileChange{path: ch.From.Name, action: changes.ActionDelete})
		default:
			files = append(files, fileChange{path: ch.To.Name, action: changes.ActionEdit})
		}
	}
	c.diffs.Add(commit.Hash, files)
	return files, nil
}

func summarize(number int, commit *object.Commit) changes.ChangeSummary {
	return changes.ChangeSummary{
		Number:      number,
		Author:      commit.Author.Name,
		Description: strings.TrimRight(commit.Message, "\n"),
		Timestamp:   commit.Author.When,
	}
}
