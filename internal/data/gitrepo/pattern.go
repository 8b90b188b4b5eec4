package gitrepo

import (
	"fmt"
	"strings"

	"github.com/gobwas/glob"

	"revwatch/internal/data/changes"
	"revwatch/internal/shared/util"
)

const anyDepth = "..."

// pattern is a compiled path filter. "..." matches any run of characters,
// including separators; everything else is literal.
type pattern struct {
	filter changes.Filter
	match  glob.Glob
}

func compilePattern(raw string) (pattern, error) {
	f := changes.ParseFilter(raw)
	f.Path = normalizePath(f.Path)

	parts := strings.Split(f.Path, anyDepth)
	for i, part := range parts {
		parts[i] = glob.QuoteMeta(part)
	}
	g, err := glob.Compile(strings.Join(parts, "**"), '/')
	if err != nil {
		return pattern{}, fmt.Errorf("compile path filter %q: %w", raw, err)
	}
	return pattern{filter: f, match: g}, nil
}

func compilePatterns(raw []string) ([]pattern, error) {
	out := make([]pattern, 0, len(raw))
	for _, r := range raw {
		p, err := compilePattern(r)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

// normalizePath makes depot-style and ./-relative paths repository relative.
func normalizePath(p string) string {
	p = strings.TrimLeft(strings.TrimSpace(p), "/")
	if strings.Contains(p, anyDepth) {
		return strings.TrimPrefix(strings.ReplaceAll(p, "\\", "/"), "./")
	}
	return util.NormalizePatternPath(p)
}

func (p pattern) matchesAny(files []fileChange) bool {
	for _, f := range files {
		if p.match.Match(f.path) {
			return true
		}
	}
	return false
}

// floor returns the largest number no pattern admits, or 0 when some pattern is unbounded.
func floor(patterns []pattern) int {
	out := -1
	for _, p := range patterns {
		if !p.filter.HasAfter {
			return 0
		}
		if out < 0 || p.filter.After < out {
			out = p.filter.After
		}
	}
	if out < 0 {
		return 0
	}
	return out
}
