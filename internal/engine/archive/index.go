// Package archive correlates archived build artifacts with the changelists that produced them.
package archive

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"regexp"
	"strconv"
	"strings"
	"sync"

	"revwatch/internal/core/errors"
	"revwatch/internal/core/ports"
	"revwatch/internal/data/changes"

	"gopkg.in/ini.v1"
)

const (
	DefaultKey          = "ArchivePathTemplate"
	DefaultMaxRevisions = 100

	noConfig = -1
)

var tagPattern = regexp.MustCompile(`^\s*\[CL\s*(\d+)\]`)

// Entry associates an originating change with the artifact revision built from it.
type Entry struct {
	Number   int    `json:"number"`
	Path     string `json:"path"`
	Revision int    `json:"revision"`
}

// Locator is the opaque path#revision reference handed to consumers.
func (e Entry) Locator() string {
	return fmt.Sprintf("%s#%d", e.Path, e.Revision)
}

type Options struct {
	// ConfigPath is the repository file whose history gates re-reading the template.
	ConfigPath string
	// Section is searched first for Key, then the default section.
	Section      string
	Key          string
	MaxRevisions int
}

// Index maps change numbers to archive entries. Refresh runs on the monitor worker;
// lookups may come from any goroutine.
type Index struct {
	opts Options

	mu           sync.RWMutex
	configChange int
	template     string
	entries      map[int]Entry
}

func NewIndex(opts Options) *Index {
	if strings.TrimSpace(opts.Key) == "" {
		opts.Key = DefaultKey
	}
	if opts.MaxRevisions <= 0 {
		opts.MaxRevisions = DefaultMaxRevisions
	}
	return &Index{
		opts:         opts,
		configChange: noConfig,
		entries:      map[int]Entry{},
	}
}

// Refresh re-resolves the template when the config file changed, rescans the
// archive history and swaps the mapping in. It reports whether the mapping differs.
// Missing files yield an empty index; only transport failures are returned.
func (x *Index) Refresh(ctx context.Context, client ports.RepositoryClient) (bool, error) {
	template, err := x.resolveTemplate(ctx, client)
	if err != nil {
		return false, err
	}

	next := map[int]Entry{}
	if template != "" {
		revisions, err := client.FindFileChanges(ctx, template, x.opts.MaxRevisions)
		switch {
		case errors.IsNotFound(err):
			revisions = nil
		case err != nil:
			return false, fmt.Errorf("archive history %s: %w", template, err)
		}
		next = BuildEntries(revisions)
	}

	x.mu.Lock()
	defer x.mu.Unlock()
	if maps.Equal(x.entries, next) {
		return false, nil
	}
	x.entries = next
	return true, nil
}

func (x *Index) resolveTemplate(ctx context.Context, client ports.RepositoryClient) (string, error) {
	if strings.TrimSpace(x.opts.ConfigPath) == "" {
		return "", nil
	}

	latest := noConfig
	found, err := client.FindChanges(ctx, []string{x.opts.ConfigPath}, 1)
	switch {
	case errors.IsNotFound(err):
	case err != nil:
		return "", fmt.Errorf("archive config %s: %w", x.opts.ConfigPath, err)
	case len(found) > 0:
		latest = found[0].Number
	}

	x.mu.RLock()
	cached, template := x.configChange, x.template
	x.mu.RUnlock()
	if latest == cached {
		return template, nil
	}

	template = ""
	if latest != noConfig {
		lines, err := client.Print(ctx, fmt.Sprintf("%s@%d", x.opts.ConfigPath, latest))
		switch {
		case errors.IsNotFound(err):
		case err != nil:
			return "", fmt.Errorf("print archive config %s: %w", x.opts.ConfigPath, err)
		default:
			template = ParseTemplate(lines, x.opts.Section, x.opts.Key)
		}
	}

	slog.Debug("archive config resolved", "path", x.opts.ConfigPath, "change", latest, "template", template)

	x.mu.Lock()
	x.configChange = latest
	x.template = template
	x.mu.Unlock()
	return template, nil
}

// ParseTemplate reads key from section (falling back to the default section).
// Malformed content yields "".
func ParseTemplate(lines []string, section, key string) string {
	if len(lines) == 0 {
		return ""
	}
	cfg, err := ini.LoadSources(ini.LoadOptions{
		IgnoreInlineComment:     true,
		SkipUnrecognizableLines: true,
		AllowBooleanKeys:        true,
	}, []byte(strings.Join(lines, "\n")))
	if err != nil {
		return ""
	}

	candidates := []string{ini.DefaultSection}
	if strings.TrimSpace(section) != "" {
		candidates = append([]string{section}, candidates...)
	}
	for _, name := range candidates {
		sec, err := cfg.GetSection(name)
		if err != nil || !sec.HasKey(key) {
			continue
		}
		if v := strings.TrimSpace(sec.Key(key).String()); v != "" {
			return v
		}
	}
	return ""
}

// BuildEntries scans revisions newest first; the first revision tagged with a
// given change wins. Removals and untagged revisions are skipped.
func BuildEntries(revisions []changes.FileChangeSummary) map[int]Entry {
	out := make(map[int]Entry, len(revisions))
	for _, rev := range revisions {
		if changes.IsRemoval(rev.Action) {
			continue
		}
		number, ok := ParseTag(rev.Description)
		if !ok {
			continue
		}
		if _, exists := out[number]; exists {
			continue
		}
		out[number] = Entry{Number: number, Path: rev.Path, Revision: rev.Revision}
	}
	return out
}

// ParseTag extracts nnn from a leading "[CLnnn]" (or "[CL nnn]").
func ParseTag(description string) (int, bool) {
	m := tagPattern.FindStringSubmatch(description)
	if m == nil {
		return 0, false
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, false
	}
	return n, true
}

func (x *Index) Lookup(number int) (Entry, bool) {
	x.mu.RLock()
	defer x.mu.RUnlock()
	e, ok := x.entries[number]
	return e, ok
}

func (x *Index) Locator(number int) (string, bool) {
	e, ok := x.Lookup(number)
	if !ok {
		return "", false
	}
	return e.Locator(), true
}

// Entries returns a copy of the mapping.
func (x *Index) Entries() map[int]Entry {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return maps.Clone(x.entries)
}

func (x *Index) Len() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return len(x.entries)
}

// Template returns the archive path currently in effect.
func (x *Index) Template() string {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return x.template
}
