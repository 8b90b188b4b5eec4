// Package classifier splits changes into code and content by the file extensions they touched.
package classifier

import (
	"sort"
	"strings"

	"revwatch/internal/data/changes"
)

// NoChange is returned by LastCodeChangeByAuthor when the author has no code change in range.
const NoChange = -1

// Classify is Code iff number appears in the code query result.
func Classify(number int, codeNumbers map[int]struct{}) changes.ChangeType {
	if _, ok := codeNumbers[number]; ok {
		return changes.ChangeTypeCode
	}
	return changes.ChangeTypeContent
}

// CodeFilters expands every watched path into one filter per extension,
// bounded below by after: "src/..." + ".cpp" -> "src/....cpp@>after".
func CodeFilters(watchedPaths, extensions []string, after int) []string {
	out := make([]string, 0, len(watchedPaths)*len(extensions))
	for _, raw := range watchedPaths {
		base := changes.ParseFilter(raw).Path
		base = strings.TrimSuffix(base, "...")
		for _, ext := range extensions {
			ext = strings.TrimSpace(ext)
			if ext == "" {
				continue
			}
			f := changes.Filter{Path: base + "..." + ext, After: after, HasAfter: true}
			out = append(out, f.String())
		}
	}
	return out
}

// LastCodeChangeByAuthor returns the highest code change submitted by author
// (case-insensitive), or NoChange.
func LastCodeChangeByAuthor(list []changes.ChangeSummary, types map[int]changes.ChangeType, author string) int {
	author = strings.TrimSpace(author)
	if author == "" {
		return NoChange
	}
	best := NoChange
	for _, c := range list {
		if c.Number <= best || !strings.EqualFold(c.Author, author) {
			continue
		}
		if types[c.Number] == changes.ChangeTypeCode {
			best = c.Number
		}
	}
	return best
}

// Types is the number -> ChangeType map kept 1:1 with the change store.
// It is not safe for concurrent use; the monitor guards it with its state lock.
type Types struct {
	byNumber map[int]changes.ChangeType
}

func NewTypes() *Types {
	return &Types{byNumber: make(map[int]changes.ChangeType)}
}

func (t *Types) Get(number int) (changes.ChangeType, bool) {
	ct, ok := t.byNumber[number]
	return ct, ok
}

func (t *Types) Len() int {
	return len(t.byNumber)
}

// Untyped returns the numbers in list that have no type yet, descending.
func (t *Types) Untyped(list []changes.ChangeSummary) []int {
	out := make([]int, 0)
	for _, c := range list {
		if _, ok := t.byNumber[c.Number]; !ok {
			out = append(out, c.Number)
		}
	}
	sort.Sort(sort.Reverse(sort.IntSlice(out)))
	return out
}

// Assign classifies numbers against codeNumbers. Existing Code entries are never downgraded.
// It reports whether any entry was added or changed.
func (t *Types) Assign(numbers []int, codeNumbers map[int]struct{}) bool {
	changed := false
	for _, n := range numbers {
		next := Classify(n, codeNumbers)
		prev, ok := t.byNumber[n]
		if ok && (prev == next || prev == changes.ChangeTypeCode) {
			continue
		}
		t.byNumber[n] = next
		changed = true
	}
	return changed
}

// Retain drops entries for numbers no longer in the store.
func (t *Types) Retain(list []changes.ChangeSummary) bool {
	keep := make(map[int]struct{}, len(list))
	for _, c := range list {
		keep[c.Number] = struct{}{}
	}
	removed := false
	for n := range t.byNumber {
		if _, ok := keep[n]; !ok {
			delete(t.byNumber, n)
			removed = true
		}
	}
	return removed
}

// Clone returns a copy safe to hand to readers.
func (t *Types) Clone() map[int]changes.ChangeType {
	out := make(map[int]changes.ChangeType, len(t.byNumber))
	for n, ct := range t.byNumber {
		out[n] = ct
	}
	return out
}

// Plan describes which untyped changes a code query result may classify.
type Plan struct {
	Filters  []string
	MaxCount int
	untyped  []int
	ceiling  int
}

// NewPlan builds the code query for the untyped numbers of a store of size storeSize.
// ceiling is the store's high-water mark; code results above it are ignored.
func NewPlan(watchedPaths, extensions []string, untyped []int, storeSize, slack, ceiling int) (Plan, bool) {
	if len(untyped) == 0 || len(extensions) == 0 {
		return Plan{}, false
	}
	lowest := untyped[len(untyped)-1]
	return Plan{
		Filters:  CodeFilters(watchedPaths, extensions, lowest-1),
		MaxCount: storeSize + slack,
		untyped:  untyped,
		ceiling:  ceiling,
	}, true
}

// Resolve turns the code query result into the set of code numbers plus the subset
// of untyped numbers that can be decided. When the result filled MaxCount, changes
// older than the oldest returned code change stay undecided.
func (p Plan) Resolve(codeChanges []changes.ChangeSummary) (map[int]struct{}, []int) {
	codeNumbers := make(map[int]struct{}, len(codeChanges))
	oldest := 0
	for _, c := range codeChanges {
		if oldest == 0 || c.Number < oldest {
			oldest = c.Number
		}
		if c.Number <= p.ceiling {
			codeNumbers[c.Number] = struct{}{}
		}
	}

	truncated := p.MaxCount > 0 && len(codeChanges) >= p.MaxCount
	decided := make([]int, 0, len(p.untyped))
	for _, n := range p.untyped {
		if truncated && n < oldest {
			continue
		}
		decided = append(decided, n)
	}
	return codeNumbers, decided
}
