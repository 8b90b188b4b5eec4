package changes

import (
	"fmt"
	"strconv"
	"strings"
)

const lowerBoundMarker = "@>"

// Filter is a path pattern with an optional exclusive lower bound on change numbers.
// "..." in Path matches any run of characters, including separators.
type Filter struct {
	Path     string
	After    int
	HasAfter bool
}

// ParseFilter splits "path@>N". A malformed bound is kept as part of the path.
func ParseFilter(raw string) Filter {
	raw = strings.TrimSpace(raw)
	idx := strings.LastIndex(raw, lowerBoundMarker)
	if idx < 0 {
		return Filter{Path: raw}
	}
	n, err := strconv.Atoi(raw[idx+len(lowerBoundMarker):])
	if err != nil {
		return Filter{Path: raw}
	}
	return Filter{Path: raw[:idx], After: n, HasAfter: true}
}

func (f Filter) String() string {
	if !f.HasAfter {
		return f.Path
	}
	return fmt.Sprintf("%s%s%d", f.Path, lowerBoundMarker, f.After)
}

// Admits reports whether a change number satisfies the lower bound.
func (f Filter) Admits(number int) bool {
	return !f.HasAfter || number > f.After
}

// WithLowerBound returns copies of paths restricted to changes above n.
func WithLowerBound(paths []string, n int) []string {
	out := make([]string, 0, len(paths))
	for _, p := range paths {
		f := ParseFilter(p)
		f.After = n
		f.HasAfter = true
		out = append(out, f.String())
	}
	return out
}
