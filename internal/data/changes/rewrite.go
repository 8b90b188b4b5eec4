package changes

import (
	"strings"
	"unicode"
)

const (
	DefaultRewriteMarker      = "#ROBOMERGE-AUTHOR:"
	DefaultRewriteReplacement = "ROBOMERGE:"
)

// AuthorRewriter reattributes automated merges to the user named after Marker.
// "#ROBOMERGE-AUTHOR: alice text" becomes Author "alice", Description "ROBOMERGE: text".
type AuthorRewriter struct {
	Marker      string
	Replacement string
}

func NewAuthorRewriter(marker, replacement string) AuthorRewriter {
	if strings.TrimSpace(marker) == "" {
		marker = DefaultRewriteMarker
	}
	if strings.TrimSpace(replacement) == "" {
		replacement = DefaultRewriteReplacement
	}
	return AuthorRewriter{Marker: marker, Replacement: replacement}
}

// Apply returns the normalized summary. Summaries without the marker, or with
// an empty author after it, come back unchanged.
func (r AuthorRewriter) Apply(c ChangeSummary) ChangeSummary {
	if r.Marker == "" || !strings.HasPrefix(c.Description, r.Marker) {
		return c
	}

	rest := strings.TrimLeftFunc(c.Description[len(r.Marker):], isBlank)
	end := strings.IndexFunc(rest, unicode.IsSpace)
	if end < 0 {
		end = len(rest)
	}
	if end == 0 {
		return c
	}

	c.Author = rest[:end]
	c.Description = r.Replacement
	if text := strings.TrimLeftFunc(rest[end:], unicode.IsSpace); text != "" {
		c.Description += " " + text
	}
	return c
}

// ApplyAll rewrites in place.
func (r AuthorRewriter) ApplyAll(list []ChangeSummary) {
	for i := range list {
		list[i] = r.Apply(list[i])
	}
}

func isBlank(r rune) bool {
	return r == ' ' || r == '\t'
}
