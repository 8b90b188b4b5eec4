package util

import (
	"path"
	"strings"
)

// NormalizePatternPath cleans a path for matching: forward slashes, no leading
// "./", and "" for the repository root.
func NormalizePatternPath(s string) string {
	trimmed := strings.TrimSpace(strings.ReplaceAll(s, "\\", "/"))
	clean := path.Clean(trimmed)
	if clean == "." {
		return ""
	}
	return strings.TrimPrefix(clean, "./")
}
