package watcher

import (
	"path/filepath"
	"strings"
)

// Ignorer matches base-name glob patterns against every component of a path
// below its root, so ".*" also skips files inside hidden directories.
type Ignorer struct {
	patterns []string
}

// NewIgnorer creates an Ignorer. Patterns are assumed valid (checked at config load).
func NewIgnorer(patterns []string) Ignorer {
	return Ignorer{patterns: patterns}
}

// Match reports whether rel (relative to a watched root) is ignored.
func (ig Ignorer) Match(rel string) bool {
	if len(ig.patterns) == 0 || rel == "." || rel == "" {
		return false
	}
	for _, part := range strings.Split(filepath.ToSlash(rel), "/") {
		for _, p := range ig.patterns {
			if ok, _ := filepath.Match(p, part); ok {
				return true
			}
		}
	}
	return false
}
