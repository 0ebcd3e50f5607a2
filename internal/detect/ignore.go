package detect

import (
	"path"
	"strings"
)

// DefaultIgnoreGlobs filter noise from change detection: lock files,
// vendored trees, and build outputs.
var DefaultIgnoreGlobs = []string{
	"vendor/**",
	"node_modules/**",
	"dist/**",
	"build/**",
	"target/**",
	".git/**",
	"*.lock",
	"package-lock.json",
	"yarn.lock",
	"go.sum",
	"*.min.js",
	"*.min.css",
}

// IgnoreMatcher evaluates a glob ignore list against repository paths.
type IgnoreMatcher struct {
	globs []string
}

// NewIgnoreMatcher builds a matcher; nil patterns means the default list.
func NewIgnoreMatcher(globs []string) *IgnoreMatcher {
	if globs == nil {
		globs = DefaultIgnoreGlobs
	}
	return &IgnoreMatcher{globs: globs}
}

// Match reports whether p is excluded. A pattern "dir/**" excludes the whole
// subtree; other patterns use path.Match against the full path and the base
// name.
func (m *IgnoreMatcher) Match(p string) bool {
	base := path.Base(p)
	for _, g := range m.globs {
		if prefix, ok := strings.CutSuffix(g, "/**"); ok {
			if p == prefix || strings.HasPrefix(p, prefix+"/") {
				return true
			}
			continue
		}
		if ok, _ := path.Match(g, p); ok {
			return true
		}
		if ok, _ := path.Match(g, base); ok {
			return true
		}
	}
	return false
}
