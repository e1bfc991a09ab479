// Package ignore implements ignore-rule matching: a path is ignored iff it
// is prefixed by a rule, suffixed by a rule, or contains a VCS marker path
// component, plus an additive glob extension for operators who want
// shell-style patterns instead of plain prefix/suffix rules.
package ignore

import (
	"path/filepath"
	"strings"

	"github.com/gobwas/glob"
)

// vcsMarkers is the hard-coded set of path components that are always
// ignored regardless of any user-supplied rule.
var vcsMarkers = map[string]struct{}{
	".svn": {},
	".git": {},
	".hg":  {},
}

// globPrefix marks a List entry as a glob pattern (github.com/gobwas/glob)
// rather than a plain prefix/suffix rule. This is additive: entries without
// the prefix keep the existing plain prefix/suffix semantics unchanged.
const globPrefix = "glob:"

// List holds the ignore rules for a single root, matched independently of
// any other root's rules.
type List struct {
	plain []string
	globs []glob.Glob
}

// New compiles rules into a List. A malformed glob pattern is dropped
// rather than failing the whole list, since an operator typo in one ignore
// rule should not prevent watching the rest of a root.
func New(rules []string) *List {
	l := &List{}
	for _, r := range rules {
		if strings.HasPrefix(r, globPrefix) {
			pattern := strings.TrimPrefix(r, globPrefix)
			if g, err := glob.Compile(pattern, '/'); err == nil {
				l.globs = append(l.globs, g)
			}
			continue
		}
		l.plain = append(l.plain, r)
	}
	return l
}

// Match reports whether path is ignored under this list: prefixed or
// suffixed by a plain rule, matched by a glob rule, or containing a VCS
// marker component.
func (l *List) Match(path string) bool {
	if l == nil {
		return hasVCSMarker(path)
	}
	for _, r := range l.plain {
		if strings.HasPrefix(path, r) || strings.HasSuffix(path, r) {
			return true
		}
	}
	for _, g := range l.globs {
		if g.Match(path) {
			return true
		}
	}
	return hasVCSMarker(path)
}

func hasVCSMarker(path string) bool {
	for {
		dir, base := filepath.Split(path)
		if base != "" {
			if _, ok := vcsMarkers[base]; ok {
				return true
			}
		}
		dir = strings.TrimSuffix(dir, "/")
		if dir == "" || dir == path {
			return false
		}
		path = dir
	}
}
