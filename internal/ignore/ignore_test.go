package ignore

import "testing"

func TestMatchPlainPrefixAndSuffix(t *testing.T) {
	l := New([]string{"/home/user/build", ".tmp"})

	cases := map[string]bool{
		"/home/user/build":          true,
		"/home/user/build/out.o":    true,
		"/home/user/src/file.tmp":   true,
		"/home/user/src/file.go":    false,
		"/home/user/other":          false,
	}
	for path, want := range cases {
		if got := l.Match(path); got != want {
			t.Errorf("Match(%q) = %v, want %v", path, got, want)
		}
	}
}

func TestMatchVCSMarkerAlwaysIgnored(t *testing.T) {
	l := New(nil)
	cases := []string{
		"/home/user/project/.git",
		"/home/user/project/.git/objects/pack",
		"/home/user/project/.svn/entries",
		"/home/user/project/.hg",
	}
	for _, path := range cases {
		if !l.Match(path) {
			t.Errorf("Match(%q) = false, want true (VCS marker)", path)
		}
	}
	if l.Match("/home/user/project/src/main.go") {
		t.Errorf("a VCS-free path was reported ignored")
	}
}

func TestMatchNilListStillAppliesVCSMarkers(t *testing.T) {
	var l *List
	if !l.Match("/home/user/project/.git") {
		t.Errorf("nil *List should still enforce VCS markers")
	}
	if l.Match("/home/user/project/src") {
		t.Errorf("nil *List matched a non-VCS path")
	}
}

func TestMatchGlobPattern(t *testing.T) {
	l := New([]string{"glob:/home/*/cache/**"})
	if !l.Match("/home/alice/cache/blobs/x") {
		t.Errorf("glob pattern did not match a nested descendant")
	}
	if l.Match("/home/alice/data/x") {
		t.Errorf("glob pattern matched an unrelated path")
	}
}

func TestNewDropsMalformedGlob(t *testing.T) {
	l := New([]string{"glob:[", "/still/works"})
	if !l.Match("/still/works/file") {
		t.Errorf("a malformed glob rule broke an unrelated plain rule")
	}
}
