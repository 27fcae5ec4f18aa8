package trie

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPathTrieCovers(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		ignored []string
		path    string
		want    bool
	}{
		{name: "empty trie", path: "a/b.go", want: false},
		{name: "same file", ignored: []string{"a/b.go"}, path: "a/b.go", want: true},
		{name: "below directory", ignored: []string{"vendor"}, path: "vendor/x/y.go", want: true},
		{name: "name prefix is not a path prefix", ignored: []string{"vendor"}, path: "vendored/y.go", want: false},
		{name: "parent of ignored", ignored: []string{"a/b"}, path: "a", want: false},
		{name: "uncleaned input", ignored: []string{"./a//b/"}, path: "a/b/../b/c.go", want: true},
		{name: "absolute", ignored: []string{"/tmp/x"}, path: "/tmp/x/y.go", want: true},
		{name: "absolute vs relative", ignored: []string{"/tmp"}, path: "tmp/y.go", want: false},
		{name: "dot covers everything relative", ignored: []string{"."}, path: "a.go", want: true},
		{name: "one of many", ignored: []string{"a", "b/c", "d/e/f"}, path: "d/e/f/g.go", want: true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			trie := New()
			for _, p := range tc.ignored {
				trie.Insert(p)
			}
			assert.Equal(t, tc.want, trie.Covers(tc.path))
			assert.Equal(t, len(tc.ignored), trie.Len())
		})
	}
}

func TestSplit(t *testing.T) {
	t.Parallel()
	assert.Nil(t, Split("."))
	assert.Nil(t, Split(""))
	assert.Equal(t, []string{"a", "b"}, Split("a/./b/"))
	assert.Equal(t, []string{"", "a"}, Split("/a"))
}

func TestDebugString(t *testing.T) {
	t.Parallel()
	trie := New()
	trie.Insert("a/b")
	trie.Insert("a/c")
	trie.Insert("d")
	assert.Equal(t, "a(b(*)c(*))d(*)", trie.DebugString())
}

func TestArenaHasPrefixOf(t *testing.T) {
	t.Parallel()
	a := NewArena()
	assert.False(t, a.HasPrefixOf([]string{"x"}))
	a.Insert(nil)
	assert.True(t, a.HasPrefixOf([]string{"x"}), "the empty sequence prefixes everything")
}
