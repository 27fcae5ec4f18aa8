// Package trie stores sequences of path segments and answers prefix
// queries over them. The engine keeps its ignored paths in one.
package trie

import (
	"path/filepath"
	"sort"
	"strings"
)

/*
Nodes live in one slice (the arena) and refer to their children by index
rather than by pointer. A trie holding many paths then costs a handful of
allocations, and a lookup walks a contiguous block of memory.
*/

// NodeIndex represents the index of a trie node.
type NodeIndex int

// Arena is a memory pool that stores all trie nodes.
type Arena struct {
	nodes []arenaNode
}

type arenaNode struct {
	children map[string]NodeIndex
	isEnd    bool
}

// NewArena creates an arena holding only the root node.
func NewArena() *Arena {
	arena := &Arena{nodes: make([]arenaNode, 0, 64)}
	arena.newNode()
	return arena
}

func (a *Arena) newNode() NodeIndex {
	idx := NodeIndex(len(a.nodes))
	a.nodes = append(a.nodes, arenaNode{children: make(map[string]NodeIndex)})
	return idx
}

// Insert adds sequence to the trie.
func (a *Arena) Insert(sequence []string) {
	current := NodeIndex(0)
	for _, part := range sequence {
		childIdx, exists := a.nodes[current].children[part]
		if !exists {
			childIdx = a.newNode()
			a.nodes[current].children[part] = childIdx
		}
		current = childIdx
	}
	a.nodes[current].isEnd = true
}

// HasPrefixOf reports whether some inserted sequence is a prefix of
// sequence, or equal to it.
func (a *Arena) HasPrefixOf(sequence []string) bool {
	current := NodeIndex(0)
	if a.nodes[current].isEnd {
		return true
	}
	for _, part := range sequence {
		child, ok := a.nodes[current].children[part]
		if !ok {
			return false
		}
		if a.nodes[child].isEnd {
			return true
		}
		current = child
	}
	return false
}

// DebugString returns a string representation of the trie for debugging purposes.
func (a *Arena) DebugString() string {
	return a.debugStringNode(NodeIndex(0))
}

func (a *Arena) debugStringNode(idx NodeIndex) string {
	node := a.nodes[idx]
	var sb strings.Builder

	if node.isEnd {
		sb.WriteString("*")
	}

	keys := make([]string, 0, len(node.children))
	for key := range node.children {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for _, key := range keys {
		sb.WriteString(key)
		sb.WriteString("(")
		sb.WriteString(a.debugStringNode(node.children[key]))
		sb.WriteString(")")
	}

	return sb.String()
}

// PathTrie is a trie over file paths split at the separator.
type PathTrie struct {
	arena *Arena
	size  int
}

func New() *PathTrie {
	return &PathTrie{arena: NewArena()}
}

// Insert adds path, cleaned first.
func (t *PathTrie) Insert(path string) {
	t.arena.Insert(Split(path))
	t.size++
}

// Covers reports whether path is an inserted path or lies below one.
func (t *PathTrie) Covers(path string) bool {
	if t.size == 0 {
		return false
	}
	return t.arena.HasPrefixOf(Split(path))
}

// Len returns the number of Insert calls.
func (t *PathTrie) Len() int {
	return t.size
}

func (t *PathTrie) DebugString() string {
	return t.arena.DebugString()
}

// Split cleans path and cuts it into its segments. An absolute path starts
// with an empty segment, so it never shares a prefix with a relative one.
func Split(path string) []string {
	path = filepath.ToSlash(filepath.Clean(path))
	if path == "." {
		return nil
	}
	return strings.Split(path, "/")
}
