// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package rankgraph

import (
	"github.com/RoaringBitmap/roaring/v2"
)

// PathsMap is a prefix-sharing trie over edge-ID sequences. Each
// complete inserted sequence terminates at a node holding a value of
// type V; interior nodes shared by several paths hold no value unless
// a shorter path ends there too.
//
// Description:
//
//	The search loop stores sets of paths here: already-emitted paths,
//	forbidden prefixes, pending candidates bucketed by cost. The trie
//	keeps the total node count bounded by the sum of the inserted
//	path lengths, never their product, and supports four pruning
//	semantics with different matching rules (edge-anywhere, literal
//	prefix, cross-trie prefix, leftmost drain).
//
// Structural invariant:
//
//	A node with no children and no value is the empty trie. Such a
//	node must never persist as a reachable child; every mutation that
//	could create one detaches it from its parent immediately, at
//	every level. RemoveFirst relies on this: a childless node it
//	reaches must hold a value or the trie was corrupted.
//
// Ordering:
//
//	Children keep insertion order. RemoveFirst and Iterate both walk
//	first-inserted-subtree-first, so a drain is deterministic for a
//	fixed insertion history. Downstream tie-breaking relies on this.
//
// The zero value is an empty map ready for use.
//
// Thread Safety: NOT safe for concurrent use.
type PathsMap[V any] struct {
	children []pathsMapChild[V]
	value    V
	hasValue bool
}

// pathsMapChild pairs an edge ID with the subtree reached through it.
// Edge IDs among one node's children are unique.
type pathsMapChild[V any] struct {
	edge EdgeID
	node *PathsMap[V]
}

// NewPathsMap returns an empty PathsMap.
func NewPathsMap[V any]() *PathsMap[V] {
	return &PathsMap[V]{}
}

// FromPaths builds a cost-valued trie from a batch of paths. Each path
// is inserted independently; shared prefixes merge as they are
// discovered, so the batch form is equivalent to repeated Insert.
func FromPaths(paths []Path) *PathsMap[uint64] {
	result := NewPathsMap[uint64]()
	for _, p := range paths {
		result.Insert(p.Edges, p.Cost)
	}
	return result
}

// IsEmpty reports whether the trie stores no path at all.
func (p *PathsMap[V]) IsEmpty() bool {
	return len(p.children) == 0 && !p.hasValue
}

// Insert stores value at the given edge sequence, creating trie nodes
// as needed. Inserting an identical sequence again overwrites the
// previous value; last insert wins.
func (p *PathsMap[V]) Insert(edges []EdgeID, value V) {
	node := p
	for _, e := range edges {
		node = node.childOrCreate(e)
	}
	node.value = value
	node.hasValue = true
}

// childOrCreate returns the child for edge, appending a new empty one
// when absent. Linear scan; per-level branching is bounded by the
// graph's out-degree.
func (p *PathsMap[V]) childOrCreate(edge EdgeID) *PathsMap[V] {
	for i := range p.children {
		if p.children[i].edge == edge {
			return p.children[i].node
		}
	}
	child := &PathsMap[V]{}
	p.children = append(p.children, pathsMapChild[V]{edge: edge, node: child})
	return child
}

// ContainsPrefixOfPath reports whether some complete stored path is a
// literal prefix of path. The empty prefix counts: a value at the root
// means every candidate is subsumed. The check looks at the current
// node's value before descending, so a stored short path dominates any
// longer candidate extending it.
func (p *PathsMap[V]) ContainsPrefixOfPath(path []EdgeID) bool {
	if p.hasValue {
		return true
	}
	if len(path) == 0 {
		return false
	}
	for i := range p.children {
		if p.children[i].edge == path[0] {
			return p.children[i].node.ContainsPrefixOfPath(path[1:])
		}
	}
	return false
}

// EdgeIndicesAfterPrefix navigates strictly along prefix and returns
// the child edge IDs of the node reached, in insertion order. A failed
// step returns nil. An empty prefix returns the top-level edge IDs.
func (p *PathsMap[V]) EdgeIndicesAfterPrefix(prefix []EdgeID) []EdgeID {
	if len(prefix) == 0 {
		out := make([]EdgeID, 0, len(p.children))
		for i := range p.children {
			out = append(out, p.children[i].edge)
		}
		return out
	}
	for i := range p.children {
		if p.children[i].edge == prefix[0] {
			return p.children[i].node.EdgeIndicesAfterPrefix(prefix[1:])
		}
	}
	return nil
}

// RemoveFirst extracts one stored path destructively: leftmost child
// at every level, down to a childless node, whose value is taken.
// Ancestors emptied by the extraction collapse upward one level at a
// time. Returns ok=false on an empty trie.
//
// A childless node without a value means the collapse invariant was
// violated by an earlier mutation; proceeding would silently drop or
// duplicate a path, so RemoveFirst panics instead.
func (p *PathsMap[V]) RemoveFirst() (edges []EdgeID, value V, ok bool) {
	if p.IsEmpty() {
		return nil, value, false
	}
	edges = make([]EdgeID, 0, 8)
	_, value = p.removeFirstRec(&edges)
	return edges, value, true
}

// removeFirstRec reports whether this subtree became empty, together
// with the extracted value.
func (p *PathsMap[V]) removeFirstRec(cur *[]EdgeID) (bool, V) {
	if len(p.children) == 0 {
		if !p.hasValue {
			panic("rankgraph: paths map node has no children and no value")
		}
		v := p.value
		var zero V
		p.value = zero
		p.hasValue = false
		return true, v
	}
	first := p.children[0]
	*cur = append(*cur, first.edge)
	childEmpty, v := first.node.removeFirstRec(cur)
	if childEmpty {
		p.children = append(p.children[:0], p.children[1:]...)
		return len(p.children) == 0 && !p.hasValue, v
	}
	return false, v
}

// Iterate visits every stored path without mutating the trie, in the
// same leftmost-first order RemoveFirst would drain them. A node's own
// value is visited before its subtrees. The edges slice passed to
// visit is a shared buffer valid only for the duration of the call;
// callers must copy it to retain it.
func (p *PathsMap[V]) Iterate(visit func(edges []EdgeID, value V)) {
	buf := make([]EdgeID, 0, 8)
	p.iterateRec(&buf, visit)
}

func (p *PathsMap[V]) iterateRec(cur *[]EdgeID, visit func(edges []EdgeID, value V)) {
	if p.hasValue {
		visit(*cur, p.value)
	}
	for i := range p.children {
		*cur = append(*cur, p.children[i].edge)
		p.children[i].node.iterateRec(cur, visit)
		*cur = (*cur)[:len(*cur)-1]
	}
}

// RemoveEdge deletes every stored path containing forbidden at any
// position. At every trie level a child keyed by the forbidden edge is
// deleted wholesale, subtree included; deeper levels are pruned
// recursively and children emptied by that pruning collapse into their
// parents. In place and idempotent.
func (p *PathsMap[V]) RemoveEdge(forbidden EdgeID) {
	i := 0
	for i < len(p.children) {
		child := &p.children[i]
		shouldRemove := false
		if child.edge == forbidden {
			shouldRemove = true
		} else if len(child.node.children) > 0 {
			child.node.RemoveEdge(forbidden)
			shouldRemove = child.node.IsEmpty()
		}
		if shouldRemove {
			p.children = append(p.children[:i], p.children[i+1:]...)
		} else {
			i++
		}
	}
}

// RemoveEdges is RemoveEdge for a whole forbidden set in one pass.
func (p *PathsMap[V]) RemoveEdges(forbidden *roaring.Bitmap) {
	i := 0
	for i < len(p.children) {
		child := &p.children[i]
		shouldRemove := false
		if forbidden.Contains(child.edge) {
			shouldRemove = true
		} else if len(child.node.children) > 0 {
			child.node.RemoveEdges(forbidden)
			shouldRemove = child.node.IsEmpty()
		}
		if shouldRemove {
			p.children = append(p.children[:i], p.children[i+1:]...)
		} else {
			i++
		}
	}
}

// RemovePrefix deletes every stored path whose edge sequence starts
// with prefix exactly. The empty prefix clears the node entirely; that
// is the recursion's base case once the full literal prefix has been
// matched. In place and idempotent.
func (p *PathsMap[V]) RemovePrefix(prefix []EdgeID) {
	if len(prefix) == 0 {
		p.children = nil
		var zero V
		p.value = zero
		p.hasValue = false
		return
	}
	i := 0
	for i < len(p.children) {
		child := &p.children[i]
		shouldRemove := false
		if child.edge == prefix[0] {
			child.node.RemovePrefix(prefix[1:])
			shouldRemove = child.node.IsEmpty()
		}
		if shouldRemove {
			p.children = append(p.children[:i], p.children[i+1:]...)
		} else {
			i++
		}
	}
}

// RemovePrefixes deletes from dst every stored path that has any
// complete path of prefixes as a literal prefix. A package-level
// function because the two tries may carry different value types.
func RemovePrefixes[V, U any](dst *PathsMap[V], prefixes *PathsMap[U]) {
	prefixes.Iterate(func(prefix []EdgeID, _ U) {
		dst.RemovePrefix(prefix)
	})
}
