// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package querygraph

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/RoaringBitmap/roaring/v2"
)

// NodeID identifies a node by its position in the graph's dense,
// insertion-ordered node sequence. IDs are never renumbered; logical
// removal is expressed with the Deleted kind.
type NodeID = uint32

// Kind discriminates the node variants of a query graph.
type Kind uint8

const (
	// KindStart is the designated entry node. Exactly one per graph.
	KindStart Kind = iota

	// KindEnd is the designated exit node. Exactly one per graph.
	KindEnd

	// KindTerm is a token placement carrying query-term data.
	KindTerm

	// KindDeleted marks a logically removed node. Deleted nodes keep
	// their ID but are invisible to every traversal.
	KindDeleted
)

// String returns the lowercase kind name for diagnostics.
func (k Kind) String() string {
	switch k {
	case KindStart:
		return "start"
	case KindEnd:
		return "end"
	case KindTerm:
		return "term"
	case KindDeleted:
		return "deleted"
	default:
		return "unknown"
	}
}

// Term is one tokenized query word with its placement metadata.
type Term struct {
	// Text is the normalized (lowercased) token.
	Text string

	// Position is the zero-based position of the token in the query.
	Position int

	// MaxTypos is the edit-distance budget granted to this term by
	// the typo ranking rule. Derived from term length at build time.
	MaxTypos uint8
}

// Node is one slot in the graph's node sequence.
type Node struct {
	// Kind discriminates the variant. Term is only meaningful for
	// KindTerm nodes.
	Kind Kind

	// Term holds the token data for KindTerm nodes.
	Term Term
}

// Graph is the tokenized-query graph the ranking-rule graphs are built
// over: a dense node sequence with one start and one end node, term
// nodes chained between them, and bitmap adjacency in both directions.
//
// Thread Safety: Graph is NOT safe for concurrent mutation. A graph is
// built once per search invocation, then read by the ranking rules of
// that invocation; RemoveNodes is the only post-build mutation and is
// called from the same goroutine.
type Graph struct {
	// Root is the ID of the start node.
	Root NodeID

	// End is the ID of the end node.
	End NodeID

	nodes []Node

	// successors[i] / predecessors[i] hold the adjacent node IDs of
	// node i. Entries for Deleted nodes are empty bitmaps.
	successors   []*roaring.Bitmap
	predecessors []*roaring.Bitmap
}

// MaxTyposForTerm returns the edit-distance budget for a term of the
// given length: words shorter than five runes get none, words shorter
// than nine get one, longer words get two.
func MaxTyposForTerm(text string) uint8 {
	n := len([]rune(text))
	switch {
	case n < 5:
		return 0
	case n < 9:
		return 1
	default:
		return 2
	}
}

// Build constructs the query graph for a tokenized query.
//
// Description:
//
//	Creates a start node, one term node per input term chained in
//	order, and an end node. An empty term list produces a start node
//	linked directly to the end node. Terms with a zero MaxTypos keep
//	the budget implied by their length (use MaxTyposForTerm when
//	preparing terms by hand).
//
// Inputs:
//   - ctx: Context for cancellation between node insertions.
//   - terms: Tokenized query terms in query order.
//
// Outputs:
//   - *Graph: The built graph.
//   - error: ErrEmptyTerm for a term with empty text, or ctx.Err().
func Build(ctx context.Context, terms []Term) (*Graph, error) {
	g := &Graph{}

	g.Root = g.addNode(Node{Kind: KindStart})

	prev := g.Root
	for i, term := range terms {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if term.Text == "" {
			return nil, fmt.Errorf("term at position %d: %w", i, ErrEmptyTerm)
		}
		if term.MaxTypos == 0 {
			term.MaxTypos = MaxTyposForTerm(term.Text)
		}
		id := g.addNode(Node{Kind: KindTerm, Term: term})
		g.link(prev, id)
		prev = id
	}

	g.End = g.addNode(Node{Kind: KindEnd})
	g.link(prev, g.End)

	slog.Debug("query graph built",
		"terms", len(terms),
		"nodes", len(g.nodes),
	)
	return g, nil
}

// addNode appends a node and its empty adjacency bitmaps, returning
// the new ID.
func (g *Graph) addNode(n Node) NodeID {
	g.nodes = append(g.nodes, n)
	g.successors = append(g.successors, roaring.New())
	g.predecessors = append(g.predecessors, roaring.New())
	return NodeID(len(g.nodes) - 1)
}

// link records a directed from -> to adjacency.
func (g *Graph) link(from, to NodeID) {
	g.successors[from].Add(to)
	g.predecessors[to].Add(from)
}

// NodeAt returns the node stored at id.
//
// Outputs:
//   - Node: The node value (zero Node if out of range).
//   - error: ErrNodeOutOfRange when id does not address a slot.
func (g *Graph) NodeAt(id NodeID) (Node, error) {
	if int(id) >= len(g.nodes) {
		return Node{}, fmt.Errorf("node %d: %w", id, ErrNodeOutOfRange)
	}
	return g.nodes[id], nil
}

// IsDeleted reports whether id addresses a Deleted node. Out-of-range
// IDs report true, since nothing can be built over them either way.
func (g *Graph) IsDeleted(id NodeID) bool {
	if int(id) >= len(g.nodes) {
		return true
	}
	return g.nodes[id].Kind == KindDeleted
}

// Successors returns the live successor IDs of id in ascending order.
// Deleted targets are skipped; a deleted or out-of-range id has none.
func (g *Graph) Successors(id NodeID) []NodeID {
	return g.liveAdjacent(id, g.successors)
}

// Predecessors returns the live predecessor IDs of id in ascending
// order, with the same visibility rules as Successors.
func (g *Graph) Predecessors(id NodeID) []NodeID {
	return g.liveAdjacent(id, g.predecessors)
}

func (g *Graph) liveAdjacent(id NodeID, adj []*roaring.Bitmap) []NodeID {
	if g.IsDeleted(id) {
		return nil
	}
	var out []NodeID
	it := adj[id].Iterator()
	for it.HasNext() {
		next := it.Next()
		if !g.IsDeleted(next) {
			out = append(out, next)
		}
	}
	return out
}

// RemoveNodes marks the given nodes Deleted and unlinks them from the
// adjacency of their neighbors. IDs keep their positions; no
// renumbering happens.
//
// Inputs:
//   - ids: Node IDs to remove. Out-of-range IDs are ignored.
//
// Outputs:
//   - error: ErrTerminalNode when attempting to remove the start or
//     end node; the graph is left unchanged in that case.
func (g *Graph) RemoveNodes(ids []NodeID) error {
	for _, id := range ids {
		if id == g.Root || id == g.End {
			return fmt.Errorf("node %d: %w", id, ErrTerminalNode)
		}
	}
	for _, id := range ids {
		if int(id) >= len(g.nodes) {
			continue
		}
		g.nodes[id].Kind = KindDeleted
		g.nodes[id].Term = Term{}

		predIt := g.predecessors[id].Iterator()
		for predIt.HasNext() {
			g.successors[predIt.Next()].Remove(id)
		}
		succIt := g.successors[id].Iterator()
		for succIt.HasNext() {
			g.predecessors[succIt.Next()].Remove(id)
		}
		g.predecessors[id].Clear()
		g.successors[id].Clear()
	}
	return nil
}

// Len returns the total node slot count, Deleted nodes included.
func (g *Graph) Len() int {
	return len(g.nodes)
}

// LiveLen returns the number of non-Deleted nodes.
func (g *Graph) LiveLen() int {
	n := 0
	for _, node := range g.nodes {
		if node.Kind != KindDeleted {
			n++
		}
	}
	return n
}

// TermNodes returns the IDs of live term nodes in insertion order.
func (g *Graph) TermNodes() []NodeID {
	var out []NodeID
	for i, node := range g.nodes {
		if node.Kind == KindTerm {
			out = append(out, NodeID(i))
		}
	}
	return out
}
