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
	"fmt"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/AleutianAI/AleutianSearch/services/rank/querygraph"
)

// NodeID identifies a query-graph node. Aliased so rule code can pass
// IDs between the two packages without conversions.
type NodeID = querygraph.NodeID

// EdgeID identifies an edge by its slot index in a RankingRuleGraph's
// edge collection. IDs double as PathsMap trie keys.
type EdgeID = uint32

// Edge is an immutable weighted connection between two query-graph
// nodes. Details is nil for an unconditional edge; a non-nil Details
// carries the rule-specific condition a document must satisfy for the
// edge to apply.
type Edge[D any] struct {
	// From is the source query-graph node.
	From NodeID

	// To is the destination query-graph node.
	To NodeID

	// Cost is the non-negative weight this edge contributes to a
	// path's total cost.
	Cost uint32

	// Details is the rule payload, nil when unconditional.
	Details *D
}

// Path is one route through a ranking-rule graph: the ordered edge IDs
// walked and the accumulated cost. Paths are produced by the search
// state and consumed by PathsMap batch loading.
type Path struct {
	// Edges is the ordered edge-ID sequence from root to end.
	Edges []EdgeID

	// Cost is the sum of the edge costs along the sequence.
	Cost uint64
}

// Clone returns a Path with an independent edge slice.
func (p Path) Clone() Path {
	edges := make([]EdgeID, len(p.Edges))
	copy(edges, p.Edges)
	return Path{Edges: edges, Cost: p.Cost}
}

// RankingRuleGraph is one ranking criterion's edge layer over a shared
// query graph. The generic parameter D is the rule's edge-condition
// payload type.
//
// Description:
//
//	Edges are stored in a dense slice where a nil slot is a tombstone.
//	An outgoing-edge bitmap per query-graph node supports the search
//	loop's frontier expansion without scanning every slot.
//
// Thread Safety: NOT safe for concurrent use. One search invocation
// owns one graph.
type RankingRuleGraph[D any] struct {
	query *querygraph.Graph

	// edges holds one slot per issued edge ID; nil marks a tombstone.
	edges []*Edge[D]

	// nodeEdges[n] holds the live outgoing edge IDs of node n.
	nodeEdges []*roaring.Bitmap
}

// NewRankingRuleGraph creates an empty edge layer over qg.
func NewRankingRuleGraph[D any](qg *querygraph.Graph) *RankingRuleGraph[D] {
	nodeEdges := make([]*roaring.Bitmap, qg.Len())
	for i := range nodeEdges {
		nodeEdges[i] = roaring.New()
	}
	return &RankingRuleGraph[D]{
		query:     qg,
		nodeEdges: nodeEdges,
	}
}

// AddEdge appends an edge and returns its ID.
//
// Inputs:
//   - from, to: Endpoint node IDs. Must address live nodes.
//   - cost: Edge weight.
//   - details: Rule payload; nil for an unconditional edge.
//
// Outputs:
//   - EdgeID: The issued slot index.
//   - error: ErrInvalidEdge when an endpoint is out of range or
//     Deleted.
func (g *RankingRuleGraph[D]) AddEdge(from, to NodeID, cost uint32, details *D) (EdgeID, error) {
	if g.query.IsDeleted(from) {
		return 0, fmt.Errorf("from node %d: %w", from, ErrInvalidEdge)
	}
	if g.query.IsDeleted(to) {
		return 0, fmt.Errorf("to node %d: %w", to, ErrInvalidEdge)
	}
	id := EdgeID(len(g.edges))
	g.edges = append(g.edges, &Edge[D]{From: from, To: to, Cost: cost, Details: details})
	g.nodeEdges[from].Add(id)
	return id, nil
}

// Edge returns the edge stored at id, by value.
//
// Outputs:
//   - Edge[D]: A copy of the stored edge. The Details pointer still
//     aliases the rule payload, which is treated as read-only.
//   - error: ErrEdgeOutOfRange for an unknown ID, ErrStaleEdge for a
//     tombstoned slot.
func (g *RankingRuleGraph[D]) Edge(id EdgeID) (Edge[D], error) {
	if int(id) >= len(g.edges) {
		return Edge[D]{}, fmt.Errorf("edge %d: %w", id, ErrEdgeOutOfRange)
	}
	e := g.edges[id]
	if e == nil {
		return Edge[D]{}, fmt.Errorf("edge %d: %w", id, ErrStaleEdge)
	}
	return *e, nil
}

// RemoveEdge tombstones the slot at id. The ID stays invalid for the
// rest of the graph's lifetime and is never reissued. Idempotent;
// unknown IDs are ignored.
func (g *RankingRuleGraph[D]) RemoveEdge(id EdgeID) {
	if int(id) >= len(g.edges) || g.edges[id] == nil {
		return
	}
	from := g.edges[id].From
	g.edges[id] = nil
	g.nodeEdges[from].Remove(id)
}

// OutgoingEdges returns the live edge IDs leaving from, in ascending
// ID order. Returns nil for out-of-range nodes.
func (g *RankingRuleGraph[D]) OutgoingEdges(from NodeID) []EdgeID {
	if int(from) >= len(g.nodeEdges) {
		return nil
	}
	return g.nodeEdges[from].ToArray()
}

// QueryGraph returns the query graph this edge layer was built over.
func (g *RankingRuleGraph[D]) QueryGraph() *querygraph.Graph {
	return g.query
}

// NumEdgeSlots returns the total number of issued edge IDs, tombstones
// included.
func (g *RankingRuleGraph[D]) NumEdgeSlots() int {
	return len(g.edges)
}

// LiveEdges returns the number of non-tombstoned edges.
func (g *RankingRuleGraph[D]) LiveEdges() int {
	n := 0
	for _, e := range g.edges {
		if e != nil {
			n++
		}
	}
	return n
}
