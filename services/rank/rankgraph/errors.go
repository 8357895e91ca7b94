// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package rankgraph implements the path-enumeration core of the
// ranking engine: an edge-weighted graph over a query graph, a
// prefix-sharing trie of edge-ID paths (PathsMap), and the
// k-cheapest-paths state machine that drives bucket construction.
//
// # Edge Identity
//
// Edges live in a dense, index-addressable collection where a slot
// holds a live edge or a tombstone. An edge ID is its slot index and
// is never reused for a different edge within one graph instance.
// That stability is what lets edge IDs double as PathsMap trie keys
// with no side table: a PathsMap may outlive the removal of an edge
// it references, and the ID still denotes "that removed edge" rather
// than some newer one.
//
// # Ownership Model
//
// A RankingRuleGraph reads its query graph and never mutates it. The
// edge collection is built by the ranking rules (services/rank/rules)
// and is read-only afterwards except for tombstoning via RemoveEdge.
//
// # Thread Safety
//
// Nothing in this package locks. A graph, its PathsMaps, and its
// search state are owned by exactly one search invocation at a time.
// Concurrent searches each build their own instances.
package rankgraph

import "errors"

// Sentinel errors for edge access.
var (
	// ErrStaleEdge is returned when an edge ID resolves to a
	// tombstoned slot. A stored path may legitimately reference an
	// edge that was removed after the path was recorded; callers must
	// treat this as a distinct condition, not an absent edge.
	ErrStaleEdge = errors.New("edge id refers to a removed edge")

	// ErrEdgeOutOfRange is returned when an edge ID does not address
	// a slot in the graph's edge collection.
	ErrEdgeOutOfRange = errors.New("edge id out of range")

	// ErrInvalidEdge is returned by AddEdge when an endpoint is out
	// of range or Deleted.
	ErrInvalidEdge = errors.New("edge endpoint invalid")

	// ErrNoPath is returned by the search state constructor when the
	// graph holds no route from root to end.
	ErrNoPath = errors.New("no path from root to end")
)
