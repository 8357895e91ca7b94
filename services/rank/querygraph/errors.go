// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package querygraph models a tokenized query as a small directed
// graph: one start node, one term node per token, one end node.
//
// Ranking rules build their edge-weighted graphs over these nodes, so
// node IDs must stay stable for the lifetime of a search invocation.
// Logical removal therefore never renumbers: RemoveNodes marks nodes
// Deleted in place and every traversal treats Deleted nodes as
// invisible.
//
// # Lifecycle
//
// A Graph is built once per search with Build(), consulted read-only
// by the rule-graph builders, optionally pruned with RemoveNodes, and
// discarded when the search finishes. There is no cross-query reuse.
//
// # Thread Safety
//
// Not safe for concurrent mutation. One search invocation owns one
// Graph.
package querygraph

import "errors"

// Sentinel errors for query graph construction and mutation.
var (
	// ErrEmptyTerm is returned by Build when a term has empty text.
	ErrEmptyTerm = errors.New("query term has empty text")

	// ErrNodeOutOfRange is returned when a node ID does not address
	// a slot in the graph's node sequence.
	ErrNodeOutOfRange = errors.New("node id out of range")

	// ErrTerminalNode is returned by RemoveNodes when asked to remove
	// the start or end node. The terminals anchor every ranking-rule
	// graph and cannot be deleted.
	ErrTerminalNode = errors.New("cannot remove start or end node")
)
