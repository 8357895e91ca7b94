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

// EmptyPathsCache remembers which paths resolved to no documents so
// the search loop never re-expands them. Rejections come in two
// granularities: whole edges that can never contribute (their
// condition matches nothing within the current candidates) and path
// prefixes whose partial intersection already came up empty.
//
// Thread Safety: NOT safe for concurrent use; owned by one search
// invocation like every other structure in this package.
type EmptyPathsCache struct {
	// forbiddenEdges holds edge IDs that empty any path containing
	// them, at any position.
	forbiddenEdges *roaring.Bitmap

	// forbiddenPrefixes stores known-empty path prefixes. The value
	// carries no information; only membership matters.
	forbiddenPrefixes *PathsMap[struct{}]
}

// NewEmptyPathsCache returns an empty cache.
func NewEmptyPathsCache() *EmptyPathsCache {
	return &EmptyPathsCache{
		forbiddenEdges:    roaring.New(),
		forbiddenPrefixes: NewPathsMap[struct{}](),
	}
}

// ForbidEdge records that any path containing edge is empty. Stored
// prefixes containing the edge become redundant and are pruned.
func (c *EmptyPathsCache) ForbidEdge(edge EdgeID) {
	c.forbiddenEdges.Add(edge)
	c.forbiddenPrefixes.RemoveEdge(edge)
}

// ForbidPrefix records that any path starting with prefix is empty.
func (c *EmptyPathsCache) ForbidPrefix(prefix []EdgeID) {
	c.forbiddenPrefixes.Insert(prefix, struct{}{})
}

// PathIsEmpty reports whether path is already known to resolve to no
// documents: it contains a forbidden edge, or a recorded empty prefix
// is a literal prefix of it.
func (c *EmptyPathsCache) PathIsEmpty(path []EdgeID) bool {
	for _, edge := range path {
		if c.forbiddenEdges.Contains(edge) {
			return true
		}
	}
	return c.forbiddenPrefixes.ContainsPrefixOfPath(path)
}

// ForbiddenEdges exposes the edge-level rejections, for pruning
// pending path sets with PathsMap.RemoveEdges.
func (c *EmptyPathsCache) ForbiddenEdges() *roaring.Bitmap {
	return c.forbiddenEdges
}
