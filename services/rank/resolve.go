// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package rank

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/AleutianAI/AleutianSearch/services/rank/rankgraph"
)

// unrankedCost marks documents a rule could not place in any drained
// bucket. They always sort last.
const unrankedCost = math.MaxUint64

// costBucket is one rank stratum: the documents matched by the rule's
// paths of one cost.
type costBucket struct {
	cost uint64
	docs *roaring.Bitmap
}

// edgeResolver memoizes the document set of each conditional edge for
// one rule run. A nil cached bitmap marks an unconditional edge.
type edgeResolver[D any] struct {
	graph   *rankgraph.RankingRuleGraph[D]
	docsFor func(*D) *roaring.Bitmap
	cache   map[rankgraph.EdgeID]*roaring.Bitmap
}

func newEdgeResolver[D any](g *rankgraph.RankingRuleGraph[D], docsFor func(*D) *roaring.Bitmap) *edgeResolver[D] {
	return &edgeResolver[D]{
		graph:   g,
		docsFor: docsFor,
		cache:   make(map[rankgraph.EdgeID]*roaring.Bitmap),
	}
}

// edgeDocs returns the matching documents of one edge, nil for an
// unconditional edge.
func (r *edgeResolver[D]) edgeDocs(id rankgraph.EdgeID) (*roaring.Bitmap, error) {
	if docs, ok := r.cache[id]; ok {
		return docs, nil
	}
	e, err := r.graph.Edge(id)
	if err != nil {
		return nil, fmt.Errorf("resolving edge %d: %w", id, err)
	}
	if e.Details == nil {
		r.cache[id] = nil
		return nil, nil
	}
	docs := r.docsFor(e.Details)
	r.cache[id] = docs
	return docs, nil
}

// resolvePathDocs intersects universe with every conditional edge
// along path. The first emptiness observed feeds the empty-paths
// cache: an edge matching nothing in the universe forbids the edge
// outright, a partial intersection running dry forbids the prefix
// walked so far.
func resolvePathDocs[D any](r *edgeResolver[D], universe *roaring.Bitmap, path []rankgraph.EdgeID, cache *rankgraph.EmptyPathsCache) (*roaring.Bitmap, error) {
	running := universe.Clone()
	for i, id := range path {
		docs, err := r.edgeDocs(id)
		if err != nil {
			return nil, err
		}
		if docs == nil {
			continue
		}
		if !docs.Intersects(universe) {
			cache.ForbidEdge(id)
			return roaring.New(), nil
		}
		running.And(docs)
		if running.IsEmpty() {
			cache.ForbidPrefix(path[:i+1])
			return running, nil
		}
	}
	return running, nil
}

// rankBuckets partitions universe into cost-ordered buckets under one
// rule graph.
//
// Description:
//
//	Drains equal-cost path buckets from a fresh enumeration state,
//	resolving each path against the still-unclaimed documents and
//	claiming the matches. Resolution failures feed the empty-paths
//	cache, which prunes the enumeration as it goes. Stops when the
//	universe is fully claimed, the path space is exhausted, or
//	maxPaths paths have been examined; any unclaimed remainder comes
//	back as one final unranked bucket.
//
// Outputs:
//   - []costBucket: Disjoint buckets in ascending cost order whose
//     union is exactly universe.
//   - error: ctx.Err() or a rule-graph resolution failure.
func rankBuckets[D any](ctx context.Context, g *rankgraph.RankingRuleGraph[D], docsFor func(*D) *roaring.Bitmap, universe *roaring.Bitmap, maxPaths int) ([]costBucket, error) {
	var out []costBucket
	remaining := universe.Clone()
	if remaining.IsEmpty() {
		return out, nil
	}

	state, err := rankgraph.NewKCheapestPathsState(ctx, g)
	if err != nil {
		if errors.Is(err, rankgraph.ErrNoPath) {
			return append(out, costBucket{cost: unrankedCost, docs: remaining}), nil
		}
		return nil, err
	}

	cache := rankgraph.NewEmptyPathsCache()
	resolver := newEdgeResolver(g, docsFor)
	pathsSeen := 0

	for !remaining.IsEmpty() && pathsSeen < maxPaths {
		into := rankgraph.NewPathsMap[uint64]()
		ok, err := state.ComputePathsOfNextLowestCost(ctx, cache, into)
		if err != nil {
			return nil, err
		}
		if !ok {
			break
		}

		bucketDocs := roaring.New()
		var bucketCost uint64
		for pathsSeen < maxPaths {
			edges, cost, found := into.RemoveFirst()
			if !found {
				break
			}
			pathsSeen++
			bucketCost = cost
			matched, err := resolvePathDocs(resolver, remaining, edges, cache)
			if err != nil {
				return nil, err
			}
			bucketDocs.Or(matched)
		}
		if !bucketDocs.IsEmpty() {
			remaining.AndNot(bucketDocs)
			out = append(out, costBucket{cost: bucketCost, docs: bucketDocs})
		}
	}

	if !remaining.IsEmpty() {
		out = append(out, costBucket{cost: unrankedCost, docs: remaining})
	}
	return out, nil
}
