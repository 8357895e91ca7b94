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
	"context"
	"errors"
	"log/slog"
	"math"
	"sort"
	"time"

	"github.com/RoaringBitmap/roaring/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// =============================================================================
// Cheapest-Path Enumeration
// =============================================================================

var cheapestPathsTracer = otel.Tracer("rank.cheapest_paths")

const unreachableCost = math.MaxUint64

// CheapestPathToEnd computes the cheapest path from `from` to the
// query graph's end node over live edges.
//
// Description:
//
//	Plain single-source shortest path with deterministic tie-breaking:
//	equal-cost frontiers resolve to the smallest node ID, equal-cost
//	relaxations keep the first (lowest edge ID) route found. Uses a
//	linear-scan extraction; query graphs are small by construction.
//
// Outputs:
//   - Path: The cheapest root-to-end route.
//   - error: ErrNoPath when the end node is unreachable, or ctx.Err().
func (g *RankingRuleGraph[D]) CheapestPathToEnd(ctx context.Context, from NodeID) (Path, error) {
	return g.cheapestPathToEnd(ctx, from, nil)
}

// cheapestPathToEnd is CheapestPathToEnd with an extra forbidden edge
// set, used by the spur step to exclude continuations already taken.
func (g *RankingRuleGraph[D]) cheapestPathToEnd(ctx context.Context, from NodeID, forbidden *roaring.Bitmap) (Path, error) {
	start := time.Now()
	defer func() {
		cheapestPathDuration.Observe(time.Since(start).Seconds())
	}()

	n := g.query.Len()
	if int(from) >= n || g.query.IsDeleted(from) {
		return Path{}, ErrNoPath
	}

	dist := make([]uint64, n)
	prevEdge := make([]int64, n)
	visited := make([]bool, n)
	for i := range dist {
		dist[i] = unreachableCost
		prevEdge[i] = -1
	}
	dist[from] = 0

	for {
		if err := ctx.Err(); err != nil {
			return Path{}, err
		}

		best := -1
		for i := 0; i < n; i++ {
			if !visited[i] && dist[i] != unreachableCost && (best == -1 || dist[i] < dist[best]) {
				best = i
			}
		}
		if best == -1 || NodeID(best) == g.query.End {
			break
		}
		visited[best] = true

		it := g.nodeEdges[best].Iterator()
		for it.HasNext() {
			id := it.Next()
			if forbidden != nil && forbidden.Contains(id) {
				continue
			}
			e := g.edges[id]
			if g.query.IsDeleted(e.To) {
				continue
			}
			if next := dist[best] + uint64(e.Cost); next < dist[e.To] {
				dist[e.To] = next
				prevEdge[e.To] = int64(id)
			}
		}
	}

	if dist[g.query.End] == unreachableCost {
		return Path{}, ErrNoPath
	}

	var edges []EdgeID
	for at := g.query.End; at != from; {
		id := prevEdge[at]
		if id < 0 {
			return Path{}, ErrNoPath
		}
		edges = append(edges, EdgeID(id))
		at = g.edges[id].From
	}
	for l, r := 0, len(edges)-1; l < r; l, r = l+1, r-1 {
		edges[l], edges[r] = edges[r], edges[l]
	}
	return Path{Edges: edges, Cost: dist[g.query.End]}, nil
}

// =============================================================================
// K-Cheapest-Paths State
// =============================================================================

// KCheapestPathsState enumerates the paths of a ranking-rule graph in
// nondecreasing cost order, one cost bucket at a time.
//
// Description:
//
//	Holds the set of already-emitted paths (a PathsMap, consulted to
//	never emit a path twice and to forbid retaking emitted
//	continuations at each spur point) and the pending candidates
//	grouped by total cost. Each advance branches the last emitted
//	path at every position, extends the prefix with the cheapest
//	remaining continuation, and pops the overall next-cheapest
//	candidate.
//
// Thread Safety: NOT safe for concurrent use; one search invocation
// owns one state.
type KCheapestPathsState[D any] struct {
	graph *RankingRuleGraph[D]

	// cheapestPaths stores every emitted path keyed by its edges.
	cheapestPaths *PathsMap[uint64]

	// potential buckets pending candidates by total cost; costs keeps
	// the bucket keys sorted ascending.
	potential map[uint64]*PathsMap[uint64]
	costs     []uint64

	// kth is the most recently emitted path.
	kth Path

	exhausted bool
}

// NewKCheapestPathsState seeds the enumeration with the overall
// cheapest root-to-end path.
//
// Outputs:
//   - *KCheapestPathsState[D]: Ready state whose KthCheapestPath is
//     the cheapest path of the graph.
//   - error: ErrNoPath when the graph holds no root-to-end route, or
//     ctx.Err().
func NewKCheapestPathsState[D any](ctx context.Context, g *RankingRuleGraph[D]) (*KCheapestPathsState[D], error) {
	ctx, span := cheapestPathsTracer.Start(ctx, "rankgraph.NewKCheapestPathsState",
		trace.WithAttributes(
			attribute.Int("edge_slots", g.NumEdgeSlots()),
			attribute.Int("live_edges", g.LiveEdges()),
		),
	)
	defer span.End()

	first, err := g.cheapestPathToEnd(ctx, g.query.Root, nil)
	if err != nil {
		return nil, err
	}
	pathsEmittedTotal.Inc()
	return &KCheapestPathsState[D]{
		graph:         g,
		cheapestPaths: FromPaths([]Path{first}),
		potential:     make(map[uint64]*PathsMap[uint64]),
		kth:           first,
	}, nil
}

// KthCheapestPath returns the most recently emitted path. Valid until
// the next advance; the edge slice must not be mutated.
func (s *KCheapestPathsState[D]) KthCheapestPath() Path {
	return s.kth
}

// Exhausted reports whether the enumeration has run out of paths.
func (s *KCheapestPathsState[D]) Exhausted() bool {
	return s.exhausted
}

// RemoveEmptyPaths reconciles the state with an updated cache: pending
// candidates containing forbidden edges or prefixes are pruned, and if
// the current kth path is itself known-empty the state advances past
// it to the next viable path.
//
// Outputs:
//   - bool: False when no viable path remains.
//   - error: ctx.Err() on cancellation.
func (s *KCheapestPathsState[D]) RemoveEmptyPaths(ctx context.Context, cache *EmptyPathsCache) (bool, error) {
	if s.exhausted {
		return false, nil
	}

	forbidden := cache.ForbiddenEdges()
	if !forbidden.IsEmpty() {
		for cost, bucket := range s.potential {
			bucket.RemoveEdges(forbidden)
			if bucket.IsEmpty() {
				s.dropCostBucket(cost)
			}
		}
	}
	for cost, bucket := range s.potential {
		RemovePrefixes(bucket, cache.forbiddenPrefixes)
		if bucket.IsEmpty() {
			s.dropCostBucket(cost)
		}
	}

	for cache.PathIsEmpty(s.kth.Edges) {
		ok, err := s.advance(ctx, cache)
		if err != nil {
			return false, err
		}
		if !ok {
			s.exhausted = true
			return false, nil
		}
	}
	return true, nil
}

// ComputePathsOfNextLowestCost drains every viable path at the next
// lowest cost into `into`.
//
// Description:
//
//	Emits the current kth path, then keeps advancing while the
//	emitted cost stays the same, inserting each viable path into
//	`into` (and into the internal emitted set). When the cost
//	advances, the newly emitted path stays buffered as the next
//	call's starting point. Cache-rejected paths are skipped.
//
// Inputs:
//   - ctx: Context checked between advances.
//   - cache: Known-empty paths to skip.
//   - into: Receives the bucket's paths keyed by edge sequence.
//
// Outputs:
//   - bool: False when the enumeration was already exhausted and no
//     path was delivered.
//   - error: ctx.Err() on cancellation.
func (s *KCheapestPathsState[D]) ComputePathsOfNextLowestCost(ctx context.Context, cache *EmptyPathsCache, into *PathsMap[uint64]) (bool, error) {
	ctx, span := cheapestPathsTracer.Start(ctx, "rankgraph.ComputePathsOfNextLowestCost")
	defer span.End()

	if s.exhausted {
		return false, nil
	}
	if ok, err := s.RemoveEmptyPaths(ctx, cache); err != nil || !ok {
		return false, err
	}

	bucketCost := s.kth.Cost
	into.Insert(s.kth.Edges, s.kth.Cost)
	delivered := 1

	for {
		if err := ctx.Err(); err != nil {
			return false, err
		}
		ok, err := s.advance(ctx, cache)
		if err != nil {
			return false, err
		}
		if !ok {
			s.exhausted = true
			break
		}
		if s.kth.Cost != bucketCost {
			break
		}
		if !cache.PathIsEmpty(s.kth.Edges) {
			into.Insert(s.kth.Edges, s.kth.Cost)
			delivered++
		}
	}

	span.SetAttributes(
		attribute.Int64("bucket_cost", int64(bucketCost)),
		attribute.Int("paths", delivered),
	)
	slog.Debug("cost bucket drained",
		"cost", bucketCost,
		"paths", delivered,
		"exhausted", s.exhausted,
	)
	return true, nil
}

// advance emits the next cheapest path into s.kth. Returns false when
// the path space is exhausted.
func (s *KCheapestPathsState[D]) advance(ctx context.Context, cache *EmptyPathsCache) (bool, error) {
	kth := s.kth
	for i := range kth.Edges {
		if err := ctx.Err(); err != nil {
			return false, err
		}

		edge, err := s.graph.Edge(kth.Edges[i])
		if err != nil {
			if errors.Is(err, ErrStaleEdge) {
				staleEdgeTotal.Inc()
				slog.Debug("stale edge in emitted path", "edge", kth.Edges[i])
				continue
			}
			return false, err
		}
		spurNode := edge.From
		rootPath := kth.Edges[:i]
		if cache.PathIsEmpty(rootPath) {
			continue
		}

		rootCost, ok := s.pathCost(rootPath)
		if !ok {
			continue
		}

		// The continuations already emitted after this prefix must
		// not be retaken, and neither may cache-rejected edges.
		forbidden := roaring.New()
		for _, e := range s.cheapestPaths.EdgeIndicesAfterPrefix(rootPath) {
			forbidden.Add(e)
		}
		forbidden.Or(cache.ForbiddenEdges())

		spur, err := s.graph.cheapestPathToEnd(ctx, spurNode, forbidden)
		if err != nil {
			if errors.Is(err, ErrNoPath) {
				continue
			}
			return false, err
		}

		edges := make([]EdgeID, 0, len(rootPath)+len(spur.Edges))
		edges = append(edges, rootPath...)
		edges = append(edges, spur.Edges...)
		s.addPotential(Path{Edges: edges, Cost: rootCost + spur.Cost})
	}

	for len(s.costs) > 0 {
		cost := s.costs[0]
		bucket := s.potential[cost]
		for {
			edges, _, ok := bucket.RemoveFirst()
			if !ok {
				break
			}
			if s.cheapestPaths.ContainsPrefixOfPath(edges) {
				continue
			}
			s.cheapestPaths.Insert(edges, cost)
			if bucket.IsEmpty() {
				s.dropCostBucket(cost)
			}
			s.kth = Path{Edges: edges, Cost: cost}
			pathsEmittedTotal.Inc()
			return true, nil
		}
		s.dropCostBucket(cost)
	}
	return false, nil
}

// pathCost sums edge costs along path, reporting false when a stale
// edge makes the prefix unusable as a spur root.
func (s *KCheapestPathsState[D]) pathCost(path []EdgeID) (uint64, bool) {
	var total uint64
	for _, id := range path {
		edge, err := s.graph.Edge(id)
		if err != nil {
			if errors.Is(err, ErrStaleEdge) {
				staleEdgeTotal.Inc()
			}
			return 0, false
		}
		total += uint64(edge.Cost)
	}
	return total, true
}

// addPotential inserts a candidate into its cost bucket, creating the
// bucket and its sorted-cost index entry when absent. Duplicate
// candidates for the same edge sequence collapse for free in the trie.
func (s *KCheapestPathsState[D]) addPotential(p Path) {
	bucket, ok := s.potential[p.Cost]
	if !ok {
		bucket = NewPathsMap[uint64]()
		s.potential[p.Cost] = bucket
		idx := sort.Search(len(s.costs), func(i int) bool { return s.costs[i] >= p.Cost })
		s.costs = append(s.costs, 0)
		copy(s.costs[idx+1:], s.costs[idx:])
		s.costs[idx] = p.Cost
		potentialPathsPending.Set(float64(len(s.costs)))
	}
	bucket.Insert(p.Edges, p.Cost)
}

// dropCostBucket removes an emptied bucket and its cost index entry.
func (s *KCheapestPathsState[D]) dropCostBucket(cost uint64) {
	delete(s.potential, cost)
	for i, c := range s.costs {
		if c == cost {
			s.costs = append(s.costs[:i], s.costs[i+1:]...)
			break
		}
	}
	potentialPathsPending.Set(float64(len(s.costs)))
}
