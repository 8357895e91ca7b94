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
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/RoaringBitmap/roaring/v2"
	"go.opentelemetry.io/otel/attribute"

	"github.com/AleutianAI/AleutianSearch/pkg/validation"
	"github.com/AleutianAI/AleutianSearch/services/rank/querygraph"
	"github.com/AleutianAI/AleutianSearch/services/rank/rankgraph"
	"github.com/AleutianAI/AleutianSearch/services/rank/rules"
)

// Ranking rule names accepted by the diagnostic operations.
const (
	RuleTypo      = "typo"
	RuleProximity = "proximity"
)

// Service ranks documents against queries over named in-memory
// indexes.
//
// Thread Safety: safe for concurrent use. Searches share indexes
// read-only; every graph and enumeration state is per-call.
type Service struct {
	config ServiceConfig

	mu      sync.RWMutex
	indexes map[string]*Index
}

// NewService creates a ranking service.
func NewService(config ServiceConfig) (*Service, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("service config: %w", err)
	}
	return &Service{
		config:  config,
		indexes: make(map[string]*Index),
	}, nil
}

// CreateIndex registers a new empty index under uid. The uid must be
// well-formed per validation.ValidateIndexUID.
func (s *Service) CreateIndex(uid string) (*Index, error) {
	if err := validation.ValidateIndexUID(uid); err != nil {
		return nil, fmt.Errorf("index %q: %w", uid, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.indexes[uid]; ok {
		return nil, fmt.Errorf("index %q: %w", uid, ErrIndexExists)
	}
	idx := NewIndex(uid)
	s.indexes[uid] = idx
	return idx, nil
}

// Index returns the index registered under uid.
func (s *Service) Index(uid string) (*Index, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	idx, ok := s.indexes[uid]
	if !ok {
		return nil, fmt.Errorf("index %q: %w", uid, ErrUnknownIndex)
	}
	return idx, nil
}

// DropIndex unregisters the index under uid.
func (s *Service) DropIndex(uid string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.indexes[uid]; !ok {
		return fmt.Errorf("index %q: %w", uid, ErrUnknownIndex)
	}
	delete(s.indexes, uid)
	return nil
}

// Indexes returns the registered index UIDs, sorted.
func (s *Service) Indexes() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	uids := make([]string, 0, len(s.indexes))
	for uid := range s.indexes {
		uids = append(uids, uid)
	}
	sort.Strings(uids)
	return uids
}

// SearchIndex resolves q.IndexUID and runs the search against it.
func (s *Service) SearchIndex(ctx context.Context, q Query) (*Result, error) {
	idx, err := s.Index(q.IndexUID)
	if err != nil {
		return nil, err
	}
	return s.Search(ctx, idx, q)
}

// Search ranks idx's documents against one query.
//
// Description:
//
//	Tokenizes the query and builds the query graph, preselects the
//	candidate documents (every term matched within its typo budget),
//	then applies the enabled ranking rules in order: typo buckets
//	first, each refined by proximity buckets. Documents inside one
//	final bucket are ordered by ascending ID, so the full output
//	order is (typo cost, proximity cost, doc ID).
//
// Inputs:
//   - ctx: Checked between rule stages and inside every enumeration.
//   - idx: The index to search. Read-locked per posting access.
//   - q: Query text and limit; q.IndexUID is ignored here.
//
// Outputs:
//   - *Result: Ranked hits plus match statistics.
//   - error: ctx.Err() or a graph construction/resolution failure.
func (s *Service) Search(ctx context.Context, idx *Index, q Query) (*Result, error) {
	start := time.Now()
	ctx, span := startSearchSpan(ctx, idx.UID(), q.Q)
	defer span.End()

	limit := q.Limit
	if limit <= 0 {
		limit = s.config.DefaultLimit
	}

	qg, err := querygraph.Build(ctx, s.queryTerms(q.Q))
	if err != nil {
		recordSearchMetrics(ctx, time.Since(start), 0, false)
		return nil, err
	}

	searchTerms := liveTerms(qg)
	universe := idx.candidates(searchTerms)
	total := int(universe.GetCardinality())

	typoBuckets := []costBucket{{docs: universe}}
	if s.config.TypoEnabled && !universe.IsEmpty() {
		tg, err := rules.BuildTypoGraph(ctx, qg)
		if err != nil {
			recordSearchMetrics(ctx, time.Since(start), 0, false)
			return nil, err
		}
		typoBuckets, err = rankBuckets(ctx, tg, func(c *rules.TypoCondition) *roaring.Bitmap {
			return idx.docsWithTermAtTypos(c.Term, c.NbTypos)
		}, universe, s.config.MaxPathsPerRule)
		if err != nil {
			recordSearchMetrics(ctx, time.Since(start), 0, false)
			return nil, err
		}
	}

	var pg *rankgraph.RankingRuleGraph[rules.ProximityCondition]
	if s.config.ProximityEnabled {
		pg, err = rules.BuildProximityGraph(ctx, qg)
		if err != nil {
			recordSearchMetrics(ctx, time.Since(start), 0, false)
			return nil, err
		}
	}

	hits := make([]Hit, 0, min(limit, total))
collect:
	for _, tb := range typoBuckets {
		proxBuckets := []costBucket{{docs: tb.docs}}
		if pg != nil && !tb.docs.IsEmpty() {
			proxBuckets, err = rankBuckets(ctx, pg, func(c *rules.ProximityCondition) *roaring.Bitmap {
				return idx.docsWithPair(c.Left, c.Right, c.Proximity, c.Backward)
			}, tb.docs, s.config.MaxPathsPerRule)
			if err != nil {
				recordSearchMetrics(ctx, time.Since(start), 0, false)
				return nil, err
			}
		}
		for _, pb := range proxBuckets {
			it := pb.docs.Iterator()
			for it.HasNext() {
				if len(hits) == limit {
					break collect
				}
				hits = append(hits, Hit{
					DocID:         it.Next(),
					TypoCost:      tb.cost,
					ProximityCost: pb.cost,
				})
			}
		}
	}

	duration := time.Since(start)
	span.SetAttributes(
		attribute.Int("rank.hits", len(hits)),
		attribute.Int("rank.total_hits", total),
	)
	recordSearchMetrics(ctx, duration, len(hits), true)
	slog.Debug("search complete",
		"index", idx.UID(),
		"query", q.Q,
		"hits", len(hits),
		"total", total,
		"duration", duration,
	)

	return &Result{
		Query:          q.Q,
		Hits:           hits,
		TotalHits:      total,
		ProcessingTime: duration,
	}, nil
}

// queryTerms tokenizes a raw query, keeping at most MaxQueryTerms.
func (s *Service) queryTerms(q string) []querygraph.Term {
	words := tokenize(q)
	if len(words) > s.config.MaxQueryTerms {
		slog.Debug("query truncated",
			"terms", len(words),
			"max", s.config.MaxQueryTerms,
		)
		words = words[:s.config.MaxQueryTerms]
	}
	terms := make([]querygraph.Term, len(words))
	for i, w := range words {
		terms[i] = querygraph.Term{Text: w, Position: i}
	}
	return terms
}

// liveTerms reads the built terms back from the query graph, with the
// typo budgets the builder derived.
func liveTerms(qg *querygraph.Graph) []querygraph.Term {
	ids := qg.TermNodes()
	terms := make([]querygraph.Term, 0, len(ids))
	for _, id := range ids {
		node, err := qg.NodeAt(id)
		if err != nil {
			continue
		}
		terms = append(terms, node.Term)
	}
	return terms
}

// =============================================================================
// Diagnostics
// =============================================================================

// VisualizeRule renders one rule's graph for a query in DOT form,
// highlighting the cheapest root-to-end path.
func (s *Service) VisualizeRule(ctx context.Context, query, rule string) (string, error) {
	qg, err := querygraph.Build(ctx, s.queryTerms(query))
	if err != nil {
		return "", err
	}
	switch rule {
	case RuleTypo:
		g, err := rules.BuildTypoGraph(ctx, qg)
		if err != nil {
			return "", err
		}
		return dotWithCheapestPath(ctx, g)
	case RuleProximity:
		g, err := rules.BuildProximityGraph(ctx, qg)
		if err != nil {
			return "", err
		}
		return dotWithCheapestPath(ctx, g)
	}
	return "", fmt.Errorf("rule %q: %w", rule, ErrUnknownRule)
}

func dotWithCheapestPath[D any](ctx context.Context, g *rankgraph.RankingRuleGraph[D]) (string, error) {
	p, err := g.CheapestPathToEnd(ctx, g.QueryGraph().Root)
	if err != nil {
		if errors.Is(err, rankgraph.ErrNoPath) {
			return g.DOTWithPath(nil), nil
		}
		return "", err
	}
	return g.DOTWithPath(p.Edges), nil
}

// EnumeratePaths drains one rule's path space for a query in cost
// order, up to max paths. Within one cost the drain order is the
// deterministic leftmost-first order of the underlying path set.
func (s *Service) EnumeratePaths(ctx context.Context, query, rule string, max int) ([]rankgraph.Path, error) {
	if max <= 0 {
		max = s.config.MaxPathsPerRule
	}
	qg, err := querygraph.Build(ctx, s.queryTerms(query))
	if err != nil {
		return nil, err
	}
	switch rule {
	case RuleTypo:
		g, err := rules.BuildTypoGraph(ctx, qg)
		if err != nil {
			return nil, err
		}
		return enumeratePaths(ctx, g, max)
	case RuleProximity:
		g, err := rules.BuildProximityGraph(ctx, qg)
		if err != nil {
			return nil, err
		}
		return enumeratePaths(ctx, g, max)
	}
	return nil, fmt.Errorf("rule %q: %w", rule, ErrUnknownRule)
}

func enumeratePaths[D any](ctx context.Context, g *rankgraph.RankingRuleGraph[D], max int) ([]rankgraph.Path, error) {
	state, err := rankgraph.NewKCheapestPathsState(ctx, g)
	if err != nil {
		if errors.Is(err, rankgraph.ErrNoPath) {
			return nil, nil
		}
		return nil, err
	}
	cache := rankgraph.NewEmptyPathsCache()

	out := make([]rankgraph.Path, 0, max)
	for len(out) < max {
		into := rankgraph.NewPathsMap[uint64]()
		ok, err := state.ComputePathsOfNextLowestCost(ctx, cache, into)
		if err != nil {
			return nil, err
		}
		if !ok {
			break
		}
		for len(out) < max {
			edges, cost, found := into.RemoveFirst()
			if !found {
				break
			}
			out = append(out, rankgraph.Path{Edges: edges, Cost: cost})
		}
	}
	return out, nil
}
