// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package rules

import (
	"context"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/AleutianAI/AleutianSearch/services/rank/querygraph"
	"github.com/AleutianAI/AleutianSearch/services/rank/rankgraph"
)

var proximityTracer = otel.Tracer("rank.rules.proximity")

// Proximity rule tuning. A document satisfies a forward condition when
// the right term appears within Proximity word positions after the
// left term; the swapped condition matches the terms in reverse order
// directly adjacent. Past maxProximity the pair is treated as
// unrelated placement at flat cost.
const (
	// maxProximity is the largest tracked word distance between two
	// consecutive query terms.
	maxProximity = 7

	// swappedProximityCost is the cost of matching a pair in reverse
	// order at distance one.
	swappedProximityCost = 3

	// anyPlacementCost is the flat cost of an edge with no placement
	// condition at all.
	anyPlacementCost = 8
)

// ProximityCondition is the payload of a conditional proximity edge:
// the document must contain Left and Right within Proximity positions,
// in reverse order when Backward is set.
type ProximityCondition struct {
	// Left is the earlier query term.
	Left string

	// Right is the later query term.
	Right string

	// Proximity is the maximum allowed word distance, at least 1.
	Proximity uint8

	// Backward marks a swapped-order match (Right before Left).
	Backward bool
}

func (c ProximityCondition) String() string {
	if c.Backward {
		return fmt.Sprintf("%s<-%s p%d", c.Left, c.Right, c.Proximity)
	}
	return fmt.Sprintf("%s->%s p%d", c.Left, c.Right, c.Proximity)
}

// BuildProximityGraph builds the proximity rule's edge layer over qg.
//
// Description:
//
//	Walks every live adjacency of the query graph. Adjacencies into or
//	out of the terminal nodes carry a single unconditional zero-cost
//	edge; each term-to-term adjacency gets the full condition bundle:
//	forward distances 1..maxProximity at cost distance-1, the swapped
//	pair at swappedProximityCost, and an unconditional fallback at
//	anyPlacementCost. Edge IDs are deterministic for a given query
//	graph: nodes ascending, successors ascending, bundle in the order
//	above.
//
// Outputs:
//   - *rankgraph.RankingRuleGraph[ProximityCondition]: Fresh rule
//     graph owned by the caller.
//   - error: ErrNilQueryGraph, ctx.Err(), or an edge-insertion error.
func BuildProximityGraph(ctx context.Context, qg *querygraph.Graph) (*rankgraph.RankingRuleGraph[ProximityCondition], error) {
	ctx, span := proximityTracer.Start(ctx, "rules.BuildProximityGraph")
	defer span.End()

	if qg == nil {
		return nil, ErrNilQueryGraph
	}

	g := rankgraph.NewRankingRuleGraph[ProximityCondition](qg)
	for i := 0; i < qg.Len(); i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		from := querygraph.NodeID(i)
		if qg.IsDeleted(from) {
			continue
		}
		fromNode, err := qg.NodeAt(from)
		if err != nil {
			return nil, err
		}
		for _, to := range qg.Successors(from) {
			toNode, err := qg.NodeAt(to)
			if err != nil {
				return nil, err
			}
			if fromNode.Kind != querygraph.KindTerm || toNode.Kind != querygraph.KindTerm {
				if _, err := g.AddEdge(from, to, 0, nil); err != nil {
					return nil, err
				}
				continue
			}
			if err := addPairBundle(g, from, to, fromNode.Term.Text, toNode.Term.Text); err != nil {
				return nil, err
			}
		}
	}

	span.SetAttributes(attribute.Int("edges", g.NumEdgeSlots()))
	slog.Debug("proximity graph built",
		"nodes", qg.LiveLen(),
		"edges", g.NumEdgeSlots(),
	)
	return g, nil
}

// addPairBundle inserts the full condition set for one term pair.
func addPairBundle(g *rankgraph.RankingRuleGraph[ProximityCondition], from, to querygraph.NodeID, left, right string) error {
	for p := uint8(1); p <= maxProximity; p++ {
		cond := ProximityCondition{Left: left, Right: right, Proximity: p}
		if _, err := g.AddEdge(from, to, uint32(p-1), &cond); err != nil {
			return err
		}
	}
	swapped := ProximityCondition{Left: left, Right: right, Proximity: 1, Backward: true}
	if _, err := g.AddEdge(from, to, swappedProximityCost, &swapped); err != nil {
		return err
	}
	if _, err := g.AddEdge(from, to, anyPlacementCost, nil); err != nil {
		return err
	}
	return nil
}
