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

var typoTracer = otel.Tracer("rank.rules.typo")

// TypoCondition is the payload of a conditional typo edge: the
// document must contain a word within NbTypos edit distance of Term.
type TypoCondition struct {
	// Term is the query term being matched.
	Term string

	// NbTypos is the exact number of typos this alternative spends.
	NbTypos uint8
}

func (c TypoCondition) String() string {
	return fmt.Sprintf("%s t%d", c.Term, c.NbTypos)
}

// BuildTypoGraph builds the typo rule's edge layer over qg.
//
// Description:
//
//	The condition on an edge belongs to the term node it enters: one
//	edge per spendable typo count, from zero up to the destination
//	term's budget, each costing exactly its typo count. Adjacencies
//	into the end node carry a single unconditional zero-cost edge.
//	Edge IDs are deterministic: nodes ascending, successors ascending,
//	typo counts ascending.
//
// Outputs:
//   - *rankgraph.RankingRuleGraph[TypoCondition]: Fresh rule graph
//     owned by the caller.
//   - error: ErrNilQueryGraph, ctx.Err(), or an edge-insertion error.
func BuildTypoGraph(ctx context.Context, qg *querygraph.Graph) (*rankgraph.RankingRuleGraph[TypoCondition], error) {
	ctx, span := typoTracer.Start(ctx, "rules.BuildTypoGraph")
	defer span.End()

	if qg == nil {
		return nil, ErrNilQueryGraph
	}

	g := rankgraph.NewRankingRuleGraph[TypoCondition](qg)
	for i := 0; i < qg.Len(); i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		from := querygraph.NodeID(i)
		if qg.IsDeleted(from) {
			continue
		}
		for _, to := range qg.Successors(from) {
			toNode, err := qg.NodeAt(to)
			if err != nil {
				return nil, err
			}
			if toNode.Kind != querygraph.KindTerm {
				if _, err := g.AddEdge(from, to, 0, nil); err != nil {
					return nil, err
				}
				continue
			}
			for t := uint8(0); t <= toNode.Term.MaxTypos; t++ {
				cond := TypoCondition{Term: toNode.Term.Text, NbTypos: t}
				if _, err := g.AddEdge(from, to, uint32(t), &cond); err != nil {
					return nil, err
				}
			}
		}
	}

	span.SetAttributes(attribute.Int("edges", g.NumEdgeSlots()))
	slog.Debug("typo graph built",
		"nodes", qg.LiveLen(),
		"edges", g.NumEdgeSlots(),
	)
	return g, nil
}
