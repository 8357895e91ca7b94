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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/AleutianSearch/services/rank/querygraph"
)

// Test fixtures

// testCondition is a minimal rule payload for edge tests.
type testCondition struct {
	word string
}

func (c testCondition) String() string {
	return "word " + c.word
}

// buildRuleTestQuery builds a linear query graph over the given words:
// root, one term node per word, end.
func buildRuleTestQuery(t *testing.T, words ...string) *querygraph.Graph {
	t.Helper()
	terms := make([]querygraph.Term, len(words))
	for i, w := range words {
		terms[i] = querygraph.Term{Text: w, Position: i}
	}
	qg, err := querygraph.Build(context.Background(), terms)
	require.NoError(t, err)
	return qg
}

// =============================================================================
// Construction Tests
// =============================================================================

func TestNewRankingRuleGraph_Empty(t *testing.T) {
	qg := buildRuleTestQuery(t, "red", "shoes")
	g := NewRankingRuleGraph[testCondition](qg)

	assert.Zero(t, g.NumEdgeSlots())
	assert.Zero(t, g.LiveEdges())
	assert.Empty(t, g.OutgoingEdges(qg.Root))
	assert.Same(t, qg, g.QueryGraph())
}

// =============================================================================
// AddEdge Tests
// =============================================================================

func TestRankingRuleGraph_AddEdge_SequentialIDs(t *testing.T) {
	qg := buildRuleTestQuery(t, "red", "shoes")
	g := NewRankingRuleGraph[testCondition](qg)

	id0, err := g.AddEdge(0, 1, 0, nil)
	require.NoError(t, err)
	id1, err := g.AddEdge(1, 2, 3, &testCondition{word: "red"})
	require.NoError(t, err)

	assert.Equal(t, EdgeID(0), id0)
	assert.Equal(t, EdgeID(1), id1)
	assert.Equal(t, 2, g.NumEdgeSlots())
	assert.Equal(t, 2, g.LiveEdges())
}

func TestRankingRuleGraph_AddEdge_RejectsDeadEndpoints(t *testing.T) {
	qg := buildRuleTestQuery(t, "red", "shoes")
	require.NoError(t, qg.RemoveNodes([]querygraph.NodeID{1}))

	g := NewRankingRuleGraph[testCondition](qg)

	_, err := g.AddEdge(1, 2, 0, nil)
	assert.ErrorIs(t, err, ErrInvalidEdge)

	_, err = g.AddEdge(0, 1, 0, nil)
	assert.ErrorIs(t, err, ErrInvalidEdge)

	_, err = g.AddEdge(0, 99, 0, nil)
	assert.ErrorIs(t, err, ErrInvalidEdge)

	assert.Zero(t, g.NumEdgeSlots())
}

// =============================================================================
// Edge Lookup Tests
// =============================================================================

func TestRankingRuleGraph_Edge_RoundTrip(t *testing.T) {
	qg := buildRuleTestQuery(t, "red", "shoes")
	g := NewRankingRuleGraph[testCondition](qg)

	cond := &testCondition{word: "red"}
	id, err := g.AddEdge(1, 2, 7, cond)
	require.NoError(t, err)

	e, err := g.Edge(id)
	require.NoError(t, err)
	assert.Equal(t, NodeID(1), e.From)
	assert.Equal(t, NodeID(2), e.To)
	assert.Equal(t, uint32(7), e.Cost)
	assert.Same(t, cond, e.Details)
}

func TestRankingRuleGraph_Edge_OutOfRange(t *testing.T) {
	qg := buildRuleTestQuery(t, "red")
	g := NewRankingRuleGraph[testCondition](qg)

	_, err := g.Edge(0)
	assert.ErrorIs(t, err, ErrEdgeOutOfRange)
	assert.False(t, errors.Is(err, ErrStaleEdge))
}

func TestRankingRuleGraph_Edge_StaleAfterRemoval(t *testing.T) {
	qg := buildRuleTestQuery(t, "red")
	g := NewRankingRuleGraph[testCondition](qg)

	id, err := g.AddEdge(0, 1, 1, nil)
	require.NoError(t, err)

	g.RemoveEdge(id)

	_, err = g.Edge(id)
	assert.ErrorIs(t, err, ErrStaleEdge)

	// The two lookup failures stay distinguishable.
	assert.False(t, errors.Is(err, ErrEdgeOutOfRange))
}

// =============================================================================
// RemoveEdge Tests
// =============================================================================

func TestRankingRuleGraph_RemoveEdge_TombstonesSlot(t *testing.T) {
	qg := buildRuleTestQuery(t, "red", "shoes")
	g := NewRankingRuleGraph[testCondition](qg)

	id0, _ := g.AddEdge(0, 1, 0, nil)
	id1, _ := g.AddEdge(1, 2, 1, nil)

	g.RemoveEdge(id0)

	assert.Equal(t, 2, g.NumEdgeSlots())
	assert.Equal(t, 1, g.LiveEdges())
	assert.Empty(t, g.OutgoingEdges(0))
	assert.Equal(t, []EdgeID{id1}, g.OutgoingEdges(1))
}

func TestRankingRuleGraph_RemoveEdge_IDsNeverReused(t *testing.T) {
	qg := buildRuleTestQuery(t, "red")
	g := NewRankingRuleGraph[testCondition](qg)

	id0, _ := g.AddEdge(0, 1, 0, nil)
	g.RemoveEdge(id0)

	id1, err := g.AddEdge(0, 1, 0, nil)
	require.NoError(t, err)
	assert.NotEqual(t, id0, id1)

	// The old ID keeps reporting stale, not the new edge.
	_, err = g.Edge(id0)
	assert.ErrorIs(t, err, ErrStaleEdge)
}

func TestRankingRuleGraph_RemoveEdge_Idempotent(t *testing.T) {
	qg := buildRuleTestQuery(t, "red")
	g := NewRankingRuleGraph[testCondition](qg)

	id, _ := g.AddEdge(0, 1, 0, nil)
	g.RemoveEdge(id)
	g.RemoveEdge(id)
	g.RemoveEdge(99)

	assert.Equal(t, 1, g.NumEdgeSlots())
	assert.Zero(t, g.LiveEdges())
}

// =============================================================================
// OutgoingEdges Tests
// =============================================================================

func TestRankingRuleGraph_OutgoingEdges_AscendingLiveOnly(t *testing.T) {
	qg := buildRuleTestQuery(t, "red", "shoes")
	g := NewRankingRuleGraph[testCondition](qg)

	id0, _ := g.AddEdge(1, 2, 0, nil)
	id1, _ := g.AddEdge(1, 3, 1, nil)
	id2, _ := g.AddEdge(1, 2, 2, nil)

	assert.Equal(t, []EdgeID{id0, id1, id2}, g.OutgoingEdges(1))

	g.RemoveEdge(id1)
	assert.Equal(t, []EdgeID{id0, id2}, g.OutgoingEdges(1))

	assert.Empty(t, g.OutgoingEdges(2))
	assert.Nil(t, g.OutgoingEdges(99))
}
