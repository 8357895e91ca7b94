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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/AleutianSearch/services/rank/rankgraph"
)

// =============================================================================
// BuildTypoGraph Tests
// =============================================================================

func TestBuildTypoGraph_BudgetPerDestinationTerm(t *testing.T) {
	qg := buildQuery(t, "red", "shoes")

	g, err := BuildTypoGraph(context.Background(), qg)
	require.NoError(t, err)

	// "red" gets no typo budget, "shoes" gets one typo, plus the
	// unconditional end link.
	require.Equal(t, 4, g.NumEdgeSlots())

	exact, err := g.Edge(0)
	require.NoError(t, err)
	assert.Zero(t, exact.Cost)
	require.NotNil(t, exact.Details)
	assert.Equal(t, TypoCondition{Term: "red", NbTypos: 0}, *exact.Details)

	for i, want := range []TypoCondition{
		{Term: "shoes", NbTypos: 0},
		{Term: "shoes", NbTypos: 1},
	} {
		e, err := g.Edge(rankgraph.EdgeID(1 + i))
		require.NoError(t, err)
		assert.Equal(t, uint32(want.NbTypos), e.Cost)
		require.NotNil(t, e.Details)
		assert.Equal(t, want, *e.Details)
	}

	endEdge, err := g.Edge(3)
	require.NoError(t, err)
	assert.Zero(t, endEdge.Cost)
	assert.Nil(t, endEdge.Details)
}

func TestBuildTypoGraph_LongTermBudget(t *testing.T) {
	qg := buildQuery(t, "extraordinary")

	g, err := BuildTypoGraph(context.Background(), qg)
	require.NoError(t, err)

	// Three typo alternatives into the term, one end link.
	require.Equal(t, 4, g.NumEdgeSlots())
	for i := 0; i < 3; i++ {
		e, err := g.Edge(rankgraph.EdgeID(i))
		require.NoError(t, err)
		assert.Equal(t, uint32(i), e.Cost)
		require.NotNil(t, e.Details)
		assert.Equal(t, uint8(i), e.Details.NbTypos)
	}
}

func TestBuildTypoGraph_EnumeratesByTypoCount(t *testing.T) {
	ctx := context.Background()
	qg := buildQuery(t, "red", "shoes")

	g, err := BuildTypoGraph(ctx, qg)
	require.NoError(t, err)

	s, err := rankgraph.NewKCheapestPathsState(ctx, g)
	require.NoError(t, err)
	cache := rankgraph.NewEmptyPathsCache()

	// Bucket one: everything spelled exactly.
	into := rankgraph.NewPathsMap[uint64]()
	ok, err := s.ComputePathsOfNextLowestCost(ctx, cache, into)
	require.NoError(t, err)
	require.True(t, ok)
	edges, cost, found := into.RemoveFirst()
	require.True(t, found)
	assert.Equal(t, []rankgraph.EdgeID{0, 1, 3}, edges)
	assert.Zero(t, cost)

	// Bucket two: one typo spent on "shoes".
	into = rankgraph.NewPathsMap[uint64]()
	ok, err = s.ComputePathsOfNextLowestCost(ctx, cache, into)
	require.NoError(t, err)
	require.True(t, ok)
	edges, cost, found = into.RemoveFirst()
	require.True(t, found)
	assert.Equal(t, []rankgraph.EdgeID{0, 2, 3}, edges)
	assert.Equal(t, uint64(1), cost)

	// Nothing cheaper than two typos exists, and no branch offers two.
	into = rankgraph.NewPathsMap[uint64]()
	ok, err = s.ComputePathsOfNextLowestCost(ctx, cache, into)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.True(t, s.Exhausted())
}

func TestBuildTypoGraph_NilGraph(t *testing.T) {
	_, err := BuildTypoGraph(context.Background(), nil)
	assert.ErrorIs(t, err, ErrNilQueryGraph)
}

func TestBuildTypoGraph_Cancelled(t *testing.T) {
	qg := buildQuery(t, "red", "shoes")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := BuildTypoGraph(ctx, qg)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestTypoCondition_String(t *testing.T) {
	c := TypoCondition{Term: "shoes", NbTypos: 1}
	assert.Equal(t, "shoes t1", c.String())
}
