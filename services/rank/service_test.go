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
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/AleutianSearch/services/rank/rankgraph"
)

// Test fixtures

func newRankService(t *testing.T, config ServiceConfig) *Service {
	t.Helper()
	svc, err := NewService(config)
	require.NoError(t, err)
	return svc
}

// seedShoeCatalog registers the shoe corpus under the "products" UID.
func seedShoeCatalog(t *testing.T, svc *Service) *Index {
	t.Helper()
	idx, err := svc.CreateIndex("products")
	require.NoError(t, err)
	for _, doc := range shoeCatalog {
		require.NoError(t, idx.AddDocument(context.Background(), doc))
	}
	return idx
}

// =============================================================================
// Service Lifecycle Tests
// =============================================================================

func TestNewService_ValidatesConfig(t *testing.T) {
	_, err := NewService(ServiceConfig{})
	require.Error(t, err)

	svc, err := NewService(DefaultServiceConfig())
	require.NoError(t, err)
	assert.NotNil(t, svc)
}

func TestCreateIndex(t *testing.T) {
	svc := newRankService(t, DefaultServiceConfig())

	idx, err := svc.CreateIndex("products")
	require.NoError(t, err)
	assert.Equal(t, "products", idx.UID())

	got, err := svc.Index("products")
	require.NoError(t, err)
	assert.Same(t, idx, got)
}

func TestCreateIndex_Duplicate(t *testing.T) {
	svc := newRankService(t, DefaultServiceConfig())
	_, err := svc.CreateIndex("products")
	require.NoError(t, err)

	_, err = svc.CreateIndex("products")
	assert.ErrorIs(t, err, ErrIndexExists)
}

func TestCreateIndex_InvalidUID(t *testing.T) {
	svc := newRankService(t, DefaultServiceConfig())

	for _, uid := range []string{"", "my products", "items.v2", "a/b"} {
		_, err := svc.CreateIndex(uid)
		assert.Error(t, err, "uid %q", uid)
	}
}

func TestIndex_Unknown(t *testing.T) {
	svc := newRankService(t, DefaultServiceConfig())

	_, err := svc.Index("missing")
	assert.ErrorIs(t, err, ErrUnknownIndex)
}

func TestDropIndex(t *testing.T) {
	svc := newRankService(t, DefaultServiceConfig())
	_, err := svc.CreateIndex("products")
	require.NoError(t, err)

	require.NoError(t, svc.DropIndex("products"))

	_, err = svc.Index("products")
	assert.ErrorIs(t, err, ErrUnknownIndex)
	assert.ErrorIs(t, svc.DropIndex("products"), ErrUnknownIndex)
}

func TestIndexes_Sorted(t *testing.T) {
	svc := newRankService(t, DefaultServiceConfig())
	for _, uid := range []string{"books", "albums", "shoes"} {
		_, err := svc.CreateIndex(uid)
		require.NoError(t, err)
	}

	assert.Equal(t, []string{"albums", "books", "shoes"}, svc.Indexes())
}

// =============================================================================
// Search Tests
// =============================================================================

func TestSearch_RanksTypoThenProximityThenID(t *testing.T) {
	svc := newRankService(t, DefaultServiceConfig())
	idx := seedShoeCatalog(t, svc)

	res, err := svc.Search(context.Background(), idx, Query{Q: "red shoes"})
	require.NoError(t, err)

	// Document 1 has the words adjacent, 2 one word apart, 3 swapped,
	// and 4 spends a typo on "shoez" and has no exact pair at all.
	want := []Hit{
		{DocID: 1, TypoCost: 0, ProximityCost: 0},
		{DocID: 2, TypoCost: 0, ProximityCost: 1},
		{DocID: 3, TypoCost: 0, ProximityCost: 3},
		{DocID: 4, TypoCost: 1, ProximityCost: 8},
	}
	assert.Equal(t, want, res.Hits)
	assert.Equal(t, 4, res.TotalHits)
	assert.Equal(t, "red shoes", res.Query)
}

func TestSearch_PlaceholderReturnsEverything(t *testing.T) {
	svc := newRankService(t, DefaultServiceConfig())
	idx := seedShoeCatalog(t, svc)

	res, err := svc.Search(context.Background(), idx, Query{Q: ""})
	require.NoError(t, err)

	want := []Hit{
		{DocID: 1}, {DocID: 2}, {DocID: 3}, {DocID: 4},
	}
	assert.Equal(t, want, res.Hits)
	assert.Equal(t, 4, res.TotalHits)
}

func TestSearch_Limit(t *testing.T) {
	svc := newRankService(t, DefaultServiceConfig())
	idx := seedShoeCatalog(t, svc)

	res, err := svc.Search(context.Background(), idx, Query{Q: "red shoes", Limit: 2})
	require.NoError(t, err)

	require.Len(t, res.Hits, 2)
	assert.Equal(t, uint32(1), res.Hits[0].DocID)
	assert.Equal(t, uint32(2), res.Hits[1].DocID)
	assert.Equal(t, 4, res.TotalHits)
}

func TestSearch_DefaultLimit(t *testing.T) {
	config := DefaultServiceConfig()
	config.DefaultLimit = 3
	svc := newRankService(t, config)
	idx := seedShoeCatalog(t, svc)

	res, err := svc.Search(context.Background(), idx, Query{Q: "red shoes"})
	require.NoError(t, err)

	assert.Len(t, res.Hits, 3)
	assert.Equal(t, 4, res.TotalHits)
}

func TestSearch_NoMatches(t *testing.T) {
	svc := newRankService(t, DefaultServiceConfig())
	idx := seedShoeCatalog(t, svc)

	res, err := svc.Search(context.Background(), idx, Query{Q: "velvet"})
	require.NoError(t, err)

	assert.Empty(t, res.Hits)
	assert.Zero(t, res.TotalHits)
}

func TestSearch_TypoRuleOnly(t *testing.T) {
	config := DefaultServiceConfig()
	config.ProximityEnabled = false
	svc := newRankService(t, config)
	idx := seedShoeCatalog(t, svc)

	res, err := svc.Search(context.Background(), idx, Query{Q: "red shoes"})
	require.NoError(t, err)

	// Without proximity the three exact documents tie and fall back
	// to ID order.
	want := []Hit{
		{DocID: 1}, {DocID: 2}, {DocID: 3},
		{DocID: 4, TypoCost: 1},
	}
	assert.Equal(t, want, res.Hits)
}

func TestSearch_ProximityRuleOnly(t *testing.T) {
	config := DefaultServiceConfig()
	config.TypoEnabled = false
	svc := newRankService(t, config)
	idx := seedShoeCatalog(t, svc)

	res, err := svc.Search(context.Background(), idx, Query{Q: "red shoes"})
	require.NoError(t, err)

	// Document 4 still reaches the candidate set through the typo
	// budget, but only the word-placement fallback matches it.
	want := []Hit{
		{DocID: 1, ProximityCost: 0},
		{DocID: 2, ProximityCost: 1},
		{DocID: 3, ProximityCost: 3},
		{DocID: 4, ProximityCost: 8},
	}
	assert.Equal(t, want, res.Hits)
}

func TestSearch_RulesDisabled(t *testing.T) {
	config := DefaultServiceConfig()
	config.TypoEnabled = false
	config.ProximityEnabled = false
	svc := newRankService(t, config)
	idx := seedShoeCatalog(t, svc)

	res, err := svc.Search(context.Background(), idx, Query{Q: "red shoes"})
	require.NoError(t, err)

	want := []Hit{
		{DocID: 1}, {DocID: 2}, {DocID: 3}, {DocID: 4},
	}
	assert.Equal(t, want, res.Hits)
}

func TestSearch_TruncatesQueryTerms(t *testing.T) {
	config := DefaultServiceConfig()
	config.MaxQueryTerms = 1
	svc := newRankService(t, config)
	idx := seedShoeCatalog(t, svc)

	res, err := svc.Search(context.Background(), idx, Query{Q: "red shoes"})
	require.NoError(t, err)

	// Only "red" survives, so no document pays a typo or proximity
	// cost.
	require.Len(t, res.Hits, 4)
	for _, h := range res.Hits {
		assert.Zero(t, h.TypoCost)
		assert.Zero(t, h.ProximityCost)
	}
}

func TestSearch_CancelledContext(t *testing.T) {
	svc := newRankService(t, DefaultServiceConfig())
	idx := seedShoeCatalog(t, svc)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := svc.Search(ctx, idx, Query{Q: "red shoes"})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSearchIndex(t *testing.T) {
	svc := newRankService(t, DefaultServiceConfig())
	seedShoeCatalog(t, svc)

	res, err := svc.SearchIndex(context.Background(), Query{IndexUID: "products", Q: "red shoes", Limit: 1})
	require.NoError(t, err)
	require.Len(t, res.Hits, 1)
	assert.Equal(t, uint32(1), res.Hits[0].DocID)
}

func TestSearchIndex_UnknownIndex(t *testing.T) {
	svc := newRankService(t, DefaultServiceConfig())

	_, err := svc.SearchIndex(context.Background(), Query{IndexUID: "missing", Q: "red shoes"})
	assert.ErrorIs(t, err, ErrUnknownIndex)
}

// =============================================================================
// Diagnostics Tests
// =============================================================================

func TestVisualizeRule_Typo(t *testing.T) {
	svc := newRankService(t, DefaultServiceConfig())

	dot, err := svc.VisualizeRule(context.Background(), "red shoes", RuleTypo)
	require.NoError(t, err)

	assert.Contains(t, dot, "digraph G {")
	assert.Contains(t, dot, `0 [label = "0: start"] [color = blue];`)
	assert.Contains(t, dot, `1 [label = "1: red"];`)
	assert.Contains(t, dot, `3 [label = "3: end"] [color = red];`)

	// The zero-typo spine is the cheapest path and gets highlighted;
	// the one-typo alternative stays green.
	assert.Contains(t, dot, `1 -> 2 [label = "cost 0 shoes t0", color = red];`)
	assert.Contains(t, dot, `1 -> 2 [label = "cost 1 shoes t1", color = green];`)
}

func TestVisualizeRule_Proximity(t *testing.T) {
	svc := newRankService(t, DefaultServiceConfig())

	dot, err := svc.VisualizeRule(context.Background(), "red shoes", RuleProximity)
	require.NoError(t, err)

	assert.Contains(t, dot, `1 -> 2 [label = "cost 0 red->shoes p1", color = red];`)
	assert.Contains(t, dot, `1 -> 2 [label = "cost 3 red<-shoes p1", color = green];`)
	assert.Contains(t, dot, `1 -> 2 [label = "cost 8", color = green];`)
}

func TestVisualizeRule_PlaceholderQuery(t *testing.T) {
	svc := newRankService(t, DefaultServiceConfig())

	dot, err := svc.VisualizeRule(context.Background(), "", RuleTypo)
	require.NoError(t, err)

	want := "digraph G {\n" +
		"  rankdir = LR;\n" +
		"  node [shape = record];\n" +
		"  0 [label = \"0: start\"] [color = blue];\n" +
		"  1 [label = \"1: end\"] [color = red];\n" +
		"  0 -> 1 [label = \"cost 0\", color = red];\n" +
		"}\n"
	assert.Equal(t, want, dot)
}

func TestVisualizeRule_Unknown(t *testing.T) {
	svc := newRankService(t, DefaultServiceConfig())

	_, err := svc.VisualizeRule(context.Background(), "red shoes", "attribute")
	assert.ErrorIs(t, err, ErrUnknownRule)
}

func TestEnumeratePaths_Typo(t *testing.T) {
	svc := newRankService(t, DefaultServiceConfig())

	paths, err := svc.EnumeratePaths(context.Background(), "red shoes", RuleTypo, 0)
	require.NoError(t, err)

	require.Len(t, paths, 2)
	assert.Equal(t, []rankgraph.EdgeID{0, 1, 3}, paths[0].Edges)
	assert.Zero(t, paths[0].Cost)
	assert.Equal(t, []rankgraph.EdgeID{0, 2, 3}, paths[1].Edges)
	assert.Equal(t, uint64(1), paths[1].Cost)
}

func TestEnumeratePaths_ProximityCostOrder(t *testing.T) {
	svc := newRankService(t, DefaultServiceConfig())

	paths, err := svc.EnumeratePaths(context.Background(), "red shoes", RuleProximity, 0)
	require.NoError(t, err)

	require.Len(t, paths, 9)
	costs := make([]uint64, len(paths))
	for i, p := range paths {
		costs[i] = p.Cost
	}
	assert.Equal(t, []uint64{0, 1, 2, 3, 3, 4, 5, 6, 8}, costs)

	// Inside the cost-three tie the forward placement drains before
	// the swapped one.
	assert.Equal(t, []rankgraph.EdgeID{0, 4, 10}, paths[3].Edges)
	assert.Equal(t, []rankgraph.EdgeID{0, 8, 10}, paths[4].Edges)
}

func TestEnumeratePaths_Max(t *testing.T) {
	svc := newRankService(t, DefaultServiceConfig())

	paths, err := svc.EnumeratePaths(context.Background(), "red shoes", RuleProximity, 3)
	require.NoError(t, err)

	require.Len(t, paths, 3)
	assert.Equal(t, uint64(2), paths[2].Cost)
}

func TestEnumeratePaths_UnknownRule(t *testing.T) {
	svc := newRankService(t, DefaultServiceConfig())

	_, err := svc.EnumeratePaths(context.Background(), "red shoes", "attribute", 0)
	assert.ErrorIs(t, err, ErrUnknownRule)
}

// =============================================================================
// Benchmarks
// =============================================================================

func BenchmarkSearch(b *testing.B) {
	svc, err := NewService(DefaultServiceConfig())
	if err != nil {
		b.Fatal(err)
	}
	idx, err := svc.CreateIndex("bench")
	if err != nil {
		b.Fatal(err)
	}
	rng := rand.New(rand.NewSource(42))
	words := []string{"red", "blue", "shoes", "boots", "leather", "suede", "sale", "store"}
	for id := uint32(0); id < 200; id++ {
		text := ""
		for w := 0; w < 6; w++ {
			text += words[rng.Intn(len(words))] + " "
		}
		if err := idx.AddDocument(context.Background(), Document{ID: id, Text: text}); err != nil {
			b.Fatal(err)
		}
	}
	query := Query{IndexUID: "bench", Q: "red shoes"}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := svc.SearchIndex(context.Background(), query); err != nil {
			b.Fatal(err)
		}
	}
}
