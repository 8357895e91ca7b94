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
	"fmt"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/AleutianSearch/services/rank/querygraph"
)

// Test fixtures

// shoeCatalog is a small corpus with known word positions:
//
//	1: red@0 shoes@1 on@2 sale@3
//	2: red@0 leather@1 shoes@2
//	3: shoes@0 red@1
//	4: red@0 shoez@1
var shoeCatalog = []Document{
	{ID: 1, Text: "red shoes on sale"},
	{ID: 2, Text: "red leather shoes"},
	{ID: 3, Text: "shoes red"},
	{ID: 4, Text: "red shoez"},
}

func buildShoeIndex(t *testing.T) *Index {
	t.Helper()
	idx := NewIndex("products")
	for _, doc := range shoeCatalog {
		require.NoError(t, idx.AddDocument(context.Background(), doc))
	}
	return idx
}

// =============================================================================
// Tokenizer Tests
// =============================================================================

func TestTokenize(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []string
	}{
		{name: "lowercases", text: "Red SHOES", want: []string{"red", "shoes"}},
		{name: "strips punctuation", text: "red, shoes!", want: []string{"red", "shoes"}},
		{name: "splits on apostrophe", text: "it's", want: []string{"it", "s"}},
		{name: "keeps digits", text: "model 42b", want: []string{"model", "42b"}},
		{name: "splits hyphenated", text: "hand-made", want: []string{"hand", "made"}},
		{name: "unicode letters", text: "Crème Brûlée", want: []string{"crème", "brûlée"}},
		{name: "empty", text: "", want: nil},
		{name: "only separators", text: " ,.! ", want: nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tokenize(tt.text)
			if tt.want == nil {
				assert.Empty(t, got)
				return
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

// =============================================================================
// Document Lifecycle Tests
// =============================================================================

func TestNewIndex_Empty(t *testing.T) {
	idx := NewIndex("products")

	assert.Equal(t, "products", idx.UID())
	assert.Zero(t, idx.Len())
	assert.True(t, idx.AllDocs().IsEmpty())
}

func TestAddDocument(t *testing.T) {
	idx := NewIndex("products")

	err := idx.AddDocument(context.Background(), Document{ID: 7, Text: "red shoes"})
	require.NoError(t, err)

	assert.Equal(t, 1, idx.Len())
	doc, err := idx.Document(7)
	require.NoError(t, err)
	assert.Equal(t, Document{ID: 7, Text: "red shoes"}, doc)
}

func TestAddDocument_Duplicate(t *testing.T) {
	idx := NewIndex("products")
	require.NoError(t, idx.AddDocument(context.Background(), Document{ID: 7, Text: "red shoes"}))

	err := idx.AddDocument(context.Background(), Document{ID: 7, Text: "blue shoes"})
	require.ErrorIs(t, err, ErrDuplicateDocument)

	// The original stays untouched.
	doc, err := idx.Document(7)
	require.NoError(t, err)
	assert.Equal(t, "red shoes", doc.Text)
}

func TestRemoveDocument(t *testing.T) {
	idx := buildShoeIndex(t)

	require.NoError(t, idx.RemoveDocument(context.Background(), 4))

	assert.Equal(t, 3, idx.Len())
	_, err := idx.Document(4)
	assert.ErrorIs(t, err, ErrUnknownDocument)

	// "shoez" appeared only in document 4, so the word is gone from
	// the vocabulary and no longer reachable at any distance.
	assert.True(t, idx.docsWithExactTerm("shoez").IsEmpty())
	assert.True(t, idx.docsWithTermAtTypos("shoes", 1).IsEmpty())
}

func TestRemoveDocument_Unknown(t *testing.T) {
	idx := buildShoeIndex(t)

	err := idx.RemoveDocument(context.Background(), 99)
	assert.ErrorIs(t, err, ErrUnknownDocument)
	assert.Equal(t, 4, idx.Len())
}

func TestDocument_Unknown(t *testing.T) {
	idx := NewIndex("products")

	_, err := idx.Document(1)
	assert.ErrorIs(t, err, ErrUnknownDocument)
}

func TestAllDocs_ReturnsCopy(t *testing.T) {
	idx := buildShoeIndex(t)

	docs := idx.AllDocs()
	docs.Remove(1)

	assert.True(t, idx.AllDocs().Contains(1))
}

// =============================================================================
// Condition Resolution Tests
// =============================================================================

func TestDocsWithExactTerm(t *testing.T) {
	idx := buildShoeIndex(t)

	assert.Equal(t, []uint32{1, 2, 3}, idx.docsWithExactTerm("shoes").ToArray())
	assert.Equal(t, []uint32{4}, idx.docsWithExactTerm("shoez").ToArray())
	assert.True(t, idx.docsWithExactTerm("velvet").IsEmpty())
}

func TestDocsWithTermAtTypos_ExactDistance(t *testing.T) {
	idx := buildShoeIndex(t)

	// Zero typos is the verbatim posting list.
	assert.Equal(t, []uint32{1, 2, 3}, idx.docsWithTermAtTypos("shoes", 0).ToArray())

	// One typo matches "shoez" but must not re-match the verbatim
	// word: the distance is exact, not a ceiling.
	assert.Equal(t, []uint32{4}, idx.docsWithTermAtTypos("shoes", 1).ToArray())

	assert.True(t, idx.docsWithTermAtTypos("shoes", 2).IsEmpty())
}

func TestCandidates_IntersectsAllTerms(t *testing.T) {
	idx := buildShoeIndex(t)

	got := idx.candidates([]querygraph.Term{
		{Text: "red", Position: 0},
		{Text: "shoes", Position: 1, MaxTypos: 1},
	})
	assert.Equal(t, []uint32{1, 2, 3, 4}, got.ToArray())

	// Without the typo budget the misspelled document drops out.
	got = idx.candidates([]querygraph.Term{
		{Text: "red", Position: 0},
		{Text: "shoes", Position: 1},
	})
	assert.Equal(t, []uint32{1, 2, 3}, got.ToArray())
}

func TestCandidates_MissingTermEmpties(t *testing.T) {
	idx := buildShoeIndex(t)

	got := idx.candidates([]querygraph.Term{
		{Text: "red", Position: 0},
		{Text: "velvet", Position: 1, MaxTypos: 1},
	})
	assert.True(t, got.IsEmpty())
}

func TestCandidates_NoTermsMatchesAll(t *testing.T) {
	idx := buildShoeIndex(t)

	assert.Equal(t, []uint32{1, 2, 3, 4}, idx.candidates(nil).ToArray())
}

func TestDocsWithPair_ForwardWindow(t *testing.T) {
	idx := buildShoeIndex(t)

	// Adjacent only: document 1 has shoes directly after red.
	assert.Equal(t, []uint32{1}, idx.docsWithPair("red", "shoes", 1, false).ToArray())

	// A window of two also admits "red leather shoes".
	assert.Equal(t, []uint32{1, 2}, idx.docsWithPair("red", "shoes", 2, false).ToArray())

	// Document 3 has the words in the wrong order and never matches
	// forward, no matter the window.
	assert.Equal(t, []uint32{1, 2}, idx.docsWithPair("red", "shoes", 7, false).ToArray())
}

func TestDocsWithPair_Backward(t *testing.T) {
	idx := buildShoeIndex(t)

	// Only document 3 has red directly after shoes.
	assert.Equal(t, []uint32{3}, idx.docsWithPair("red", "shoes", 1, true).ToArray())
}

func TestDocsWithPair_MissingWord(t *testing.T) {
	idx := buildShoeIndex(t)

	assert.True(t, idx.docsWithPair("red", "velvet", 7, false).IsEmpty())
	assert.True(t, idx.docsWithPair("velvet", "shoes", 7, false).IsEmpty())
}

func TestPositionsWithin(t *testing.T) {
	tests := []struct {
		name   string
		first  []uint32
		second []uint32
		window uint32
		want   bool
	}{
		{name: "adjacent", first: []uint32{0}, second: []uint32{1}, window: 1, want: true},
		{name: "equal position rejected", first: []uint32{3}, second: []uint32{3}, window: 1, want: false},
		{name: "second before first", first: []uint32{5}, second: []uint32{2}, window: 7, want: false},
		{name: "window boundary inclusive", first: []uint32{0}, second: []uint32{3}, window: 3, want: true},
		{name: "past window", first: []uint32{0}, second: []uint32{3}, window: 2, want: false},
		{name: "later occurrence matches", first: []uint32{5, 10}, second: []uint32{0, 12}, window: 2, want: true},
		{name: "interleaved misses", first: []uint32{0, 10}, second: []uint32{5, 20}, window: 3, want: false},
		{name: "empty first", first: nil, second: []uint32{1}, window: 1, want: false},
		{name: "empty second", first: []uint32{1}, second: nil, window: 1, want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, positionsWithin(tt.first, tt.second, tt.window))
		})
	}
}

// =============================================================================
// Benchmarks
// =============================================================================

func BenchmarkDocsWithTermAtTypos(b *testing.B) {
	idx := NewIndex("bench")
	rng := rand.New(rand.NewSource(42))
	words := []string{"red", "blue", "shoes", "boots", "leather", "suede", "sale", "store"}
	for id := uint32(0); id < 500; id++ {
		text := ""
		for w := 0; w < 8; w++ {
			text += words[rng.Intn(len(words))] + " "
		}
		if err := idx.AddDocument(context.Background(), Document{ID: id, Text: text}); err != nil {
			b.Fatal(err)
		}
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		idx.docsWithTermAtTypos("shoes", 1)
	}
}

func BenchmarkAddDocument(b *testing.B) {
	idx := NewIndex("bench")

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = idx.AddDocument(context.Background(), Document{
			ID:   uint32(i),
			Text: fmt.Sprintf("red shoes on sale lot %d", i),
		})
	}
}
