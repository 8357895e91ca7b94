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
	"strings"
	"sync"
	"unicode"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/agnivade/levenshtein"

	"github.com/AleutianAI/AleutianSearch/services/rank/querygraph"
)

// Index is an in-memory inverted index with word positions, holding
// just enough posting data to resolve ranking-rule edge conditions.
//
// Description:
//
//	Each document's text is tokenized into lowercase words; the index
//	records, per word, which documents contain it and at which word
//	positions. Typo conditions scan the vocabulary by edit distance;
//	proximity conditions intersect position lists.
//
// Thread Safety: safe for concurrent use. Mutations take the write
// lock; condition resolution takes the read lock per call.
type Index struct {
	uid string

	mu sync.RWMutex

	// postings maps word -> document -> ascending word positions.
	postings map[string]map[DocID][]uint32

	// docWords maps document -> unique words, for removal.
	docWords map[DocID][]string

	// texts keeps the raw document bodies for retrieval.
	texts map[DocID]string

	// docs holds every indexed document ID.
	docs *roaring.Bitmap
}

// NewIndex creates an empty index named uid.
func NewIndex(uid string) *Index {
	return &Index{
		uid:      uid,
		postings: make(map[string]map[DocID][]uint32),
		docWords: make(map[DocID][]string),
		texts:    make(map[DocID]string),
		docs:     roaring.New(),
	}
}

// UID returns the index name.
func (idx *Index) UID() string {
	return idx.uid
}

// Len returns the number of indexed documents.
func (idx *Index) Len() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return int(idx.docs.GetCardinality())
}

// AddDocument tokenizes and indexes one document.
//
// Outputs:
//   - error: ErrDuplicateDocument when the ID is already indexed.
func (idx *Index) AddDocument(ctx context.Context, doc Document) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	if idx.docs.Contains(doc.ID) {
		return fmt.Errorf("document %d: %w", doc.ID, ErrDuplicateDocument)
	}

	words := tokenize(doc.Text)
	seen := make(map[string]bool, len(words))
	for pos, w := range words {
		byDoc, ok := idx.postings[w]
		if !ok {
			byDoc = make(map[DocID][]uint32)
			idx.postings[w] = byDoc
		}
		byDoc[doc.ID] = append(byDoc[doc.ID], uint32(pos))
		if !seen[w] {
			seen[w] = true
			idx.docWords[doc.ID] = append(idx.docWords[doc.ID], w)
		}
	}
	idx.texts[doc.ID] = doc.Text
	idx.docs.Add(doc.ID)

	recordIndexDelta(ctx, idx.uid, 1)
	return nil
}

// RemoveDocument deletes one document and its postings.
//
// Outputs:
//   - error: ErrUnknownDocument when the ID is not indexed.
func (idx *Index) RemoveDocument(ctx context.Context, id DocID) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	if !idx.docs.Contains(id) {
		return fmt.Errorf("document %d: %w", id, ErrUnknownDocument)
	}

	for _, w := range idx.docWords[id] {
		byDoc := idx.postings[w]
		delete(byDoc, id)
		if len(byDoc) == 0 {
			delete(idx.postings, w)
		}
	}
	delete(idx.docWords, id)
	delete(idx.texts, id)
	idx.docs.Remove(id)

	recordIndexDelta(ctx, idx.uid, -1)
	return nil
}

// Document returns the raw text of one indexed document.
func (idx *Index) Document(id DocID) (Document, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	if !idx.docs.Contains(id) {
		return Document{}, fmt.Errorf("document %d: %w", id, ErrUnknownDocument)
	}
	return Document{ID: id, Text: idx.texts[id]}, nil
}

// AllDocs returns a copy of the full document ID set.
func (idx *Index) AllDocs() *roaring.Bitmap {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return idx.docs.Clone()
}

// candidates returns the documents containing every term within its
// typo budget. An empty term list matches everything.
func (idx *Index) candidates(terms []querygraph.Term) *roaring.Bitmap {
	result := idx.AllDocs()
	for _, t := range terms {
		matches := roaring.New()
		for typos := uint8(0); typos <= t.MaxTypos; typos++ {
			matches.Or(idx.docsWithTermAtTypos(t.Text, typos))
		}
		result.And(matches)
		if result.IsEmpty() {
			break
		}
	}
	return result
}

// docsWithExactTerm returns the documents containing word verbatim.
func (idx *Index) docsWithExactTerm(word string) *roaring.Bitmap {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	out := roaring.New()
	for id := range idx.postings[word] {
		out.Add(id)
	}
	return out
}

// docsWithTermAtTypos returns the documents containing some word at
// exactly the given edit distance from term. Distance zero is the
// verbatim posting lookup; otherwise the vocabulary is scanned.
func (idx *Index) docsWithTermAtTypos(term string, typos uint8) *roaring.Bitmap {
	if typos == 0 {
		return idx.docsWithExactTerm(term)
	}

	idx.mu.RLock()
	defer idx.mu.RUnlock()

	out := roaring.New()
	for word, byDoc := range idx.postings {
		if levenshtein.ComputeDistance(term, word) != int(typos) {
			continue
		}
		for id := range byDoc {
			out.Add(id)
		}
	}
	return out
}

// docsWithPair returns the documents where right appears within
// window word positions after left, or before it at distance one when
// backward is set.
func (idx *Index) docsWithPair(left, right string, window uint8, backward bool) *roaring.Bitmap {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	out := roaring.New()
	leftDocs := idx.postings[left]
	rightDocs := idx.postings[right]
	for id, leftPos := range leftDocs {
		rightPos, ok := rightDocs[id]
		if !ok {
			continue
		}
		if backward {
			if positionsWithin(rightPos, leftPos, 1) {
				out.Add(id)
			}
		} else if positionsWithin(leftPos, rightPos, uint32(window)) {
			out.Add(id)
		}
	}
	return out
}

// positionsWithin reports whether some position in second falls in
// (first, first+window] for some position in first. Both slices are
// ascending.
func positionsWithin(first, second []uint32, window uint32) bool {
	i, j := 0, 0
	for i < len(first) && j < len(second) {
		switch {
		case second[j] <= first[i]:
			j++
		case second[j]-first[i] <= window:
			return true
		default:
			i++
		}
	}
	return false
}

// tokenize lowercases text and splits it into letter/digit runs.
func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
}
