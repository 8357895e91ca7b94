// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package rank ranks indexed documents against a query by walking
// ranking-rule graphs in cheapest-path order.
//
// The Service owns named in-memory indexes. One Search call builds a
// query graph from the tokenized query, then applies the enabled
// ranking rules in sequence: the typo rule partitions the candidate
// set into buckets of increasing typo spend, and the proximity rule
// refines each bucket by term placement. Every rule graph, path
// enumeration state, and empty-paths cache lives and dies inside that
// single call; only the Index outlives it.
//
// # Thread Safety
//
// Service and Index are safe for concurrent use. Everything built
// during a Search call is confined to that call.
package rank

import "errors"

var (
	// ErrIndexExists is returned when creating an index whose UID is
	// already taken.
	ErrIndexExists = errors.New("rank: index already exists")

	// ErrUnknownIndex is returned when addressing an index UID that
	// was never created.
	ErrUnknownIndex = errors.New("rank: unknown index")

	// ErrDuplicateDocument is returned when adding a document whose ID
	// is already present in the index.
	ErrDuplicateDocument = errors.New("rank: duplicate document id")

	// ErrUnknownDocument is returned when removing a document ID that
	// is not in the index.
	ErrUnknownDocument = errors.New("rank: unknown document id")

	// ErrUnknownRule is returned when a diagnostic operation names a
	// ranking rule that does not exist.
	ErrUnknownRule = errors.New("rank: unknown ranking rule")
)
