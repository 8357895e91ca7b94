// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package rules builds ranking-rule graphs over a query graph.
//
// Each ranking criterion (typo count, term proximity) contributes its
// own edge layer: a rankgraph.RankingRuleGraph whose edges connect the
// shared query-graph nodes, weighted by how far a document may deviate
// from the ideal query under that criterion. Cheaper paths through a
// rule graph correspond to better matches for that rule.
//
// Builders are pure: they read the query graph and produce a fresh
// rule graph each call. The returned graph is owned by the caller and
// follows the single-invocation ownership model of package rankgraph.
package rules

import "errors"

var (
	// ErrNilQueryGraph is returned when a builder receives no query
	// graph to build over.
	ErrNilQueryGraph = errors.New("rules: nil query graph")
)
