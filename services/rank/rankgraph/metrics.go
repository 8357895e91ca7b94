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
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// =============================================================================
// Prometheus Metrics
// =============================================================================

var (
	// pathsEmittedTotal counts paths delivered by the k-cheapest loop.
	pathsEmittedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "rank_paths_emitted_total",
		Help: "Total paths emitted by the cheapest-path enumeration",
	})

	// staleEdgeTotal counts edge lookups that hit a tombstoned slot.
	// A nonzero rate is normal while the search prunes the graph, but
	// a high rate means paths are being recorded too early.
	staleEdgeTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "rank_stale_edge_references_total",
		Help: "Total edge lookups resolving to a removed edge",
	})

	// cheapestPathDuration tracks single-source cheapest-path latency.
	cheapestPathDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "rank_cheapest_path_duration_seconds",
		Help:    "Duration of one cheapest-path-to-end computation",
		Buckets: prometheus.ExponentialBuckets(0.000001, 4, 10), // 1us to ~260ms
	})

	// potentialPathsPending tracks pending candidate buckets by cost.
	potentialPathsPending = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "rank_potential_cost_buckets",
		Help: "Distinct pending costs held by the k-cheapest state",
	})
)
