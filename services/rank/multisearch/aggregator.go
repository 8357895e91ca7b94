// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package multisearch

import (
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// =============================================================================
// Prometheus Metrics
// =============================================================================

var (
	// requestsTotal counts multi-search requests received.
	requestsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "multisearch_requests_total",
		Help: "Total multi-search requests received",
	})

	// requestFailuresTotal counts requests that failed on some query.
	requestFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "multisearch_request_failures_total",
		Help: "Total multi-search requests aborted by a failing query",
	})

	// queriesTotal counts individual queries across all requests.
	queriesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "multisearch_queries_total",
		Help: "Total queries carried by multi-search requests",
	})

	// singleIndexTotal counts requests addressing exactly one index.
	singleIndexTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "multisearch_single_index_requests_total",
		Help: "Total multi-search requests whose queries hit one index",
	})

	// distinctIndexesPerRequest tracks how many indexes one request
	// spans.
	distinctIndexesPerRequest = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "multisearch_distinct_indexes",
		Help:    "Distinct indexes addressed by one multi-search request",
		Buckets: prometheus.ExponentialBuckets(1, 2, 6), // 1 to 32
	})

	// requestDuration tracks wall time of whole requests.
	requestDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "multisearch_request_duration_seconds",
		Help:    "Duration of one multi-search request",
		Buckets: prometheus.ExponentialBuckets(0.0001, 4, 10), // 100us to ~26s
	})
)

// Aggregator accumulates multi-search analytics: request and query
// volume, index spread, success and failure counts. Counts are kept
// both as Prometheus series and as plain counters readable in
// process.
//
// Thread Safety: safe for concurrent use.
type Aggregator struct {
	received  atomic.Uint64
	succeeded atomic.Uint64
	failed    atomic.Uint64
}

// NewAggregator creates an empty aggregator.
func NewAggregator() *Aggregator {
	return &Aggregator{}
}

// ObserveRequest records one incoming request before it runs.
func (a *Aggregator) ObserveRequest(req Request) {
	a.received.Add(1)
	requestsTotal.Inc()
	queriesTotal.Add(float64(len(req.Queries)))

	distinct := countDistinctIndexes(req)
	distinctIndexesPerRequest.Observe(float64(distinct))
	if distinct == 1 {
		singleIndexTotal.Inc()
	}
}

// ObserveSuccess records one fully served request.
func (a *Aggregator) ObserveSuccess(duration time.Duration) {
	a.succeeded.Add(1)
	requestDuration.Observe(duration.Seconds())
}

// ObserveFailure records one aborted request.
func (a *Aggregator) ObserveFailure(duration time.Duration) {
	a.failed.Add(1)
	requestFailuresTotal.Inc()
	requestDuration.Observe(duration.Seconds())
}

// Received returns the number of requests observed so far.
func (a *Aggregator) Received() uint64 {
	return a.received.Load()
}

// Succeeded returns the number of fully served requests.
func (a *Aggregator) Succeeded() uint64 {
	return a.succeeded.Load()
}

// Failed returns the number of aborted requests.
func (a *Aggregator) Failed() uint64 {
	return a.failed.Load()
}

// countDistinctIndexes returns how many different index UIDs the
// request addresses.
func countDistinctIndexes(req Request) int {
	seen := make(map[string]struct{}, len(req.Queries))
	for _, q := range req.Queries {
		seen[q.IndexUID] = struct{}{}
	}
	return len(seen)
}
