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
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// Package-level tracer and meter for search operations.
var (
	tracer = otel.Tracer("aleutian.rank")
	meter  = otel.Meter("aleutian.rank")
)

// Metrics for search and indexing operations.
var (
	searchLatency metric.Float64Histogram
	searchTotal   metric.Int64Counter
	searchHits    metric.Int64Histogram
	indexedDocs   metric.Int64UpDownCounter

	metricsOnce sync.Once
	metricsErr  error
)

// initMetrics initializes the metrics. Safe to call multiple times.
func initMetrics() error {
	metricsOnce.Do(func() {
		var err error

		searchLatency, err = meter.Float64Histogram(
			"rank_search_duration_seconds",
			metric.WithDescription("Duration of search operations"),
			metric.WithUnit("s"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		searchTotal, err = meter.Int64Counter(
			"rank_search_total",
			metric.WithDescription("Total number of search operations"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		searchHits, err = meter.Int64Histogram(
			"rank_search_hits",
			metric.WithDescription("Number of hits returned per search"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		indexedDocs, err = meter.Int64UpDownCounter(
			"rank_index_documents",
			metric.WithDescription("Number of documents currently indexed"),
		)
		if err != nil {
			metricsErr = err
			return
		}
	})
	return metricsErr
}

// recordSearchMetrics records metrics for one search operation.
func recordSearchMetrics(ctx context.Context, duration time.Duration, hits int, success bool) {
	if err := initMetrics(); err != nil {
		return
	}

	attrs := metric.WithAttributes(attribute.Bool("success", success))

	searchLatency.Record(ctx, duration.Seconds(), attrs)
	searchTotal.Add(ctx, 1, attrs)

	if success {
		searchHits.Record(ctx, int64(hits))
	}
}

// recordIndexDelta records a change in an index's document count.
func recordIndexDelta(ctx context.Context, uid string, delta int64) {
	if err := initMetrics(); err != nil {
		return
	}
	indexedDocs.Add(ctx, delta,
		metric.WithAttributes(attribute.String("index", uid)),
	)
}

// startSearchSpan creates a span for a search operation.
func startSearchSpan(ctx context.Context, indexUID, query string) (context.Context, trace.Span) {
	return tracer.Start(ctx, "Service.Search",
		trace.WithAttributes(
			attribute.String("rank.index", indexUID),
			attribute.String("rank.query", query),
		),
	)
}
