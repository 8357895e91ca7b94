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
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/AleutianAI/AleutianSearch/pkg/validation"
	"github.com/AleutianAI/AleutianSearch/services/rank"
)

var tracer = otel.Tracer("rank.multisearch")

// Searcher runs one query against a named index. *rank.Service
// satisfies this.
type Searcher interface {
	SearchIndex(ctx context.Context, q rank.Query) (*rank.Result, error)
}

// Request bundles the queries of one multi-search call.
type Request struct {
	// Queries are executed together; the whole request fails on the
	// first query error.
	Queries []rank.Query `yaml:"queries"`
}

// ResultWithIndex pairs one query's result with the index it ran
// against.
type ResultWithIndex struct {
	// IndexUID names the index the query addressed.
	IndexUID string

	// Result is the ranked outcome for that query.
	Result *rank.Result
}

// Config tunes the fan-out.
type Config struct {
	// MaxConcurrency bounds how many queries run in parallel.
	// Default: 4
	MaxConcurrency int `yaml:"max_concurrency"`

	// QueriesPerSecond throttles query starts across the runner.
	// Zero disables throttling. Default: 0
	QueriesPerSecond float64 `yaml:"queries_per_second"`

	// Burst is the rate-limiter burst size, used only with a nonzero
	// QueriesPerSecond. Default: 8
	Burst int `yaml:"burst"`
}

// DefaultConfig returns sensible fan-out defaults.
func DefaultConfig() Config {
	return Config{
		MaxConcurrency: 4,
		Burst:          8,
	}
}

// Validate checks configuration bounds.
func (c Config) Validate() error {
	if c.MaxConcurrency < 1 {
		return fmt.Errorf("max concurrency %d: must be at least 1", c.MaxConcurrency)
	}
	if c.QueriesPerSecond < 0 {
		return fmt.Errorf("queries per second %g: must not be negative", c.QueriesPerSecond)
	}
	if c.QueriesPerSecond > 0 && c.Burst < 1 {
		return fmt.Errorf("burst %d: must be at least 1 when throttling", c.Burst)
	}
	return nil
}

// Runner executes multi-search requests against one searcher.
//
// Thread Safety: safe for concurrent use. The semaphore, limiter and
// aggregator are shared across requests; per-request state lives on
// the stack.
type Runner struct {
	searcher Searcher
	config   Config
	sem      *Semaphore
	limiter  *rate.Limiter
	agg      *Aggregator
}

// NewRunner creates a runner over the given searcher.
func NewRunner(searcher Searcher, config Config) (*Runner, error) {
	if searcher == nil {
		return nil, ErrNilSearcher
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("multisearch config: %w", err)
	}
	limit := rate.Inf
	if config.QueriesPerSecond > 0 {
		limit = rate.Limit(config.QueriesPerSecond)
	}
	return &Runner{
		searcher: searcher,
		config:   config,
		sem:      NewSemaphore(config.MaxConcurrency),
		limiter:  rate.NewLimiter(limit, config.Burst),
		agg:      NewAggregator(),
	}, nil
}

// Aggregator exposes the runner's analytics.
func (r *Runner) Aggregator() *Aggregator {
	return r.agg
}

// Run executes every query of req and collects the results.
//
// Description:
//
//	Index UIDs are validated up front; a malformed UID fails the whole
//	request before any query runs. Queries then run concurrently under
//	the runner's semaphore and rate limiter. The first query error
//	cancels the remaining queries and fails the request with an error
//	naming the query's position and index. On success the results come
//	back in request order, one per query, regardless of completion
//	order.
//
// Inputs:
//   - ctx: Cancels the whole request.
//   - req: The queries to run. An empty request succeeds with no
//     results.
//
// Outputs:
//   - []ResultWithIndex: One entry per query, in request order.
//   - error: The first query failure, or ctx.Err().
func (r *Runner) Run(ctx context.Context, req Request) ([]ResultWithIndex, error) {
	start := time.Now()
	requestID := uuid.NewString()[:8]
	ctx, span := tracer.Start(ctx, "multisearch.Run",
		trace.WithAttributes(
			attribute.String("multisearch.request_id", requestID),
			attribute.Int("multisearch.queries", len(req.Queries)),
		),
	)
	defer span.End()

	r.agg.ObserveRequest(req)

	// Every query's index UID is checked before any query runs, so a
	// malformed request never does partial work.
	for i, q := range req.Queries {
		if err := validation.ValidateIndexUID(q.IndexUID); err != nil {
			err = fmt.Errorf("queries[%d] (index %q): %w", i, q.IndexUID, err)
			r.agg.ObserveFailure(time.Since(start))
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return nil, err
		}
	}

	results := make([]ResultWithIndex, len(req.Queries))
	g, gctx := errgroup.WithContext(ctx)
	for i, q := range req.Queries {
		i, q := i, q
		g.Go(func() error {
			if err := r.sem.Acquire(gctx); err != nil {
				return fmt.Errorf("queries[%d] (index %q): %w", i, q.IndexUID, err)
			}
			defer r.sem.Release()

			if err := r.limiter.Wait(gctx); err != nil {
				return fmt.Errorf("queries[%d] (index %q): %w", i, q.IndexUID, err)
			}

			res, err := r.searcher.SearchIndex(gctx, q)
			if err != nil {
				return fmt.Errorf("queries[%d] (index %q): %w", i, q.IndexUID, err)
			}
			results[i] = ResultWithIndex{IndexUID: q.IndexUID, Result: res}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		r.agg.ObserveFailure(time.Since(start))
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	duration := time.Since(start)
	r.agg.ObserveSuccess(duration)
	slog.Debug("multi-search complete",
		"request_id", requestID,
		"queries", len(req.Queries),
		"duration", duration,
	)
	return results, nil
}
