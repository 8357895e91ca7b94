// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package multisearch fans one request of many queries out across the
// ranking service and aggregates the outcomes.
//
// A Runner executes every query of a Request concurrently, bounded by
// a semaphore and a shared rate limiter. The first failing query
// cancels the rest and fails the whole request, naming the query that
// failed. Successful requests return results in request order no
// matter the completion order.
package multisearch

import "errors"

var (
	// ErrNilSearcher is returned when a Runner is constructed without
	// a backing searcher.
	ErrNilSearcher = errors.New("multisearch: nil searcher")
)
