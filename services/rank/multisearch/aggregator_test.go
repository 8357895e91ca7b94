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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/AleutianAI/AleutianSearch/services/rank"
)

func TestCountDistinctIndexes(t *testing.T) {
	tests := []struct {
		name string
		uids []string
		want int
	}{
		{name: "empty", uids: nil, want: 0},
		{name: "single", uids: []string{"products"}, want: 1},
		{name: "repeated", uids: []string{"products", "products", "products"}, want: 1},
		{name: "mixed", uids: []string{"products", "reviews", "products"}, want: 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := Request{}
			for _, uid := range tt.uids {
				req.Queries = append(req.Queries, rank.Query{IndexUID: uid})
			}
			assert.Equal(t, tt.want, countDistinctIndexes(req))
		})
	}
}

func TestAggregator_Counts(t *testing.T) {
	agg := NewAggregator()

	agg.ObserveRequest(Request{Queries: []rank.Query{{IndexUID: "a"}}})
	agg.ObserveRequest(Request{Queries: []rank.Query{{IndexUID: "a"}, {IndexUID: "b"}}})
	agg.ObserveSuccess(time.Millisecond)
	agg.ObserveFailure(time.Millisecond)

	assert.Equal(t, uint64(2), agg.Received())
	assert.Equal(t, uint64(1), agg.Succeeded())
	assert.Equal(t, uint64(1), agg.Failed())
}
