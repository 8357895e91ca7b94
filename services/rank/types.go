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
	"fmt"
	"time"
)

// DocID identifies one indexed document.
type DocID = uint32

// Document is one unit of indexable text.
type Document struct {
	// ID is the caller-assigned document identifier.
	ID DocID `yaml:"id"`

	// Text is the document body. Tokenized on index insertion.
	Text string `yaml:"text"`
}

// Query is one search request against one index.
type Query struct {
	// IndexUID names the target index. Resolved by the Service; a
	// direct Index search ignores it.
	IndexUID string `yaml:"index_uid"`

	// Q is the raw query string.
	Q string `yaml:"q"`

	// Limit caps the number of hits returned. Zero means the service
	// default.
	Limit int `yaml:"limit"`
}

// Hit is one ranked document with the per-rule costs that placed it.
type Hit struct {
	// DocID is the matched document.
	DocID DocID

	// TypoCost is the typo-rule path cost of the bucket this document
	// landed in (total typos spent across query terms).
	TypoCost uint64

	// ProximityCost is the proximity-rule path cost within the typo
	// bucket.
	ProximityCost uint64
}

// Result is the outcome of one query.
type Result struct {
	// Query echoes the raw query string.
	Query string

	// Hits holds the ranked documents, best first.
	Hits []Hit

	// TotalHits is the number of matching documents before the limit
	// was applied.
	TotalHits int

	// ProcessingTime is the wall time the search took.
	ProcessingTime time.Duration
}

// ServiceConfig configures the ranking service.
type ServiceConfig struct {
	// DefaultLimit is the hit cap used when a query has no limit.
	// Default: 20
	DefaultLimit int

	// MaxQueryTerms is the number of query terms kept after
	// tokenization; extra terms are dropped.
	// Default: 10
	MaxQueryTerms int

	// MaxPathsPerRule caps the number of paths drained from one rule
	// graph before the remaining candidates are flushed as one tail
	// bucket.
	// Default: 1000
	MaxPathsPerRule int

	// TypoEnabled toggles the typo ranking rule.
	// Default: true
	TypoEnabled bool

	// ProximityEnabled toggles the proximity ranking rule.
	// Default: true
	ProximityEnabled bool
}

// DefaultServiceConfig returns sensible defaults.
func DefaultServiceConfig() ServiceConfig {
	return ServiceConfig{
		DefaultLimit:     20,
		MaxQueryTerms:    10,
		MaxPathsPerRule:  1000,
		TypoEnabled:      true,
		ProximityEnabled: true,
	}
}

// Validate checks configuration bounds.
func (c ServiceConfig) Validate() error {
	if c.DefaultLimit < 1 {
		return fmt.Errorf("default limit %d: must be at least 1", c.DefaultLimit)
	}
	if c.MaxQueryTerms < 1 {
		return fmt.Errorf("max query terms %d: must be at least 1", c.MaxQueryTerms)
	}
	if c.MaxPathsPerRule < 1 {
		return fmt.Errorf("max paths per rule %d: must be at least 1", c.MaxPathsPerRule)
	}
	return nil
}
