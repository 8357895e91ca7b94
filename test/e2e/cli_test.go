// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package e2e

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// productsCatalog has known word positions so rank order is predictable:
//
//	1: red@0 shoes@1 on@2 sale@3     exact pair, adjacent
//	2: red@0 leather@1 shoes@2       exact pair, one word apart
//	3: shoes@0 red@1                 exact pair, swapped
//	4: red@0 shoez@1                 one typo
const productsCatalog = `documents:
  - id: 1
    text: red shoes on sale
  - id: 2
    text: red leather shoes
  - id: 3
    text: shoes red
  - id: 4
    text: red shoez
`

const reviewsCatalog = `documents:
  - id: 1
    text: great red shoes would buy again
  - id: 2
    text: laces fell apart
`

// searchResult mirrors the CLI's --json output shape.
type searchResult struct {
	Index     string `json:"index"`
	Query     string `json:"query"`
	TotalHits int    `json:"total_hits"`
	Hits      []struct {
		DocID         uint32 `json:"doc_id"`
		TypoCost      uint64 `json:"typo_cost"`
		ProximityCost uint64 `json:"proximity_cost"`
		Text          string `json:"text"`
	} `json:"hits"`
}

// runCLI executes the built binary and captures both streams. A non-zero
// exit is returned, not fatal, so failure paths can be asserted.
func runCLI(t *testing.T, args ...string) (stdout, stderr string, exitCode int) {
	t.Helper()
	cmd := exec.Command(cliBinary, args...)
	var outBuf, errBuf bytes.Buffer
	cmd.Stdout = &outBuf
	cmd.Stderr = &errBuf
	err := cmd.Run()
	if err != nil {
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			t.Fatalf("run %v: %v", args, err)
		}
		exitCode = exitErr.ExitCode()
	}
	return outBuf.String(), errBuf.String(), exitCode
}

func writeFixture(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestSearchJSONRanksCatalog(t *testing.T) {
	catalog := writeFixture(t, t.TempDir(), "products.yaml", productsCatalog)

	stdout, stderr, code := runCLI(t,
		"search", "red shoes", "--docs", catalog, "--json", "--plain")
	require.Zero(t, code, "stderr: %s", stderr)

	var results []searchResult
	require.NoError(t, json.Unmarshal([]byte(stdout), &results))
	require.Len(t, results, 1)

	res := results[0]
	assert.Equal(t, "products", res.Index)
	assert.Equal(t, "red shoes", res.Query)
	assert.Equal(t, 4, res.TotalHits)
	require.Len(t, res.Hits, 4)

	// (typo, proximity, doc ID) ordering: exact adjacent pair first,
	// then the gapped pair, the swapped pair, and finally the typo.
	wantDocs := []uint32{1, 2, 3, 4}
	wantTypo := []uint64{0, 0, 0, 1}
	wantProx := []uint64{0, 1, 3, 8}
	for i, hit := range res.Hits {
		assert.Equal(t, wantDocs[i], hit.DocID, "hit %d doc", i)
		assert.Equal(t, wantTypo[i], hit.TypoCost, "hit %d typo", i)
		assert.Equal(t, wantProx[i], hit.ProximityCost, "hit %d proximity", i)
		assert.NotEmpty(t, hit.Text, "hit %d text", i)
	}
}

func TestSearchPlaceholderReturnsEveryDocument(t *testing.T) {
	catalog := writeFixture(t, t.TempDir(), "products.yaml", productsCatalog)

	stdout, stderr, code := runCLI(t, "search", "--docs", catalog, "--plain")
	require.Zero(t, code, "stderr: %s", stderr)

	assert.Contains(t, stdout, "placeholder query")
	assert.Contains(t, stdout, "SUMMARY: shown=4 total=4")
}

func TestSearchFansOutAcrossCatalogs(t *testing.T) {
	dir := t.TempDir()
	products := writeFixture(t, dir, "products.yaml", productsCatalog)
	reviews := writeFixture(t, dir, "reviews.yaml", reviewsCatalog)

	stdout, stderr, code := runCLI(t,
		"search", "red", "--docs", products, "--docs", reviews, "--json", "--plain")
	require.Zero(t, code, "stderr: %s", stderr)

	var results []searchResult
	require.NoError(t, json.Unmarshal([]byte(stdout), &results))
	require.Len(t, results, 2)
	assert.Equal(t, "products", results[0].Index)
	assert.Equal(t, "reviews", results[1].Index)
	assert.Equal(t, 4, results[0].TotalHits)
	assert.Equal(t, 1, results[1].TotalHits)
}

func TestSearchQueryFileTargetsIndexes(t *testing.T) {
	dir := t.TempDir()
	products := writeFixture(t, dir, "products.yaml", productsCatalog)
	reviews := writeFixture(t, dir, "reviews.yaml", reviewsCatalog)
	queries := writeFixture(t, dir, "batch.yaml", `queries:
  - index_uid: products
    q: red shoes
    limit: 2
  - index_uid: reviews
    q: laces
`)

	stdout, stderr, code := runCLI(t,
		"search", "--queries", queries, "--docs", products, "--docs", reviews,
		"--json", "--plain")
	require.Zero(t, code, "stderr: %s", stderr)

	var results []searchResult
	require.NoError(t, json.Unmarshal([]byte(stdout), &results))
	require.Len(t, results, 2)
	assert.Len(t, results[0].Hits, 2, "limit applies per query")
	require.Len(t, results[1].Hits, 1)
	assert.Equal(t, uint32(2), results[1].Hits[0].DocID)
}

func TestSearchRejectsMalformedIndexUID(t *testing.T) {
	dir := t.TempDir()
	products := writeFixture(t, dir, "products.yaml", productsCatalog)
	queries := writeFixture(t, dir, "batch.yaml", `queries:
  - index_uid: "my products"
    q: red
`)

	_, stderr, code := runCLI(t,
		"search", "--queries", queries, "--docs", products, "--plain")
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "ERROR:")
	assert.Contains(t, stderr, "queries[0]")
}

func TestSearchMissingCatalogFails(t *testing.T) {
	_, stderr, code := runCLI(t,
		"search", "red", "--docs", filepath.Join(t.TempDir(), "nope.yaml"), "--plain")
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "ERROR:")
}

func TestDrainIsDeterministic(t *testing.T) {
	first, stderr, code := runCLI(t, "drain", "red shoes", "--plain")
	require.Zero(t, code, "stderr: %s", stderr)
	second, _, code := runCLI(t, "drain", "red shoes", "--plain")
	require.Zero(t, code)

	assert.Equal(t, first, second, "two drains of the same query must agree")
	assert.Contains(t, first, "Path drain (typo)")

	// Costs come out nondecreasing.
	last := -1
	for _, line := range strings.Split(first, "\n") {
		_, rest, found := strings.Cut(line, "cost=")
		if !found {
			continue
		}
		costField, _, _ := strings.Cut(rest, "\t")
		cost, err := strconv.Atoi(costField)
		require.NoError(t, err, "line %q", line)
		assert.GreaterOrEqual(t, cost, last, "line %q", line)
		last = cost
	}
	assert.GreaterOrEqual(t, last, 0, "expected at least one path line")
}

func TestVizWritesDOTFile(t *testing.T) {
	out := filepath.Join(t.TempDir(), "graph.dot")

	stdout, stderr, code := runCLI(t,
		"viz", "red shoes", "--rule", "proximity", "--out", out, "--plain")
	require.Zero(t, code, "stderr: %s", stderr)
	assert.Contains(t, stdout, "OK: wrote")

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "digraph"), "got: %.40s", data)
}
