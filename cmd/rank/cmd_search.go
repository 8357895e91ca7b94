// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/AleutianAI/AleutianSearch/pkg/ux"
	"github.com/AleutianAI/AleutianSearch/services/rank"
	"github.com/AleutianAI/AleutianSearch/services/rank/multisearch"
)

// =============================================================================
// COMMAND FLAGS
// =============================================================================

var (
	searchDocs      []string // Catalog files, one index per file
	searchQueryFile string   // YAML file holding a multi-query request
	searchLimit     int      // Per-query hit cap
	searchJSON      bool     // Output as JSON
)

// =============================================================================
// COMMAND DEFINITION
// =============================================================================

// searchCmd runs ranked searches over YAML catalogs.
//
// # Description
//
// Each --docs file becomes one in-memory index named after the file. A
// query argument fans out to every index; a --queries file runs an explicit
// per-index query list through the federated runner instead. No query at
// all is a placeholder search returning every document.
//
// # Examples
//
//	rank search "red shoes" --docs products.yaml
//	rank search "red shoes" --docs products.yaml --docs reviews.yaml
//	rank search --queries batch.yaml --docs products.yaml --docs reviews.yaml
//	rank search "red shoes" --docs products.yaml --json
var searchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "Run a ranked search over one or more document catalogs",
	Long: `Runs a typo-then-proximity ranked search.

Results order by typo cost (total typos spent matching query terms), then
proximity cost (how far apart the matched terms sit), then document ID.

A --queries file carries one query per target index:

  queries:
    - index_uid: products
      q: red shoes
      limit: 2
    - index_uid: reviews
      q: great`,
	Args: cobra.MaximumNArgs(1),
	Run:  runSearchCommand,
}

// =============================================================================
// COMMAND INITIALIZATION
// =============================================================================

func init() {
	searchCmd.Flags().StringSliceVar(&searchDocs, "docs", nil,
		"YAML document catalog; repeat for one index per file")
	searchCmd.Flags().StringVar(&searchQueryFile, "queries", "",
		"YAML file with a per-index query list (overrides the query argument)")
	searchCmd.Flags().IntVar(&searchLimit, "limit", 0,
		"Hit cap per query (0 uses the configured default)")
	searchCmd.Flags().BoolVar(&searchJSON, "json", false,
		"Output as JSON for scripting")
}

// =============================================================================
// COMMAND IMPLEMENTATION
// =============================================================================

func runSearchCommand(cmd *cobra.Command, args []string) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := searchRun(ctx, args, os.Stdout); err != nil {
		ux.Error(err.Error())
		os.Exit(1)
	}
}

// searchRun builds the indexes, fans the queries out, and writes results.
func searchRun(ctx context.Context, args []string, out io.Writer) error {
	if len(searchDocs) == 0 {
		return fmt.Errorf("at least one --docs catalog is required")
	}

	svc, err := rank.NewService(cfg.Search.ToServiceConfig())
	if err != nil {
		return err
	}
	uids, err := buildIndexes(ctx, svc, searchDocs)
	if err != nil {
		return err
	}

	req, err := buildRequest(args, uids)
	if err != nil {
		return err
	}

	runner, err := multisearch.NewRunner(svc, cfg.MultiSearch)
	if err != nil {
		return err
	}
	results, err := runner.Run(ctx, req)
	if err != nil {
		return err
	}

	if searchJSON {
		return writeResultsJSON(out, svc, results)
	}
	writeResultsStyled(svc, results)
	return nil
}

// buildRequest turns CLI input into a fan-out request: an explicit query
// file wins; otherwise the single query argument targets every index.
func buildRequest(args, uids []string) (multisearch.Request, error) {
	if searchQueryFile != "" {
		return loadRequest(searchQueryFile)
	}

	var q string
	if len(args) > 0 {
		q = args[0]
	}
	req := multisearch.Request{Queries: make([]rank.Query, 0, len(uids))}
	for _, uid := range uids {
		req.Queries = append(req.Queries, rank.Query{
			IndexUID: uid,
			Q:        q,
			Limit:    searchLimit,
		})
	}
	return req, nil
}

// loadRequest reads a multi-query request from YAML.
func loadRequest(path string) (multisearch.Request, error) {
	var req multisearch.Request

	data, err := os.ReadFile(path)
	if err != nil {
		return req, fmt.Errorf("read queries: %w", err)
	}
	if err := yaml.Unmarshal(data, &req); err != nil {
		return req, fmt.Errorf("parse queries: %w", err)
	}
	if len(req.Queries) == 0 {
		return req, fmt.Errorf("queries %s: no queries", path)
	}
	return req, nil
}

// =============================================================================
// OUTPUT
// =============================================================================

// searchOutput is the JSON shape of one index's results.
type searchOutput struct {
	Index          string      `json:"index"`
	Query          string      `json:"query"`
	TotalHits      int         `json:"total_hits"`
	ProcessingTime string      `json:"processing_time"`
	Hits           []hitOutput `json:"hits"`
}

type hitOutput struct {
	DocID         rank.DocID `json:"doc_id"`
	TypoCost      uint64     `json:"typo_cost"`
	ProximityCost uint64     `json:"proximity_cost"`
	Text          string     `json:"text,omitempty"`
}

func writeResultsJSON(out io.Writer, svc *rank.Service, results []multisearch.ResultWithIndex) error {
	outputs := make([]searchOutput, 0, len(results))
	for _, rw := range results {
		o := searchOutput{
			Index:          rw.IndexUID,
			Query:          rw.Result.Query,
			TotalHits:      rw.Result.TotalHits,
			ProcessingTime: rw.Result.ProcessingTime.String(),
			Hits:           make([]hitOutput, 0, len(rw.Result.Hits)),
		}
		for _, hit := range rw.Result.Hits {
			o.Hits = append(o.Hits, hitOutput{
				DocID:         hit.DocID,
				TypoCost:      hit.TypoCost,
				ProximityCost: hit.ProximityCost,
				Text:          documentText(svc, rw.IndexUID, hit.DocID),
			})
		}
		outputs = append(outputs, o)
	}

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(outputs)
}

func writeResultsStyled(svc *rank.Service, results []multisearch.ResultWithIndex) {
	for i, rw := range results {
		if i > 0 {
			fmt.Println()
		}
		ux.Title("Index " + rw.IndexUID)
		if rw.Result.Query != "" {
			ux.Muted("query: " + rw.Result.Query)
		} else {
			ux.Muted("placeholder query (all documents)")
		}

		for n, hit := range rw.Result.Hits {
			text := documentText(svc, rw.IndexUID, hit.DocID)
			if ux.IsPlain() {
				fmt.Printf("%d\t#%d\t%s\ttypo=%d\tproximity=%d\n",
					n+1, hit.DocID, text, hit.TypoCost, hit.ProximityCost)
				continue
			}
			fmt.Printf("%s %s  %s\n",
				ux.Styles.Bold.Render(fmt.Sprintf("%2d.", n+1)),
				ux.Styles.Highlight.Render(fmt.Sprintf("#%d", hit.DocID)),
				text,
			)
			ux.Muted(fmt.Sprintf("     typo=%d proximity=%d", hit.TypoCost, hit.ProximityCost))
		}
		ux.Summary(len(rw.Result.Hits), rw.Result.TotalHits, rw.Result.ProcessingTime.String())
	}
}

// documentText looks up a hit's text; missing documents render empty.
func documentText(svc *rank.Service, uid string, id rank.DocID) string {
	idx, err := svc.Index(uid)
	if err != nil {
		return ""
	}
	doc, err := idx.Document(id)
	if err != nil {
		return ""
	}
	return doc.Text
}
