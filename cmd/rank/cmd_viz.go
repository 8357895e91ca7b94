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
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/AleutianSearch/pkg/ux"
	"github.com/AleutianAI/AleutianSearch/services/rank"
)

// =============================================================================
// COMMAND FLAGS
// =============================================================================

var (
	vizRule string // Ranking rule to render
	vizOut  string // Output file (stdout when empty)
)

// =============================================================================
// COMMAND DEFINITION
// =============================================================================

// vizCmd renders a query's rule graph as Graphviz DOT.
//
// # Description
//
// Builds the query graph for the given query, layers the selected ranking
// rule's edges over it, and emits DOT with the cheapest root-to-end path
// highlighted in red. The output pipes straight into dot:
//
//	rank viz "red shoes" --rule proximity | dot -Tsvg > graph.svg
//
// # Examples
//
//	rank viz "red shoes"
//	rank viz "red shoes" --rule proximity --out graph.dot
var vizCmd = &cobra.Command{
	Use:   "viz [query]",
	Short: "Render a query's rule graph in Graphviz DOT form",
	Args:  cobra.ExactArgs(1),
	Run:   runVizCommand,
}

// =============================================================================
// COMMAND INITIALIZATION
// =============================================================================

func init() {
	vizCmd.Flags().StringVar(&vizRule, "rule", rank.RuleTypo,
		"Ranking rule to render: typo or proximity")
	vizCmd.Flags().StringVar(&vizOut, "out", "",
		"Write DOT to this file instead of stdout")
}

// =============================================================================
// COMMAND IMPLEMENTATION
// =============================================================================

func runVizCommand(cmd *cobra.Command, args []string) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	dot, err := vizRun(ctx, args[0])
	if err != nil {
		ux.Error(err.Error())
		os.Exit(1)
	}

	if vizOut == "" {
		// Raw DOT on stdout so the output stays pipeable.
		fmt.Print(dot)
		return
	}
	if err := os.WriteFile(vizOut, []byte(dot), 0644); err != nil {
		ux.Error(err.Error())
		os.Exit(1)
	}
	ux.Success("wrote " + vizOut)
}

func vizRun(ctx context.Context, query string) (string, error) {
	svc, err := rank.NewService(cfg.Search.ToServiceConfig())
	if err != nil {
		return "", err
	}
	return svc.VisualizeRule(ctx, query, vizRule)
}
