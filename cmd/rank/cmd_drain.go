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
	drainRule string // Ranking rule to drain
	drainMax  int    // Path cap (0 uses the configured default)
)

// =============================================================================
// COMMAND DEFINITION
// =============================================================================

// drainCmd walks a rule's path space in cost order.
//
// # Description
//
// Enumerates root-to-end paths through the selected rule graph, cheapest
// first. Paths of equal cost come out in the deterministic leftmost-first
// order of the underlying path set, so two runs over the same query always
// agree. Each line shows the path's total cost and its edge-ID sequence.
//
// # Examples
//
//	rank drain "red shoes"
//	rank drain "red shoes" --rule proximity --max 5
var drainCmd = &cobra.Command{
	Use:   "drain [query]",
	Short: "Drain a query's rule paths in deterministic cost order",
	Args:  cobra.ExactArgs(1),
	Run:   runDrainCommand,
}

// =============================================================================
// COMMAND INITIALIZATION
// =============================================================================

func init() {
	drainCmd.Flags().StringVar(&drainRule, "rule", rank.RuleTypo,
		"Ranking rule to drain: typo or proximity")
	drainCmd.Flags().IntVar(&drainMax, "max", 0,
		"Stop after this many paths (0 uses the configured default)")
}

// =============================================================================
// COMMAND IMPLEMENTATION
// =============================================================================

func runDrainCommand(cmd *cobra.Command, args []string) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := drainRun(ctx, args[0]); err != nil {
		ux.Error(err.Error())
		os.Exit(1)
	}
}

func drainRun(ctx context.Context, query string) error {
	svc, err := rank.NewService(cfg.Search.ToServiceConfig())
	if err != nil {
		return err
	}

	paths, err := svc.EnumeratePaths(ctx, query, drainRule, drainMax)
	if err != nil {
		return err
	}

	if len(paths) == 0 {
		ux.Warning(fmt.Sprintf("no %s paths for query %q", drainRule, query))
		return nil
	}

	ux.Title(fmt.Sprintf("Path drain (%s)", drainRule))
	for i, p := range paths {
		if ux.IsPlain() {
			fmt.Printf("%d\tcost=%d\tedges=%v\n", i+1, p.Cost, p.Edges)
			continue
		}
		fmt.Printf("%s %s  %s\n",
			ux.Styles.Bold.Render(fmt.Sprintf("%2d.", i+1)),
			ux.Styles.Highlight.Render(fmt.Sprintf("cost %d", p.Cost)),
			ux.Styles.Muted.Render(fmt.Sprintf("edges %v", p.Edges)),
		)
	}
	ux.Muted(fmt.Sprintf("%d paths", len(paths)))
	return nil
}
