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
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/AleutianSearch/pkg/logging"
	"github.com/AleutianAI/AleutianSearch/pkg/ux"
	"github.com/AleutianAI/AleutianSearch/services/rank/config"
	"github.com/AleutianAI/AleutianSearch/services/rank/telemetry"
)

// =============================================================================
// GLOBAL FLAGS AND STATE
// =============================================================================

var (
	configPath  string // --config: YAML config file path
	plainOutput bool   // --plain: force unstyled output

	// cfg is loaded once in the root PersistentPreRunE and read by every
	// subcommand.
	cfg config.Config

	// logger owns the slog handler for the process. Closed implicitly at
	// exit; the CLI writes to stderr only.
	logger *logging.Logger

	// telemetryShutdown flushes the OTel providers installed at startup.
	// Nil until PersistentPreRunE succeeds.
	telemetryShutdown func(context.Context) error
)

// =============================================================================
// ROOT COMMAND
// =============================================================================

var rootCmd = &cobra.Command{
	Use:   "rank",
	Short: "A cli for the AleutianSearch ranking engine",
	Long: `rank runs ranked searches over YAML document catalogs and exposes
the engine's diagnostics: rule-graph visualization in DOT form and
deterministic cheapest-path drains.

Catalogs are YAML files:

  documents:
    - id: 1
      text: red shoes on sale
    - id: 2
      text: red leather shoes`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if plainOutput {
			ux.SetPlain(true)
		} else {
			ux.InitTerminal()
		}

		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			return err
		}

		logger = logging.New(cfg.Logging.ToLoggerConfig(cfg.Service.Name))
		slog.SetDefault(logger.Slog())

		// With telemetry disabled this installs no-op providers, so the
		// engine's spans and meters stay inert for free.
		telemetryShutdown, err = telemetry.Init(cmd.Context(), cfg.ToTelemetryConfig())
		if err != nil {
			return fmt.Errorf("telemetry: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if telemetryShutdown == nil {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := telemetryShutdown(ctx); err != nil {
			slog.Warn("telemetry shutdown", "error", err)
		}
	},
}

// =============================================================================
// COMMAND INITIALIZATION
// =============================================================================

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "",
		"Path to a YAML config file (defaults apply when unset)")
	rootCmd.PersistentFlags().BoolVar(&plainOutput, "plain", false,
		"Force plain output (no colors or boxes)")

	rootCmd.AddCommand(searchCmd)
	rootCmd.AddCommand(vizCmd)
	rootCmd.AddCommand(drainCmd)
}
