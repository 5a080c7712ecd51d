package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/mendhq/mend/internal/api"
	"github.com/mendhq/mend/internal/healer"
	"github.com/mendhq/mend/internal/store"
	"github.com/mendhq/mend/internal/types"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the healing agent HTTP API",
	Long: `Start the HTTP API server.

Endpoints:
  POST /run-agent       start a healing run (repo_url, team_name, leader_name)
  GET  /run-status/:id  poll a run's current state and report
  GET  /health          service liveness

Runs execute in the background, bounded by max_concurrent_runs.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		registry := store.NewRegistry()

		history, err := store.OpenHistory(cfg.HistoryPath)
		if err != nil {
			return fmt.Errorf("opening run history: %w", err)
		}
		defer func() {
			if err := history.Close(); err != nil {
				slog.Warn("closing run history", "error", err)
			}
		}()

		if err := os.MkdirAll(cfg.SandboxRoot, 0755); err != nil {
			return fmt.Errorf("creating sandbox root: %w", err)
		}
		if err := os.MkdirAll(cfg.ResultsDir, 0755); err != nil {
			return fmt.Errorf("creating results dir: %w", err)
		}

		heal := func(ctx context.Context, runCfg healer.Config) {
			h, err := buildHealer(ctx, cfg, runCfg, registry, history)
			if err != nil {
				slog.Error("run setup failed", "run_id", runCfg.RunID, "error", err)
				// The API already seeded a RUNNING entry; don't strand it.
				if state, ok := registry.Get(runCfg.RunID); ok {
					state.Status = types.StatusFailed
					state.Results.FinalStatus = types.StatusFailed
					registry.Put(state)
				}
				return
			}
			h.Heal(ctx)
		}

		return api.NewServer(cfg, registry, heal).Run()
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
