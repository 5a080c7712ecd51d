package main

import (
	"context"
	"fmt"

	"github.com/fatih/color"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/mendhq/mend/internal/healer"
	"github.com/mendhq/mend/internal/store"
	"github.com/mendhq/mend/internal/types"
)

var (
	runTeamName   string
	runLeaderName string
	runRetryLimit int
)

var runCmd = &cobra.Command{
	Use:   "run <repo-url>",
	Short: "Execute one healing run and print the report",
	Long: `Run the healing loop against a repository without the HTTP server.

The repository may be a remote URL (cloned into the sandbox, pushed,
verified against CI) or a local path / file:// URL (healed in place,
judged by local test results alone).`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		req := types.RunRequest{
			RepoURL:    args[0],
			TeamName:   runTeamName,
			LeaderName: runLeaderName,
		}
		if err := req.Validate(); err != nil {
			return err
		}

		history, err := store.OpenHistory(cfg.HistoryPath)
		if err != nil {
			return fmt.Errorf("opening run history: %w", err)
		}
		defer history.Close()

		retryLimit := cfg.RetryLimit
		if runRetryLimit > 0 {
			retryLimit = runRetryLimit
		}

		runCfg := healer.Config{
			RunID:       uuid.New().String(),
			RepoURL:     req.RepoURL,
			TeamName:    req.TeamName,
			LeaderName:  req.LeaderName,
			SandboxRoot: cfg.SandboxRoot,
			ResultsDir:  cfg.ResultsDir,
			RetryLimit:  retryLimit,
		}

		ctx := context.Background()
		h, err := buildHealer(ctx, cfg, runCfg, store.NewRegistry(), history)
		if err != nil {
			return err
		}

		state := h.Heal(ctx)
		printReport(state)
		return nil
	},
}

func printReport(state *types.RunState) {
	green := color.New(color.FgGreen).SprintFunc()
	red := color.New(color.FgRed).SprintFunc()
	cyan := color.New(color.FgCyan).SprintFunc()

	statusStr := red(string(state.Status))
	if state.Status == types.StatusPassed {
		statusStr = green(string(state.Status))
	}

	r := state.Results
	fmt.Printf("\nRun %s\n", cyan(state.RunID))
	fmt.Printf("  Status:     %s\n", statusStr)
	fmt.Printf("  Branch:     %s\n", r.BranchName)
	fmt.Printf("  Iterations: %d/%d\n", r.IterationsUsed, r.RetryLimit)
	fmt.Printf("  Failures:   %d seen, %d fixed\n", r.TotalFailures, r.TotalFixes)
	fmt.Printf("  Commits:    %d\n", r.Commits)
	fmt.Printf("  Elapsed:    %ds\n", r.ElapsedSeconds)
	fmt.Printf("  Score:      %d (base %d, bonus %d, penalty %d)\n",
		r.Score, r.ScoreBase, r.TimeBonus, r.CommitPenalty)

	if len(r.Fixes) > 0 {
		fmt.Printf("\n  Fixes:\n")
		for _, fix := range r.Fixes {
			mark := red("✗")
			if fix.Status == types.FixApplied {
				mark = green("✓")
			}
			fmt.Printf("    %s %s\n", mark, fix.Descriptor)
		}
	}
	if len(r.CITimeline) > 0 {
		fmt.Printf("\n  Timeline:\n")
		for _, entry := range r.CITimeline {
			fmt.Printf("    iteration %d: %s at %s\n", entry.Iteration, entry.Status, entry.Timestamp)
		}
	}
}

func init() {
	runCmd.Flags().StringVar(&runTeamName, "team", "", "team name (used to build the branch name)")
	runCmd.Flags().StringVar(&runLeaderName, "leader", "", "leader name (used to build the branch name)")
	runCmd.Flags().IntVar(&runRetryLimit, "retry-limit", 0, "override the configured retry limit")
	_ = runCmd.MarkFlagRequired("team")
	_ = runCmd.MarkFlagRequired("leader")
	rootCmd.AddCommand(runCmd)
}
