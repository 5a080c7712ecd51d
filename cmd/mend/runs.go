package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/mendhq/mend/internal/store"
	"github.com/mendhq/mend/internal/types"
)

var (
	runsLimit  int
	runsReport string
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List recorded healing runs",
	Long: `List runs from the history database, newest first.

Use --report <run-id> to print one run's full JSON report instead.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		history, err := store.OpenHistory(cfg.HistoryPath)
		if err != nil {
			return fmt.Errorf("opening run history: %w", err)
		}
		defer history.Close()

		ctx := context.Background()

		if runsReport != "" {
			report, err := history.GetReport(ctx, runsReport)
			if err != nil {
				return err
			}
			data, err := json.MarshalIndent(report, "", "  ")
			if err != nil {
				return fmt.Errorf("encoding report: %w", err)
			}
			fmt.Println(string(data))
			return nil
		}

		runs, err := history.List(ctx, runsLimit)
		if err != nil {
			return err
		}
		if len(runs) == 0 {
			fmt.Println("No runs recorded.")
			return nil
		}

		green := color.New(color.FgGreen).SprintFunc()
		red := color.New(color.FgRed).SprintFunc()
		yellow := color.New(color.FgYellow).SprintFunc()

		for _, run := range runs {
			statusStr := yellow(string(run.Status))
			switch run.Status {
			case types.StatusPassed:
				statusStr = green(string(run.Status))
			case types.StatusFailed:
				statusStr = red(string(run.Status))
			}
			fmt.Printf("%s  %-7s score=%-4d %s (%s)\n",
				run.RunID, statusStr, run.Score, run.Repository, run.Branch)
		}
		return nil
	},
}

func init() {
	runsCmd.Flags().IntVar(&runsLimit, "limit", 20, "maximum runs to list")
	runsCmd.Flags().StringVar(&runsReport, "report", "", "print the full report for one run id")
	rootCmd.AddCommand(runsCmd)
}
