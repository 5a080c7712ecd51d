package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/mendhq/mend/internal/config"
)

var (
	configPath string
	cfg        *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "mend",
	Short: "Autonomous test-healing agent",
	Long: `Mend clones a failing repository, runs its test suite, classifies
every failure, applies targeted source fixes, commits them under an
agent branch, and verifies the result against CI. It keeps looping
until the suite passes or the retry limit is reached.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			return fmt.Errorf("loading configuration: %w", err)
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "mend.yaml", "path to YAML config file")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
