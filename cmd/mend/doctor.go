package main

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"golang.org/x/mod/semver"

	"github.com/mendhq/mend/internal/git"
)

// minGitVersion is the oldest git release the agent is known to work
// with (needs modern checkout/switch behavior).
const minGitVersion = "v2.20.0"

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check installation and environment health",
	Long: `Run health checks to diagnose common configuration and environment
issues.

This command checks for:
- Git availability and minimum version
- Python and pytest availability
- Sandbox directory permissions
- Results directory permissions
- Configuration sanity

Exit codes:
  0 - All checks passed
  1 - One or more checks failed`,
	Run: func(cmd *cobra.Command, args []string) {
		green := color.New(color.FgGreen).SprintFunc()
		red := color.New(color.FgRed).SprintFunc()
		yellow := color.New(color.FgYellow).SprintFunc()
		cyan := color.New(color.FgCyan).SprintFunc()

		fmt.Printf("Running mend health checks...\n\n")

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		var failures []string
		var warnings []string

		// Check 1: git presence and version
		fmt.Printf("%s Git\n", cyan("→"))
		if g, err := git.NewGit(ctx); err != nil {
			failures = append(failures, fmt.Sprintf("git unavailable: %v", err))
			fmt.Printf("  %s git not available\n", red("✗"))
		} else {
			version, err := g.Version(ctx)
			switch {
			case err != nil:
				warnings = append(warnings, fmt.Sprintf("could not determine git version: %v", err))
				fmt.Printf("  %s git found, version unknown\n", yellow("⚠"))
			case semver.Compare("v"+version, minGitVersion) < 0:
				failures = append(failures, fmt.Sprintf("git %s is older than required %s", version, minGitVersion))
				fmt.Printf("  %s git %s (need %s or newer)\n", red("✗"), version, minGitVersion)
			default:
				fmt.Printf("  %s git %s\n", green("✓"), version)
			}
		}

		// Check 2: python + pytest
		fmt.Printf("%s Python test tooling\n", cyan("→"))
		pythonPath, err := exec.LookPath("python3")
		if err != nil {
			pythonPath, err = exec.LookPath("python")
		}
		if err != nil {
			failures = append(failures, "no python interpreter in PATH")
			fmt.Printf("  %s python not found\n", red("✗"))
		} else {
			fmt.Printf("  %s %s\n", green("✓"), pythonPath)
			if err := exec.CommandContext(ctx, pythonPath, "-m", "pytest", "--version").Run(); err != nil {
				warnings = append(warnings, "pytest module not importable; test runs will fail")
				fmt.Printf("  %s pytest not importable\n", yellow("⚠"))
			} else {
				fmt.Printf("  %s pytest available\n", green("✓"))
			}
		}

		// Check 3: sandbox and results directories
		fmt.Printf("%s Working directories\n", cyan("→"))
		for _, dir := range []string{cfg.SandboxRoot, cfg.ResultsDir} {
			if err := checkWritable(dir); err != nil {
				failures = append(failures, fmt.Sprintf("%s not writable: %v", dir, err))
				fmt.Printf("  %s %s not writable\n", red("✗"), dir)
			} else {
				fmt.Printf("  %s %s writable\n", green("✓"), dir)
			}
		}

		// Check 4: configuration sanity
		fmt.Printf("%s Configuration\n", cyan("→"))
		if err := cfg.Validate(); err != nil {
			failures = append(failures, fmt.Sprintf("invalid configuration: %v", err))
			fmt.Printf("  %s %v\n", red("✗"), err)
		} else {
			fmt.Printf("  %s retry_limit=%d poll=%ds/%ds concurrency=%d\n", green("✓"),
				cfg.RetryLimit, cfg.CIPollIntervalSeconds, cfg.CIPollTimeoutSeconds, cfg.MaxConcurrentRuns)
		}
		if cfg.GitHubToken == "" {
			warnings = append(warnings, "GITHUB_TOKEN not set; private clones and CI polling will be unauthenticated")
			fmt.Printf("  %s no GitHub token configured\n", yellow("⚠"))
		}

		fmt.Println()
		for _, w := range warnings {
			fmt.Printf("%s %s\n", yellow("⚠"), w)
		}
		if len(failures) > 0 {
			fmt.Printf("%s %d check(s) failed\n", red("✗"), len(failures))
			os.Exit(1)
		}
		fmt.Printf("%s All checks passed\n", green("✓"))
	},
}

// checkWritable verifies the directory exists (creating it if needed)
// and accepts a file write.
func checkWritable(dir string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	probe := filepath.Join(dir, ".mend-doctor")
	if err := os.WriteFile(probe, []byte("ok"), 0644); err != nil {
		return err
	}
	return os.Remove(probe)
}

func init() {
	rootCmd.AddCommand(doctorCmd)
}
