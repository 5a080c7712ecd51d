package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/mendhq/mend/internal/ai"
	"github.com/mendhq/mend/internal/ci"
	"github.com/mendhq/mend/internal/config"
	"github.com/mendhq/mend/internal/git"
	"github.com/mendhq/mend/internal/healer"
	"github.com/mendhq/mend/internal/runner"
	"github.com/mendhq/mend/internal/store"
)

// buildHealer assembles a run's collaborators from configuration.
func buildHealer(ctx context.Context, cfg *config.Config, runCfg healer.Config, registry *store.Registry, history *store.History) (*healer.Healer, error) {
	vcs, err := git.NewGit(ctx)
	if err != nil {
		return nil, fmt.Errorf("initializing git: %w", err)
	}

	tests, err := runner.NewPytestRunner(cfg.TestTimeout())
	if err != nil {
		return nil, fmt.Errorf("initializing test runner: %w", err)
	}

	poller := ci.NewGitHubPoller(ci.Config{
		Token:        cfg.GitHubToken,
		PollInterval: cfg.CIPollInterval(),
		PollTimeout:  cfg.CIPollTimeout(),
	})

	h := healer.New(runCfg, vcs, poller, tests, registry, history)

	// LLM assistance is opt-in: absence of a key just disables it.
	if gen, err := ai.NewGenerator(ai.Config{APIKey: cfg.AnthropicAPIKey}); err == nil {
		h.WithGenerator(gen)
	} else {
		slog.Debug("llm fix generation disabled", "reason", err)
	}
	return h, nil
}
