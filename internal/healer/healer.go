// Package healer drives the test → diagnose → fix → verify loop for a
// single run. The loop is sequential within a run; concurrency across
// runs lives above this package.
package healer

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/mendhq/mend/internal/ci"
	"github.com/mendhq/mend/internal/classifier"
	"github.com/mendhq/mend/internal/extract"
	"github.com/mendhq/mend/internal/fixer"
	"github.com/mendhq/mend/internal/git"
	"github.com/mendhq/mend/internal/runner"
	"github.com/mendhq/mend/internal/score"
	"github.com/mendhq/mend/internal/store"
	"github.com/mendhq/mend/internal/types"
)

// DefaultRetryLimit bounds healing iterations when none is configured.
const DefaultRetryLimit = 5

// Config describes one healing run.
type Config struct {
	RunID      string
	RepoURL    string
	TeamName   string
	LeaderName string

	// RepoPath, when set, is an already-acquired checkout and no clone
	// happens. Otherwise the repo is cloned under SandboxRoot/RunID.
	RepoPath    string
	SandboxRoot string

	// ResultsDir receives the final report JSON. Empty disables it.
	ResultsDir string

	RetryLimit int
}

// Healer owns the lifecycle of one run: branch setup, the bounded
// iteration loop, and the single finalization step that freezes the
// report. The Healer is the only writer of its RunState.
type Healer struct {
	cfg       Config
	vcs       git.Operations
	poller    ci.Poller
	tests     runner.Runner
	generator fixer.CandidateGenerator // optional
	engine    *fixer.Engine
	registry  *store.Registry
	history   *store.History // optional
	log       *slog.Logger

	state *types.RunState
	local bool
}

// New wires a healer from its collaborators. history may be nil.
func New(cfg Config, vcs git.Operations, poller ci.Poller, tests runner.Runner, registry *store.Registry, history *store.History) *Healer {
	if cfg.RetryLimit <= 0 {
		cfg.RetryLimit = DefaultRetryLimit
	}
	return &Healer{
		cfg:      cfg,
		vcs:      vcs,
		poller:   poller,
		tests:    tests,
		registry: registry,
		history:  history,
		log:      slog.With("run_id", cfg.RunID),
		local:    git.IsLocal(cfg.RepoURL),
	}
}

// WithGenerator attaches a fallback fix candidate generator, consulted
// only when the built-in heuristics produce nothing.
func (h *Healer) WithGenerator(g fixer.CandidateGenerator) *Healer {
	h.generator = g
	return h
}

// Heal executes the run to a terminal state and returns the frozen
// report. It never returns an error: every failure mode finalizes the
// run as FAILED with whatever progress was already recorded.
func (h *Healer) Heal(ctx context.Context) *types.RunState {
	started := time.Now()
	h.state = &types.RunState{
		RunID:     h.cfg.RunID,
		Status:    types.StatusRunning,
		StartedAt: started.UTC(),
		Results: types.Results{
			Repository:  h.cfg.RepoURL,
			TeamName:    h.cfg.TeamName,
			LeaderName:  h.cfg.LeaderName,
			RetryLimit:  h.cfg.RetryLimit,
			FinalStatus: types.StatusRunning,
			Fixes:       []types.FixRecord{},
			CITimeline:  []types.CITimelineRecord{},
		},
	}
	h.publish()

	if err := h.prepare(ctx); err != nil {
		h.log.Error("run setup failed", "error", err)
		return h.finalize(started, types.StatusFailed)
	}

	status, err := h.loop(ctx)
	if err != nil {
		h.log.Error("healing loop aborted", "error", err)
		return h.finalize(started, types.StatusFailed)
	}
	return h.finalize(started, status)
}

// prepare acquires the checkout, creates the working branch, and
// builds the fix engine rooted at the checkout.
func (h *Healer) prepare(ctx context.Context) error {
	if h.cfg.RepoPath == "" {
		dest := filepath.Join(h.cfg.SandboxRoot, h.cfg.RunID)
		if err := h.vcs.Clone(ctx, h.cfg.RepoURL, dest); err != nil {
			return fmt.Errorf("acquiring repository: %w", err)
		}
		h.cfg.RepoPath = dest
	}

	// The heuristics and test runner are python-shaped; anything else
	// still runs but will likely exhaust its retries.
	if lang := git.DetectLanguage(h.cfg.RepoPath); lang != git.LangPython {
		h.log.Warn("repository does not look like a python project", "language", lang)
	}

	branch := git.BuildBranchName(h.cfg.TeamName, h.cfg.LeaderName)
	if err := git.ValidateBranchName(branch); err != nil {
		return fmt.Errorf("building branch name: %w", err)
	}
	if err := h.vcs.CreateBranch(ctx, h.cfg.RepoPath, branch); err != nil {
		return fmt.Errorf("creating branch %s: %w", branch, err)
	}

	h.engine = fixer.New(h.cfg.RepoPath)
	if h.generator != nil {
		h.engine.WithGenerator(h.generator)
	}

	h.state.Results.BranchName = branch
	h.publish()
	return nil
}

// loop runs bounded iterations until PASSED or exhaustion. A returned
// error is fatal to the run.
func (h *Healer) loop(ctx context.Context) (types.RunStatus, error) {
	for iter := 1; iter <= h.cfg.RetryLimit; iter++ {
		h.state.Results.IterationsUsed = iter
		h.publish()
		h.log.Info("starting iteration", "iteration", iter, "limit", h.cfg.RetryLimit)

		res, err := h.tests.RunTests(ctx, h.cfg.RepoPath)
		if err != nil {
			return types.StatusFailed, fmt.Errorf("iteration %d: running tests: %w", iter, err)
		}

		if res.Passed() {
			if h.local {
				h.recordTimeline(iter, types.StatusPassed)
				return types.StatusPassed, nil
			}
			status, err := h.pushAndPoll(ctx, iter)
			if err != nil {
				return types.StatusFailed, err
			}
			if status == types.StatusPassed {
				return types.StatusPassed, nil
			}
			// Tests can pass locally yet fail CI for environment
			// reasons. Not fatal: keep looping.
			continue
		}

		if _, err := h.repair(ctx, iter, res); err != nil {
			return types.StatusFailed, err
		}
		if h.local {
			h.recordTimeline(iter, types.StatusFailed)
			continue
		}
		// Push whatever this iteration produced, fixes or not, and let
		// CI deliver the verdict. A green CI run ends the loop even
		// when the local suite was still red.
		status, err := h.pushAndPoll(ctx, iter)
		if err != nil {
			return types.StatusFailed, err
		}
		if status == types.StatusPassed {
			return types.StatusPassed, nil
		}
	}
	h.log.Info("retry limit exhausted", "limit", h.cfg.RetryLimit)
	return types.StatusFailed, nil
}

// repair extracts, classifies, and attempts a fix for every failure in
// a failing test run, then commits whatever was applied. Returns the
// number of fixes applied this iteration.
func (h *Healer) repair(ctx context.Context, iter int, res *runner.Result) (int, error) {
	failures, err := extract.Extract(res.Combined(), res.ExitCode, h.cfg.RepoPath)
	if err != nil {
		return 0, fmt.Errorf("iteration %d: %w", iter, err)
	}
	h.state.Results.TotalFailures += len(failures)
	h.log.Info("extracted failures", "iteration", iter, "count", len(failures))

	applied := 0
	for _, failure := range failures {
		category := classifier.Classify(failure.ErrorType, failure.Message)
		proposal, err := fixer.Propose(failure.File, failure.Line, category)
		if err != nil {
			return applied, fmt.Errorf("iteration %d: %w", iter, err)
		}

		outcome := h.engine.Apply(ctx, failure, category)
		status := types.FixFailed
		if outcome.Applied() {
			status = types.FixApplied
			applied++
			h.state.Results.TotalFixes++
		} else {
			h.log.Info("no fix applied", "file", failure.File, "line", failure.Line,
				"category", category, "disposition", outcome.Disposition)
		}

		h.state.Results.Fixes = append(h.state.Results.Fixes, types.FixRecord{
			File:          proposal.File,
			Category:      proposal.Category,
			Line:          proposal.Line,
			CommitMessage: proposal.CommitMessage,
			Status:        status,
			Descriptor:    proposal.Descriptor,
		})
		h.publish()
	}

	if applied > 0 {
		message := fmt.Sprintf("%s Apply %d automated fixes", fixer.CommitPrefix, applied)
		didCommit, err := h.vcs.CommitAll(ctx, h.cfg.RepoPath, message)
		if err != nil {
			return applied, fmt.Errorf("iteration %d: committing fixes: %w", iter, err)
		}
		if didCommit {
			h.state.Results.Commits++
			h.publish()
		}
	}
	return applied, nil
}

// pushAndPoll pushes the working branch, blocks on the CI verdict, and
// records the iteration's timeline entry.
func (h *Healer) pushAndPoll(ctx context.Context, iter int) (types.RunStatus, error) {
	if err := h.vcs.Push(ctx, h.cfg.RepoPath, h.state.Results.BranchName); err != nil {
		return types.StatusFailed, fmt.Errorf("iteration %d: pushing branch: %w", iter, err)
	}
	ciStatus := h.poller.PollStatus(ctx, h.cfg.RepoURL, h.state.Results.BranchName)
	h.log.Info("ci verdict", "iteration", iter, "status", ciStatus.Status, "details", ciStatus.Details)
	h.state.Results.CITimeline = append(h.state.Results.CITimeline, types.CITimelineRecord{
		Iteration: iter,
		Status:    ciStatus.Status,
		Timestamp: ciStatus.Timestamp,
	})
	h.publish()
	return ciStatus.Status, nil
}

func (h *Healer) recordTimeline(iter int, status types.RunStatus) {
	h.state.Results.CITimeline = append(h.state.Results.CITimeline, types.CITimelineRecord{
		Iteration: iter,
		Status:    status,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
	h.publish()
}

// finalize freezes the run: status is set exactly once, the score is
// computed, and the report is persisted. Persistence failures are
// logged but never change the terminal status.
func (h *Healer) finalize(started time.Time, status types.RunStatus) *types.RunState {
	elapsed := int(time.Since(started).Seconds())
	breakdown := score.Calculate(elapsed, h.state.Results.Commits)

	now := time.Now().UTC()
	h.state.Status = status
	h.state.FinishedAt = &now
	h.state.Results.FinalStatus = status
	h.state.Results.ElapsedSeconds = elapsed
	h.state.Results.Score = breakdown.Final
	h.state.Results.ScoreBase = breakdown.Base
	h.state.Results.TimeBonus = breakdown.TimeBonus
	h.state.Results.CommitPenalty = breakdown.CommitPenalty
	h.publish()

	h.log.Info("run finalized", "status", status, "score", breakdown.Final,
		"fixes", h.state.Results.TotalFixes, "commits", h.state.Results.Commits,
		"elapsed_seconds", elapsed)

	if h.cfg.ResultsDir != "" {
		if err := store.WriteReport(h.cfg.ResultsDir, h.state); err != nil {
			h.log.Error("writing report", "error", err)
		}
	}
	if h.history != nil {
		if err := h.history.Record(context.Background(), h.state); err != nil {
			h.log.Error("recording run history", "error", err)
		}
	}
	return h.state.Clone()
}

func (h *Healer) publish() {
	if h.registry != nil {
		h.registry.Put(h.state)
	}
}
