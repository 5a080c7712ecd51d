// Package runner executes a repository's test suite in its checkout
// and reports the raw outcome. Parsing the output is the extraction
// engine's job, not the runner's.
package runner

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"time"
)

// ErrNoTestFiles means the checkout contains nothing recognizable as a
// test suite. Fatal to the run: there is nothing to heal against.
var ErrNoTestFiles = errors.New("no test files found in repository")

// Result is the raw outcome of one test invocation.
type Result struct {
	ExitCode int
	Stdout   string
	Stderr   string
}

// Passed reports whether the suite passed. Exit code 0 is the whole
// contract.
func (r *Result) Passed() bool {
	return r.ExitCode == 0
}

// Combined returns stdout and stderr joined for the extraction engine,
// which scans both streams in one pass.
func (r *Result) Combined() string {
	return r.Stdout + "\n" + r.Stderr
}

// Runner executes tests for a checkout. Interface for test fakes.
type Runner interface {
	RunTests(ctx context.Context, repoPath string) (*Result, error)
}

// PytestRunner runs pytest through the python interpreter.
type PytestRunner struct {
	pythonPath string
	timeout    time.Duration
}

// NewPytestRunner locates a python interpreter and returns a runner.
func NewPytestRunner(timeout time.Duration) (*PytestRunner, error) {
	for _, name := range []string{"python3", "python"} {
		if path, err := exec.LookPath(name); err == nil {
			return &PytestRunner{pythonPath: path, timeout: timeout}, nil
		}
	}
	return nil, fmt.Errorf("no python interpreter found in PATH")
}

// RunTests discovers test files and invokes pytest over the checkout.
// A non-zero exit code is not an error here; it is the expected shape
// of a failing suite. Errors mean the runner itself could not operate.
func (p *PytestRunner) RunTests(ctx context.Context, repoPath string) (*Result, error) {
	files, err := DiscoverTestFiles(repoPath)
	if err != nil {
		return nil, fmt.Errorf("discovering test files: %w", err)
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoTestFiles, repoPath)
	}

	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, p.pythonPath, "-m", "pytest", "-v", "--tb=short")
	cmd.Dir = repoPath

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	err = cmd.Run()
	elapsed := time.Since(start)

	if err != nil {
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			return nil, fmt.Errorf("running pytest: %w", err)
		}
	}

	result := &Result{
		ExitCode: cmd.ProcessState.ExitCode(),
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
	}

	slog.Info("test run finished",
		"repo", repoPath,
		"exit_code", result.ExitCode,
		"test_files", len(files),
		"elapsed", elapsed.Round(time.Millisecond))
	return result, nil
}
