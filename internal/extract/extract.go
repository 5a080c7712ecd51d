// Package extract turns raw test-runner output into structured,
// deduplicated failure records.
//
// Two report styles are recognized in a single left-to-right pass:
// pytest's verbose style, where a "path.py:12: in test_x" location line
// is eventually resolved by an "E   SomeError: message" line, and the
// traditional traceback style, where `File "path.py", line 12` is
// followed within a short window by "SomeError: message". The first
// record wins when both styles report the same (file, line).
package extract

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/mendhq/mend/internal/types"
)

// SetupExitCode is the pytest exit code for a collection or
// configuration failure, where no test actually executed.
const SetupExitCode = 4

// sandboxMount is stripped from paths reported by the sandboxed runner.
const sandboxMount = "/workspace/"

// tracebackLookahead bounds how far past a `File "...", line N` line we
// search for the resolving error line.
const tracebackLookahead = 4

// ErrNoFailures signals a failing test run whose output produced zero
// parseable records. The orchestrator must treat this as fatal rather
// than proceed as if tests passed.
var ErrNoFailures = errors.New("tests failed but no structured failures could be extracted")

var (
	locationRe  = regexp.MustCompile(`^([\w./\\-]+\.py):(\d+):\s+in\s+\S+`)
	errorLineRe = regexp.MustCompile(`^E\s+(\w+(?:Error|Exception|Failure)):\s*(.+)$`)
	tracebackRe = regexp.MustCompile(`File "([^"]+)", line (\d+)`)
	errTypeRe   = regexp.MustCompile(`^(\w*(?:Error|Exception|Failure)):\s*(.+)`)

	setupLocationRe = regexp.MustCompile(`([\w./]+\.py):(\d+):`)
	setupErrorRe    = regexp.MustCompile(`E\s+(\w+(?:Error|Exception)?)\s*:\s*(.+)`)
)

// Extract parses the combined output of one failed test invocation.
// exitCode is the runner's exit code; SetupExitCode triggers the
// synthetic single-record path for collection failures.
func Extract(output string, exitCode int, repoRoot string) ([]types.FailureRecord, error) {
	if exitCode == SetupExitCode {
		if rec := parseSetupFailure(output, repoRoot); rec != nil {
			return []types.FailureRecord{*rec}, nil
		}
	}

	records := parse(output, repoRoot)
	if len(records) == 0 {
		return nil, fmt.Errorf("%w (exit code %d)", ErrNoFailures, exitCode)
	}
	return records, nil
}

// pending is the rolling candidate for the verbose location style: a
// location line has been seen but its error line has not arrived yet.
type pending struct {
	file      string
	line      int
	traceback []string
}

func parse(output, repoRoot string) []types.FailureRecord {
	var records []types.FailureRecord
	seen := make(map[types.FailureKey]bool)

	lines := strings.Split(output, "\n")
	var cur *pending

	for i, line := range lines {
		if m := locationRe.FindStringSubmatch(line); m != nil {
			n, _ := strconv.Atoi(m[2])
			cur = &pending{
				file:      normalizePath(m[1], repoRoot),
				line:      n,
				traceback: []string{line},
			}
		} else if m := errorLineRe.FindStringSubmatch(line); m != nil && cur != nil {
			cur.traceback = append(cur.traceback, line)
			rec := types.FailureRecord{
				File:         cur.file,
				Line:         cur.line,
				Message:      strings.TrimSpace(m[2]),
				ErrorType:    m[1],
				RawTraceback: strings.Join(cur.traceback, "\n"),
			}
			if !seen[rec.Key()] {
				seen[rec.Key()] = true
				records = append(records, rec)
			}
			cur = nil
		} else if cur != nil {
			cur.traceback = append(cur.traceback, line)
		}

		// Traceback style is resolved inline with a bounded lookahead,
		// independent of the pending candidate above.
		if m := tracebackRe.FindStringSubmatch(line); m != nil {
			file := normalizePath(m[1], repoRoot)
			if !strings.HasSuffix(file, ".py") {
				continue
			}
			n, _ := strconv.Atoi(m[2])

			errorType := "UnknownError"
			message := "Test failure"
			traceback := []string{line}
			for j := i + 1; j < len(lines) && j <= i+tracebackLookahead; j++ {
				traceback = append(traceback, lines[j])
				if em := errTypeRe.FindStringSubmatch(lines[j]); em != nil {
					errorType = em[1]
					message = strings.TrimSpace(em[2])
					break
				}
			}

			rec := types.FailureRecord{
				File:         file,
				Line:         n,
				Message:      message,
				ErrorType:    errorType,
				RawTraceback: strings.TrimSpace(strings.Join(traceback, "\n")),
			}
			if !seen[rec.Key()] {
				seen[rec.Key()] = true
				records = append(records, rec)
			}
		}
	}

	return records
}

// parseSetupFailure synthesizes a single record for a collection-level
// failure, such as a conftest import error. Returns nil when nothing
// structured can be found in the output.
func parseSetupFailure(output, repoRoot string) *types.FailureRecord {
	var (
		file       string
		line       = 1
		errorType  = "ImportError" // import problems dominate collection failures
		message    = "Setup/configuration error"
		errorFound bool
		traceback  []string
	)

	for _, l := range strings.Split(output, "\n") {
		if m := setupLocationRe.FindStringSubmatch(l); m != nil && file == "" {
			file = normalizePath(m[1], repoRoot)
			line, _ = strconv.Atoi(m[2])
		}
		if strings.HasPrefix(strings.TrimSpace(l), "E   ") {
			if m := setupErrorRe.FindStringSubmatch(l); m != nil && !errorFound {
				errorType = m[1]
				message = strings.TrimSpace(m[2])
				errorFound = true
			}
		}
		if file != "" || strings.HasPrefix(strings.TrimSpace(l), "E   ") {
			traceback = append(traceback, l)
		}
	}

	if file == "" {
		return nil
	}
	return &types.FailureRecord{
		File:         file,
		Line:         line,
		Message:      message,
		ErrorType:    errorType,
		RawTraceback: strings.TrimSpace(strings.Join(traceback, "\n")),
	}
}

// normalizePath makes runner-reported paths comparable to files in the
// checked-out working tree: strips the repository root, the sandbox
// mount prefix, and any leading "./".
func normalizePath(path, repoRoot string) string {
	if repoRoot != "" && strings.HasPrefix(path, repoRoot) {
		path = strings.TrimLeft(strings.TrimPrefix(path, repoRoot), "/")
	}
	path = strings.TrimPrefix(path, sandboxMount)
	path = strings.TrimPrefix(path, "./")
	return path
}
