// Package fixer proposes and applies heuristic source repairs.
//
// Every transformation is staged: a candidate is built in memory,
// rejected if it is identical to the original or structurally invalid,
// and only then written over the authoritative file. The file on disk
// is never touched by a rejected candidate.
package fixer

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/mendhq/mend/internal/types"
)

// Disposition is the terminal state of one fix attempt. Only
// DispositionApplied mutated the file.
type Disposition string

const (
	DispositionApplied Disposition = "applied"
	// DispositionNoHeuristic: no transformation rule exists for the
	// category. Distinct from DispositionNoCandidate, where a rule ran
	// but found nothing to change.
	DispositionNoHeuristic       Disposition = "no_heuristic"
	DispositionNoCandidate       Disposition = "no_candidate"
	DispositionDependencyMissing Disposition = "dependency_missing"
	DispositionUnchanged         Disposition = "unchanged"
	DispositionInvalidSyntax     Disposition = "invalid_syntax"
	DispositionIOError           Disposition = "io_error"
)

// Outcome records what a fix attempt did to its target.
type Outcome struct {
	File        string
	Line        int
	Category    types.BugCategory
	Disposition Disposition
	// Err carries the underlying failure for io_error and
	// invalid_syntax dispositions. Never propagated as a run error.
	Err error
}

// Applied reports whether the file was actually mutated.
func (o Outcome) Applied() bool {
	return o.Disposition == DispositionApplied
}

// CandidateGenerator proposes full replacement file content when the
// built-in heuristics produce none. Candidates go through the same
// staged validation as heuristic ones.
type CandidateGenerator interface {
	GenerateFix(ctx context.Context, original string, failure types.FailureRecord, category types.BugCategory) (string, error)
}

// Engine applies best-effort source transformations inside one
// checked-out working tree.
type Engine struct {
	repoRoot  string
	generator CandidateGenerator // optional
}

// New creates a fix engine rooted at the given checkout.
func New(repoRoot string) *Engine {
	return &Engine{repoRoot: repoRoot}
}

// WithGenerator attaches an optional fallback candidate generator.
func (e *Engine) WithGenerator(g CandidateGenerator) *Engine {
	e.generator = g
	return e
}

var (
	noModuleRe  = regexp.MustCompile(`no module named ['"]?(\w+)['"]?`)
	undefinedRe = regexp.MustCompile(`name ['"]?(\w+)['"]? is not defined`)
)

// blockKeywords open a compound statement and therefore want a colon.
var blockKeywords = []string{
	"def ", "class ", "if ", "elif ", "else", "for ", "while ", "try", "except", "finally", "with ",
}

// Apply attempts to repair the failure in place. It never returns an
// error: every failure mode is folded into the outcome so the healing
// loop can continue with the remaining failures.
func (e *Engine) Apply(ctx context.Context, failure types.FailureRecord, category types.BugCategory) Outcome {
	out := Outcome{File: failure.File, Line: failure.Line, Category: category}

	path := filepath.Join(e.repoRoot, failure.File)
	original, err := os.ReadFile(path)
	if err != nil {
		out.Disposition = DispositionIOError
		out.Err = fmt.Errorf("reading %s: %w", path, err)
		return out
	}

	candidate, disposition := e.buildCandidate(string(original), failure, category)
	if candidate == "" && disposition != DispositionDependencyMissing && e.generator != nil {
		candidate = e.generateCandidate(ctx, string(original), failure, category)
	}
	if candidate == "" {
		if disposition == "" {
			disposition = DispositionNoCandidate
		}
		out.Disposition = disposition
		return out
	}

	if candidate == string(original) {
		out.Disposition = DispositionUnchanged
		return out
	}

	valid, err := ValidPython(ctx, []byte(candidate))
	if err != nil {
		out.Disposition = DispositionInvalidSyntax
		out.Err = fmt.Errorf("validating candidate for %s: %w", failure.File, err)
		return out
	}
	if !valid {
		slog.Warn("rejecting structurally invalid fix candidate", "file", failure.File, "line", failure.Line, "category", category)
		out.Disposition = DispositionInvalidSyntax
		return out
	}

	if err := os.WriteFile(path, []byte(candidate), 0644); err != nil {
		out.Disposition = DispositionIOError
		out.Err = fmt.Errorf("writing %s: %w", path, err)
		return out
	}

	slog.Info("applied fix", "file", failure.File, "line", failure.Line, "category", category)
	out.Disposition = DispositionApplied
	return out
}

// buildCandidate runs the per-category heuristic. It returns either a
// candidate (possibly empty for "nothing matched") or a short-circuit
// disposition for cases that are not transformation failures.
func (e *Engine) buildCandidate(original string, failure types.FailureRecord, category types.BugCategory) (string, Disposition) {
	switch category {
	case types.BugImport:
		return e.importCandidate(original, failure)
	case types.BugSyntax:
		return e.syntaxCandidate(original, failure), ""
	case types.BugIndentation:
		return e.indentationCandidate(original, failure), ""
	case types.BugTypeError, types.BugLogic, types.BugLinting:
		// Detection only. Absence of a transformation here is an
		// expected outcome, not a defect.
		return "", DispositionNoHeuristic
	default:
		return "", DispositionNoHeuristic
	}
}

func (e *Engine) generateCandidate(ctx context.Context, original string, failure types.FailureRecord, category types.BugCategory) string {
	candidate, err := e.generator.GenerateFix(ctx, original, failure, category)
	if err != nil {
		slog.Warn("fallback generator failed", "file", failure.File, "error", err)
		return ""
	}
	return candidate
}

// importCandidate handles the three import shapes: a mis-imported
// module (prepend the import), a bare undefined name (consult the
// well-known import table), and an uninstalled third-party dependency
// (no code change can help).
func (e *Engine) importCandidate(original string, failure types.FailureRecord) (string, Disposition) {
	msg := strings.ToLower(failure.Message)
	errType := strings.ToLower(failure.ErrorType)

	if strings.Contains(errType, "modulenotfounderror") ||
		(strings.Contains(msg, "no module named") && !strings.Contains(msg, "import")) {
		return "", DispositionDependencyMissing
	}

	if strings.Contains(msg, "no module named") && strings.Contains(msg, "import") {
		if m := noModuleRe.FindStringSubmatch(msg); m != nil {
			return fmt.Sprintf("import %s\n\n%s", m[1], original), ""
		}
	}

	if m := undefinedRe.FindStringSubmatch(msg); m != nil {
		if stmt, ok := wellKnownImports[strings.ToLower(m[1])]; ok {
			return fmt.Sprintf("%s\n\n%s", stmt, original), ""
		}
	}

	return "", ""
}

// syntaxCandidate appends a missing colon to a compound-statement line
// or balances an unclosed bracket on the target line.
func (e *Engine) syntaxCandidate(original string, failure types.FailureRecord) string {
	lines := splitKeepEnds(original)
	if failure.Line < 1 || failure.Line > len(lines) {
		return ""
	}
	idx := failure.Line - 1
	line := lines[idx]
	msg := strings.ToLower(failure.Message)

	if strings.Contains(msg, "expected ':'") || strings.Contains(msg, "invalid syntax") {
		trimmed := strings.TrimRight(line, "\r\n")
		if strings.TrimSpace(trimmed) != "" && !strings.HasSuffix(strings.TrimRight(trimmed, " \t"), ":") {
			for _, kw := range blockKeywords {
				if strings.Contains(line, kw) {
					lines[idx] = strings.TrimRight(trimmed, " \t") + ":\n"
					return strings.Join(lines, "")
				}
			}
		}
	}

	if strings.Contains(msg, "unclosed") || strings.Contains(msg, "unmatched") {
		open := strings.Count(line, "(") - strings.Count(line, ")")
		if open > 0 {
			lines[idx] = strings.TrimRight(line, "\r\n") + strings.Repeat(")", open) + "\n"
			return strings.Join(lines, "")
		}
	}

	return ""
}

// indentationCandidate re-indents the target line to match the
// immediately preceding line, preserving its trimmed content.
func (e *Engine) indentationCandidate(original string, failure types.FailureRecord) string {
	lines := splitKeepEnds(original)
	if failure.Line < 2 || failure.Line > len(lines) {
		return ""
	}
	prev := lines[failure.Line-2]
	prevIndent := len(prev) - len(strings.TrimLeft(prev, " \t"))
	content := strings.TrimLeft(lines[failure.Line-1], " \t")
	lines[failure.Line-1] = strings.Repeat(" ", prevIndent) + content
	return strings.Join(lines, "")
}

// splitKeepEnds splits content into lines that retain their trailing
// newline, so a simple Join reconstructs the original byte-for-byte.
func splitKeepEnds(s string) []string {
	var lines []string
	for {
		i := strings.IndexByte(s, '\n')
		if i < 0 {
			if s != "" {
				lines = append(lines, s)
			}
			return lines
		}
		lines = append(lines, s[:i+1])
		s = s[i+1:]
	}
}
