package fixer

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/mendhq/mend/internal/types"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write fixture: %v", err)
	}
	return path
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read file: %v", err)
	}
	return string(data)
}

func TestApplyUndefinedNameInsertsImport(t *testing.T) {
	dir := t.TempDir()
	content := "def test_home():\n    assert os.path.sep == '/'\n"
	path := writeFile(t, dir, "test_home.py", content)

	engine := New(dir)
	out := engine.Apply(context.Background(), types.FailureRecord{
		File:      "test_home.py",
		Line:      2,
		Message:   "name 'os' is not defined",
		ErrorType: "NameError",
	}, types.BugImport)

	if !out.Applied() {
		t.Fatalf("Expected applied, got %s (err=%v)", out.Disposition, out.Err)
	}
	got := readFile(t, path)
	if !strings.HasPrefix(got, "import os\n") {
		t.Errorf("Expected import os prepended, got:\n%s", got)
	}
	if !strings.Contains(got, "def test_home():") {
		t.Errorf("Original content must be preserved, got:\n%s", got)
	}
}

func TestApplyMisimportedModulePrepends(t *testing.T) {
	dir := t.TempDir()
	content := "from helpers import stuff\n\ndef f():\n    return stuff()\n"
	writeFile(t, dir, "app.py", content)

	engine := New(dir)
	out := engine.Apply(context.Background(), types.FailureRecord{
		File:      "app.py",
		Line:      1,
		Message:   "cannot import name; no module named 'helpers'",
		ErrorType: "ImportError",
	}, types.BugImport)

	if !out.Applied() {
		t.Fatalf("Expected applied, got %s", out.Disposition)
	}
	got := readFile(t, filepath.Join(dir, "app.py"))
	if !strings.HasPrefix(got, "import helpers\n") {
		t.Errorf("Expected import helpers prepended, got:\n%s", got)
	}
}

func TestApplyMissingDependencyIsNotATransformation(t *testing.T) {
	dir := t.TempDir()
	content := "import requests\n"
	path := writeFile(t, dir, "client.py", content)

	engine := New(dir)
	out := engine.Apply(context.Background(), types.FailureRecord{
		File:      "client.py",
		Line:      1,
		Message:   "No module named 'requests'",
		ErrorType: "ModuleNotFoundError",
	}, types.BugImport)

	if out.Applied() {
		t.Fatal("Uninstallable dependency must not produce a code fix")
	}
	if out.Disposition != DispositionDependencyMissing {
		t.Errorf("Expected dependency_missing, got %s", out.Disposition)
	}
	if readFile(t, path) != content {
		t.Error("File must be byte-identical after a non-fix")
	}
}

func TestApplyMissingColon(t *testing.T) {
	dir := t.TempDir()
	content := "def add(a, b)\n    return a + b\n"
	writeFile(t, dir, "calc.py", content)

	engine := New(dir)
	out := engine.Apply(context.Background(), types.FailureRecord{
		File:      "calc.py",
		Line:      1,
		Message:   "invalid syntax",
		ErrorType: "SyntaxError",
	}, types.BugSyntax)

	if !out.Applied() {
		t.Fatalf("Expected applied, got %s (err=%v)", out.Disposition, out.Err)
	}
	got := readFile(t, filepath.Join(dir, "calc.py"))
	if !strings.HasPrefix(got, "def add(a, b):\n") {
		t.Errorf("Expected colon appended, got:\n%s", got)
	}
}

func TestApplyUnbalancedBracket(t *testing.T) {
	dir := t.TempDir()
	content := "x = min(1, max(2, 3)\ny = 4\n"
	writeFile(t, dir, "m.py", content)

	engine := New(dir)
	out := engine.Apply(context.Background(), types.FailureRecord{
		File:      "m.py",
		Line:      1,
		Message:   "'(' was never closed (unclosed parenthesis)",
		ErrorType: "SyntaxError",
	}, types.BugSyntax)

	if !out.Applied() {
		t.Fatalf("Expected applied, got %s (err=%v)", out.Disposition, out.Err)
	}
	got := readFile(t, filepath.Join(dir, "m.py"))
	if !strings.HasPrefix(got, "x = min(1, max(2, 3))\n") {
		t.Errorf("Expected one closing paren appended, got:\n%s", got)
	}
}

func TestApplyIndentationMatchesPreviousLine(t *testing.T) {
	dir := t.TempDir()
	content := "def f():\n    a = 1\n        b = 2\n"
	writeFile(t, dir, "i.py", content)

	engine := New(dir)
	out := engine.Apply(context.Background(), types.FailureRecord{
		File:      "i.py",
		Line:      3,
		Message:   "unexpected indent",
		ErrorType: "IndentationError",
	}, types.BugIndentation)

	if !out.Applied() {
		t.Fatalf("Expected applied, got %s (err=%v)", out.Disposition, out.Err)
	}
	got := readFile(t, filepath.Join(dir, "i.py"))
	if !strings.Contains(got, "\n    b = 2\n") {
		t.Errorf("Expected b re-indented to previous line's level, got:\n%s", got)
	}
}

func TestApplyNoHeuristicCategories(t *testing.T) {
	dir := t.TempDir()
	content := "def f():\n    return 1\n"
	path := writeFile(t, dir, "l.py", content)

	engine := New(dir)
	for _, category := range []types.BugCategory{types.BugTypeError, types.BugLogic, types.BugLinting} {
		out := engine.Apply(context.Background(), types.FailureRecord{
			File: "l.py", Line: 2, Message: "whatever", ErrorType: "Error",
		}, category)
		if out.Applied() {
			t.Errorf("%s must not transform", category)
		}
		if out.Disposition != DispositionNoHeuristic {
			t.Errorf("%s: expected no_heuristic, got %s", category, out.Disposition)
		}
	}
	if readFile(t, path) != content {
		t.Error("File must be untouched")
	}
}

func TestApplyRejectionLeavesFileUntouched(t *testing.T) {
	dir := t.TempDir()
	// No heuristic matches this syntax message, so no candidate is built.
	content := "x = 1\n"
	path := writeFile(t, dir, "u.py", content)

	engine := New(dir)
	out := engine.Apply(context.Background(), types.FailureRecord{
		File: "u.py", Line: 1, Message: "mysterious parse failure", ErrorType: "SyntaxError",
	}, types.BugSyntax)

	if out.Applied() {
		t.Fatal("Expected no fix produced")
	}
	if out.Disposition != DispositionNoCandidate {
		t.Errorf("Expected no_candidate, got %s", out.Disposition)
	}
	if readFile(t, path) != content {
		t.Error("File must be byte-identical before/after a rejected attempt")
	}
}

func TestApplyInvalidCandidateRejected(t *testing.T) {
	dir := t.TempDir()
	// The colon heuristic fires on line 1 ("else" keyword) but the
	// result is still not valid Python, so the write must be refused.
	content := "else\n"
	path := writeFile(t, dir, "bad.py", content)

	engine := New(dir)
	out := engine.Apply(context.Background(), types.FailureRecord{
		File: "bad.py", Line: 1, Message: "invalid syntax", ErrorType: "SyntaxError",
	}, types.BugSyntax)

	if out.Applied() {
		t.Fatal("Structurally invalid candidate must be rejected")
	}
	if out.Disposition != DispositionInvalidSyntax {
		t.Errorf("Expected invalid_syntax, got %s", out.Disposition)
	}
	if readFile(t, path) != content {
		t.Error("Rejected candidate must not reach disk")
	}
}

func TestApplyMissingFileIsIOError(t *testing.T) {
	engine := New(t.TempDir())
	out := engine.Apply(context.Background(), types.FailureRecord{
		File: "ghost.py", Line: 1, Message: "x", ErrorType: "SyntaxError",
	}, types.BugSyntax)

	if out.Disposition != DispositionIOError {
		t.Errorf("Expected io_error, got %s", out.Disposition)
	}
	if out.Err == nil {
		t.Error("io_error outcome should carry the underlying error")
	}
}

type stubGenerator struct {
	content string
	err     error
	calls   int
}

func (s *stubGenerator) GenerateFix(_ context.Context, _ string, _ types.FailureRecord, _ types.BugCategory) (string, error) {
	s.calls++
	return s.content, s.err
}

func TestApplyGeneratorFallback(t *testing.T) {
	dir := t.TempDir()
	content := "def f():\n    return 1\n"
	writeFile(t, dir, "g.py", content)

	gen := &stubGenerator{content: "def f():\n    return 2\n"}
	engine := New(dir).WithGenerator(gen)

	out := engine.Apply(context.Background(), types.FailureRecord{
		File: "g.py", Line: 2, Message: "assert f() == 2", ErrorType: "AssertionError",
	}, types.BugLogic)

	if !out.Applied() {
		t.Fatalf("Expected generator candidate applied, got %s", out.Disposition)
	}
	if gen.calls != 1 {
		t.Errorf("Expected one generator call, got %d", gen.calls)
	}
	if readFile(t, filepath.Join(dir, "g.py")) != gen.content {
		t.Error("Generator candidate should be on disk")
	}
}

func TestApplyGeneratorInvalidCandidateRejected(t *testing.T) {
	dir := t.TempDir()
	content := "def f():\n    return 1\n"
	path := writeFile(t, dir, "g.py", content)

	gen := &stubGenerator{content: "def f(:\n"}
	engine := New(dir).WithGenerator(gen)

	out := engine.Apply(context.Background(), types.FailureRecord{
		File: "g.py", Line: 2, Message: "assert", ErrorType: "AssertionError",
	}, types.BugLogic)

	if out.Applied() {
		t.Fatal("Invalid generator candidate must be rejected")
	}
	if readFile(t, path) != content {
		t.Error("File must be untouched when generator output is invalid")
	}
}

func TestValidPython(t *testing.T) {
	ok, err := ValidPython(context.Background(), []byte("def f():\n    return 1\n"))
	if err != nil || !ok {
		t.Errorf("Expected valid, got ok=%v err=%v", ok, err)
	}
	ok, err = ValidPython(context.Background(), []byte("def f(:\n"))
	if err != nil {
		t.Fatalf("ValidPython() error = %v", err)
	}
	if ok {
		t.Error("Expected invalid python to be rejected")
	}
}
