package ai

import (
	"strings"
	"testing"

	"github.com/mendhq/mend/internal/types"
)

func TestNewGeneratorRequiresAPIKey(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "")
	if _, err := NewGenerator(Config{}); err == nil {
		t.Error("Expected error with no API key")
	}
	if _, err := NewGenerator(Config{APIKey: "sk-test"}); err != nil {
		t.Errorf("Explicit key should succeed: %v", err)
	}
}

func TestGetModelEnvOverride(t *testing.T) {
	t.Setenv("MEND_MODEL", "")
	if GetModel() != ModelDefault {
		t.Errorf("Expected default model, got %s", GetModel())
	}
	t.Setenv("MEND_MODEL", "claude-test-model")
	if GetModel() != "claude-test-model" {
		t.Errorf("Expected env override, got %s", GetModel())
	}
}

func TestBuildFixPrompt(t *testing.T) {
	failure := types.FailureRecord{
		File:      "calc.py",
		Line:      3,
		ErrorType: "NameError",
		Message:   "name 'os' is not defined",
	}
	prompt := buildFixPrompt("def f():\n    return os.getcwd()\n", failure, types.BugImport)

	for _, want := range []string{"IMPORT", "NameError", "calc.py, line 3", "return os.getcwd()"} {
		if !strings.Contains(prompt, want) {
			t.Errorf("Prompt missing %q", want)
		}
	}
}

func TestStripCodeFences(t *testing.T) {
	cases := []struct {
		name, in, want string
	}{
		{"no fence", "import os\n", "import os\n"},
		{"plain fence", "```\nimport os\n```", "import os"},
		{"language fence", "```python\nimport os\nprint(1)\n```", "import os\nprint(1)"},
		{"unterminated fence", "```python\nimport os", "import os"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := stripCodeFences(tc.in); got != tc.want {
				t.Errorf("stripCodeFences(%q) = %q, want %q", tc.in, got, tc.want)
			}
		})
	}
}
