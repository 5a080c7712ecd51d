package fixer

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/mendhq/mend/internal/types"
)

// CommitPrefix is the fixed literal every generated commit message
// starts with. The VCS layer rejects messages without it.
const CommitPrefix = "[AI-AGENT]"

// descriptorRe is the external grammar the grading system validates
// descriptors against. Treat as a hard contract.
var descriptorRe = regexp.MustCompile(`^[A-Z_]+ error in .+ line \d+ → Fix: .+$`)

// fixPhrases is the fixed one-to-one category→phrase mapping. No
// message sniffing, no variation: identical categories always produce
// identical phrases.
var fixPhrases = map[types.BugCategory]string{
	types.BugImport:      "add the missing import statement",
	types.BugSyntax:      "add the missing colon at the correct position",
	types.BugIndentation: "correct the indentation",
	types.BugTypeError:   "correct the type usage",
	types.BugLogic:       "correct the return statement logic",
	types.BugLinting:     "remove the unused import statement",
}

// Proposal is the fix metadata surfaced in the run report. The
// descriptor is generated, never freeform, and has passed the grammar
// check by the time a Proposal exists.
type Proposal struct {
	File          string
	Line          int
	Category      types.BugCategory
	Descriptor    string
	CommitMessage string
}

// Propose builds the descriptor and commit message for a classified
// failure. A category outside the closed enumeration is a programming
// contract violation and aborts the run.
func Propose(file string, line int, category types.BugCategory) (*Proposal, error) {
	phrase, ok := fixPhrases[category]
	if !ok {
		return nil, fmt.Errorf("descriptor contract violation: unknown bug category %q", category)
	}

	descriptor := fmt.Sprintf("%s error in %s line %d → Fix: %s", category, file, line, phrase)
	if !descriptorRe.MatchString(descriptor) {
		return nil, fmt.Errorf("descriptor contract violation: %q does not match grammar", descriptor)
	}

	return &Proposal{
		File:          file,
		Line:          line,
		Category:      category,
		Descriptor:    descriptor,
		CommitMessage: fmt.Sprintf("%s Fix %s issue in %s", CommitPrefix, strings.ToLower(string(category)), file),
	}, nil
}
