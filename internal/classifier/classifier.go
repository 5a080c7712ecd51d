// Package classifier maps raw error signatures to bug categories.
//
// Classification is a pure function of (error type, message): identical
// inputs always produce the same category, which downstream scoring
// depends on. Rules are evaluated in priority order, first match wins,
// and LOGIC is the explicit catch-all.
package classifier

import (
	"strings"

	"github.com/mendhq/mend/internal/types"
)

// rule pairs a predicate with the category it assigns. Keeping the
// rules in an ordered slice makes precedence a testable artifact.
type rule struct {
	match    func(errType, msg string) bool
	category types.BugCategory
}

var rules = []rule{
	{isImport, types.BugImport},
	{isSyntax, types.BugSyntax},
	{isIndentation, types.BugIndentation},
	{isTypeError, types.BugTypeError},
	{isLinting, types.BugLinting},
}

// Classify assigns a bug category to an error signature. Inputs are
// matched case-insensitively; no category is ever left unassigned.
func Classify(errorType, message string) types.BugCategory {
	errType := strings.ToLower(errorType)
	msg := strings.ToLower(message)

	for _, r := range rules {
		if r.match(errType, msg) {
			return r.category
		}
	}
	return types.BugLogic
}

func isImport(errType, msg string) bool {
	if strings.Contains(errType, "importerror") || strings.Contains(errType, "modulenotfounderror") {
		return true
	}
	if strings.Contains(msg, "import") && (strings.Contains(msg, "cannot") || strings.Contains(msg, "no module")) {
		return true
	}
	// Undefined names are most often missing imports.
	return strings.Contains(errType, "nameerror") && strings.Contains(msg, "is not defined")
}

func isSyntax(errType, msg string) bool {
	return strings.Contains(errType, "syntaxerror") ||
		strings.Contains(errType, "invalidsyntax") ||
		strings.Contains(msg, "syntax")
}

func isIndentation(errType, msg string) bool {
	return strings.Contains(errType, "indentationerror") ||
		strings.Contains(errType, "taberror") ||
		strings.Contains(msg, "indent")
}

func isTypeError(errType, msg string) bool {
	if strings.Contains(errType, "typeerror") || strings.Contains(errType, "attributeerror") {
		return true
	}
	return strings.Contains(msg, "type") && (strings.Contains(msg, "expected") || strings.Contains(msg, "got"))
}

func isLinting(_, msg string) bool {
	return strings.Contains(msg, "lint") ||
		strings.Contains(msg, "flake8") ||
		strings.Contains(msg, "pylint")
}
