package git

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// CommitPrefix is the literal every commit message must start with.
const CommitPrefix = "[AI-AGENT]"

// branchRe is the branch naming grammar. Names are built from
// normalized team/leader names and always end in _AI_Fix.
var branchRe = regexp.MustCompile(`^[A-Z_]+_AI_Fix$`)

var protectedBranches = map[string]bool{
	"main":   true,
	"master": true,
}

var (
	ErrBadBranchName    = errors.New("branch name must match TEAM_NAME_LEADER_NAME_AI_Fix format")
	ErrBadCommitMessage = errors.New("commit message must start with " + CommitPrefix)
	ErrProtectedBranch  = errors.New("push to protected branch is not allowed")
	ErrBranchExists     = errors.New("branch already exists")
)

var nonBranchChars = regexp.MustCompile(`[^A-Z_]`)
var underscoreRuns = regexp.MustCompile(`_+`)

// BuildBranchName derives the fix branch name from team and leader
// names: uppercase, spaces to underscores, everything else stripped.
func BuildBranchName(teamName, leaderName string) string {
	return fmt.Sprintf("%s_%s_AI_Fix", normalize(teamName), normalize(leaderName))
}

func normalize(value string) string {
	upper := strings.ReplaceAll(strings.ToUpper(value), " ", "_")
	cleaned := nonBranchChars.ReplaceAllString(upper, "")
	return strings.Trim(underscoreRuns.ReplaceAllString(cleaned, "_"), "_")
}

// ValidateBranchName checks the branch grammar.
func ValidateBranchName(name string) error {
	if !branchRe.MatchString(name) {
		return fmt.Errorf("%w: %q", ErrBadBranchName, name)
	}
	return nil
}

// ValidateCommitMessage checks the commit prefix contract.
func ValidateCommitMessage(message string) error {
	if !strings.HasPrefix(message, CommitPrefix) {
		return fmt.Errorf("%w: %q", ErrBadCommitMessage, message)
	}
	return nil
}

// EnsureNotProtected refuses operations that target a protected branch.
func EnsureNotProtected(name string) error {
	if protectedBranches[strings.ToLower(name)] {
		return fmt.Errorf("%w: %s", ErrProtectedBranch, name)
	}
	return nil
}
