package types

import (
	"fmt"
	"regexp"
	"time"
)

// RunStatus represents the lifecycle state of a healing run
type RunStatus string

const (
	StatusRunning RunStatus = "RUNNING"
	StatusPassed  RunStatus = "PASSED"
	StatusFailed  RunStatus = "FAILED"
)

// IsValid checks if the status value is valid
func (s RunStatus) IsValid() bool {
	switch s {
	case StatusRunning, StatusPassed, StatusFailed:
		return true
	}
	return false
}

// IsTerminal reports whether the status is a terminal state.
// A run leaves RUNNING exactly once and never returns.
func (s RunStatus) IsTerminal() bool {
	return s == StatusPassed || s == StatusFailed
}

// BugCategory is the closed set of failure classifications.
// The classifier assigns exactly one category per failure; the fix
// engine never infers its own.
type BugCategory string

const (
	BugImport      BugCategory = "IMPORT"
	BugSyntax      BugCategory = "SYNTAX"
	BugIndentation BugCategory = "INDENTATION"
	BugTypeError   BugCategory = "TYPE_ERROR"
	BugLogic       BugCategory = "LOGIC"
	BugLinting     BugCategory = "LINTING"
)

// IsValid checks if the category is a member of the closed enumeration
func (c BugCategory) IsValid() bool {
	switch c {
	case BugImport, BugSyntax, BugIndentation, BugTypeError, BugLogic, BugLinting:
		return true
	}
	return false
}

// AllBugCategories lists every category, in classifier priority order.
func AllBugCategories() []BugCategory {
	return []BugCategory{BugImport, BugSyntax, BugIndentation, BugTypeError, BugLinting, BugLogic}
}

// FixStatus records whether a fix attempt actually mutated the file
type FixStatus string

const (
	FixApplied FixStatus = "FIXED"
	FixFailed  FixStatus = "FAILED"
)

// FailureRecord is one structured test failure extracted from raw
// runner output. Immutable once created; uniqueness key is (File, Line).
type FailureRecord struct {
	File         string `json:"file"`
	Line         int    `json:"line_number"`
	Message      string `json:"message"`
	ErrorType    string `json:"error_type"`
	RawTraceback string `json:"raw_traceback,omitempty"`
}

// Key returns the deduplication key for this record.
func (f *FailureRecord) Key() FailureKey {
	return FailureKey{File: f.File, Line: f.Line}
}

// FailureKey identifies a failure location for deduplication
type FailureKey struct {
	File string
	Line int
}

// FixRecord is one entry in the run report's ordered fix list
type FixRecord struct {
	File          string      `json:"file"`
	Category      BugCategory `json:"bug_type"`
	Line          int         `json:"line_number"`
	CommitMessage string      `json:"commit_message"`
	Status        FixStatus   `json:"status"`
	// Descriptor is the standardized fix description. Its grammar is an
	// external contract consumed by the grading system.
	Descriptor string `json:"strict_output"`
}

// CITimelineRecord is one per-iteration CI outcome
type CITimelineRecord struct {
	Iteration int       `json:"iteration"`
	Status    RunStatus `json:"status"`
	Timestamp string    `json:"timestamp"`
}

// ScoreBreakdown is the scoring engine's output
type ScoreBreakdown struct {
	Base          int `json:"base"`
	TimeBonus     int `json:"time_bonus"`
	CommitPenalty int `json:"commit_penalty"`
	Final         int `json:"final"`
}

// Results is the structured run report surfaced to callers and
// persisted at finalization.
type Results struct {
	Repository     string             `json:"repository"`
	TeamName       string             `json:"team_name"`
	LeaderName     string             `json:"leader_name"`
	BranchName     string             `json:"branch_name"`
	TotalFailures  int                `json:"total_failures"`
	TotalFixes     int                `json:"total_fixes"`
	IterationsUsed int                `json:"iterations_used"`
	RetryLimit     int                `json:"retry_limit"`
	Commits        int                `json:"commits"`
	FinalStatus    RunStatus          `json:"final_status"`
	ElapsedSeconds int                `json:"execution_time_seconds"`
	Score          int                `json:"score"`
	ScoreBase      int                `json:"score_base"`
	TimeBonus      int                `json:"score_time_bonus"`
	CommitPenalty  int                `json:"score_commit_penalty"`
	Fixes          []FixRecord        `json:"fixes"`
	CITimeline     []CITimelineRecord `json:"ci_timeline"`
}

// RunState is the top-level aggregate for one run. The orchestrator is
// the sole writer; readers get defensive copies from the registry.
type RunState struct {
	RunID      string     `json:"run_id"`
	Status     RunStatus  `json:"status"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
	Results    Results    `json:"results"`
}

// Clone returns a deep copy safe to hand to concurrent readers while
// the owning orchestrator keeps mutating the original.
func (r *RunState) Clone() *RunState {
	cp := *r
	if r.FinishedAt != nil {
		t := *r.FinishedAt
		cp.FinishedAt = &t
	}
	cp.Results.Fixes = append([]FixRecord(nil), r.Results.Fixes...)
	cp.Results.CITimeline = append([]CITimelineRecord(nil), r.Results.CITimeline...)
	return &cp
}

var nameRe = regexp.MustCompile(`^[a-zA-Z0-9\s]+$`)

// RunRequest is the caller's request to start a healing run
type RunRequest struct {
	RepoURL    string `json:"repo_url" binding:"required"`
	TeamName   string `json:"team_name" binding:"required"`
	LeaderName string `json:"leader_name" binding:"required"`
}

// Validate checks the request field contracts. Violations reject the
// request synchronously; no run is started.
func (r *RunRequest) Validate() error {
	if r.RepoURL == "" {
		return fmt.Errorf("repo_url is required")
	}
	if r.TeamName == "" {
		return fmt.Errorf("team_name is required")
	}
	if r.LeaderName == "" {
		return fmt.Errorf("leader_name is required")
	}
	if !nameRe.MatchString(r.TeamName) {
		return fmt.Errorf("team_name contains invalid characters")
	}
	if !nameRe.MatchString(r.LeaderName) {
		return fmt.Errorf("leader_name contains invalid characters")
	}
	return nil
}
