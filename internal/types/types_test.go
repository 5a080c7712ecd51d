package types

import (
	"testing"
	"time"
)

func TestRunStatusIsValid(t *testing.T) {
	valid := []RunStatus{StatusRunning, StatusPassed, StatusFailed}
	for _, s := range valid {
		if !s.IsValid() {
			t.Errorf("Expected %s to be valid", s)
		}
	}
	if RunStatus("DONE").IsValid() {
		t.Error("Expected DONE to be invalid")
	}
}

func TestRunStatusIsTerminal(t *testing.T) {
	if StatusRunning.IsTerminal() {
		t.Error("RUNNING must not be terminal")
	}
	if !StatusPassed.IsTerminal() || !StatusFailed.IsTerminal() {
		t.Error("PASSED and FAILED must be terminal")
	}
}

func TestBugCategoryIsValid(t *testing.T) {
	for _, c := range AllBugCategories() {
		if !c.IsValid() {
			t.Errorf("Expected %s to be valid", c)
		}
	}
	if BugCategory("RUNTIME").IsValid() {
		t.Error("Expected RUNTIME to be invalid")
	}
}

func TestFailureRecordKey(t *testing.T) {
	a := FailureRecord{File: "test_calc.py", Line: 12, Message: "x", ErrorType: "NameError"}
	b := FailureRecord{File: "test_calc.py", Line: 12, Message: "y", ErrorType: "TypeError"}
	if a.Key() != b.Key() {
		t.Error("Records at the same location must share a key")
	}
	c := FailureRecord{File: "test_calc.py", Line: 13}
	if a.Key() == c.Key() {
		t.Error("Different lines must not share a key")
	}
}

func TestRunStateClone(t *testing.T) {
	now := time.Now()
	state := &RunState{
		RunID:     "r1",
		Status:    StatusRunning,
		StartedAt: now,
		Results: Results{
			Fixes:      []FixRecord{{File: "a.py", Category: BugImport, Line: 1}},
			CITimeline: []CITimelineRecord{{Iteration: 1, Status: StatusFailed}},
		},
	}

	cp := state.Clone()
	cp.Results.Fixes[0].File = "b.py"
	cp.Results.CITimeline[0].Iteration = 9
	cp.Status = StatusPassed

	if state.Results.Fixes[0].File != "a.py" {
		t.Error("Clone must not share the fixes slice")
	}
	if state.Results.CITimeline[0].Iteration != 1 {
		t.Error("Clone must not share the timeline slice")
	}
	if state.Status != StatusRunning {
		t.Error("Clone must not alias the original")
	}
}

func TestRunRequestValidate(t *testing.T) {
	tests := []struct {
		name    string
		req     RunRequest
		wantErr bool
	}{
		{"valid", RunRequest{RepoURL: "https://github.com/acme/repo", TeamName: "Team Rocket", LeaderName: "Ada"}, false},
		{"missing url", RunRequest{TeamName: "T", LeaderName: "L"}, true},
		{"missing team", RunRequest{RepoURL: "u", LeaderName: "L"}, true},
		{"missing leader", RunRequest{RepoURL: "u", TeamName: "T"}, true},
		{"bad team chars", RunRequest{RepoURL: "u", TeamName: "T;rm -rf", LeaderName: "L"}, true},
		{"bad leader chars", RunRequest{RepoURL: "u", TeamName: "T", LeaderName: "L$"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.req.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
