package ci

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/mendhq/mend/internal/types"
)

func TestExtractOwnerRepo(t *testing.T) {
	tests := []struct {
		url   string
		owner string
		repo  string
		ok    bool
	}{
		{"https://github.com/acme/widget", "acme", "widget", true},
		{"https://github.com/acme/widget.git", "acme", "widget", true},
		{"https://www.github.com/acme/widget", "acme", "widget", true},
		{"https://gitlab.com/acme/widget", "", "", false},
		{"https://github.com/acme", "", "", false},
		{"file:///tmp/repo", "", "", false},
		{"not a url at all ::", "", "", false},
	}

	for _, tt := range tests {
		owner, repo, ok := extractOwnerRepo(tt.url)
		if ok != tt.ok || owner != tt.owner || repo != tt.repo {
			t.Errorf("extractOwnerRepo(%q) = (%q, %q, %v), want (%q, %q, %v)",
				tt.url, owner, repo, ok, tt.owner, tt.repo, tt.ok)
		}
	}
}

func fakeActionsAPI(t *testing.T, responses []map[string]string) *httptest.Server {
	t.Helper()
	i := 0
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		resp := map[string]any{"workflow_runs": []any{}}
		if i < len(responses) {
			resp["workflow_runs"] = []any{responses[i]}
			i++
		} else if len(responses) > 0 {
			resp["workflow_runs"] = []any{responses[len(responses)-1]}
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
}

func newTestPoller(apiBase string) *GitHubPoller {
	return NewGitHubPoller(Config{
		Token:        "test-token",
		PollInterval: 10 * time.Millisecond,
		PollTimeout:  2 * time.Second,
		APIBase:      apiBase,
	})
}

func TestPollStatusSuccess(t *testing.T) {
	srv := fakeActionsAPI(t, []map[string]string{
		{"status": "in_progress", "conclusion": ""},
		{"status": "completed", "conclusion": "success"},
	})
	defer srv.Close()

	status := newTestPoller(srv.URL).PollStatus(context.Background(), "https://github.com/acme/widget", "ACME_A_AI_Fix")
	if status.Status != types.StatusPassed {
		t.Errorf("Expected PASSED, got %s (%s)", status.Status, status.Details)
	}
	if status.Timestamp == "" {
		t.Error("Timestamp must be set")
	}
}

func TestPollStatusFailure(t *testing.T) {
	srv := fakeActionsAPI(t, []map[string]string{
		{"status": "completed", "conclusion": "failure"},
	})
	defer srv.Close()

	status := newTestPoller(srv.URL).PollStatus(context.Background(), "https://github.com/acme/widget", "B_AI_Fix")
	if status.Status != types.StatusFailed {
		t.Errorf("Expected FAILED, got %s", status.Status)
	}
}

func TestPollStatusTimeout(t *testing.T) {
	// No runs ever appear: the overall timeout converts to a failure.
	srv := fakeActionsAPI(t, nil)
	defer srv.Close()

	p := NewGitHubPoller(Config{
		Token:        "test-token",
		PollInterval: 10 * time.Millisecond,
		PollTimeout:  100 * time.Millisecond,
		APIBase:      srv.URL,
	})

	start := time.Now()
	status := p.PollStatus(context.Background(), "https://github.com/acme/widget", "C_AI_Fix")
	if status.Status != types.StatusFailed {
		t.Errorf("Expected FAILED on timeout, got %s", status.Status)
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("Timeout took too long: %v", elapsed)
	}
}

func TestPollStatusBadURL(t *testing.T) {
	status := newTestPoller("http://unused").PollStatus(context.Background(), "https://example.com/x/y", "D_AI_Fix")
	if status.Status != types.StatusFailed {
		t.Errorf("Expected FAILED for non-GitHub URL, got %s", status.Status)
	}
}

func TestPollStatusMissingToken(t *testing.T) {
	t.Setenv("GITHUB_TOKEN", "")
	p := NewGitHubPoller(Config{PollInterval: 10 * time.Millisecond, PollTimeout: time.Second})
	status := p.PollStatus(context.Background(), "https://github.com/acme/widget", "E_AI_Fix")
	if status.Status != types.StatusFailed {
		t.Errorf("Expected FAILED without token, got %s", status.Status)
	}
}
