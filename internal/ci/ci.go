// Package ci polls remote CI status for a pushed branch. Polling is a
// blocking wait: fixed interval, fixed overall timeout, and a timeout
// is reported as a CI failure rather than an error.
package ci

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/mendhq/mend/internal/types"
)

const (
	DefaultPollInterval = 5 * time.Second
	DefaultPollTimeout  = 180 * time.Second

	githubAPIBase = "https://api.github.com"
)

// Status is the terminal CI outcome observed for one push.
type Status struct {
	Status    types.RunStatus
	Timestamp string
	Details   string
}

// Poller observes remote CI status. Interface for test fakes.
type Poller interface {
	PollStatus(ctx context.Context, repoURL, branch string) Status
}

// Config holds GitHub poller configuration.
type Config struct {
	Token        string
	PollInterval time.Duration
	PollTimeout  time.Duration
	APIBase      string // overridable for tests
}

// GitHubPoller polls the GitHub Actions API for workflow runs.
type GitHubPoller struct {
	token    string
	interval time.Duration
	timeout  time.Duration
	apiBase  string
	client   *http.Client
	limiter  *rate.Limiter
}

// NewGitHubPoller creates a poller; the token falls back to the
// GITHUB_TOKEN environment variable.
func NewGitHubPoller(cfg Config) *GitHubPoller {
	token := cfg.Token
	if token == "" {
		token = os.Getenv("GITHUB_TOKEN")
	}
	interval := cfg.PollInterval
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	timeout := cfg.PollTimeout
	if timeout <= 0 {
		timeout = DefaultPollTimeout
	}
	apiBase := cfg.APIBase
	if apiBase == "" {
		apiBase = githubAPIBase
	}

	return &GitHubPoller{
		token:    token,
		interval: interval,
		timeout:  timeout,
		apiBase:  apiBase,
		client:   &http.Client{Timeout: 20 * time.Second},
		// The limiter paces API calls to exactly the poll interval.
		limiter: rate.NewLimiter(rate.Every(interval), 1),
	}
}

// PollStatus blocks until the latest workflow run for the branch
// reaches a terminal state or the overall timeout elapses. Every
// failure shape, including the timeout, comes back as a FAILED status.
func (p *GitHubPoller) PollStatus(ctx context.Context, repoURL, branch string) Status {
	owner, repo, ok := extractOwnerRepo(repoURL)
	if !ok {
		return p.failed("invalid GitHub repository URL")
	}
	if p.token == "" {
		return p.failed("missing GITHUB_TOKEN")
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	for {
		if err := p.limiter.Wait(ctx); err != nil {
			return p.failed("CI polling timeout")
		}

		status, conclusion, found := p.latestRun(ctx, owner, repo, branch)
		if !found {
			continue
		}

		switch status {
		case "queued", "in_progress", "waiting", "requested", "pending":
			continue
		case "completed":
			if conclusion == "success" {
				return Status{
					Status:    types.StatusPassed,
					Timestamp: utcNow(),
					Details:   "workflow completed successfully",
				}
			}
		}

		if conclusion == "" {
			conclusion = "unknown"
		}
		return p.failed(fmt.Sprintf("workflow completed with conclusion=%s", conclusion))
	}
}

func (p *GitHubPoller) failed(details string) Status {
	slog.Warn("CI poll failed", "details", details)
	return Status{Status: types.StatusFailed, Timestamp: utcNow(), Details: details}
}

type workflowRunsResponse struct {
	WorkflowRuns []struct {
		Status     string `json:"status"`
		Conclusion string `json:"conclusion"`
	} `json:"workflow_runs"`
}

// latestRun fetches the most recent workflow run for the branch.
// Transient API errors show up as not-found so the loop keeps waiting.
func (p *GitHubPoller) latestRun(ctx context.Context, owner, repo, branch string) (status, conclusion string, found bool) {
	u := fmt.Sprintf("%s/repos/%s/%s/actions/runs?branch=%s&per_page=1",
		p.apiBase, owner, repo, url.QueryEscape(branch))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return "", "", false
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("Authorization", "Bearer "+p.token)
	req.Header.Set("X-GitHub-Api-Version", "2022-11-28")

	resp, err := p.client.Do(req)
	if err != nil {
		return "", "", false
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return "", "", false
	}

	var body workflowRunsResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", "", false
	}
	if len(body.WorkflowRuns) == 0 {
		return "", "", false
	}

	run := body.WorkflowRuns[0]
	return run.Status, run.Conclusion, true
}

// extractOwnerRepo pulls owner and repository from a GitHub URL.
func extractOwnerRepo(repoURL string) (string, string, bool) {
	u, err := url.Parse(repoURL)
	if err != nil {
		return "", "", false
	}
	host := strings.ToLower(u.Host)
	if host != "github.com" && host != "www.github.com" {
		return "", "", false
	}

	var segments []string
	for _, s := range strings.Split(u.Path, "/") {
		if s != "" {
			segments = append(segments, s)
		}
	}
	if len(segments) < 2 {
		return "", "", false
	}

	owner := segments[0]
	repo := strings.TrimSuffix(segments[1], ".git")
	if owner == "" || repo == "" {
		return "", "", false
	}
	return owner, repo, true
}

func utcNow() string {
	return time.Now().UTC().Format(time.RFC3339)
}
