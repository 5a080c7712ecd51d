package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mendhq/mend/internal/config"
	"github.com/mendhq/mend/internal/healer"
	"github.com/mendhq/mend/internal/store"
	"github.com/mendhq/mend/internal/types"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newTestServer(heal HealFunc) (*Server, *store.Registry) {
	cfg := config.Default()
	cfg.MaxConcurrentRuns = 2
	registry := store.NewRegistry()
	if heal == nil {
		heal = func(context.Context, healer.Config) {}
	}
	return NewServer(cfg, registry, heal), registry
}

func postRun(t *testing.T, router *gin.Engine, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/run-agent", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestRunAgentAcceptsValidRequest(t *testing.T) {
	var mu sync.Mutex
	var launched []healer.Config
	srv, registry := newTestServer(func(_ context.Context, cfg healer.Config) {
		mu.Lock()
		launched = append(launched, cfg)
		mu.Unlock()
	})
	router := srv.Router()

	w := postRun(t, router, `{"repo_url":"https://github.com/acme/widget","team_name":"Acme","leader_name":"Ada"}`)
	if w.Code != http.StatusAccepted {
		t.Fatalf("Expected 202, got %d: %s", w.Code, w.Body.String())
	}

	var resp struct {
		RunID  string          `json:"run_id"`
		Status types.RunStatus `json:"status"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Invalid response JSON: %v", err)
	}
	if resp.RunID == "" || resp.Status != types.StatusRunning {
		t.Errorf("Unexpected response: %+v", resp)
	}

	// The registry is seeded synchronously.
	state, ok := registry.Get(resp.RunID)
	if !ok || state.Status != types.StatusRunning {
		t.Errorf("Expected seeded RUNNING state, got %+v", state)
	}

	// The heal func receives the run configuration.
	deadline := time.After(2 * time.Second)
	for {
		mu.Lock()
		n := len(launched)
		mu.Unlock()
		if n == 1 {
			break
		}
		select {
		case <-deadline:
			t.Fatal("Heal func never invoked")
		case <-time.After(10 * time.Millisecond):
		}
	}
	mu.Lock()
	defer mu.Unlock()
	if launched[0].RepoURL != "https://github.com/acme/widget" || launched[0].RunID != resp.RunID {
		t.Errorf("Unexpected launch config: %+v", launched[0])
	}
}

func TestRunAgentRejectsBadRequests(t *testing.T) {
	srv, _ := newTestServer(nil)
	router := srv.Router()

	cases := []struct {
		name string
		body string
	}{
		{"empty body", `{}`},
		{"missing repo", `{"team_name":"Acme","leader_name":"Ada"}`},
		{"bad team charset", `{"repo_url":"https://github.com/a/b","team_name":"Acme!","leader_name":"Ada"}`},
		{"not json", `repo_url=x`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if w := postRun(t, router, tc.body); w.Code != http.StatusBadRequest {
				t.Errorf("Expected 400, got %d", w.Code)
			}
		})
	}
}

func TestRunAgentBoundsConcurrency(t *testing.T) {
	release := make(chan struct{})
	srv, _ := newTestServer(func(context.Context, healer.Config) {
		<-release
	})
	defer close(release)
	router := srv.Router()

	body := `{"repo_url":"https://github.com/acme/widget","team_name":"Acme","leader_name":"Ada"}`
	for i := 0; i < 2; i++ {
		if w := postRun(t, router, body); w.Code != http.StatusAccepted {
			t.Fatalf("Run %d: expected 202, got %d", i, w.Code)
		}
	}
	if w := postRun(t, router, body); w.Code != http.StatusTooManyRequests {
		t.Errorf("Expected 429 past the bound, got %d", w.Code)
	}
}

func TestRunStatus(t *testing.T) {
	srv, registry := newTestServer(nil)
	router := srv.Router()

	req := httptest.NewRequest(http.MethodGet, "/run-status/nope", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusNotFound {
		t.Errorf("Expected 404 for unknown run, got %d", w.Code)
	}

	registry.Put(&types.RunState{
		RunID:  "r1",
		Status: types.StatusPassed,
		Results: types.Results{
			FinalStatus: types.StatusPassed,
			Score:       110,
		},
	})
	req = httptest.NewRequest(http.MethodGet, "/run-status/r1", nil)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}
	var state types.RunState
	if err := json.Unmarshal(w.Body.Bytes(), &state); err != nil {
		t.Fatalf("Invalid status JSON: %v", err)
	}
	if state.Status != types.StatusPassed || state.Results.Score != 110 {
		t.Errorf("Unexpected state: %+v", state)
	}
}

func TestHealth(t *testing.T) {
	srv, _ := newTestServer(nil)
	router := srv.Router()

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("Expected 200, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"status":"ok"`) {
		t.Errorf("Unexpected health body: %s", w.Body.String())
	}
}
