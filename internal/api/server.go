// Package api exposes the HTTP front door: start a healing run, poll
// its status, and report service health.
package api

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"github.com/mendhq/mend/internal/config"
	"github.com/mendhq/mend/internal/healer"
	"github.com/mendhq/mend/internal/store"
	"github.com/mendhq/mend/internal/types"
)

// HealFunc executes one healing run to completion. Injected so the
// HTTP layer can be tested without real collaborators.
type HealFunc func(ctx context.Context, cfg healer.Config)

// Server is the HTTP API over the run registry.
type Server struct {
	cfg      *config.Config
	registry *store.Registry
	sem      *semaphore.Weighted
	heal     HealFunc
}

// NewServer wires the API. The semaphore bounds concurrently executing
// runs; requests beyond the bound are rejected, not queued.
func NewServer(cfg *config.Config, registry *store.Registry, heal HealFunc) *Server {
	return &Server{
		cfg:      cfg,
		registry: registry,
		sem:      semaphore.NewWeighted(int64(cfg.MaxConcurrentRuns)),
		heal:     heal,
	}
}

// Router builds the gin handler.
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	r.POST("/run-agent", s.handleRunAgent)
	r.GET("/run-status/:id", s.handleRunStatus)
	r.GET("/health", s.handleHealth)
	return r
}

// Run serves the API until the listener fails.
func (s *Server) Run() error {
	slog.Info("api listening", "addr", s.cfg.ListenAddr)
	return s.Router().Run(s.cfg.ListenAddr)
}

func (s *Server) handleRunAgent(c *gin.Context) {
	var req types.RunRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := req.Validate(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if !s.sem.TryAcquire(1) {
		c.JSON(http.StatusTooManyRequests, gin.H{"error": "maximum concurrent runs reached"})
		return
	}

	runID := uuid.New().String()
	runCfg := healer.Config{
		RunID:       runID,
		RepoURL:     req.RepoURL,
		TeamName:    req.TeamName,
		LeaderName:  req.LeaderName,
		SandboxRoot: s.cfg.SandboxRoot,
		ResultsDir:  s.cfg.ResultsDir,
		RetryLimit:  s.cfg.RetryLimit,
	}

	// Seed the registry before returning so a status poll racing the
	// run goroutine sees RUNNING instead of a 404.
	s.registry.Put(&types.RunState{
		RunID:  runID,
		Status: types.StatusRunning,
		Results: types.Results{
			Repository:  req.RepoURL,
			TeamName:    req.TeamName,
			LeaderName:  req.LeaderName,
			RetryLimit:  s.cfg.RetryLimit,
			FinalStatus: types.StatusRunning,
		},
	})

	// The HTTP request returns immediately; the run proceeds to a
	// terminal state on its own and is observable via /run-status.
	go func() {
		defer s.sem.Release(1)
		s.heal(context.Background(), runCfg)
	}()

	slog.Info("run accepted", "run_id", runID, "repo", req.RepoURL, "team", req.TeamName)
	c.JSON(http.StatusAccepted, gin.H{
		"run_id": runID,
		"status": types.StatusRunning,
	})
}

func (s *Server) handleRunStatus(c *gin.Context) {
	state, ok := s.registry.Get(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown run id"})
		return
	}
	c.JSON(http.StatusOK, state)
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":       "ok",
		"runs_tracked": s.registry.Len(),
	})
}
