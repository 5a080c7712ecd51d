// Package store holds run state: an in-memory registry for live status
// polling, a SQLite history of finished runs, and final report files.
package store

import (
	"sync"

	"github.com/mendhq/mend/internal/types"
)

// Registry is the process-scoped run store. One orchestrator goroutine
// writes its own run's entry while any number of status readers poll;
// a single lock around short critical sections is plenty at this
// contention level.
type Registry struct {
	mu   sync.Mutex
	runs map[string]*types.RunState
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{runs: make(map[string]*types.RunState)}
}

// Put stores a snapshot of the run state. The registry clones on the
// way in so the writer can keep mutating its working copy.
func (r *Registry) Put(state *types.RunState) {
	cp := state.Clone()
	r.mu.Lock()
	r.runs[cp.RunID] = cp
	r.mu.Unlock()
}

// Get returns a snapshot of the run state, or false if the run id is
// unknown. Readers get their own clone and can never observe a
// mid-iteration mutation.
func (r *Registry) Get(runID string) (*types.RunState, bool) {
	r.mu.Lock()
	state, ok := r.runs[runID]
	r.mu.Unlock()
	if !ok {
		return nil, false
	}
	return state.Clone(), true
}

// Len returns the number of registered runs.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.runs)
}
