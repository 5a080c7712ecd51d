package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/mendhq/mend/internal/types"
)

// WriteReport persists the final report as JSON: one file per run id
// plus results.json holding the latest run. Called exactly once per
// run, at finalization, after status is frozen.
func WriteReport(dir string, state *types.RunState) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating results directory: %w", err)
	}

	payload, err := json.MarshalIndent(state.Results, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling report: %w", err)
	}

	runFile := filepath.Join(dir, state.RunID+".json")
	if err := os.WriteFile(runFile, payload, 0644); err != nil {
		return fmt.Errorf("writing %s: %w", runFile, err)
	}

	latest := filepath.Join(dir, "results.json")
	if err := os.WriteFile(latest, payload, 0644); err != nil {
		return fmt.Errorf("writing %s: %w", latest, err)
	}
	return nil
}
