package session

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ralphctl/ralph/internal/types"
)

// Snapshot is the compact, atomically-persisted status the engine
// writes after every IterationFinished, read back by `ralph resume`
// (spec.md §9).
type Snapshot struct {
	SessionID       string                  `json:"session_id"`
	WorkDir         string                  `json:"work_dir"`
	IterationCount  int                     `json:"iteration_count"`
	LastOutcome     types.IterationOutcome  `json:"last_outcome,omitempty"`
	LastTaskID      string                  `json:"last_task_id,omitempty"`
	EngineStateKind types.StateKind         `json:"engine_state_kind"`
}

// WriteSnapshot persists snap atomically: marshal to a temp file in
// the same directory as path, then rename over path. A reader never
// observes a partially-written snapshot (spec.md invariant: "writing a
// session snapshot then reading it yields byte-identical state").
func WriteSnapshot(path string, snap Snapshot) error {
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("session: marshal snapshot: %w", err)
	}

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".snapshot-*.tmp")
	if err != nil {
		return fmt.Errorf("session: create temp snapshot: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath) // no-op once the rename below succeeds

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("session: write temp snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("session: close temp snapshot: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("session: rename snapshot into place: %w", err)
	}
	return nil
}

// ReadSnapshot reads the snapshot written by the most recent
// WriteSnapshot call.
func ReadSnapshot(path string) (Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Snapshot{}, err
	}
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return Snapshot{}, fmt.Errorf("session: parse snapshot %s: %w", path, err)
	}
	return snap, nil
}

// ResumeState is the engine state `ralph resume` re-enters at: Ready
// first (spec.md's Session lifecycle note), then immediately Paused so
// the operator must explicitly `continue` rather than silently
// re-launching a child process (spec.md §9: "restores the state as
// Paused by default").
func ResumeState() types.EngineState {
	return types.EngineState{Kind: types.StatePaused, PreviousKind: types.StateSelecting}
}
