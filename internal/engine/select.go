package engine

import (
	"context"
	"sort"

	"github.com/ralphctl/ralph/internal/types"
)

// selectTask implements spec.md §4.5's SELECT step: fetch the
// tracker's current task set, filter to ones whose dependencies are
// already completed, and pick the highest-priority one. A cancelled
// dependency blocks a task rather than promoting it (Open Question
// decision, SPEC_FULL.md §13) — IsSelectable already encodes that by
// requiring every dependency to be exactly TaskStatusCompleted.
func (e *Engine) selectTask(ctx context.Context) (*types.Task, error) {
	all, err := e.tracker.GetTasks(ctx, e.cfg.TaskFilter)
	if err != nil {
		return nil, err
	}

	status := make(map[string]types.TaskStatus, len(all))
	for _, t := range all {
		status[t.ID] = t.Status
	}

	var candidates []*types.Task
	for _, t := range all {
		if t.IsSelectable(status) {
			candidates = append(candidates, t)
		}
	}
	if len(candidates) == 0 {
		return nil, nil
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Priority > candidates[j].Priority
	})
	return candidates[0], nil
}
