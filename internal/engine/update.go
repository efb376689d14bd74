package engine

import (
	"context"
	"fmt"
	"os"

	"github.com/ralphctl/ralph/internal/events"
	"github.com/ralphctl/ralph/internal/types"
)

// updateTracker implements spec.md §4.5's UPDATE step: on a completed
// iteration the task is marked done; on every other outcome the
// tracker is left untouched so the task remains selectable (or, for a
// fatal error, so the operator can inspect it before the engine stops).
func (e *Engine) updateTracker(ctx context.Context, task *types.Task, outcome types.IterationOutcome) {
	if outcome != types.OutcomeCompleted {
		return
	}
	res, err := e.tracker.CompleteTask(ctx, task.ID, "completion signal detected")
	if err != nil {
		fmt.Fprintf(os.Stderr, "engine: complete_task(%s) failed: %v\n", task.ID, err)
		return
	}
	if !res.OK {
		fmt.Fprintf(os.Stderr, "engine: complete_task(%s) reported failure: %s\n", task.ID, res.Message)
		return
	}
	e.publish(events.NewTaskUpdated(e.sessionID, task.ID, types.TaskStatusCompleted))
}
