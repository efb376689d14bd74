// Package tracker defines the pluggable interface the Execution Engine
// uses to select and update tasks, plus the built-in implementations
// (beads, sqlite).
package tracker

import (
	"context"

	"github.com/ralphctl/ralph/internal/types"
)

// Filter narrows a GetTasks query. All fields are optional; a zero
// value imposes no constraint on that dimension.
//
// Grounded on steveyegge-vc/internal/types.WorkFilter and IssueFilter
// (internal/types/types.go), collapsed into one filter shape since
// spec.md §4.4 exposes a single get_tasks(filter) operation rather than
// the teacher's separate "ready work" vs "search" queries.
type Filter struct {
	Status   types.TaskStatus
	Labels   []string
	Assignee string
	ParentID string
	Limit    int
}

// Result reports the outcome of a mutating tracker operation.
type Result struct {
	OK      bool
	Message string
}

// Tracker is the plugin contract every task-tracker backend implements.
// Method names mirror spec.md §4.4's operation names; Go signatures add
// context and error returns per the engine's ambient error-handling
// conventions.
type Tracker interface {
	// ID identifies this tracker plugin for registry lookups and
	// session persistence.
	ID() string

	// GetTasks returns tasks matching filter, in the tracker's natural
	// priority order.
	GetTasks(ctx context.Context, filter Filter) ([]*types.Task, error)

	// CompleteTask marks a task done. Calling it twice on the same id
	// is safe: the second call returns Result{OK: true} with a message
	// noting the task was already complete, never an error (spec.md
	// §8).
	CompleteTask(ctx context.Context, id string, reason string) (Result, error)

	// UpdateTaskStatus transitions a task to status and returns its new
	// state, or nil if the task does not exist.
	UpdateTaskStatus(ctx context.Context, id string, status types.TaskStatus) (*types.Task, error)

	// Sync flushes any buffered state to the backing store. Trackers
	// that write through immediately may implement this as a no-op
	// returning Result{OK: true}.
	Sync(ctx context.Context) (Result, error)

	// Close releases any resources (DB handles, connections) held by
	// the tracker.
	Close() error
}
