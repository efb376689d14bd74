// Package types holds the core data model shared by every Ralph
// component: tasks as seen through a tracker plugin, sealed iteration
// records, the reconstructed subagent tree, session identity, and the
// engine's own state-machine variant.
package types

import (
	"fmt"
	"time"
)

// TaskStatus is the tracker-owned lifecycle state of a Task.
type TaskStatus string

const (
	TaskStatusPending    TaskStatus = "pending"
	TaskStatusInProgress TaskStatus = "in_progress"
	TaskStatusBlocked    TaskStatus = "blocked"
	TaskStatusCompleted  TaskStatus = "completed"
	TaskStatusCancelled  TaskStatus = "cancelled"
)

// IsValid reports whether s is one of the known task statuses.
func (s TaskStatus) IsValid() bool {
	switch s {
	case TaskStatusPending, TaskStatusInProgress, TaskStatusBlocked, TaskStatusCompleted, TaskStatusCancelled:
		return true
	}
	return false
}

// Task is the engine's read-through view of a tracker-owned work item.
// The tracker is the system of record; the engine never mutates a Task
// directly, only through the Tracker plugin contract.
type Task struct {
	ID           string     `json:"id"`
	Title        string     `json:"title"`
	Description  string     `json:"description,omitempty"`
	Priority     int        `json:"priority,omitempty"`
	Status       TaskStatus `json:"status"`
	Dependencies []string   `json:"dependencies,omitempty"`
	ParentID     string     `json:"parent_id,omitempty"`

	// FetchSeq is the monotonic sequence number of the get_tasks() call
	// that produced this snapshot. The engine never compares Tasks from
	// different FetchSeq values as if they were the same point in time.
	FetchSeq uint64 `json:"fetch_seq"`
}

// Validate checks required fields and enum validity.
func (t *Task) Validate() error {
	if t.ID == "" {
		return fmt.Errorf("task: id is required")
	}
	if t.Title == "" {
		return fmt.Errorf("task %s: title is required", t.ID)
	}
	if !t.Status.IsValid() {
		return fmt.Errorf("task %s: invalid status %q", t.ID, t.Status)
	}
	for _, dep := range t.Dependencies {
		if dep == "" {
			return fmt.Errorf("task %s: empty dependency id", t.ID)
		}
	}
	return nil
}

// IsSelectable reports whether t can be chosen by SELECT: it must be
// pending and every dependency must already be completed. A cancelled
// dependency blocks the task rather than promoting it (see DESIGN.md
// Open Question 3) — the caller is expected to look up dependency
// statuses and pass them in, since Task itself only carries ids.
func (t *Task) IsSelectable(depStatus map[string]TaskStatus) bool {
	if t.Status != TaskStatusPending {
		return false
	}
	for _, dep := range t.Dependencies {
		if depStatus[dep] != TaskStatusCompleted {
			return false
		}
	}
	return true
}

// IterationOutcome classifies how an iteration ended.
type IterationOutcome string

const (
	OutcomeCompleted   IterationOutcome = "completed"
	OutcomeInterrupted IterationOutcome = "interrupted"
	OutcomeError       IterationOutcome = "error"
	OutcomeRateLimited IterationOutcome = "rate_limited"
	OutcomeNoTask      IterationOutcome = "no_task"
)

// IsValid reports whether o is a known outcome.
func (o IterationOutcome) IsValid() bool {
	switch o {
	case OutcomeCompleted, OutcomeInterrupted, OutcomeError, OutcomeRateLimited, OutcomeNoTask:
		return true
	}
	return false
}

// Iteration is one sealed SELECT→BUILD→EXECUTE→DETECT→UPDATE pass.
// It is mutable only while the engine holds it open (between
// IterationStarted and IterationFinished); once sealed it must never
// be mutated again — subscribers receive copies.
type Iteration struct {
	Number    int              `json:"number"` // 1-based, monotonic within a session
	TaskID    string           `json:"task_id,omitempty"`
	StartedAt time.Time        `json:"started_at"`
	EndedAt   time.Time        `json:"ended_at,omitempty"`
	Outcome   IterationOutcome `json:"outcome"`
	Output    []byte           `json:"-"` // bounded capture, never serialized into the snapshot
	Tree      []*SubagentNode  `json:"tree,omitempty"`

	sealed bool
}

// Validate checks required fields and enum validity.
func (it *Iteration) Validate() error {
	if it.Number < 1 {
		return fmt.Errorf("iteration: number must be >= 1, got %d", it.Number)
	}
	if it.Outcome != "" && !it.Outcome.IsValid() {
		return fmt.Errorf("iteration %d: invalid outcome %q", it.Number, it.Outcome)
	}
	return nil
}

// Seal freezes the iteration. Further calls are no-ops.
func (it *Iteration) Seal() {
	it.sealed = true
}

// Sealed reports whether the iteration has been frozen.
func (it *Iteration) Sealed() bool {
	return it.sealed
}

// SubagentStatus is the lifecycle state of a reconstructed tool
// invocation node.
type SubagentStatus string

const (
	SubagentRunning   SubagentStatus = "running"
	SubagentCompleted SubagentStatus = "completed"
	SubagentError     SubagentStatus = "error"
)

// IsValid reports whether s is a known subagent status.
func (s SubagentStatus) IsValid() bool {
	switch s {
	case SubagentRunning, SubagentCompleted, SubagentError:
		return true
	}
	return false
}

// SubagentNode is one node in the reconstructed subagent call tree for
// a single iteration. Parent/child links are ids, never pointers (see
// SPEC_FULL.md design note on arena-with-stable-ids), so the tree can
// be copied cheaply for subscribers.
type SubagentNode struct {
	ID          string         `json:"id"` // the vendor call_id
	Tool        string         `json:"tool"`
	Description string         `json:"description,omitempty"`
	Status      SubagentStatus `json:"status"`
	SpawnedAt   time.Time      `json:"spawned_at"`
	EndedAt     *time.Time     `json:"ended_at,omitempty"`
	DurationMS  int64          `json:"duration_ms,omitempty"`
	ParentID    string         `json:"parent_id,omitempty"`
	Children    []string       `json:"children,omitempty"`
	Depth       int            `json:"depth"`
	Output      string         `json:"output,omitempty"`
	ErrorReason string         `json:"error_reason,omitempty"`
}

// Validate checks the node's own fields. Tree-wide invariants (parent
// exists, no cycles, depth consistency) are checked by the stream
// package that owns tree construction, not here.
func (n *SubagentNode) Validate() error {
	if n.ID == "" {
		return fmt.Errorf("subagent node: id is required")
	}
	if n.Tool == "" {
		return fmt.Errorf("subagent node %s: tool is required", n.ID)
	}
	if !n.Status.IsValid() {
		return fmt.Errorf("subagent node %s: invalid status %q", n.ID, n.Status)
	}
	if n.Depth < 0 {
		return fmt.Errorf("subagent node %s: negative depth", n.ID)
	}
	return nil
}

// ResumePolicy controls how `resume` re-enters a persisted session.
type ResumePolicy string

const (
	// ResumePaused re-enters as Paused; the operator must `continue`.
	ResumePaused ResumePolicy = "paused"
	// ResumeImmediate re-enters the loop without waiting for an
	// operator continue.
	ResumeImmediate ResumePolicy = "immediate"
)

// Session binds a working directory to an agent plugin, a tracker
// plugin, and an iteration cap, plus the lock file guarding exclusive
// ownership of that working directory.
type Session struct {
	ID            string       `json:"id"`
	WorkDir       string       `json:"work_dir"`
	AgentPluginID string       `json:"agent_plugin_id"`
	AgentConfig   map[string]any `json:"agent_config,omitempty"`
	TrackerPluginID string     `json:"tracker_plugin_id"`
	TrackerConfig map[string]any `json:"tracker_config,omitempty"`
	IterationCap  int          `json:"iteration_cap"` // 0 = unlimited
	ResumePolicy  ResumePolicy `json:"resume_policy"`
	LockFilePath  string       `json:"lock_file_path"`
}

// Validate checks required fields.
func (s *Session) Validate() error {
	if s.ID == "" {
		return fmt.Errorf("session: id is required")
	}
	if s.WorkDir == "" {
		return fmt.Errorf("session %s: work_dir is required", s.ID)
	}
	if s.AgentPluginID == "" {
		return fmt.Errorf("session %s: agent_plugin_id is required", s.ID)
	}
	if s.TrackerPluginID == "" {
		return fmt.Errorf("session %s: tracker_plugin_id is required", s.ID)
	}
	if s.IterationCap < 0 {
		return fmt.Errorf("session %s: iteration_cap must be >= 0", s.ID)
	}
	if s.ResumePolicy != "" && s.ResumePolicy != ResumePaused && s.ResumePolicy != ResumeImmediate {
		return fmt.Errorf("session %s: invalid resume_policy %q", s.ID, s.ResumePolicy)
	}
	return nil
}
