// Package events defines the typed event-bus catalogue the Execution
// Engine publishes to its subscribers (spec.md §4.5) and the bounded,
// non-blocking Bus that fans them out.
package events

import (
	"time"

	"github.com/ralphctl/ralph/internal/types"
)

// EventType is the discriminant of an Event.
type EventType string

const (
	// EventStateChanged fires whenever the engine's EngineState kind changes.
	EventStateChanged EventType = "state_changed"
	// EventIterationStarted fires on entering Executing for a new iteration.
	EventIterationStarted EventType = "iteration_started"
	// EventOutputAppended carries one chunk of captured child-process output.
	EventOutputAppended EventType = "output_appended"
	// EventSubagentSpawned fires when a new SubagentNode is created.
	EventSubagentSpawned EventType = "subagent_spawned"
	// EventSubagentUpdated fires on any mutation to an existing running node.
	EventSubagentUpdated EventType = "subagent_updated"
	// EventSubagentFinished fires when a node reaches a terminal status.
	EventSubagentFinished EventType = "subagent_finished"
	// EventDetectorFired fires when a signal detector produces a verdict.
	EventDetectorFired EventType = "detector_fired"
	// EventIterationFinished fires when an iteration is sealed.
	EventIterationFinished EventType = "iteration_finished"
	// EventTaskUpdated fires after a successful tracker mutation.
	EventTaskUpdated EventType = "task_updated"
	// EventFatalError fires exactly once before the engine stops on a fatal error.
	EventFatalError EventType = "fatal_error"
)

// DetectorKind names which of the three signal detectors fired.
type DetectorKind string

const (
	DetectorCompletion DetectorKind = "completion"
	DetectorRateLimit  DetectorKind = "rate_limit"
	DetectorFatal      DetectorKind = "fatal"
)

// Event is the single envelope type published on the Bus. Exactly one
// of the typed payload fields is populated, matching EventType.
type Event struct {
	ID        string    `json:"id"`
	Type      EventType `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	SessionID string    `json:"session_id"`

	StateChanged      *StateChangedPayload      `json:"state_changed,omitempty"`
	IterationStarted  *IterationStartedPayload  `json:"iteration_started,omitempty"`
	OutputAppended    *OutputAppendedPayload    `json:"output_appended,omitempty"`
	SubagentSpawned   *SubagentPayload          `json:"subagent_spawned,omitempty"`
	SubagentUpdated   *SubagentPayload          `json:"subagent_updated,omitempty"`
	SubagentFinished  *SubagentPayload          `json:"subagent_finished,omitempty"`
	DetectorFired     *DetectorFiredPayload     `json:"detector_fired,omitempty"`
	IterationFinished *IterationFinishedPayload `json:"iteration_finished,omitempty"`
	TaskUpdated       *TaskUpdatedPayload       `json:"task_updated,omitempty"`
	FatalError        *FatalErrorPayload        `json:"fatal_error,omitempty"`
}

// StateChangedPayload describes an EngineState transition.
type StateChangedPayload struct {
	From types.EngineState `json:"from"`
	To   types.EngineState `json:"to"`
}

// IterationStartedPayload marks the start of a new iteration.
type IterationStartedPayload struct {
	Number int    `json:"number"`
	TaskID string `json:"task_id,omitempty"`
}

// OutputAppendedPayload carries one bounded chunk of raw child output.
type OutputAppendedPayload struct {
	IterationNumber int    `json:"iteration_number"`
	Chunk           []byte `json:"chunk"`
	Stream          string `json:"stream"` // "stdout" | "stderr"
	Truncated       bool   `json:"truncated"`
}

// SubagentPayload carries a snapshot (copy) of a SubagentNode.
type SubagentPayload struct {
	IterationNumber int                 `json:"iteration_number"`
	Node            types.SubagentNode  `json:"node"`
}

// DetectorFiredPayload reports a detector verdict.
type DetectorFiredPayload struct {
	IterationNumber int          `json:"iteration_number"`
	Detector        DetectorKind `json:"detector"`
	Detail          string       `json:"detail,omitempty"`
	RetryAfter      time.Duration `json:"retry_after,omitempty"`
}

// IterationFinishedPayload reports the sealed outcome of an iteration.
type IterationFinishedPayload struct {
	Number  int                    `json:"number"`
	TaskID  string                 `json:"task_id,omitempty"`
	Outcome types.IterationOutcome `json:"outcome"`
}

// TaskUpdatedPayload reports a tracker mutation the engine performed.
type TaskUpdatedPayload struct {
	TaskID string           `json:"task_id"`
	Status types.TaskStatus `json:"status"`
}

// FatalErrorPayload is the terminal error event (spec.md §7).
type FatalErrorPayload struct {
	Kind    types.ErrorKind `json:"kind"`
	Message string          `json:"message"`
	Hint    string          `json:"hint,omitempty"`
}
