package events

import (
	"time"

	"github.com/google/uuid"
	"github.com/ralphctl/ralph/internal/types"
)

func newEvent(sessionID string, typ EventType) Event {
	return Event{
		ID:        uuid.New().String(),
		Type:      typ,
		Timestamp: time.Now(),
		SessionID: sessionID,
	}
}

// NewStateChanged builds an EventStateChanged event.
func NewStateChanged(sessionID string, from, to types.EngineState) Event {
	e := newEvent(sessionID, EventStateChanged)
	e.StateChanged = &StateChangedPayload{From: from, To: to}
	return e
}

// NewIterationStarted builds an EventIterationStarted event.
func NewIterationStarted(sessionID string, number int, taskID string) Event {
	e := newEvent(sessionID, EventIterationStarted)
	e.IterationStarted = &IterationStartedPayload{Number: number, TaskID: taskID}
	return e
}

// NewOutputAppended builds an EventOutputAppended event.
func NewOutputAppended(sessionID string, iterNumber int, stream string, chunk []byte, truncated bool) Event {
	e := newEvent(sessionID, EventOutputAppended)
	e.OutputAppended = &OutputAppendedPayload{
		IterationNumber: iterNumber,
		Chunk:           chunk,
		Stream:          stream,
		Truncated:       truncated,
	}
	return e
}

// NewSubagentSpawned builds an EventSubagentSpawned event.
func NewSubagentSpawned(sessionID string, iterNumber int, node types.SubagentNode) Event {
	e := newEvent(sessionID, EventSubagentSpawned)
	e.SubagentSpawned = &SubagentPayload{IterationNumber: iterNumber, Node: node}
	return e
}

// NewSubagentUpdated builds an EventSubagentUpdated event.
func NewSubagentUpdated(sessionID string, iterNumber int, node types.SubagentNode) Event {
	e := newEvent(sessionID, EventSubagentUpdated)
	e.SubagentUpdated = &SubagentPayload{IterationNumber: iterNumber, Node: node}
	return e
}

// NewSubagentFinished builds an EventSubagentFinished event.
func NewSubagentFinished(sessionID string, iterNumber int, node types.SubagentNode) Event {
	e := newEvent(sessionID, EventSubagentFinished)
	e.SubagentFinished = &SubagentPayload{IterationNumber: iterNumber, Node: node}
	return e
}

// NewDetectorFired builds an EventDetectorFired event.
func NewDetectorFired(sessionID string, iterNumber int, kind DetectorKind, detail string, retryAfter time.Duration) Event {
	e := newEvent(sessionID, EventDetectorFired)
	e.DetectorFired = &DetectorFiredPayload{
		IterationNumber: iterNumber,
		Detector:        kind,
		Detail:          detail,
		RetryAfter:      retryAfter,
	}
	return e
}

// NewIterationFinished builds an EventIterationFinished event.
func NewIterationFinished(sessionID string, number int, taskID string, outcome types.IterationOutcome) Event {
	e := newEvent(sessionID, EventIterationFinished)
	e.IterationFinished = &IterationFinishedPayload{Number: number, TaskID: taskID, Outcome: outcome}
	return e
}

// NewTaskUpdated builds an EventTaskUpdated event.
func NewTaskUpdated(sessionID, taskID string, status types.TaskStatus) Event {
	e := newEvent(sessionID, EventTaskUpdated)
	e.TaskUpdated = &TaskUpdatedPayload{TaskID: taskID, Status: status}
	return e
}

// NewFatalError builds an EventFatalError event.
func NewFatalError(sessionID string, kind types.ErrorKind, message, hint string) Event {
	e := newEvent(sessionID, EventFatalError)
	e.FatalError = &FatalErrorPayload{Kind: kind, Message: message, Hint: hint}
	return e
}
