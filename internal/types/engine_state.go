package types

import "time"

// StateKind is the discriminant of EngineState. Only StateExecuting and
// StatePaused carry meaningful nested data; the others are pure markers.
type StateKind string

const (
	StateReady     StateKind = "ready"
	StateSelecting StateKind = "selecting"
	StateBuilding  StateKind = "building"
	StateExecuting StateKind = "executing"
	StatePaused    StateKind = "paused"
	StateStopping  StateKind = "stopping"
	StateStopped   StateKind = "stopped"
	StateComplete  StateKind = "complete"
	StateError     StateKind = "error"
)

// IsValid reports whether k is a known state kind.
func (k StateKind) IsValid() bool {
	switch k {
	case StateReady, StateSelecting, StateBuilding, StateExecuting, StatePaused,
		StateStopping, StateStopped, StateComplete, StateError:
		return true
	}
	return false
}

// ValidTransitions returns the set of states reachable directly from k,
// mirroring spec.md §4.5's state transition table.
func (k StateKind) ValidTransitions() []StateKind {
	switch k {
	case StateReady:
		return []StateKind{StateSelecting, StateStopping}
	case StateSelecting:
		return []StateKind{StateBuilding, StateComplete, StateStopping}
	case StateBuilding:
		return []StateKind{StateExecuting, StateStopping}
	case StateExecuting:
		// Executing -> Executing covers an in-place retry of the same
		// iteration (a fresh child process, same logical EXECUTE step)
		// without leaving the Executing macro-state.
		return []StateKind{StateExecuting, StatePaused, StateSelecting, StateError, StateStopping}
	case StatePaused:
		// Paused -> Selecting resumes a state restored by `ralph resume`
		// (PreviousKind Selecting) or a Paused state with no PreviousKind.
		return []StateKind{StateExecuting, StateSelecting, StateStopping}
	case StateStopping:
		return []StateKind{StateStopped}
	case StateStopped:
		return []StateKind{} // terminal
	case StateComplete:
		return []StateKind{StateSelecting, StateStopping} // continue_execution() or stop()
	case StateError:
		return []StateKind{StateStopping, StateSelecting} // retry exhausted vs. recovered
	default:
		return []StateKind{}
	}
}

// CanTransitionTo reports whether k may transition directly to target.
func (k StateKind) CanTransitionTo(target StateKind) bool {
	for _, v := range k.ValidTransitions() {
		if v == target {
			return true
		}
	}
	return false
}

// ErrorKind classifies a terminal Error state, matching spec.md §7's
// taxonomy entries that are fatal rather than retryable.
type ErrorKind string

const (
	ErrorAuth           ErrorKind = "auth"
	ErrorMissingBinary  ErrorKind = "missing_binary"
	ErrorInvalidPrompt  ErrorKind = "invalid_prompt"
	ErrorInvalidConfig  ErrorKind = "invalid_config"
	ErrorPluginCrash    ErrorKind = "plugin_crash"
	ErrorRetryExhausted ErrorKind = "retry_exhausted"
	// ErrorRuntime is a generic non-immediately-fatal failure (e.g. a
	// tool_result reporting is_error=true): the iteration still ends
	// with outcome=error, but the retry policy treats it as
	// transient/retryable rather than an immediate stop, unlike
	// ErrorAuth/ErrorMissingBinary/ErrorInvalidPrompt.
	ErrorRuntime ErrorKind = "runtime"
)

// ImmediatelyFatal reports whether k must stop the engine rather than
// be retried, per spec.md §4.5's retry policy.
func (k ErrorKind) ImmediatelyFatal() bool {
	switch k {
	case ErrorAuth, ErrorMissingBinary, ErrorInvalidPrompt, ErrorInvalidConfig:
		return true
	default:
		return false
	}
}

// EngineState is the discriminated variant described in spec.md §3. The
// zero value has an empty Kind, not StateReady; build states with an
// explicit Kind.
type EngineState struct {
	Kind StateKind `json:"kind"`

	// Populated only when Kind == StateExecuting.
	IterationNumber int       `json:"iteration_number,omitempty"`
	ChildPID        int       `json:"child_pid,omitempty"`
	StartedAt       time.Time `json:"started_at,omitempty"`

	// Populated only when Kind == StatePaused.
	PreviousKind StateKind `json:"previous_kind,omitempty"`

	// Populated only when Kind == StateError.
	ErrKind ErrorKind `json:"error_kind,omitempty"`
	ErrMsg  string    `json:"error_message,omitempty"`
}

// Executing constructs an Executing state.
func Executing(iter int, pid int, start time.Time) EngineState {
	return EngineState{Kind: StateExecuting, IterationNumber: iter, ChildPID: pid, StartedAt: start}
}

// Paused constructs a Paused state wrapping the state it interrupted.
func Paused(prev EngineState) EngineState {
	return EngineState{Kind: StatePaused, PreviousKind: prev.Kind,
		IterationNumber: prev.IterationNumber, ChildPID: prev.ChildPID, StartedAt: prev.StartedAt}
}

// Errored constructs an Error state.
func Errored(kind ErrorKind, msg string) EngineState {
	return EngineState{Kind: StateError, ErrKind: kind, ErrMsg: msg}
}

// CanTransitionTo reports whether the engine may move from s to a state
// of kind target.
func (s EngineState) CanTransitionTo(target StateKind) bool {
	return s.Kind.CanTransitionTo(target)
}
