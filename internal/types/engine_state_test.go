package types

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestEngineStateTransitions(t *testing.T) {
	assert.True(t, StateReady.CanTransitionTo(StateSelecting))
	assert.False(t, StateReady.CanTransitionTo(StateExecuting))

	assert.True(t, StateSelecting.CanTransitionTo(StateComplete))
	assert.True(t, StateComplete.CanTransitionTo(StateSelecting))
	assert.Empty(t, StateStopped.ValidTransitions())
}

func TestEngineStateConstructors(t *testing.T) {
	now := time.Now()
	exec := Executing(3, 1234, now)
	assert.Equal(t, StateExecuting, exec.Kind)
	assert.Equal(t, 3, exec.IterationNumber)

	paused := Paused(exec)
	assert.Equal(t, StatePaused, paused.Kind)
	assert.Equal(t, StateExecuting, paused.PreviousKind)
	assert.Equal(t, 3, paused.IterationNumber)

	errored := Errored(ErrorAuth, "bad token")
	assert.Equal(t, StateError, errored.Kind)
	assert.Equal(t, ErrorAuth, errored.ErrKind)
}
