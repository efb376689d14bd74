package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTaskValidate(t *testing.T) {
	tsk := Task{ID: "t1", Title: "do the thing", Status: TaskStatusPending}
	require.NoError(t, tsk.Validate())

	tsk.Status = "bogus"
	assert.Error(t, tsk.Validate())

	tsk.Status = TaskStatusPending
	tsk.Title = ""
	assert.Error(t, tsk.Validate())
}

func TestTaskIsSelectable(t *testing.T) {
	tsk := Task{ID: "t1", Title: "x", Status: TaskStatusPending, Dependencies: []string{"t0"}}

	assert.False(t, tsk.IsSelectable(map[string]TaskStatus{"t0": TaskStatusPending}))
	assert.True(t, tsk.IsSelectable(map[string]TaskStatus{"t0": TaskStatusCompleted}))
	// A cancelled dependency blocks rather than promotes (Open Question 3).
	assert.False(t, tsk.IsSelectable(map[string]TaskStatus{"t0": TaskStatusCancelled}))

	tsk.Status = TaskStatusInProgress
	assert.False(t, tsk.IsSelectable(map[string]TaskStatus{"t0": TaskStatusCompleted}))
}

func TestSubagentNodeValidate(t *testing.T) {
	n := SubagentNode{ID: "call-1", Tool: "Bash", Status: SubagentRunning}
	require.NoError(t, n.Validate())

	n.Status = "weird"
	assert.Error(t, n.Validate())
}

func TestIterationSeal(t *testing.T) {
	it := &Iteration{Number: 1, Outcome: OutcomeCompleted}
	require.NoError(t, it.Validate())
	assert.False(t, it.Sealed())
	it.Seal()
	assert.True(t, it.Sealed())
}

func TestSessionValidate(t *testing.T) {
	s := Session{ID: "s1", WorkDir: "/tmp/x", AgentPluginID: "claude", TrackerPluginID: "beads"}
	require.NoError(t, s.Validate())

	s.IterationCap = -1
	assert.Error(t, s.Validate())
}
