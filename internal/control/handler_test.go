package control

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ralphctl/ralph/internal/engine"
	"github.com/ralphctl/ralph/internal/events"
	"github.com/ralphctl/ralph/internal/runner"
	"github.com/ralphctl/ralph/internal/stream"
	"github.com/ralphctl/ralph/internal/tracker"
	"github.com/ralphctl/ralph/internal/types"
)

type stubRunner struct{}

func (stubRunner) Meta() runner.Meta {
	return runner.Meta{ID: "stub", DisplayName: "Stub", Dialect: stream.DialectA}
}
func (stubRunner) SetupQuestions() []runner.SetupQuestion              { return nil }
func (stubRunner) ValidateSetup(map[string]string) error               { return nil }
func (stubRunner) BuildArgs(string, []string, runner.Options) []string { return nil }
func (stubRunner) Execute(context.Context, string, runner.Options) (runner.Handle, error) {
	return nil, errors.New("stubRunner.Execute is never called in this test")
}

// stubTracker satisfies tracker.Tracker with an always-empty task set;
// these handler tests never drive the engine loop far enough to call
// any of its methods, they just exercise EngineHandler's dispatch.
type stubTracker struct{}

func (stubTracker) ID() string { return "stub" }
func (stubTracker) GetTasks(context.Context, tracker.Filter) ([]*types.Task, error) {
	return nil, nil
}
func (stubTracker) CompleteTask(context.Context, string, string) (tracker.Result, error) {
	return tracker.Result{OK: true}, nil
}
func (stubTracker) UpdateTaskStatus(context.Context, string, types.TaskStatus) (*types.Task, error) {
	return nil, nil
}
func (stubTracker) Sync(context.Context) (tracker.Result, error) { return tracker.Result{OK: true}, nil }
func (stubTracker) Close() error                                 { return nil }

func newTestEngine(t *testing.T) *engine.Engine {
	t.Helper()
	bus := events.NewBus()
	t.Cleanup(bus.Close)
	return engine.New("sess-1", stubTracker{}, stubRunner{}, bus, engine.NewConfig())
}

func TestEngineHandlerStatusReflectsInitialState(t *testing.T) {
	eng := newTestEngine(t)
	handler := EngineHandler(eng)

	data, err := handler(Command{Type: "status"})
	require.NoError(t, err)
	assert.Equal(t, string(types.StateReady), data["state"])
	assert.Equal(t, 0, data["iterations_run"])
}

func TestEngineHandlerPauseSetsPauseRequested(t *testing.T) {
	eng := newTestEngine(t)
	handler := EngineHandler(eng)

	_, err := handler(Command{Type: "pause", Force: true})
	require.NoError(t, err)
	// Pause before Start only flips internal flags; state itself is
	// unaffected until the loop checks them, so status still reports
	// Ready here — this exercises dispatch, not the loop's reaction.
	data, err := handler(Command{Type: "status"})
	require.NoError(t, err)
	assert.Equal(t, string(types.StateReady), data["state"])
}

func TestEngineHandlerRejectsUnknownCommand(t *testing.T) {
	eng := newTestEngine(t)
	handler := EngineHandler(eng)

	_, err := handler(Command{Type: "bogus"})
	assert.Error(t, err)
}

func TestEngineHandlerResumeAndContinueDoNotPanicWithoutStart(t *testing.T) {
	eng := newTestEngine(t)
	handler := EngineHandler(eng)

	_, err := handler(Command{Type: "resume"})
	assert.NoError(t, err)
	_, err = handler(Command{Type: "continue"})
	assert.NoError(t, err)
	_, err = handler(Command{Type: "stop"})
	assert.NoError(t, err)
}
