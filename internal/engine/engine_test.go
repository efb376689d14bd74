package engine

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ralphctl/ralph/internal/events"
	"github.com/ralphctl/ralph/internal/runner"
	"github.com/ralphctl/ralph/internal/stream"
	"github.com/ralphctl/ralph/internal/tracker"
	"github.com/ralphctl/ralph/internal/types"
)

// fakeHandle is an in-memory runner.Handle double: the test feeds it
// lines to emit on stdout and controls when it "exits".
type fakeHandle struct {
	stdout chan []byte
	stderr chan []byte
	pid    int

	mu          sync.Mutex
	interrupted bool
	killed      bool
	exitCode    int

	waitOnce sync.Once
	waitCh   chan struct{}
}

func newFakeHandle(lines []string, exitCode int) *fakeHandle {
	h := &fakeHandle{
		stdout:   make(chan []byte, len(lines)+1),
		stderr:   make(chan []byte),
		pid:      4242,
		exitCode: exitCode,
		waitCh:   make(chan struct{}),
	}
	for _, l := range lines {
		h.stdout <- []byte(l + "\n")
	}
	close(h.stdout)
	close(h.stderr)
	close(h.waitCh)
	return h
}

func (h *fakeHandle) Stdout() <-chan []byte { return h.stdout }
func (h *fakeHandle) Stderr() <-chan []byte { return h.stderr }
func (h *fakeHandle) PID() int              { return h.pid }

func (h *fakeHandle) Interrupt(ctx context.Context) error {
	h.mu.Lock()
	h.interrupted = true
	h.mu.Unlock()
	return nil
}

func (h *fakeHandle) Kill() error {
	h.mu.Lock()
	h.killed = true
	h.mu.Unlock()
	return nil
}

func (h *fakeHandle) Wait() (int, error) {
	<-h.waitCh
	return h.exitCode, nil
}

// fakeRunner returns a scripted sequence of handles, one per Execute
// call, so a test can simulate a transient failure followed by a
// success without a real vendor CLI.
type fakeRunner struct {
	dialect stream.Dialect
	handles []*fakeHandle
	calls   int
}

func (r *fakeRunner) Meta() runner.Meta { return runner.Meta{ID: "fake", Dialect: r.dialect} }
func (r *fakeRunner) SetupQuestions() []runner.SetupQuestion { return nil }
func (r *fakeRunner) ValidateSetup(map[string]string) error  { return nil }
func (r *fakeRunner) BuildArgs(string, []string, runner.Options) []string { return nil }

func (r *fakeRunner) Execute(ctx context.Context, prompt string, opts runner.Options) (runner.Handle, error) {
	h := r.handles[r.calls]
	r.calls++
	return h, nil
}

// fakeTracker is an in-memory tracker.Tracker double.
type fakeTracker struct {
	mu    sync.Mutex
	tasks map[string]*types.Task
}

func newFakeTracker(tasks ...*types.Task) *fakeTracker {
	m := make(map[string]*types.Task, len(tasks))
	for _, t := range tasks {
		m[t.ID] = t
	}
	return &fakeTracker{tasks: m}
}

func (t *fakeTracker) ID() string { return "fake" }

func (t *fakeTracker) GetTasks(ctx context.Context, filter tracker.Filter) ([]*types.Task, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]*types.Task, 0, len(t.tasks))
	for _, tk := range t.tasks {
		out = append(out, tk)
	}
	return out, nil
}

func (t *fakeTracker) CompleteTask(ctx context.Context, id string, reason string) (tracker.Result, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	tk, ok := t.tasks[id]
	if !ok {
		return tracker.Result{}, assert.AnError
	}
	if tk.Status == types.TaskStatusCompleted {
		return tracker.Result{OK: true, Message: "already complete"}, nil
	}
	tk.Status = types.TaskStatusCompleted
	return tracker.Result{OK: true}, nil
}

func (t *fakeTracker) UpdateTaskStatus(ctx context.Context, id string, status types.TaskStatus) (*types.Task, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	tk, ok := t.tasks[id]
	if !ok {
		return nil, nil
	}
	tk.Status = status
	return tk, nil
}

func (t *fakeTracker) Sync(ctx context.Context) (tracker.Result, error) { return tracker.Result{OK: true}, nil }
func (t *fakeTracker) Close() error                                    { return nil }

func testConfig() Config {
	cfg := NewConfig()
	cfg.Retry.InitialBackoff = time.Millisecond
	cfg.Retry.MaxBackoff = 5 * time.Millisecond
	return cfg
}

func TestEngineCompletesIterationOnSentinel(t *testing.T) {
	task := &types.Task{ID: "t1", Title: "do it", Status: types.TaskStatusPending}
	tr := newFakeTracker(task)
	h := newFakeHandle([]string{"working...", "<promise>COMPLETE</promise>"}, 0)
	rn := &fakeRunner{dialect: stream.DialectA, handles: []*fakeHandle{h}}
	bus := events.NewBus()
	defer bus.Close()

	e := New("sess-1", tr, rn, bus, testConfig())
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	done := make(chan struct{})
	go func() { e.Start(ctx); close(done) }()

	select {
	case <-e.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("engine did not finish in time")
	}

	hist := e.History()
	require.Len(t, hist, 1)
	assert.Equal(t, types.OutcomeCompleted, hist[0].Outcome)
	assert.Equal(t, types.TaskStatusCompleted, tr.tasks["t1"].Status)
}

func TestEngineCompleteStateWhenNoTasks(t *testing.T) {
	tr := newFakeTracker()
	rn := &fakeRunner{dialect: stream.DialectA}
	bus := events.NewBus()
	defer bus.Close()

	e := New("sess-2", tr, rn, bus, testConfig())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go e.Start(ctx)

	require.Eventually(t, func() bool {
		return e.State().Kind == types.StateComplete
	}, time.Second, time.Millisecond)

	e.Stop()
	<-e.Done()
}

func TestEngineRetriesTransientErrorThenSucceeds(t *testing.T) {
	task := &types.Task{ID: "t1", Title: "do it", Status: types.TaskStatusPending}
	tr := newFakeTracker(task)
	fail := newFakeHandle([]string{"boom"}, 1)
	ok := newFakeHandle([]string{"<promise>COMPLETE</promise>"}, 0)
	rn := &fakeRunner{dialect: stream.DialectA, handles: []*fakeHandle{fail, ok}}
	bus := events.NewBus()
	defer bus.Close()

	cfg := testConfig()
	cfg.Retry.MaxRetries = 2
	e := New("sess-3", tr, rn, bus, cfg)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	go e.Start(ctx)

	select {
	case <-e.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("engine did not finish in time")
	}

	hist := e.History()
	require.Len(t, hist, 1)
	assert.Equal(t, types.OutcomeCompleted, hist[0].Outcome)
	assert.Equal(t, 2, rn.calls)
}

func TestEngineStopsOnFatalError(t *testing.T) {
	task := &types.Task{ID: "t1", Title: "do it", Status: types.TaskStatusPending}
	tr := newFakeTracker(task)
	h := newFakeHandle([]string{"Error: unauthorized, invalid api key"}, 1)
	rn := &fakeRunner{dialect: stream.DialectA, handles: []*fakeHandle{h}}
	bus := events.NewBus()
	defer bus.Close()

	e := New("sess-4", tr, rn, bus, testConfig())
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	go e.Start(ctx)

	select {
	case <-e.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("engine did not finish in time")
	}

	assert.Equal(t, types.StateStopped, e.State().Kind)
	assert.Equal(t, 1, rn.calls, "auth failure must not be retried")
}

func TestEnginePauseWaitsForIterationBoundary(t *testing.T) {
	task1 := &types.Task{ID: "t1", Title: "first", Status: types.TaskStatusPending, Priority: 2}
	task2 := &types.Task{ID: "t2", Title: "second", Status: types.TaskStatusPending, Priority: 1}
	tr := newFakeTracker(task1, task2)
	h1 := newFakeHandle([]string{"<promise>COMPLETE</promise>"}, 0)
	h2 := newFakeHandle([]string{"<promise>COMPLETE</promise>"}, 0)
	rn := &fakeRunner{dialect: stream.DialectA, handles: []*fakeHandle{h1, h2}}
	bus := events.NewBus()
	defer bus.Close()

	e := New("sess-5", tr, rn, bus, testConfig())
	e.Pause(false)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go e.Start(ctx)

	require.Eventually(t, func() bool {
		return e.State().Kind == types.StatePaused
	}, time.Second, time.Millisecond)

	assert.Len(t, e.History(), 1, "pause takes effect only after the in-flight iteration seals")

	e.Resume()
	require.Eventually(t, func() bool {
		return len(e.History()) == 2
	}, time.Second, time.Millisecond)

	e.Stop()
	<-e.Done()
}

func TestEngineIterationCapStopsAfterN(t *testing.T) {
	task1 := &types.Task{ID: "t1", Title: "first", Status: types.TaskStatusPending, Priority: 2}
	task2 := &types.Task{ID: "t2", Title: "second", Status: types.TaskStatusPending, Priority: 1}
	tr := newFakeTracker(task1, task2)
	h1 := newFakeHandle([]string{"<promise>COMPLETE</promise>"}, 0)
	h2 := newFakeHandle([]string{"<promise>COMPLETE</promise>"}, 0)
	rn := &fakeRunner{dialect: stream.DialectA, handles: []*fakeHandle{h1, h2}}
	bus := events.NewBus()
	defer bus.Close()

	cfg := testConfig()
	cfg.IterationCap = 1
	e := New("sess-7", tr, rn, bus, cfg)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	go e.Start(ctx)

	require.Eventually(t, func() bool {
		return e.State().Kind == types.StateComplete
	}, time.Second, time.Millisecond)

	assert.Len(t, e.History(), 1, "cap of 1 must run exactly one iteration")
	assert.Equal(t, 1, rn.calls, "second task must not be picked up once the cap is reached")
	assert.Equal(t, types.TaskStatusPending, tr.tasks["t2"].Status)

	e.Stop()
	<-e.Done()
}

func TestEngineContinueExecutionResumesFromComplete(t *testing.T) {
	tr := newFakeTracker()
	rn := &fakeRunner{dialect: stream.DialectA}
	bus := events.NewBus()
	defer bus.Close()

	e := New("sess-6", tr, rn, bus, testConfig())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go e.Start(ctx)

	require.Eventually(t, func() bool {
		return e.State().Kind == types.StateComplete
	}, time.Second, time.Millisecond)

	task := &types.Task{ID: "late", Title: "added later", Status: types.TaskStatusPending}
	tr.mu.Lock()
	tr.tasks[task.ID] = task
	rn.handles = append(rn.handles, newFakeHandle([]string{"<promise>COMPLETE</promise>"}, 0))
	tr.mu.Unlock()

	e.ContinueExecution()

	require.Eventually(t, func() bool {
		return len(e.History()) == 1
	}, time.Second, time.Millisecond)

	e.Stop()
	<-e.Done()
}
