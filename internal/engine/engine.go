// Package engine implements the Execution Engine (spec.md §4.5): the
// state machine driving the SELECT→BUILD→EXECUTE→DETECT→UPDATE loop,
// its iteration history, and the event bus every other component
// (audit log, control socket, CLI) subscribes to.
//
// Grounded on steveyegge-vc/internal/executor's Executor shape
// (mutex-protected state, stopCh/doneCh control channels, a
// ticker-driven event loop logging via fmt.Printf/Fprintf and a typed
// event emitter) generalized from "supervise missions and quality
// gates" to the narrower select/build/execute/detect/update cycle this
// spec names.
package engine

import (
	"context"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ralphctl/ralph/internal/events"
	"github.com/ralphctl/ralph/internal/runner"
	"github.com/ralphctl/ralph/internal/tracker"
	"github.com/ralphctl/ralph/internal/types"
)

// Engine drives one session's work loop. Exactly one Engine exists per
// live session (types.Session's lock file enforces this across
// processes).
type Engine struct {
	sessionID string
	tracker   tracker.Tracker
	runner    runner.Runner
	bus       *events.Bus
	cfg       Config

	mu      sync.RWMutex
	state   types.EngineState
	history []*types.Iteration

	rateGate *rateLimitGate
	metrics  metrics

	activeHandle   runner.Handle // set only while Executing; guarded by mu
	stopRequested  atomic.Bool   // set by Stop; read by executeOnce to classify the outcome as interrupted
	pauseRequested atomic.Bool   // set by Pause; consumed at the next iteration boundary
	pauseForce     atomic.Bool   // set by Pause(true); consumed mid-iteration by executeOnce

	stopCh     chan struct{}
	doneCh     chan struct{}
	resumeCh   chan struct{}
	continueCh chan struct{}
}

// New constructs an Engine bound to one tracker, one runner, and the
// event bus its subscribers listen on. The engine starts in Ready.
func New(sessionID string, t tracker.Tracker, r runner.Runner, bus *events.Bus, cfg Config) *Engine {
	return &Engine{
		sessionID:  sessionID,
		tracker:    t,
		runner:     r,
		bus:        bus,
		cfg:        cfg,
		state:      types.EngineState{Kind: types.StateReady},
		rateGate:   newRateLimitGate(),
		metrics:    newMetrics(),
		stopCh:     make(chan struct{}, 1),
		doneCh:     make(chan struct{}),
		resumeCh:   make(chan struct{}, 1),
		continueCh: make(chan struct{}, 1),
	}
}

// State returns a snapshot of the current engine state.
func (e *Engine) State() types.EngineState {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.state
}

// History returns every sealed iteration so far, oldest first. The
// returned slice is a fresh copy; callers may not mutate iterations in
// place.
func (e *Engine) History() []*types.Iteration {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]*types.Iteration, len(e.history))
	copy(out, e.history)
	return out
}

// RestoreState overrides the engine's starting state ahead of Start,
// bypassing the normal transition validation (internal/session's
// ResumeState re-enters directly at Paused rather than the default
// Ready, per spec.md §9: "resume ... restores the state as Paused by
// default"). It overwrites the state unconditionally, so it belongs
// before Start; Start only leaves a restored non-Ready state in place.
func (e *Engine) RestoreState(s types.EngineState) {
	e.mu.Lock()
	e.state = s
	e.mu.Unlock()
}

// Start runs the engine's loop until ctx is cancelled or Stop is
// called, then closes Done(). It must be called at most once.
func (e *Engine) Start(ctx context.Context) {
	defer close(e.doneCh)
	if e.State().Kind == types.StateReady {
		e.transition(types.EngineState{Kind: types.StateSelecting})
	}

	for {
		select {
		case <-ctx.Done():
			e.forceStop()
			return
		case <-e.stopCh:
			e.forceStop()
			return
		default:
		}

		switch e.State().Kind {
		case types.StateSelecting:
			e.runIteration(ctx)
		case types.StatePaused:
			e.awaitResume(ctx)
		case types.StateComplete:
			e.awaitContinue(ctx)
		case types.StateStopping, types.StateStopped, types.StateError:
			return
		default:
			e.transition(types.EngineState{Kind: types.StateSelecting})
		}
	}
}

// Done reports when Start has returned.
func (e *Engine) Done() <-chan struct{} { return e.doneCh }

// Stop requests a graceful stop: the current iteration (if any) is
// allowed to reach its natural boundary — the child is interrupted, not
// killed, per spec.md's "any → Stopping → Stopped (graceful: await
// child interrupt)".
func (e *Engine) Stop() {
	e.stopRequested.Store(true)
	e.mu.Lock()
	handle := e.activeHandle
	e.mu.Unlock()
	if handle != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = handle.Interrupt(ctx)
	}
	select {
	case e.stopCh <- struct{}{}:
	default:
	}
}

// Pause requests the engine stop selecting new work. By default it
// waits for the current iteration's natural boundary (Open Question
// decision, SPEC_FULL.md §13); force=true also interrupts the running
// child immediately instead of waiting for it to finish.
func (e *Engine) Pause(force bool) {
	e.pauseRequested.Store(true)
	if force {
		e.pauseForce.Store(true)
	}
}

// Resume continues a paused engine.
func (e *Engine) Resume() {
	select {
	case e.resumeCh <- struct{}{}:
	default:
	}
}

// ContinueExecution re-enters Selecting from Complete, for when new
// tasks were added to the tracker externally (spec.md §4.5 state
// table).
func (e *Engine) ContinueExecution() {
	select {
	case e.continueCh <- struct{}{}:
	default:
	}
}

func (e *Engine) awaitResume(ctx context.Context) {
	select {
	case <-ctx.Done():
	case <-e.stopCh:
		e.forceStop()
	case <-e.resumeCh:
		prev := e.State().PreviousKind
		if prev == "" {
			prev = types.StateSelecting
		}
		e.transition(types.EngineState{Kind: prev})
	}
}

func (e *Engine) awaitContinue(ctx context.Context) {
	select {
	case <-ctx.Done():
	case <-e.stopCh:
		e.forceStop()
	case <-e.continueCh:
		e.transition(types.EngineState{Kind: types.StateSelecting})
	}
}

// transition validates and applies a state change, publishing
// StateChanged. An invalid transition is logged and ignored rather than
// panicking, matching the teacher's "log error, keep the loop alive"
// error handling idiom.
func (e *Engine) transition(to types.EngineState) {
	e.mu.Lock()
	from := e.state
	if !from.CanTransitionTo(to.Kind) {
		e.mu.Unlock()
		fmt.Fprintf(os.Stderr, "engine: rejected invalid transition %s -> %s\n", from.Kind, to.Kind)
		return
	}
	if to.Kind == types.StatePaused {
		to.PreviousKind = from.Kind
	}
	e.state = to
	e.mu.Unlock()
	e.publish(events.NewStateChanged(e.sessionID, from, to))
}

func (e *Engine) publish(ev events.Event) {
	if e.bus != nil {
		e.bus.Publish(ev)
	}
}

func (e *Engine) setActiveHandle(h runner.Handle) {
	e.mu.Lock()
	e.activeHandle = h
	e.mu.Unlock()
}

func (e *Engine) clearActiveHandle() {
	e.mu.Lock()
	e.activeHandle = nil
	e.mu.Unlock()
}

func (e *Engine) appendHistory(it *types.Iteration) {
	e.mu.Lock()
	e.history = append(e.history, it)
	e.mu.Unlock()
}

func (e *Engine) nextIterationNumber() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.history) + 1
}

// forceStop drives the state machine to Stopped from wherever it
// currently sits, going through Stopping first when that step is
// still valid (it's a no-op, not an error, if already terminal).
func (e *Engine) forceStop() {
	if e.State().Kind != types.StateStopping {
		e.transition(types.EngineState{Kind: types.StateStopping})
	}
	if e.State().Kind == types.StateStopping {
		e.transition(types.EngineState{Kind: types.StateStopped})
	}
}

// checkPause is polled at iteration boundaries (between UPDATE and the
// next SELECT) so a pending non-forced Pause request always takes
// effect promptly even though the loop is otherwise driven by
// iteration completion rather than a ticker. A forced pause is already
// handled mid-iteration by executeOnce; this just catches up the state
// machine afterward.
func (e *Engine) checkPause() (paused bool) {
	if !e.pauseRequested.Load() {
		return false
	}
	e.pauseRequested.Store(false)
	e.pauseForce.Store(false)
	e.transition(types.EngineState{Kind: types.StatePaused})
	return true
}
