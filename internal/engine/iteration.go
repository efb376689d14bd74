package engine

import (
	"context"
	"time"

	"github.com/ralphctl/ralph/internal/events"
	"github.com/ralphctl/ralph/internal/types"
)

// runIteration drives one full SELECT→BUILD→EXECUTE→DETECT→UPDATE pass
// (spec.md §4.5), retrying the EXECUTE+DETECT portion on non-fatal
// errors per cfg.Retry before sealing the iteration.
func (e *Engine) runIteration(ctx context.Context) {
	if !e.rateGate.Wait(ctx) {
		return
	}

	task, err := e.selectTask(ctx)
	if err != nil {
		e.stopWithError(types.ErrorRuntime, err.Error())
		return
	}
	if task == nil {
		e.transition(types.EngineState{Kind: types.StateComplete})
		return
	}

	e.transition(types.EngineState{Kind: types.StateBuilding})
	prompt := BuildPrompt(e.cfg.PromptTemplate, task)

	number := e.nextIterationNumber()
	iter := &types.Iteration{Number: number, TaskID: task.ID, StartedAt: time.Now()}
	e.publish(events.NewIterationStarted(e.sessionID, number, task.ID))
	e.recordIterationStarted()

	backoff := e.cfg.Retry.InitialBackoff
	var res executeResult

	for attempt := 0; ; attempt++ {
		res = e.executeOnce(ctx, iter, prompt)

		if res.outcome == types.OutcomeRateLimited {
			e.publish(events.NewDetectorFired(e.sessionID, number, events.DetectorRateLimit, "rate limit signal detected", res.retryAfter))
			e.rateGate.Cooldown(res.retryAfter)
			break
		}
		if res.outcome != types.OutcomeError {
			break // completed or interrupted end the retry loop
		}
		e.publish(events.NewDetectorFired(e.sessionID, number, events.DetectorFatal, res.errMsg, 0))
		if res.errKind.ImmediatelyFatal() {
			break
		}
		if attempt >= e.cfg.Retry.MaxRetries {
			res.errKind = types.ErrorRetryExhausted
			break
		}
		next, werr := sleepBackoff(ctx, backoff, e.cfg.Retry)
		if werr != nil {
			res.outcome = types.OutcomeInterrupted
			break
		}
		backoff = next
	}

	iter.EndedAt = time.Now()
	iter.Outcome = res.outcome
	iter.Tree = res.tree
	iter.Output = res.output
	iter.Seal()
	e.appendHistory(iter)
	e.publish(events.NewIterationFinished(e.sessionID, iter.Number, task.ID, res.outcome))
	e.recordIterationFinished(res.outcome, iter.EndedAt.Sub(iter.StartedAt))

	e.updateTracker(ctx, task, res.outcome)

	if res.outcome == types.OutcomeError && (res.errKind.ImmediatelyFatal() || res.errKind == types.ErrorRetryExhausted) {
		e.publish(events.NewFatalError(e.sessionID, res.errKind, res.errMsg, ""))
		e.transition(types.Errored(res.errKind, res.errMsg))
		e.forceStop()
		return
	}

	if e.stopRequested.Load() {
		e.forceStop()
		return
	}
	if e.checkPause() {
		return
	}
	if e.capReached() {
		e.transition(types.EngineState{Kind: types.StateComplete})
		return
	}
	e.transition(types.EngineState{Kind: types.StateSelecting})
}

// capReached reports whether cfg.IterationCap (spec.md §6/§8: "cap of 1
// runs exactly one iteration; cap of N runs at most N") has been hit.
// A cap of 0 or less means unlimited.
func (e *Engine) capReached() bool {
	if e.cfg.IterationCap <= 0 {
		return false
	}
	e.mu.RLock()
	n := len(e.history)
	e.mu.RUnlock()
	return n >= e.cfg.IterationCap
}

// stopWithError reports a failure that occurs outside of a running
// iteration (e.g. SELECT itself erroring against the tracker) and
// moves straight to Stopping/Stopped. Selecting has no direct
// transition to Error in spec.md §4.5's state table, so a SELECT-time
// failure is surfaced only via the FatalError event, not a terminal
// Error state.
func (e *Engine) stopWithError(kind types.ErrorKind, msg string) {
	e.publish(events.NewFatalError(e.sessionID, kind, msg, ""))
	e.forceStop()
}
