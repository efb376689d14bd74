package engine

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"time"

	"github.com/ralphctl/ralph/internal/detect"
	"github.com/ralphctl/ralph/internal/events"
	"github.com/ralphctl/ralph/internal/runner"
	"github.com/ralphctl/ralph/internal/stream"
	"github.com/ralphctl/ralph/internal/types"
)

// newLoopGuardForIteration builds a LoopGuard, wiring in an
// Anthropic-judged escalation when ANTHROPIC_API_KEY is set in the
// environment (spec.md §9's plugin setup stays config-file/CLI-flag
// driven; this one knob is intentionally environment-only since it
// guards an ambient safety net, not a per-run choice).
func newLoopGuardForIteration() *runner.LoopGuard {
	guard := runner.NewLoopGuard()
	if key := os.Getenv("ANTHROPIC_API_KEY"); key != "" {
		guard.AIJudge = runner.NewAnthropicLoopJudge(key, os.Getenv("RALPH_LOOP_JUDGE_MODEL"))
	}
	return guard
}

// executeResult is the combined EXECUTE+DETECT outcome of one attempt
// at running task's prompt through the runner (spec.md §4.5).
type executeResult struct {
	outcome    types.IterationOutcome
	errKind    types.ErrorKind
	errMsg     string
	retryAfter time.Duration
	tree       []*types.SubagentNode
	output     []byte
}

// executeOnce launches the runner, streams its output through the
// dialect-matched parser, and fans every line and structured event out
// to the three Signal Detectors, exactly as spec.md §4.1/§4.2 describe.
// Completion stops the child gracefully after completionGrace; a fatal
// signal kills it immediately; a rate-limit signal interrupts it so the
// caller can back off and retry.
func (e *Engine) executeOnce(ctx context.Context, iter *types.Iteration, prompt string) executeResult {
	opts := runner.Options{Cwd: e.cfg.Cwd, Model: e.cfg.Model, ReasoningEffort: e.cfg.ReasoningEffort}

	handle, err := e.runner.Execute(ctx, prompt, opts)
	if err != nil {
		return executeResult{outcome: types.OutcomeError, errKind: types.ErrorPluginCrash, errMsg: err.Error()}
	}
	e.setActiveHandle(handle)
	defer e.clearActiveHandle()
	e.transition(types.Executing(iter.Number, handle.PID(), time.Now()))

	parser := stream.NewParser(e.runner.Meta().Dialect)
	var completion detect.CompletionDetector
	var rateDet detect.RateLimitDetector
	var fatalDet detect.FatalDetector
	guard := newLoopGuardForIteration()

	var fatalVerdict detect.FatalVerdict
	var rateVerdict detect.RateLimitVerdict
	var outBuf bytes.Buffer
	truncated := false

	appendOutput := func(name string, chunk []byte) {
		if truncated {
			return
		}
		room := outputCapBytes - outBuf.Len()
		if room <= 0 {
			truncated = true
			e.publish(events.NewOutputAppended(e.sessionID, iter.Number, name, nil, true))
			return
		}
		if len(chunk) > room {
			outBuf.Write(chunk[:room])
			truncated = true
			e.publish(events.NewOutputAppended(e.sessionID, iter.Number, name, chunk[:room], true))
			return
		}
		outBuf.Write(chunk)
		e.publish(events.NewOutputAppended(e.sessionID, iter.Number, name, chunk, false))
	}

	drain := func() {
		for {
			ev, ok := parser.Next()
			if !ok {
				return
			}
			e.handleStreamEvent(iter, parser, ev, &completion, rateDet, fatalDet, guard, &rateVerdict, &fatalVerdict)
		}
	}

	stdout := handle.Stdout()
	stderr := handle.Stderr()
	stdoutOpen, stderrOpen := true, true
	var graceTimer <-chan time.Time
	fatalHandled, rateHandled, forcePaused := false, false, false
	interruptedByCtx := false

	// pausePoll lets a Pause(force=true) request interrupt this
	// iteration right away instead of waiting for the next stdout or
	// stderr chunk (Open Question decision, SPEC_FULL.md §13).
	pausePoll := time.NewTicker(200 * time.Millisecond)
	defer pausePoll.Stop()

loop:
	for stdoutOpen || stderrOpen {
		select {
		case <-ctx.Done():
			interruptedByCtx = true
			_ = handle.Kill()
			break loop
		case <-pausePoll.C:
			if !forcePaused && e.pauseForce.Load() {
				forcePaused = true
				ictx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				_ = handle.Interrupt(ictx)
				cancel()
			}
		case chunk, ok := <-stdout:
			if !ok {
				stdoutOpen = false
				stdout = nil
				continue
			}
			appendOutput("stdout", chunk)
			parser.Feed(chunk)
			drain()
		case chunk, ok := <-stderr:
			if !ok {
				stderrOpen = false
				stderr = nil
				continue
			}
			appendOutput("stderr", chunk)
			parser.Feed(chunk)
			drain()
		case <-graceTimer:
			ictx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			_ = handle.Interrupt(ictx)
			cancel()
			graceTimer = nil
		}

		if !fatalHandled && fatalVerdict.Matched {
			fatalHandled = true
			_ = handle.Kill()
		}
		if !rateHandled && rateVerdict.Matched {
			rateHandled = true
			ictx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			_ = handle.Interrupt(ictx)
			cancel()
		}
		if graceTimer == nil && completion.Fired() && !fatalHandled && !rateHandled {
			graceTimer = time.After(completionGrace)
		}
	}

	parser.Finish()
	drain()

	exitCode, waitErr := handle.Wait()
	if waitErr != nil && !fatalVerdict.Matched {
		fmt.Fprintf(os.Stderr, "engine: iteration %d: wait error: %v\n", iter.Number, waitErr)
	}
	if !fatalVerdict.Matched {
		if v := fatalDet.CheckExitCode(exitCode); v.Matched {
			fatalVerdict = v
		}
	}

	result := executeResult{tree: parser.Tree().Nodes(), output: outBuf.Bytes()}

	switch {
	case interruptedByCtx, forcePaused, e.stopRequested.Load():
		result.outcome = types.OutcomeInterrupted
	case fatalVerdict.Matched:
		result.outcome = types.OutcomeError
		result.errKind = fatalVerdict.Kind
		result.errMsg = fatalVerdict.Reason
	case rateVerdict.Matched:
		result.outcome = types.OutcomeRateLimited
		result.retryAfter = rateVerdict.RetryAfter
	case completion.Fired():
		result.outcome = types.OutcomeCompleted
	case exitCode != 0:
		result.outcome = types.OutcomeError
		result.errKind = types.ErrorRuntime
		result.errMsg = fmt.Sprintf("child exited with code %d", exitCode)
	default:
		// No terminal detector fired, but the child exited clean: spec.md
		// §4.5 treats a 0 exit with no signal as a completion, not an
		// error.
		result.outcome = types.OutcomeCompleted
	}
	return result
}

// runAIJudgeCheck consults guard's AIJudge (if any) on the most recent
// tool-call signatures and escalates to a fatal verdict when it reports
// the child looks stuck. Failures of the judge itself (timeout, API
// error) are logged and otherwise ignored — the hard call-count limits
// in Observe remain the backstop.
func (e *Engine) runAIJudgeCheck(iter *types.Iteration, guard *runner.LoopGuard, fatalVerdict *detect.FatalVerdict) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	stuck, reason, err := guard.AIJudge(ctx, guard.RecentSignatures())
	if err != nil {
		fmt.Fprintf(os.Stderr, "engine: iteration %d: loop judge: %v\n", iter.Number, err)
		return
	}
	if stuck {
		*fatalVerdict = detect.FatalVerdict{Matched: true, Kind: types.ErrorRuntime, Reason: "loop guard (AI judge): " + reason}
		e.publish(events.NewDetectorFired(e.sessionID, iter.Number, events.DetectorFatal, reason, 0))
	}
}

// handleStreamEvent folds one parser event into the detectors and, for
// structured spawn/result events, publishes the corresponding subagent
// tree event: SubagentSpawned for a spawn, SubagentFinished for a
// result. SubagentUpdated is not published from here.
func (e *Engine) handleStreamEvent(
	iter *types.Iteration,
	parser *stream.Parser,
	ev stream.Event,
	completion *detect.CompletionDetector,
	rateDet detect.RateLimitDetector,
	fatalDet detect.FatalDetector,
	guard *runner.LoopGuard,
	rateVerdict *detect.RateLimitVerdict,
	fatalVerdict *detect.FatalVerdict,
) {
	switch ev.Kind {
	case stream.KindLineText:
		completion.Feed(ev.LineText)
		if !rateVerdict.Matched {
			if v := rateDet.CheckLine(ev.LineText); v.Matched {
				*rateVerdict = v
			}
		}
		if !fatalVerdict.Matched {
			if v := fatalDet.CheckLine(ev.LineText); v.Matched {
				*fatalVerdict = v
			}
		}
	case stream.KindStructured:
		se := ev.Structured
		if se.Text != "" {
			completion.Feed(se.Text)
		}
		if se.IsError {
			if !fatalVerdict.Matched {
				if v := fatalDet.CheckToolResult(se.IsError, se.Output); v.Matched {
					*fatalVerdict = v
				}
			}
			if !rateVerdict.Matched {
				if v := rateDet.CheckStructuredError(se.Output); v.Matched {
					*rateVerdict = v
				}
			}
		}
		switch se.Kind {
		case stream.StructuredSpawn:
			if node, ok := parser.Tree().Node(se.CallID); ok {
				e.publish(events.NewSubagentSpawned(e.sessionID, iter.Number, *node))
			}
			if !fatalVerdict.Matched {
				if tripped, reason := guard.Observe(se.Tool, fmt.Sprintf("%v", se.Input)); tripped {
					*fatalVerdict = detect.FatalVerdict{Matched: true, Kind: types.ErrorRuntime, Reason: "loop guard: " + reason}
					e.publish(events.NewDetectorFired(e.sessionID, iter.Number, events.DetectorFatal, reason, 0))
				} else if guard.ShouldAICheck() {
					e.runAIJudgeCheck(iter, guard, fatalVerdict)
				}
			}
		case stream.StructuredResult:
			if node, ok := parser.Tree().Node(se.CallID); ok {
				e.publish(events.NewSubagentFinished(e.sessionID, iter.Number, *node))
			}
		}
	case stream.KindParseError:
		fmt.Fprintf(os.Stderr, "engine: iteration %d: parse error: %s: %s\n", iter.Number, ev.ParseErr.Reason, ev.ParseErr.Raw)
	}
}
