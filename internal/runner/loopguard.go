package runner

import (
	"context"
	"fmt"
	"sync"
)

// LoopGuard tracks per-tool and per-argument-signature call counts
// within one iteration and reports when a child process looks stuck in
// a pathological repetition loop (e.g. re-reading the same file
// hundreds of times). It is a SPEC_FULL.md-supplemented feature, not a
// spec.md-named component: the Execution Engine's DETECT step may
// consult it optionally, but the core's own Fatal/RateLimit/Completion
// detectors do not depend on it.
//
// Grounded on steveyegge-vc/internal/executor/agent.go's
// checkCircuitBreaker/checkGrepCircuitBreaker/checkGlobCircuitBreaker/
// checkToolCallLimit hard-limit counters.
type LoopGuard struct {
	mu sync.Mutex

	perSignature map[string]int
	totalCalls   int

	// Hard limits, mirroring the teacher's defaults.
	maxPerSignature int
	maxTotalCalls   int

	// AIJudge, if set, is consulted every aiCheckInterval calls to ask
	// "does this look like a stuck loop?" as a heuristic layered on top
	// of the hard backstops above (teacher's checkAILoopDetection).
	AIJudge         func(ctx context.Context, recentSignatures []string) (stuck bool, reason string, err error)
	aiCheckInterval int
	recent          []string
}

// NewLoopGuard constructs a guard with the teacher's defaults: 20
// repeats of the same tool+argument signature, 500 total tool calls,
// and (if AIJudge is later set) a check every 50 calls.
func NewLoopGuard() *LoopGuard {
	return &LoopGuard{
		perSignature:    make(map[string]int),
		maxPerSignature: 20,
		maxTotalCalls:   500,
		aiCheckInterval: 50,
	}
}

// Observe records one tool invocation and returns a non-empty reason
// if a hard limit has been exceeded.
func (g *LoopGuard) Observe(tool string, argsSignature string) (tripped bool, reason string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	sig := tool + ":" + argsSignature
	g.perSignature[sig]++
	g.totalCalls++
	g.recent = append(g.recent, sig)
	if len(g.recent) > g.aiCheckInterval {
		g.recent = g.recent[len(g.recent)-g.aiCheckInterval:]
	}

	if g.perSignature[sig] > g.maxPerSignature {
		return true, fmt.Sprintf("tool %q called with the same arguments %d times", tool, g.perSignature[sig])
	}
	if g.totalCalls > g.maxTotalCalls {
		return true, fmt.Sprintf("exceeded %d total tool calls in one iteration", g.maxTotalCalls)
	}
	return false, ""
}

// ShouldAICheck reports whether enough calls have accumulated since the
// last AI-judged check to warrant another one.
func (g *LoopGuard) ShouldAICheck() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.AIJudge != nil && g.aiCheckInterval > 0 && g.totalCalls%g.aiCheckInterval == 0 && g.totalCalls > 0
}

// RecentSignatures returns a copy of the most recent call signatures,
// for the AI judge to inspect.
func (g *LoopGuard) RecentSignatures() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]string, len(g.recent))
	copy(out, g.recent)
	return out
}
