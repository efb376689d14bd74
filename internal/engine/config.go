package engine

import (
	"time"

	"github.com/ralphctl/ralph/internal/tracker"
)

// outputCapBytes bounds how much raw stdout+stderr an iteration
// retains; additional bytes are dropped with a marker event (spec.md
// §4.5 EXECUTE step).
const outputCapBytes = 4 * 1024 * 1024

// completionGrace is how long EXECUTE lets the child exit naturally
// after the completion sentinel fires before escalating to Interrupt
// (spec.md §4.5: "let child exit naturally with a deadline (default
// 10s), then interrupt").
const completionGrace = 10 * time.Second

// Config holds the Execution Engine's tunables. Every field has a
// spec.md-mandated default applied by NewConfig.
type Config struct {
	// PromptTemplate is passed verbatim to BuildPrompt; the engine never
	// interprets it beyond simple substitution (spec.md §4.5: "Prompts
	// are opaque to the engine").
	PromptTemplate string

	IterationCap int // 0 = unlimited, mirrors types.Session.IterationCap

	// Cwd is passed through to every runner.Options.Cwd; empty means the
	// runner inherits the engine process's working directory.
	Cwd string

	Retry RetryConfig

	// Model/ReasoningEffort are passed through to every runner.Options.
	Model           string
	ReasoningEffort string

	// TaskFilter narrows selectTask's GetTasks call (e.g. --epic pins
	// ParentID). Zero value imposes no constraint, matching the
	// engine's original unfiltered behavior.
	TaskFilter tracker.Filter
}

// NewConfig returns a Config with spec-mandated defaults applied to any
// zero-valued field the caller didn't set.
func NewConfig() Config {
	return Config{
		PromptTemplate: defaultPromptTemplate,
		Retry:          DefaultRetryConfig(),
	}
}
