// Package runner implements the Agent Runner plugin contract
// (spec.md §4.3): pure subprocess wrappers that launch a vendor AI CLI,
// stream its raw output, and support interrupt/kill. Runners never
// interpret output — the Execution Engine attaches the dialect-matched
// internal/stream.Parser separately.
package runner

import (
	"context"

	"github.com/ralphctl/ralph/internal/stream"
)

// QuestionType is the type of one interactive setup prompt.
type QuestionType string

const (
	QuestionText   QuestionType = "text"
	QuestionBool   QuestionType = "bool"
	QuestionSelect QuestionType = "select"
	QuestionPath   QuestionType = "path"
	QuestionNumber QuestionType = "number"
)

// SetupQuestion is one ordered, typed prompt a plugin asks during
// interactive configuration (spec.md §4.3).
type SetupQuestion struct {
	ID       string
	Type     QuestionType
	Help     string
	Default  string
	Choices  []string // populated only when Type == QuestionSelect
	Required bool
}

// Meta describes a runner's identity and capabilities.
type Meta struct {
	ID                      string
	DisplayName             string
	DefaultBinary           string
	SupportsStreaming       bool
	SupportsInterrupt       bool
	SupportsFileContext     bool
	SupportsSubagentTracing bool
	Dialect                 stream.Dialect
}

// Options carries per-execution parameters (spec.md §4.3: "Options
// include cwd, model override, reasoning-effort level").
type Options struct {
	Cwd             string
	Model           string
	ReasoningEffort string
	Files           []string
	// Binary overrides Meta.DefaultBinary when the operator configured
	// a custom path to the vendor CLI.
	Binary string
}

// Handle is a live child-process execution returned by Execute.
type Handle interface {
	// Stdout/Stderr yield raw byte chunks as they are read; each
	// channel is closed when that stream reaches EOF.
	Stdout() <-chan []byte
	Stderr() <-chan []byte
	PID() int
	// Interrupt requests graceful termination: SIGINT, then escalates
	// to SIGKILL if the process has not exited within the deadline.
	Interrupt(ctx context.Context) error
	// Kill terminates the child immediately (SIGKILL).
	Kill() error
	// Wait blocks until the child exits and returns its exit code.
	Wait() (int, error)
}

// Runner is the plugin contract every vendor adapter implements.
type Runner interface {
	Meta() Meta
	SetupQuestions() []SetupQuestion
	ValidateSetup(answers map[string]string) error
	BuildArgs(prompt string, files []string, opts Options) []string
	Execute(ctx context.Context, prompt string, opts Options) (Handle, error)
}
