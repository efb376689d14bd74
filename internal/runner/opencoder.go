package runner

import (
	"context"

	"github.com/ralphctl/ralph/internal/stream"
)

// OpenCoderRunner launches an OpenCode-like CLI whose structured
// output follows Dialect B (SSE-derived `part`/`properties` nesting).
// Grounded on
// other_examples/6b4ebd9d_HyphaGroup-oubliette__internal-agent-opencode-executor.go.go,
// adapted from its HTTP/SSE session model to the narrower subprocess
// contract spec.md §4.3 requires of every runner: the vendor CLI is
// expected to mirror its event stream to stdout as JSON lines when
// invoked non-interactively with --print.
type OpenCoderRunner struct{}

var _ Runner = OpenCoderRunner{}

func (OpenCoderRunner) Meta() Meta {
	return Meta{
		ID:                      "opencoder",
		DisplayName:             "OpenCode",
		DefaultBinary:           "opencode",
		SupportsStreaming:       true,
		SupportsInterrupt:       true,
		SupportsFileContext:     true,
		SupportsSubagentTracing: true,
		Dialect:                 stream.DialectB,
	}
}

func (OpenCoderRunner) SetupQuestions() []SetupQuestion {
	return []SetupQuestion{
		{ID: "binary", Type: QuestionPath, Help: "Path to the opencode binary", Default: "opencode"},
		{ID: "reasoning_level", Type: QuestionSelect, Help: "Reasoning effort passed as variant", Default: "medium", Choices: []string{"low", "medium", "high"}},
	}
}

func (OpenCoderRunner) ValidateSetup(answers map[string]string) error {
	return nil
}

func (OpenCoderRunner) BuildArgs(prompt string, files []string, opts Options) []string {
	args := []string{"run", "--print", "--format", "json-stream"}
	if opts.Model != "" {
		args = append(args, "--model", opts.Model)
	}
	if opts.ReasoningEffort != "" {
		args = append(args, "--variant", opts.ReasoningEffort)
	}
	for _, f := range files {
		args = append(args, "--file", f)
	}
	args = append(args, prompt)
	return args
}

func (r OpenCoderRunner) Execute(ctx context.Context, prompt string, opts Options) (Handle, error) {
	binary := opts.Binary
	if binary == "" {
		binary = r.Meta().DefaultBinary
	}
	return startProcess(ctx, binary, r.BuildArgs(prompt, opts.Files, opts), opts.Cwd)
}
