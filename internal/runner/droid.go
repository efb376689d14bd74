package runner

import (
	"context"

	"github.com/ralphctl/ralph/internal/stream"
)

// DroidRunner launches a Droid-like CLI. Its wire format is Dialect C:
// structurally identical to Dialect A with minor field renames (see
// spec.md §4.1), so this runner differs from ClaudeRunner only in
// binary name and flag spelling.
type DroidRunner struct{}

var _ Runner = DroidRunner{}

func (DroidRunner) Meta() Meta {
	return Meta{
		ID:                      "droid",
		DisplayName:             "Droid",
		DefaultBinary:           "droid",
		SupportsStreaming:       true,
		SupportsInterrupt:       true,
		SupportsFileContext:     true,
		SupportsSubagentTracing: true,
		Dialect:                 stream.DialectC,
	}
}

func (DroidRunner) SetupQuestions() []SetupQuestion {
	return []SetupQuestion{
		{ID: "binary", Type: QuestionPath, Help: "Path to the droid binary", Default: "droid"},
	}
}

func (DroidRunner) ValidateSetup(answers map[string]string) error {
	return nil
}

func (DroidRunner) BuildArgs(prompt string, files []string, opts Options) []string {
	args := []string{"exec", "--json-output", "--auto-approve"}
	if opts.Model != "" {
		args = append(args, "--model", opts.Model)
	}
	for _, f := range files {
		args = append(args, "--context", f)
	}
	args = append(args, prompt)
	return args
}

func (r DroidRunner) Execute(ctx context.Context, prompt string, opts Options) (Handle, error) {
	binary := opts.Binary
	if binary == "" {
		binary = r.Meta().DefaultBinary
	}
	return startProcess(ctx, binary, r.BuildArgs(prompt, opts.Files, opts), opts.Cwd)
}
