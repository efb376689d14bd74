package runner

import (
	"context"

	"github.com/ralphctl/ralph/internal/stream"
)

// ClaudeRunner launches a Claude-Code-like CLI in non-interactive,
// streaming mode. Grounded on
// steveyegge-vc/internal/executor/agent.go's buildClaudeCodeCommand.
type ClaudeRunner struct{}

var _ Runner = ClaudeRunner{}

func (ClaudeRunner) Meta() Meta {
	return Meta{
		ID:                      "claude",
		DisplayName:             "Claude Code",
		DefaultBinary:           "claude",
		SupportsStreaming:       true,
		SupportsInterrupt:       true,
		SupportsFileContext:     true,
		SupportsSubagentTracing: true,
		Dialect:                 stream.DialectA,
	}
}

func (ClaudeRunner) SetupQuestions() []SetupQuestion {
	return []SetupQuestion{
		{ID: "binary", Type: QuestionPath, Help: "Path to the claude binary", Default: "claude"},
		{ID: "skip_permissions", Type: QuestionBool, Help: "Bypass permission prompts (required for unattended runs)", Default: "true", Required: true},
	}
}

func (ClaudeRunner) ValidateSetup(answers map[string]string) error {
	return nil
}

func (ClaudeRunner) BuildArgs(prompt string, files []string, opts Options) []string {
	args := []string{"--print", "--dangerously-skip-permissions"}
	if opts.Model != "" {
		args = append(args, "--model", opts.Model)
	}
	// --output-format stream-json requires --verbose (teacher's note).
	args = append(args, "--verbose", "--output-format", "stream-json")
	for _, f := range files {
		args = append(args, "--add-dir", f)
	}
	args = append(args, prompt)
	return args
}

func (r ClaudeRunner) Execute(ctx context.Context, prompt string, opts Options) (Handle, error) {
	binary := opts.Binary
	if binary == "" {
		binary = r.Meta().DefaultBinary
	}
	return startProcess(ctx, binary, r.BuildArgs(prompt, opts.Files, opts), opts.Cwd)
}
