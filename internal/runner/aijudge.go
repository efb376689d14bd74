package runner

import (
	"context"
	"fmt"
	"strings"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// NewAnthropicLoopJudge returns a LoopGuard.AIJudge backed by the
// Anthropic Messages API: given the most recent tool-call signatures
// it asks a small, cheap model whether the pattern looks like a stuck
// loop rather than legitimate repeated work, generalizing the
// teacher's checkAILoopDetection escalation from a VC-specific prompt
// to a model-agnostic signature list.
func NewAnthropicLoopJudge(apiKey, model string) func(ctx context.Context, recentSignatures []string) (bool, string, error) {
	client := sdk.NewClient(option.WithAPIKey(apiKey))
	if model == "" {
		model = "claude-haiku-4-5"
	}

	return func(ctx context.Context, recentSignatures []string) (bool, string, error) {
		prompt := fmt.Sprintf(
			"The following is a chronological list of tool_call signatures "+
				"(tool_name:argument_hash) made by a coding agent within a single "+
				"task. Decide whether this looks like the agent is stuck in an "+
				"unproductive repetition loop rather than making legitimate "+
				"incremental progress. Respond with exactly one line: either "+
				"\"STUCK: <one sentence reason>\" or \"OK\".\n\n%s",
			strings.Join(recentSignatures, "\n"),
		)

		msg, err := client.Messages.New(ctx, sdk.MessageNewParams{
			Model:     sdk.Model(model),
			MaxTokens: 64,
			Messages: []sdk.MessageParam{
				sdk.NewUserMessage(sdk.NewTextBlock(prompt)),
			},
		})
		if err != nil {
			return false, "", fmt.Errorf("loop judge: anthropic messages.new: %w", err)
		}

		var text strings.Builder
		for _, block := range msg.Content {
			if block.Type == "text" {
				text.WriteString(block.Text)
			}
		}
		reply := strings.TrimSpace(text.String())
		if strings.HasPrefix(reply, "STUCK:") {
			return true, strings.TrimSpace(strings.TrimPrefix(reply, "STUCK:")), nil
		}
		return false, "", nil
	}
}
