package engine

import (
	"strings"

	"github.com/ralphctl/ralph/internal/types"
)

// defaultPromptTemplate is used when a session does not supply its own.
// {{title}}, {{description}}, {{id}} are substituted; the result is
// handed to the runner as-is, per spec.md §4.5 ("Prompts are opaque to
// the engine").
const defaultPromptTemplate = `Work on task {{id}}: {{title}}

{{description}}

When the task is fully complete, end your final message with the exact
literal text: <promise>COMPLETE</promise>
`

// BuildPrompt composes the final prompt string for task from template,
// doing simple placeholder substitution. It never inspects or validates
// the resulting text — that opacity is load-bearing (spec.md §4.5).
func BuildPrompt(template string, task *types.Task) string {
	if template == "" {
		template = defaultPromptTemplate
	}
	r := strings.NewReplacer(
		"{{id}}", task.ID,
		"{{title}}", task.Title,
		"{{description}}", task.Description,
	)
	return r.Replace(template)
}
