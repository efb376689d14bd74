package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/chzyer/readline"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/ralphctl/ralph/internal/registry"
	"github.com/ralphctl/ralph/internal/runner"
)

// pluginAnswers is the on-disk shape of setup.yaml: an object keyed by
// plugin id, values keyed by setup-question id (spec.md §9: "Plugin
// setup answers... keyed by plugin id"). YAML rather than JSON so an
// operator can hand-edit one answer without round-tripping through a
// strict encoder, matching the teacher's config-layer convention of
// human-editable on-disk state.
type pluginAnswers map[string]map[string]string

func loadPluginAnswers(path string) (pluginAnswers, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return pluginAnswers{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read setup answers: %w", err)
	}
	var pa pluginAnswers
	if err := yaml.Unmarshal(data, &pa); err != nil {
		return nil, fmt.Errorf("parse setup answers %s: %w", path, err)
	}
	if pa == nil {
		pa = pluginAnswers{}
	}
	return pa, nil
}

func savePluginAnswers(path string, pa pluginAnswers) error {
	data, err := yaml.Marshal(pa)
	if err != nil {
		return fmt.Errorf("marshal setup answers: %w", err)
	}
	return os.WriteFile(path, data, 0644)
}

// runSetupWizard interactively asks rn's SetupQuestions via readline,
// returning the validated answer map. Grounded on the teacher's REPL
// readline.Instance usage (internal/repl/repl.go): a single prompt,
// reused per question rather than one instance per line.
func runSetupWizard(rn runner.Runner) (map[string]string, error) {
	cyan := color.New(color.FgCyan).SprintFunc()
	gray := color.New(color.FgHiBlack).SprintFunc()

	rl, err := readline.NewEx(&readline.Config{Prompt: cyan("> ")})
	if err != nil {
		return nil, fmt.Errorf("setup: create readline: %w", err)
	}
	defer rl.Close()

	answers := make(map[string]string)
	for _, q := range rn.SetupQuestions() {
		fmt.Printf("%s", q.Help)
		if q.Default != "" {
			fmt.Printf(" %s", gray(fmt.Sprintf("[%s]", q.Default)))
		}
		if len(q.Choices) > 0 {
			fmt.Printf(" %s", gray(fmt.Sprintf("(%s)", strings.Join(q.Choices, "/"))))
		}
		fmt.Println()

		line, err := rl.Readline()
		if err != nil {
			return nil, fmt.Errorf("setup: read answer for %s: %w", q.ID, err)
		}
		line = strings.TrimSpace(line)
		if line == "" {
			line = q.Default
		}
		if q.Required && line == "" {
			return nil, fmt.Errorf("setup: %s is required", q.ID)
		}
		answers[q.ID] = line
	}

	if err := rn.ValidateSetup(answers); err != nil {
		return nil, fmt.Errorf("setup: %w", err)
	}
	return answers, nil
}

var setupCmd = &cobra.Command{
	Use:   "setup <agent-id>",
	Short: "Interactively configure an Agent Runner plugin",
	Long: `Ask the named Agent Runner plugin's setup questions and persist the
answers to .ralph/setup.yaml for subsequent 'ralph run' invocations.`,
	Args: exactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		agentID := args[0]

		cwd, err := resolveCwd()
		if err != nil {
			return fail(1, err)
		}
		if err := ensureSessionDir(cwd); err != nil {
			return fail(1, err)
		}

		reg := registry.New()
		if err := registry.RegisterBuiltins(reg); err != nil {
			return fail(1, err)
		}

		meta, ok := reg.RunnerMeta(agentID)
		if !ok {
			return fail(2, fmt.Errorf("unknown agent plugin %q", agentID))
		}
		rn, err := reg.Runner(agentID, map[string]string{})
		if err != nil {
			return fail(1, err)
		}

		fmt.Printf("Configuring %s (%s)\n\n", meta.DisplayName, meta.ID)
		answers, err := runSetupWizard(rn)
		if err != nil {
			return fail(1, err)
		}

		path := setupAnswersPath(cwd)
		pa, err := loadPluginAnswers(path)
		if err != nil {
			return fail(1, err)
		}
		pa[agentID] = answers
		if err := savePluginAnswers(path, pa); err != nil {
			return fail(1, err)
		}

		green := color.New(color.FgGreen).SprintFunc()
		fmt.Printf("\n%s Saved setup answers to %s\n", green("✓"), path)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(setupCmd)
}
