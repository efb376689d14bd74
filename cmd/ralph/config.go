package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ralphctl/ralph/internal/engine"
	"github.com/ralphctl/ralph/internal/session"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect ralph's effective configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration (defaults merged with ralph.toml)",
	RunE: func(cmd *cobra.Command, args []string) error {
		cwd, err := resolveCwd()
		if err != nil {
			return fail(1, err)
		}

		override, err := session.LoadOverride(cwd)
		if err != nil {
			return fail(1, err)
		}

		cfg := engine.NewConfig()
		cfg.Cwd = cwd
		if override.IterationCap != 0 {
			cfg.IterationCap = override.IterationCap
		}
		if override.Model != "" {
			cfg.Model = override.Model
		}
		if override.ReasoningEffort != "" {
			cfg.ReasoningEffort = override.ReasoningEffort
		}
		if override.MaxRetries != 0 {
			cfg.Retry.MaxRetries = override.MaxRetries
		}
		if override.InitialBackoffMS != 0 {
			cfg.Retry.InitialBackoff = override.InitialBackoff()
		}
		if override.MaxBackoffMS != 0 {
			cfg.Retry.MaxBackoff = override.MaxBackoff()
		}

		cyan := color.New(color.FgCyan, color.Bold).SprintFunc()
		fmt.Printf("%s\n\n", cyan("=== Effective Configuration ==="))
		fmt.Printf("  cwd:              %s\n", cfg.Cwd)
		fmt.Printf("  iteration_cap:    %d (0 = unlimited)\n", cfg.IterationCap)
		fmt.Printf("  model:            %s\n", emptyAsDefault(cfg.Model))
		fmt.Printf("  reasoning_effort: %s\n", emptyAsDefault(cfg.ReasoningEffort))
		fmt.Printf("  retry.max_retries:        %d\n", cfg.Retry.MaxRetries)
		fmt.Printf("  retry.initial_backoff:    %s\n", cfg.Retry.InitialBackoff)
		fmt.Printf("  retry.max_backoff:        %s\n", cfg.Retry.MaxBackoff)
		fmt.Printf("  retry.backoff_multiplier: %v\n", cfg.Retry.BackoffMultiplier)
		fmt.Println()
		return nil
	},
}

func emptyAsDefault(s string) string {
	if s == "" {
		return "(agent default)"
	}
	return s
}

func init() {
	configCmd.AddCommand(configShowCmd)
	rootCmd.AddCommand(configCmd)
}
