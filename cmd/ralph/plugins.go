package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ralphctl/ralph/internal/registry"
)

var pluginsCmd = &cobra.Command{
	Use:   "plugins",
	Short: "List available Agent Runner and Tracker plugins",
}

var pluginsAgentsCmd = &cobra.Command{
	Use:   "agents",
	Short: "List available agent runner plugins",
	RunE: func(cmd *cobra.Command, args []string) error {
		reg := registry.New()
		if err := registry.RegisterBuiltins(reg); err != nil {
			return fail(1, err)
		}

		cyan := color.New(color.FgCyan).SprintFunc()
		gray := color.New(color.FgHiBlack).SprintFunc()
		for _, id := range reg.RunnerIDs() {
			meta, _ := reg.RunnerMeta(id)
			fmt.Printf("%s  %s\n", cyan(meta.ID), meta.DisplayName)
			fmt.Printf("  %s\n", gray(fmt.Sprintf(
				"binary=%s dialect=%s streaming=%t interrupt=%t file_context=%t subagent_tracing=%t",
				meta.DefaultBinary, meta.Dialect, meta.SupportsStreaming, meta.SupportsInterrupt,
				meta.SupportsFileContext, meta.SupportsSubagentTracing)))
		}
		return nil
	},
}

var pluginsTrackersCmd = &cobra.Command{
	Use:   "trackers",
	Short: "List available tracker plugins",
	RunE: func(cmd *cobra.Command, args []string) error {
		reg := registry.New()
		if err := registry.RegisterBuiltins(reg); err != nil {
			return fail(1, err)
		}

		cyan := color.New(color.FgCyan).SprintFunc()
		for _, id := range reg.TrackerIDs() {
			fmt.Printf("%s\n", cyan(id))
		}
		return nil
	},
}

func init() {
	pluginsCmd.AddCommand(pluginsAgentsCmd)
	pluginsCmd.AddCommand(pluginsTrackersCmd)
	rootCmd.AddCommand(pluginsCmd)
}
