package main

import (
	"github.com/spf13/cobra"
)

var resumeCmd = &cobra.Command{
	Use:   "resume",
	Short: "Resume the most recent session from its persisted snapshot",
	Long: `Read the latest session snapshot, re-enter the engine at Ready, and
restore it to Paused (spec.md §9); use 'ralph status' then a control
command to continue from there.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSession(cmd.Context(), true)
	},
}

func init() {
	registerRunFlags(resumeCmd)
	rootCmd.AddCommand(resumeCmd)
}
