package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ralphctl/ralph/internal/control"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the running session's engine state",
	Long:  `Query the control socket of a running session for its current engine state.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cwd, err := resolveCwd()
		if err != nil {
			return fail(1, err)
		}

		cyan := color.New(color.FgCyan, color.Bold).SprintFunc()
		gray := color.New(color.FgHiBlack).SprintFunc()
		red := color.New(color.FgRed).SprintFunc()
		green := color.New(color.FgGreen).SprintFunc()

		fmt.Printf("%s\n\n", cyan("=== Ralph Session Status ==="))

		client := control.NewClient(socketPath(cwd))
		resp, err := client.Status()
		if err != nil {
			fmt.Printf("  %s\n", gray("No running session"))
			fmt.Printf("  (%v)\n", err)
			return nil
		}
		if !resp.Success {
			return fail(1, fmt.Errorf("status: %s", resp.Error))
		}

		state, _ := resp.Data["state"].(string)
		stateColor := green
		if state == "error" {
			stateColor = red
		}
		fmt.Printf("  State:            %s\n", stateColor(state))
		fmt.Printf("  Iterations run:   %v\n", resp.Data["iterations_run"])
		fmt.Printf("  Iteration number: %v\n", resp.Data["iteration_number"])
		if state == "error" {
			fmt.Printf("  Error kind:       %v\n", resp.Data["error_kind"])
			fmt.Printf("  Error message:    %v\n", resp.Data["error_message"])
		}
		fmt.Println()
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
