// Command ralph drives the Execution Engine (spec.md §4.5) from the
// command line: run, resume, status, setup, config show, plugins
// agents, plugins trackers.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var cwdFlag string

var rootCmd = &cobra.Command{
	Use:   "ralph",
	Short: "Drive an AI coding assistant in a closed-loop agent loop",
	Long: `Ralph selects a task from a tracker, builds a prompt, launches a vendor
AI CLI as a subprocess, streams and parses its output, detects completion
and error conditions, updates the tracker, and repeats.`,
	SilenceErrors: true,
	SilenceUsage:  true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cwdFlag, "cwd", "", "session working directory (default: current directory)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(exitCodeOf(err))
	}
}

// exitCode wraps err with the process exit code spec.md §6 assigns to
// its failure class: 1 generic, 2 invalid arguments, 3 session-locked,
// 4 missing-binary, 5 auth.
type exitCode struct {
	code int
	err  error
}

func (e *exitCode) Error() string { return e.err.Error() }
func (e *exitCode) Unwrap() error { return e.err }

func fail(code int, err error) error { return &exitCode{code: code, err: err} }

func exitCodeOf(err error) int {
	var ec *exitCode
	if errors.As(err, &ec) {
		return ec.code
	}
	return 1
}

// exactArgs wraps cobra.ExactArgs so an arity mismatch exits 2 per
// spec.md §6 rather than cobra's default generic failure.
func exactArgs(n int) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if err := cobra.ExactArgs(n)(cmd, args); err != nil {
			return fail(2, err)
		}
		return nil
	}
}
