package registry

import (
	"context"
	"fmt"

	"github.com/ralphctl/ralph/internal/runner"
	"github.com/ralphctl/ralph/internal/tracker"
)

// RegisterBuiltins adds the three shipped Agent Runners and two shipped
// Trackers. Callers may still RegisterRunner/RegisterTracker additional
// plugins under new ids afterward; built-in ids may also be
// overridden, matching the teacher's "plugins can shadow defaults"
// convention.
func RegisterBuiltins(r *Registry) error {
	claude := runner.ClaudeRunner{}
	if err := r.RegisterRunner(claude.Meta().ID, claude.Meta(), "", func(map[string]string) (runner.Runner, error) {
		return runner.ClaudeRunner{}, nil
	}); err != nil {
		return err
	}

	opencoder := runner.OpenCoderRunner{}
	if err := r.RegisterRunner(opencoder.Meta().ID, opencoder.Meta(), "", func(map[string]string) (runner.Runner, error) {
		return runner.OpenCoderRunner{}, nil
	}); err != nil {
		return err
	}

	droid := runner.DroidRunner{}
	if err := r.RegisterRunner(droid.Meta().ID, droid.Meta(), "", func(map[string]string) (runner.Runner, error) {
		return runner.DroidRunner{}, nil
	}); err != nil {
		return err
	}

	if err := r.RegisterTracker("beads", func(answers map[string]string) (tracker.Tracker, error) {
		dbPath := answers["db_path"]
		if dbPath == "" {
			dbPath = ".beads/beads.db"
		}
		return tracker.NewBeadsTracker(context.Background(), dbPath, answers["issue_prefix"])
	}); err != nil {
		return err
	}

	if err := r.RegisterTracker("sqlite", func(answers map[string]string) (tracker.Tracker, error) {
		dbPath := answers["db_path"]
		if dbPath == "" {
			return nil, fmt.Errorf("sqlite tracker: db_path setup answer is required")
		}
		return tracker.NewSQLiteTracker(context.Background(), dbPath)
	}); err != nil {
		return err
	}

	return nil
}
