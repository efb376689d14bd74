package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/ralphctl/ralph/internal/audit"
	"github.com/ralphctl/ralph/internal/control"
	"github.com/ralphctl/ralph/internal/engine"
	"github.com/ralphctl/ralph/internal/events"
	"github.com/ralphctl/ralph/internal/registry"
	"github.com/ralphctl/ralph/internal/runner"
	"github.com/ralphctl/ralph/internal/session"
	"github.com/ralphctl/ralph/internal/tracker"
	"github.com/ralphctl/ralph/internal/types"
)

var (
	runEpic       string
	runPRD        string
	runAgent      string
	runModel      string
	runTracker    string
	runIterations int
	runHeadless   bool
	runNoSetup    bool
	runForce      bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the agent loop",
	Long: `Select a task from the configured tracker, build a prompt, launch the
configured Agent Runner, stream and parse its output, detect completion
and error conditions, update the tracker, and repeat.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSession(cmd.Context(), false)
	},
}

func registerRunFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&runEpic, "epic", "", "only select tasks under this parent/epic id")
	cmd.Flags().StringVar(&runPRD, "prd", "", "path to a PRD file used to seed the tracker (tracker-specific)")
	cmd.Flags().StringVar(&runAgent, "agent", "claude", "agent runner plugin id")
	cmd.Flags().StringVar(&runModel, "model", "", "model override passed to the agent runner")
	cmd.Flags().StringVar(&runTracker, "tracker", "beads", "tracker plugin id")
	cmd.Flags().IntVar(&runIterations, "iterations", 0, "iteration cap (0 = unlimited)")
	cmd.Flags().BoolVar(&runHeadless, "headless", false, "suppress per-event console output")
	cmd.Flags().BoolVar(&runNoSetup, "no-setup", false, "fail instead of launching the interactive setup wizard for missing plugin answers")
	cmd.Flags().BoolVar(&runForce, "force", false, "adopt a live session lock instead of failing with session_locked")
}

func init() {
	registerRunFlags(runCmd)
	rootCmd.AddCommand(runCmd)
}

// runSession implements both `ralph run` and `ralph resume`; resume
// differs in reusing the session id from the latest snapshot (when one
// is readable) and in starting the engine at session.ResumeState()
// instead of the default Ready (spec.md §9: "resume reads the latest
// snapshot and re-enters at Ready, then restores the state as Paused").
func runSession(ctx context.Context, resuming bool) error {
	cwd, err := resolveCwd()
	if err != nil {
		return fail(1, err)
	}
	if err := ensureSessionDir(cwd); err != nil {
		return fail(1, err)
	}

	if err := session.AcquireLock(lockPath(cwd), runForce); err != nil {
		if locked, ok := err.(session.ErrLocked); ok {
			return fail(3, fmt.Errorf("%w (pass --force to adopt)", locked))
		}
		return fail(1, err)
	}
	defer session.ReleaseLock(lockPath(cwd))

	override, err := session.LoadOverride(cwd)
	if err != nil {
		return fail(1, err)
	}

	reg := registry.New()
	if err := registry.RegisterBuiltins(reg); err != nil {
		return fail(1, err)
	}

	rn, err := resolveRunner(reg, runAgent, setupAnswersPath(cwd), runNoSetup)
	if err != nil {
		return classifyPluginErr(err)
	}

	trk, err := reg.Tracker(runTracker, map[string]string{})
	if err != nil {
		return fail(1, err)
	}
	defer trk.Close()

	cfg := engine.NewConfig()
	cfg.Cwd = cwd
	cfg.Model = runModel
	cfg.IterationCap = runIterations
	if runEpic != "" {
		cfg.TaskFilter = tracker.Filter{ParentID: runEpic}
	}
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

	sessionID := uuid.New().String()
	if resuming {
		if snap, err := session.ReadSnapshot(snapshotPath(cwd)); err == nil && snap.SessionID != "" {
			sessionID = snap.SessionID
		}
	}

	bus := events.NewBus()
	eng := engine.New(sessionID, trk, rn, bus, cfg)
	if resuming {
		eng.RestoreState(session.ResumeState())
	}

	auditLog, err := audit.Open(auditPath(cwd))
	if err != nil {
		return fail(1, err)
	}
	defer auditLog.Close()
	go auditLog.Subscribe(bus.Subscribe(), "ralph-cli")

	go writeSnapshotsOnFinish(bus.Subscribe(), sessionID, cwd, eng)

	if !runHeadless {
		go displayEvents(bus.Subscribe())
	}

	srv, err := control.NewServer(socketPath(cwd), control.EngineHandler(eng))
	if err != nil {
		return fail(1, err)
	}
	if err := srv.Start(ctx); err != nil {
		return fail(1, err)
	}
	defer srv.Stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		if _, ok := <-sigCh; ok {
			eng.Stop()
		}
	}()

	fatalCh := make(chan *events.FatalErrorPayload, 1)
	go watchFatal(bus.Subscribe(), fatalCh)

	go eng.Start(ctx)
	<-eng.Done()
	bus.Close()

	select {
	case fe := <-fatalCh:
		return exitForFatal(fe)
	default:
		return nil
	}
}

// resolveRunner resolves agentID through reg, running the interactive
// setup wizard once and persisting its answers when none are on file
// yet and noSetup was not requested.
func resolveRunner(reg *registry.Registry, agentID, answersPath string, noSetup bool) (runner.Runner, error) {
	pa, err := loadPluginAnswers(answersPath)
	if err != nil {
		return nil, err
	}

	answers, ok := pa[agentID]
	if !ok {
		if noSetup {
			return nil, fmt.Errorf("no saved setup answers for agent %q; run 'ralph setup %s' or omit --no-setup", agentID, agentID)
		}
		rn, err := reg.Runner(agentID, map[string]string{})
		if err != nil {
			return nil, err
		}
		answers, err = runSetupWizard(rn)
		if err != nil {
			return nil, err
		}
		pa[agentID] = answers
		if err := savePluginAnswers(answersPath, pa); err != nil {
			return nil, err
		}
	}

	return reg.Runner(agentID, answers)
}

func exitForFatal(fe *events.FatalErrorPayload) error {
	switch fe.Kind {
	case types.ErrorMissingBinary:
		return fail(4, fmt.Errorf("%s", fe.Message))
	case types.ErrorAuth:
		return fail(5, fmt.Errorf("%s", fe.Message))
	default:
		return fail(1, fmt.Errorf("%s", fe.Message))
	}
}

// classifyPluginErr maps a plugin-resolution failure to exit code 4
// when the underlying cause looks like a missing vendor binary, so
// `ralph run` exits 4 even before the engine ever reaches EXECUTE.
func classifyPluginErr(err error) error {
	if errors.Is(err, exec.ErrNotFound) {
		return fail(4, err)
	}
	return fail(1, err)
}

func watchFatal(sub *events.Subscriber, out chan<- *events.FatalErrorPayload) {
	for ev := range sub.Events() {
		if ev.Type == events.EventFatalError && ev.FatalError != nil {
			select {
			case out <- ev.FatalError:
			default:
			}
		}
	}
}

func writeSnapshotsOnFinish(sub *events.Subscriber, sessionID, cwd string, eng *engine.Engine) {
	for ev := range sub.Events() {
		if ev.Type != events.EventIterationFinished || ev.IterationFinished == nil {
			continue
		}
		hist := eng.History()
		snap := session.Snapshot{
			SessionID:       sessionID,
			WorkDir:         cwd,
			IterationCount:  len(hist),
			LastOutcome:     ev.IterationFinished.Outcome,
			LastTaskID:      ev.IterationFinished.TaskID,
			EngineStateKind: eng.State().Kind,
		}
		if err := session.WriteSnapshot(snapshotPath(cwd), snap); err != nil {
			fmt.Fprintf(os.Stderr, "ralph: write snapshot: %v\n", err)
		}
	}
}
