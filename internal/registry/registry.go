// Package registry holds the built-in and user-supplied plugin
// factories for Agent Runners and Trackers, and resolves them by id
// for session configuration.
package registry

import (
	"fmt"
	"sort"
	"sync"

	"golang.org/x/mod/semver"

	"github.com/ralphctl/ralph/internal/runner"
	"github.com/ralphctl/ralph/internal/tracker"
)

// RunnerFactory constructs a fresh runner.Runner from setup answers.
// Answers are the validated map from a prior SetupQuestions() round.
type RunnerFactory func(answers map[string]string) (runner.Runner, error)

// TrackerFactory constructs a fresh tracker.Tracker from setup answers.
type TrackerFactory func(answers map[string]string) (tracker.Tracker, error)

// entry pairs a factory with the minimum vendor-CLI version (if any)
// the plugin author declared compatible, mirroring the teacher's
// version-gated plugin loading idiom.
type runnerEntry struct {
	factory    RunnerFactory
	meta       runner.Meta
	minVersion string // semver, e.g. "v1.2.0"; empty = no constraint
}

type trackerEntry struct {
	factory TrackerFactory
	id      string
}

// Registry holds every known Agent Runner and Tracker factory, built-in
// or user-registered. Grounded on the teacher's plugin-selection
// pattern in cmd/vc (flag-driven id resolution) generalized into an
// explicit data structure instead of a switch statement, since
// SPEC_FULL.md requires users to register their own plugins at
// runtime.
type Registry struct {
	mu       sync.RWMutex
	runners  map[string]runnerEntry
	trackers map[string]trackerEntry
}

// New returns an empty registry. Call RegisterBuiltins to add the
// shipped Claude/OpenCode/Droid runners and beads/sqlite trackers.
func New() *Registry {
	return &Registry{
		runners:  make(map[string]runnerEntry),
		trackers: make(map[string]trackerEntry),
	}
}

// RegisterRunner adds (or replaces) a runner factory under id. minVersion,
// if non-empty, must be a valid semver string (e.g. "v1.4.0"); setup
// answers supplying a lower "vendor_version" value than this are
// rejected by Runner (see validateMinVersion).
func (r *Registry) RegisterRunner(id string, meta runner.Meta, minVersion string, factory RunnerFactory) error {
	if id == "" {
		return fmt.Errorf("registry: runner id is required")
	}
	if minVersion != "" && !semver.IsValid(minVersion) {
		return fmt.Errorf("registry: runner %s: invalid min_version %q", id, minVersion)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.runners[id] = runnerEntry{factory: factory, meta: meta, minVersion: minVersion}
	return nil
}

// RegisterTracker adds (or replaces) a tracker factory under id.
func (r *Registry) RegisterTracker(id string, factory TrackerFactory) error {
	if id == "" {
		return fmt.Errorf("registry: tracker id is required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.trackers[id] = trackerEntry{factory: factory, id: id}
	return nil
}

// Runner resolves id to a constructed runner.Runner, validating answers
// against the plugin's own ValidateSetup and any registered
// min_version constraint first.
func (r *Registry) Runner(id string, answers map[string]string) (runner.Runner, error) {
	r.mu.RLock()
	entry, ok := r.runners[id]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("registry: unknown agent plugin %q", id)
	}
	if err := r.validateMinVersion(entry.minVersion, answers); err != nil {
		return nil, err
	}
	rn, err := entry.factory(answers)
	if err != nil {
		return nil, fmt.Errorf("registry: construct runner %s: %w", id, err)
	}
	if err := rn.ValidateSetup(answers); err != nil {
		return nil, fmt.Errorf("registry: runner %s: invalid setup: %w", id, err)
	}
	return rn, nil
}

// Tracker resolves id to a constructed tracker.Tracker.
func (r *Registry) Tracker(id string, answers map[string]string) (tracker.Tracker, error) {
	r.mu.RLock()
	entry, ok := r.trackers[id]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("registry: unknown tracker plugin %q", id)
	}
	return entry.factory(answers)
}

// RunnerMeta returns the registered metadata for id without
// constructing the plugin, for `ralph plugins agents` listing.
func (r *Registry) RunnerMeta(id string) (runner.Meta, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entry, ok := r.runners[id]
	return entry.meta, ok
}

// RunnerIDs returns every registered runner id, sorted.
func (r *Registry) RunnerIDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.runners))
	for id := range r.runners {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// TrackerIDs returns every registered tracker id, sorted.
func (r *Registry) TrackerIDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.trackers))
	for id := range r.trackers {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// validateMinVersion checks an optional "vendor_version" setup answer
// against the plugin's declared minimum, using golang.org/x/mod/semver
// the way the teacher gates tool compatibility elsewhere in its
// module-aware tooling.
func (r *Registry) validateMinVersion(minVersion string, answers map[string]string) error {
	if minVersion == "" {
		return nil
	}
	got := answers["vendor_version"]
	if got == "" {
		return nil // no version reported; nothing to gate
	}
	if !semver.IsValid(got) {
		return fmt.Errorf("registry: vendor_version %q is not valid semver", got)
	}
	if semver.Compare(got, minVersion) < 0 {
		return fmt.Errorf("registry: vendor_version %s is below required minimum %s", got, minVersion)
	}
	return nil
}
