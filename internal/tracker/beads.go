package tracker

import (
	"context"
	"fmt"
	"strings"

	beadsLib "github.com/steveyegge/beads"

	"github.com/ralphctl/ralph/internal/types"
)

// Status string constants Beads' own issue schema uses, grounded on
// steveyegge-vc/internal/types.Status (internal/types/types.go) and
// its beadsIssueToVC/vcIssueToBeads conversion
// (internal/storage/beads/wrapper.go).
const (
	beadsStatusOpen       = "open"
	beadsStatusInProgress = "in_progress"
	beadsStatusBlocked    = "blocked"
	beadsStatusClosed     = "closed"
)

func toBeadsStatus(s types.TaskStatus) beadsLib.Status {
	switch s {
	case types.TaskStatusPending:
		return beadsLib.Status(beadsStatusOpen)
	case types.TaskStatusInProgress:
		return beadsLib.Status(beadsStatusInProgress)
	case types.TaskStatusBlocked:
		return beadsLib.Status(beadsStatusBlocked)
	case types.TaskStatusCompleted, types.TaskStatusCancelled:
		return beadsLib.Status(beadsStatusClosed)
	default:
		return beadsLib.Status(beadsStatusOpen)
	}
}

func fromBeadsStatus(s beadsLib.Status, cancelled bool) types.TaskStatus {
	switch string(s) {
	case beadsStatusOpen:
		return types.TaskStatusPending
	case beadsStatusInProgress:
		return types.TaskStatusInProgress
	case beadsStatusBlocked:
		return types.TaskStatusBlocked
	case beadsStatusClosed:
		if cancelled {
			return types.TaskStatusCancelled
		}
		return types.TaskStatusCompleted
	default:
		return types.TaskStatusPending
	}
}

// BeadsTracker adapts the external Beads issue-tracking library (a
// third-party store of record, not owned by this repo) to the Tracker
// contract. Grounded on steveyegge-vc/internal/storage/beads/
// wrapper.go and methods.go's GetIssue/GetReadyWork/UpdateIssue/
// CloseIssue/GetDependencyRecords, but drops the VC-extension-table
// machinery (mission state, subtype, agent event audit tables) that
// wrapper.go layers on top of Beads, since Ralph's Task model has no
// mission concept — it is Beads used as a plain issue tracker.
type BeadsTracker struct {
	store    beadsLib.Storage
	dbPath   string
	fetchSeq uint64
}

var _ Tracker = (*BeadsTracker)(nil)

// NewBeadsTracker opens (and if needed creates) a Beads SQLite database
// at dbPath, ensuring the issue_prefix config Beads requires for ID
// generation is set.
func NewBeadsTracker(ctx context.Context, dbPath, issuePrefix string) (*BeadsTracker, error) {
	store, err := beadsLib.NewSQLiteStorage(dbPath)
	if err != nil {
		return nil, fmt.Errorf("beads tracker: open %s: %w", dbPath, err)
	}
	if prefix, err := store.GetConfig(ctx, "issue_prefix"); err != nil || prefix == "" {
		if issuePrefix == "" {
			issuePrefix = "ralph"
		}
		if err := store.SetConfig(ctx, "issue_prefix", issuePrefix); err != nil {
			store.Close()
			return nil, fmt.Errorf("beads tracker: set issue_prefix: %w", err)
		}
	}
	return &BeadsTracker{store: store, dbPath: dbPath}, nil
}

func (t *BeadsTracker) ID() string { return "beads" }

func (t *BeadsTracker) Close() error { return t.store.Close() }

// GetTasks resolves filter against Beads' ready-work query. Label and
// parent filtering are applied client-side since beadsLib.WorkFilter
// carries only status/priority/limit/sort-policy.
func (t *BeadsTracker) GetTasks(ctx context.Context, filter Filter) ([]*types.Task, error) {
	wf := beadsLib.WorkFilter{
		Status:     toBeadsStatus(orDefault(filter.Status, types.TaskStatusPending)),
		Limit:      filter.Limit,
		SortPolicy: beadsLib.SortPolicy("priority"),
	}

	issues, err := t.store.GetReadyWork(ctx, wf)
	if err != nil {
		return nil, fmt.Errorf("beads tracker: get ready work: %w", err)
	}

	t.fetchSeq++
	seq := t.fetchSeq

	out := make([]*types.Task, 0, len(issues))
	for _, iss := range issues {
		if filter.Assignee != "" && iss.Assignee != filter.Assignee {
			continue
		}
		if len(filter.Labels) > 0 {
			labels, err := t.store.GetLabels(ctx, iss.ID)
			if err != nil {
				return nil, fmt.Errorf("beads tracker: get labels for %s: %w", iss.ID, err)
			}
			if !hasAllLabels(labels, filter.Labels) {
				continue
			}
		}
		task, err := t.toTask(ctx, iss, seq)
		if err != nil {
			return nil, err
		}
		if filter.ParentID != "" && task.ParentID != filter.ParentID {
			continue
		}
		out = append(out, task)
	}
	return out, nil
}

func (t *BeadsTracker) CompleteTask(ctx context.Context, id string, reason string) (Result, error) {
	iss, err := t.store.GetIssue(ctx, id)
	if err != nil {
		return Result{}, fmt.Errorf("beads tracker: get issue %s: %w", id, err)
	}
	if string(iss.Status) == beadsStatusClosed {
		return Result{OK: true, Message: "task " + id + " was already complete"}, nil
	}
	if err := t.store.CloseIssue(ctx, id, reason, "ralph"); err != nil {
		return Result{}, fmt.Errorf("beads tracker: close issue %s: %w", id, err)
	}
	return Result{OK: true, Message: "task " + id + " completed"}, nil
}

func (t *BeadsTracker) UpdateTaskStatus(ctx context.Context, id string, status types.TaskStatus) (*types.Task, error) {
	if _, err := t.store.GetIssue(ctx, id); err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("beads tracker: get issue %s: %w", id, err)
	}
	if status == types.TaskStatusCompleted || status == types.TaskStatusCancelled {
		if err := t.store.CloseIssue(ctx, id, string(status), "ralph"); err != nil {
			return nil, fmt.Errorf("beads tracker: close issue %s: %w", id, err)
		}
	} else {
		updates := map[string]interface{}{"status": string(toBeadsStatus(status))}
		if err := t.store.UpdateIssue(ctx, id, updates, "ralph"); err != nil {
			return nil, fmt.Errorf("beads tracker: update issue %s: %w", id, err)
		}
	}
	iss, err := t.store.GetIssue(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("beads tracker: reload issue %s: %w", id, err)
	}
	t.fetchSeq++
	return t.toTask(ctx, iss, t.fetchSeq)
}

// Sync is a no-op: Beads writes through to SQLite on every call, so
// there is no buffered state to flush.
func (t *BeadsTracker) Sync(ctx context.Context) (Result, error) {
	return Result{OK: true, Message: "beads writes through; nothing to sync"}, nil
}

// toTask loads an issue's dependency records to populate Dependencies
// (DepBlocks) and ParentID (DepParentChild), mirroring how
// wrapper.go's GetDependencyRecords separates the two relationship
// kinds Beads stores in one table.
func (t *BeadsTracker) toTask(ctx context.Context, iss *beadsLib.Issue, seq uint64) (*types.Task, error) {
	recs, err := t.store.GetDependencyRecords(ctx, iss.ID)
	if err != nil {
		return nil, fmt.Errorf("beads tracker: dependency records for %s: %w", iss.ID, err)
	}
	task := &types.Task{
		ID:          iss.ID,
		Title:       iss.Title,
		Description: iss.Description,
		Priority:    iss.Priority,
		Status:      fromBeadsStatus(iss.Status, false),
		FetchSeq:    seq,
	}
	for _, d := range recs {
		switch string(d.Type) {
		case "blocks":
			task.Dependencies = append(task.Dependencies, d.DependsOnID)
		case "parent-child":
			task.ParentID = d.DependsOnID
		}
	}
	return task, nil
}

func orDefault(s types.TaskStatus, def types.TaskStatus) types.TaskStatus {
	if s == "" {
		return def
	}
	return s
}

func hasAllLabels(have, want []string) bool {
	set := make(map[string]bool, len(have))
	for _, l := range have {
		set[l] = true
	}
	for _, w := range want {
		if !set[w] {
			return false
		}
	}
	return true
}

func isNotFound(err error) bool {
	return err != nil && strings.Contains(strings.ToLower(err.Error()), "not found")
}
