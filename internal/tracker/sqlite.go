package tracker

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/ncruces/go-sqlite3/embed"  // pure-Go sqlite3 build, no cgo
	_ "github.com/ncruces/go-sqlite3/driver" // registers the "sqlite3" database/sql driver

	"github.com/google/uuid"

	"github.com/ralphctl/ralph/internal/types"
)

// schema mirrors the shape of steveyegge-vc's vc_mission_state/issues
// extension tables (internal/storage/beads/wrapper.go's
// vcExtensionTableSchema) scaled down to what a standalone tracker
// needs: one flat tasks table plus a label join table, no Beads core
// tables underneath it.
const schema = `
CREATE TABLE IF NOT EXISTS tasks (
	id            TEXT PRIMARY KEY,
	title         TEXT NOT NULL,
	description   TEXT NOT NULL DEFAULT '',
	priority      INTEGER NOT NULL DEFAULT 0,
	status        TEXT NOT NULL DEFAULT 'pending',
	parent_id     TEXT NOT NULL DEFAULT '',
	assignee      TEXT NOT NULL DEFAULT '',
	created_at    DATETIME NOT NULL,
	updated_at    DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS task_dependencies (
	task_id       TEXT NOT NULL,
	depends_on_id TEXT NOT NULL,
	PRIMARY KEY (task_id, depends_on_id)
);

CREATE TABLE IF NOT EXISTS task_labels (
	task_id TEXT NOT NULL,
	label   TEXT NOT NULL,
	PRIMARY KEY (task_id, label)
);

CREATE INDEX IF NOT EXISTS idx_tasks_status ON tasks(status);
CREATE INDEX IF NOT EXISTS idx_tasks_parent ON tasks(parent_id);
`

// SQLiteTracker is the embedded, dependency-free Tracker implementation
// for standalone sessions that have no external issue tracker — the
// counterpart to BeadsTracker, grounded on the same VCStorage shape
// (open db, ensure schema, query/mutate through database/sql) but
// without delegating to an external library.
type SQLiteTracker struct {
	db *sql.DB
}

var _ Tracker = (*SQLiteTracker)(nil)

// NewSQLiteTracker opens (and initializes if needed) a standalone task
// database at dbPath.
func NewSQLiteTracker(ctx context.Context, dbPath string) (*SQLiteTracker, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("sqlite tracker: open %s: %w", dbPath, err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite tracker: create schema: %w", err)
	}
	return &SQLiteTracker{db: db}, nil
}

func (t *SQLiteTracker) ID() string { return "sqlite" }

func (t *SQLiteTracker) Close() error { return t.db.Close() }

func (t *SQLiteTracker) GetTasks(ctx context.Context, filter Filter) ([]*types.Task, error) {
	status := filter.Status
	if status == "" {
		status = types.TaskStatusPending
	}

	query := `SELECT id, title, description, priority, status, parent_id FROM tasks WHERE status = ?`
	args := []any{string(status)}
	if filter.Assignee != "" {
		query += " AND assignee = ?"
		args = append(args, filter.Assignee)
	}
	if filter.ParentID != "" {
		query += " AND parent_id = ?"
		args = append(args, filter.ParentID)
	}
	query += " ORDER BY priority DESC, created_at ASC"
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
	}

	rows, err := t.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite tracker: query tasks: %w", err)
	}
	defer rows.Close()

	var out []*types.Task
	for rows.Next() {
		task := &types.Task{}
		var status string
		if err := rows.Scan(&task.ID, &task.Title, &task.Description, &task.Priority, &status, &task.ParentID); err != nil {
			return nil, fmt.Errorf("sqlite tracker: scan task: %w", err)
		}
		task.Status = types.TaskStatus(status)
		out = append(out, task)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	filtered := out[:0]
	for _, task := range out {
		if len(filter.Labels) > 0 {
			labels, err := t.labelsFor(ctx, task.ID)
			if err != nil {
				return nil, err
			}
			if !hasAllLabels(labels, filter.Labels) {
				continue
			}
		}
		deps, err := t.dependenciesFor(ctx, task.ID)
		if err != nil {
			return nil, err
		}
		task.Dependencies = deps
		filtered = append(filtered, task)
	}

	seq, err := t.nextFetchSeq(ctx)
	if err != nil {
		return nil, err
	}
	for _, task := range filtered {
		task.FetchSeq = seq
	}
	return filtered, nil
}

func (t *SQLiteTracker) CompleteTask(ctx context.Context, id string, reason string) (Result, error) {
	var status string
	err := t.db.QueryRowContext(ctx, `SELECT status FROM tasks WHERE id = ?`, id).Scan(&status)
	if err == sql.ErrNoRows {
		return Result{}, fmt.Errorf("sqlite tracker: task %s not found", id)
	}
	if err != nil {
		return Result{}, fmt.Errorf("sqlite tracker: lookup task %s: %w", id, err)
	}
	if status == string(types.TaskStatusCompleted) {
		return Result{OK: true, Message: "task " + id + " was already complete"}, nil
	}
	_, err = t.db.ExecContext(ctx,
		`UPDATE tasks SET status = ?, updated_at = ? WHERE id = ?`,
		string(types.TaskStatusCompleted), nowUTC(), id)
	if err != nil {
		return Result{}, fmt.Errorf("sqlite tracker: complete task %s: %w", id, err)
	}
	return Result{OK: true, Message: "task " + id + " completed: " + reason}, nil
}

func (t *SQLiteTracker) UpdateTaskStatus(ctx context.Context, id string, status types.TaskStatus) (*types.Task, error) {
	res, err := t.db.ExecContext(ctx,
		`UPDATE tasks SET status = ?, updated_at = ? WHERE id = ?`,
		string(status), nowUTC(), id)
	if err != nil {
		return nil, fmt.Errorf("sqlite tracker: update task %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, nil
	}

	task := &types.Task{}
	var st string
	err = t.db.QueryRowContext(ctx,
		`SELECT id, title, description, priority, status, parent_id FROM tasks WHERE id = ?`, id,
	).Scan(&task.ID, &task.Title, &task.Description, &task.Priority, &st, &task.ParentID)
	if err != nil {
		return nil, fmt.Errorf("sqlite tracker: reload task %s: %w", id, err)
	}
	task.Status = types.TaskStatus(st)
	deps, err := t.dependenciesFor(ctx, id)
	if err != nil {
		return nil, err
	}
	task.Dependencies = deps
	seq, err := t.nextFetchSeq(ctx)
	if err != nil {
		return nil, err
	}
	task.FetchSeq = seq
	return task, nil
}

// Sync checkpoints the WAL and is otherwise a no-op: every mutation
// above already commits synchronously.
func (t *SQLiteTracker) Sync(ctx context.Context) (Result, error) {
	if _, err := t.db.ExecContext(ctx, "PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		return Result{}, fmt.Errorf("sqlite tracker: checkpoint: %w", err)
	}
	return Result{OK: true}, nil
}

// CreateTask is a standalone-tracker-only convenience for seeding a
// backlog (no `ralph` command calls it); it has no counterpart in the
// Tracker interface since Beads owns issue creation on its side.
func (t *SQLiteTracker) CreateTask(ctx context.Context, task *types.Task) error {
	if task.ID == "" {
		task.ID = uuid.NewString()
	}
	if err := task.Validate(); err != nil {
		return err
	}
	now := nowUTC()
	_, err := t.db.ExecContext(ctx,
		`INSERT INTO tasks (id, title, description, priority, status, parent_id, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		task.ID, task.Title, task.Description, task.Priority, string(task.Status), task.ParentID, now, now)
	if err != nil {
		return fmt.Errorf("sqlite tracker: insert task %s: %w", task.ID, err)
	}
	for _, dep := range task.Dependencies {
		if _, err := t.db.ExecContext(ctx,
			`INSERT OR IGNORE INTO task_dependencies (task_id, depends_on_id) VALUES (?, ?)`,
			task.ID, dep); err != nil {
			return fmt.Errorf("sqlite tracker: insert dependency %s->%s: %w", task.ID, dep, err)
		}
	}
	return nil
}

func (t *SQLiteTracker) labelsFor(ctx context.Context, taskID string) ([]string, error) {
	rows, err := t.db.QueryContext(ctx, `SELECT label FROM task_labels WHERE task_id = ?`, taskID)
	if err != nil {
		return nil, fmt.Errorf("sqlite tracker: labels for %s: %w", taskID, err)
	}
	defer rows.Close()
	var labels []string
	for rows.Next() {
		var l string
		if err := rows.Scan(&l); err != nil {
			return nil, err
		}
		labels = append(labels, l)
	}
	return labels, rows.Err()
}

func (t *SQLiteTracker) dependenciesFor(ctx context.Context, taskID string) ([]string, error) {
	rows, err := t.db.QueryContext(ctx, `SELECT depends_on_id FROM task_dependencies WHERE task_id = ?`, taskID)
	if err != nil {
		return nil, fmt.Errorf("sqlite tracker: dependencies for %s: %w", taskID, err)
	}
	defer rows.Close()
	var deps []string
	for rows.Next() {
		var d string
		if err := rows.Scan(&d); err != nil {
			return nil, err
		}
		deps = append(deps, d)
	}
	return deps, rows.Err()
}

// nextFetchSeq increments and returns a monotonic sequence counter
// stored in a one-row table, so FetchSeq survives process restarts
// (the engine never compares Tasks fetched under different restarts'
// sequences as if they were the same snapshot).
func (t *SQLiteTracker) nextFetchSeq(ctx context.Context) (uint64, error) {
	_, err := t.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS fetch_seq (id INTEGER PRIMARY KEY CHECK (id = 1), value INTEGER NOT NULL)
	`)
	if err != nil {
		return 0, err
	}
	_, err = t.db.ExecContext(ctx, `
		INSERT INTO fetch_seq (id, value) VALUES (1, 1)
		ON CONFLICT(id) DO UPDATE SET value = value + 1
	`)
	if err != nil {
		return 0, err
	}
	var seq uint64
	if err := t.db.QueryRowContext(ctx, `SELECT value FROM fetch_seq WHERE id = 1`).Scan(&seq); err != nil {
		return 0, err
	}
	return seq, nil
}

func nowUTC() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}
