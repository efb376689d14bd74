// Package audit implements the append-only JSONL audit log (spec.md
// §4.6): one record per control action or engine event of interest,
// rotated at 10 MiB, writes best-effort and never blocking the engine.
//
// Grounded on the teacher's pervasive fire-and-forget
// fmt.Fprintf(os.Stderr, ...) best-effort-write idiom (seen throughout
// internal/executor/agent.go's event recording calls), generalized
// into a dedicated rotating JSONL writer fed from internal/events.Bus
// rather than the teacher's direct inline calls.
package audit

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/ralphctl/ralph/internal/events"
	"github.com/ralphctl/ralph/internal/types"
)

// maxLogBytes is the rotation threshold (spec.md §4.6: "rotate when
// file exceeds 10 MiB").
const maxLogBytes = 10 * 1024 * 1024

// Record is one audit log entry.
type Record struct {
	TS        time.Time      `json:"ts"`
	ClientID  string         `json:"client_id"`
	Action    string         `json:"action"`
	Success   bool           `json:"success"`
	Error     string         `json:"error,omitempty"`
	Details   map[string]any `json:"details,omitempty"`
}

// Log is an append-only, rotating JSONL writer. Zero value is not
// usable; construct with Open.
type Log struct {
	path string

	mu   sync.Mutex
	file *os.File
	size int64
}

// Open creates (or appends to) the log file at path, creating parent
// directories as needed.
func Open(path string) (*Log, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("audit: create log directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("audit: open %s: %w", path, err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("audit: stat %s: %w", path, err)
	}
	return &Log{path: path, file: f, size: info.Size()}, nil
}

// Write appends one record as a single JSON line, rotating first if
// the file is already over maxLogBytes. A marshal or write failure is
// reported but never panics: audit records are best-effort (spec.md
// §4.6: "losing audit records must never block the engine").
func (l *Log) Write(rec Record) error {
	if rec.TS.IsZero() {
		rec.TS = time.Now()
	}
	line, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("audit: marshal record: %w", err)
	}
	line = append(line, '\n')

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.size+int64(len(line)) > maxLogBytes {
		if err := l.rotateLocked(); err != nil {
			fmt.Fprintf(os.Stderr, "audit: rotate %s: %v\n", l.path, err)
		}
	}

	n, err := l.file.Write(line)
	l.size += int64(n)
	if err != nil {
		return fmt.Errorf("audit: write record: %w", err)
	}
	return nil
}

// rotateLocked renames the current file to <path>.old (replacing any
// prior .old) and opens a fresh file in its place. Caller must hold l.mu.
func (l *Log) rotateLocked() error {
	if err := l.file.Close(); err != nil {
		return err
	}
	oldPath := l.path + ".old"
	if err := os.Rename(l.path, oldPath); err != nil {
		return err
	}
	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	l.file = f
	l.size = 0
	return nil
}

// Close flushes and closes the underlying file.
func (l *Log) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.file.Close()
}

// Subscribe drains sub and writes one Record per event until sub's
// channel closes (the bus was closed). Intended to run in its own
// goroutine for the lifetime of a session.
func (l *Log) Subscribe(sub *events.Subscriber, clientID string) {
	for ev := range sub.Events() {
		rec := recordFor(clientID, ev)
		if err := l.Write(rec); err != nil {
			fmt.Fprintf(os.Stderr, "audit: %v\n", err)
		}
	}
}

func recordFor(clientID string, ev events.Event) Record {
	rec := Record{TS: ev.Timestamp, ClientID: clientID, Action: string(ev.Type), Success: true}

	switch ev.Type {
	case events.EventFatalError:
		rec.Success = false
		if ev.FatalError != nil {
			rec.Error = ev.FatalError.Message
			rec.Details = map[string]any{"kind": string(ev.FatalError.Kind), "hint": ev.FatalError.Hint}
		}
	case events.EventDetectorFired:
		if ev.DetectorFired != nil {
			rec.Details = map[string]any{
				"iteration_number": ev.DetectorFired.IterationNumber,
				"detector":         string(ev.DetectorFired.Detector),
				"detail":           ev.DetectorFired.Detail,
			}
		}
	case events.EventIterationFinished:
		if ev.IterationFinished != nil {
			rec.Success = ev.IterationFinished.Outcome != types.OutcomeError
			rec.Details = map[string]any{
				"number":  ev.IterationFinished.Number,
				"task_id": ev.IterationFinished.TaskID,
				"outcome": string(ev.IterationFinished.Outcome),
			}
		}
	case events.EventStateChanged:
		if ev.StateChanged != nil {
			rec.Details = map[string]any{
				"from": string(ev.StateChanged.From.Kind),
				"to":   string(ev.StateChanged.To.Kind),
			}
		}
	}
	return rec
}
