// Package session manages the on-disk state that ties one Engine to
// one working directory: the exclusive lock file guarding "at most one
// live session per working directory" (spec.md §3), the atomically
// written/read status snapshot used by `ralph resume`, and an optional
// per-directory ralph.toml override.
//
// Grounded on steveyegge-vc/internal/storage/lock.go's ExclusiveLock
// (JSON lock file carrying holder/pid/hostname/started_at, liveness
// checked via os.FindProcess + signal 0, EPERM treated as alive)
// generalized from a single hardcoded `.beads/.exclusive-lock` path to
// an arbitrary session lock path, and from "overwrite if stale" to the
// spec's stronger create-new-only-then-adopt-on-staleness contract.
package session

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"syscall"
	"time"
)

// Lock describes the process currently holding a session's lock file.
type Lock struct {
	PID       int       `json:"pid"`
	Hostname  string    `json:"hostname"`
	StartedAt time.Time `json:"started_at"`
}

// AcquireLock creates path with exclusive (create-new-only) semantics.
// If path already exists, the existing holder's liveness is checked:
// a dead holder's lock is adopted (rewritten) only when force is true
// or the holder has already exited; a live holder without force
// returns ErrLocked (spec.md §3: "if live and --force not set, fail
// with session_locked").
func AcquireLock(path string, force bool) error {
	lock := Lock{PID: os.Getpid(), StartedAt: time.Now()}
	if hostname, err := os.Hostname(); err == nil {
		lock.Hostname = hostname
	}
	data, err := json.MarshalIndent(lock, "", "  ")
	if err != nil {
		return fmt.Errorf("session: marshal lock: %w", err)
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
	if err == nil {
		defer f.Close()
		_, werr := f.Write(data)
		return werr
	}
	if !os.IsExist(err) {
		return fmt.Errorf("session: create lock %s: %w", path, err)
	}

	existing, readErr := ReadLock(path)
	if readErr == nil && !force && existing.isAlive() {
		return ErrLocked{Path: path, Holder: existing}
	}

	// Stale or forced: overwrite in place.
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("session: adopt lock %s: %w", path, err)
	}
	return nil
}

// ReadLock reads and parses an existing lock file.
func ReadLock(path string) (Lock, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Lock{}, err
	}
	var l Lock
	if err := json.Unmarshal(data, &l); err != nil {
		return Lock{}, fmt.Errorf("session: parse lock %s: %w", path, err)
	}
	return l, nil
}

// ReleaseLock removes path. Removing an already-absent lock is not an
// error (spec.md's "released on graceful stop, best-effort on crash").
func ReleaseLock(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("session: remove lock %s: %w", path, err)
	}
	return nil
}

// ErrLocked is returned by AcquireLock when a live process already
// holds the session's lock.
type ErrLocked struct {
	Path   string
	Holder Lock
}

func (e ErrLocked) Error() string {
	return fmt.Sprintf("session_locked: %s held by pid %d on %s since %s",
		e.Path, e.Holder.PID, e.Holder.Hostname, e.Holder.StartedAt.Format(time.RFC3339))
}

// isAlive reports whether l's PID still exists on its recorded
// hostname. A remote hostname, or EPERM from signal delivery, is
// treated as alive since liveness cannot be disproven from here.
func (l Lock) isAlive() bool {
	currentHost, err := os.Hostname()
	if err != nil {
		return true
	}
	if !strings.EqualFold(l.Hostname, currentHost) {
		return true
	}
	proc, err := os.FindProcess(l.PID)
	if err != nil {
		return false
	}
	switch err := proc.Signal(syscall.Signal(0)); {
	case err == nil:
		return true
	case err == syscall.EPERM:
		return true
	default:
		return false
	}
}
