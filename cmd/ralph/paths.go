package main

import (
	"os"
	"path/filepath"
)

// sessionDirName is the per-working-directory state directory holding
// the session lock, snapshot, control socket, audit log, and persisted
// setup answers (spec.md §5 "session lock", §9 "persisted session
// state").
const sessionDirName = ".ralph"

func resolveCwd() (string, error) {
	if cwdFlag != "" {
		return filepath.Abs(cwdFlag)
	}
	return os.Getwd()
}

func sessionDir(cwd string) string        { return filepath.Join(cwd, sessionDirName) }
func lockPath(cwd string) string          { return filepath.Join(sessionDir(cwd), "session.lock") }
func snapshotPath(cwd string) string      { return filepath.Join(sessionDir(cwd), "snapshot.json") }
func socketPath(cwd string) string        { return filepath.Join(sessionDir(cwd), "session.sock") }
func auditPath(cwd string) string         { return filepath.Join(sessionDir(cwd), "audit.jsonl") }
func setupAnswersPath(cwd string) string  { return filepath.Join(sessionDir(cwd), "setup.yaml") }

func ensureSessionDir(cwd string) error {
	return os.MkdirAll(sessionDir(cwd), 0755)
}
