package session

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAcquireLockCreatesNewLock(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.lock")

	require.NoError(t, AcquireLock(path, false))

	lock, err := ReadLock(path)
	require.NoError(t, err)
	assert.Equal(t, os.Getpid(), lock.PID)
	assert.WithinDuration(t, time.Now(), lock.StartedAt, 5*time.Second)
}

func TestAcquireLockRejectsLiveHolderWithoutForce(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.lock")

	require.NoError(t, AcquireLock(path, false))

	err := AcquireLock(path, false)
	require.Error(t, err)
	var locked ErrLocked
	require.ErrorAs(t, err, &locked)
	assert.Equal(t, path, locked.Path)
	assert.Equal(t, os.Getpid(), locked.Holder.PID)
}

func TestAcquireLockForceAdoptsLiveHolder(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.lock")

	require.NoError(t, AcquireLock(path, false))
	first, err := ReadLock(path)
	require.NoError(t, err)

	require.NoError(t, AcquireLock(path, true))
	second, err := ReadLock(path)
	require.NoError(t, err)
	assert.Equal(t, first.PID, second.PID) // same test process, but the file was rewritten
}

func TestAcquireLockAdoptsStaleHolder(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.lock")

	stale := Lock{PID: deadPID(t), Hostname: currentHostname(t), StartedAt: time.Now().Add(-time.Hour)}
	data, err := json.Marshal(stale)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data, 0644))

	require.NoError(t, AcquireLock(path, false))

	lock, err := ReadLock(path)
	require.NoError(t, err)
	assert.Equal(t, os.Getpid(), lock.PID)
}

func TestReleaseLockRemovesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.lock")
	require.NoError(t, AcquireLock(path, false))

	require.NoError(t, ReleaseLock(path))
	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}

func TestReleaseLockOfAbsentFileIsNotError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "never-created.lock")
	assert.NoError(t, ReleaseLock(path))
}

func currentHostname(t *testing.T) string {
	t.Helper()
	h, err := os.Hostname()
	require.NoError(t, err)
	return h
}

// deadPID returns a PID almost certainly not in use: a fixed value far
// above any realistic process table.
func deadPID(t *testing.T) int {
	t.Helper()
	return 1 << 30
}
