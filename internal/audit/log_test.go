package audit

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ralphctl/ralph/internal/events"
	"github.com/ralphctl/ralph/internal/types"
)

func TestWriteAppendsOneLinePerRecord(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.jsonl")
	l, err := Open(path)
	require.NoError(t, err)
	defer l.Close()

	require.NoError(t, l.Write(Record{ClientID: "cli-1", Action: "pause", Success: true}))
	require.NoError(t, l.Write(Record{ClientID: "cli-1", Action: "resume", Success: true}))

	lines := readLines(t, path)
	require.Len(t, lines, 2)

	var rec Record
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &rec))
	assert.Equal(t, "pause", rec.Action)
	assert.False(t, rec.TS.IsZero())
}

func TestOpenCreatesParentDirectories(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "audit.jsonl")
	l, err := Open(path)
	require.NoError(t, err)
	defer l.Close()

	_, err = os.Stat(path)
	assert.NoError(t, err)
}

func TestOpenAppendsToExistingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.jsonl")

	first, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, first.Write(Record{Action: "first"}))
	require.NoError(t, first.Close())

	second, err := Open(path)
	require.NoError(t, err)
	defer second.Close()
	require.NoError(t, second.Write(Record{Action: "second"}))

	lines := readLines(t, path)
	require.Len(t, lines, 2)
}

func TestWriteRotatesPastThreshold(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.jsonl")
	l, err := Open(path)
	require.NoError(t, err)
	defer l.Close()

	// Force rotation on the next write without actually writing 10 MiB.
	l.size = maxLogBytes

	require.NoError(t, l.Write(Record{Action: "after-rotation"}))

	oldPath := path + ".old"
	_, err = os.Stat(oldPath)
	assert.NoError(t, err, "expected rotated .old file to exist")

	lines := readLines(t, path)
	require.Len(t, lines, 1)
	var rec Record
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &rec))
	assert.Equal(t, "after-rotation", rec.Action)
}

func TestWriteRotationReplacesPriorOldFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.jsonl")
	oldPath := path + ".old"
	require.NoError(t, os.WriteFile(oldPath, []byte("stale\n"), 0644))

	l, err := Open(path)
	require.NoError(t, err)
	defer l.Close()
	l.size = maxLogBytes

	require.NoError(t, l.Write(Record{Action: "rotated"}))

	data, err := os.ReadFile(oldPath)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "stale")
}

func TestSubscribeDrainsBusIntoRecords(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.jsonl")
	l, err := Open(path)
	require.NoError(t, err)
	defer l.Close()

	bus := events.NewBus()
	sub := bus.Subscribe()

	done := make(chan struct{})
	go func() {
		l.Subscribe(sub, "cli-1")
		close(done)
	}()

	from := types.EngineState{Kind: types.StateSelecting}
	to := types.EngineState{Kind: types.StateExecuting}
	bus.Publish(events.NewStateChanged("sess-1", from, to))
	bus.Publish(events.NewFatalError("sess-1", types.ErrorAuth, "unauthorized", "check your API key"))
	bus.Publish(events.NewIterationFinished("sess-1", 1, "task-1", types.OutcomeCompleted))
	bus.Publish(events.NewDetectorFired("sess-1", 1, events.DetectorRateLimit, "429", 30*time.Second))

	bus.Close()
	<-done

	lines := readLines(t, path)
	require.Len(t, lines, 4)

	var stateRec, fatalRec, finishedRec, detectorRec Record
	for _, line := range lines {
		var rec Record
		require.NoError(t, json.Unmarshal([]byte(line), &rec))
		switch rec.Action {
		case string(events.EventStateChanged):
			stateRec = rec
		case string(events.EventFatalError):
			fatalRec = rec
		case string(events.EventIterationFinished):
			finishedRec = rec
		case string(events.EventDetectorFired):
			detectorRec = rec
		}
	}

	assert.Equal(t, "cli-1", stateRec.ClientID)
	assert.Equal(t, "selecting", stateRec.Details["from"])
	assert.Equal(t, "executing", stateRec.Details["to"])

	assert.False(t, fatalRec.Success)
	assert.Equal(t, "unauthorized", fatalRec.Error)
	assert.Equal(t, "auth", fatalRec.Details["kind"])

	assert.True(t, finishedRec.Success)
	assert.Equal(t, "completed", finishedRec.Details["outcome"])

	assert.Equal(t, "rate_limit", detectorRec.Details["detector"])
}

func readLines(t *testing.T, path string) []string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	var lines []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line != "" {
			lines = append(lines, line)
		}
	}
	require.NoError(t, scanner.Err())
	return lines
}
