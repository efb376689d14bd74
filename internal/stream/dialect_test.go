package stream

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeDialectASpawnAndResult(t *testing.T) {
	spawnLine := []byte(`{"type":"assistant","message":{"content":[{"type":"tool_use","id":"call_1","name":"Task","input":{"description":"do it"}}]}}`)
	events, err := decodeDialectA(spawnLine)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, StructuredSpawn, events[0].Kind)
	assert.Equal(t, "Task", events[0].Tool)
	assert.Equal(t, "call_1", events[0].CallID)

	resultLine := []byte(`{"type":"user","message":{"content":[{"type":"tool_result","tool_use_id":"call_1","content":"done","is_error":false}]}}`)
	events, err = decodeDialectA(resultLine)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, StructuredResult, events[0].Kind)
	assert.Equal(t, "call_1", events[0].CallID)
}

func TestDecodeDialectCFieldRenames(t *testing.T) {
	line := []byte(`{"type":"assistant","message":{"content":[{"type":"tool_use","call_id":"call_9","tool_name":"Bash","input":{}}]}}`)
	events, err := decodeDialectC(line)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "Bash", events[0].Tool)
	assert.Equal(t, "call_9", events[0].CallID)
}

func TestDecodeDialectBSynthesizesSpawnThenResult(t *testing.T) {
	// spec.md scenario 4: spawn and completion arrive together in one line.
	line := []byte(`{"type":"message.part.updated","properties":{"part":{"type":"tool-invocation","id":"call_5","toolName":"Task","args":{},"state":{"status":"completed","output":"ok"}}}}`)
	events, err := decodeDialectB(line)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, StructuredSpawn, events[0].Kind)
	assert.Equal(t, StructuredResult, events[1].Kind)
	assert.Equal(t, "call_5", events[0].CallID)
	assert.Equal(t, "call_5", events[1].CallID)
}

func TestDecodeDialectBDropsTransportNoise(t *testing.T) {
	for _, noisy := range []string{
		`{"type":"message.updated"}`,
		`{"type":"session.idle"}`,
		`{"type":"server.connected"}`,
		`{"type":"server.heartbeat"}`,
	} {
		events, err := decodeDialectB([]byte(noisy))
		require.NoError(t, err)
		assert.Empty(t, events, noisy)
	}
}

func TestDecodeDialectBSessionStatus(t *testing.T) {
	line := []byte(`{"type":"session.status","properties":{"status":{"type":"idle"}}}`)
	events, err := decodeDialectB(line)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "idle", events[0].Text)
}
