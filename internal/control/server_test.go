package control

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startTestServer(t *testing.T, onCommand func(Command) (map[string]interface{}, error)) (*Server, *Client) {
	t.Helper()
	sockPath := filepath.Join(t.TempDir(), "session.sock")
	srv, err := NewServer(sockPath, onCommand)
	require.NoError(t, err)
	require.NoError(t, srv.Start(context.Background()))
	t.Cleanup(func() { srv.Stop() })
	return srv, NewClient(sockPath)
}

func TestServerRoundTripsSuccessResponse(t *testing.T) {
	_, client := startTestServer(t, func(cmd Command) (map[string]interface{}, error) {
		assert.Equal(t, "status", cmd.Type)
		return map[string]interface{}{"state": "ready"}, nil
	})

	resp, err := client.Status()
	require.NoError(t, err)
	assert.True(t, resp.Success)
	assert.Equal(t, "ready", resp.Data["state"])
}

func TestServerReportsHandlerError(t *testing.T) {
	_, client := startTestServer(t, func(cmd Command) (map[string]interface{}, error) {
		return nil, errors.New("boom")
	})

	resp, err := client.Pause(false)
	require.NoError(t, err)
	assert.False(t, resp.Success)
	assert.Contains(t, resp.Error, "boom")
}

func TestServerPassesForceFlagThrough(t *testing.T) {
	var gotForce bool
	_, client := startTestServer(t, func(cmd Command) (map[string]interface{}, error) {
		gotForce = cmd.Force
		return nil, nil
	})

	_, err := client.Pause(true)
	require.NoError(t, err)
	assert.True(t, gotForce)
}

func TestStopRemovesSocketAndRejectsFurtherCommands(t *testing.T) {
	sockPath := filepath.Join(t.TempDir(), "session.sock")
	srv, err := NewServer(sockPath, func(Command) (map[string]interface{}, error) { return nil, nil })
	require.NoError(t, err)
	require.NoError(t, srv.Start(context.Background()))
	assert.True(t, srv.IsRunning())

	require.NoError(t, srv.Stop())
	assert.False(t, srv.IsRunning())

	client := NewClient(sockPath)
	client.SetTimeout(200 * time.Millisecond)
	_, err = client.Status()
	assert.Error(t, err)
}

func TestNewServerRemovesStaleSocketFile(t *testing.T) {
	dir := t.TempDir()
	sockPath := filepath.Join(dir, "session.sock")

	srv1, err := NewServer(sockPath, func(Command) (map[string]interface{}, error) { return nil, nil })
	require.NoError(t, err)
	require.NoError(t, srv1.Start(context.Background()))
	require.NoError(t, srv1.Stop())

	srv2, err := NewServer(sockPath, func(Command) (map[string]interface{}, error) { return nil, nil })
	require.NoError(t, err)
	require.NoError(t, srv2.Start(context.Background()))
	t.Cleanup(func() { srv2.Stop() })
	assert.True(t, srv2.IsRunning())
}
