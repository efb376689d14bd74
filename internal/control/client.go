package control

import (
	"encoding/json"
	"fmt"
	"net"
	"time"
)

// Client sends control commands to a running session's control socket.
type Client struct {
	socketPath string
	timeout    time.Duration
}

// NewClient constructs a Client bound to a session's socket path.
func NewClient(socketPath string) *Client {
	return &Client{
		socketPath: socketPath,
		timeout:    10 * time.Second,
	}
}

// SetTimeout overrides the default 10s per-command timeout.
func (c *Client) SetTimeout(timeout time.Duration) {
	c.timeout = timeout
}

// SendCommand delivers cmd and blocks for the response.
func (c *Client) SendCommand(cmd Command) (*Response, error) {
	conn, err := net.DialTimeout("unix", c.socketPath, c.timeout)
	if err != nil {
		return nil, fmt.Errorf("connect to session (is it running?): %w", err)
	}
	defer conn.Close()

	if err := conn.SetDeadline(time.Now().Add(c.timeout)); err != nil {
		return nil, fmt.Errorf("set deadline: %w", err)
	}
	if err := json.NewEncoder(conn).Encode(cmd); err != nil {
		return nil, fmt.Errorf("send command: %w", err)
	}

	var resp Response
	if err := json.NewDecoder(conn).Decode(&resp); err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	return &resp, nil
}

// Pause requests the engine stop selecting new work; force also
// interrupts the iteration currently in flight (spec.md §13).
func (c *Client) Pause(force bool) (*Response, error) {
	return c.SendCommand(Command{Type: "pause", Force: force, Timestamp: time.Now()})
}

// Resume continues a paused engine.
func (c *Client) Resume() (*Response, error) {
	return c.SendCommand(Command{Type: "resume", Timestamp: time.Now()})
}

// Stop requests a graceful shutdown.
func (c *Client) Stop() (*Response, error) {
	return c.SendCommand(Command{Type: "stop", Timestamp: time.Now()})
}

// Continue re-enters Selecting from Complete after new tasks were
// added to the tracker externally.
func (c *Client) Continue() (*Response, error) {
	return c.SendCommand(Command{Type: "continue", Timestamp: time.Now()})
}

// Status requests the engine's current state snapshot.
func (c *Client) Status() (*Response, error) {
	return c.SendCommand(Command{Type: "status", Timestamp: time.Now()})
}
