package hubitat

import (
	"context"
	"fmt"
	"net/url"
	"sync"
)

// PendingCommand is a command waiting for the next poll tick.
type PendingCommand struct {
	DeviceID string
	Command  string
}

// CommandQueue holds at most one pending command. A newer command
// replaces an older one that has not been sent yet.
type CommandQueue struct {
	mu      sync.Mutex
	pending *PendingCommand
}

// NewCommandQueue creates an empty queue.
func NewCommandQueue() *CommandQueue {
	return &CommandQueue{}
}

// Enqueue stores the command, overwriting any pending one.
func (q *CommandQueue) Enqueue(deviceID, command string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.pending = &PendingCommand{DeviceID: deviceID, Command: command}
}

// Pending returns the pending command, if any.
func (q *CommandQueue) Pending() (PendingCommand, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.pending == nil {
		return PendingCommand{}, false
	}
	return *q.pending, true
}

// Flush sends the pending command through the gateway and clears the
// slot whatever the outcome. A command is attempted exactly once.
// It reports the command that was sent.
func (q *CommandQueue) Flush(ctx context.Context, gw Getter, baseURL, token string) (PendingCommand, bool) {
	q.mu.Lock()
	cmd := q.pending
	q.pending = nil
	q.mu.Unlock()

	if cmd == nil {
		return PendingCommand{}, false
	}

	gw.Get(ctx, commandURL(baseURL, cmd.DeviceID, cmd.Command, token))
	return *cmd, true
}

func commandURL(baseURL, deviceID, command, token string) string {
	return fmt.Sprintf("%sdevices/%s/%s?access_token=%s",
		baseURL, url.PathEscape(deviceID), url.PathEscape(command), url.QueryEscape(token))
}

func devicesURL(baseURL, token string) string {
	return fmt.Sprintf("%sdevices/all?access_token=%s", baseURL, url.QueryEscape(token))
}
