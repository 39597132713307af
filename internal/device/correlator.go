package device

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// correlator matches outbound command ids to their response
// notifications. Responses, echoes and unrelated telemetry all share one
// characteristic and arrive in no useful order, so each notification is
// classified on arrival and handed to resolve; whoever is waiting on
// that id gets the payload.
//
// At most one waiter exists per command id. Registering an id that
// already has a waiter resolves the old one with nil — the same value a
// timeout produces — and the new command takes the slot (last write
// wins).
type correlator struct {
	mu      sync.Mutex
	pending map[uint32]chan []byte
	timeout time.Duration
}

func newCorrelator(timeout time.Duration) *correlator {
	return &correlator{
		pending: make(map[uint32]chan []byte),
		timeout: timeout,
	}
}

// register installs a waiter for id and returns its channel.
func (c *correlator) register(id uint32) chan []byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	if old, ok := c.pending[id]; ok {
		slog.Debug("[device] replacing pending waiter", "command", id)
		close(old)
	}
	ch := make(chan []byte, 1)
	c.pending[id] = ch
	return ch
}

// resolve delivers payload to the waiter for id, if any. Reports whether
// a waiter consumed it.
func (c *correlator) resolve(id uint32, payload []byte) bool {
	c.mu.Lock()
	ch, ok := c.pending[id]
	if ok {
		delete(c.pending, id)
	}
	c.mu.Unlock()
	if !ok {
		return false
	}
	ch <- payload
	close(ch)
	return true
}

// drop removes the waiter for id if it is still the one holding ch.
func (c *correlator) drop(id uint32, ch chan []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if cur, ok := c.pending[id]; ok && cur == ch {
		delete(c.pending, id)
	}
}

// await blocks until the waiter resolves, the deadline elapses, or ctx
// is cancelled. A timeout is not an error: it returns nil, and callers
// treat absence of data as a normal degraded outcome.
func (c *correlator) await(ctx context.Context, id uint32, ch chan []byte) []byte {
	timer := time.NewTimer(c.timeout)
	defer timer.Stop()
	select {
	case payload, ok := <-ch:
		if !ok {
			// Displaced by a newer command with the same id.
			return nil
		}
		return payload
	case <-timer.C:
		c.drop(id, ch)
		slog.Debug("[device] command timed out", "command", id)
		return nil
	case <-ctx.Done():
		c.drop(id, ch)
		return nil
	}
}
