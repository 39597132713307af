package device

import (
	"context"
	"testing"
	"time"
)

func TestCorrelatorResolvesPending(t *testing.T) {
	c := newCorrelator(time.Second)
	ch := c.register(7)

	done := make(chan []byte, 1)
	go func() {
		done <- c.await(context.Background(), 7, ch)
	}()

	if !c.resolve(7, []byte{0xAA}) {
		t.Fatal("resolve should find the registered waiter")
	}
	got := <-done
	if len(got) != 1 || got[0] != 0xAA {
		t.Fatalf("await = %v, want [0xAA]", got)
	}
}

func TestCorrelatorUnmatchedResponse(t *testing.T) {
	c := newCorrelator(time.Second)
	if c.resolve(99, []byte{0x01}) {
		t.Fatal("resolve with no waiter should report unconsumed")
	}
}

func TestCorrelatorTimeoutReturnsNil(t *testing.T) {
	c := newCorrelator(20 * time.Millisecond)
	ch := c.register(3)

	start := time.Now()
	got := c.await(context.Background(), 3, ch)
	elapsed := time.Since(start)

	if got != nil {
		t.Fatalf("timed-out await = %v, want nil", got)
	}
	if elapsed > 500*time.Millisecond {
		t.Fatalf("await took %s, should respect the deadline", elapsed)
	}
	// The slot must be free again after a timeout.
	if c.resolve(3, []byte{0x01}) {
		t.Fatal("timed-out waiter should have been dropped")
	}
}

func TestCorrelatorLastWriteWins(t *testing.T) {
	c := newCorrelator(time.Second)
	old := c.register(5)

	oldDone := make(chan []byte, 1)
	go func() {
		oldDone <- c.await(context.Background(), 5, old)
	}()

	// Reusing the id displaces the first waiter.
	fresh := c.register(5)

	if got := <-oldDone; got != nil {
		t.Fatalf("displaced await = %v, want nil", got)
	}

	if !c.resolve(5, []byte{0xBB}) {
		t.Fatal("resolve should find the new waiter")
	}
	got := c.await(context.Background(), 5, fresh)
	if len(got) != 1 || got[0] != 0xBB {
		t.Fatalf("new waiter got %v, want [0xBB]", got)
	}
}

func TestCorrelatorContextCancel(t *testing.T) {
	c := newCorrelator(time.Minute)
	ch := c.register(1)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan []byte, 1)
	go func() {
		done <- c.await(ctx, 1, ch)
	}()
	cancel()

	select {
	case got := <-done:
		if got != nil {
			t.Fatalf("cancelled await = %v, want nil", got)
		}
	case <-time.After(time.Second):
		t.Fatal("await did not return after cancellation")
	}
}

func TestCorrelatorDropIgnoresReplacedChannel(t *testing.T) {
	c := newCorrelator(time.Second)
	old := c.register(2)
	_ = c.register(2)

	// Dropping with the stale handle must not evict the new waiter.
	c.drop(2, old)
	if !c.resolve(2, []byte{0x01}) {
		t.Fatal("new waiter should still be registered")
	}
}
