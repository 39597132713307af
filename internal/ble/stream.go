package ble

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Scan discovers peripherals advertising the given service UUID.
func Scan(adapter Adapter, serviceUUID string, timeout time.Duration) ([]Peripheral, error) {
	if err := adapter.Enable(); err != nil {
		return nil, fmt.Errorf("ble: enable adapter: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	found, err := adapter.Scan(ctx, serviceUUID)
	if err != nil {
		return nil, fmt.Errorf("ble: scan: %w", err)
	}
	return found, nil
}

// NotificationStream subscribes to a characteristic and delivers each
// notification on the returned channel. Each payload is copied, so the
// receiver may retain it. When the channel's buffer is full the oldest
// pending notification is dropped rather than blocking the BLE callback;
// a gap in a lossy radio stream is recoverable, a stalled stack is not.
// The subscription is torn down and the channel closed when ctx ends.
func NotificationStream(ctx context.Context, char Characteristic, buffer int) (<-chan []byte, error) {
	if buffer <= 0 {
		buffer = 64
	}
	out := make(chan []byte, buffer)

	// closed guards against the BLE stack firing the callback after the
	// stream has been torn down; sending on a closed channel would panic.
	var mu sync.Mutex
	closed := false

	err := char.Subscribe(func(data []byte) {
		cp := make([]byte, len(data))
		copy(cp, data)

		mu.Lock()
		defer mu.Unlock()
		if closed {
			return
		}
		select {
		case out <- cp:
		default:
			select {
			case <-out:
				slog.Debug("[BLE] notification stream full, dropping oldest")
			default:
			}
			select {
			case out <- cp:
			default:
			}
		}
	})
	if err != nil {
		return nil, fmt.Errorf("ble: subscribe: %w", err)
	}

	go func() {
		<-ctx.Done()
		if err := char.Subscribe(nil); err != nil {
			slog.Debug("[BLE] unsubscribe failed", "error", err)
		}
		mu.Lock()
		closed = true
		close(out)
		mu.Unlock()
	}()

	return out, nil
}
