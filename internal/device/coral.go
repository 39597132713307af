package device

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/chaz8081/wearlink/internal/ble"
	"github.com/chaz8081/wearlink/internal/ble/framing"
)

// Coral control commands.
const (
	coralCmdStop      = 0x00
	coralCmdStart     = 0x01
	coralCmdStartSync = 0x02
)

// coralStepDelay is the pause the firmware needs between bring-up steps.
const coralStepDelay = 100 * time.Millisecond

// coralConn drives the fixed-frame Opus clip family. Its firmware keeps
// recording state across BLE sessions, so the stream is only viable
// after a full reset sequence: stop, start, start-sync, with settle
// pauses between. The sequence is retried with linear backoff; if every
// attempt fails the audio stream completes empty and the connection
// stays usable for everything else.
type coralConn struct {
	base
}

func newCoral(dev *Device, adapter ble.Adapter, tuning Tuning) *coralConn {
	return &coralConn{base: newBase(dev, adapter, tuning)}
}

func (c *coralConn) AudioCodec() Codec { return CodecOpus }

func (c *coralConn) AudioFrames(ctx context.Context) (<-chan []byte, error) {
	conn := c.connection()
	if conn == nil {
		return closedChan[[]byte](), nil
	}
	ctrl, err := conn.DiscoverCharacteristic(ble.CoralServiceUUID, ble.CoralControlUUID)
	if err != nil {
		return closedChan[[]byte](), nil
	}
	audio, err := conn.DiscoverCharacteristic(ble.CoralServiceUUID, ble.CoralAudioUUID)
	if err != nil {
		return closedChan[[]byte](), nil
	}

	if !c.bringUpRecording(ctx, ctrl) {
		slog.Warn("[device] recording bring-up exhausted, audio unavailable this session",
			"addr", c.dev.Addr)
		return closedChan[[]byte](), nil
	}

	raw, err := ble.NotificationStream(ctx, audio, 128)
	if err != nil {
		_ = ctrl.Write([]byte{coralCmdStop})
		return closedChan[[]byte](), nil
	}
	return streamFrames(ctx, raw, framing.NewOpusSlicer(0), func() {
		if err := ctrl.Write([]byte{coralCmdStop}); err != nil {
			slog.Debug("[device] stop on stream close failed", "error", err)
		}
	}), nil
}

// bringUpRecording runs the reset sequence with bounded retries and
// linear backoff between attempts.
func (c *coralConn) bringUpRecording(ctx context.Context, ctrl ble.Characteristic) bool {
	for attempt := 0; attempt < c.tuning.SetupRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(attempt) * c.tuning.SetupBackoff
			slog.Debug("[device] bring-up retry", "attempt", attempt+1, "backoff", backoff)
			if err := sleepCtx(ctx, backoff); err != nil {
				return false
			}
		}
		if err := c.resetSequence(ctx, ctrl); err != nil {
			slog.Warn("[device] recording bring-up failed", "attempt", attempt+1, "error", err)
			continue
		}
		return true
	}
	return false
}

func (c *coralConn) resetSequence(ctx context.Context, ctrl ble.Characteristic) error {
	if err := ctrl.Write([]byte{coralCmdStop}); err != nil {
		return fmt.Errorf("stop: %w", err)
	}
	if err := sleepCtx(ctx, coralStepDelay); err != nil {
		return err
	}
	if err := ctrl.Write([]byte{coralCmdStart}); err != nil {
		return fmt.Errorf("start: %w", err)
	}
	if err := sleepCtx(ctx, coralStepDelay); err != nil {
		return err
	}
	if err := ctrl.Write([]byte{coralCmdStartSync}); err != nil {
		return fmt.Errorf("start-sync: %w", err)
	}
	return nil
}
