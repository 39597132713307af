package device

import (
	"context"
	"log/slog"

	"github.com/chaz8081/wearlink/internal/ble"
	"github.com/chaz8081/wearlink/internal/ble/framing"
)

// Nimbus control commands.
const (
	nimbusCmdMute   = 0x00
	nimbusCmdUnmute = 0x01
)

// nimbusConn drives the AAC pendant family. The hardware mutes its
// encoder until told otherwise: opening the audio stream sends an
// unmute, and closing it — including ungraceful cancellation — sends a
// mute. A settle delay after connect is required before the firmware
// accepts either.
type nimbusConn struct {
	base
}

func newNimbus(dev *Device, adapter ble.Adapter, tuning Tuning) *nimbusConn {
	return &nimbusConn{base: newBase(dev, adapter, tuning)}
}

func (n *nimbusConn) AudioCodec() Codec { return CodecAAC }

func (n *nimbusConn) AudioFrames(ctx context.Context) (<-chan []byte, error) {
	conn := n.connection()
	if conn == nil {
		return closedChan[[]byte](), nil
	}
	ctrl, err := conn.DiscoverCharacteristic(ble.NimbusServiceUUID, ble.NimbusControlUUID)
	if err != nil {
		return closedChan[[]byte](), nil
	}
	audio, err := conn.DiscoverCharacteristic(ble.NimbusServiceUUID, ble.NimbusAudioUUID)
	if err != nil {
		return closedChan[[]byte](), nil
	}

	if err := sleepCtx(ctx, n.tuning.SettleDelay); err != nil {
		return closedChan[[]byte](), nil
	}
	if err := ctrl.Write([]byte{nimbusCmdUnmute}); err != nil {
		slog.Warn("[device] unmute rejected, audio unavailable this session", "error", err)
		return closedChan[[]byte](), nil
	}

	raw, err := ble.NotificationStream(ctx, audio, 128)
	if err != nil {
		_ = ctrl.Write([]byte{nimbusCmdMute})
		return closedChan[[]byte](), nil
	}
	return streamFrames(ctx, raw, framing.NewADTS(), func() {
		if err := ctrl.Write([]byte{nimbusCmdMute}); err != nil {
			slog.Debug("[device] mute on stream close failed", "error", err)
		}
	}), nil
}
