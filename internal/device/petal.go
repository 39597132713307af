package device

import (
	"context"

	"github.com/chaz8081/wearlink/internal/ble"
	"github.com/chaz8081/wearlink/internal/ble/framing"
)

// petalConn drives the LC3 bud family. The hardware streams as soon as
// anyone subscribes; all the work is in the footer-strip framing.
type petalConn struct {
	base
}

func newPetal(dev *Device, adapter ble.Adapter, tuning Tuning) *petalConn {
	return &petalConn{base: newBase(dev, adapter, tuning)}
}

func (p *petalConn) AudioCodec() Codec { return CodecLC3 }

func (p *petalConn) AudioFrames(ctx context.Context) (<-chan []byte, error) {
	conn := p.connection()
	if conn == nil {
		return closedChan[[]byte](), nil
	}
	char, err := conn.DiscoverCharacteristic(ble.PetalServiceUUID, ble.PetalAudioUUID)
	if err != nil {
		return closedChan[[]byte](), nil
	}
	raw, err := ble.NotificationStream(ctx, char, 128)
	if err != nil {
		return closedChan[[]byte](), nil
	}
	return streamFrames(ctx, raw, framing.NewLC3(), nil), nil
}
