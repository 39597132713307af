package device

import (
	"context"
	"log/slog"
	"time"

	"github.com/chaz8081/wearlink/internal/ble"
)

// Codec ids reported by the wearable codec characteristic.
const (
	wearCodecPCM8      = 0x00
	wearCodecOpus      = 0x01
	wearCodecOpusFS320 = 0x02
)

// Image capture control commands.
const (
	imageCaptureStart = 0x01
	imageCaptureStop  = 0x00
)

// pulseConn drives the generic wearable family and its camera-capable
// variant. Audio notifications are frame-aligned, so no framing engine
// is needed; the active codec is read from the codec characteristic
// after connect, and the camera variant is detected by probing whether
// the image-data characteristic is readable.
type pulseConn struct {
	base
	codec Codec
}

func newPulse(dev *Device, adapter ble.Adapter, tuning Tuning) *pulseConn {
	return &pulseConn{base: newBase(dev, adapter, tuning), codec: CodecPCM8}
}

func (p *pulseConn) Connect(ctx context.Context) error {
	if err := p.base.Connect(ctx); err != nil {
		return err
	}
	p.detectCapabilities()
	return nil
}

// detectCapabilities refreshes the codec and probes for the camera
// variant. Both are best-effort; failures leave the defaults in place.
func (p *pulseConn) detectCapabilities() {
	conn := p.connection()
	if conn == nil {
		return
	}

	if char, err := conn.DiscoverCharacteristic(ble.WearServiceUUID, ble.WearAudioCodecUUID); err == nil {
		if data, err := char.Read(); err == nil && len(data) > 0 {
			p.mu.Lock()
			switch data[0] {
			case wearCodecOpus:
				p.codec = CodecOpus
			case wearCodecOpusFS320:
				p.codec = CodecOpusFS320
			default:
				p.codec = CodecPCM8
			}
			p.mu.Unlock()
		}
	}

	if char, err := conn.DiscoverCharacteristic(ble.WearServiceUUID, ble.WearImageDataUUID); err == nil {
		if _, err := char.Read(); err == nil {
			p.mu.Lock()
			p.dev.Kind = KindPulseCam
			p.mu.Unlock()
			slog.Info("[device] camera-capable variant detected", "addr", p.dev.Addr)
		}
	}
}

func (p *pulseConn) AudioCodec() Codec {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.codec
}

func (p *pulseConn) AudioFrames(ctx context.Context) (<-chan []byte, error) {
	conn := p.connection()
	if conn == nil {
		return closedChan[[]byte](), nil
	}
	char, err := conn.DiscoverCharacteristic(ble.WearServiceUUID, ble.WearAudioDataUUID)
	if err != nil {
		return closedChan[[]byte](), nil
	}
	raw, err := ble.NotificationStream(ctx, char, 128)
	if err != nil {
		return closedChan[[]byte](), nil
	}
	return streamFrames(ctx, raw, passthrough{}, nil), nil
}

// ButtonEvents decodes single-byte button notifications from the common
// button characteristic. Only the double-press value is surfaced.
func (p *pulseConn) ButtonEvents(ctx context.Context) (<-chan ButtonEvent, error) {
	conn := p.connection()
	if conn == nil {
		return closedChan[ButtonEvent](), nil
	}
	char, err := conn.DiscoverCharacteristic(ble.WearServiceUUID, ble.WearButtonUUID)
	if err != nil {
		return closedChan[ButtonEvent](), nil
	}
	raw, err := ble.NotificationStream(ctx, char, 16)
	if err != nil {
		return closedChan[ButtonEvent](), nil
	}

	out := make(chan ButtonEvent, 16)
	go func() {
		defer close(out)
		for payload := range raw {
			if len(payload) == 0 || payload[0] != wearButtonDouble {
				continue
			}
			select {
			case out <- ButtonEvent{At: time.Now()}:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

const wearButtonDouble = 0x02

func (p *pulseConn) Images(ctx context.Context) (<-chan Image, error) {
	conn := p.connection()
	p.mu.Lock()
	isCam := p.dev.Kind == KindPulseCam
	firmware := p.dev.Firmware
	p.mu.Unlock()
	if conn == nil || !isCam {
		return closedChan[Image](), nil
	}

	dataChar, err := conn.DiscoverCharacteristic(ble.WearServiceUUID, ble.WearImageDataUUID)
	if err != nil {
		return closedChan[Image](), nil
	}
	raw, err := ble.NotificationStream(ctx, dataChar, 128)
	if err != nil {
		return closedChan[Image](), nil
	}

	// Capture start/stop is best effort; some firmware streams
	// continuously and has no control characteristic at all.
	ctrl, ctrlErr := conn.DiscoverCharacteristic(ble.WearServiceUUID, ble.WearImageCtrlUUID)
	if ctrlErr == nil {
		if err := ctrl.Write([]byte{imageCaptureStart}); err != nil {
			slog.Debug("[device] image capture start failed", "error", err)
		}
	}

	out := make(chan Image, 4)
	go func() {
		defer close(out)
		defer func() {
			if ctrlErr == nil {
				if err := ctrl.Write([]byte{imageCaptureStop}); err != nil {
					slog.Debug("[device] image capture stop failed", "error", err)
				}
			}
		}()

		asm := newImageAssembler(p.tuning.ImageBufferMax, firmwareAtLeast(firmware, orientationMinFirmware))
		for payload := range raw {
			img, ok := asm.push(payload)
			if !ok {
				continue
			}
			select {
			case out <- img:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}
