package device

import (
	"context"
	"encoding/binary"
	"log/slog"
	"sync"
	"time"

	"github.com/chaz8081/wearlink/internal/ble"
	"github.com/chaz8081/wearlink/internal/ble/wire"
)

// base is the shared lifecycle state machine and default-capability
// policy. Families embed it and shadow only the operations their
// hardware actually supports; the defaults read the common wearable
// service where present and degrade to empty/nil/false everywhere else.
type base struct {
	adapter ble.Adapter
	dev     *Device
	tuning  Tuning

	mu       sync.Mutex
	conn     ble.Connection
	state    State
	delegate Delegate
	lastPing time.Time
}

func newBase(dev *Device, adapter ble.Adapter, tuning Tuning) base {
	return base{
		adapter: adapter,
		dev:     dev,
		tuning:  tuning.withDefaults(),
	}
}

// Connect brings the link up: transport connect, best-effort liveness
// ping, best-effort device-info refresh, then the transition to
// connected. The ping and the info reads are never fatal; a device that
// answers GATT connects but not reads is still a usable device.
func (b *base) Connect(ctx context.Context) error {
	b.mu.Lock()
	if b.state == StateConnected {
		b.mu.Unlock()
		return ErrAlreadyConnected
	}
	b.state = StateConnecting
	b.mu.Unlock()

	conn, err := b.adapter.Connect(ctx, b.dev.Addr)
	if err != nil {
		b.mu.Lock()
		b.state = StateDisconnected
		b.mu.Unlock()
		return &ConnectError{Addr: b.dev.Addr, Reason: err}
	}

	if err := conn.Ping(ctx); err != nil {
		slog.Warn("[device] post-connect ping failed", "addr", b.dev.Addr, "error", err)
	} else {
		b.mu.Lock()
		b.lastPing = time.Now()
		b.mu.Unlock()
	}

	b.refreshDeviceInfo(conn)

	b.mu.Lock()
	b.conn = conn
	b.state = StateConnected
	b.mu.Unlock()

	conn.OnDisconnect(func() {
		b.handleTransportDisconnect()
	})

	slog.Info("[device] connected", "addr", b.dev.Addr, "kind", b.dev.Kind)
	return nil
}

// Disconnect transitions to disconnected immediately, then tears the
// transport down. Idempotent.
func (b *base) Disconnect() error {
	b.mu.Lock()
	conn := b.conn
	b.conn = nil
	b.state = StateDisconnected
	b.mu.Unlock()

	if conn != nil {
		if err := conn.Disconnect(); err != nil {
			slog.Debug("[device] transport disconnect", "addr", b.dev.Addr, "error", err)
		}
	}
	return nil
}

// Unpair clears cached capability data and disconnects if connected.
func (b *base) Unpair() error {
	b.mu.Lock()
	b.lastPing = time.Time{}
	b.dev.Model = ""
	b.dev.Firmware = ""
	b.dev.Hardware = ""
	b.dev.Manufacturer = ""
	b.mu.Unlock()
	return b.Disconnect()
}

func (b *base) Ping(ctx context.Context) error {
	conn := b.connection()
	if conn == nil {
		return ErrNotConnected
	}
	if err := conn.Ping(ctx); err != nil {
		return err
	}
	b.mu.Lock()
	b.lastPing = time.Now()
	b.mu.Unlock()
	return nil
}

func (b *base) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

func (b *base) Device() *Device { return b.dev }

func (b *base) SetDelegate(d Delegate) {
	b.mu.Lock()
	b.delegate = d
	b.mu.Unlock()
}

// connection returns the live transport handle, or nil when disconnected.
func (b *base) connection() ble.Connection {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state != StateConnected {
		return nil
	}
	return b.conn
}

func (b *base) handleTransportDisconnect() {
	b.mu.Lock()
	wasConnected := b.state == StateConnected
	b.state = StateDisconnected
	b.conn = nil
	delegate := b.delegate
	b.mu.Unlock()

	if !wasConnected {
		return
	}
	slog.Warn("[device] unexpected disconnect", "addr", b.dev.Addr)
	if delegate != nil {
		delegate.ConnectionLost(b.dev)
	}
}

// refreshDeviceInfo reads the standard identification characteristics.
// Missing or unreadable fields stay empty.
func (b *base) refreshDeviceInfo(conn ble.Connection) {
	read := func(charUUID string) string {
		char, err := conn.DiscoverCharacteristic(ble.DeviceInfoServiceUUID, charUUID)
		if err != nil {
			return ""
		}
		data, err := char.Read()
		if err != nil {
			return ""
		}
		return string(data)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if v := read(ble.ModelNumberCharUUID); v != "" {
		b.dev.Model = v
	}
	if v := read(ble.FirmwareRevCharUUID); v != "" {
		b.dev.Firmware = v
	}
	if v := read(ble.HardwareRevCharUUID); v != "" {
		b.dev.Hardware = v
	}
	if v := read(ble.ManufacturerCharUUID); v != "" {
		b.dev.Manufacturer = v
	}
}

// ---- default capability implementations ----

// BatteryLevel reads the standard battery characteristic. Any failure,
// including being disconnected, yields -1; a failed telemetry read is
// indistinguishable from an unsupported one on purpose.
func (b *base) BatteryLevel(ctx context.Context) int {
	conn := b.connection()
	if conn == nil {
		return -1
	}
	char, err := conn.DiscoverCharacteristic(ble.BatteryServiceUUID, ble.BatteryLevelUUID)
	if err != nil {
		return -1
	}
	data, err := char.Read()
	if err != nil || len(data) == 0 {
		return -1
	}
	return int(data[0])
}

func (b *base) AudioCodec() Codec { return CodecPCM8 }

func (b *base) AudioFrames(ctx context.Context) (<-chan []byte, error) {
	return closedChan[[]byte](), nil
}

func (b *base) ButtonEvents(ctx context.Context) (<-chan ButtonEvent, error) {
	return closedChan[ButtonEvent](), nil
}

// AccelStream subscribes to the common accelerometer characteristic and
// decodes fixed 12-byte little-endian six-axis records. Samples whose
// magnitude exceeds FallThreshold additionally fire the fall delegate.
// Families without the characteristic degrade to an empty stream.
func (b *base) AccelStream(ctx context.Context) (<-chan AccelSample, error) {
	conn := b.connection()
	if conn == nil {
		return closedChan[AccelSample](), nil
	}
	char, err := conn.DiscoverCharacteristic(ble.WearServiceUUID, ble.WearAccelUUID)
	if err != nil {
		return closedChan[AccelSample](), nil
	}
	raw, err := ble.NotificationStream(ctx, char, 64)
	if err != nil {
		return closedChan[AccelSample](), nil
	}

	out := make(chan AccelSample, 64)
	go func() {
		defer close(out)
		for payload := range raw {
			for _, sample := range decodeAccel(payload) {
				if mag := sample.Magnitude(); mag > FallThreshold {
					b.mu.Lock()
					delegate := b.delegate
					b.mu.Unlock()
					if delegate != nil {
						delegate.FallDetected(b.dev, mag)
					}
				}
				select {
				case out <- sample:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

// decodeAccel splits a notification into 12-byte six-axis records. A
// trailing partial record is dropped.
func decodeAccel(payload []byte) []AccelSample {
	const recordLen = 12
	samples := make([]AccelSample, 0, len(payload)/recordLen)
	for off := 0; off+recordLen <= len(payload); off += recordLen {
		rec := payload[off : off+recordLen]
		samples = append(samples, AccelSample{
			Ax: int16(binary.LittleEndian.Uint16(rec[0:2])),
			Ay: int16(binary.LittleEndian.Uint16(rec[2:4])),
			Az: int16(binary.LittleEndian.Uint16(rec[4:6])),
			Gx: int16(binary.LittleEndian.Uint16(rec[6:8])),
			Gy: int16(binary.LittleEndian.Uint16(rec[8:10])),
			Gz: int16(binary.LittleEndian.Uint16(rec[10:12])),
		})
	}
	return samples
}

func (b *base) Images(ctx context.Context) (<-chan Image, error) {
	return closedChan[Image](), nil
}

func (b *base) StorageStatus(ctx context.Context) *wire.DeviceStatus {
	return nil
}

func (b *base) StorageDownload(ctx context.Context, sessionID uint32) (<-chan wire.FlashPage, error) {
	return closedChan[wire.FlashPage](), nil
}

func (b *base) WiFiSetup(ctx context.Context, ssid, password string) (WiFiStatus, error) {
	return WiFiUnsupported, nil
}

// SetLED writes the common settings characteristic. False means not
// supported or not delivered.
func (b *base) SetLED(ctx context.Context, on bool) bool {
	v := byte(0)
	if on {
		v = 1
	}
	return b.writeSetting(ble.WearSettingsUUID, []byte{settingLED, v})
}

func (b *base) SetMicGain(ctx context.Context, gain uint8) bool {
	return b.writeSetting(ble.WearSettingsUUID, []byte{settingMicGain, gain})
}

func (b *base) PlayHaptic(ctx context.Context, pattern uint8) bool {
	return b.writeSetting(ble.WearSpeakerUUID, []byte{pattern})
}

const (
	settingLED     = 0x01
	settingMicGain = 0x02
)

func (b *base) writeSetting(charUUID string, payload []byte) bool {
	conn := b.connection()
	if conn == nil {
		return false
	}
	char, err := conn.DiscoverCharacteristic(ble.WearServiceUUID, charUUID)
	if err != nil {
		return false
	}
	if err := char.Write(payload); err != nil {
		slog.Debug("[device] setting write failed", "char", charUUID, "error", err)
		return false
	}
	return true
}

// closedChan returns an already-closed channel: the empty stream every
// unsupported streaming capability degrades to.
func closedChan[T any]() <-chan T {
	ch := make(chan T)
	close(ch)
	return ch
}

// sleepCtx waits for d or until ctx is cancelled.
func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
