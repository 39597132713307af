package device

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/chaz8081/wearlink/internal/ble"
	"github.com/chaz8081/wearlink/internal/ble/wire"
)

// vegaFixture wires a mock vega device: TX/RX control pair plus the
// audio characteristic, with an optional firmware simulator answering
// commands as they are written.
type vegaFixture struct {
	adapter *mockAdapter
	tx      *mockChar
	rx      *mockChar
	audio   *mockChar
	conn    Connection
}

func newVegaFixture(t *testing.T, tuning Tuning, respond func(id uint32, payload []byte) []byte) *vegaFixture {
	t.Helper()
	f := &vegaFixture{adapter: newMockAdapter()}
	f.tx = f.adapter.conn.install(ble.VegaTXUUID)
	f.rx = f.adapter.conn.install(ble.VegaRXUUID)
	f.audio = f.adapter.conn.install(ble.VegaAudioUUID)

	if respond != nil {
		f.tx.onWrite = func(data []byte) {
			cmd := wire.ParseEnvelope(data)
			if !cmd.HasCode {
				return
			}
			if resp := respond(cmd.Code, cmd.Payload); resp != nil {
				f.rx.SimulateNotification(resp)
			}
		}
	}

	f.conn = New(testDevice(KindVega), f.adapter, tuning)
	if err := f.conn.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	t.Cleanup(func() { f.conn.Disconnect() })
	return f
}

func marshalStatusPayload(st wire.DeviceStatus) []byte {
	var buf []byte
	buf = wire.AppendVarintField(buf, 1, uint64(st.OldestPage))
	buf = wire.AppendVarintField(buf, 2, uint64(st.NewestPage))
	buf = wire.AppendVarintField(buf, 3, uint64(st.SessionID))
	buf = wire.AppendVarintField(buf, 4, uint64(st.FreePages))
	buf = wire.AppendVarintField(buf, 5, uint64(st.TotalPages))
	return buf
}

func TestVegaCodec(t *testing.T) {
	conn := New(testDevice(KindVega), newMockAdapter(), Tuning{})
	if got := conn.AudioCodec(); got != CodecOpus {
		t.Fatalf("AudioCodec = %v, want opus", got)
	}
}

func TestVegaStorageStatusDirectResponse(t *testing.T) {
	want := wire.DeviceStatus{OldestPage: 2, NewestPage: 90, SessionID: 7, FreePages: 10, TotalPages: 100}
	f := newVegaFixture(t, Tuning{}, func(id uint32, _ []byte) []byte {
		if id != vegaCmdStatus {
			return nil
		}
		return wire.MarshalResponse(id, marshalStatusPayload(want))
	})

	got := f.conn.StorageStatus(context.Background())
	if got == nil {
		t.Fatal("StorageStatus = nil")
	}
	if *got != want {
		t.Fatalf("StorageStatus = %+v, want %+v", *got, want)
	}
}

func TestVegaStorageStatusEchoResponse(t *testing.T) {
	want := wire.DeviceStatus{SessionID: 3, TotalPages: 50}
	f := newVegaFixture(t, Tuning{}, func(id uint32, _ []byte) []byte {
		if id != vegaCmdStatus {
			return nil
		}
		// Echo-wrapping firmware restates the command id inside field 3.
		return wire.MarshalEcho(id, marshalStatusPayload(want))
	})

	got := f.conn.StorageStatus(context.Background())
	if got == nil || got.SessionID != 3 || got.TotalPages != 50 {
		t.Fatalf("StorageStatus = %+v, want %+v", got, want)
	}
}

func TestVegaStorageStatusTimeoutFallsBackToCached(t *testing.T) {
	f := newVegaFixture(t, Tuning{CommandTimeout: 30 * time.Millisecond}, nil)

	// No cache yet: an unanswered query yields nil.
	if got := f.conn.StorageStatus(context.Background()); got != nil {
		t.Fatalf("StorageStatus before any report = %+v, want nil", got)
	}

	// The device volunteers a status report; the next unanswered query
	// serves it from cache.
	f.rx.SimulateNotification(wire.MarshalDeviceStatus(wire.DeviceStatus{SessionID: 9, FreePages: 4}))
	waitFor(t, func() bool {
		got := f.conn.StorageStatus(context.Background())
		return got != nil && got.SessionID == 9 && got.FreePages == 4
	}, "cached status never served")
}

func waitFor(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for !cond() {
		select {
		case <-deadline:
			t.Fatal(msg)
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func TestVegaButtonDoublePressFanout(t *testing.T) {
	f := newVegaFixture(t, Tuning{}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	a, err := f.conn.ButtonEvents(ctx)
	if err != nil {
		t.Fatalf("ButtonEvents: %v", err)
	}
	b, err := f.conn.ButtonEvents(ctx)
	if err != nil {
		t.Fatalf("ButtonEvents: %v", err)
	}

	f.rx.SimulateNotification(wire.MarshalButtonEvent(wire.ButtonSinglePress))
	f.rx.SimulateNotification(wire.MarshalButtonEvent(wire.ButtonLongPress))
	f.rx.SimulateNotification(wire.MarshalButtonEvent(wire.ButtonDoublePress))

	for name, ch := range map[string]<-chan ButtonEvent{"a": a, "b": b} {
		select {
		case <-ch:
		case <-time.After(time.Second):
			t.Fatalf("subscriber %s never got the double press", name)
		}
		select {
		case <-ch:
			t.Fatalf("subscriber %s got a swallowed press state", name)
		case <-time.After(50 * time.Millisecond):
		}
	}
}

func TestVegaAudioFramesReassembly(t *testing.T) {
	f := newVegaFixture(t, Tuning{}, func(id uint32, _ []byte) []byte {
		return wire.MarshalResponse(id, []byte{0x01}) // ack everything
	})

	ctx, cancel := context.WithCancel(context.Background())
	frames, err := f.conn.AudioFrames(ctx)
	if err != nil {
		t.Fatalf("AudioFrames: %v", err)
	}

	waitFor(t, func() bool { return f.tx.writeCount() >= 1 }, "start command never written")
	if got := wire.ParseEnvelope(f.tx.lastWrite()); got.Code != vegaCmdStartStream {
		t.Fatalf("start command id = %d, want %d", got.Code, vegaCmdStartStream)
	}

	// One Opus frame inside a length-delimited field, fragmented into two
	// packets that complete a single logical message.
	opus := make([]byte, 20)
	opus[0] = 0x80
	msg := wire.AppendField(nil, 2, opus)
	half := len(msg) / 2
	f.audio.SimulateNotification(wire.MarshalPacket(wire.Packet{Index: 1, Seq: 0, Total: 2, Payload: msg[:half]}))
	f.audio.SimulateNotification(wire.MarshalPacket(wire.Packet{Index: 1, Seq: 1, Total: 2, Payload: msg[half:]}))

	select {
	case frame := <-frames:
		if len(frame) != len(opus) || frame[0] != 0x80 {
			t.Fatalf("frame = %x", frame)
		}
	case <-time.After(time.Second):
		t.Fatal("reassembled frame never surfaced")
	}

	cancel()
	waitFor(t, func() bool {
		last := wire.ParseEnvelope(f.tx.lastWrite())
		return last.HasCode && last.Code == vegaCmdStopStream
	}, "stop command never written after cancel")
}

func TestVegaStorageDownload(t *testing.T) {
	const sessionID = 12

	f := newVegaFixture(t, Tuning{}, func(id uint32, _ []byte) []byte {
		if id != vegaCmdReadSession {
			return nil
		}
		return wire.MarshalResponse(id, []byte{0x01})
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	pages, err := f.conn.StorageDownload(ctx, sessionID)
	if err != nil {
		t.Fatalf("StorageDownload: %v", err)
	}

	opus := make([]byte, 24)
	opus[0] = 0x88
	wrapper := wire.AppendVarintField(nil, 1, 0)
	wrapper = wire.AppendField(wrapper, 2, opus)

	makeStorage := func(seq uint32, page []byte) []byte {
		var buffer []byte
		buffer = wire.AppendVarintField(buffer, 1, sessionID)
		buffer = wire.AppendVarintField(buffer, 2, uint64(seq))
		buffer = wire.AppendVarintField(buffer, 3, uint64(seq))
		buffer = wire.AppendField(buffer, 4, page)
		return wire.AppendField(nil, 1, buffer)
	}

	firstPage := wire.AppendVarintField(nil, 1, 1700000000)
	firstPage = wire.AppendField(firstPage, 2, wrapper)

	stopFlag := wire.AppendVarintField(nil, 2, 1)
	lastPage := wire.AppendVarintField(nil, 1, 1700000060)
	lastPage = wire.AppendField(lastPage, 3, stopFlag)

	f.audio.SimulateNotification(wire.MarshalPacket(wire.Packet{Index: 1, Seq: 0, Total: 1, Payload: makeStorage(0, firstPage)}))
	f.audio.SimulateNotification(wire.MarshalPacket(wire.Packet{Index: 2, Seq: 0, Total: 1, Payload: makeStorage(1, lastPage)}))

	first := <-pages
	if first.Timestamp != 1700000000 {
		t.Fatalf("first page timestamp = %d", first.Timestamp)
	}
	if len(first.Frames) != 1 || len(first.Frames[0]) != 24 {
		t.Fatalf("first page frames = %v", first.Frames)
	}

	last := <-pages
	if !last.StopSession {
		t.Fatal("last page should carry the stop-session flag")
	}

	// The stop flag ends the stream.
	if _, ok := <-pages; ok {
		t.Fatal("stream should close after the stop-session page")
	}
}

func TestVegaStorageDownloadUnacknowledged(t *testing.T) {
	f := newVegaFixture(t, Tuning{CommandTimeout: 30 * time.Millisecond}, nil)

	pages, err := f.conn.StorageDownload(context.Background(), 5)
	if err != nil {
		t.Fatalf("StorageDownload: %v", err)
	}
	select {
	case _, ok := <-pages:
		if ok {
			t.Fatal("unacknowledged download should emit nothing")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("stream never closed")
	}
}

func TestVegaWiFiCredentialValidation(t *testing.T) {
	conn := New(testDevice(KindVega), newMockAdapter(), Tuning{})
	ctx := context.Background()

	if _, err := conn.WiFiSetup(ctx, "", "password123"); !errors.Is(err, ErrInvalidSSID) {
		t.Fatalf("empty ssid: err = %v, want ErrInvalidSSID", err)
	}
	long := make([]byte, 33)
	for i := range long {
		long[i] = 'a'
	}
	if _, err := conn.WiFiSetup(ctx, string(long), ""); !errors.Is(err, ErrInvalidSSID) {
		t.Fatalf("oversized ssid: err = %v, want ErrInvalidSSID", err)
	}
	if _, err := conn.WiFiSetup(ctx, "home", "short"); !errors.Is(err, ErrInvalidPassword) {
		t.Fatalf("short password: err = %v, want ErrInvalidPassword", err)
	}
	// Open networks have no password at all.
	if status, err := conn.WiFiSetup(ctx, "home", ""); err != nil || status != WiFiUnsupported {
		t.Fatalf("open network while disconnected: status=%v err=%v", status, err)
	}
}

func TestVegaWiFiSetupVerdicts(t *testing.T) {
	tests := []struct {
		name    string
		verdict []byte
		want    WiFiStatus
	}{
		{"accepted", []byte{0x01}, WiFiAccepted},
		{"rejected", []byte{0x00}, WiFiRejected},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newVegaFixture(t, Tuning{}, nil)
			setup := f.adapter.conn.install(ble.VegaWiFiSetupUUID)
			status := f.adapter.conn.install(ble.VegaWiFiStatusUUID)
			setup.onWrite = func([]byte) {
				status.SimulateNotification(tt.verdict)
			}

			got, err := f.conn.WiFiSetup(context.Background(), "home", "hunter2-long")
			if err != nil {
				t.Fatalf("WiFiSetup: %v", err)
			}
			if got != tt.want {
				t.Fatalf("status = %v, want %v", got, tt.want)
			}

			creds := wire.ParseEnvelope(setup.lastWrite())
			if string(creds.Payload) != "hunter2-long" {
				t.Fatalf("credential password field = %q", creds.Payload)
			}
		})
	}
}

func TestVegaWiFiSetupTimeout(t *testing.T) {
	f := newVegaFixture(t, Tuning{WiFiTimeout: 30 * time.Millisecond}, nil)
	f.adapter.conn.install(ble.VegaWiFiSetupUUID)
	f.adapter.conn.install(ble.VegaWiFiStatusUUID)

	start := time.Now()
	got, err := f.conn.WiFiSetup(context.Background(), "home", "hunter2-long")
	if err != nil {
		t.Fatalf("WiFiSetup: %v", err)
	}
	if got != WiFiTimeout {
		t.Fatalf("status = %v, want timeout", got)
	}
	if time.Since(start) > 2*time.Second {
		t.Fatal("timeout deadline not honored")
	}
}
