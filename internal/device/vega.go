package device

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/chaz8081/wearlink/internal/ble"
	"github.com/chaz8081/wearlink/internal/ble/wire"
)

// Vega command ids.
const (
	vegaCmdStatus      = 0x01
	vegaCmdStartStream = 0x02
	vegaCmdStopStream  = 0x03
	vegaCmdReadSession = 0x04
)

// WiFi credential constraints, validated before any radio interaction.
var (
	ErrInvalidSSID     = errors.New("device: wifi ssid must be 1-32 bytes")
	ErrInvalidPassword = errors.New("device: wifi password must be empty or 8-63 bytes")
)

// vegaConn drives the protobuf-framed recorder family. Commands go out
// on TX and are correlated with RX notifications, which also carry
// button events and status reports; audio and stored flash pages arrive
// fragmented on the audio characteristic and pass through the
// reassembler before interpretation.
type vegaConn struct {
	base
	corr *correlator

	vmu        sync.Mutex
	buttonSubs []chan ButtonEvent
	lastStatus *wire.DeviceStatus
	ctrlCancel context.CancelFunc
}

func newVega(dev *Device, adapter ble.Adapter, tuning Tuning) *vegaConn {
	v := &vegaConn{base: newBase(dev, adapter, tuning)}
	v.corr = newCorrelator(v.tuning.CommandTimeout)
	return v
}

func (v *vegaConn) Connect(ctx context.Context) error {
	if err := v.base.Connect(ctx); err != nil {
		return err
	}
	v.startControlLoop()
	return nil
}

func (v *vegaConn) Disconnect() error {
	v.stopControlLoop()
	return v.base.Disconnect()
}

func (v *vegaConn) Unpair() error {
	v.stopControlLoop()
	v.vmu.Lock()
	v.lastStatus = nil
	v.vmu.Unlock()
	return v.base.Unpair()
}

// startControlLoop subscribes to RX for the lifetime of the connection
// and classifies every notification on arrival.
func (v *vegaConn) startControlLoop() {
	conn := v.connection()
	if conn == nil {
		return
	}
	rx, err := conn.DiscoverCharacteristic(ble.VegaServiceUUID, ble.VegaRXUUID)
	if err != nil {
		slog.Warn("[device] vega control characteristic missing", "error", err)
		return
	}

	ctrlCtx, cancel := context.WithCancel(context.Background())
	v.vmu.Lock()
	if v.ctrlCancel != nil {
		v.ctrlCancel()
	}
	v.ctrlCancel = cancel
	v.vmu.Unlock()

	raw, err := ble.NotificationStream(ctrlCtx, rx, 64)
	if err != nil {
		slog.Warn("[device] vega control subscribe failed", "error", err)
		cancel()
		return
	}
	go func() {
		for data := range raw {
			v.handleControl(data)
		}
	}()
}

func (v *vegaConn) stopControlLoop() {
	v.vmu.Lock()
	cancel := v.ctrlCancel
	v.ctrlCancel = nil
	v.vmu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// handleControl classifies one RX notification: a direct response, an
// echo-wrapped response, a button event, or a status report. Unclaimed
// responses and non-double button presses are swallowed.
func (v *vegaConn) handleControl(data []byte) {
	e := wire.ParseEnvelope(data)

	if e.HasCode && v.corr.resolve(e.Code, e.Payload) {
		return
	}
	if e.Echo != nil && v.corr.resolve(e.Echo.CommandID, e.Echo.Payload) {
		return
	}
	if e.Button != nil {
		if *e.Button == wire.ButtonDoublePress {
			v.fanoutButton(ButtonEvent{At: time.Now()})
		}
		return
	}
	if e.Status != nil {
		v.vmu.Lock()
		v.lastStatus = e.Status
		v.vmu.Unlock()
	}
}

// fanoutButton delivers one event to every subscriber. Sends happen
// under the lock so an unsubscribing channel is never written after
// close; they are non-blocking because a subscriber that is not
// draining must not stall the control loop.
func (v *vegaConn) fanoutButton(ev ButtonEvent) {
	v.vmu.Lock()
	defer v.vmu.Unlock()
	for _, ch := range v.buttonSubs {
		select {
		case ch <- ev:
		default:
		}
	}
}

// sendCommand writes one command and awaits its correlated response.
// Every failure mode — disconnected, write error, timeout — yields nil.
func (v *vegaConn) sendCommand(ctx context.Context, id uint32, payload []byte) []byte {
	conn := v.connection()
	if conn == nil {
		return nil
	}
	tx, err := conn.DiscoverCharacteristic(ble.VegaServiceUUID, ble.VegaTXUUID)
	if err != nil {
		return nil
	}

	ch := v.corr.register(id)
	if err := tx.WriteWithoutResponse(wire.MarshalCommand(id, payload)); err != nil {
		slog.Debug("[device] command write failed", "command", id, "error", err)
		v.corr.drop(id, ch)
		return nil
	}
	return v.corr.await(ctx, id, ch)
}

func (v *vegaConn) AudioCodec() Codec { return CodecOpus }

// AudioFrames opens the live stream: a start command, then fragmented
// packets reassembled per message index and scanned for embedded Opus
// frames. Cancellation sends the stop command before the channel closes.
func (v *vegaConn) AudioFrames(ctx context.Context) (<-chan []byte, error) {
	conn := v.connection()
	if conn == nil {
		return closedChan[[]byte](), nil
	}
	audio, err := conn.DiscoverCharacteristic(ble.VegaServiceUUID, ble.VegaAudioUUID)
	if err != nil {
		return closedChan[[]byte](), nil
	}
	raw, err := ble.NotificationStream(ctx, audio, 128)
	if err != nil {
		return closedChan[[]byte](), nil
	}

	// The ack is advisory; firmware that never acks still streams.
	if v.sendCommand(ctx, vegaCmdStartStream, nil) == nil {
		slog.Debug("[device] start-stream command unacknowledged")
	}

	out := make(chan []byte, 64)
	go func() {
		defer close(out)
		defer func() {
			stopCtx, cancel := context.WithTimeout(context.Background(), v.tuning.CommandTimeout)
			defer cancel()
			v.sendCommand(stopCtx, vegaCmdStopStream, nil)
		}()

		reasm := wire.NewReassembler()
		for payload := range raw {
			p, err := wire.ParsePacket(payload)
			if err != nil {
				slog.Debug("[device] dropping malformed audio packet", "error", err)
				continue
			}
			msg, ok := reasm.Add(p)
			if !ok {
				continue
			}
			for _, frame := range wire.ScanOpusFrames(msg) {
				select {
				case out <- frame:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

// ButtonEvents delivers double-press events classified by the control
// loop. Other press states are swallowed by design.
func (v *vegaConn) ButtonEvents(ctx context.Context) (<-chan ButtonEvent, error) {
	if v.connection() == nil {
		return closedChan[ButtonEvent](), nil
	}
	ch := make(chan ButtonEvent, 16)
	v.vmu.Lock()
	v.buttonSubs = append(v.buttonSubs, ch)
	v.vmu.Unlock()

	go func() {
		<-ctx.Done()
		v.vmu.Lock()
		for i, sub := range v.buttonSubs {
			if sub == ch {
				v.buttonSubs = append(v.buttonSubs[:i], v.buttonSubs[i+1:]...)
				break
			}
		}
		v.vmu.Unlock()
		close(ch)
	}()
	return ch, nil
}

// StorageStatus queries the device's flash summary. A timed-out query
// falls back to the last spontaneously reported status, and then to nil.
func (v *vegaConn) StorageStatus(ctx context.Context) *wire.DeviceStatus {
	if payload := v.sendCommand(ctx, vegaCmdStatus, nil); payload != nil {
		return wire.ParseDeviceStatus(payload)
	}
	v.vmu.Lock()
	defer v.vmu.Unlock()
	return v.lastStatus
}

// StorageDownload requests a stored session and streams its flash pages
// as they arrive, fragmented, on the audio characteristic. The stream
// ends at the page carrying the stop-session flag or when ctx ends.
func (v *vegaConn) StorageDownload(ctx context.Context, sessionID uint32) (<-chan wire.FlashPage, error) {
	conn := v.connection()
	if conn == nil {
		return closedChan[wire.FlashPage](), nil
	}
	audio, err := conn.DiscoverCharacteristic(ble.VegaServiceUUID, ble.VegaAudioUUID)
	if err != nil {
		return closedChan[wire.FlashPage](), nil
	}
	raw, err := ble.NotificationStream(ctx, audio, 128)
	if err != nil {
		return closedChan[wire.FlashPage](), nil
	}

	out := make(chan wire.FlashPage, 8)
	go func() {
		defer close(out)

		req := wire.AppendVarintField(nil, 1, uint64(sessionID))
		if v.sendCommand(ctx, vegaCmdReadSession, req) == nil {
			slog.Warn("[device] read-session unacknowledged, storage unavailable",
				"session", sessionID)
			return
		}

		reasm := wire.NewReassembler()
		for payload := range raw {
			p, err := wire.ParsePacket(payload)
			if err != nil {
				continue
			}
			msg, ok := reasm.Add(p)
			if !ok {
				continue
			}
			sm := wire.ParseStorageMessage(msg)
			if sm == nil || sm.Page == nil || sm.SessionID != sessionID {
				continue
			}
			select {
			case out <- *sm.Page:
			case <-ctx.Done():
				return
			}
			if sm.Page.StopSession {
				return
			}
		}
	}()
	return out, nil
}

// WiFiSetup validates the credentials, writes them to the setup
// characteristic, and races the device's verdict against the deadline.
func (v *vegaConn) WiFiSetup(ctx context.Context, ssid, password string) (WiFiStatus, error) {
	if len(ssid) == 0 || len(ssid) > 32 {
		return WiFiRejected, ErrInvalidSSID
	}
	if len(password) != 0 && (len(password) < 8 || len(password) > 63) {
		return WiFiRejected, ErrInvalidPassword
	}

	conn := v.connection()
	if conn == nil {
		return WiFiUnsupported, nil
	}
	setup, err := conn.DiscoverCharacteristic(ble.VegaServiceUUID, ble.VegaWiFiSetupUUID)
	if err != nil {
		return WiFiUnsupported, nil
	}
	status, err := conn.DiscoverCharacteristic(ble.VegaServiceUUID, ble.VegaWiFiStatusUUID)
	if err != nil {
		return WiFiUnsupported, nil
	}

	raceCtx, cancel := context.WithTimeout(ctx, v.tuning.WiFiTimeout)
	defer cancel()
	verdicts, err := ble.NotificationStream(raceCtx, status, 4)
	if err != nil {
		return WiFiUnsupported, nil
	}

	var creds []byte
	creds = wire.AppendField(creds, 1, []byte(ssid))
	creds = wire.AppendField(creds, 2, []byte(password))
	if err := setup.Write(creds); err != nil {
		slog.Warn("[device] wifi credential write failed", "error", err)
		return WiFiTimeout, nil
	}

	select {
	case data, ok := <-verdicts:
		if !ok {
			return WiFiTimeout, nil
		}
		if len(data) > 0 && data[0] == 0x01 {
			return WiFiAccepted, nil
		}
		return WiFiRejected, nil
	case <-raceCtx.Done():
		return WiFiTimeout, nil
	}
}
