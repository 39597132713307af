package device

import (
	"context"

	"github.com/chaz8081/wearlink/internal/ble/wire"
)

// Connection is the uniform contract every hardware family implements.
//
// Degradation policy: Connect and Disconnect surface errors; WiFiSetup
// surfaces credential-validation errors. Everything else never fails —
// a capability the device lacks (or a device that is disconnected)
// yields the documented default: -1 battery, a closed stream, a nil
// status, a false setter result. Callers need not type-check device
// capability before calling.
//
// All streams honor ctx cancellation: the underlying subscription is
// torn down and any stop/mute command the hardware needs is sent before
// the channel closes.
type Connection interface {
	Connect(ctx context.Context) error
	Disconnect() error
	// Unpair clears cached capability data and the liveness timestamp,
	// disconnecting first if needed.
	Unpair() error
	Ping(ctx context.Context) error
	State() State
	Device() *Device
	SetDelegate(d Delegate)

	// BatteryLevel returns 0..100, or -1 when unavailable.
	BatteryLevel(ctx context.Context) int
	// AudioCodec reports the codec of frames emitted by AudioFrames.
	AudioCodec() Codec
	// AudioFrames streams complete, independently decodable frames.
	AudioFrames(ctx context.Context) (<-chan []byte, error)
	ButtonEvents(ctx context.Context) (<-chan ButtonEvent, error)
	AccelStream(ctx context.Context) (<-chan AccelSample, error)
	Images(ctx context.Context) (<-chan Image, error)

	// StorageStatus returns the device's flash summary, or nil when the
	// family has no storage or the query went unanswered.
	StorageStatus(ctx context.Context) *wire.DeviceStatus
	// StorageDownload streams stored flash pages for a session.
	StorageDownload(ctx context.Context, sessionID uint32) (<-chan wire.FlashPage, error)

	// WiFiSetup validates credentials, pushes them to the device and
	// races the device's answer against a deadline. The error is non-nil
	// only for invalid credentials.
	WiFiSetup(ctx context.Context, ssid, password string) (WiFiStatus, error)

	// Best-effort setters; false means not supported or not delivered.
	SetLED(ctx context.Context, on bool) bool
	SetMicGain(ctx context.Context, gain uint8) bool
	PlayHaptic(ctx context.Context, pattern uint8) bool
}
