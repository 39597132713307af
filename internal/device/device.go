// Package device normalizes the supported wearable hardware families
// behind one Connection contract. Each family composes the shared
// lifecycle/default-capability helper with its own framing engine and,
// where the protocol calls for it, a command/response correlator.
package device

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
)

// Kind tags a hardware family.
type Kind string

const (
	KindPulse    Kind = "pulse"     // generic wearable service, PCM8/Opus
	KindPulseCam Kind = "pulse-cam" // camera-capable pulse variant, detected post-connect
	KindNimbus   Kind = "nimbus"    // AAC/ADTS pendant
	KindCoral    Kind = "coral"     // fixed-frame Opus clip
	KindPetal    Kind = "petal"     // LC3 buds
	KindVega     Kind = "vega"      // protobuf-framed recorder with flash storage
)

// Codec identifies the audio format a connection emits.
type Codec string

const (
	CodecPCM8      Codec = "pcm8"
	CodecAAC       Codec = "aac"
	CodecOpus      Codec = "opus"
	CodecOpusFS320 Codec = "opus-fs320"
	CodecLC3       Codec = "lc3"
)

// State is the connection lifecycle state.
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	default:
		return "disconnected"
	}
}

// Device is the identity and capability record for one wearable. The
// descriptive fields are populated lazily after connect and cleared by
// Unpair; the record itself persists across reconnects.
type Device struct {
	ID   uuid.UUID
	Addr string
	Name string
	Kind Kind

	Model        string
	Firmware     string
	Hardware     string
	Manufacturer string
}

// Connection errors. Only connect/disconnect and explicit command writes
// surface these; the passive telemetry path degrades silently.
var (
	ErrAlreadyConnected = errors.New("device: already connected")
	ErrNotConnected     = errors.New("device: not connected")
)

// ConnectError wraps a transport failure during connect with the device
// it concerned.
type ConnectError struct {
	Addr   string
	Reason error
}

func (e *ConnectError) Error() string {
	return fmt.Sprintf("device: connect %s: %v", e.Addr, e.Reason)
}

func (e *ConnectError) Unwrap() error { return e.Reason }

// Delegate receives fire-and-forget notifications from a connection.
// Both callbacks may be invoked from notification-handling goroutines.
type Delegate interface {
	// ConnectionLost fires on every transport-level disconnect the caller
	// did not initiate.
	ConnectionLost(dev *Device)
	// FallDetected fires once per accelerometer sample whose magnitude
	// exceeds FallThreshold.
	FallDetected(dev *Device, magnitude float64)
}

// ButtonEvent is an application-visible button action.
type ButtonEvent struct {
	At time.Time
}

// AccelSample is one six-axis motion record.
type AccelSample struct {
	Ax, Ay, Az int16 // accelerometer, raw
	Gx, Gy, Gz int16 // gyroscope, raw
}

// accelScale converts raw accelerometer counts to the unit the fall
// threshold is defined in.
const accelScale = 100.0

// FallThreshold is the magnitude above which a sample is flagged as a
// possible fall.
const FallThreshold = 30.0

// Magnitude returns the scaled acceleration magnitude of the sample.
func (s AccelSample) Magnitude() float64 {
	x := float64(s.Ax) / accelScale
	y := float64(s.Ay) / accelScale
	z := float64(s.Az) / accelScale
	return math.Sqrt(x*x + y*y + z*z)
}

// Image is one reassembled photo from a camera-capable device.
type Image struct {
	Data        []byte
	Orientation uint8
}

// DefaultOrientation is implied by firmware too old to report one.
const DefaultOrientation uint8 = 1

// WiFiStatus is the outcome of a WiFi-sync setup attempt.
type WiFiStatus int

const (
	WiFiUnsupported WiFiStatus = iota
	WiFiAccepted
	WiFiRejected
	WiFiTimeout
)

func (s WiFiStatus) String() string {
	switch s {
	case WiFiAccepted:
		return "accepted"
	case WiFiRejected:
		return "rejected"
	case WiFiTimeout:
		return "timeout"
	default:
		return "unsupported"
	}
}

// Tuning carries the per-family timing knobs. Zero values fall back to
// the defaults observed across the hardware fleet.
type Tuning struct {
	CommandTimeout time.Duration // command/response correlation deadline
	SettleDelay    time.Duration // post-connect delay before the hardware accepts commands
	SetupRetries   int           // record-session bring-up attempts
	SetupBackoff   time.Duration // linear backoff step between bring-up attempts
	WiFiTimeout    time.Duration // WiFi-setup response race deadline
	ImageBufferMax int           // in-progress image transfer ceiling, bytes
}

// DefaultTuning returns the fleet-wide defaults.
func DefaultTuning() Tuning {
	return Tuning{
		CommandTimeout: 5 * time.Second,
		SettleDelay:    500 * time.Millisecond,
		SetupRetries:   3,
		SetupBackoff:   time.Second,
		WiFiTimeout:    5 * time.Second,
		ImageBufferMax: 200 << 10,
	}
}

// withDefaults fills zero fields from DefaultTuning.
func (t Tuning) withDefaults() Tuning {
	def := DefaultTuning()
	if t.CommandTimeout <= 0 {
		t.CommandTimeout = def.CommandTimeout
	}
	if t.SettleDelay <= 0 {
		t.SettleDelay = def.SettleDelay
	}
	if t.SetupRetries <= 0 {
		t.SetupRetries = def.SetupRetries
	}
	if t.SetupBackoff <= 0 {
		t.SetupBackoff = def.SetupBackoff
	}
	if t.WiFiTimeout <= 0 {
		t.WiFiTimeout = def.WiFiTimeout
	}
	if t.ImageBufferMax <= 0 {
		t.ImageBufferMax = def.ImageBufferMax
	}
	return t
}
