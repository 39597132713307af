package device

import (
	"github.com/chaz8081/wearlink/internal/ble"
)

// New returns the Connection implementation for the device's hardware
// family. Unknown kinds get the generic implementation: it speaks only
// the common service, so an unrecognized device still connects, reports
// battery, and streams whatever its audio characteristic carries.
func New(dev *Device, adapter ble.Adapter, tuning Tuning) Connection {
	switch dev.Kind {
	case KindNimbus:
		return newNimbus(dev, adapter, tuning)
	case KindCoral:
		return newCoral(dev, adapter, tuning)
	case KindPetal:
		return newPetal(dev, adapter, tuning)
	case KindVega:
		return newVega(dev, adapter, tuning)
	case KindPulse, KindPulseCam:
		return newPulse(dev, adapter, tuning)
	default:
		return newPulse(dev, adapter, tuning)
	}
}

// ServiceUUID returns the primary GATT service a family advertises,
// used to filter scan results.
func ServiceUUID(kind Kind) string {
	switch kind {
	case KindNimbus:
		return ble.NimbusServiceUUID
	case KindCoral:
		return ble.CoralServiceUUID
	case KindPetal:
		return ble.PetalServiceUUID
	case KindVega:
		return ble.VegaServiceUUID
	default:
		return ble.WearServiceUUID
	}
}
