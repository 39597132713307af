// Package ble abstracts the GATT transport used to talk to wearable
// devices. It defines the adapter/connection/characteristic contract the
// device layer is written against, plus the service and characteristic
// UUIDs for every supported hardware family.
package ble

import "context"

// Standard Bluetooth SIG services shared by all families.
const (
	DeviceInfoServiceUUID = "0000180a-0000-1000-8000-00805f9b34fb"
	ModelNumberCharUUID   = "00002a24-0000-1000-8000-00805f9b34fb"
	FirmwareRevCharUUID   = "00002a26-0000-1000-8000-00805f9b34fb"
	HardwareRevCharUUID   = "00002a27-0000-1000-8000-00805f9b34fb"
	ManufacturerCharUUID  = "00002a29-0000-1000-8000-00805f9b34fb"

	BatteryServiceUUID = "0000180f-0000-1000-8000-00805f9b34fb"
	BatteryLevelUUID   = "00002a19-0000-1000-8000-00805f9b34fb"
)

// Common wearable service exposed by the pulse family and read by the
// base capability defaults on every family that carries it.
const (
	WearServiceUUID    = "19b10000-e8f2-537e-4f6c-d104768a1214"
	WearAudioDataUUID  = "19b10001-e8f2-537e-4f6c-d104768a1214"
	WearAudioCodecUUID = "19b10002-e8f2-537e-4f6c-d104768a1214"
	WearButtonUUID     = "19b10003-e8f2-537e-4f6c-d104768a1214"
	WearAccelUUID      = "19b10004-e8f2-537e-4f6c-d104768a1214"
	WearImageDataUUID  = "19b10005-e8f2-537e-4f6c-d104768a1214"
	WearImageCtrlUUID  = "19b10006-e8f2-537e-4f6c-d104768a1214"
	WearSettingsUUID   = "19b10007-e8f2-537e-4f6c-d104768a1214"
	WearSpeakerUUID    = "19b10008-e8f2-537e-4f6c-d104768a1214"
)

// Nimbus pendants stream AAC and take raw one-byte control commands.
const (
	NimbusServiceUUID = "6b400001-b5a3-f393-e0a9-e50e24dcca9e"
	NimbusAudioUUID   = "6b400002-b5a3-f393-e0a9-e50e24dcca9e"
	NimbusControlUUID = "6b400003-b5a3-f393-e0a9-e50e24dcca9e"
)

// Coral clips stream fixed-size Opus frames after an explicit
// record-session bring-up sequence on the control characteristic.
const (
	CoralServiceUUID = "8e400001-f315-4f60-9fb8-838830daea50"
	CoralAudioUUID   = "8e400002-f315-4f60-9fb8-838830daea50"
	CoralControlUUID = "8e400003-f315-4f60-9fb8-838830daea50"
)

// Petal buds stream LC3 in fixed 95-byte packets.
const (
	PetalServiceUUID = "3d8a0001-15e2-43f7-9b2c-a1b4f33c0d71"
	PetalAudioUUID   = "3d8a0002-15e2-43f7-9b2c-a1b4f33c0d71"
)

// Vega recorders use a protobuf-style framed protocol: commands go out on
// TX, responses and telemetry come back on RX, audio on its own
// characteristic, plus a WiFi credential service for bulk offload.
const (
	VegaServiceUUID    = "5a300001-9c66-4b58-8a1f-7d2e0c40a3b2"
	VegaTXUUID         = "5a300002-9c66-4b58-8a1f-7d2e0c40a3b2"
	VegaRXUUID         = "5a300003-9c66-4b58-8a1f-7d2e0c40a3b2"
	VegaAudioUUID      = "5a300004-9c66-4b58-8a1f-7d2e0c40a3b2"
	VegaWiFiSetupUUID  = "5a300005-9c66-4b58-8a1f-7d2e0c40a3b2"
	VegaWiFiStatusUUID = "5a300006-9c66-4b58-8a1f-7d2e0c40a3b2"
)

// Characteristic represents a BLE GATT characteristic.
type Characteristic interface {
	// Read reads the current value of the characteristic.
	Read() ([]byte, error)
	// Write sends data to the characteristic with response.
	Write(data []byte) error
	// WriteWithoutResponse sends data without waiting for an ATT response.
	WriteWithoutResponse(data []byte) error
	// Subscribe registers a callback for notifications on this characteristic.
	// Passing nil unsubscribes.
	Subscribe(callback func(data []byte)) error
}

// Peripheral represents a discovered BLE device.
type Peripheral struct {
	Name string
	Addr string // MAC on Linux, CoreBluetooth UUID on macOS
	RSSI int
}

// Connection represents an active BLE connection to a peripheral.
type Connection interface {
	// DiscoverCharacteristic finds a characteristic by UUID within a service.
	DiscoverCharacteristic(serviceUUID, charUUID string) (Characteristic, error)
	// Ping performs a cheap liveness round trip over the link.
	Ping(ctx context.Context) error
	// Disconnect terminates the connection.
	Disconnect() error
	// OnDisconnect registers a callback invoked when the connection drops.
	OnDisconnect(callback func())
}

// Adapter abstracts the BLE hardware adapter for testing.
type Adapter interface {
	// Enable powers on the BLE adapter.
	Enable() error
	// Scan discovers BLE peripherals advertising the given service UUID
	// until ctx is cancelled or times out.
	Scan(ctx context.Context, serviceUUID string) ([]Peripheral, error)
	// Connect establishes a connection to the peripheral at addr.
	Connect(ctx context.Context, addr string) (Connection, error)
}
