package wire

// ButtonState mirrors the firmware's button-state enum.
type ButtonState uint32

const (
	ButtonNone ButtonState = iota
	ButtonSinglePress
	ButtonDoublePress
	ButtonLongPress
)

// DeviceStatus is the storage summary reported by a vega recorder.
type DeviceStatus struct {
	OldestPage uint32
	NewestPage uint32
	SessionID  uint32
	FreePages  uint32
	TotalPages uint32
}

// Echo is the acknowledgement wrapper some firmware revisions send: the
// original command id restated, with the semantic payload alongside.
type Echo struct {
	CommandID uint32
	Payload   []byte
}

// Envelope is the decoded form of one control (RX) notification. It is a
// union: any subset of the members may be present, and classification
// happens on arrival because responses, echoes, button events and status
// reports all share the characteristic.
//
//	field 1 (varint): response code
//	field 2 (bytes):  response payload
//	field 3 (bytes):  echo { 1: command id, 2: payload }
//	field 4 (bytes):  button event { 1: state }
//	field 5 (bytes):  device status { 1..5 }
type Envelope struct {
	Code    uint32
	HasCode bool
	Payload []byte
	Echo    *Echo
	Button  *ButtonState
	Status  *DeviceStatus
}

// ParseEnvelope decodes a control notification. It never fails: whatever
// fields survive a truncated buffer are returned.
func ParseEnvelope(data []byte) *Envelope {
	e := &Envelope{}
	scanFields(data, func(f field) bool {
		switch f.num {
		case 1:
			if f.wt == wireVarint {
				e.Code = uint32(f.val)
				e.HasCode = true
			}
		case 2:
			if f.wt == wireLenDelim {
				e.Payload = make([]byte, len(f.payload))
				copy(e.Payload, f.payload)
			}
		case 3:
			if f.wt == wireLenDelim {
				e.Echo = parseEcho(f.payload)
			}
		case 4:
			if f.wt == wireLenDelim {
				e.Button = parseButton(f.payload)
			}
		case 5:
			if f.wt == wireLenDelim {
				e.Status = parseStatus(f.payload)
			}
		}
		return true
	})
	return e
}

func parseEcho(data []byte) *Echo {
	echo := &Echo{}
	scanFields(data, func(f field) bool {
		switch f.num {
		case 1:
			if f.wt == wireVarint {
				echo.CommandID = uint32(f.val)
			}
		case 2:
			if f.wt == wireLenDelim {
				echo.Payload = make([]byte, len(f.payload))
				copy(echo.Payload, f.payload)
			}
		}
		return true
	})
	return echo
}

func parseButton(data []byte) *ButtonState {
	var state *ButtonState
	scanFields(data, func(f field) bool {
		if f.num == 1 && f.wt == wireVarint {
			s := ButtonState(f.val)
			state = &s
		}
		return true
	})
	return state
}

// ParseDeviceStatus decodes a device-status sub-message, as carried both
// in envelope field 5 and in the payload of a status-command response.
func ParseDeviceStatus(data []byte) *DeviceStatus {
	return parseStatus(data)
}

func parseStatus(data []byte) *DeviceStatus {
	st := &DeviceStatus{}
	scanFields(data, func(f field) bool {
		if f.wt != wireVarint {
			return true
		}
		switch f.num {
		case 1:
			st.OldestPage = uint32(f.val)
		case 2:
			st.NewestPage = uint32(f.val)
		case 3:
			st.SessionID = uint32(f.val)
		case 4:
			st.FreePages = uint32(f.val)
		case 5:
			st.TotalPages = uint32(f.val)
		}
		return true
	})
	return st
}

// MarshalCommand encodes an outbound command for the TX characteristic.
//
//	field 1 (varint): command id
//	field 2 (bytes):  command payload
func MarshalCommand(id uint32, payload []byte) []byte {
	var buf []byte
	buf = AppendVarintField(buf, 1, uint64(id))
	if len(payload) > 0 {
		buf = AppendField(buf, 2, payload)
	}
	return buf
}

// Envelope builders used by firmware simulators in tests.

// MarshalResponse encodes a direct response envelope.
func MarshalResponse(code uint32, payload []byte) []byte {
	var buf []byte
	buf = AppendVarintField(buf, 1, uint64(code))
	if payload != nil {
		buf = AppendField(buf, 2, payload)
	}
	return buf
}

// MarshalEcho encodes an echo-wrapped response envelope.
func MarshalEcho(commandID uint32, payload []byte) []byte {
	var inner []byte
	inner = AppendVarintField(inner, 1, uint64(commandID))
	if payload != nil {
		inner = AppendField(inner, 2, payload)
	}
	return AppendField(nil, 3, inner)
}

// MarshalButtonEvent encodes a button-event envelope.
func MarshalButtonEvent(state ButtonState) []byte {
	inner := AppendVarintField(nil, 1, uint64(state))
	return AppendField(nil, 4, inner)
}

// MarshalDeviceStatus encodes a device-status envelope.
func MarshalDeviceStatus(st DeviceStatus) []byte {
	var inner []byte
	inner = AppendVarintField(inner, 1, uint64(st.OldestPage))
	inner = AppendVarintField(inner, 2, uint64(st.NewestPage))
	inner = AppendVarintField(inner, 3, uint64(st.SessionID))
	inner = AppendVarintField(inner, 4, uint64(st.FreePages))
	inner = AppendVarintField(inner, 5, uint64(st.TotalPages))
	return AppendField(nil, 5, inner)
}
