package device

import (
	"encoding/binary"
	"log/slog"
)

// imageEndMarker is the reserved frame index that finalizes a transfer.
const imageEndMarker = 0xFFFF

// orientationMinFirmware is the first firmware revision whose index-0
// packet carries an orientation byte.
const orientationMinFirmware = "2.1.0"

// imageAssembler reassembles a multi-packet image transfer. Each packet
// starts with a 16-bit little-endian frame index: 0 begins a new image
// (optionally carrying a 1-byte orientation code on new-enough
// firmware), intermediate indices must arrive in exact sequence, and
// the end marker finalizes. Any gap discards the in-progress buffer and
// waits for the next index-0; a transfer that outgrows maxBytes is
// abandoned the same way.
type imageAssembler struct {
	maxBytes       int
	hasOrientation bool

	buf         []byte
	next        uint16
	active      bool
	orientation uint8
}

func newImageAssembler(maxBytes int, hasOrientation bool) *imageAssembler {
	return &imageAssembler{maxBytes: maxBytes, hasOrientation: hasOrientation}
}

func (a *imageAssembler) reset() {
	a.buf = nil
	a.next = 0
	a.active = false
}

// push folds one packet in. When the end marker arrives for an active
// transfer, the finished image is returned with ok=true.
func (a *imageAssembler) push(packet []byte) (Image, bool) {
	if len(packet) < 2 {
		return Image{}, false
	}
	idx := binary.LittleEndian.Uint16(packet[:2])
	data := packet[2:]

	switch {
	case idx == imageEndMarker:
		if !a.active {
			return Image{}, false
		}
		img := Image{Data: a.buf, Orientation: a.orientation}
		a.reset()
		return img, true

	case idx == 0:
		a.reset()
		a.active = true
		a.orientation = DefaultOrientation
		if a.hasOrientation && len(data) > 0 {
			a.orientation = data[0]
			data = data[1:]
		}
		a.buf = append(a.buf, data...)
		a.next = 1

	default:
		if !a.active || idx != a.next {
			if a.active {
				slog.Debug("[device] image frame gap, discarding transfer",
					"expected", a.next, "got", idx)
			}
			a.reset()
			return Image{}, false
		}
		a.buf = append(a.buf, data...)
		a.next++
	}

	if len(a.buf) > a.maxBytes {
		slog.Warn("[device] image transfer exceeded size ceiling, discarding",
			"bytes", len(a.buf), "max", a.maxBytes)
		a.reset()
	}
	return Image{}, false
}
