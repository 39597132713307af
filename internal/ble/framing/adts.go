package framing

// adtsHeaderLen is the minimum ADTS header size (protection absent).
const adtsHeaderLen = 7

// ADTS reassembles AAC frames from an ADTS byte stream. Notifications may
// carry several frames, a fraction of one, or garbage from a dropped
// notification; the engine scans for the sync word and resynchronizes by
// dropping one byte at a time on mismatch.
type ADTS struct {
	buf []byte
}

// NewADTS returns an empty ADTS framing engine.
func NewADTS() *ADTS {
	return &ADTS{}
}

// Push appends payload to the internal buffer and emits every complete
// ADTS frame now available. A truncated trailing frame stays buffered
// until the next push.
func (a *ADTS) Push(payload []byte) [][]byte {
	a.buf = append(a.buf, payload...)

	var frames [][]byte
	for {
		// Resync: the 12-bit sync word is 0xFF followed by a high nibble
		// of 0xF in the next byte.
		for len(a.buf) >= 2 && !(a.buf[0] == 0xFF && a.buf[1]&0xF0 == 0xF0) {
			a.buf = a.buf[1:]
		}
		if len(a.buf) < adtsHeaderLen {
			return frames
		}

		// frame_length is 13 bits spanning header bytes 3..5:
		// low 2 bits of byte 3, all of byte 4, high 3 bits of byte 5.
		frameLen := int(a.buf[3]&0x03)<<11 | int(a.buf[4])<<3 | int(a.buf[5])>>5
		if frameLen < adtsHeaderLen {
			// Impossible length; the sync match was a false positive.
			a.buf = a.buf[1:]
			continue
		}
		if len(a.buf) < frameLen {
			return frames
		}

		frame := make([]byte, frameLen)
		copy(frame, a.buf[:frameLen])
		frames = append(frames, frame)
		a.buf = a.buf[frameLen:]
	}
}

// Buffered reports how many bytes are held awaiting a complete frame.
func (a *ADTS) Buffered() int {
	return len(a.buf)
}
