package framing

import "log/slog"

// Petal LC3 packet geometry: every notification is 95 bytes, the last 5
// of which are a telemetry footer. The remaining 90 bytes are three
// 30-byte LC3 frames.
const (
	LC3PacketSize = 95
	LC3FooterSize = 5
	LC3FrameSize  = 30
)

// LC3 strips the packet footer and splits the payload into fixed-size
// LC3 frames. Packets of any other length are dropped; the encoder never
// produces them, so one can only come from radio corruption.
type LC3 struct{}

// NewLC3 returns an LC3 framing engine.
func NewLC3() *LC3 {
	return &LC3{}
}

// Push emits the three LC3 frames in a well-formed packet.
func (l *LC3) Push(payload []byte) [][]byte {
	if len(payload) != LC3PacketSize {
		slog.Debug("[framing] dropping malformed LC3 packet", "len", len(payload))
		return nil
	}

	body := payload[:LC3PacketSize-LC3FooterSize]
	frames := make([][]byte, 0, len(body)/LC3FrameSize)
	for off := 0; off+LC3FrameSize <= len(body); off += LC3FrameSize {
		frame := make([]byte, LC3FrameSize)
		copy(frame, body[off:off+LC3FrameSize])
		frames = append(frames, frame)
	}
	return frames
}
