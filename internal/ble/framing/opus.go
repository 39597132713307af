package framing

import "log/slog"

// OpusFrameSize is the fixed frame length used by the coral family's
// firmware encoder.
const OpusFrameSize = 40

// OpusSlicer splits frame-aligned notifications into fixed-size Opus
// frames. This family's transport always starts a notification on a frame
// boundary, so nothing is buffered across pushes; a trailing partial slice
// is discarded.
type OpusSlicer struct {
	frameSize int
}

// NewOpusSlicer returns a slicer for frameSize-byte frames. A frameSize
// of zero or less uses OpusFrameSize.
func NewOpusSlicer(frameSize int) *OpusSlicer {
	if frameSize <= 0 {
		frameSize = OpusFrameSize
	}
	return &OpusSlicer{frameSize: frameSize}
}

// Push slices payload into consecutive fixed-size frames. A slice with an
// unexpected TOC byte is logged but still emitted: a false negative costs
// an audible gap, a false positive costs one garbled frame.
func (s *OpusSlicer) Push(payload []byte) [][]byte {
	var frames [][]byte
	for len(payload) >= s.frameSize {
		frame := make([]byte, s.frameSize)
		copy(frame, payload[:s.frameSize])
		payload = payload[s.frameSize:]

		if !ValidOpusTOC(frame[0]) {
			slog.Debug("[framing] unexpected Opus TOC byte", "toc", frame[0])
		}
		frames = append(frames, frame)
	}
	if len(payload) > 0 {
		slog.Debug("[framing] discarding trailing partial Opus slice", "len", len(payload))
	}
	return frames
}

// ValidOpusTOC reports whether b looks like the TOC byte of an Opus frame
// as produced by the wearable encoders: a CELT-only configuration
// (config >= 16) with code 0 (one frame per packet).
func ValidOpusTOC(b byte) bool {
	return b>>3 >= 16 && b&0x03 == 0
}
