package wire

import "github.com/chaz8081/wearlink/internal/ble/framing"

// Plausible byte-length range for an Opus frame as produced by the
// wearable encoders. Both this and the TOC check must hold before a
// length-delimited sub-field is treated as audio; either alone extracts
// false frames from arbitrary binary noise.
const (
	minOpusFrameLen = 8
	maxOpusFrameLen = 200
)

// Recursion ceiling for frame scanning. Real messages nest two or three
// levels; anything deeper is corrupt data that happens to parse.
const maxScanDepth = 6

// FlashPage is one unit of on-device stored audio, parsed from the blob
// embedded in a StorageMessage.
//
//	field 1 (varint): capture timestamp
//	field 2 (bytes, repeated): audio wrapper { 1: offset, 2: audio data }
//	field 3 (bytes): storage status { 1: start session, 2: stop session }
//	field 4 (bytes): audio status   { 1: start recording, 2: stop recording }
type FlashPage struct {
	Timestamp      uint64
	Frames         [][]byte
	StartSession   bool
	StopSession    bool
	StartRecording bool
	StopRecording  bool
}

// StorageMessage is a reassembled batch-mode message: a storage buffer
// wrapping one flash page.
//
// Outer message: field 1 (bytes): storage buffer.
// Storage buffer:
//
//	field 1 (varint): session id
//	field 2 (varint): sequence
//	field 3 (varint): flash-page index
//	field 4 (bytes):  flash page blob
type StorageMessage struct {
	SessionID uint32
	Sequence  uint32
	PageIndex uint32
	Page      *FlashPage
}

// ParseStorageMessage decodes a reassembled batch-mode message. Returns
// nil if no storage buffer is present (the message was something else or
// too mangled to carry one).
func ParseStorageMessage(data []byte) *StorageMessage {
	var buffer []byte
	scanFields(data, func(f field) bool {
		if f.num == 1 && f.wt == wireLenDelim {
			buffer = f.payload
			return false
		}
		return true
	})
	if buffer == nil {
		return nil
	}

	msg := &StorageMessage{}
	scanFields(buffer, func(f field) bool {
		switch f.num {
		case 1:
			if f.wt == wireVarint {
				msg.SessionID = uint32(f.val)
			}
		case 2:
			if f.wt == wireVarint {
				msg.Sequence = uint32(f.val)
			}
		case 3:
			if f.wt == wireVarint {
				msg.PageIndex = uint32(f.val)
			}
		case 4:
			if f.wt == wireLenDelim {
				msg.Page = ParseFlashPage(f.payload)
			}
		}
		return true
	})
	return msg
}

// ParseFlashPage walks a flash-page blob. Malformed sub-messages truncate
// the walk rather than failing it; whatever frames and flags were
// recovered are returned.
func ParseFlashPage(data []byte) *FlashPage {
	page := &FlashPage{}
	scanFields(data, func(f field) bool {
		switch f.num {
		case 1:
			if f.wt == wireVarint {
				page.Timestamp = f.val
			}
		case 2:
			if f.wt == wireLenDelim {
				page.Frames = append(page.Frames, parseAudioWrapper(f.payload)...)
			}
		case 3:
			if f.wt == wireLenDelim {
				start, stop := parseBoolPair(f.payload)
				page.StartSession = page.StartSession || start
				page.StopSession = page.StopSession || stop
			}
		case 4:
			if f.wt == wireLenDelim {
				start, stop := parseBoolPair(f.payload)
				page.StartRecording = page.StartRecording || start
				page.StopRecording = page.StopRecording || stop
			}
		}
		return true
	})
	return page
}

// parseAudioWrapper extracts Opus frames from one audio wrapper
// sub-message. Field 1 is a skip offset into the audio data; everything
// past it is scanned for embedded frames.
func parseAudioWrapper(data []byte) [][]byte {
	var offset uint64
	var audio []byte
	scanFields(data, func(f field) bool {
		switch f.num {
		case 1:
			if f.wt == wireVarint {
				offset = f.val
			}
		case 2:
			if f.wt == wireLenDelim {
				audio = f.payload
			}
		}
		return true
	})
	if audio == nil || offset > uint64(len(audio)) {
		return nil
	}
	return scanOpusFrames(audio[offset:], 0)
}

func parseBoolPair(data []byte) (first, second bool) {
	scanFields(data, func(f field) bool {
		if f.wt != wireVarint {
			return true
		}
		switch f.num {
		case 1:
			first = f.val != 0
		case 2:
			second = f.val != 0
		}
		return true
	})
	return first, second
}

// ScanOpusFrames walks a reassembled real-time message and extracts every
// length-delimited sub-field that looks like an Opus frame: byte length
// in the plausible range and a known TOC first byte. Sub-fields that do
// not qualify are descended into, bounded by their declared length and a
// depth ceiling.
func ScanOpusFrames(data []byte) [][]byte {
	return scanOpusFrames(data, 0)
}

func scanOpusFrames(data []byte, depth int) [][]byte {
	if depth > maxScanDepth {
		return nil
	}
	var frames [][]byte
	scanFields(data, func(f field) bool {
		if f.wt != wireLenDelim {
			return true
		}
		if isOpusFrame(f.payload) {
			frame := make([]byte, len(f.payload))
			copy(frame, f.payload)
			frames = append(frames, frame)
			return true
		}
		frames = append(frames, scanOpusFrames(f.payload, depth+1)...)
		return true
	})
	return frames
}

func isOpusFrame(payload []byte) bool {
	if len(payload) < minOpusFrameLen || len(payload) > maxOpusFrameLen {
		return false
	}
	return framing.ValidOpusTOC(payload[0])
}
