package framing

import (
	"bytes"
	"testing"
)

// makeOpusPayload builds n consecutive 40-byte frames, each starting with
// a valid TOC byte and filled with its frame index.
func makeOpusPayload(n int) []byte {
	var payload []byte
	for i := 0; i < n; i++ {
		frame := bytes.Repeat([]byte{byte(i)}, OpusFrameSize)
		frame[0] = 0xB8 // CELT-WB 20 ms, mono, code 0
		payload = append(payload, frame...)
	}
	return payload
}

func TestOpusSlicerExactMultiple(t *testing.T) {
	slicer := NewOpusSlicer(0)
	for _, k := range []int{1, 2, 5, 12} {
		frames := slicer.Push(makeOpusPayload(k))
		if len(frames) != k {
			t.Fatalf("k=%d: got %d frames, want %d", k, len(frames), k)
		}
		for i, f := range frames {
			if len(f) != OpusFrameSize {
				t.Errorf("k=%d: frame[%d] len=%d, want %d", k, i, len(f), OpusFrameSize)
			}
			if f[1] != byte(i) {
				t.Errorf("k=%d: frame[%d] out of order (marker %d)", k, i, f[1])
			}
		}
	}
}

func TestOpusSlicerTrailingRemainderDiscarded(t *testing.T) {
	slicer := NewOpusSlicer(0)
	for _, r := range []int{1, 17, 39} {
		payload := append(makeOpusPayload(3), bytes.Repeat([]byte{0xEE}, r)...)
		frames := slicer.Push(payload)
		if len(frames) != 3 {
			t.Fatalf("r=%d: got %d frames, want 3", r, len(frames))
		}
		// The remainder must not leak into a later push.
		frames = slicer.Push(makeOpusPayload(1))
		if len(frames) != 1 {
			t.Fatalf("r=%d: got %d frames on next push, want 1", r, len(frames))
		}
		if frames[0][0] != 0xB8 {
			t.Errorf("r=%d: next push frame corrupted by stale remainder", r)
		}
	}
}

func TestOpusSlicerEmptyPayload(t *testing.T) {
	slicer := NewOpusSlicer(0)
	if frames := slicer.Push(nil); len(frames) != 0 {
		t.Errorf("got %d frames from empty payload, want 0", len(frames))
	}
}

func TestOpusSlicerBadTOCStillEmitted(t *testing.T) {
	slicer := NewOpusSlicer(0)
	payload := bytes.Repeat([]byte{0x00}, OpusFrameSize)
	frames := slicer.Push(payload)
	if len(frames) != 1 {
		t.Fatalf("got %d frames, want 1 (TOC mismatch must not discard)", len(frames))
	}
}

func TestOpusSlicerNoByteLossOrDuplication(t *testing.T) {
	slicer := NewOpusSlicer(0)
	payload := makeOpusPayload(4)
	frames := slicer.Push(payload)

	var joined []byte
	for _, f := range frames {
		joined = append(joined, f...)
	}
	if !bytes.Equal(joined, payload) {
		t.Errorf("concatenated frames differ from input payload")
	}
}

func TestValidOpusTOC(t *testing.T) {
	cases := []struct {
		toc   byte
		valid bool
	}{
		{0xB8, true},  // CELT-WB 20 ms, code 0
		{0x80, true},  // config 16, code 0
		{0xF8, true},  // config 31, code 0
		{0xB9, false}, // code 1
		{0x78, false}, // SILK/hybrid config
		{0x00, false},
	}
	for _, tc := range cases {
		if got := ValidOpusTOC(tc.toc); got != tc.valid {
			t.Errorf("ValidOpusTOC(%#x) = %v, want %v", tc.toc, got, tc.valid)
		}
	}
}
