package framing

import (
	"bytes"
	"testing"
)

// makeADTSFrame builds a syntactically valid ADTS frame whose payload is
// filled with fill. totalLen includes the 7-byte header.
func makeADTSFrame(totalLen int, fill byte) []byte {
	frame := make([]byte, totalLen)
	frame[0] = 0xFF
	frame[1] = 0xF1 // MPEG-4, layer 0, protection absent
	frame[2] = 0x50
	frame[3] = byte(totalLen>>11) & 0x03
	frame[4] = byte(totalLen >> 3)
	frame[5] = byte(totalLen&0x07) << 5
	frame[6] = 0xFC
	for i := adtsHeaderLen; i < totalLen; i++ {
		frame[i] = fill
	}
	return frame
}

func TestADTSSingleFrame(t *testing.T) {
	engine := NewADTS()
	want := makeADTSFrame(32, 0xAB)

	frames := engine.Push(want)
	if len(frames) != 1 {
		t.Fatalf("got %d frames, want 1", len(frames))
	}
	if !bytes.Equal(frames[0], want) {
		t.Errorf("frame = % x, want % x", frames[0], want)
	}
	if engine.Buffered() != 0 {
		t.Errorf("buffered = %d, want 0", engine.Buffered())
	}
}

func TestADTSGarbagePrefixResync(t *testing.T) {
	// One valid frame preceded by N garbage bytes must emit exactly that
	// frame, for any N.
	want := makeADTSFrame(24, 0x77)
	for _, n := range []int{0, 1, 2, 7, 13, 100} {
		engine := NewADTS()
		garbage := bytes.Repeat([]byte{0x5A}, n)

		frames := engine.Push(append(garbage, want...))
		if len(frames) != 1 {
			t.Fatalf("N=%d: got %d frames, want 1", n, len(frames))
		}
		if !bytes.Equal(frames[0], want) {
			t.Errorf("N=%d: frame mismatch", n)
		}
	}
}

func TestADTSMultipleFramesOneNotification(t *testing.T) {
	engine := NewADTS()
	f1 := makeADTSFrame(16, 0x01)
	f2 := makeADTSFrame(40, 0x02)
	f3 := makeADTSFrame(25, 0x03)

	payload := append(append(append([]byte{}, f1...), f2...), f3...)
	frames := engine.Push(payload)
	if len(frames) != 3 {
		t.Fatalf("got %d frames, want 3", len(frames))
	}
	for i, want := range [][]byte{f1, f2, f3} {
		if !bytes.Equal(frames[i], want) {
			t.Errorf("frame[%d] mismatch", i)
		}
	}
}

func TestADTSTruncatedFrameBuffered(t *testing.T) {
	engine := NewADTS()
	full := makeADTSFrame(50, 0xCD)

	frames := engine.Push(full[:20])
	if len(frames) != 0 {
		t.Fatalf("got %d frames from partial data, want 0", len(frames))
	}
	if engine.Buffered() != 20 {
		t.Errorf("buffered = %d, want 20", engine.Buffered())
	}

	frames = engine.Push(full[20:])
	if len(frames) != 1 {
		t.Fatalf("got %d frames after completion, want 1", len(frames))
	}
	if !bytes.Equal(frames[0], full) {
		t.Errorf("reassembled frame mismatch")
	}
}

func TestADTSFrameSplitAcrossManyNotifications(t *testing.T) {
	engine := NewADTS()
	full := makeADTSFrame(64, 0xEE)

	var got [][]byte
	for i := 0; i < len(full); i += 5 {
		end := i + 5
		if end > len(full) {
			end = len(full)
		}
		got = append(got, engine.Push(full[i:end])...)
	}
	if len(got) != 1 {
		t.Fatalf("got %d frames, want 1", len(got))
	}
	if !bytes.Equal(got[0], full) {
		t.Errorf("reassembled frame mismatch")
	}
}

func TestADTSFalseSyncAdvances(t *testing.T) {
	engine := NewADTS()
	// 0xFF 0xF1 followed by a declared length below the header size is a
	// false sync; the engine must skip a byte and keep scanning.
	bogus := []byte{0xFF, 0xF1, 0x00, 0x00, 0x00, 0x00, 0x00}
	want := makeADTSFrame(20, 0x42)

	frames := engine.Push(append(bogus, want...))
	if len(frames) != 1 {
		t.Fatalf("got %d frames, want 1", len(frames))
	}
	if !bytes.Equal(frames[0], want) {
		t.Errorf("frame mismatch after false sync")
	}
}

func TestADTSGarbageOnlyEmitsNothing(t *testing.T) {
	engine := NewADTS()
	frames := engine.Push(bytes.Repeat([]byte{0x00, 0x13, 0x37}, 40))
	if len(frames) != 0 {
		t.Errorf("got %d frames from garbage, want 0", len(frames))
	}
}
