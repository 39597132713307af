package device

import (
	"context"
	"strconv"
	"strings"

	"github.com/chaz8081/wearlink/internal/ble/framing"
)

// streamFrames routes raw notification payloads through a framing engine
// and emits complete frames. cleanup runs after the raw stream ends (ctx
// cancellation or transport teardown), before the output channel closes;
// families use it to send their mute/stop command so cancellation never
// leaves the hardware streaming with no consumer.
func streamFrames(ctx context.Context, raw <-chan []byte, engine framing.Engine, cleanup func()) <-chan []byte {
	out := make(chan []byte, 64)
	go func() {
		defer close(out)
		if cleanup != nil {
			defer cleanup()
		}
		for payload := range raw {
			for _, frame := range engine.Push(payload) {
				select {
				case out <- frame:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out
}

// passthrough treats each non-empty notification as one complete frame,
// for families whose transport is frame-aligned.
type passthrough struct{}

func (passthrough) Push(payload []byte) [][]byte {
	if len(payload) == 0 {
		return nil
	}
	frame := make([]byte, len(payload))
	copy(frame, payload)
	return [][]byte{frame}
}

// firmwareAtLeast compares dotted numeric revision strings. Anything
// unparseable compares as older; devices that hide their firmware get
// the conservative behavior.
func firmwareAtLeast(version, min string) bool {
	parse := func(s string) []int {
		parts := strings.Split(strings.TrimSpace(s), ".")
		nums := make([]int, 0, len(parts))
		for _, p := range parts {
			// Tolerate suffixes like "2.1.0-beta".
			if i := strings.IndexFunc(p, func(r rune) bool { return r < '0' || r > '9' }); i >= 0 {
				p = p[:i]
			}
			n, err := strconv.Atoi(p)
			if err != nil {
				return nums
			}
			nums = append(nums, n)
		}
		return nums
	}

	v, m := parse(version), parse(min)
	if len(v) == 0 {
		return false
	}
	for i := 0; i < len(m); i++ {
		var vi int
		if i < len(v) {
			vi = v[i]
		}
		if vi != m[i] {
			return vi > m[i]
		}
	}
	return true
}
