// Package framing turns raw BLE notification payloads into complete,
// independently decodable audio frames. One engine per wire format: ADTS
// sync-scanning for AAC, fixed-size slicing for Opus, footer stripping for
// LC3. Engines never fail on malformed input; they resynchronize or drop
// bytes and keep going, because notification loss is routine over BLE.
package framing

// Engine consumes successive notification payloads and emits zero or more
// complete audio frames per payload. Engines may buffer partial frames
// between calls. Not safe for concurrent use; each connection owns its own.
type Engine interface {
	Push(payload []byte) [][]byte
}
