package wire

import (
	"fmt"
	"log/slog"
	"sort"
)

// Packet is the outer fragmentation wrapper carried on the vega audio
// characteristic. A logical message with index Index is split into Total
// fragments numbered Seq 0..Total-1.
//
//	field 1 (varint): message index
//	field 2 (varint): fragment sequence number
//	field 3 (varint): total fragment count
//	field 4 (bytes):  fragment payload
type Packet struct {
	Index   uint32
	Seq     uint32
	Total   uint32
	Payload []byte
}

// MarshalPacket encodes a Packet.
func MarshalPacket(p Packet) []byte {
	var buf []byte
	buf = AppendVarintField(buf, 1, uint64(p.Index))
	buf = AppendVarintField(buf, 2, uint64(p.Seq))
	buf = AppendVarintField(buf, 3, uint64(p.Total))
	buf = AppendField(buf, 4, p.Payload)
	return buf
}

// ParsePacket decodes a Packet from one notification. The payload is
// copied out of the notification buffer.
func ParsePacket(data []byte) (*Packet, error) {
	p := &Packet{}
	sawTotal := false
	scanFields(data, func(f field) bool {
		switch f.num {
		case 1:
			if f.wt == wireVarint {
				p.Index = uint32(f.val)
			}
		case 2:
			if f.wt == wireVarint {
				p.Seq = uint32(f.val)
			}
		case 3:
			if f.wt == wireVarint {
				p.Total = uint32(f.val)
				sawTotal = true
			}
		case 4:
			if f.wt == wireLenDelim {
				p.Payload = make([]byte, len(f.payload))
				copy(p.Payload, f.payload)
			}
		}
		return true
	})
	if !sawTotal || p.Total == 0 {
		return nil, fmt.Errorf("wire: packet without fragment count")
	}
	if p.Seq >= p.Total {
		return nil, fmt.Errorf("wire: fragment seq %d out of range (total %d)", p.Seq, p.Total)
	}
	return p, nil
}

// Reassembler accumulates fragments per message index and emits each
// logical message exactly once, the moment its declared fragment count is
// satisfied. Indices may complete out of order; fragments within one
// index arrive in order per the BLE per-characteristic guarantee but the
// reassembler does not depend on it. Completed entries are removed
// immediately, and indices are monotonic on the wire, so the pending map
// stays small.
//
// Not safe for concurrent use; the owning connection feeds it from a
// single notification-handling goroutine.
type Reassembler struct {
	pending map[uint32]*partial
}

type partial struct {
	total     uint32
	fragments map[uint32][]byte
}

// NewReassembler returns an empty Reassembler.
func NewReassembler() *Reassembler {
	return &Reassembler{pending: make(map[uint32]*partial)}
}

// Add registers one fragment. When it completes its message, the
// concatenation of fragments in sequence order is returned with ok=true
// and the entry is discarded.
func (r *Reassembler) Add(p *Packet) ([]byte, bool) {
	entry, exists := r.pending[p.Index]
	if !exists {
		entry = &partial{total: p.Total, fragments: make(map[uint32][]byte)}
		r.pending[p.Index] = entry
	}
	if p.Total != entry.total {
		// The sender restarted this index with a different geometry;
		// the old fragments can never complete.
		slog.Debug("[wire] fragment count changed mid-message, resetting index",
			"index", p.Index, "old", entry.total, "new", p.Total)
		entry = &partial{total: p.Total, fragments: make(map[uint32][]byte)}
		r.pending[p.Index] = entry
	}
	entry.fragments[p.Seq] = p.Payload

	if uint32(len(entry.fragments)) < entry.total {
		return nil, false
	}

	seqs := make([]int, 0, len(entry.fragments))
	for seq := range entry.fragments {
		seqs = append(seqs, int(seq))
	}
	sort.Ints(seqs)

	var msg []byte
	for _, seq := range seqs {
		msg = append(msg, entry.fragments[uint32(seq)]...)
	}
	delete(r.pending, p.Index)
	return msg, true
}

// Pending reports how many incomplete messages are buffered.
func (r *Reassembler) Pending() int {
	return len(r.pending)
}
