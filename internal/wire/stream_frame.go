package wire

import (
	"encoding/binary"

	"github.com/edonshumolli/satellite-quic-proxy/internal/protocol"
	"github.com/edonshumolli/satellite-quic-proxy/internal/qerr"
)

// StreamFrame carries stream data. Its wire type byte's low three bits are
// FIN (0x04), LEN (0x02), OFF (0x01) — spec.md §4.1/§6. The stream ID is
// written little-endian on the wire, a deliberate divergence from real
// QUIC's big-endian varints preserved from the original source per
// spec.md's Design Notes (flagged there as a compatibility risk, not a
// bug). Offset and length use the restricted-varint scheme from §4.1
// (4-byte fixed offset, single-byte 0-63 length) rather than §6's
// illustrative 8-byte/2-byte widths; see DESIGN.md.
type StreamFrame struct {
	StreamID   protocol.StreamID
	Offset     uint32
	HasOffset  bool
	HasLength  bool
	Fin        bool
	Data       []byte
}

const (
	streamFinBit    = 0x04
	streamLenBit    = 0x02
	streamOffBit    = 0x01
)

func (f *StreamFrame) FrameType() FrameType {
	var t byte = byte(StreamFrameTypeLowBound)
	if f.Fin {
		t |= streamFinBit
	}
	if f.HasLength {
		t |= streamLenBit
	}
	if f.HasOffset {
		t |= streamOffBit
	}
	return FrameType(t)
}

func (f *StreamFrame) Length() int {
	l := 1 + 4
	if f.HasOffset {
		l += 4
	}
	if f.HasLength {
		l++
	}
	return l + len(f.Data)
}

func parseStreamFrame(typ FrameType, data []byte) (*StreamFrame, int, error) {
	f := &StreamFrame{
		Fin:       typ&streamFinBit != 0,
		HasLength: typ&streamLenBit != 0,
		HasOffset: typ&streamOffBit != 0,
	}
	if len(data) < 4 {
		return nil, 0, qerr.NewParseError(qerr.InvalidFrameType, "truncated STREAM id")
	}
	f.StreamID = protocol.StreamID(binary.LittleEndian.Uint32(data[0:4]))
	pos := 4

	if f.HasOffset {
		if len(data) < pos+4 {
			return nil, 0, qerr.NewParseError(qerr.InvalidFrameType, "truncated STREAM offset")
		}
		f.Offset = binary.BigEndian.Uint32(data[pos : pos+4])
		pos += 4
	}

	var length int
	if f.HasLength {
		if len(data) < pos+1 {
			return nil, 0, qerr.NewParseError(qerr.InvalidFrameType, "truncated STREAM length")
		}
		l, rest, err := readRestrictedVarint(data[pos:])
		if err != nil {
			return nil, 0, qerr.NewParseError(qerr.Unsupported, err.Error())
		}
		length = int(l)
		pos = len(data) - len(rest)
	} else {
		length = len(data) - pos
	}
	if len(data) < pos+length {
		return nil, 0, qerr.NewParseError(qerr.InvalidFrameType, "truncated STREAM data")
	}
	if length > 0 {
		f.Data = data[pos : pos+length]
	}
	pos += length
	return f, pos, nil
}

func (f *StreamFrame) serialize() ([]byte, error) {
	b := make([]byte, 0, f.Length())
	b = append(b, byte(f.FrameType()))
	var idb [4]byte
	binary.LittleEndian.PutUint32(idb[:], uint32(f.StreamID))
	b = append(b, idb[:]...)
	if f.HasOffset {
		var ob [4]byte
		binary.BigEndian.PutUint32(ob[:], f.Offset)
		b = append(b, ob[:]...)
	}
	if f.HasLength {
		var err error
		b, err = writeRestrictedVarint(b, uint8(len(f.Data)))
		if err != nil {
			return nil, err
		}
	}
	b = append(b, f.Data...)
	return b, nil
}
