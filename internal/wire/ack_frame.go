package wire

import (
	"encoding/binary"

	"github.com/edonshumolli/satellite-quic-proxy/internal/protocol"
	"github.com/edonshumolli/satellite-quic-proxy/internal/qerr"
)

// AckRange is one gap+length pair in an ACK frame's additional ranges,
// grounded on quic-go's internal/wire.AckRange but expressed as the
// gap/length pair the wire actually carries rather than first/last packet
// numbers, so serialization needs no recomputation.
type AckRange struct {
	Gap    uint8
	Length uint8
}

// AckFrame is the ACK / ACK_ECN frame from spec.md §3: largest acknowledged
// packet number, ack delay, the first (largest-adjacent) range, and zero or
// more additional gap+length ranges. ECNCounts is non-nil only when this
// frame was parsed from an ACK_ECN (0x03) frame.
type AckFrame struct {
	LargestAcked     protocol.PacketNumber
	Delay            uint8
	FirstRange       uint8
	AdditionalRanges []AckRange
	ECNCounts        *ECNCounts
}

// ECNCounts holds the three ECT0/ECT1/CE counters ACK_ECN carries. This
// proxy does not act on them; they are parsed and retained only so
// ACK_ECN round-trips losslessly (Testable property #5).
type ECNCounts struct {
	ECT0, ECT1, CE uint8
}

func (f *AckFrame) FrameType() FrameType {
	if f.ECNCounts != nil {
		return AckECNFrameType
	}
	return AckFrameType
}

func (f *AckFrame) Length() int {
	l := 1 /* type */ + 4 /* largest acked */ + 1 /* delay */ + 1 /* first range */ + 1 /* range count */
	l += 2 * len(f.AdditionalRanges)
	if f.ECNCounts != nil {
		l += 3
	}
	return l
}

func parseAckFrame(data []byte, ecn bool) (*AckFrame, int, error) {
	const fixed = 4 + 1 + 1
	if len(data) < fixed {
		return nil, 0, qerr.NewParseError(qerr.InvalidFrameType, "truncated ACK frame")
	}
	f := &AckFrame{
		LargestAcked: protocol.PacketNumber(binary.BigEndian.Uint32(data[0:4])),
		Delay:        data[4],
		FirstRange:   data[5],
	}
	pos := fixed
	if len(data) < pos+1 {
		return nil, 0, qerr.NewParseError(qerr.InvalidFrameType, "truncated ACK range count")
	}
	count, rest, err := readRestrictedVarint(data[pos:])
	if err != nil {
		return nil, 0, qerr.NewParseError(qerr.Unsupported, err.Error())
	}
	pos = len(data) - len(rest)
	f.AdditionalRanges = make([]AckRange, 0, count)
	for i := uint8(0); i < count; i++ {
		if len(data) < pos+2 {
			return nil, 0, qerr.NewParseError(qerr.InvalidFrameType, "truncated ACK range")
		}
		f.AdditionalRanges = append(f.AdditionalRanges, AckRange{Gap: data[pos], Length: data[pos+1]})
		pos += 2
	}
	if ecn {
		if len(data) < pos+3 {
			return nil, 0, qerr.NewParseError(qerr.InvalidFrameType, "truncated ECN counts")
		}
		f.ECNCounts = &ECNCounts{ECT0: data[pos], ECT1: data[pos+1], CE: data[pos+2]}
		pos += 3
	}
	return f, pos, nil
}

func (f *AckFrame) serialize() ([]byte, error) {
	b := make([]byte, 0, f.Length())
	typ := byte(f.FrameType())
	b = append(b, typ)
	var lb [4]byte
	binary.BigEndian.PutUint32(lb[:], uint32(f.LargestAcked))
	b = append(b, lb[:]...)
	b = append(b, f.Delay, f.FirstRange)
	var err error
	b, err = writeRestrictedVarint(b, uint8(len(f.AdditionalRanges)))
	if err != nil {
		return nil, err
	}
	for _, r := range f.AdditionalRanges {
		b = append(b, r.Gap, r.Length)
	}
	if f.ECNCounts != nil {
		b = append(b, f.ECNCounts.ECT0, f.ECNCounts.ECT1, f.ECNCounts.CE)
	}
	return b, nil
}
