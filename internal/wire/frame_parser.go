package wire

import (
	"github.com/edonshumolli/satellite-quic-proxy/internal/qerr"
)

// ParseFrames parses payload into a sequence of Frames, stopping at the
// first error or when the buffer is exhausted. Spec.md §4.1 describes this
// as a "lazy sequence"; this proxy's frame budget per packet is small
// enough (one STREAM frame per packet, §4.4) that returning a materialized
// slice rather than an iterator costs nothing in practice and is much
// easier for the Connection Engine to range over.
//
// An unrecognized type byte yields a *qerr.ParseError with kind
// InvalidFrameType; per spec.md §4.4, the caller drops the remainder of
// the datagram and the connection survives. Frames already parsed into
// the returned slice before the error are still valid and should be
// processed.
func ParseFrames(payload []byte) ([]Frame, error) {
	var frames []Frame
	for len(payload) > 0 {
		typeByte := payload[0]
		typ := FrameType(typeByte)
		if !recognized(typ) {
			return frames, qerr.NewParseError(qerr.InvalidFrameType, "")
		}

		body := payload[1:]
		var (
			f   Frame
			n   int
			err error
		)
		switch {
		case typ == PaddingFrameType:
			f, n = PaddingFrame{}, 0
		case typ == PingFrameType:
			f, n = PingFrame{}, 0
		case typ == HandshakeDoneFrameType:
			f, n = HandshakeDoneFrame{}, 0
		case typ == AckFrameType:
			f, n, err = parseAckFrame(body, false)
		case typ == AckECNFrameType:
			f, n, err = parseAckFrame(body, true)
		case typ == ResetStreamFrameType:
			f, n, err = parseResetStreamFrame(body)
		case typ == CryptoFrameType:
			f, n, err = parseCryptoFrame(body)
		case typ == ConnectionCloseFrameType:
			f, n, err = parseConnectionCloseFrame(body)
		case typ.IsStreamFrameType():
			f, n, err = parseStreamFrame(typ, body)
		default:
			return frames, qerr.NewParseError(qerr.InvalidFrameType, "")
		}
		if err != nil {
			return frames, err
		}
		frames = append(frames, f)
		payload = payload[1+n:]
	}
	return frames, nil
}

// SerializeFrame writes f's wire representation.
func SerializeFrame(f Frame) ([]byte, error) {
	switch v := f.(type) {
	case PaddingFrame:
		return []byte{byte(PaddingFrameType)}, nil
	case PingFrame:
		return []byte{byte(PingFrameType)}, nil
	case HandshakeDoneFrame:
		return []byte{byte(HandshakeDoneFrameType)}, nil
	case *AckFrame:
		return v.serialize()
	case *ResetStreamFrame:
		return v.serialize(), nil
	case *CryptoFrame:
		return v.serialize()
	case *ConnectionCloseFrame:
		return v.serialize()
	case *StreamFrame:
		return v.serialize()
	default:
		return nil, qerr.NewParseError(qerr.InvalidFrameType, "unserializable frame type")
	}
}
