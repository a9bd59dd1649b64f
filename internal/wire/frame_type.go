package wire

// FrameType is the wire type byte identifying a frame's kind, restricted to
// the set spec.md §4.1/§6 recognizes. Anything else is InvalidFrameType.
type FrameType uint8

const (
	PaddingFrameType         FrameType = 0x00
	PingFrameType            FrameType = 0x01
	AckFrameType             FrameType = 0x02
	AckECNFrameType          FrameType = 0x03
	ResetStreamFrameType     FrameType = 0x04
	CryptoFrameType          FrameType = 0x06
	StreamFrameTypeLowBound  FrameType = 0x08
	StreamFrameTypeHighBound FrameType = 0x0f
	ConnectionCloseFrameType FrameType = 0x1c
	HandshakeDoneFrameType   FrameType = 0x1e
)

// IsStreamFrameType reports whether t falls in the STREAM frame type range
// 0x08-0x0F, whose low three bits encode FIN|LEN|OFF.
func (t FrameType) IsStreamFrameType() bool {
	return t >= StreamFrameTypeLowBound && t <= StreamFrameTypeHighBound
}

func (t FrameType) String() string {
	switch {
	case t.IsStreamFrameType():
		return "STREAM"
	case t == PaddingFrameType:
		return "PADDING"
	case t == PingFrameType:
		return "PING"
	case t == AckFrameType:
		return "ACK"
	case t == AckECNFrameType:
		return "ACK_ECN"
	case t == ResetStreamFrameType:
		return "RESET_STREAM"
	case t == CryptoFrameType:
		return "CRYPTO"
	case t == ConnectionCloseFrameType:
		return "CONNECTION_CLOSE"
	case t == HandshakeDoneFrameType:
		return "HANDSHAKE_DONE"
	default:
		return "UNKNOWN"
	}
}

// recognized reports whether t is one of the frame types this proxy's
// codec knows how to parse. Anything else surfaces as InvalidFrameType.
func recognized(t FrameType) bool {
	switch {
	case t.IsStreamFrameType():
		return true
	case t == PaddingFrameType, t == PingFrameType, t == AckFrameType, t == AckECNFrameType,
		t == ResetStreamFrameType, t == CryptoFrameType, t == ConnectionCloseFrameType, t == HandshakeDoneFrameType:
		return true
	default:
		return false
	}
}
