package wire

// Frame is the tagged-union member spec.md §3 describes: Padding, Ping,
// Ack, ResetStream, Crypto, Stream. Each concrete type knows its own wire
// type byte and how to serialize its body.
type Frame interface {
	FrameType() FrameType
	// Length returns the serialized size in bytes, used by the framer to
	// decide how much budget a frame consumes in an outbound packet.
	Length() int
}

// PaddingFrame is a single 0x00 byte; sequences of them pad an Initial
// packet to the 1200-byte minimum.
type PaddingFrame struct{}

func (PaddingFrame) FrameType() FrameType { return PaddingFrameType }
func (PaddingFrame) Length() int          { return 1 }

// PingFrame carries no payload; it exists to elicit an ACK.
type PingFrame struct{}

func (PingFrame) FrameType() FrameType { return PingFrameType }
func (PingFrame) Length() int          { return 1 }

// HandshakeDoneFrame carries no payload. This proxy parses and discards it
// without protocol-level effect (spec.md §4.4).
type HandshakeDoneFrame struct{}

func (HandshakeDoneFrame) FrameType() FrameType { return HandshakeDoneFrameType }
func (HandshakeDoneFrame) Length() int          { return 1 }
