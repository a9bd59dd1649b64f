// Package protocol collects the small value types shared across the wire
// codec, the stream table, the packet tracker, and the connection engine.
package protocol

import "time"

// Version is the 32-bit QUIC version number carried on the wire.
type Version uint32

// Version1 is the only version this proxy's wire codec understands.
const Version1 Version = 0x00000001

// Perspective says whether we are acting as the client or server side of a
// connection. The proxy only ever acts as the server: it terminates
// datagrams arriving from peers at the satellite-link endpoint.
type Perspective uint8

const (
	PerspectiveServer Perspective = iota
	PerspectiveClient
)

func (p Perspective) String() string {
	switch p {
	case PerspectiveServer:
		return "server"
	case PerspectiveClient:
		return "client"
	default:
		return "invalid"
	}
}

// EncryptionLevel identifies which packet-protection keys apply to a packet.
type EncryptionLevel uint8

const (
	EncryptionInitial EncryptionLevel = iota
	EncryptionHandshake
	Encryption1RTT
)

func (e EncryptionLevel) String() string {
	switch e {
	case EncryptionInitial:
		return "initial"
	case EncryptionHandshake:
		return "handshake"
	case Encryption1RTT:
		return "1-rtt"
	default:
		return "invalid"
	}
}

// PacketType distinguishes the long-header packet types this proxy parses.
type PacketType uint8

const (
	PacketTypeInitial PacketType = iota
	PacketType0RTT
	PacketTypeHandshake
	PacketTypeRetry
	// PacketType1RTT is synthetic: short-header packets carry no type bits,
	// but the rest of the engine finds it convenient to treat "short header"
	// as a packet type alongside the three long-header forms it cares about.
	PacketType1RTT
)

func (t PacketType) String() string {
	switch t {
	case PacketTypeInitial:
		return "Initial"
	case PacketType0RTT:
		return "0-RTT"
	case PacketTypeHandshake:
		return "Handshake"
	case PacketTypeRetry:
		return "Retry"
	case PacketType1RTT:
		return "1-RTT"
	default:
		return "invalid"
	}
}

// PacketNumber is a per-connection monotonic counter, truncated on the wire.
type PacketNumber int64

// InvalidPacketNumber is returned where a "no packet number yet" sentinel is
// needed (e.g. before the first packet sent on a connection).
const InvalidPacketNumber PacketNumber = -1

// Default timing constants. Tuned for a satellite uplink: RTT is commonly
// above 500ms, loss up to 10%, bandwidth constrained.
const (
	// DefaultRTO is the fixed retransmission timeout when adaptive RTO is
	// disabled, and the adaptive RTO's value before any RTT sample exists.
	DefaultRTO = 500 * time.Millisecond
	// MinRTO is the lower clamp for adaptive RTO.
	MinRTO = 200 * time.Millisecond
	// MaxRTO is the upper clamp for adaptive RTO.
	MaxRTO = 10 * time.Second
	// MaxRetries is the retry cap; a packet that hits this many
	// retransmissions without being ACKed is abandoned.
	MaxRetries = 10
	// IdleTimeout is how long a connection may go without activity before
	// the demultiplexer reaps it.
	IdleTimeout = 30 * time.Second
	// TickInterval is how often the demultiplexer drives tick() on every
	// connection it owns.
	TickInterval = 5 * time.Second
	// MinInitialDatagramSize is the minimum size, via PADDING, of an
	// Initial-carrying datagram.
	MinInitialDatagramSize = 1200
	// MaxStreamsPerConnection caps concurrent streams per connection.
	MaxStreamsPerConnection = 64
	// MaxCIDLen is the maximum connection ID length allowed on the wire.
	MaxCIDLen = 20
	// DefaultShortHeaderDCIDLen is used when no per-connection DCID length
	// has otherwise been established.
	DefaultShortHeaderDCIDLen = 8
	// MaxVarintValue is the largest value representable in this proxy's
	// restricted single-byte varint subset (see internal/wire).
	MaxVarintValue = 63
)
