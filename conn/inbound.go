package conn

import (
	"time"

	"github.com/edonshumolli/satellite-quic-proxy/internal/ackhandler"
	"github.com/edonshumolli/satellite-quic-proxy/internal/protocol"
	"github.com/edonshumolli/satellite-quic-proxy/internal/qerr"
	"github.com/edonshumolli/satellite-quic-proxy/internal/wire"
	"github.com/edonshumolli/satellite-quic-proxy/keys"
)

// OnDatagram parses, validates, and processes one inbound datagram
// (spec.md §4.4). Header validation runs first; any ParseError drops the
// datagram, counts the error kind, and leaves the connection otherwise
// untouched (spec.md §7: "Validation errors are never fatal").
func (c *Connection) OnDatagram(data []byte, now time.Time) {
	dcidLen := c.LocalCID.Len()
	if dcidLen == 0 {
		dcidLen = protocol.DefaultShortHeaderDCIDLen
	}
	h, err := wire.ParseHeader(data, dcidLen)
	if err != nil {
		c.recordParseErr(err)
		return
	}
	if !h.DestConnectionID.Equal(c.LocalCID) {
		c.recordValidationError(qerr.ConnectionIdMismatch)
		return
	}

	payload := data[h.ParsedLen:]
	level := encryptionLevelFor(h.Type)

	plaintext, err := c.openPayload(level, h.PacketNumber, data[:h.ParsedLen], payload, now)
	if err != nil {
		// A packet we cannot yet decrypt (keys not installed) is simply
		// dropped on the receive side: unlike outbound KeyUnavailable,
		// there is nothing sensible to queue for a datagram we can't even
		// read yet.
		return
	}

	frames, ferr := wire.ParseFrames(plaintext)
	for _, f := range frames {
		c.handleFrame(f, now)
	}
	if ferr != nil {
		c.recordParseErr(ferr)
		// Frames already parsed before the error are still processed
		// (spec.md §4.1 doc comment on ParseFrames); the connection
		// survives regardless.
	}

	c.touch(now)
	if h.PacketNumber > c.largestRecvPN {
		c.largestRecvPN = h.PacketNumber
		c.ackDue = true
	}
	c.packetsReceived++
	c.bytesReceived += uint64(len(data))
	if c.metrics != nil {
		c.metrics.PacketsReceived.Inc()
		c.metrics.BytesReceived.Add(float64(len(data)))
	}
	c.maybeSendAck(now)
}

func (c *Connection) recordParseErr(err error) {
	if pe, ok := err.(*qerr.ParseError); ok {
		c.recordValidationError(pe.Kind)
		return
	}
	c.recordValidationError(qerr.Unsupported)
}

func encryptionLevelFor(t protocol.PacketType) protocol.EncryptionLevel {
	switch t {
	case protocol.PacketTypeInitial:
		return protocol.EncryptionInitial
	case protocol.PacketTypeHandshake:
		return protocol.EncryptionHandshake
	default:
		return protocol.Encryption1RTT
	}
}

// openPayload decrypts payload via the Offload Dispatcher at level. On
// KeyUnavailable there is no software fallback to retry with (unlike
// Seal/Open faults from the dispatcher itself): the keys simply don't
// exist yet, so the packet is dropped silently and will be retried by the
// peer.
func (c *Connection) openPayload(level protocol.EncryptionLevel, pn protocol.PacketNumber, ad, ciphertext []byte, now time.Time) ([]byte, error) {
	key, iv, err := c.keys.RecvKeyIV(level)
	if err != nil {
		return nil, err
	}
	ctx, cancel := c.dispatcherContext()
	defer cancel()
	nonce := keys.Nonce(iv, pn)
	plaintext, err := c.dispatcher.Open(ctx, key[:], nonce, ad, ciphertext)
	if err != nil {
		// A Seal/Open fault gets one retry at this boundary: the same
		// dispatcher call is repeated with the same context, so it goes to
		// the accelerator again while the transport reports itself
		// available; the retry is not forced onto the software path.
		plaintext, err = c.dispatcher.Open(ctx, key[:], nonce, ad, ciphertext)
		if err != nil {
			return nil, err
		}
	}
	return plaintext, nil
}

func (c *Connection) handleFrame(f wire.Frame, now time.Time) {
	switch v := f.(type) {
	case *wire.AckFrame:
		c.handleAck(v, now)
	case *wire.StreamFrame:
		c.handleStream(v, now)
	case *wire.ResetStreamFrame:
		c.streams.ObserveReset(v.StreamID, v.FinalSize, now)
	case wire.PaddingFrame, wire.PingFrame, *wire.CryptoFrame, wire.HandshakeDoneFrame:
		// consumed without protocol-level effect in the core (spec.md §4.4)
	case *wire.ConnectionCloseFrame:
		c.lost = true
	default:
		c.recordValidationError(qerr.InvalidFrameType)
	}
}

func (c *Connection) handleAck(f *wire.AckFrame, now time.Time) {
	ranges := make([]ackhandler.AckRange, len(f.AdditionalRanges))
	for i, r := range f.AdditionalRanges {
		ranges[i] = ackhandler.AckRange{Gap: r.Gap, Length: r.Length}
	}
	// Resources tied to acked packets (their retained bytes) are freed
	// inside the tracker itself; the engine has nothing further to
	// release at this layer.
	c.tracker.ProcessAck(f.LargestAcked, f.FirstRange, ranges, now)
}

func (c *Connection) handleStream(f *wire.StreamFrame, now time.Time) {
	length := uint32(len(f.Data))
	if err := c.streams.OnReceived(f.StreamID, f.Offset, length, f.Fin, now); err != nil {
		c.recordValidationError(qerr.InvalidFrameType)
		return
	}
	if c.app != nil {
		c.app.Deliver(f.StreamID, f.Data, f.Fin)
	}
}
