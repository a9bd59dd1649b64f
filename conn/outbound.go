package conn

import (
	"time"

	"github.com/edonshumolli/satellite-quic-proxy/internal/protocol"
	"github.com/edonshumolli/satellite-quic-proxy/internal/qerr"
	"github.com/edonshumolli/satellite-quic-proxy/internal/wire"
	"github.com/edonshumolli/satellite-quic-proxy/keys"
)

// SendApplication buffers data for streamID and attempts to flush it onto
// the wire (spec.md §4.4). If 1-RTT keys are not yet installed the data is
// parked in the per-level outbound queue and replayed from AdvanceKeys
// (spec.md §7 KeyUnavailable: "the engine queues outbound data and retries
// on the next key advance").
func (c *Connection) SendApplication(streamID protocol.StreamID, data []byte, fin bool, now time.Time) error {
	if err := c.streams.Touch(streamID, now); err != nil {
		return err
	}
	c.pendingSend[streamID] = append(c.pendingSend[streamID], data...)
	if fin {
		c.pendingFin[streamID] = true
	}
	return c.flushPending(now)
}

// flushPending repeatedly picks the stream with the most buffered bytes
// (spec.md §4.4's outbound assembly policy: "the chosen stream is the one
// with the longest-pending bytes or, when sizes tie, the lowest ID") and
// sends all of its buffered bytes (one STREAM frame per packet, split by
// sendStreamFrame), until nothing is left to send or a send fails.
func (c *Connection) flushPending(now time.Time) error {
	for {
		id, ok := c.streams.LongestPendingSend(func(id protocol.StreamID) uint32 {
			return uint32(len(c.pendingSend[id]))
		})
		if !ok {
			return nil
		}
		data := c.pendingSend[id]
		fin := c.pendingFin[id]
		delete(c.pendingSend, id)
		delete(c.pendingFin, id)

		if err := c.sendStreamFrame(id, data, fin, now); err != nil {
			if err == qerr.ErrKeyUnavailable {
				c.queue.push(protocol.Encryption1RTT, pendingOutbound{streamID: id, data: data, fin: fin})
				continue
			}
			return err
		}
	}
}

// maxStreamFrameData is the most data one STREAM frame can carry: its
// length field is the restricted single-byte varint from spec.md §4.1, so
// anything longer than protocol.MaxVarintValue bytes must be split across
// multiple frames (and therefore multiple packets, at one frame per packet
// per spec.md §4.4).
const maxStreamFrameData = protocol.MaxVarintValue

// sendStreamFrame packetizes data for streamID into one or more STREAM
// frames of at most maxStreamFrameData bytes each, fin set only on the
// last one, and hands each to emitPacket in order so offsets stay
// contiguous. It is also the replay path AdvanceKeys uses once 1-RTT keys
// arrive. If keys are unavailable, no bytes are advanced in the stream
// table, so a queued-and-replayed send sees the same starting offset.
func (c *Connection) sendStreamFrame(streamID protocol.StreamID, data []byte, fin bool, now time.Time) error {
	if !c.keys.Installed(protocol.Encryption1RTT) {
		return qerr.ErrKeyUnavailable
	}
	if len(data) == 0 {
		return c.sendOneStreamFrame(streamID, nil, fin, now)
	}
	for pos := 0; pos < len(data); pos += maxStreamFrameData {
		end := pos + maxStreamFrameData
		if end > len(data) {
			end = len(data)
		}
		chunkFin := fin && end == len(data)
		if err := c.sendOneStreamFrame(streamID, data[pos:end], chunkFin, now); err != nil {
			return err
		}
	}
	return nil
}

func (c *Connection) sendOneStreamFrame(streamID protocol.StreamID, chunk []byte, fin bool, now time.Time) error {
	offset, err := c.streams.AdvanceSent(streamID, uint32(len(chunk)), now)
	if err != nil {
		return err
	}
	frame := &wire.StreamFrame{
		StreamID:  streamID,
		Offset:    offset,
		HasOffset: true,
		HasLength: true,
		Fin:       fin,
		Data:      chunk,
	}
	if err := c.emitPacket(protocol.Encryption1RTT, protocol.PacketType1RTT, []wire.Frame{frame}, now); err != nil {
		return err
	}
	if fin {
		c.streams.MarkFinSent(streamID)
	}
	return nil
}

// AdvanceKeys installs the next encryption level's key material and, for
// 1-RTT, replays anything SendApplication parked while keys were
// unavailable (spec.md §7).
func (c *Connection) AdvanceKeys(level protocol.EncryptionLevel, mySecret, otherSecret []byte, now time.Time) error {
	if err := c.keys.Advance(level, mySecret, otherSecret); err != nil {
		return err
	}
	if level != protocol.Encryption1RTT {
		return nil
	}
	for _, p := range c.queue.drain(level) {
		if err := c.sendStreamFrame(p.streamID, p.data, p.fin, now); err != nil {
			c.log.Errorf("replaying queued send for stream %d after key advance: %v", p.streamID, err)
		}
	}
	return nil
}

// Tick drives retransmission scanning (spec.md §4.4): packets whose age
// exceeds rto are resent verbatim — spec.md scenario S3 resends "pn=4's
// bytes", the same serialized ciphertext, since a packet number's nonce
// and AAD are fixed once sealed and do not need to be recomputed for a
// plain retransmit. Packets that exhaust the retry cap are abandoned and
// the connection enters its terminal lost state.
func (c *Connection) Tick(now time.Time) {
	rto := protocol.DefaultRTO
	if c.opts.AdaptiveRTO {
		rto = c.tracker.AdaptiveRTO()
	}
	for _, cand := range c.tracker.ScanForRetransmit(now, rto) {
		if cand.RetryCount >= protocol.MaxRetries {
			c.tracker.Abandon(cand.PacketNumber)
			c.markLost(now)
			continue
		}
		if err := c.sink.Send(cand.Bytes); err != nil {
			c.log.Errorf("resending packet %d: %v", cand.PacketNumber, err)
			continue
		}
		c.packetsRetransmitted++
		if c.metrics != nil {
			c.metrics.PacketsRetransmitted.Inc()
		}
	}
	c.maybeSendAck(now)
}

// markLost puts the connection into its terminal lost state (spec.md §7
// RetryExhausted): outstanding streams become Reset, and the demultiplexer
// will reap the connection on the next idle sweep once it observes IsLost.
func (c *Connection) markLost(now time.Time) {
	c.lost = true
	c.streams.ResetAll(now)
}

// Close sends CONNECTION_CLOSE and marks the connection terminal (spec.md
// §4.4). It prefers 1-RTT keys but falls back to Initial so a connection
// can still be torn down cleanly before the handshake completes.
func (c *Connection) Close(now time.Time) error {
	level := protocol.Encryption1RTT
	ptype := protocol.PacketType1RTT
	if !c.keys.Installed(level) {
		level = protocol.EncryptionInitial
		ptype = protocol.PacketTypeInitial
	}
	frame := &wire.ConnectionCloseFrame{ErrorCode: qerr.PeerGoingAway, ReasonPhrase: "connection closed"}
	err := c.emitPacket(level, ptype, []wire.Frame{frame}, now)
	c.lost = true
	return err
}

// maybeSendAck emits a minimal ACK-only packet acknowledging the largest
// received packet number whenever received packet numbers have advanced
// without an ACK being sent since (spec.md §4.4's ACK-eliciting path). It
// deliberately acks only the single largest packet number rather than
// reconstructing the full received-range history, since this proxy's
// packet tracker (C3) only tracks packets it has sent, not packets it has
// received.
func (c *Connection) maybeSendAck(now time.Time) {
	if !c.ackDue {
		return
	}
	ack := &wire.AckFrame{LargestAcked: c.largestRecvPN, Delay: 0, FirstRange: 0}
	if err := c.emitPacket(protocol.Encryption1RTT, protocol.PacketType1RTT, []wire.Frame{ack}, now); err != nil {
		return
	}
	c.ackDue = false
}

// emitPacket assembles one packet at level: serializes frames, seals via
// the Offload Dispatcher, pads Initial packets to the 1200-byte minimum,
// records the result in the packet tracker for possible retransmission,
// and hands the finished datagram to the Sink.
func (c *Connection) emitPacket(level protocol.EncryptionLevel, ptype protocol.PacketType, frames []wire.Frame, now time.Time) error {
	key, iv, err := c.keys.SendKeyIV(level)
	if err != nil {
		return err
	}

	payload, err := assembleFramePayload(frames)
	if err != nil {
		return err
	}

	pn := c.nextPN
	h := &wire.Header{
		IsLongHeader:     ptype != protocol.PacketType1RTT,
		Type:             ptype,
		Version:          protocol.Version1,
		DestConnectionID: c.PeerCID,
		SrcConnectionID:  c.LocalCID,
		PacketNumber:     pn,
	}
	headerBytes, err := wire.SerializeHeader(h, len(payload))
	if err != nil {
		return err
	}
	if ptype == protocol.PacketTypeInitial {
		payload = padInitialPayload(headerBytes, payload)
	}

	ctx, cancel := c.dispatcherContext()
	defer cancel()
	nonce := keys.Nonce(iv, pn)
	ciphertext, err := c.dispatcher.Seal(ctx, key[:], nonce, headerBytes, payload)
	if err != nil {
		// A Seal/Open fault gets one retry at this boundary, through the
		// same dispatcher call and context; the retry is not forced onto
		// the software path while the accelerator reports itself available.
		ciphertext, err = c.dispatcher.Seal(ctx, key[:], nonce, headerBytes, payload)
		if err != nil {
			return err
		}
	}

	datagram := make([]byte, 0, len(headerBytes)+len(ciphertext))
	datagram = append(datagram, headerBytes...)
	datagram = append(datagram, ciphertext...)

	if err := c.tracker.RecordSent(pn, datagram, now); err != nil {
		return err
	}
	c.nextPN++

	if err := c.sink.Send(datagram); err != nil {
		return err
	}
	c.packetsSent++
	c.bytesSent += uint64(len(datagram))
	if c.metrics != nil {
		c.metrics.PacketsSent.Inc()
		c.metrics.BytesSent.Add(float64(len(datagram)))
	}
	return nil
}

func assembleFramePayload(frames []wire.Frame) ([]byte, error) {
	var payload []byte
	for _, f := range frames {
		b, err := wire.SerializeFrame(f)
		if err != nil {
			return nil, err
		}
		payload = append(payload, b...)
	}
	return payload, nil
}

// padInitialPayload appends PADDING bytes to payload until the full
// datagram (header + payload + AEAD tag) reaches
// protocol.MinInitialDatagramSize, per spec.md §6.
func padInitialPayload(headerBytes, payload []byte) []byte {
	const tagLen = 16
	need := protocol.MinInitialDatagramSize - len(headerBytes) - tagLen
	for len(payload) < need {
		payload = append(payload, byte(wire.PaddingFrameType))
	}
	return payload
}

