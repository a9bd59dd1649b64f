package ackhandler

import (
	"sort"
	"time"

	"github.com/edonshumolli/satellite-quic-proxy/internal/protocol"
	"github.com/edonshumolli/satellite-quic-proxy/internal/qerr"
	"golang.org/x/time/rate"
)

// AckRange mirrors the gap+length pair the wire codec decodes out of an ACK
// frame; it is redeclared here rather than imported from internal/wire so
// the packet tracker has no back-reference to the codec (spec.md Design
// Notes §9: components lower in the stack never reference back).
type AckRange struct {
	Gap    uint8
	Length uint8
}

// PacketTracker is the Packet Tracker (C3). A Connection owns exactly one,
// created in conn.New and shared with nothing else.
type PacketTracker struct {
	packets map[protocol.PacketNumber]*InFlightPacket

	// rttEstimate is a single-pole EWMA over observed RTT samples, used
	// only to drive the optional adaptive RTO; congestion control proper
	// is out of scope.
	rttEstimate time.Duration
	haveRTT     bool

	// retransmitLimiter bounds how many packets ScanForRetransmit hands
	// back per call, appropriate for a constrained-bandwidth satellite
	// uplink where a long loss burst should not retransmit faster than
	// the link can carry.
	retransmitLimiter *rate.Limiter
}

// NewPacketTracker creates an empty tracker. burstsPerSecond bounds the
// retransmission rate; pass 0 to disable the limiter (unbounded bursts).
func NewPacketTracker(burstsPerSecond float64) *PacketTracker {
	var limiter *rate.Limiter
	if burstsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(burstsPerSecond), int(burstsPerSecond)+1)
	}
	return &PacketTracker{
		packets:           make(map[protocol.PacketNumber]*InFlightPacket),
		retransmitLimiter: limiter,
	}
}

// RecordSent inserts an InFlightPacket. It rejects duplicates with
// qerr.ErrDuplicateSend (spec.md §4.3, §7): a packet number already
// in-flight is a programmer error at the caller, since outbound packet
// numbers must be strictly increasing (Testable property #1).
func (t *PacketTracker) RecordSent(pn protocol.PacketNumber, b []byte, now time.Time) error {
	if _, ok := t.packets[pn]; ok {
		return qerr.ErrDuplicateSend
	}
	t.packets[pn] = &InFlightPacket{PacketNumber: pn, SendTime: now, Bytes: b}
	return nil
}

// ProcessAck marks every packet covered by the ACK ranges as acknowledged,
// computes an RTT sample from the newest newly-ACKed packet, and returns
// the list of newly-ACKed packet numbers in ascending order. Applying the
// same ACK twice is idempotent (Testable property #8): the second
// application finds nothing left to ACK and returns an empty list.
func (t *PacketTracker) ProcessAck(largest protocol.PacketNumber, firstRange uint8, additional []AckRange, now time.Time) []protocol.PacketNumber {
	acked := decodeAckedRanges(largest, firstRange, additional)

	var newlyAcked []protocol.PacketNumber
	var newestAckedSendTime time.Time
	var haveNewest bool
	for _, pn := range acked {
		p, ok := t.packets[pn]
		if !ok {
			continue
		}
		delete(t.packets, pn)
		newlyAcked = append(newlyAcked, pn)
		if !haveNewest || p.SendTime.After(newestAckedSendTime) {
			newestAckedSendTime = p.SendTime
			haveNewest = true
		}
	}
	sort.Slice(newlyAcked, func(i, j int) bool { return newlyAcked[i] < newlyAcked[j] })

	if haveNewest {
		sample := now.Sub(newestAckedSendTime)
		t.updateRTT(sample)
	}
	return newlyAcked
}

// decodeAckedRanges expands largest/firstRange/additional into the concrete
// set of acknowledged packet numbers, grounded on the gap+length ACK range
// decode used throughout the QUIC ecosystem (e.g. quic-go's
// internal/wire.AckFrame and received_packet_history).
func decodeAckedRanges(largest protocol.PacketNumber, firstRange uint8, additional []AckRange) []protocol.PacketNumber {
	var acked []protocol.PacketNumber
	high := largest
	low := largest - protocol.PacketNumber(firstRange)
	for pn := high; pn >= low && pn >= 0; pn-- {
		acked = append(acked, pn)
		if pn == 0 {
			break
		}
	}
	cursor := low
	for _, r := range additional {
		cursor -= protocol.PacketNumber(r.Gap) + 2
		rangeHigh := cursor
		rangeLow := cursor - protocol.PacketNumber(r.Length)
		for pn := rangeHigh; pn >= rangeLow && pn >= 0; pn-- {
			acked = append(acked, pn)
			if pn == 0 {
				break
			}
		}
		cursor = rangeLow
	}
	return acked
}

func (t *PacketTracker) updateRTT(sample time.Duration) {
	const alpha = 0.125
	if !t.haveRTT {
		t.rttEstimate = sample
		t.haveRTT = true
		return
	}
	t.rttEstimate = time.Duration((1-alpha)*float64(t.rttEstimate) + alpha*float64(sample))
}

// RTT returns the current smoothed RTT estimate and whether any sample has
// been observed yet.
func (t *PacketTracker) RTT() (time.Duration, bool) {
	return t.rttEstimate, t.haveRTT
}

// AdaptiveRTO derives an RTO from the smoothed RTT, clamped to
// [protocol.MinRTO, protocol.MaxRTO] per spec.md §4.3. Callers that prefer
// the fixed protocol.DefaultRTO simply don't call this.
func (t *PacketTracker) AdaptiveRTO() time.Duration {
	if !t.haveRTT {
		return protocol.DefaultRTO
	}
	rto := t.rttEstimate * 2
	if rto < protocol.MinRTO {
		return protocol.MinRTO
	}
	if rto > protocol.MaxRTO {
		return protocol.MaxRTO
	}
	return rto
}

// RetransmitCandidate is one entry ScanForRetransmit hands back: the packet
// number, its retry count after this scan bumps it, and its payload.
type RetransmitCandidate struct {
	PacketNumber protocol.PacketNumber
	RetryCount   int
	Bytes        []byte
}

// ScanForRetransmit returns, in ascending packet-number order (so
// retransmissions preserve original send order, per spec.md §5), every
// unacked packet whose age exceeds rto and whose retry count is still
// below protocol.MaxRetries. For each returned entry the tracker bumps
// RetryCount and rewrites SendTime to now atomically with the scan itself,
// so the caller's subsequent send is consistent with the tracker's view.
func (t *PacketTracker) ScanForRetransmit(now time.Time, rto time.Duration) []RetransmitCandidate {
	var pns []protocol.PacketNumber
	for pn, p := range t.packets {
		if p.RetryCount >= protocol.MaxRetries {
			continue
		}
		if now.Sub(p.SendTime) > rto {
			pns = append(pns, pn)
		}
	}
	sort.Slice(pns, func(i, j int) bool { return pns[i] < pns[j] })

	var out []RetransmitCandidate
	for _, pn := range pns {
		if t.retransmitLimiter != nil && !t.retransmitLimiter.Allow() {
			break
		}
		p := t.packets[pn]
		p.RetryCount++
		p.SendTime = now
		out = append(out, RetransmitCandidate{PacketNumber: pn, RetryCount: p.RetryCount, Bytes: p.Bytes})
	}
	return out
}

// Abandon removes pn from the tracker and returns its payload. Callers
// invoke it once a packet's retry count reaches protocol.MaxRetries
// (spec.md §4.3, §7 RetryExhausted).
func (t *PacketTracker) Abandon(pn protocol.PacketNumber) ([]byte, bool) {
	p, ok := t.packets[pn]
	if !ok {
		return nil, false
	}
	delete(t.packets, pn)
	return p.Bytes, true
}

// InFlightCount reports how many packets are currently tracked, used by
// tests asserting property #1/#4 and by telemetry.
func (t *PacketTracker) InFlightCount() int {
	return len(t.packets)
}
