package streamtable

import (
	"container/list"
	"time"

	"github.com/edonshumolli/satellite-quic-proxy/internal/protocol"
	"github.com/edonshumolli/satellite-quic-proxy/internal/qerr"
)

// Table is the Stream Table (C2). A Connection owns exactly one, created in
// conn.New and shared with nothing else; nothing lower in the stack
// references back to the owning Connection (spec.md Design Notes §9).
//
// lru is an intrusive doubly linked list over the Open streams, ordered
// least-recently-used to most-recently-used, supplementing spec.md §4.2's
// allocate_send with an O(1) selection instead of a linear scan over the
// map (SPEC_FULL.md §4.2), grounded on quic-go's streams_map.go
// map-of-streams idiom.
type Table struct {
	streams  map[protocol.StreamID]*Stream
	lru      *list.List
	lruElems map[protocol.StreamID]*list.Element
}

// New creates an empty Table.
func New() *Table {
	return &Table{
		streams:  make(map[protocol.StreamID]*Stream),
		lru:      list.New(),
		lruElems: make(map[protocol.StreamID]*list.Element),
	}
}

// Count reports how many streams are currently tracked. Invariant:
// Count() <= protocol.MaxStreamsPerConnection at all times (Testable
// property #2).
func (t *Table) Count() int {
	return len(t.streams)
}

// Get returns the stream with the given ID, if tracked.
func (t *Table) Get(id protocol.StreamID) (*Stream, bool) {
	s, ok := t.streams[id]
	return s, ok
}

// lruTouch marks id as most-recently-used, adding it to the list if it
// isn't already tracked there. Call only while id's Stream is Open.
func (t *Table) lruTouch(id protocol.StreamID) {
	if e, ok := t.lruElems[id]; ok {
		t.lru.MoveToBack(e)
		return
	}
	t.lruElems[id] = t.lru.PushBack(id)
}

// lruRemove drops id from the LRU list, e.g. once it leaves the Open state.
func (t *Table) lruRemove(id protocol.StreamID) {
	if e, ok := t.lruElems[id]; ok {
		t.lru.Remove(e)
		delete(t.lruElems, id)
	}
}

// OnReceived applies an inbound STREAM frame's fields to the table,
// creating the stream if absent and capacity allows (spec.md §4.2). The
// received offset becomes max(current, offset+length); if fin is set and
// the stream is Open, it transitions to Closed.
func (t *Table) OnReceived(id protocol.StreamID, offset uint32, length uint32, fin bool, now time.Time) error {
	s, ok := t.streams[id]
	if !ok {
		if len(t.streams) >= protocol.MaxStreamsPerConnection {
			return qerr.NewStreamError(qerr.CapacityExceeded, "stream table full")
		}
		s = &Stream{
			ID:            id,
			State:         Idle,
			Bidirectional: id.IsBidirectional(),
		}
		t.streams[id] = s
	}
	if s.State == Reset || s.State == Closed {
		// Terminal states accept no further data; dropping silently
		// rather than erroring matches spec.md §4.2 ("no further data is
		// accepted") without treating a straggling retransmission as a
		// protocol violation.
		return nil
	}
	if s.State == Idle {
		s.State = Open
	}
	t.lruTouch(id)

	end := offset + length
	if end > s.ReceivedOffset {
		s.ReceivedOffset = end
	}
	s.LastActivity = now

	if fin {
		s.FinReceived = true
		if s.State == Open {
			s.State = Closed
			t.lruRemove(id)
		}
	}
	return nil
}

// AllocateSend allocates n bytes of outbound capacity against an existing
// Open stream, chosen by least-recently-used; it creates a new stream when
// none exist and count < protocol.MaxStreamsPerConnection. It advances the
// chosen stream's send offset by n and returns the stream ID and the
// offset at which the new bytes begin.
func (t *Table) AllocateSend(n uint32, now time.Time) (protocol.StreamID, uint32, error) {
	if front := t.lru.Front(); front != nil {
		id := front.Value.(protocol.StreamID)
		s := t.streams[id]
		start := s.SentOffset
		s.SentOffset += n
		s.LastActivity = now
		t.lruTouch(id)
		return id, start, nil
	}
	if len(t.streams) >= protocol.MaxStreamsPerConnection {
		return 0, 0, qerr.NewStreamError(qerr.CapacityExceeded, "stream table full")
	}
	id := t.nextLocalStreamID()
	s := &Stream{ID: id, State: Open, Bidirectional: id.IsBidirectional(), LastActivity: now}
	s.SentOffset = n
	t.streams[id] = s
	t.lruTouch(id)
	return id, 0, nil
}

// AdvanceSent advances a specific stream's send offset by n bytes,
// creating the stream if absent and capacity allows. Unlike AllocateSend,
// the caller names the stream explicitly; this backs Connection.SendApplication,
// where the application names a stream rather than leaving the choice to
// the table's LRU policy.
func (t *Table) AdvanceSent(id protocol.StreamID, n uint32, now time.Time) (uint32, error) {
	s, ok := t.streams[id]
	if !ok {
		if len(t.streams) >= protocol.MaxStreamsPerConnection {
			return 0, qerr.NewStreamError(qerr.CapacityExceeded, "stream table full")
		}
		s = &Stream{ID: id, State: Open, Bidirectional: id.IsBidirectional()}
		t.streams[id] = s
	}
	if s.State == Idle {
		s.State = Open
	}
	if s.State == Open {
		t.lruTouch(id)
	}
	start := s.SentOffset
	s.SentOffset += n
	s.LastActivity = now
	return start, nil
}

// Touch creates id as Open if absent, otherwise leaves its state alone. It
// lets the Connection Engine register a stream before buffering pending
// send bytes for it, so LongestPendingSend can find it on the next
// assembly pass even before any bytes have actually been placed in a
// packet.
func (t *Table) Touch(id protocol.StreamID, now time.Time) error {
	if _, ok := t.streams[id]; ok {
		return nil
	}
	if len(t.streams) >= protocol.MaxStreamsPerConnection {
		return qerr.NewStreamError(qerr.CapacityExceeded, "stream table full")
	}
	t.streams[id] = &Stream{ID: id, State: Open, Bidirectional: id.IsBidirectional(), LastActivity: now}
	t.lruTouch(id)
	return nil
}

// ResetAll transitions every tracked stream to Reset, used when a
// connection enters the terminal lost state (spec.md §7 RetryExhausted:
// "outstanding streams become Reset").
func (t *Table) ResetAll(now time.Time) {
	for id, s := range t.streams {
		s.State = Reset
		s.LastActivity = now
		t.lruRemove(id)
	}
}

// MarkFinSent records that a FIN has been sent on id, closing it if it was
// Open.
func (t *Table) MarkFinSent(id protocol.StreamID) {
	s, ok := t.streams[id]
	if !ok {
		return
	}
	s.FinSent = true
	if s.State == Open {
		s.State = Closed
		t.lruRemove(id)
	}
}

// nextLocalStreamID picks the lowest unused stream ID that is a multiple
// of 4: a client-initiated bidirectional ID under protocol.StreamID's
// initiator encoding, even though this proxy always acts as
// protocol.PerspectiveServer toward its peers.
func (t *Table) nextLocalStreamID() protocol.StreamID {
	var id protocol.StreamID
	for {
		if _, ok := t.streams[id]; !ok {
			return id
		}
		id += 4
	}
}

// ObserveReset transitions id to Reset, sets its received offset to
// finalSize, and drops any pending send data (spec.md §4.2).
func (t *Table) ObserveReset(id protocol.StreamID, finalSize uint32, now time.Time) {
	s, ok := t.streams[id]
	if !ok {
		s = &Stream{ID: id, Bidirectional: id.IsBidirectional()}
		t.streams[id] = s
	}
	s.State = Reset
	s.ReceivedOffset = finalSize
	s.SentOffset = s.ReceivedOffset
	s.LastActivity = now
	t.lruRemove(id)
}

// LocalReset transitions id to Reset from the local side, per the
// "Open ── local reset ──► Reset" edge in spec.md §4.2's state machine.
func (t *Table) LocalReset(id protocol.StreamID, now time.Time) {
	s, ok := t.streams[id]
	if !ok {
		return
	}
	s.State = Reset
	s.LastActivity = now
	t.lruRemove(id)
}

// LongestPendingSend returns the Open stream with the most pending (sent
// but not yet flushed) bytes, or the lowest-ID stream on a tie, per the
// outbound packet assembly policy in spec.md §4.4. It is the caller's
// responsibility to track how many of SentOffset's bytes are still
// "pending" (not yet placed in a packet); this table only tracks the
// high-water mark, so the Connection Engine passes in the pending-bytes
// function it maintains per stream. Unlike AllocateSend's LRU pick, this
// selection is by pending-byte volume, not recency, so it still scans the
// Open set; that set is bounded by protocol.MaxStreamsPerConnection.
func (t *Table) LongestPendingSend(pending func(protocol.StreamID) uint32) (protocol.StreamID, bool) {
	var best *Stream
	var bestPending uint32
	for _, s := range t.streams {
		if s.State != Open {
			continue
		}
		p := pending(s.ID)
		if p == 0 {
			continue
		}
		if best == nil || p > bestPending || (p == bestPending && s.ID < best.ID) {
			best = s
			bestPending = p
		}
	}
	if best == nil {
		return 0, false
	}
	return best.ID, true
}
