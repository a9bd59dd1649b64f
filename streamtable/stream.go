// Package streamtable is the Stream Table (C2): per-connection stream
// state for up to protocol.MaxStreamsPerConnection streams, enforcing the
// state-machine transitions and offset invariants from spec.md §4.2.
// Grounded on quic-go's streams_map.go, simplified to this proxy's single
// state machine (no separate send/receive stream types, no flow control
// windows — flow control is not part of this core).
package streamtable

import (
	"time"

	"github.com/edonshumolli/satellite-quic-proxy/internal/protocol"
)

// State is a Stream's position in the state machine from spec.md §4.2:
//
//	Idle ── first frame seen ──► Open
//	Open ── FIN observed ──► Closed
//	Open ── RESET_STREAM ──► Reset
//	Open ── local reset ──► Reset
//	Closed and Reset are terminal.
type State uint8

const (
	Idle State = iota
	Open
	Closed
	Reset
)

func (s State) String() string {
	switch s {
	case Idle:
		return "Idle"
	case Open:
		return "Open"
	case Closed:
		return "Closed"
	case Reset:
		return "Reset"
	default:
		return "invalid"
	}
}

// Stream holds one stream's state. Offsets are monotonic non-decreasing
// (Testable property #3), with one exception: Table.ObserveReset sets
// ReceivedOffset to the peer's final size and SentOffset to that same
// value, which can lower either. Once Reset, no further data is accepted
// or emitted.
type Stream struct {
	ID             protocol.StreamID
	State          State
	ReceivedOffset uint32
	SentOffset     uint32
	Bidirectional  bool
	FinReceived    bool
	FinSent        bool
	LastActivity   time.Time
}
