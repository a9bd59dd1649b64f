// Package conn is the Connection Engine (C4): it owns one QUIC connection
// end to end, is the only component that mutates the Stream Table and
// Packet Tracker, and the only caller of the Offload Dispatcher (spec.md
// §4.4). Grounded on quic-go's connection.go, radically simplified: no
// congestion control, no full TLS 1.3 state machine, no path migration —
// this engine's job is header validation, frame dispatch, and
// retransmission scheduling for a link whose dominant cost is round-trip
// latency, not contention.
package conn

import (
	"context"
	"time"

	"github.com/edonshumolli/satellite-quic-proxy/internal/ackhandler"
	"github.com/edonshumolli/satellite-quic-proxy/internal/protocol"
	"github.com/edonshumolli/satellite-quic-proxy/internal/qerr"
	"github.com/edonshumolli/satellite-quic-proxy/internal/utils"
	"github.com/edonshumolli/satellite-quic-proxy/keys"
	"github.com/edonshumolli/satellite-quic-proxy/metrics"
	"github.com/edonshumolli/satellite-quic-proxy/offload"
	"github.com/edonshumolli/satellite-quic-proxy/streamtable"
)

// Sink is how a Connection hands a serialized datagram back to its
// transport. The Demultiplexer supplies one bound to the peer's address
// (spec.md §4.5: the engine is never responsible for its own socket).
type Sink interface {
	Send(b []byte) error
}

// ApplicationSink receives validated, in-order stream payload (spec.md
// §4.4: "surface payload to the application sink associated with that
// connection").
type ApplicationSink interface {
	Deliver(streamID protocol.StreamID, data []byte, fin bool)
}

// outboundQueueCap bounds how many sends a connection will hold per
// encryption level while waiting on keys, per SPEC_FULL.md §4.4.
const outboundQueueCap = 64

// Options carries the per-connection tuning knobs config.go exposes
// (SPEC_FULL.md §2's Config), so a Connection's retransmission behavior
// can be set by an operator rather than compiled in.
type Options struct {
	// AdaptiveRTO selects the Packet Tracker's EWMA-based RTO estimator
	// over the fixed protocol.DefaultRTO (spec.md §4.3).
	AdaptiveRTO bool
	// RetransmitBurstsPerSecond bounds ScanForRetransmit's token bucket;
	// zero means unlimited, matching ackhandler.NewPacketTracker(0).
	RetransmitBurstsPerSecond float64
}

// Connection owns a single QUIC connection (spec.md §3's Connection
// record). Nothing lower in the stack references back to it (Design Notes
// §9): the Stream Table and Packet Tracker are created by and held
// exclusively by this Connection, and the
// Offload Dispatcher is a shared, stateless-from-the-connection's-view
// collaborator reached only through method calls.
type Connection struct {
	LocalCID protocol.ConnectionID
	// RemoteCID is the client's original Initial Destination Connection
	// ID — the value RFC 9001's Initial salt derivation is keyed on. It is
	// not necessarily the ID to address outbound packets to: once the
	// peer's own Source Connection ID is known, PeerCID is used instead
	// (spec.md scenario S1: "an Initial response is emitted with DCID
	// equal to the peer's SCID").
	RemoteCID protocol.ConnectionID
	PeerCID   protocol.ConnectionID
	Version   protocol.Version

	perspective protocol.Perspective

	nextPN        protocol.PacketNumber
	largestRecvPN protocol.PacketNumber
	lastActivity  time.Time
	ackDue        bool

	keys       *keys.Provider
	streams    *streamtable.Table
	tracker    *ackhandler.PacketTracker
	dispatcher *offload.Dispatcher
	metrics    *metrics.Registry

	sink Sink
	app  ApplicationSink

	pendingSend map[protocol.StreamID][]byte
	pendingFin  map[protocol.StreamID]bool
	queue       *outboundQueue

	opts Options

	accelEnabled bool
	lost         bool

	validationErrors map[qerr.ParseErrorKind]uint64

	// Per-connection telemetry, aggregated on demand by the Demultiplexer's
	// Stats() (SPEC_FULL.md §4.5) independently of the process-wide
	// Prometheus counters in metrics.Registry: an operator query for "this
	// one connection's counters" shouldn't need label-matching against the
	// global registry.
	packetsSent          uint64
	packetsReceived      uint64
	packetsRetransmitted uint64
	bytesSent            uint64
	bytesReceived        uint64

	log utils.Logger
}

// New creates a Connection for a newly accepted peer. localCID is the
// connection ID the peer will address future datagrams to (the DCID of the
// peer's Initial, which this side sends back as its SCID); remoteCID is the
// peer's DCID from its Initial, used to derive Initial keys (spec.md §6
// Key Provider contract); peerCID is the peer's SCID, the DCID of every
// outbound packet.
func New(localCID, remoteCID, peerCID protocol.ConnectionID, version protocol.Version, dispatcher *offload.Dispatcher, reg *metrics.Registry, sink Sink, app ApplicationSink, opts Options, now time.Time) (*Connection, error) {
	kp, err := keys.NewProvider(remoteCID.Bytes(), protocol.PerspectiveServer)
	if err != nil {
		return nil, err
	}
	c := &Connection{
		LocalCID:         localCID,
		RemoteCID:        remoteCID,
		PeerCID:          peerCID,
		Version:          version,
		perspective:      protocol.PerspectiveServer,
		nextPN:           0,
		largestRecvPN:    protocol.InvalidPacketNumber,
		lastActivity:     now,
		keys:             kp,
		streams:          streamtable.New(),
		tracker:          ackhandler.NewPacketTracker(opts.RetransmitBurstsPerSecond),
		opts:             opts,
		dispatcher:       dispatcher,
		metrics:          reg,
		sink:             sink,
		app:              app,
		pendingSend:      make(map[protocol.StreamID][]byte),
		pendingFin:       make(map[protocol.StreamID]bool),
		queue:            newOutboundQueue(outboundQueueCap),
		validationErrors: make(map[qerr.ParseErrorKind]uint64),
		log:              utils.NewLogger(),
	}
	return c, nil
}

// IsIdle reports whether the connection has had no activity for longer
// than protocol.IdleTimeout (Testable property #9).
func (c *Connection) IsIdle(now time.Time) bool {
	return now.Sub(c.lastActivity) > protocol.IdleTimeout
}

// IsLost reports whether the connection has entered the terminal lost
// state (spec.md §7 RetryExhausted).
func (c *Connection) IsLost() bool {
	return c.lost
}

// ValidationErrorCount returns how many datagrams this connection has
// dropped for kind, for Stats() aggregation (SPEC_FULL.md §4.5).
func (c *Connection) ValidationErrorCount(kind qerr.ParseErrorKind) uint64 {
	return c.validationErrors[kind]
}

// Counters snapshots this connection's packet/byte telemetry for Stats()
// aggregation.
func (c *Connection) Counters() (sent, received, retransmitted, bytesSent, bytesReceived uint64) {
	return c.packetsSent, c.packetsReceived, c.packetsRetransmitted, c.bytesSent, c.bytesReceived
}

// ValidationErrorKinds returns every validation-error kind this connection
// has recorded at least one drop for, for Stats() to enumerate without
// guessing the full kind space.
func (c *Connection) ValidationErrorKinds() []qerr.ParseErrorKind {
	kinds := make([]qerr.ParseErrorKind, 0, len(c.validationErrors))
	for k := range c.validationErrors {
		kinds = append(kinds, k)
	}
	return kinds
}

func (c *Connection) recordValidationError(kind qerr.ParseErrorKind) {
	c.validationErrors[kind]++
	if c.metrics != nil {
		c.metrics.ValidationErrors.WithLabelValues(kind.String()).Inc()
	}
}

func (c *Connection) touch(now time.Time) {
	c.lastActivity = now
}

// dispatcherContext gives every Dispatcher call a deadline derived from
// the fixed offload.DefaultTimeout, per spec.md §5 ("every Dispatcher
// call has a deadline").
func (c *Connection) dispatcherContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), offload.DefaultTimeout)
}
