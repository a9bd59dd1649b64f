// Package demux is the Demultiplexer (C5): the single UDP receive loop
// that maps each datagram to its owning Connection, creates a Connection
// on a valid Initial, and reaps idle ones (spec.md §4.5). Grounded on
// quic-go's baseServer/Transport packet-routing loop, radically
// simplified: one socket, one goroutine, no 0-RTT or retry tokens.
package demux

import (
	"errors"
	"net"
	"time"

	"github.com/edonshumolli/satellite-quic-proxy/conn"
	"github.com/edonshumolli/satellite-quic-proxy/internal/protocol"
	"github.com/edonshumolli/satellite-quic-proxy/internal/qerr"
	"github.com/edonshumolli/satellite-quic-proxy/internal/utils"
	"github.com/edonshumolli/satellite-quic-proxy/internal/wire"
	"github.com/edonshumolli/satellite-quic-proxy/metrics"
	"github.com/edonshumolli/satellite-quic-proxy/offload"
	"github.com/hashicorp/go-multierror"
)

// maxDatagramSize is the largest UDP payload this proxy will read; large
// enough for the 1200-byte Initial minimum with headroom.
const maxDatagramSize = 2048

// receiveBufferBytes is the kernel socket receive buffer size tuneSocket
// requests, sized for a satellite uplink's loss-burst behavior (spec.md §1).
const receiveBufferBytes = 4 << 20

// AppSinkFactory builds the application-facing sink a new Connection
// delivers payload to. The Demultiplexer has no opinion on what the
// application layer does with stream bytes (spec.md §1 non-goals: the
// application is an external collaborator).
type AppSinkFactory func(localCID protocol.ConnectionID) conn.ApplicationSink

// Demultiplexer owns the ConnectionTable exclusively (spec.md §5) and runs
// the single cooperative receive loop.
type Demultiplexer struct {
	pc         net.PacketConn
	dispatcher *offload.Dispatcher
	metrics    *metrics.Registry
	appSinks   AppSinkFactory
	connOpts   conn.Options

	table *connectionTable
	log   utils.Logger

	lastReap time.Time
}

// New binds a UDP socket at addr and returns a Demultiplexer ready to run.
// appSinks may be nil, in which case new connections get a discarding sink.
// connOpts is applied to every Connection this Demultiplexer accepts.
func New(addr string, dispatcher *offload.Dispatcher, reg *metrics.Registry, appSinks AppSinkFactory, connOpts conn.Options) (*Demultiplexer, error) {
	pc, err := net.ListenPacket("udp", addr)
	if err != nil {
		return nil, err
	}
	if err := tuneSocket(pc, receiveBufferBytes); err != nil {
		utils.NewLogger().WithError(err).Warn("demux: socket tuning failed, continuing with defaults")
	}
	if appSinks == nil {
		appSinks = func(protocol.ConnectionID) conn.ApplicationSink { return discardSink{} }
	}
	return &Demultiplexer{
		pc:         pc,
		dispatcher: dispatcher,
		metrics:    reg,
		appSinks:   appSinks,
		connOpts:   connOpts,
		table:      newConnectionTable(),
		log:        utils.NewLogger(),
	}, nil
}

// discardSink drops delivered application payload; used when the caller
// does not supply an AppSinkFactory (e.g. tests exercising the protocol
// engine without a real application on top).
type discardSink struct{}

func (discardSink) Deliver(protocol.StreamID, []byte, bool) {}

// Run drives the receive loop until ctx-equivalent shutdown is requested
// via Close, or a fatal socket error occurs (spec.md §7: "nothing
// propagates out of the Demultiplexer except fatal setup failures"). The
// loop alternates short-deadline reads with periodic tick/reap passes,
// keeping everything on one goroutine per spec.md §5's single-threaded
// cooperative scheduling model.
func (d *Demultiplexer) Run() error {
	buf := make([]byte, maxDatagramSize)
	d.lastReap = time.Now()
	for {
		if err := d.pc.SetReadDeadline(time.Now().Add(protocol.TickInterval)); err != nil {
			return err
		}
		n, addr, err := d.pc.ReadFrom(buf)
		now := time.Now()
		if err != nil {
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				d.sweep(now)
				continue
			}
			if isClosedConnError(err) {
				return nil
			}
			return err
		}
		d.handleDatagram(buf[:n], addr, now)
		if now.Sub(d.lastReap) >= protocol.TickInterval {
			d.sweep(now)
		}
	}
}

// Close shuts down the underlying socket, causing Run to return.
func (d *Demultiplexer) Close() error {
	return d.pc.Close()
}

func isClosedConnError(err error) bool {
	return errors.Is(err, net.ErrClosed)
}

func (d *Demultiplexer) handleDatagram(data []byte, addr net.Addr, now time.Time) {
	h, err := wire.ParseHeader(data, protocol.DefaultShortHeaderDCIDLen)
	if err != nil {
		if d.metrics != nil {
			if pe, ok := err.(*qerr.ParseError); ok {
				d.metrics.ValidationErrors.WithLabelValues(pe.Kind.String()).Inc()
			}
		}
		return
	}

	key := h.DestConnectionID.Key()
	if c, ok := d.table.get(key); ok {
		c.OnDatagram(data, now)
		return
	}

	if h.Type != protocol.PacketTypeInitial || h.Version != protocol.Version1 {
		return
	}
	c, err := d.accept(h, addr, now)
	if err != nil {
		d.log.WithError(err).Warn("demux: failed to accept new connection")
		return
	}
	d.table.put(key, c)
	if d.metrics != nil {
		d.metrics.ActiveConnections.Set(float64(d.table.len()))
	}
	c.OnDatagram(data, now)
}

func (d *Demultiplexer) accept(h *wire.Header, addr net.Addr, now time.Time) (*conn.Connection, error) {
	sink := &udpSink{pc: d.pc, addr: addr}
	app := d.appSinks(h.DestConnectionID)
	return conn.New(h.DestConnectionID, h.DestConnectionID, h.SrcConnectionID, h.Version, d.dispatcher, d.metrics, sink, app, d.connOpts, now)
}

// sweep runs tick(now) on every connection and reaps ones that have gone
// idle or entered the terminal lost state (spec.md §4.5, Testable property
// #9). Close() failures while reaping are aggregated rather than dropped,
// since an operator watching the logs should see every connection that
// could not be torn down cleanly in one place instead of the last one
// overwriting the rest.
func (d *Demultiplexer) sweep(now time.Time) {
	d.lastReap = now
	var errs *multierror.Error
	for _, e := range d.table.entries() {
		e.conn.Tick(now)
		if e.conn.IsIdle(now) || e.conn.IsLost() {
			if err := e.conn.Close(now); err != nil && err != qerr.ErrKeyUnavailable {
				errs = multierror.Append(errs, err)
			}
			d.table.delete(e.key)
		}
	}
	if d.metrics != nil {
		d.metrics.ActiveConnections.Set(float64(d.table.len()))
	}
	if errs != nil {
		d.log.WithError(errs).Error("demux: errors while reaping idle connections")
	}
}

// udpSink implements conn.Sink by writing back to the peer's address on
// the Demultiplexer's shared socket.
type udpSink struct {
	pc   net.PacketConn
	addr net.Addr
}

func (s *udpSink) Send(b []byte) error {
	_, err := s.pc.WriteTo(b, s.addr)
	return err
}

// Stats is an on-demand snapshot of operator-visible counters (spec.md §6),
// computed by walking the connection table rather than held as a running
// global (Design Notes §9).
type Stats struct {
	ActiveConnections    int
	PacketsSent          uint64
	PacketsReceived      uint64
	PacketsRetransmitted uint64
	BytesSent            uint64
	BytesReceived        uint64
	ValidationErrors     map[qerr.ParseErrorKind]uint64
}

func (d *Demultiplexer) Stats() Stats {
	s := Stats{
		ActiveConnections: d.table.len(),
		ValidationErrors:  make(map[qerr.ParseErrorKind]uint64),
	}
	for _, c := range d.table.all() {
		sent, recv, retx, bSent, bRecv := c.Counters()
		s.PacketsSent += sent
		s.PacketsReceived += recv
		s.PacketsRetransmitted += retx
		s.BytesSent += bSent
		s.BytesReceived += bRecv
		for _, kind := range c.ValidationErrorKinds() {
			s.ValidationErrors[kind] += c.ValidationErrorCount(kind)
		}
	}
	return s
}
