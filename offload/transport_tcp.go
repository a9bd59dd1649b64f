package offload

import (
	"context"
	"encoding/binary"
	"fmt"
	"net"
	"sync"
	"time"
)

// TCPTransport is the one concrete Transport this module ships beyond the
// test doubles: it dials a fixed accelerator address once at construction
// and reports unavailable for the rest of the process lifetime if that
// dial fails, grounded on dtn7-go's MTCPClient connect-once-and-hold
// pattern. The accelerator's own wire protocol is an out-of-scope
// collaborator (spec.md §1); this transport only frames each Request as a
// length-prefixed op byte plus payload and expects the same framing back,
// so it can be pointed at any accelerator speaking that minimal envelope.
type TCPTransport struct {
	address string
	dialTO  time.Duration

	mu   sync.Mutex
	conn net.Conn
}

// NewTCPTransport dials address immediately. A dial failure is not
// returned as an error: the accelerator is an optional collaborator, so a
// TCPTransport that never connected simply reports itself unavailable and
// every Dispatcher call takes the software path, matching the routing
// policy in spec.md §4.6.
func NewTCPTransport(address string, dialTimeout time.Duration) *TCPTransport {
	t := &TCPTransport{address: address, dialTO: dialTimeout}
	conn, err := net.DialTimeout("tcp", address, dialTimeout)
	if err == nil {
		t.conn = conn
	}
	return t
}

func (t *TCPTransport) Available() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.conn != nil
}

// Do writes req's op and payload length-prefixed, then reads back a
// length-prefixed response. Any I/O failure drops the connection so
// subsequent Available() calls correctly report the accelerator as gone,
// letting later calls fall back to software without retrying a dead
// socket.
func (t *TCPTransport) Do(ctx context.Context, req Request) (Response, error) {
	t.mu.Lock()
	conn := t.conn
	t.mu.Unlock()
	if conn == nil {
		return Response{}, errNilTransportCalled
	}

	if dl, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(dl)
	}

	start := time.Now()
	if err := writeFrame(conn, byte(req.Op), req.Payload); err != nil {
		t.drop()
		return Response{}, fmt.Errorf("offload: tcp transport write: %w", err)
	}
	var opBuf [1]byte
	if _, err := readFull(conn, opBuf[:]); err != nil {
		t.drop()
		return Response{}, fmt.Errorf("offload: tcp transport read: %w", err)
	}
	out, err := readFrame(conn)
	if err != nil {
		t.drop()
		return Response{}, fmt.Errorf("offload: tcp transport read: %w", err)
	}
	return Response{Out: out, ProcessMS: float64(time.Since(start).Milliseconds())}, nil
}

func (t *TCPTransport) drop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.conn != nil {
		t.conn.Close()
		t.conn = nil
	}
}

func writeFrame(conn net.Conn, op byte, payload []byte) error {
	header := make([]byte, 5)
	header[0] = op
	binary.BigEndian.PutUint32(header[1:], uint32(len(payload)))
	if _, err := conn.Write(header); err != nil {
		return err
	}
	_, err := conn.Write(payload)
	return err
}

func readFrame(conn net.Conn) ([]byte, error) {
	var lenBuf [4]byte
	if _, err := readFull(conn, lenBuf[:]); err != nil {
		return nil, err
	}
	n := binary.BigEndian.Uint32(lenBuf[:])
	out := make([]byte, n)
	if _, err := readFull(conn, out); err != nil {
		return nil, err
	}
	return out, nil
}

func readFull(conn net.Conn, buf []byte) (int, error) {
	total := 0
	for total < len(buf) {
		n, err := conn.Read(buf[total:])
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}
