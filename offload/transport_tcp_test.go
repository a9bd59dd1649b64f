package offload

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// startEchoAccelerator listens on an ephemeral localhost port and echoes
// back every framed request it receives as-is, standing in for a real
// accelerator speaking TCPTransport's minimal envelope.
func startEchoAccelerator(t *testing.T) string {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = ln.Close() })

	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			var opBuf [1]byte
			if _, err := readFull(conn, opBuf[:]); err != nil {
				return
			}
			payload, err := readFrame(conn)
			if err != nil {
				return
			}
			if err := writeFrame(conn, opBuf[0], payload); err != nil {
				return
			}
		}
	}()
	return ln.Addr().String()
}

func TestTCPTransportDialsAndRoundTrips(t *testing.T) {
	addr := startEchoAccelerator(t)
	tr := NewTCPTransport(addr, time.Second)
	require.True(t, tr.Available())

	resp, err := tr.Do(context.Background(), Request{Op: OpSeal, Payload: []byte("hello")})
	require.NoError(t, err)
	assert.Equal(t, []byte("hello"), resp.Out)
}

func TestTCPTransportReportsUnavailableWhenDialFails(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close()) // nothing is listening anymore

	tr := NewTCPTransport(addr, 100*time.Millisecond)
	assert.False(t, tr.Available())

	_, err = tr.Do(context.Background(), Request{Op: OpSeal, Payload: []byte("x")})
	assert.Error(t, err)
}

func TestTCPTransportDropsTheConnectionOnIOFailure(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = ln.Close() })

	accepted := make(chan net.Conn, 1)
	go func() {
		c, err := ln.Accept()
		if err == nil {
			accepted <- c
		}
	}()

	tr := NewTCPTransport(ln.Addr().String(), time.Second)
	require.True(t, tr.Available())

	server := <-accepted
	require.NoError(t, server.Close()) // simulate the accelerator vanishing

	_, err = tr.Do(context.Background(), Request{Op: OpSeal, Payload: []byte("x")})
	assert.Error(t, err)
	assert.False(t, tr.Available(), "a failed Do must drop the connection so Available reflects reality")
}
