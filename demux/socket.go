//go:build linux

package demux

import (
	"errors"
	"fmt"
	"net"
	"syscall"

	"golang.org/x/sys/unix"
)

// tuneSocket sets SO_REUSEADDR and forces the receive buffer to bytes,
// grounded on quic-go's sys_conn_helper_linux.go forceSetReceiveBuffer: a
// satellite uplink's loss bursts make a generous kernel receive buffer the
// difference between a retransmit storm draining cleanly and datagrams
// being dropped at the socket before this proxy ever sees them.
func tuneSocket(pc net.PacketConn, bytes int) error {
	sc, ok := pc.(interface {
		SyscallConn() (syscall.RawConn, error)
	})
	if !ok {
		return errors.New("demux: packet conn has no SyscallConn")
	}
	rawConn, err := sc.SyscallConn()
	if err != nil {
		return fmt.Errorf("demux: syscall.RawConn: %w", err)
	}
	var serr error
	if err := rawConn.Control(func(fd uintptr) {
		if err := unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
			serr = err
			return
		}
		serr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_RCVBUFFORCE, bytes)
	}); err != nil {
		return err
	}
	return serr
}
