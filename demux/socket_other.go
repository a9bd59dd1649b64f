//go:build !linux

package demux

import "net"

// tuneSocket is a no-op outside Linux: SO_RCVBUFFORCE and friends are
// Linux-specific, mirroring quic-go's per-OS sys_conn_helper_* split.
func tuneSocket(pc net.PacketConn, bytes int) error {
	return nil
}
