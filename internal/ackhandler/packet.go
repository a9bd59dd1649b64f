// Package ackhandler is the Packet Tracker (C3): it remembers in-flight
// packet numbers, their send timestamp, retry count, and payload for
// replay; it processes incoming ACKs; it surfaces retransmission
// candidates (spec.md §4.3). Grounded on quic-go's internal/ackhandler,
// simplified since congestion control beyond a fixed/adaptive RTO is an
// explicit Non-goal.
package ackhandler

import (
	"time"

	"github.com/edonshumolli/satellite-quic-proxy/internal/protocol"
)

// InFlightPacket is a sent packet not yet acknowledged and not yet
// abandoned (spec.md §3). RetryCount is capped at protocol.MaxRetries.
type InFlightPacket struct {
	PacketNumber protocol.PacketNumber
	SendTime     time.Time
	RetryCount   int
	Bytes        []byte
}
