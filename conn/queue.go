package conn

import "github.com/edonshumolli/satellite-quic-proxy/internal/protocol"

// pendingOutbound is one send still waiting on keys: the payload a frame
// carries plus enough to reconstruct it once the level's keys arrive.
type pendingOutbound struct {
	streamID protocol.StreamID
	data     []byte
	fin      bool
}

// outboundQueue is the bounded per-connection, per-encryption-level queue
// spec.md §7's KeyUnavailable behavior implies but does not name as a data
// structure ("the engine queues outbound data and retries on the next key
// advance") — SPEC_FULL.md §4.4 makes it explicit.
type outboundQueue struct {
	byLevel [3][]pendingOutbound
	cap     int
}

func newOutboundQueue(capPerLevel int) *outboundQueue {
	return &outboundQueue{cap: capPerLevel}
}

// push enqueues p at level, dropping the oldest entry if the level's queue
// is already at capacity — a connection stuck waiting on keys should not
// grow without bound.
func (q *outboundQueue) push(level protocol.EncryptionLevel, p pendingOutbound) {
	lvl := q.byLevel[level]
	if len(lvl) >= q.cap {
		lvl = lvl[1:]
	}
	q.byLevel[level] = append(lvl, p)
}

// drain removes and returns every entry queued at level, for replay once
// that level's keys become available.
func (q *outboundQueue) drain(level protocol.EncryptionLevel) []pendingOutbound {
	out := q.byLevel[level]
	q.byLevel[level] = nil
	return out
}
