package ackhandler

import (
	"testing"
	"time"

	"github.com/edonshumolli/satellite-quic-proxy/internal/protocol"
	"github.com/edonshumolli/satellite-quic-proxy/internal/qerr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordSentRejectsDuplicatePacketNumber(t *testing.T) {
	tr := NewPacketTracker(0)
	now := time.Now()

	require.NoError(t, tr.RecordSent(1, []byte("a"), now))
	err := tr.RecordSent(1, []byte("b"), now)
	assert.Same(t, qerr.ErrDuplicateSend, err)
	assert.Equal(t, 1, tr.InFlightCount())
}

func TestProcessAckRemovesCoveredPacketsAndIsIdempotent(t *testing.T) {
	tr := NewPacketTracker(0)
	base := time.Now()

	require.NoError(t, tr.RecordSent(0, []byte("p0"), base))
	require.NoError(t, tr.RecordSent(1, []byte("p1"), base.Add(10*time.Millisecond)))
	require.NoError(t, tr.RecordSent(2, []byte("p2"), base.Add(20*time.Millisecond)))

	acked := tr.ProcessAck(2, 2, nil, base.Add(50*time.Millisecond))
	assert.Equal(t, []protocol.PacketNumber{0, 1, 2}, acked)
	assert.Equal(t, 0, tr.InFlightCount())

	rtt, ok := tr.RTT()
	require.True(t, ok)
	assert.Greater(t, rtt, time.Duration(0))

	// Re-applying the same ACK finds nothing left to acknowledge.
	again := tr.ProcessAck(2, 2, nil, base.Add(60*time.Millisecond))
	assert.Empty(t, again)
}

func TestProcessAckWithGapsSkipsTheGap(t *testing.T) {
	tr := NewPacketTracker(0)
	base := time.Now()

	for pn := protocol.PacketNumber(0); pn <= 4; pn++ {
		require.NoError(t, tr.RecordSent(pn, []byte{byte(pn)}, base))
	}

	// Largest=4, firstRange=0 acks just {4}; one additional range with
	// Gap=0 (skip pn 3) Length=1 acks {2,1}, leaving 0 and 3 outstanding.
	acked := tr.ProcessAck(4, 0, []AckRange{{Gap: 0, Length: 1}}, base.Add(time.Millisecond))
	assert.ElementsMatch(t, []protocol.PacketNumber{1, 2, 4}, acked)
	assert.Equal(t, 2, tr.InFlightCount())
}

func TestAdaptiveRTOFallsBackToDefaultWithoutASample(t *testing.T) {
	tr := NewPacketTracker(0)
	assert.Equal(t, protocol.DefaultRTO, tr.AdaptiveRTO())
}

func TestAdaptiveRTOClampsToConfiguredBounds(t *testing.T) {
	tr := NewPacketTracker(0)
	base := time.Now()

	require.NoError(t, tr.RecordSent(0, []byte("p"), base))
	tr.ProcessAck(0, 0, nil, base.Add(time.Microsecond))
	assert.Equal(t, protocol.MinRTO, tr.AdaptiveRTO(), "a near-zero RTT sample must clamp to MinRTO")
}

func TestScanForRetransmitSkipsYoungPacketsAndBumpsRetryCount(t *testing.T) {
	tr := NewPacketTracker(0)
	base := time.Now()

	require.NoError(t, tr.RecordSent(4, []byte("payload"), base))

	none := tr.ScanForRetransmit(base.Add(time.Millisecond), time.Second)
	assert.Empty(t, none, "a packet younger than rto must not be retransmitted")

	cands := tr.ScanForRetransmit(base.Add(2*time.Second), time.Second)
	require.Len(t, cands, 1)
	assert.Equal(t, protocol.PacketNumber(4), cands[0].PacketNumber)
	assert.Equal(t, 1, cands[0].RetryCount)
	assert.Equal(t, []byte("payload"), cands[0].Bytes)
}

func TestScanForRetransmitStopsReturningPacketAtMaxRetries(t *testing.T) {
	tr := NewPacketTracker(0)
	now := time.Now()

	require.NoError(t, tr.RecordSent(0, []byte("p"), now))

	for i := 0; i < protocol.MaxRetries; i++ {
		now = now.Add(time.Second)
		cands := tr.ScanForRetransmit(now, 0)
		require.Len(t, cands, 1, "iteration %d", i)
	}

	now = now.Add(time.Second)
	cands := tr.ScanForRetransmit(now, 0)
	assert.Empty(t, cands, "a packet at the retry cap must no longer be handed back")
	assert.Equal(t, 1, tr.InFlightCount(), "the capped packet stays tracked until Abandon is called")
}

func TestScanForRetransmitOrdersByAscendingPacketNumber(t *testing.T) {
	tr := NewPacketTracker(0)
	now := time.Now()

	require.NoError(t, tr.RecordSent(5, []byte("a"), now))
	require.NoError(t, tr.RecordSent(1, []byte("b"), now))
	require.NoError(t, tr.RecordSent(3, []byte("c"), now))

	cands := tr.ScanForRetransmit(now.Add(time.Second), 0)
	require.Len(t, cands, 3)
	assert.Equal(t, []protocol.PacketNumber{1, 3, 5}, []protocol.PacketNumber{
		cands[0].PacketNumber, cands[1].PacketNumber, cands[2].PacketNumber,
	})
}

func TestScanForRetransmitRespectsTheRateLimiter(t *testing.T) {
	tr := NewPacketTracker(1)
	now := time.Now()

	for pn := protocol.PacketNumber(0); pn < 5; pn++ {
		require.NoError(t, tr.RecordSent(pn, []byte{byte(pn)}, now))
	}

	cands := tr.ScanForRetransmit(now.Add(time.Second), 0)
	assert.LessOrEqual(t, len(cands), 2, "a bursts-per-second limit of 1 must bound how many retransmits one tick returns")
}

func TestAbandonRemovesThePacketAndReturnsItsBytes(t *testing.T) {
	tr := NewPacketTracker(0)
	now := time.Now()

	require.NoError(t, tr.RecordSent(9, []byte("bytes"), now))

	b, ok := tr.Abandon(9)
	require.True(t, ok)
	assert.Equal(t, []byte("bytes"), b)
	assert.Equal(t, 0, tr.InFlightCount())

	_, ok = tr.Abandon(9)
	assert.False(t, ok)
}
