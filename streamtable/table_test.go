package streamtable

import (
	"testing"
	"time"

	"github.com/edonshumolli/satellite-quic-proxy/internal/protocol"
	"github.com/edonshumolli/satellite-quic-proxy/internal/qerr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOnReceivedCreatesAndOpensStream(t *testing.T) {
	tbl := New()
	now := time.Now()

	require.NoError(t, tbl.OnReceived(4, 0, 10, false, now))

	s, ok := tbl.Get(4)
	require.True(t, ok)
	assert.Equal(t, Open, s.State)
	assert.EqualValues(t, 10, s.ReceivedOffset)
}

func TestOnReceivedOffsetIsMonotonic(t *testing.T) {
	tbl := New()
	now := time.Now()

	require.NoError(t, tbl.OnReceived(4, 0, 10, false, now))
	require.NoError(t, tbl.OnReceived(4, 20, 5, false, now))
	require.NoError(t, tbl.OnReceived(4, 0, 5, false, now))

	s, _ := tbl.Get(4)
	assert.EqualValues(t, 25, s.ReceivedOffset, "offset must never move backward")
}

func TestOnReceivedFinClosesStream(t *testing.T) {
	tbl := New()
	now := time.Now()

	require.NoError(t, tbl.OnReceived(4, 0, 10, true, now))

	s, _ := tbl.Get(4)
	assert.Equal(t, Closed, s.State)
	assert.True(t, s.FinReceived)
}

func TestOnReceivedAfterResetIsIgnored(t *testing.T) {
	tbl := New()
	now := time.Now()

	tbl.ObserveReset(4, 100, now)
	require.NoError(t, tbl.OnReceived(4, 0, 50, false, now))

	s, _ := tbl.Get(4)
	assert.Equal(t, Reset, s.State)
	assert.EqualValues(t, 100, s.ReceivedOffset, "a reset stream's offset must not move")
}

func TestOnReceivedRejectsWhenTableFull(t *testing.T) {
	tbl := New()
	now := time.Now()

	for i := 0; i < protocol.MaxStreamsPerConnection; i++ {
		require.NoError(t, tbl.OnReceived(protocol.StreamID(i*4), 0, 1, false, now))
	}
	assert.Equal(t, protocol.MaxStreamsPerConnection, tbl.Count())

	err := tbl.OnReceived(protocol.StreamID(protocol.MaxStreamsPerConnection*4), 0, 1, false, now)
	require.Error(t, err)

	var streamErr *qerr.StreamError
	require.ErrorAs(t, err, &streamErr)
	assert.Equal(t, qerr.CapacityExceeded, streamErr.Kind)
	assert.Equal(t, protocol.MaxStreamsPerConnection, tbl.Count(), "a rejected frame must not grow the table")
}

func TestAllocateSendReusesLeastRecentlyUsedOpenStream(t *testing.T) {
	tbl := New()
	base := time.Now()

	id1, _, err := tbl.AllocateSend(10, base)
	require.NoError(t, err)

	// AllocateSend reuses an Open stream whenever one exists, so the
	// second Open stream is registered explicitly.
	id2 := protocol.StreamID(4)
	require.NoError(t, tbl.Touch(id2, base.Add(time.Second)))
	require.NotEqual(t, id1, id2)

	// id1 is now the least-recently-used Open stream; the next allocation
	// should land back on it rather than opening a third stream.
	id3, offset, err := tbl.AllocateSend(5, base.Add(2*time.Second))
	require.NoError(t, err)
	assert.Equal(t, id1, id3)
	assert.EqualValues(t, 10, offset)
}

func TestAllocateSendRejectsWhenTableFull(t *testing.T) {
	tbl := New()
	now := time.Now()

	for i := 0; i < protocol.MaxStreamsPerConnection; i++ {
		tbl.ObserveReset(protocol.StreamID(i*4), 0, now)
	}

	_, _, err := tbl.AllocateSend(1, now)
	require.Error(t, err)
	var streamErr *qerr.StreamError
	require.ErrorAs(t, err, &streamErr)
	assert.Equal(t, qerr.CapacityExceeded, streamErr.Kind)
}

func TestObserveResetDropsPendingSendData(t *testing.T) {
	tbl := New()
	now := time.Now()

	id, _, err := tbl.AllocateSend(50, now)
	require.NoError(t, err)

	tbl.ObserveReset(id, 20, now.Add(time.Second))

	s, _ := tbl.Get(id)
	assert.Equal(t, Reset, s.State)
	assert.EqualValues(t, 20, s.ReceivedOffset)
	assert.EqualValues(t, 20, s.SentOffset, "pending send bytes beyond the final size must be dropped")
}

func TestLongestPendingSendPicksLargestThenLowestID(t *testing.T) {
	tbl := New()
	now := time.Now()

	require.NoError(t, tbl.OnReceived(8, 0, 1, false, now))
	require.NoError(t, tbl.OnReceived(4, 0, 1, false, now))

	pending := map[protocol.StreamID]uint32{4: 30, 8: 30}
	id, ok := tbl.LongestPendingSend(func(sid protocol.StreamID) uint32 { return pending[sid] })
	require.True(t, ok)
	assert.Equal(t, protocol.StreamID(4), id, "ties break toward the lowest stream ID")
}

func TestTouchCreatesOpenStreamOnceOnly(t *testing.T) {
	tbl := New()
	now := time.Now()

	require.NoError(t, tbl.Touch(4, now))
	s, ok := tbl.Get(4)
	require.True(t, ok)
	assert.Equal(t, Open, s.State)

	s.SentOffset = 7
	require.NoError(t, tbl.Touch(4, now.Add(time.Second)))
	s2, _ := tbl.Get(4)
	assert.EqualValues(t, 7, s2.SentOffset, "touching an already-tracked stream must not reset it")
}

func TestTouchRejectsWhenTableFull(t *testing.T) {
	tbl := New()
	now := time.Now()

	for i := 0; i < protocol.MaxStreamsPerConnection; i++ {
		require.NoError(t, tbl.Touch(protocol.StreamID(i*4), now))
	}
	err := tbl.Touch(protocol.StreamID(protocol.MaxStreamsPerConnection*4), now)
	require.Error(t, err)
	var streamErr *qerr.StreamError
	require.ErrorAs(t, err, &streamErr)
	assert.Equal(t, qerr.CapacityExceeded, streamErr.Kind)
}

func TestResetAllMarksEveryStreamReset(t *testing.T) {
	tbl := New()
	now := time.Now()

	require.NoError(t, tbl.OnReceived(4, 0, 10, false, now))
	require.NoError(t, tbl.OnReceived(8, 0, 10, false, now))

	tbl.ResetAll(now.Add(time.Second))

	for _, id := range []protocol.StreamID{4, 8} {
		s, ok := tbl.Get(id)
		require.True(t, ok)
		assert.Equal(t, Reset, s.State)
	}
}

func TestResetAllDrainsTheLRUIndex(t *testing.T) {
	tbl := New()
	now := time.Now()

	id1, _, err := tbl.AllocateSend(10, now)
	require.NoError(t, err)

	tbl.ResetAll(now.Add(time.Second))

	// Every stream is now Reset, so AllocateSend must open a brand new
	// one rather than finding a stale LRU entry pointing at id1.
	id2, _, err := tbl.AllocateSend(10, now.Add(2*time.Second))
	require.NoError(t, err)
	assert.NotEqual(t, id1, id2)
}

func TestAllocateSendSkipsStreamsClosedByFin(t *testing.T) {
	tbl := New()
	now := time.Now()

	id1, _, err := tbl.AllocateSend(10, now)
	require.NoError(t, err)

	require.NoError(t, tbl.OnReceived(id1, 0, 1, true, now.Add(time.Second)))
	s, _ := tbl.Get(id1)
	require.Equal(t, Closed, s.State)

	// id1 left the LRU index when the peer's FIN closed it; the next
	// allocation must open a new stream instead of reusing a Closed one.
	id2, _, err := tbl.AllocateSend(10, now.Add(2*time.Second))
	require.NoError(t, err)
	assert.NotEqual(t, id1, id2)
}
