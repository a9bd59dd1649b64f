package wire

import (
	"testing"

	"github.com/edonshumolli/satellite-quic-proxy/internal/protocol"
	"github.com/edonshumolli/satellite-quic-proxy/internal/qerr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func serializeOne(t *testing.T, f Frame) []byte {
	b, err := SerializeFrame(f)
	require.NoError(t, err)
	return b
}

func parseOne(t *testing.T, b []byte) Frame {
	frames, err := ParseFrames(b)
	require.NoError(t, err)
	require.Len(t, frames, 1)
	return frames[0]
}

func TestPaddingPingHandshakeDoneRoundTrip(t *testing.T) {
	for _, f := range []Frame{PaddingFrame{}, PingFrame{}, HandshakeDoneFrame{}} {
		got := parseOne(t, serializeOne(t, f))
		assert.Equal(t, f.FrameType(), got.FrameType())
	}
}

func TestStreamFrameRoundTripsAllFieldCombinations(t *testing.T) {
	cases := []*StreamFrame{
		{StreamID: 4, HasOffset: false, HasLength: false, Fin: false, Data: []byte("hello")},
		{StreamID: 4, Offset: 10, HasOffset: true, HasLength: true, Fin: true, Data: []byte("world")},
		{StreamID: 8, HasOffset: true, HasLength: true, Fin: false, Data: nil},
	}
	for _, want := range cases {
		got := parseOne(t, serializeOne(t, want)).(*StreamFrame)
		assert.Equal(t, want.StreamID, got.StreamID)
		assert.Equal(t, want.Fin, got.Fin)
		if want.HasOffset {
			assert.Equal(t, want.Offset, got.Offset)
		}
		assert.Equal(t, want.Data, got.Data)
	}
}

func TestStreamFrameRejectsDataLongerThanTheRestrictedVarint(t *testing.T) {
	f := &StreamFrame{StreamID: 4, HasLength: true, Data: make([]byte, protocol.MaxVarintValue+1)}
	_, err := SerializeFrame(f)
	require.Error(t, err)
}

func TestAckFrameRoundTripsWithAdditionalRangesAndECN(t *testing.T) {
	want := &AckFrame{
		LargestAcked:     100,
		Delay:            3,
		FirstRange:       5,
		AdditionalRanges: []AckRange{{Gap: 1, Length: 2}, {Gap: 0, Length: 1}},
		ECNCounts:        &ECNCounts{ECT0: 1, ECT1: 2, CE: 3},
	}
	got := parseOne(t, serializeOne(t, want)).(*AckFrame)
	assert.Equal(t, want.LargestAcked, got.LargestAcked)
	assert.Equal(t, want.Delay, got.Delay)
	assert.Equal(t, want.FirstRange, got.FirstRange)
	assert.Equal(t, want.AdditionalRanges, got.AdditionalRanges)
	require.NotNil(t, got.ECNCounts)
	assert.Equal(t, *want.ECNCounts, *got.ECNCounts)
	assert.Equal(t, AckECNFrameType, got.FrameType())
}

func TestAckFrameWithoutECNParsesAsPlainAck(t *testing.T) {
	want := &AckFrame{LargestAcked: 1, FirstRange: 1}
	got := parseOne(t, serializeOne(t, want)).(*AckFrame)
	assert.Nil(t, got.ECNCounts)
	assert.Equal(t, AckFrameType, got.FrameType())
}

func TestResetStreamFrameRoundTrips(t *testing.T) {
	want := &ResetStreamFrame{StreamID: 12, ErrorCode: 7, FinalSize: 99}
	got := parseOne(t, serializeOne(t, want)).(*ResetStreamFrame)
	assert.Equal(t, *want, *got)
}

func TestCryptoFrameRoundTrips(t *testing.T) {
	want := &CryptoFrame{Offset: 16, Data: []byte("clienthello")}
	got := parseOne(t, serializeOne(t, want)).(*CryptoFrame)
	assert.Equal(t, want.Offset, got.Offset)
	assert.Equal(t, want.Data, got.Data)
}

func TestConnectionCloseFrameRoundTrips(t *testing.T) {
	want := &ConnectionCloseFrame{ErrorCode: qerr.PeerGoingAway, ReasonPhrase: "bye"}
	got := parseOne(t, serializeOne(t, want)).(*ConnectionCloseFrame)
	assert.Equal(t, want.ErrorCode, got.ErrorCode)
	assert.Equal(t, want.ReasonPhrase, got.ReasonPhrase)
}

func TestParseFramesStopsAtUnrecognizedTypeButKeepsPriorFrames(t *testing.T) {
	payload := append(serializeOne(t, PingFrame{}), 0x05) // 0x05 is not a recognized type

	frames, err := ParseFrames(payload)
	require.Error(t, err)
	var pe *qerr.ParseError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, qerr.InvalidFrameType, pe.Kind)
	require.Len(t, frames, 1, "frames parsed before the error must still be returned")
	assert.Equal(t, PingFrameType, frames[0].FrameType())
}

func TestParseFramesHandlesMultipleFramesInOnePayload(t *testing.T) {
	payload := append(serializeOne(t, PaddingFrame{}), serializeOne(t, PingFrame{})...)
	payload = append(payload, serializeOne(t, &ResetStreamFrame{StreamID: 4, ErrorCode: 1, FinalSize: 2})...)

	frames, err := ParseFrames(payload)
	require.NoError(t, err)
	require.Len(t, frames, 3)
	assert.Equal(t, PaddingFrameType, frames[0].FrameType())
	assert.Equal(t, PingFrameType, frames[1].FrameType())
	assert.Equal(t, ResetStreamFrameType, frames[2].FrameType())
}
