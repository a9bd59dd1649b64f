package wire

import (
	"testing"

	"github.com/edonshumolli/satellite-quic-proxy/internal/protocol"
	"github.com/edonshumolli/satellite-quic-proxy/internal/qerr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLongHeaderInitialRoundTrips(t *testing.T) {
	dcid := protocol.ConnectionID([]byte{1, 2, 3, 4})
	scid := protocol.ConnectionID([]byte{5, 6, 7, 8})
	token := []byte("tok")

	b, err := SerializeLongHeader(protocol.PacketTypeInitial, dcid, scid, token, 20, 42)
	require.NoError(t, err)

	h, err := ParseHeader(b, protocol.DefaultShortHeaderDCIDLen)
	require.NoError(t, err)
	assert.True(t, h.IsLongHeader)
	assert.Equal(t, protocol.PacketTypeInitial, h.Type)
	assert.Equal(t, protocol.Version1, h.Version)
	assert.True(t, dcid.Equal(h.DestConnectionID))
	assert.True(t, scid.Equal(h.SrcConnectionID))
	assert.Equal(t, token, h.Token)
	assert.EqualValues(t, 42, h.PacketNumber)
	assert.Equal(t, len(b), h.ParsedLen)
}

func TestLongHeaderHandshakeRoundTripsWithoutToken(t *testing.T) {
	dcid := protocol.ConnectionID([]byte{9, 9})
	scid := protocol.ConnectionID([]byte{8, 8})

	b, err := SerializeLongHeader(protocol.PacketTypeHandshake, dcid, scid, nil, 5, 7)
	require.NoError(t, err)

	h, err := ParseHeader(b, protocol.DefaultShortHeaderDCIDLen)
	require.NoError(t, err)
	assert.Equal(t, protocol.PacketTypeHandshake, h.Type)
	assert.Empty(t, h.Token)
	assert.EqualValues(t, 7, h.PacketNumber)
}

func TestShortHeaderRoundTrips(t *testing.T) {
	dcid := protocol.ConnectionID([]byte{1, 1, 1, 1, 1, 1, 1, 1})

	b := SerializeShortHeader(dcid, 300)

	h, err := ParseHeader(b, len(dcid))
	require.NoError(t, err)
	assert.False(t, h.IsLongHeader)
	assert.Equal(t, protocol.PacketType1RTT, h.Type)
	assert.True(t, dcid.Equal(h.DestConnectionID))
	assert.EqualValues(t, 300, h.PacketNumber)
}

func TestParseHeaderRejectsUnsupportedVersion(t *testing.T) {
	dcid := protocol.ConnectionID([]byte{1})
	scid := protocol.ConnectionID([]byte{2})
	b, err := SerializeLongHeader(protocol.PacketTypeInitial, dcid, scid, nil, 0, 1)
	require.NoError(t, err)
	b[1] = 0xff // corrupt the version field

	_, err = ParseHeader(b, protocol.DefaultShortHeaderDCIDLen)
	require.Error(t, err)
	var pe *qerr.ParseError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, qerr.InvalidVersion, pe.Kind)
}

func TestParseHeaderRejectsTruncatedDatagram(t *testing.T) {
	_, err := ParseHeader([]byte{0xc0, 0x00, 0x00}, protocol.DefaultShortHeaderDCIDLen)
	require.Error(t, err)
	var pe *qerr.ParseError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, qerr.InvalidPacketSize, pe.Kind)
}

func TestParseHeaderRejectsReservedBitsInShortHeader(t *testing.T) {
	dcid := protocol.ConnectionID([]byte{1, 2, 3, 4, 5, 6, 7, 8})
	b := SerializeShortHeader(dcid, 1)
	b[0] |= 0x01 // set a reserved bit

	_, err := ParseHeader(b, len(dcid))
	require.Error(t, err)
	var pe *qerr.ParseError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, qerr.InvalidPacketType, pe.Kind)
}

func TestPacketNumberEncodingWidthGrowsWithValue(t *testing.T) {
	dcid := protocol.ConnectionID([]byte{1})

	small := SerializeShortHeader(dcid, 5)
	large := SerializeShortHeader(dcid, 1<<20)
	assert.Less(t, len(small), len(large), "a larger packet number must take a wider truncated encoding")

	h, err := ParseHeader(large, len(dcid))
	require.NoError(t, err)
	assert.EqualValues(t, 1<<20, h.PacketNumber)
}
