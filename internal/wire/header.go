// Package wire translates between byte buffers and typed header/frame
// records (spec.md §4.1, the Wire Codec, C1). It is pure and stateless: no
// I/O, no allocation beyond the result, grounded on quic-go's
// internal/wire package but restricted to the long/short header forms and
// frame set spec.md §6 describes.
package wire

import (
	"encoding/binary"

	"github.com/edonshumolli/satellite-quic-proxy/internal/protocol"
	"github.com/edonshumolli/satellite-quic-proxy/internal/qerr"
)

// Header is the version-independent record produced by ParseHeader. Long
// and short header packets both populate it; IsLongHeader distinguishes
// them and callers should ignore fields that don't apply to the other
// form (SrcConnectionID and Token are long-header-only).
type Header struct {
	IsLongHeader bool
	Type         protocol.PacketType

	Version          protocol.Version
	DestConnectionID protocol.ConnectionID
	SrcConnectionID  protocol.ConnectionID

	Token []byte

	// Length is the informational header length field from spec.md §6: a
	// restricted single-byte varint covering the packet number and frame
	// payload, excluding any trailing PADDING. Because this proxy assumes
	// one packet per datagram, Length is not used to locate packet
	// boundaries; frames are parsed to the end of the datagram and
	// PADDING bytes are simply skipped.
	Length uint8

	PacketNumberLen int
	PacketNumber    protocol.PacketNumber

	// ParsedLen is how many bytes ParseHeader consumed; the frame payload
	// begins at this offset.
	ParsedLen int
}

// ParseHeader parses a long or short QUIC header from the front of data.
// shortHeaderDCIDLen is the DCID length to assume for short headers, which
// carry no explicit length field (spec.md §4.1); pass
// protocol.DefaultShortHeaderDCIDLen when the connection's DCID length is
// not yet known.
func ParseHeader(data []byte, shortHeaderDCIDLen int) (*Header, error) {
	if len(data) < 1 {
		return nil, qerr.NewParseError(qerr.InvalidPacketSize, "empty datagram")
	}
	first := data[0]
	if first&0x80 != 0 {
		return parseLongHeader(data)
	}
	return parseShortHeader(data, first, shortHeaderDCIDLen)
}

func parseLongHeader(data []byte) (*Header, error) {
	first := data[0]
	typeBits := (first >> 4) & 0x3
	pnLen := int(first&0x3) + 1

	var typ protocol.PacketType
	switch typeBits {
	case 0:
		typ = protocol.PacketTypeInitial
	case 1:
		typ = protocol.PacketType0RTT
	case 2:
		typ = protocol.PacketTypeHandshake
	case 3:
		typ = protocol.PacketTypeRetry
	}

	pos := 1
	if len(data) < pos+4 {
		return nil, qerr.NewParseError(qerr.InvalidPacketSize, "truncated version field")
	}
	version := protocol.Version(binary.BigEndian.Uint32(data[pos : pos+4]))
	pos += 4
	if version != protocol.Version1 {
		return nil, qerr.NewParseError(qerr.InvalidVersion, "")
	}

	if len(data) < pos+1 {
		return nil, qerr.NewParseError(qerr.InvalidPacketSize, "truncated DCID length")
	}
	dcidLen := int(data[pos])
	pos++
	if dcidLen > protocol.MaxCIDLen {
		return nil, qerr.NewParseError(qerr.InvalidCidLength, "")
	}
	if len(data) < pos+dcidLen {
		return nil, qerr.NewParseError(qerr.InvalidPacketSize, "truncated DCID")
	}
	dcid := protocol.ConnectionID(data[pos : pos+dcidLen])
	pos += dcidLen

	if len(data) < pos+1 {
		return nil, qerr.NewParseError(qerr.InvalidPacketSize, "truncated SCID length")
	}
	scidLen := int(data[pos])
	pos++
	if scidLen > protocol.MaxCIDLen {
		return nil, qerr.NewParseError(qerr.InvalidCidLength, "")
	}
	if len(data) < pos+scidLen {
		return nil, qerr.NewParseError(qerr.InvalidPacketSize, "truncated SCID")
	}
	scid := protocol.ConnectionID(data[pos : pos+scidLen])
	pos += scidLen

	h := &Header{
		IsLongHeader:     true,
		Type:             typ,
		Version:          version,
		DestConnectionID: dcid,
		SrcConnectionID:  scid,
		PacketNumberLen:  pnLen,
	}

	if typ == protocol.PacketTypeInitial {
		if len(data) < pos+1 {
			return nil, qerr.NewParseError(qerr.InvalidToken, "missing token length")
		}
		tokenLen, rest, err := readRestrictedVarint(data[pos:])
		if err != nil {
			return nil, qerr.NewParseError(qerr.InvalidToken, err.Error())
		}
		pos = len(data) - len(rest)
		if len(data) < pos+int(tokenLen) {
			return nil, qerr.NewParseError(qerr.InvalidToken, "truncated token")
		}
		h.Token = data[pos : pos+int(tokenLen)]
		pos += int(tokenLen)
	}

	if typ != protocol.PacketTypeRetry {
		if len(data) < pos+1 {
			return nil, qerr.NewParseError(qerr.InvalidPacketSize, "truncated length field")
		}
		length, rest, err := readRestrictedVarint(data[pos:])
		if err != nil {
			return nil, qerr.NewParseError(qerr.Unsupported, err.Error())
		}
		h.Length = length
		pos = len(data) - len(rest)

		if len(data) < pos+pnLen {
			return nil, qerr.NewParseError(qerr.InvalidPacketNumberLen, "")
		}
		h.PacketNumber = readTruncatedPacketNumber(data[pos:pos+pnLen], pnLen)
		pos += pnLen
	}

	h.ParsedLen = pos
	return h, nil
}

func parseShortHeader(data []byte, first byte, dcidLen int) (*Header, error) {
	// Reserved bits (4-0) must be zero; this also covers the spin bit some
	// implementations place here, which this proxy ignores entirely.
	if first&0x1f != 0 {
		return nil, qerr.NewParseError(qerr.InvalidPacketType, "reserved bits set in short header")
	}
	pnLen := int((first>>5)&0x3) + 1

	pos := 1
	if len(data) < pos+dcidLen {
		return nil, qerr.NewParseError(qerr.InvalidPacketSize, "truncated DCID")
	}
	dcid := protocol.ConnectionID(data[pos : pos+dcidLen])
	pos += dcidLen

	if len(data) < pos+pnLen {
		return nil, qerr.NewParseError(qerr.InvalidPacketNumberLen, "")
	}
	pn := readTruncatedPacketNumber(data[pos:pos+pnLen], pnLen)
	pos += pnLen

	return &Header{
		IsLongHeader:     false,
		Type:             protocol.PacketType1RTT,
		DestConnectionID: dcid,
		PacketNumberLen:  pnLen,
		PacketNumber:     pn,
		ParsedLen:        pos,
	}, nil
}

func readTruncatedPacketNumber(b []byte, n int) protocol.PacketNumber {
	var v uint64
	for i := 0; i < n; i++ {
		v = v<<8 | uint64(b[i])
	}
	return protocol.PacketNumber(v)
}

// packetNumberLen returns the minimal number of bytes (1-4) needed to carry
// pn on the wire. Connections in this proxy are short-lived enough relative
// to int64 packet-number space that this minimal-width encoding never needs
// the full RFC 9000 truncation-relative-to-largest-acked algorithm; see
// DESIGN.md.
func packetNumberLen(pn protocol.PacketNumber) int {
	switch {
	case pn < 1<<8:
		return 1
	case pn < 1<<16:
		return 2
	case pn < 1<<24:
		return 3
	default:
		return 4
	}
}

func writeTruncatedPacketNumber(b []byte, pn protocol.PacketNumber, n int) []byte {
	v := uint64(pn)
	start := len(b)
	b = append(b, make([]byte, n)...)
	for i := n - 1; i >= 0; i-- {
		b[start+i] = byte(v)
		v >>= 8
	}
	return b
}

// SerializeLongHeader writes a long header for typ, with the given DCID,
// SCID, token (Initial only), and frame-payload length (excluding
// padding). pn is the full packet number to truncate onto the wire.
func SerializeLongHeader(typ protocol.PacketType, dcid, scid protocol.ConnectionID, token []byte, framePayloadLen int, pn protocol.PacketNumber) ([]byte, error) {
	pnLen := packetNumberLen(pn)
	var typeBits byte
	switch typ {
	case protocol.PacketTypeInitial:
		typeBits = 0
	case protocol.PacketType0RTT:
		typeBits = 1
	case protocol.PacketTypeHandshake:
		typeBits = 2
	case protocol.PacketTypeRetry:
		typeBits = 3
	}
	first := byte(0xc0) | (typeBits << 4) | byte(pnLen-1)

	b := make([]byte, 0, 32)
	b = append(b, first)
	var vb [4]byte
	binary.BigEndian.PutUint32(vb[:], uint32(protocol.Version1))
	b = append(b, vb[:]...)
	b = append(b, byte(dcid.Len()))
	b = append(b, dcid.Bytes()...)
	b = append(b, byte(scid.Len()))
	b = append(b, scid.Bytes()...)

	if typ == protocol.PacketTypeInitial {
		var err error
		b, err = writeRestrictedVarint(b, uint8(len(token)))
		if err != nil {
			return nil, err
		}
		b = append(b, token...)
	}

	if typ != protocol.PacketTypeRetry {
		length := pnLen + framePayloadLen
		if length > protocol.MaxVarintValue {
			// The header length field cannot represent this; it stays
			// informational only (see Header.Length doc comment), so we
			// clamp rather than fail serialization.
			length = protocol.MaxVarintValue
		}
		var err error
		b, err = writeRestrictedVarint(b, uint8(length))
		if err != nil {
			return nil, err
		}
		b = writeTruncatedPacketNumber(b, pn, pnLen)
	}
	return b, nil
}

// SerializeShortHeader writes a short header with the given DCID and packet
// number.
func SerializeShortHeader(dcid protocol.ConnectionID, pn protocol.PacketNumber) []byte {
	pnLen := packetNumberLen(pn)
	first := byte(pnLen-1) << 5
	b := make([]byte, 0, 1+dcid.Len()+pnLen)
	b = append(b, first)
	b = append(b, dcid.Bytes()...)
	b = writeTruncatedPacketNumber(b, pn, pnLen)
	return b
}

// SerializeHeader writes h back onto the wire. framePayloadLen is the size
// of the frames that will follow the header (used only by long headers'
// informational Length field); it is ignored for short headers.
func SerializeHeader(h *Header, framePayloadLen int) ([]byte, error) {
	if h.IsLongHeader {
		return SerializeLongHeader(h.Type, h.DestConnectionID, h.SrcConnectionID, h.Token, framePayloadLen, h.PacketNumber)
	}
	return SerializeShortHeader(h.DestConnectionID, h.PacketNumber), nil
}
