package wire

import (
	"fmt"

	"github.com/edonshumolli/satellite-quic-proxy/internal/protocol"
)

// This proxy recognizes a restricted varint form documented in spec.md
// §4.1: single-byte integers (0-63) for token length, the header's length
// field, and STREAM/CRYPTO frame lengths; fixed 4-byte fields for the
// stream IDs (little-endian) and offsets (big-endian) carried in STREAM
// frames. It does not implement the
// full RFC 9000 variable-length integer encoding (flagged as an extension
// in spec.md's Open Questions).

// ErrVarintUnsupported is returned when an encoding this proxy does not
// implement is encountered; callers turn it into a qerr.ParseError with
// kind Unsupported.
var ErrVarintUnsupported = fmt.Errorf("wire: value exceeds the restricted single-byte varint range (0-%d)", protocol.MaxVarintValue)

// readRestrictedVarint reads the single-byte length form used for token
// length, header length, and frame lengths.
func readRestrictedVarint(b []byte) (uint8, []byte, error) {
	if len(b) < 1 {
		return 0, b, errShortBuffer
	}
	v := b[0]
	if v > protocol.MaxVarintValue {
		return 0, b, ErrVarintUnsupported
	}
	return v, b[1:], nil
}

func writeRestrictedVarint(b []byte, v uint8) ([]byte, error) {
	if v > protocol.MaxVarintValue {
		return b, ErrVarintUnsupported
	}
	return append(b, v), nil
}

var errShortBuffer = fmt.Errorf("wire: buffer too short")
