package keys

import (
	"encoding/binary"

	"github.com/edonshumolli/satellite-quic-proxy/internal/protocol"
)

// Nonce XORs pn into the low 8 bytes of iv, per RFC 9001 §5.3, matching
// the makeNonce helper in quic-go's crypto/aes_gcm_aead.go. The result is
// the 96-bit nonce spec.md §4.6's Seal/Open take directly.
func Nonce(iv [12]byte, pn protocol.PacketNumber) []byte {
	n := make([]byte, 12)
	copy(n, iv[:])
	var pnBytes [8]byte
	binary.BigEndian.PutUint64(pnBytes[:], uint64(pn))
	for i := 0; i < 8; i++ {
		n[4+i] ^= pnBytes[i]
	}
	return n
}
