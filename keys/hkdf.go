// Package keys is the Key Provider: it derives per-direction AEAD keys for
// each encryption level from a connection ID (Initial) or an externally
// supplied secret (Handshake, Application), and accepts key advancement
// out of band through Provider.Advance, a direct method call. Grounded on quic-go's
// internal/handshake/initial_aead.go and crypto/key_derivation.go, with
// qtls's HkdfExpandLabel (an unexported dependency this proxy doesn't carry)
// replaced by a direct golang.org/x/crypto/hkdf expansion.
package keys

import (
	"crypto/sha256"

	"golang.org/x/crypto/hkdf"
)

// quicV1InitialSalt is the fixed salt RFC 9001 §5.2 specifies for deriving
// Initial secrets, carried over unchanged from quic-go's
// internal/handshake/initial_aead.go.
var quicV1InitialSalt = []byte{
	0x7f, 0xbc, 0xdb, 0x0e, 0x7c, 0x66, 0xbb, 0xe9, 0x19, 0x3a, 0x96, 0xcd,
	0x21, 0x51, 0x9e, 0xbd, 0x7a, 0x02, 0x64, 0x4a,
}

const secretLen = sha256.Size

// hkdfExtract runs HKDF-Extract(salt, ikm) -> pseudorandom key.
func hkdfExtract(salt, ikm []byte) []byte {
	return hkdf.Extract(sha256.New, ikm, salt)
}

// hkdfExpandLabel expands secret into n bytes of output keyed by label,
// mirroring the shape of TLS 1.3's HKDF-Expand-Label (RFC 8446 §7.1)
// without its exact wire encoding: info is built as "quic " + label so the
// derived material is distinct per label and per connection.
func hkdfExpandLabel(secret []byte, label string, n int) []byte {
	out := make([]byte, n)
	r := hkdf.Expand(sha256.New, secret, []byte("quic "+label))
	if _, err := r.Read(out); err != nil {
		panic("keys: hkdf expand: " + err.Error())
	}
	return out
}

// computeInitialSecrets derives the client and server Initial secrets from
// a connection ID, per RFC 9001 §5.2, grounded on computeSecrets in
// quic-go's internal/handshake/initial_aead.go.
func computeInitialSecrets(connID []byte) (clientSecret, serverSecret []byte) {
	initialSecret := hkdfExtract(quicV1InitialSalt, connID)
	clientSecret = hkdfExpandLabel(initialSecret, "client in", secretLen)
	serverSecret = hkdfExpandLabel(initialSecret, "server in", secretLen)
	return
}

// directionKeys holds the AEAD key and IV derived for one direction at one
// encryption level. Header protection keys are not derived: this proxy
// never encrypts packet numbers (an explicit non-goal), so there is
// nothing for a header-protection key to protect.
type directionKeys struct {
	key [16]byte
	iv  [12]byte
}

func deriveDirectionKeys(secret []byte) directionKeys {
	var d directionKeys
	copy(d.key[:], hkdfExpandLabel(secret, "quic key", 16))
	copy(d.iv[:], hkdfExpandLabel(secret, "quic iv", 12))
	return d
}
