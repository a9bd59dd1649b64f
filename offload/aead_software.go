package offload

import (
	"crypto/aes"
	"crypto/cipher"
)

// sealSoftware and openSoftware are the software fallback for the
// dispatcher's Seal/Open operations: AES-128-GCM via stdlib crypto/aes and
// crypto/cipher, grounded on quic-go's legacy crypto/aes_gcm_aead.go. No
// third-party AEAD package is used here (see DESIGN.md): the standard
// library's GCM implementation is constant-time and audited, and QUIC v1
// mandates exactly this cipher suite for the traffic this proxy handles.
func sealSoftware(key, nonce, aad, plaintext []byte) ([]byte, error) {
	aead, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	return aead.Seal(nil, nonce, plaintext, aad), nil
}

func openSoftware(key, nonce, aad, ciphertext []byte) ([]byte, error) {
	aead, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	return aead.Open(nil, nonce, ciphertext, aad)
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}
