package keys

import (
	"crypto/aes"
	"crypto/cipher"
	"testing"

	"github.com/edonshumolli/satellite-quic-proxy/internal/protocol"
	"github.com/edonshumolli/satellite-quic-proxy/internal/qerr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testSeal/testOpen exercise the key material a Provider hands out the same
// way the Offload Dispatcher does (offload/aead_software.go), without
// importing offload from keys — the two packages must stay independent per
// SPEC_FULL.md's ownership split between key derivation and AEAD execution.
func testSeal(t *testing.T, key [16]byte, iv [12]byte, pn protocol.PacketNumber, ad, plaintext []byte) []byte {
	block, err := aes.NewCipher(key[:])
	require.NoError(t, err)
	gcm, err := cipher.NewGCM(block)
	require.NoError(t, err)
	return gcm.Seal(nil, Nonce(iv, pn), plaintext, ad)
}

func testOpen(t *testing.T, key [16]byte, iv [12]byte, pn protocol.PacketNumber, ad, ciphertext []byte) ([]byte, error) {
	block, err := aes.NewCipher(key[:])
	require.NoError(t, err)
	gcm, err := cipher.NewGCM(block)
	require.NoError(t, err)
	return gcm.Open(nil, Nonce(iv, pn), ciphertext, ad)
}

func TestInitialKeysSealAndOpenRoundTrip(t *testing.T) {
	connID := []byte{0x12, 0x34, 0x56, 0x78, 0x90, 0xab, 0xcd, 0xef}

	client, err := NewProvider(connID, protocol.PerspectiveClient)
	require.NoError(t, err)
	server, err := NewProvider(connID, protocol.PerspectiveServer)
	require.NoError(t, err)

	clientKey, clientIV, err := client.SendKeyIV(protocol.EncryptionInitial)
	require.NoError(t, err)
	serverRecvKey, serverRecvIV, err := server.RecvKeyIV(protocol.EncryptionInitial)
	require.NoError(t, err)

	ad := []byte("header bytes")
	ciphertext := testSeal(t, clientKey, clientIV, 42, ad, []byte("foobar"))
	plaintext, err := testOpen(t, serverRecvKey, serverRecvIV, 42, ad, ciphertext)
	require.NoError(t, err)
	assert.Equal(t, []byte("foobar"), plaintext)

	serverKey, serverIV, err := server.SendKeyIV(protocol.EncryptionInitial)
	require.NoError(t, err)
	clientRecvKey, clientRecvIV, err := client.RecvKeyIV(protocol.EncryptionInitial)
	require.NoError(t, err)

	reply := testSeal(t, serverKey, serverIV, 99, []byte("daa"), []byte("raboof"))
	plaintext, err = testOpen(t, clientRecvKey, clientRecvIV, 99, []byte("daa"), reply)
	require.NoError(t, err)
	assert.Equal(t, []byte("raboof"), plaintext)
}

func TestInitialKeysMismatchedConnectionIDsFailToDecrypt(t *testing.T) {
	c1 := []byte{0, 0, 0, 0, 0, 0, 0, 1}
	c2 := []byte{0, 0, 0, 0, 0, 0, 0, 2}

	client, err := NewProvider(c1, protocol.PerspectiveClient)
	require.NoError(t, err)
	server, err := NewProvider(c2, protocol.PerspectiveServer)
	require.NoError(t, err)

	clientKey, clientIV, err := client.SendKeyIV(protocol.EncryptionInitial)
	require.NoError(t, err)
	serverRecvKey, serverRecvIV, err := server.RecvKeyIV(protocol.EncryptionInitial)
	require.NoError(t, err)

	ciphertext := testSeal(t, clientKey, clientIV, 42, []byte("aad"), []byte("foobar"))
	_, err = testOpen(t, serverRecvKey, serverRecvIV, 42, []byte("aad"), ciphertext)
	assert.Error(t, err)
}

func TestHandshakeKeysUnavailableUntilAdvanced(t *testing.T) {
	connID := []byte{1, 2, 3, 4, 5, 6, 7, 8}
	p, err := NewProvider(connID, protocol.PerspectiveServer)
	require.NoError(t, err)

	_, _, err = p.SendKeyIV(protocol.EncryptionHandshake)
	assert.ErrorIs(t, err, qerr.ErrKeyUnavailable)

	require.NoError(t, p.Advance(protocol.EncryptionHandshake, []byte("my-secret-32-bytes-padding-abcd1"), []byte("their-secret-32-bytes-padding-ab")))
	assert.True(t, p.Installed(protocol.EncryptionHandshake))

	_, _, err = p.SendKeyIV(protocol.EncryptionHandshake)
	assert.NoError(t, err)
}

func TestAdvanceAtApplicationLevelRoundTrips(t *testing.T) {
	connID := []byte{9, 9, 9, 9}
	client, err := NewProvider(connID, protocol.PerspectiveClient)
	require.NoError(t, err)
	server, err := NewProvider(connID, protocol.PerspectiveServer)
	require.NoError(t, err)

	clientAppSecret := []byte("0123456789abcdef0123456789abcdef")
	serverAppSecret := []byte("fedcba9876543210fedcba9876543210")

	require.NoError(t, client.Advance(protocol.Encryption1RTT, clientAppSecret, serverAppSecret))
	require.NoError(t, server.Advance(protocol.Encryption1RTT, serverAppSecret, clientAppSecret))

	clientKey, clientIV, err := client.SendKeyIV(protocol.Encryption1RTT)
	require.NoError(t, err)
	serverRecvKey, serverRecvIV, err := server.RecvKeyIV(protocol.Encryption1RTT)
	require.NoError(t, err)

	ciphertext := testSeal(t, clientKey, clientIV, 7, []byte("ad"), []byte("application data"))
	plaintext, err := testOpen(t, serverRecvKey, serverRecvIV, 7, []byte("ad"), ciphertext)
	require.NoError(t, err)
	assert.Equal(t, []byte("application data"), plaintext)
}
