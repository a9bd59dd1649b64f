package keys

import (
	"github.com/edonshumolli/satellite-quic-proxy/internal/protocol"
	"github.com/edonshumolli/satellite-quic-proxy/internal/qerr"
)

// levelKeys bundles the two directions of raw key material for one
// encryption level. The Provider hands out key+IV bytes rather than
// constructed AEAD objects: spec.md §4.6 defines Seal/Open as dispatcher
// operations taking (aead_key, nonce, aad, plaintext) directly, so the
// actual cipher construction belongs to the Offload Dispatcher, not here
// (SPEC_FULL.md §5).
type levelKeys struct {
	send directionKeys
	recv directionKeys
}

// Provider holds the derived keys for one connection across all three
// encryption levels. Initial keys are always derivable from the connection
// ID alone and are installed at construction; Handshake and Application
// keys arrive later via Advance, out of band, once the offloaded
// handshake module on the far side of the link has produced the next
// secret. A connection with no keys yet installed at the level a packet
// needs returns qerr.ErrKeyUnavailable so the caller can queue the packet
// and retry after the next Advance (spec.md §4.4, §7).
type Provider struct {
	perspective protocol.Perspective
	levels      [3]*levelKeys // indexed by protocol.EncryptionLevel
}

// NewProvider derives and installs Initial keys from destConnID, the
// connection ID the Initial packet's Destination Connection ID field
// carries, per RFC 9001 §5.2. Handshake and Application levels start
// uninstalled.
func NewProvider(destConnID []byte, pers protocol.Perspective) (*Provider, error) {
	p := &Provider{perspective: pers}
	p.installInitial(destConnID)
	return p, nil
}

func (p *Provider) installInitial(destConnID []byte) {
	clientSecret, serverSecret := computeInitialSecrets(destConnID)
	mySecret, otherSecret := clientSecret, serverSecret
	if p.perspective == protocol.PerspectiveServer {
		mySecret, otherSecret = serverSecret, clientSecret
	}
	p.install(protocol.EncryptionInitial, mySecret, otherSecret)
}

// install derives and stores send/recv key material for level from raw
// secrets in each direction.
func (p *Provider) install(level protocol.EncryptionLevel, mySecret, otherSecret []byte) {
	p.levels[level] = &levelKeys{
		send: deriveDirectionKeys(mySecret),
		recv: deriveDirectionKeys(otherSecret),
	}
}

// Advance installs keys for level derived from a secret obtained out of
// band (e.g. forwarded by the handshake offload described in spec.md
// §4.6). The caller supplies the secret for each direction directly,
// since by Handshake/Application level there is no longer a single shared
// connection ID to re-derive both sides from.
func (p *Provider) Advance(level protocol.EncryptionLevel, mySecret, otherSecret []byte) error {
	p.install(level, mySecret, otherSecret)
	return nil
}

// SendKeyIV returns the (key, IV) pair to use when sealing outbound
// packets at level, or qerr.ErrKeyUnavailable if level has not been
// installed yet.
func (p *Provider) SendKeyIV(level protocol.EncryptionLevel) (key [16]byte, iv [12]byte, err error) {
	lk := p.levels[level]
	if lk == nil {
		return key, iv, qerr.ErrKeyUnavailable
	}
	return lk.send.key, lk.send.iv, nil
}

// RecvKeyIV returns the (key, IV) pair to use when opening inbound
// packets at level, or qerr.ErrKeyUnavailable if level has not been
// installed yet.
func (p *Provider) RecvKeyIV(level protocol.EncryptionLevel) (key [16]byte, iv [12]byte, err error) {
	lk := p.levels[level]
	if lk == nil {
		return key, iv, qerr.ErrKeyUnavailable
	}
	return lk.recv.key, lk.recv.iv, nil
}

// Installed reports whether level's keys have been installed.
func (p *Provider) Installed(level protocol.EncryptionLevel) bool {
	return p.levels[level] != nil
}
