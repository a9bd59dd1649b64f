package wire

import (
	"encoding/binary"

	"github.com/edonshumolli/satellite-quic-proxy/internal/qerr"
)

// CryptoFrame carries handshake bytes. The Connection Engine consumes it
// without protocol-level effect in this proxy (spec.md §4.4); full TLS 1.3
// handshake cryptography is out of scope.
type CryptoFrame struct {
	Offset uint32
	Data   []byte
}

func (CryptoFrame) FrameType() FrameType { return CryptoFrameType }
func (f *CryptoFrame) Length() int       { return 1 + 4 + 1 + len(f.Data) }

func parseCryptoFrame(data []byte) (*CryptoFrame, int, error) {
	if len(data) < 4 {
		return nil, 0, qerr.NewParseError(qerr.InvalidFrameType, "truncated CRYPTO offset")
	}
	offset := binary.BigEndian.Uint32(data[0:4])
	pos := 4
	if len(data) < pos+1 {
		return nil, 0, qerr.NewParseError(qerr.InvalidFrameType, "truncated CRYPTO length")
	}
	length, rest, err := readRestrictedVarint(data[pos:])
	if err != nil {
		return nil, 0, qerr.NewParseError(qerr.Unsupported, err.Error())
	}
	pos = len(data) - len(rest)
	if len(data) < pos+int(length) {
		return nil, 0, qerr.NewParseError(qerr.InvalidFrameType, "truncated CRYPTO data")
	}
	return &CryptoFrame{Offset: offset, Data: data[pos : pos+int(length)]}, pos + int(length), nil
}

func (f *CryptoFrame) serialize() ([]byte, error) {
	b := make([]byte, 0, f.Length())
	b = append(b, byte(CryptoFrameType))
	var ob [4]byte
	binary.BigEndian.PutUint32(ob[:], f.Offset)
	b = append(b, ob[:]...)
	var err error
	b, err = writeRestrictedVarint(b, uint8(len(f.Data)))
	if err != nil {
		return nil, err
	}
	b = append(b, f.Data...)
	return b, nil
}
