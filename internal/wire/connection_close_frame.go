package wire

import (
	"encoding/binary"

	"github.com/edonshumolli/satellite-quic-proxy/internal/qerr"
)

// ConnectionCloseFrame is the supplement SPEC_FULL.md §6 adds so
// Connection.Close has a real wire effect: a connection-level error code
// plus a short reason phrase, grounded on quic-go's connection_close_frame.go
// but restricted to this proxy's single varint width.
type ConnectionCloseFrame struct {
	ErrorCode    qerr.ErrorCode
	ReasonPhrase string
}

func (ConnectionCloseFrame) FrameType() FrameType { return ConnectionCloseFrameType }
func (f *ConnectionCloseFrame) Length() int        { return 1 + 4 + 1 + len(f.ReasonPhrase) }

func parseConnectionCloseFrame(data []byte) (*ConnectionCloseFrame, int, error) {
	if len(data) < 4 {
		return nil, 0, qerr.NewParseError(qerr.InvalidFrameType, "truncated CONNECTION_CLOSE code")
	}
	code := binary.BigEndian.Uint32(data[0:4])
	pos := 4
	if len(data) < pos+1 {
		return nil, 0, qerr.NewParseError(qerr.InvalidFrameType, "truncated CONNECTION_CLOSE reason length")
	}
	length, rest, err := readRestrictedVarint(data[pos:])
	if err != nil {
		return nil, 0, qerr.NewParseError(qerr.Unsupported, err.Error())
	}
	pos = len(data) - len(rest)
	if len(data) < pos+int(length) {
		return nil, 0, qerr.NewParseError(qerr.InvalidFrameType, "truncated CONNECTION_CLOSE reason")
	}
	return &ConnectionCloseFrame{
		ErrorCode:    qerr.ErrorCode(code),
		ReasonPhrase: string(data[pos : pos+int(length)]),
	}, pos + int(length), nil
}

func (f *ConnectionCloseFrame) serialize() ([]byte, error) {
	b := make([]byte, 0, f.Length())
	b = append(b, byte(ConnectionCloseFrameType))
	var cb [4]byte
	binary.BigEndian.PutUint32(cb[:], uint32(f.ErrorCode))
	b = append(b, cb[:]...)
	var err error
	b, err = writeRestrictedVarint(b, uint8(len(f.ReasonPhrase)))
	if err != nil {
		return nil, err
	}
	b = append(b, []byte(f.ReasonPhrase)...)
	return b, nil
}
