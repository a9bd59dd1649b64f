package wire

import (
	"encoding/binary"

	"github.com/edonshumolli/satellite-quic-proxy/internal/protocol"
	"github.com/edonshumolli/satellite-quic-proxy/internal/qerr"
)

// ResetStreamFrame is RESET_STREAM from spec.md §3: stream ID, application
// error code, and the final size the sender commits to for that stream.
type ResetStreamFrame struct {
	StreamID  protocol.StreamID
	ErrorCode uint32
	FinalSize uint32
}

func (ResetStreamFrame) FrameType() FrameType { return ResetStreamFrameType }
func (ResetStreamFrame) Length() int          { return 1 + 4 + 4 + 4 }

func parseResetStreamFrame(data []byte) (*ResetStreamFrame, int, error) {
	if len(data) < 12 {
		return nil, 0, qerr.NewParseError(qerr.InvalidFrameType, "truncated RESET_STREAM")
	}
	return &ResetStreamFrame{
		StreamID:  protocol.StreamID(binary.LittleEndian.Uint32(data[0:4])),
		ErrorCode: binary.BigEndian.Uint32(data[4:8]),
		FinalSize: binary.BigEndian.Uint32(data[8:12]),
	}, 12, nil
}

func (f *ResetStreamFrame) serialize() []byte {
	b := make([]byte, 0, f.Length())
	b = append(b, byte(ResetStreamFrameType))
	var idb, ecb, fsb [4]byte
	binary.LittleEndian.PutUint32(idb[:], uint32(f.StreamID))
	binary.BigEndian.PutUint32(ecb[:], f.ErrorCode)
	binary.BigEndian.PutUint32(fsb[:], f.FinalSize)
	b = append(b, idb[:]...)
	b = append(b, ecb[:]...)
	b = append(b, fsb[:]...)
	return b
}
