package qerr

import "fmt"

// StreamErrorKind enumerates the stream-table failures from spec.md §4.2
// and §7.
type StreamErrorKind uint8

const (
	ProtocolViolation StreamErrorKind = iota
	CapacityExceeded
)

func (k StreamErrorKind) String() string {
	switch k {
	case ProtocolViolation:
		return "ProtocolViolation"
	case CapacityExceeded:
		return "CapacityExceeded"
	default:
		return fmt.Sprintf("StreamErrorKind(%d)", uint8(k))
	}
}

// StreamError is returned by the stream table. ProtocolViolation means the
// offending STREAM frame is dropped but the connection survives.
// CapacityExceeded means the table is full and was left unmodified; the
// Connection Engine drops the frame and counts it as InvalidFrameType, and
// sends no RESET_STREAM in reply.
type StreamError struct {
	Kind   StreamErrorKind
	Detail string
}

func (e *StreamError) Error() string {
	if e.Detail == "" {
		return e.Kind.String()
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Detail)
}

// NewStreamError builds a StreamError of the given kind.
func NewStreamError(kind StreamErrorKind, detail string) *StreamError {
	return &StreamError{Kind: kind, Detail: detail}
}
