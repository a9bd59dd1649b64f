// Package qerr holds the typed error taxonomy this proxy's components
// return: every error kind named in spec.md §7 is a distinct Go type here,
// carried on the return value rather than logged-and-swallowed, mirroring
// quic-go's qerr.QuicError.
package qerr

import "fmt"

// ErrorCode identifies a connection-level error, sent on the wire in a
// CONNECTION_CLOSE frame.
type ErrorCode uint32

const (
	InternalError      ErrorCode = 1
	InvalidFrameData   ErrorCode = 4
	DecryptionFailure  ErrorCode = 12
	PeerGoingAway      ErrorCode = 16
	NetworkIdleTimeout ErrorCode = 25
	RetryExhaustedCode ErrorCode = 26
)

func (e ErrorCode) String() string {
	switch e {
	case InternalError:
		return "InternalError"
	case InvalidFrameData:
		return "InvalidFrameData"
	case DecryptionFailure:
		return "DecryptionFailure"
	case PeerGoingAway:
		return "PeerGoingAway"
	case NetworkIdleTimeout:
		return "NetworkIdleTimeout"
	case RetryExhaustedCode:
		return "RetryExhausted"
	default:
		return fmt.Sprintf("ErrorCode(%d)", uint32(e))
	}
}

func (e ErrorCode) Error() string {
	return e.String()
}

// QuicError pairs a connection-level ErrorCode with a human-readable reason,
// the payload of an outbound CONNECTION_CLOSE frame.
type QuicError struct {
	ErrorCode    ErrorCode
	ErrorMessage string
}

// Error creates a new QuicError.
func Error(errorCode ErrorCode, errorMessage string) *QuicError {
	return &QuicError{ErrorCode: errorCode, ErrorMessage: errorMessage}
}

func (e *QuicError) Error() string {
	return fmt.Sprintf("%s: %s", e.ErrorCode, e.ErrorMessage)
}
