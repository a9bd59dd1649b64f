package qerr

import "fmt"

// ParseErrorKind enumerates the wire-codec validation failures from
// spec.md §4.1. A ParseError never tears down a connection: the offending
// datagram is dropped and the kind is counted (spec.md §7).
type ParseErrorKind uint8

const (
	InvalidPacketType ParseErrorKind = iota
	InvalidVersion
	InvalidCidLength
	InvalidPacketSize
	InvalidPacketNumberLen
	ConnectionIdMismatch
	InvalidToken
	InvalidFrameType
	Unsupported
)

func (k ParseErrorKind) String() string {
	switch k {
	case InvalidPacketType:
		return "InvalidPacketType"
	case InvalidVersion:
		return "InvalidVersion"
	case InvalidCidLength:
		return "InvalidCidLength"
	case InvalidPacketSize:
		return "InvalidPacketSize"
	case InvalidPacketNumberLen:
		return "InvalidPacketNumberLen"
	case ConnectionIdMismatch:
		return "ConnectionIdMismatch"
	case InvalidToken:
		return "InvalidToken"
	case InvalidFrameType:
		return "InvalidFrameType"
	case Unsupported:
		return "Unsupported"
	default:
		return fmt.Sprintf("ParseErrorKind(%d)", uint8(k))
	}
}

// ParseError is returned by internal/wire when a header or frame cannot be
// parsed. It carries no other state: callers key their error counters off
// Kind alone.
type ParseError struct {
	Kind ParseErrorKind
	// Detail is an optional human-readable elaboration, never part of
	// error-kind identity or counter keying.
	Detail string
}

func (e *ParseError) Error() string {
	if e.Detail == "" {
		return e.Kind.String()
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Detail)
}

// NewParseError builds a ParseError of the given kind.
func NewParseError(kind ParseErrorKind, detail string) *ParseError {
	return &ParseError{Kind: kind, Detail: detail}
}
