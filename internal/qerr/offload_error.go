package qerr

import "fmt"

// OffloadErrorKind enumerates the Offload Dispatcher's failure modes from
// spec.md §4.6 and §7.
type OffloadErrorKind uint8

const (
	Timeout OffloadErrorKind = iota
	TransportFault
	AuthFailed
	Malformed
)

func (k OffloadErrorKind) String() string {
	switch k {
	case Timeout:
		return "Timeout"
	case TransportFault:
		return "TransportFault"
	case AuthFailed:
		return "AuthFailed"
	case Malformed:
		return "Malformed"
	default:
		return fmt.Sprintf("OffloadErrorKind(%d)", uint8(k))
	}
}

// OffloadError is returned by the Offload Dispatcher. Seal/Open faults
// (AuthFailed, Timeout, TransportFault on a crypto op) make the Connection
// Engine repeat the same dispatcher call once, which is not forced onto the
// software path; other faults drop the affected packet.
type OffloadError struct {
	Kind   OffloadErrorKind
	Detail string
}

func (e *OffloadError) Error() string {
	if e.Detail == "" {
		return e.Kind.String()
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Detail)
}

// NewOffloadError builds an OffloadError of the given kind.
func NewOffloadError(kind OffloadErrorKind, detail string) *OffloadError {
	return &OffloadError{Kind: kind, Detail: detail}
}
