package qerr

import "errors"

// ErrDuplicateSend is returned by the packet tracker's RecordSent when the
// caller passes a packet number already in flight. Spec.md §7 treats this
// as a programmer error: a fatal assertion in debug builds, counted and
// ignored in release builds. This module always returns the error and lets
// the caller decide; nothing in it panics on the error or counts it (the
// connection engine's emitPacket returns it to its own caller).
var ErrDuplicateSend = errors.New("packet tracker: duplicate send of an in-flight packet number")

// ErrRetryExhausted names the condition of a tracked packet hitting
// protocol.MaxRetries without being ACKed. The connection engine does not
// return it: Tick puts the connection into its terminal lost state
// (reported by IsLost) and outstanding streams become Reset.
var ErrRetryExhausted = errors.New("connection: packet retransmitted past the retry cap, connection lost")

// ErrKeyUnavailable is returned when a send or receive path needs keys at
// an encryption level that has not yet been supplied by the key provider.
// The engine queues the outbound data and retries on the next key advance.
var ErrKeyUnavailable = errors.New("connection: keys not yet available at requested encryption level")
