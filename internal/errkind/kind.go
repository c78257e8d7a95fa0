// SPDX-License-Identifier: GPL-3.0-or-later

// Package errkind implements the error taxonomy used throughout the relay:
// control-plane errors surface to the caller as numeric protocol codes and
// are logged at ERR level; data-plane errors are counted per-stream and
// logged at DEBUG, and never fail the stream.
package errkind

// Kind classifies an error into one of the taxonomy buckets from the
// error-handling design. It is not a replacement for Go's error values —
// wrap an error with [New] to attach a Kind without losing the original.
type Kind int

const (
	// Parse covers malformed requests, bad URL-encoding, bad option
	// syntax, bad address literals, invalid ptime.
	Parse Kind = iota
	// Resolve covers address resolution failure and missing local route.
	Resolve
	// Resource covers out of memory, listener allocation failure,
	// registry full.
	Resource
	// Policy covers notification-required-but-disabled, overload
	// protection, and slow-shutdown rejections.
	Policy
	// Protocol covers DTMF events out of range and RTP arriving from a
	// non-latched source while locked.
	Protocol
	// Fatal covers internal invariant violations; code that raises this
	// is expected to panic rather than return, per the Fatal contract.
	Fatal
)

// String implements [fmt.Stringer].
func (k Kind) String() string {
	switch k {
	case Parse:
		return "Parse"
	case Resolve:
		return "Resolve"
	case Resource:
		return "Resource"
	case Policy:
		return "Policy"
	case Protocol:
		return "Protocol"
	case Fatal:
		return "Fatal"
	default:
		return "Unknown"
	}
}

// Error wraps an underlying error with its [Kind].
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Kind.String() + ": " + e.Op
	}
	return e.Kind.String() + ": " + e.Op + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error { return e.Err }

// New wraps err with a [Kind] and the operation that produced it.
func New(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// Of extracts the [Kind] from err, defaulting to [Fatal] when err does not
// carry one — an unclassified error reaching the top is itself treated as
// an invariant violation worth flagging loudly rather than silently.
func Of(err error) Kind {
	var e *Error
	if as, ok := err.(*Error); ok {
		e = as
		return e.Kind
	}
	return Fatal
}
