// SPDX-License-Identifier: GPL-3.0-or-later
//
// Grounded on spec.md §7's error taxonomy and the numeric-code framing of
// its "PARSE_10" example, and on original_source/src/commands/rpcpv1_ul.c's
// reply-formatting conventions.
package command

import "github.com/rtpproxy/relay/internal/errkind"

// Numeric error codes returned in the protocol reply as "E<code>", one
// per failure mode the command engine can report. PARSE10 is named
// directly in spec.md §4.8 step 1; the rest are assigned in the same
// family by failure kind.
const (
	ParseBadModifier    = 1
	ParseBadPtime       = 2
	ParseBadCodecList   = 3
	ParseBadAddress     = 4
	ParseBadPort        = 5
	ResolveNoLocalAddr  = 6
	ResolveNoRoute      = 7
	ResourcePortsExhausted = 8
	PolicySlowShutdown  = 9
	ParseBadNotifyTag   = 10
	PolicyOverload      = 11
	PolicyNotifyRequired = 12
)

// Error is a command-engine failure carrying both an [errkind.Kind] for
// logging/classification and a numeric code for the protocol reply.
type Error struct {
	Kind errkind.Kind
	Code int
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Kind.String() + ": " + e.Op + ": " + e.Err.Error()
	}
	return e.Kind.String() + ": " + e.Op
}

func (e *Error) Unwrap() error { return e.Err }

func newError(kind errkind.Kind, code int, op string, err error) *Error {
	return &Error{Kind: kind, Code: code, Op: op, Err: err}
}
