// SPDX-License-Identifier: GPL-3.0-or-later

// Package proto implements a narrow, spec-compliant tokenizer for the
// control protocol's request line, so the command engine can be
// exercised end-to-end in tests without a hardened protocol front-end
// (out of scope per the purpose statement this module's callers follow).
package proto

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrMalformed is returned by [ParseLine] when the line does not carry
// the minimum required fields, or carries a field count this stub cannot
// disambiguate (see the restLen switch in ParseLine).
var ErrMalformed = errors.New("proto: malformed request line")

// Line is a parsed control-protocol request:
//
//	<cookie> <cmd> <call_id> <from_tag>[ <to_tag>] <addr> <port> [<modifiers>] [<notify_socket> <notify_tag>]
type Line struct {
	Cookie       string
	Op           string
	CallID       string
	FromTag      string
	ToTag        string
	Addr         string
	Port         int
	Modifiers    string
	NotifySocket string
	NotifyTag    string
}

// ParseLine tokenizes s into a [Line].
//
// The grammar is ambiguous past the required minimum: a to-tag, a
// modifiers token, and a notify-socket/notify-tag pair are all optional
// and all look like bare words, so the same field count can correspond
// to more than one combination. This stub resolves the ambiguity by
// field count using the same convention spec.md §4.8 step 1 calls out
// ("6 or 8 args" triggers notify extraction). After the from-tag, the
// recognized layouts are: addr port; addr port modifiers or to_tag addr
// port (told apart by whether the second field is a numeric port);
// addr port notify_socket notify_tag; to_tag addr port notify_socket
// notify_tag; and to_tag addr port modifiers notify_socket notify_tag.
// A to-tag with modifiers but no notify pair, and modifiers with a notify
// pair but no to-tag, are not recognized.
func ParseLine(s string) (Line, error) {
	fields := strings.Fields(s)
	if len(fields) < 6 {
		return Line{}, fmt.Errorf("%w: want at least 6 fields, got %d", ErrMalformed, len(fields))
	}

	l := Line{
		Cookie:  fields[0],
		Op:      fields[1],
		CallID:  fields[2],
		FromTag: fields[3],
	}
	rest := fields[4:]

	switch len(rest) {
	case 2: // addr port
	case 3: // addr port modifiers, or to_tag addr port
		if _, err := strconv.Atoi(rest[1]); err == nil {
			l.Modifiers = rest[2]
			rest = rest[:2]
		} else {
			l.ToTag = rest[0]
			rest = rest[1:]
		}
	case 4: // addr port notify_socket notify_tag
		l.NotifySocket = rest[2]
		l.NotifyTag = rest[3]
		rest = rest[:2]
	case 5: // to_tag addr port notify_socket notify_tag
		l.ToTag = rest[0]
		l.NotifySocket = rest[3]
		l.NotifyTag = rest[4]
		rest = rest[1:3]
	case 6: // to_tag addr port modifiers notify_socket notify_tag
		l.ToTag = rest[0]
		l.Modifiers = rest[3]
		l.NotifySocket = rest[4]
		l.NotifyTag = rest[5]
		rest = rest[1:3]
	default:
		return Line{}, fmt.Errorf("%w: unsupported field count %d", ErrMalformed, len(fields))
	}

	l.Addr = rest[0]
	port, err := strconv.Atoi(rest[1])
	if err != nil {
		return Line{}, fmt.Errorf("%w: invalid port %q: %v", ErrMalformed, rest[1], err)
	}
	l.Port = port

	return l, nil
}

// ParseSubcommand recognizes the module-subcommand wire form
// `<cookie> M<n>:<name> <arg>...`, distinct from [ParseLine]'s U/L
// grammar: it carries no call-id or address/port pair, only a module
// index (currently unused, since modules are dispatched by name rather
// than by load-order index), a subcommand name, and its arguments.
// Reports ok=false for any line that doesn't match this form, so callers
// can fall back to ParseLine.
func ParseSubcommand(s string) (cookie, name string, args []string, ok bool) {
	fields := strings.Fields(s)
	if len(fields) < 2 {
		return "", "", nil, false
	}
	cmd := fields[1]
	prefix, rest, found := strings.Cut(cmd, ":")
	if !found || len(prefix) < 2 || prefix[0] != 'M' {
		return "", "", nil, false
	}
	if _, err := strconv.Atoi(prefix[1:]); err != nil {
		return "", "", nil, false
	}
	return fields[0], rest, fields[2:], true
}
