//go:build unix

// SPDX-License-Identifier: GPL-3.0-or-later
//
// Adapted from the teacher's errclass/unix.go errno table.

package errkind

import (
	"errors"
	"syscall"

	"golang.org/x/sys/unix"
)

// Classify maps err to a short socket-errno label, walking the unwrap chain
// for a [syscall.Errno]. It returns "" for a nil error and [EGENERIC] for
// anything it does not recognize.
func Classify(err error) string {
	if err == nil {
		return ""
	}
	var errno syscall.Errno
	if !errors.As(err, &errno) {
		return EGENERIC
	}
	switch errno {
	case unix.EADDRNOTAVAIL:
		return "EADDRNOTAVAIL"
	case unix.EADDRINUSE:
		return "EADDRINUSE"
	case unix.ECONNABORTED:
		return "ECONNABORTED"
	case unix.ECONNREFUSED:
		return "ECONNREFUSED"
	case unix.ECONNRESET:
		return "ECONNRESET"
	case unix.EHOSTUNREACH:
		return "EHOSTUNREACH"
	case unix.EINVAL:
		return "EINVAL"
	case unix.EINTR:
		return "EINTR"
	case unix.ENETDOWN:
		return "ENETDOWN"
	case unix.ENETUNREACH:
		return "ENETUNREACH"
	case unix.ENOBUFS:
		return "ENOBUFS"
	case unix.ENOTCONN:
		return "ENOTCONN"
	case unix.EPROTONOSUPPORT:
		return "EPROTONOSUPPORT"
	case unix.ETIMEDOUT:
		return "ETIMEDOUT"
	default:
		return EGENERIC
	}
}
