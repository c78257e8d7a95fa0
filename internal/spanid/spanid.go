// SPDX-License-Identifier: GPL-3.0-or-later
//
// Adapted from the teacher's spanid.go (github.com/bassosimone/nop).

// Package spanid mints correlation ids for log lines and pcap frames.
//
// A span id is deliberately not a weak id (see internal/objkernel): it is
// never used as a registry key, only to tie together the several log lines
// and pcap frames produced by a single inbound command or a single session
// across goroutines, the way a trace id ties together spans in OTel.
package spanid

import "github.com/google/uuid"

// New returns a UUIDv7 string suitable for correlating log lines.
//
// This function panics if the system random number generator fails, which
// should only happen under extraordinary circumstances.
func New() string {
	id, err := uuid.NewV7()
	if err != nil {
		panic("spanid: system random number generator failed: " + err.Error())
	}
	return id.String()
}
