// SPDX-License-Identifier: GPL-3.0-or-later
//
// Adapted from the teacher's config.go (github.com/bassosimone/nop).

// Package config holds the relay-wide configuration: bind addresses, port
// range, TTL defaults, overload admission, logging, error classification,
// and stats wiring — the dependencies every other package is constructed
// with, the way the teacher's Config pre-wires a [*net.Dialer].
package config

import (
	"time"

	"github.com/rtpproxy/relay/internal/bindaddrs"
	"github.com/rtpproxy/relay/internal/errkind"
	"github.com/rtpproxy/relay/internal/rlog"
	"golang.org/x/time/rate"
)

// Config holds common configuration for the relay's control and data
// planes.
//
// Pass this to constructor functions to pre-wire dependencies. All fields
// have sensible defaults set by [New].
type Config struct {
	// BindAddrs is the read-mostly bind-addresses table consulted by the
	// command engine when no explicit local address was requested.
	//
	// Set by [New] to an empty [*bindaddrs.Table]; callers populate it at
	// startup before serving any command.
	BindAddrs *bindaddrs.Table

	// PortMin and PortMax bound the UDP port-pair allocation range.
	//
	// Set by [New] to 35000 and 65000.
	PortMin, PortMax int

	// MaxTTL is the TTL a stream is (re)armed to on session completion or
	// explicit control-plane refresh.
	//
	// Set by [New] to 60 seconds.
	MaxTTL time.Duration

	// OverloadLimiter admits new sessions; nil disables overload
	// protection.
	//
	// Set by [New] to nil.
	OverloadLimiter *rate.Limiter

	// MaxOpenSessions is the soft limit used for the 80%-of-RLIMIT_NOFILE/5
	// warning. Zero disables the warning.
	//
	// Set by [New] from the process's file-descriptor limit, divided by 5.
	MaxOpenSessions int

	// Logger is the [rlog.Logger] to use.
	//
	// Set by [New] to [rlog.Discard].
	Logger rlog.Logger

	// ErrClassifier classifies errors for structured logging and
	// data-plane error counters.
	//
	// Set by [New] to [errkind.DefaultClassifier].
	ErrClassifier errkind.Classifier

	// TimeNow returns the current time.
	//
	// Set by [New] to [time.Now].
	TimeNow func() time.Time

	// DTMFPayloadType is the negotiated RTP payload type the DTMF
	// detector treats as an RFC 4733 telephone-event carrier.
	//
	// Set by [New] to 101, the commonly-negotiated default.
	DTMFPayloadType int
}

// New creates a [*Config] with sensible defaults.
func New() *Config {
	return &Config{
		BindAddrs:       bindaddrs.NewTable(),
		PortMin:         35000,
		PortMax:         65000,
		MaxTTL:          60 * time.Second,
		MaxOpenSessions: maxOpenSessionsDefault(),
		Logger:          rlog.Discard(),
		ErrClassifier:   errkind.DefaultClassifier,
		TimeNow:         time.Now,
		DTMFPayloadType: 101,
	}
}
