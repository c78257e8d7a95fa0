// SPDX-License-Identifier: GPL-3.0-or-later
//
// Grounded on spec.md §3/§4.5's session model: a call-id keyed owner of
// an RTP pipe and an RTCP pipe, tags, a creation timestamp, and optional
// timeout-notify data.
package session

import (
	"sync/atomic"
	"time"

	"github.com/rtpproxy/relay/internal/objkernel"
	"github.com/rtpproxy/relay/internal/pipe"
	"github.com/rtpproxy/relay/internal/rtpstream"
)

// NotifyData is the optional timeout-notify payload a session carries,
// delivered to a notify transport when the session expires.
type NotifyData struct {
	Socket string
	Tag    string
}

// Session is a call: an RTP pipe, an RTCP pipe, tags, and lifetime
// metadata.
type Session struct {
	Ref *objkernel.Ref

	// ID is this session's weak registry key.
	ID uint64

	CallID   string
	FromTag  string
	ToTag    string
	Created  time.Time
	Notify   *NotifyData

	weak atomic.Bool

	rtp  *pipe.Pipe
	rtcp *pipe.Pipe
}

// New constructs a [*Session] owning rtpPipe and rtcpPipe.
func New(callID, fromTag string, rtpPipe, rtcpPipe *pipe.Pipe, created time.Time) *Session {
	s := &Session{
		Ref:     objkernel.New(),
		ID:      objkernel.NextID(),
		CallID:  callID,
		FromTag: fromTag,
		Created: created,
		rtp:     rtpPipe,
		rtcp:    rtcpPipe,
	}
	s.Ref.Attach(func() {
		rtpPipe.Ref.Decref()
		rtcpPipe.Ref.Decref()
	})
	return s
}

// RTP returns the session's RTP pipe.
func (s *Session) RTP() *pipe.Pipe { return s.rtp }

// RTPStream returns one side's RTP stream directly, e.g. for a module
// subcommand that needs to mutate a stream without going through the
// command engine.
func (s *Session) RTPStream(side rtpstream.Side) *rtpstream.Stream { return s.rtp.Stream(side) }

// RTCP returns the session's RTCP pipe.
func (s *Session) RTCP() *pipe.Pipe { return s.rtcp }

// SetWeak marks the session as created without a confirmed strong side
// (probe mode); [Upgrade] clears it once a side commits.
func (s *Session) SetWeak(weak bool) { s.weak.Store(weak) }

// Strong reports whether the session was created without the weak flag,
// or has since been upgraded.
func (s *Session) Strong() bool { return !s.weak.Load() }

// Upgrade promotes a weak session to strong, e.g. once the callee side
// completes its own UPDATE.
func (s *Session) Upgrade() { s.weak.Store(false) }

// Complete reports whether both the RTP pipe's caller and callee streams
// have a remote destination, confirmed or prefilled (see
// [rtpstream.Stream.Dest]), per spec.md's "complete once both sides have
// a remote destination".
func (s *Session) Complete() bool {
	return s.rtp.Stream(0).Dest().IsValid() && s.rtp.Stream(1).Dest().IsValid()
}
