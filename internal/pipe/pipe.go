// SPDX-License-Identifier: GPL-3.0-or-later
//
// Grounded on original_source/src/rtpp_pipe.c and rtpp_pipe.h: two
// streams under one refcount, a shared packet counter, and get_ttl as the
// min of both streams' remaining TTL. The weak back-reference each stream
// holds to its peer (stuid_sendr in the original) maps to
// [rtpstream.Stream.PeerID] rather than a strong pointer, so destroying
// one stream never has to chase down and null out a pointer held by the
// other.
package pipe

import (
	"net/netip"
	"sync/atomic"

	"github.com/rtpproxy/relay/internal/objkernel"
	"github.com/rtpproxy/relay/internal/rlog"
	"github.com/rtpproxy/relay/internal/rtpstream"
)

// Pipe owns both streams of one RTP or RTCP duplex for a session: caller
// at index 0, callee at index 1.
type Pipe struct {
	Ref *objkernel.Ref

	// ID is this pipe's weak registry key (ppuid in the original).
	ID uint64

	PipeType rtpstream.PipeType

	streams [2]*rtpstream.Stream
	pcount  atomic.Uint64

	log rlog.Logger
}

// New constructs a [*Pipe] owning caller and callee, registering their
// mutual peer-id back-reference. Both streams must already carry distinct
// weak ids (see [rtpstream.New]).
func New(pipeType rtpstream.PipeType, caller, callee *rtpstream.Stream, log rlog.Logger) *Pipe {
	caller.PeerID = callee.ID
	callee.PeerID = caller.ID

	p := &Pipe{
		Ref:      objkernel.New(),
		ID:       objkernel.NextID(),
		PipeType: pipeType,
		streams:  [2]*rtpstream.Stream{caller, callee},
		log:      log,
	}
	p.Ref.Attach(func() {
		caller.Ref.Decref()
		callee.Ref.Decref()
		log.Debug("pipe destroyed", "pipe_id", p.ID, "pipe_type", pipeType.String())
	})
	log.Debug("pipe created", "pipe_id", p.ID, "pipe_type", pipeType.String())
	return p
}

// Stream returns the stream for the given side.
func (p *Pipe) Stream(side rtpstream.Side) *rtpstream.Stream {
	return p.streams[side]
}

// GetTTL returns the minimum remaining TTL of the two streams.
func (p *Pipe) GetTTL() int {
	a := p.streams[0].GetRemainingTTL()
	b := p.streams[1].GetRemainingTTL()
	if a < b {
		return a
	}
	return b
}

// IncPacketCount increments the pipe's shared packet counter, observed by
// both streams, and returns the new total.
func (p *Pipe) IncPacketCount() uint64 {
	return p.pcount.Add(1)
}

// PacketCount returns the current shared packet counter value.
func (p *Pipe) PacketCount() uint64 {
	return p.pcount.Load()
}

// Forward dispatches a packet received from src on rx's socket, invoking
// rx's OnRx with the opposite stream as the forwarding peer, and bumps
// the shared packet counter on success.
func (p *Pipe) Forward(rx rtpstream.Side, src netip.AddrPort, payload []byte) error {
	stream := p.streams[rx]
	peer := p.streams[rx.Opposite()]
	if err := stream.OnRx(src, payload, peer); err != nil {
		return err
	}
	p.IncPacketCount()
	return nil
}
