// SPDX-License-Identifier: GPL-3.0-or-later
//
// Grounded on spec.md §5 ("one data-plane receiver per poll-set") and
// other_examples' Dragon-Born-paqet/internal/forward/udp.go receive loop,
// generalized to read into a pooled [pbuf] buffer, forward via
// [pipe.Pipe.Forward], and run the result through the observer bus.
package server

import (
	"context"

	"github.com/rtpproxy/relay/internal/pbuf"
	"github.com/rtpproxy/relay/internal/pipe"
	"github.com/rtpproxy/relay/internal/rtpstream"
)

// ensureReceiveLoops starts a receive goroutine for every stream socket
// currently allocated that does not already have one running. It is
// idempotent and safe to call after every control-plane command, since a
// command may allocate a socket for a stream for the first time.
func (s *Server) ensureReceiveLoops(ctx context.Context) {
	for _, sess := range s.registry.All() {
		for _, pp := range [2]*pipe.Pipe{sess.RTP(), sess.RTCP()} {
			for _, side := range [2]rtpstream.Side{rtpstream.Caller, rtpstream.Callee} {
				s.maybeStartLoop(ctx, pp, side)
			}
		}
	}
}

func (s *Server) maybeStartLoop(ctx context.Context, pp *pipe.Pipe, side rtpstream.Side) {
	stream := pp.Stream(side)
	if stream.Socket() == nil {
		return
	}

	s.mu.Lock()
	_, started := s.startedStreams[stream.ID]
	if !started {
		s.startedStreams[stream.ID] = struct{}{}
	}
	s.mu.Unlock()
	if started {
		return
	}

	go s.serveStream(ctx, pp, side)
}

// serveStream reads datagrams from pp's side socket until ctx is done or
// the socket is replaced (port reassignment closes the previous socket,
// which unblocks the pending read with an error; the loop then re-fetches
// the current socket and continues, or exits once ctx is done).
func (s *Server) serveStream(ctx context.Context, pp *pipe.Pipe, side rtpstream.Side) {
	stream := pp.Stream(side)
	buffer := pbuf.Get()
	defer pbuf.Release(buffer)

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		sock := stream.Socket()
		if sock == nil {
			return
		}

		buffer.Reset()
		n, src, err := sock.ReadFromUDPAddrPort(buffer.FreeBytes())
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			continue
		}
		buffer.Truncate(n)
		payload := buffer.Bytes()

		if err := pp.Forward(side, src, payload); err != nil {
			s.stats.IncPacketsDropped(pp.PipeType.String(), "latch_reject")
			s.log.Debug("packet dropped", "pipe_type", pp.PipeType.String(), "side", side.String(), "err", err)
			continue
		}
		if ttl := int(s.cfg.MaxTTL.Seconds()); ttl > 0 {
			stream.ResetTTLWith(ttl)
		}
		s.observers.Dispatch(pp, stream, side, payload)
	}
}
