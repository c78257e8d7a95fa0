// SPDX-License-Identifier: GPL-3.0-or-later
//
// Grounded on spec.md §4.6's packet observer bus: registers the three
// built-in taste/enqueue pairs (DTMF detection, stats counting, pcap
// capture) the way the original implementation's rtpp_wi_apis wires
// catch_dtmf and acct as dispatch targets for every received packet.
package server

import (
	"context"
	"time"

	"github.com/rtpproxy/relay/internal/dtmf"
	"github.com/rtpproxy/relay/internal/observer"
	"github.com/rtpproxy/relay/internal/rtpstream"
	"github.com/rtpproxy/relay/internal/rtpwire"
	"github.com/rtpproxy/relay/internal/workqueue"
)

// dtmfAux is the taste-to-enqueue scratch payload for the DTMF observer.
type dtmfAux struct {
	event dtmf.Event
	ts    uint32
}

func (s *Server) registerObservers() {
	s.observers.Reg(s.dtmfTaste, s.dtmfEnqueue)
	s.observers.Reg(s.statsTaste, s.statsEnqueue)
	s.observers.Reg(s.pcapTaste, s.pcapEnqueue)
}

// dtmfPayloadType returns the payload type the DTMF taste function should
// match for p.Stream: the per-call value negotiated via the catch_dtmf
// subcommand if one was installed, else the process-wide configured
// default.
func (s *Server) dtmfPayloadType(stream *rtpstream.Stream) int {
	if v := stream.CatchDTMFData(); v != nil {
		if b, ok := v.(dtmf.Binding); ok {
			return b.PayloadType
		}
	}
	return s.cfg.DTMFPayloadType
}

func (s *Server) dtmfTaste(p *observer.Probe) bool {
	if p.Pipe.PipeType != rtpstream.RTP {
		return false
	}
	hdr, err := rtpwire.ParseHeader(p.Packet)
	if err != nil || int(hdr.PayloadType) != s.dtmfPayloadType(p.Stream) {
		return false
	}
	if len(p.Packet) < 16 {
		return false
	}
	ev, err := dtmf.DecodeEvent(p.Packet[12:16])
	if err != nil {
		return false
	}
	p.Aux = dtmfAux{event: ev, ts: hdr.Timestamp}
	return true
}

// dtmfEnqueue hands the tasted event off to the DTMF worker-thread
// module's queue, so history-state processing and notification delivery
// run on that module's own goroutine rather than inline on this
// data-plane receive loop (spec.md §4.6/§4.9's per-module worker thread).
func (s *Server) dtmfEnqueue(p *observer.Probe) {
	aux, ok := p.Aux.(dtmfAux)
	if !ok {
		return
	}
	sess := s.sessionForPipe(p.Pipe)
	if sess == nil || sess.Notify == nil {
		return
	}

	s.mu.Lock()
	hist, found := s.dtmfHistories[p.Stream.ID]
	if !found {
		hist = dtmf.NewHistory()
		s.dtmfHistories[p.Stream.ID] = hist
	}
	s.mu.Unlock()

	job := dtmf.Job{
		History:   hist,
		Event:     aux.event,
		Timestamp: aux.ts,
		Tag:       sess.Notify.Tag,
		Target:    sess.Notify.Socket,
		Side:      p.Side,
	}
	if s.dtmfQueue == nil {
		// No worker registered (e.g. a test server built without going
		// through New's wiring): fall back to processing inline rather
		// than silently dropping every event.
		hist.Process(job.Event, job.Timestamp, job.Tag, job.Target, job.Side, s.log, s.notifier)
		s.stats.IncDTMFEvents()
		return
	}
	if err := s.dtmfQueue.TryPut(workqueue.NewData(job, 0)); err != nil {
		s.log.Debug("dtmf: event dropped", "err", err)
		return
	}
	s.stats.IncDTMFEvents()
}

func (s *Server) statsTaste(p *observer.Probe) bool { return true }

func (s *Server) statsEnqueue(p *observer.Probe) {
	s.stats.IncPacketsRelayed(p.Pipe.PipeType.String())
	if p.Pipe.PipeType != rtpstream.RTCP {
		return
	}
	sess := s.sessionForPipe(p.Pipe)
	if sess == nil {
		return
	}
	// DoAcctRTCP hands payload to a queue drained by another goroutine,
	// so it must outlive this packet's pooled receive buffer.
	payload := append([]byte(nil), p.Packet...)
	s.modules.DoAcctRTCP(context.Background(), sess.ID, payload)
}

func (s *Server) pcapTaste(p *observer.Probe) bool { return true }

func (s *Server) pcapEnqueue(p *observer.Probe) {
	if err := s.pcap.WriteFrame(time.Now(), p.Side.String(), p.Packet); err != nil {
		s.log.Debug("pcap: write frame failed", "err", err)
	}
}
