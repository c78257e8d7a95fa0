// SPDX-License-Identifier: GPL-3.0-or-later
//
// Grounded on spec.md §5's thread model ("one control-plane command
// dispatcher, one data-plane receiver per poll-set, one worker per
// module, one timeout/TTL scanner") and the teacher's Config-driven
// constructor wiring (bassosimone-nop's NewConnectFunc family): Server is
// the process-level composition root that owns every long-lived
// goroutine and the object graph they share.

// Package server wires the command engine, the packet observer bus, the
// accounting/control-plane module registry, and the TTL scanner into one
// running relay process.
package server

import (
	"context"
	"sync"
	"time"

	"github.com/rtpproxy/relay/internal/command"
	"github.com/rtpproxy/relay/internal/config"
	"github.com/rtpproxy/relay/internal/dtmf"
	"github.com/rtpproxy/relay/internal/module"
	"github.com/rtpproxy/relay/internal/netdial"
	"github.com/rtpproxy/relay/internal/observer"
	"github.com/rtpproxy/relay/internal/pcap"
	"github.com/rtpproxy/relay/internal/pipe"
	"github.com/rtpproxy/relay/internal/proto"
	"github.com/rtpproxy/relay/internal/rlog"
	"github.com/rtpproxy/relay/internal/session"
	"github.com/rtpproxy/relay/internal/stats"
	"github.com/rtpproxy/relay/internal/workqueue"
)

// Notifier delivers DTMF and timeout notification lines; satisfied by
// [github.com/rtpproxy/relay/internal/notify.Sender].
type Notifier interface {
	dtmf.Notifier
}

// Server owns the registry, command engine, observer bus, module
// registry, and TTL watcher that together form one running relay.
type Server struct {
	cfg       *config.Config
	log       rlog.Logger
	stats     stats.Sink
	pcap      pcap.Sink
	notifier  Notifier
	modules   *module.Registry
	registry  *session.Registry
	allocator netdial.PairAllocator
	Engine    *command.Engine
	observers *observer.Manager

	watcherPeriod time.Duration

	dtmfQueue *workqueue.Queue

	mu             sync.Mutex
	dtmfHistories  map[uint64]*dtmf.History
	startedStreams map[uint64]struct{}
	pipeIndex      map[uint64]*session.Session
}

// sessionFinder adapts [*session.Registry] to [dtmf.SessionFinder],
// since Go's structural typing doesn't let a method returning
// *session.Session directly satisfy an interface method returning
// [dtmf.RTPHolder].
type sessionFinder struct{ reg *session.Registry }

func (f sessionFinder) FindByTag(tag string) (dtmf.RTPHolder, bool) {
	sess, ok := f.reg.FindByTag(tag)
	if !ok {
		return nil, false
	}
	return sess, true
}

// Option configures optional [Server] collaborators at construction.
type Option func(*Server)

// WithPcap installs sink as the packet capture collaborator, default
// [pcap.Discard].
func WithPcap(sink pcap.Sink) Option {
	return func(s *Server) { s.pcap = sink }
}

// WithWatcherPeriod overrides the TTL scanner's tick period, default one
// second.
func WithWatcherPeriod(d time.Duration) Option {
	return func(s *Server) { s.watcherPeriod = d }
}

// New constructs a [*Server]. modules may be nil, in which case an empty
// [*module.Registry] is created.
func New(cfg *config.Config, sink stats.Sink, notifier Notifier, modules *module.Registry, opts ...Option) *Server {
	if modules == nil {
		modules = module.NewRegistry(cfg.Logger)
	}
	s := &Server{
		cfg:            cfg,
		log:            cfg.Logger,
		stats:          sink,
		pcap:           pcap.Discard(),
		notifier:       notifier,
		modules:        modules,
		registry:       session.NewRegistry(),
		allocator:      netdial.NewRangeAllocator(cfg.PortMin, cfg.PortMax),
		observers:      observer.New(),
		watcherPeriod:  time.Second,
		dtmfHistories:  make(map[uint64]*dtmf.History),
		startedStreams: make(map[uint64]struct{}),
		pipeIndex:      make(map[uint64]*session.Session),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.Engine = command.New(cfg, s.registry, s.allocator, sink)
	s.Engine.SetHooks(s.modules)

	if _, err := s.modules.Register(context.Background(), dtmf.NewCatchDTMFModule(sessionFinder{reg: s.registry})); err != nil {
		s.log.Error("server: catch_dtmf module registration failed", "err", err)
	}
	if q, err := s.modules.Register(context.Background(), dtmf.NewWorker(s.log, s.notifier)); err != nil {
		s.log.Error("server: dtmf worker registration failed", "err", err)
	} else {
		s.dtmfQueue = q
	}

	s.registerObservers()
	return s
}

// HandleSubcommand runs a standalone `M<n>:<name> <args...>` line (not
// attached to a U/L request) through the module registry, e.g. the
// catch_dtmf subcommand's per-call DTMF payload-type negotiation.
func (s *Server) HandleSubcommand(ctx context.Context, name string, args []string) error {
	return s.modules.HandleSubcommand(ctx, name, args)
}

// Registry exposes the session registry, e.g. for diagnostics.
func (s *Server) Registry() *session.Registry { return s.registry }

// HandleLine runs a parsed control-protocol line through the command
// engine, then refreshes the data-plane receive-loop and pipe indexes so
// newly allocated sockets and sessions are immediately observable by the
// data plane and the TTL scanner.
func (s *Server) HandleLine(ctx context.Context, line proto.Line) (string, error) {
	reply, err := s.Engine.Handle(ctx, line)
	s.rebuildPipeIndex()
	s.ensureReceiveLoops(ctx)
	return reply, err
}

func (s *Server) rebuildPipeIndex() {
	sessions := s.registry.All()
	idx := make(map[uint64]*session.Session, len(sessions)*2)
	for _, sess := range sessions {
		idx[sess.RTP().ID] = sess
		idx[sess.RTCP().ID] = sess
	}
	s.mu.Lock()
	s.pipeIndex = idx
	s.mu.Unlock()
}

func (s *Server) sessionForPipe(pp *pipe.Pipe) *session.Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pipeIndex[pp.ID]
}

// LivePipes implements [github.com/rtpproxy/relay/internal/ttlwatch.Source].
func (s *Server) LivePipes() []*pipe.Pipe {
	sessions := s.registry.All()
	pipes := make([]*pipe.Pipe, 0, len(sessions)*2)
	for _, sess := range sessions {
		pipes = append(pipes, sess.RTP(), sess.RTCP())
	}
	return pipes
}

// ExpirePipe implements [github.com/rtpproxy/relay/internal/ttlwatch.Expirer]:
// it tears down the session owning p, notifying accounting modules and,
// if configured, the timeout-notify transport.
func (s *Server) ExpirePipe(p *pipe.Pipe) {
	sess := s.sessionForPipe(p)
	if sess == nil {
		return
	}
	s.registry.RemoveSession(sess)
	s.stats.IncSessionsExpired()
	s.modules.DoAcct(context.Background(), sess.ID)
	if sess.Notify != nil {
		s.notifier.Schedule(sess.Notify.Socket, sess.Notify.Tag+" 0", "TIMEOUT")
	}

	// Closing both sockets on both sides unblocks any receive loop still
	// parked in ReadFromUDPAddrPort on this session's pipes so it can
	// observe ctx/socket state and exit, rather than leak.
	for _, pp := range [2]*pipe.Pipe{sess.RTP(), sess.RTCP()} {
		pp.Stream(0).SetSocket(nil)
		pp.Stream(1).SetSocket(nil)
	}

	sess.Ref.Decref()
	s.rebuildPipeIndex()
}
