// SPDX-License-Identifier: GPL-3.0-or-later
//
// Grounded on spec.md §4.8's UPDATE/LOOKUP processing sequence and
// original_source/src/commands/rpcpv1_ul.c's struct ul_opts / reply
// formatting (ul_reply_port).
package command

import (
	"context"
	"fmt"
	"net"
	"net/netip"
	"net/url"
	"sync"
	"time"

	"github.com/rtpproxy/relay/internal/config"
	"github.com/rtpproxy/relay/internal/errkind"
	"github.com/rtpproxy/relay/internal/netdial"
	"github.com/rtpproxy/relay/internal/pipe"
	"github.com/rtpproxy/relay/internal/proto"
	"github.com/rtpproxy/relay/internal/rtpstream"
	"github.com/rtpproxy/relay/internal/rtpwire"
	"github.com/rtpproxy/relay/internal/session"
	"github.com/rtpproxy/relay/internal/stats"
)

// SubcommandHooks is the step-7 post-hook run after a U/L command
// completes, per spec.md §4.8 step 7: modules implementing
// [internal/module.ControlPlaneHooks] get a chance to post-process the
// request, and a non-nil error appends " && <subc_res>" to the reply.
// [*internal/module.Registry] satisfies this interface directly.
type SubcommandHooks interface {
	HandleSubcommand(ctx context.Context, name string, args []string) error
}

// Engine is the command-plane processor for the UPDATE/LOOKUP ("U"/"L")
// request family.
type Engine struct {
	cfg       *config.Config
	registry  *session.Registry
	allocator netdial.PairAllocator
	stats     stats.Sink
	hooks     SubcommandHooks

	mu           sync.Mutex // serializes steps 1-6 per spec.md §4.8's "implicit per-session write lock"
	slowShutdown bool
	openWarned   bool
}

// New constructs an [*Engine].
func New(cfg *config.Config, registry *session.Registry, allocator netdial.PairAllocator, sink stats.Sink) *Engine {
	return &Engine{cfg: cfg, registry: registry, allocator: allocator, stats: sink}
}

// SetHooks installs the step-7 post-hook, e.g. the server's module
// registry. Nil (the default) skips step 7 entirely.
func (e *Engine) SetHooks(hooks SubcommandHooks) {
	e.hooks = hooks
}

// BeginSlowShutdown rejects further new-session UPDATEs; existing
// sessions continue until TTL expiry or explicit teardown, per spec.md §5.
func (e *Engine) BeginSlowShutdown() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.slowShutdown = true
}

// Handle processes one parsed request line and returns the reply body
// (without the leading cookie, which the caller prepends) or a command
// [*Error].
func (e *Engine) Handle(ctx context.Context, line proto.Line) (string, error) {
	opts, err := ParseOptions(line.Modifiers)
	if err != nil {
		return "", newError(errkind.Parse, ParseBadModifier, "parse modifiers", err)
	}

	var notifyTag string
	if line.NotifySocket != "" {
		decoded, err := url.QueryUnescape(line.NotifyTag)
		if err != nil {
			return "", newError(errkind.Parse, ParseBadNotifyTag, "url-decode notify tag", err)
		}
		notifyTag = decoded
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	switch line.Op {
	case "L", "l":
		return e.handleLookup(ctx, line)
	default:
		return e.handleUpdate(ctx, line, opts, notifyTag)
	}
}

func (e *Engine) handleLookup(ctx context.Context, line proto.Line) (string, error) {
	s, ok := e.registry.Lookup(line.CallID, line.FromTag, line.ToTag, session.TwoSided)
	if !ok {
		return "", newError(errkind.Resolve, ResolveNoRoute, "lookup", fmt.Errorf("no matching session for call %q", line.CallID))
	}
	side := sideFor(s, line.FromTag)

	subc := 0
	if e.hooks != nil {
		if err := e.hooks.HandleSubcommand(ctx, "lookup", []string{line.CallID, line.FromTag}); err != nil {
			subc = 1
			e.cfg.Logger.Warn("command: post-hook failed", "call_id", line.CallID, "err", err)
		}
	}
	return e.formatReply(s.RTP().Stream(side), subc), nil
}

func (e *Engine) handleUpdate(ctx context.Context, line proto.Line, opts Options, notifyTag string) (string, error) {
	s, found := e.registry.Lookup(line.CallID, line.FromTag, "", session.OneSided)

	var side rtpstream.Side
	if found {
		// A to_tag on an UPDATE names the answering leg; its absence
		// means the offering leg is refreshing itself. This mirrors
		// sidx resolution ahead of rtpp_command_ul_handle in the
		// original: the caller leg never carries a to_tag, the callee
		// leg's first UPDATE introduces one.
		if line.ToTag == "" {
			side = rtpstream.Caller
		} else {
			side = rtpstream.Callee
			if s.ToTag == "" {
				s.ToTag = line.ToTag
			}
		}
	} else {
		if e.slowShutdown {
			return "", newError(errkind.Policy, PolicySlowShutdown, "create session", fmt.Errorf("process is shutting down"))
		}
		if e.cfg.OverloadLimiter != nil && !e.cfg.OverloadLimiter.Allow() {
			e.stats.ObserveOverloadRejected()
			return "", newError(errkind.Policy, PolicyOverload, "create session", fmt.Errorf("overload threshold exceeded"))
		}

		var err error
		s, err = e.createSession(line, opts)
		if err != nil {
			return "", err
		}
		side = rtpstream.Caller
		e.stats.IncSessionsCreated()
		e.warnIfNearFDLimit()
	}

	rtpStream := s.RTP().Stream(side)
	rtcpStream := s.RTCP().Stream(side)
	oppositeRTP := s.RTP().Stream(side.Opposite())

	if rtpStream.Socket() == nil || opts.ForceNewPort {
		if err := e.allocatePortPair(s, side); err != nil {
			return "", err
		}
	}
	if e.cfg.MaxTTL > 0 {
		rtpStream.ResetTTLWith(int(e.cfg.MaxTTL.Seconds()))
		rtcpStream.ResetTTLWith(int(e.cfg.MaxTTL.Seconds()))
	}

	if notifyTag != "" {
		s.Notify = &session.NotifyData{Socket: line.NotifySocket, Tag: notifyTag}
	}

	if err := e.applyRemoteAddr(rtpStream, line.Addr, line.Port); err != nil {
		return "", err
	}
	if err := e.applyRemoteAddr(rtcpStream, line.Addr, line.Port+1); err != nil {
		return "", err
	}

	if opts.AsymmetricSet && opts.Asymmetric {
		rtpStream.LockLatch()
		rtcpStream.LockLatch()
	}
	if opts.Weak {
		s.SetWeak(true)
	} else {
		s.Upgrade()
	}
	if len(opts.Codecs) > 0 || opts.Ptime > 0 {
		rtpStream.SetCodecs(opts.Codecs, opts.Ptime)
	}
	// The first negotiated codec is this leg's expected receive payload
	// type; packets forwarded to it are rewritten to match, the way the
	// original mirrors negotiated codecs onto the peer leg's wire frames.
	if len(opts.Codecs) > 0 {
		rtpStream.SetPayloadType(opts.Codecs[0])
	}

	if opts.Ptime > 0 {
		_, oppositePtime := oppositeRTP.Codecs()
		if oppositePtime != opts.Ptime {
			oppositeRTP.SetResizer(rtpwire.NewResizer(opts.Ptime))
		} else {
			oppositeRTP.SetResizer(nil)
		}
	}

	if s.Complete() {
		e.stats.IncSessionsCompleted()
	}

	subc := 0
	if e.hooks != nil {
		if err := e.hooks.HandleSubcommand(ctx, "update", []string{line.CallID, line.FromTag}); err != nil {
			subc = 1
			e.cfg.Logger.Warn("command: post-hook failed", "call_id", line.CallID, "err", err)
		}
	}

	return e.formatReply(rtpStream, subc), nil
}

// sideFor resolves which side of s a request with fromTag is acting as.
func sideFor(s *session.Session, fromTag string) rtpstream.Side {
	if s.FromTag == fromTag {
		return rtpstream.Caller
	}
	return rtpstream.Callee
}

func (e *Engine) createSession(line proto.Line, opts Options) (*session.Session, error) {
	local, err := e.resolveLocalAddr(opts)
	if err != nil {
		return nil, err
	}

	callerRTP := rtpstream.New(rtpstream.Caller, rtpstream.RTP, netip.AddrPortFrom(local, 0))
	calleeRTP := rtpstream.New(rtpstream.Callee, rtpstream.RTP, netip.AddrPortFrom(local, 0))
	rtpPipe := pipe.New(rtpstream.RTP, callerRTP, calleeRTP, e.cfg.Logger)

	callerRTCP := rtpstream.New(rtpstream.Caller, rtpstream.RTCP, netip.AddrPortFrom(local, 0))
	calleeRTCP := rtpstream.New(rtpstream.Callee, rtpstream.RTCP, netip.AddrPortFrom(local, 0))
	rtcpPipe := pipe.New(rtpstream.RTCP, callerRTCP, calleeRTCP, e.cfg.Logger)

	s := session.New(line.CallID, line.FromTag, rtpPipe, rtcpPipe, e.cfg.TimeNow())
	e.registry.Insert(s)
	return s, nil
}

func (e *Engine) resolveLocalAddr(opts Options) (netip.Addr, error) {
	if opts.LocalAddr != "" {
		addr, err := netip.ParseAddr(opts.LocalAddr)
		if err != nil {
			return netip.Addr{}, newError(errkind.Parse, ParseBadAddress, "parse local addr", err)
		}
		return addr, nil
	}

	if opts.RemoteAddr != "" {
		remote, err := netip.ParseAddr(opts.RemoteAddr)
		if err != nil {
			return netip.Addr{}, newError(errkind.Parse, ParseBadAddress, "parse remote addr", err)
		}
		local, err := localAddrForRemote(remote)
		if err != nil {
			return netip.Addr{}, newError(errkind.Resolve, ResolveNoLocalAddr, "route lookup for remote addr", err)
		}
		return local, nil
	}

	family := 4
	if opts.Family == FamilyV6 {
		family = 6
	}
	entry, ok := e.cfg.BindAddrs.Lookup(family)
	if !ok {
		if primary, ok := e.cfg.BindAddrs.Primary(); ok {
			return primary.Addr, nil
		}
		return netip.Addr{}, newError(errkind.Resolve, ResolveNoLocalAddr, "resolve local addr",
			fmt.Errorf("no bind address configured for family %d", family))
	}
	defer entry.Unpin()
	return entry.Addr, nil
}

// localAddrForRemote picks the local address the kernel's route table would
// use to reach remote, the Go analogue of original_source's local4remote:
// connecting a UDP socket never sends a packet, it only performs the route
// lookup, after which the socket's local address is the answer.
func localAddrForRemote(remote netip.Addr) (netip.Addr, error) {
	conn, err := net.Dial("udp", netip.AddrPortFrom(remote, discardPort).String())
	if err != nil {
		return netip.Addr{}, fmt.Errorf("local4remote: %w", err)
	}
	defer conn.Close()
	local, ok := conn.LocalAddr().(*net.UDPAddr)
	if !ok {
		return netip.Addr{}, fmt.Errorf("local4remote: unexpected local addr type %T", conn.LocalAddr())
	}
	addr, ok := netip.AddrFromSlice(local.IP)
	if !ok {
		return netip.Addr{}, fmt.Errorf("local4remote: unparsable local addr %v", local.IP)
	}
	return addr.Unmap(), nil
}

// discardPort is an arbitrary port used only to complete the route-lookup
// dial; since no data is ever written, nothing is actually sent to it.
const discardPort = 9

func (e *Engine) allocatePortPair(s *session.Session, side rtpstream.Side) error {
	rtpStream := s.RTP().Stream(side)
	rtcpStream := s.RTCP().Stream(side)

	rtpConn, rtcpConn, err := e.allocator.AllocatePair(rtpStream.LocalAddr.Addr())
	if err != nil {
		return newError(errkind.Resource, ResourcePortsExhausted, "allocate port pair", err)
	}
	rtpStream.SetSocket(rtpConn)
	rtcpStream.SetSocket(rtcpConn)
	return nil
}

// nullAddr is the "no media yet" placeholder address per spec.md §4.8
// step 3.
var nullAddr = netip.MustParseAddr("0.0.0.0")

func (e *Engine) applyRemoteAddr(s *rtpstream.Stream, addrLiteral string, port int) error {
	if addrLiteral == "" {
		return nil
	}
	addr, err := netip.ParseAddr(addrLiteral)
	if err != nil {
		return newError(errkind.Parse, ParseBadAddress, "parse remote addr", err)
	}
	if addr == nullAddr || !addr.IsValid() {
		s.RegOnHold()
		return nil
	}
	s.ClearOnHold()
	s.PrefillAddr(netip.AddrPortFrom(addr, uint16(port)), time.Now())
	return nil
}

func (e *Engine) formatReply(s *rtpstream.Stream, subc int) string {
	port := s.LocalAddr.Port()
	if sock := s.Socket(); sock != nil {
		if addr, ok := sock.LocalAddr().(*net.UDPAddr); ok {
			port = uint16(addr.Port)
		}
	}
	body := fmt.Sprintf("%d", port)
	if dest := s.Dest(); dest.IsValid() {
		if dest.Addr().Is6() && !dest.Addr().Is4In6() {
			body = fmt.Sprintf("%d %s 6", port, dest.Addr().String())
		} else {
			body = fmt.Sprintf("%d %s", port, dest.Addr().String())
		}
	}
	if subc != 0 {
		body += fmt.Sprintf(" && %d", subc)
	}
	return body
}

func (e *Engine) warnIfNearFDLimit() {
	if e.cfg.MaxOpenSessions <= 0 || e.openWarned {
		return
	}
	if e.registry.Len() >= (e.cfg.MaxOpenSessions*8)/10 {
		e.openWarned = true
		e.cfg.Logger.Warn("open session count exceeds 80% of file-descriptor-derived limit",
			"open_sessions", e.registry.Len(), "max_open_sessions", e.cfg.MaxOpenSessions)
	}
}
