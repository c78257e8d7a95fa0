// SPDX-License-Identifier: GPL-3.0-or-later
//
// Grounded on the teacher's endpoint.go/connect.go field-doc idiom
// (github.com/bassosimone/nop) and on the receive/forward loop of
// other_examples' Dragon-Born-paqet/internal/forward/udp.go, generalized
// from a standalone UDP forwarder's session table into one endpoint of a
// pipe owned by the session layer.

// Package rtpstream implements the stream endpoint: one UDP socket's
// send/receive state, source latching, codec list, TTL countdown, and
// per-stream counters.
package rtpstream

import (
	"fmt"
	"net"
	"net/netip"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rtpproxy/relay/internal/objkernel"
	"github.com/rtpproxy/relay/internal/rtpwire"
)

// Stream is one UDP socket's worth of relay state: one leg of a [Side] on
// one [PipeType], latched to a remote source, forwarding to its peer
// stream's confirmed or prefilled destination.
//
// A Stream owns exactly one socket at a time (see [Stream.SetSocket]).
// Its codec list, ptime, and resizer are mutated only by the command
// engine while holding mu; payload type and catch-dtmf data are mutated
// via atomic pointer swap so the data plane never blocks on them.
type Stream struct {
	Ref *objkernel.Ref

	// ID is this stream's weak registry key, minted once at
	// construction.
	ID uint64

	// PeerID is the weak id of the other stream in the same pipe. Never
	// a strong reference, to avoid an ownership cycle between the two
	// streams of a pipe (see internal/pipe).
	PeerID uint64

	Side     Side
	PipeType PipeType

	// LocalAddr is the bound local address; immutable after the first
	// listener is created for this stream.
	LocalAddr netip.AddrPort

	sock atomic.Pointer[net.UDPConn]

	mu            sync.Mutex
	latch         LatchState
	pendingSwap   bool
	lastSource    netip.AddrPort
	confirmedDest netip.AddrPort
	prefilledDest netip.AddrPort
	codecs        []int
	ptime         int
	resizer       *rtpwire.Resizer

	weak   atomic.Bool
	onHold atomic.Bool
	ttl    atomic.Int32

	payloadType   atomic.Int32
	catchDTMFData atomic.Pointer[any]

	rxPackets atomic.Uint64
	txPackets atomic.Uint64
	rxErrors  atomic.Uint64
}

// New returns a [*Stream] with a freshly minted weak id, unlatched, with
// ttl initially zero (callers should call [Stream.ResetTTLWith] before
// first use).
func New(side Side, pipeType PipeType, local netip.AddrPort) *Stream {
	s := &Stream{
		Ref:       objkernel.New(),
		ID:        objkernel.NextID(),
		Side:      side,
		PipeType:  pipeType,
		LocalAddr: local,
		latch:     Unlatched,
	}
	s.payloadType.Store(-1)
	return s
}

// SetWeak marks the stream as created in probe mode: it does not by
// itself sustain the owning session's strong count.
func (s *Stream) SetWeak(weak bool) { s.weak.Store(weak) }

// Weak reports whether the stream was created in probe mode.
func (s *Stream) Weak() bool { return s.weak.Load() }

// Socket returns the currently bound *net.UDPConn, or nil if none has
// been set yet.
func (s *Stream) Socket() *net.UDPConn {
	return s.sock.Load()
}

// SetSocket atomically swaps in a new socket, closing the previous one
// (if any) once it is safe to do so. Ownership of conn transfers to the
// stream.
func (s *Stream) SetSocket(conn *net.UDPConn) {
	prev := s.sock.Swap(conn)
	if prev != nil {
		prev.Close()
	}
}

// GetActor returns "caller" or "callee" for log formatting.
func (s *Stream) GetActor() string {
	return s.Side.String()
}

// RegOnHold raises the on-hold flag, suppressing forwarding until
// cleared.
func (s *Stream) RegOnHold() { s.onHold.Store(true) }

// ClearOnHold lowers the on-hold flag.
func (s *Stream) ClearOnHold() { s.onHold.Store(false) }

// OnHold reports whether forwarding is currently suppressed.
func (s *Stream) OnHold() bool { return s.onHold.Load() }

// ResetTTLWith rearms the TTL countdown to max seconds.
func (s *Stream) ResetTTLWith(max int) { s.ttl.Store(int32(max)) }

// GetRemainingTTL returns the current TTL countdown in seconds.
func (s *Stream) GetRemainingTTL() int { return int(s.ttl.Load()) }

// TickTTL decrements the TTL by one second and returns the new value. It
// does not clamp below zero: a caller observing a non-positive value
// should treat the stream as expired.
func (s *Stream) TickTTL() int {
	return int(s.ttl.Add(-1))
}

// PayloadType returns the negotiated RTP payload type, or -1 if unset.
// Safe for lock-free concurrent reads from the data plane.
func (s *Stream) PayloadType() int {
	return int(s.payloadType.Load())
}

// SetPayloadType atomically installs pt as the negotiated payload type.
func (s *Stream) SetPayloadType(pt int) {
	s.payloadType.Store(int32(pt))
}

// CatchDTMFData returns the currently installed catch-dtmf auxiliary
// value, or nil if none is installed. Safe for lock-free concurrent
// reads.
func (s *Stream) CatchDTMFData() any {
	p := s.catchDTMFData.Load()
	if p == nil {
		return nil
	}
	return *p
}

// SetCatchDTMFData atomically installs or clears (via nil) the
// catch-dtmf auxiliary value.
func (s *Stream) SetCatchDTMFData(v any) {
	if v == nil {
		s.catchDTMFData.Store(nil)
		return
	}
	s.catchDTMFData.Store(&v)
}

// SetCodecs replaces the stream's codec list and requested ptime. Must be
// called by the command engine only; it takes the stream mutex.
func (s *Stream) SetCodecs(codecs []int, ptime int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.codecs = codecs
	s.ptime = ptime
}

// Codecs returns a copy of the stream's codec list and requested ptime.
func (s *Stream) Codecs() ([]int, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]int, len(s.codecs))
	copy(out, s.codecs)
	return out, s.ptime
}

// SetResizer installs or clears (via nil) the ptime resizer for this
// stream, mutated by the control plane for the opposite side's ptime per
// the UPDATE processing sequence. Packets received on this stream are
// re-paced by r, if set, before being forwarded to the peer stream.
func (s *Stream) SetResizer(r *rtpwire.Resizer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resizer = r
}

// GetResizer returns the currently installed resizer, or nil.
func (s *Stream) GetResizer() *rtpwire.Resizer {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.resizer
}

// PrefillAddr sets or replaces the pending remote destination. If the
// stream is already latched and the new address differs from the
// confirmed destination, the latch is marked "pending swap", taking
// effect only once control confirms it via [Stream.LockLatch] or a
// matching received source.
func (s *Stream) PrefillAddr(addr netip.AddrPort, now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prefilledDest = addr
	if s.latch == Latched && s.confirmedDest != addr {
		s.pendingSwap = true
	}
}

// LockLatch enters the locked state: subsequently no received source may
// change the latch. Used for asymmetric-mode streams.
func (s *Stream) LockLatch() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.latch = Locked
	s.pendingSwap = false
	if s.prefilledDest.IsValid() {
		s.confirmedDest = s.prefilledDest
	}
}

// LatchState returns the stream's current latch state.
func (s *Stream) LatchState() LatchState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.latch
}

// Dest returns the current send destination: the confirmed destination if
// latched or locked, else the prefilled destination, else the zero value.
func (s *Stream) Dest() netip.AddrPort {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.confirmedDest.IsValid() {
		return s.confirmedDest
	}
	return s.prefilledDest
}

// observeSource applies the latch state machine to a received source
// address and reports whether the packet should be accepted (i.e. not
// dropped for a latch mismatch). Called with mu held.
func (s *Stream) observeSource(src netip.AddrPort) bool {
	switch s.latch {
	case Unlatched:
		s.lastSource = src
		s.confirmedDest = src
		s.latch = Latched
		return true
	case Latched:
		if src == s.confirmedDest {
			s.lastSource = src
			return true
		}
		if s.pendingSwap && src == s.prefilledDest {
			s.confirmedDest = src
			s.lastSource = src
			s.pendingSwap = false
			return true
		}
		s.lastSource = src
		return false
	case Locked:
		return src == s.confirmedDest
	default:
		return false
	}
}

// OnRx is invoked by the external receive loop for every packet read
// from this stream's socket. It applies the latch rules, updates
// counters, and forwards the payload to peer's current destination
// socket. Delivery order and counter updates are monotonic within one
// stream because the receive loop calls OnRx from a single goroutine per
// stream.
func (s *Stream) OnRx(src netip.AddrPort, payload []byte, peer *Stream) error {
	s.mu.Lock()
	accepted := s.observeSource(src)
	resizer := s.resizer
	s.mu.Unlock()

	if !accepted {
		s.rxErrors.Add(1)
		return fmt.Errorf("rtpstream: packet from %s rejected by latch in state %s", src, s.LatchState())
	}
	s.rxPackets.Add(1)

	if s.OnHold() {
		return nil
	}
	dest := peer.Dest()
	if !dest.IsValid() {
		return nil
	}
	sock := peer.Socket()
	if sock == nil {
		return nil
	}

	frames := [][]byte{payload}
	if resizer != nil {
		if resized, err := resizer.Push(payload); err == nil {
			frames = resized
		}
	}
	for _, frame := range frames {
		if len(frame) == 0 {
			continue
		}
		if pt := peer.PayloadType(); pt >= 0 {
			if hdr, err := rtpwire.ParseHeader(frame); err == nil && int(hdr.PayloadType) != pt {
				if rewritten, err := rtpwire.RewritePayloadType(frame, uint8(pt)); err == nil {
					frame = rewritten
				}
			}
		}
		if _, err := sock.WriteToUDPAddrPort(frame, dest); err != nil {
			s.rxErrors.Add(1)
			return fmt.Errorf("rtpstream: forward to %s: %w", dest, err)
		}
		peer.txPackets.Add(1)
	}
	return nil
}

// Counters returns the stream's rx packet, tx packet, and rx error
// counts.
func (s *Stream) Counters() (rx, tx, errs uint64) {
	return s.rxPackets.Load(), s.txPackets.Load(), s.rxErrors.Load()
}
