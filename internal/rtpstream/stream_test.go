// SPDX-License-Identifier: GPL-3.0-or-later

package rtpstream

import (
	"net"
	"net/netip"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustListenUDP(t *testing.T) *net.UDPConn {
	t.Helper()
	conn, err := net.ListenUDP("udp4", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	require.NoError(t, err)
	return conn
}

func TestNewStreamDefaults(t *testing.T) {
	s := New(Caller, RTP, netip.MustParseAddrPort("127.0.0.1:30000"))
	assert.Equal(t, Unlatched, s.LatchState())
	assert.Equal(t, -1, s.PayloadType())
	assert.False(t, s.Weak())
	assert.False(t, s.OnHold())
	assert.Equal(t, "caller", s.GetActor())
}

func TestLatchCapturesFirstSource(t *testing.T) {
	s := New(Caller, RTP, netip.MustParseAddrPort("127.0.0.1:30000"))
	peer := New(Callee, RTP, netip.MustParseAddrPort("127.0.0.1:30002"))
	peer.SetSocket(mustListenUDP(t))
	s.SetSocket(mustListenUDP(t))

	src := netip.MustParseAddrPort("203.0.113.5:4000")
	err := s.OnRx(src, []byte{0x80, 0x00}, peer)
	require.NoError(t, err)
	assert.Equal(t, Latched, s.LatchState())

	rx, _, errs := s.Counters()
	assert.Equal(t, uint64(1), rx)
	assert.Equal(t, uint64(0), errs)
}

func TestLatchRejectsMismatchedSource(t *testing.T) {
	s := New(Caller, RTP, netip.MustParseAddrPort("127.0.0.1:30000"))
	peer := New(Callee, RTP, netip.MustParseAddrPort("127.0.0.1:30002"))
	peer.SetSocket(mustListenUDP(t))
	s.SetSocket(mustListenUDP(t))

	first := netip.MustParseAddrPort("203.0.113.5:4000")
	other := netip.MustParseAddrPort("203.0.113.6:4000")

	require.NoError(t, s.OnRx(first, []byte{0x80}, peer))
	err := s.OnRx(other, []byte{0x80}, peer)
	assert.Error(t, err)

	_, _, errs := s.Counters()
	assert.Equal(t, uint64(1), errs)
}

func TestLockedLatchRejectsAllButConfirmed(t *testing.T) {
	s := New(Caller, RTP, netip.MustParseAddrPort("127.0.0.1:30000"))
	peer := New(Callee, RTP, netip.MustParseAddrPort("127.0.0.1:30002"))
	peer.SetSocket(mustListenUDP(t))
	s.SetSocket(mustListenUDP(t))

	confirmed := netip.MustParseAddrPort("203.0.113.5:4000")
	s.PrefillAddr(confirmed, time.Now())
	s.LockLatch()
	assert.Equal(t, Locked, s.LatchState())

	require.NoError(t, s.OnRx(confirmed, []byte{0x80}, peer))

	other := netip.MustParseAddrPort("203.0.113.9:4000")
	err := s.OnRx(other, []byte{0x80}, peer)
	assert.Error(t, err)
}

func TestPrefillAddrMarksPendingSwapWhenLatched(t *testing.T) {
	s := New(Caller, RTP, netip.MustParseAddrPort("127.0.0.1:30000"))
	peer := New(Callee, RTP, netip.MustParseAddrPort("127.0.0.1:30002"))
	peer.SetSocket(mustListenUDP(t))
	s.SetSocket(mustListenUDP(t))

	first := netip.MustParseAddrPort("203.0.113.5:4000")
	require.NoError(t, s.OnRx(first, []byte{0x80}, peer))

	newDest := netip.MustParseAddrPort("203.0.113.8:4000")
	s.PrefillAddr(newDest, time.Now())

	require.NoError(t, s.OnRx(newDest, []byte{0x80}, peer))
	assert.Equal(t, newDest, s.Dest())
}

func TestOnHoldSuppressesForward(t *testing.T) {
	s := New(Caller, RTP, netip.MustParseAddrPort("127.0.0.1:30000"))
	peer := New(Callee, RTP, netip.MustParseAddrPort("127.0.0.1:30002"))
	peer.SetSocket(mustListenUDP(t))
	s.SetSocket(mustListenUDP(t))
	s.RegOnHold()

	src := netip.MustParseAddrPort("203.0.113.5:4000")
	require.NoError(t, s.OnRx(src, []byte{0x80}, peer))
	_, tx, _ := peer.Counters()
	assert.Equal(t, uint64(0), tx)
}

func TestTTLTickAndReset(t *testing.T) {
	s := New(Caller, RTP, netip.MustParseAddrPort("127.0.0.1:30000"))
	s.ResetTTLWith(5)
	assert.Equal(t, 5, s.GetRemainingTTL())
	assert.Equal(t, 4, s.TickTTL())
}

func TestPayloadTypeAtomicSwap(t *testing.T) {
	s := New(Caller, RTP, netip.MustParseAddrPort("127.0.0.1:30000"))
	s.SetPayloadType(8)
	assert.Equal(t, 8, s.PayloadType())
}

func TestCatchDTMFDataSwap(t *testing.T) {
	s := New(Caller, RTP, netip.MustParseAddrPort("127.0.0.1:30000"))
	assert.Nil(t, s.CatchDTMFData())
	s.SetCatchDTMFData("some-tag")
	assert.Equal(t, "some-tag", s.CatchDTMFData())
	s.SetCatchDTMFData(nil)
	assert.Nil(t, s.CatchDTMFData())
}

func TestCodecsCopySemantics(t *testing.T) {
	s := New(Caller, RTP, netip.MustParseAddrPort("127.0.0.1:30000"))
	s.SetCodecs([]int{0, 8}, 20)
	codecs, ptime := s.Codecs()
	assert.Equal(t, []int{0, 8}, codecs)
	assert.Equal(t, 20, ptime)

	codecs[0] = 99
	codecs2, _ := s.Codecs()
	assert.Equal(t, 0, codecs2[0])
}
