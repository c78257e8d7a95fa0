// SPDX-License-Identifier: GPL-3.0-or-later

package netdial

import (
	"net"
	"net/netip"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAllocatePairBindsAdjacentPorts(t *testing.T) {
	a := NewRangeAllocator(40000, 40100)
	local := netip.MustParseAddr("127.0.0.1")

	rtp, rtcp, err := a.AllocatePair(local)
	require.NoError(t, err)
	defer rtp.Close()
	defer rtcp.Close()

	rtpAddr := rtp.LocalAddr().(*net.UDPAddr)
	rtcpAddr := rtcp.LocalAddr().(*net.UDPAddr)
	assert.Equal(t, rtpAddr.Port+1, rtcpAddr.Port)
}

func TestAllocatePairAdvancesCursor(t *testing.T) {
	a := NewRangeAllocator(40200, 40300)

	local := netip.MustParseAddr("127.0.0.1")
	rtp1, rtcp1, err := a.AllocatePair(local)
	require.NoError(t, err)
	defer rtp1.Close()
	defer rtcp1.Close()

	rtp2, rtcp2, err := a.AllocatePair(local)
	require.NoError(t, err)
	defer rtp2.Close()
	defer rtcp2.Close()

	addr1 := rtp1.LocalAddr().(*net.UDPAddr)
	addr2 := rtp2.LocalAddr().(*net.UDPAddr)
	assert.NotEqual(t, addr1.Port, addr2.Port)
}
