// SPDX-License-Identifier: GPL-3.0-or-later
//
// Grounded on the teacher's connect.go Dialer abstraction and
// endpoint.go's NewEndpointFunc, generalized from dial-semantics (an
// abstract DialContext a pipeline Call wraps) to listen-semantics: the
// command engine needs a UDP *port pair*, not a dialed connection.
package netdial

import (
	"fmt"
	"net"
	"net/netip"
)

// PairAllocator allocates adjacent UDP port pairs bound to a given local
// address, the way the command engine's step 4 allocates ia[0] (RTP) and
// ia[1] (RTCP) with ia[1].port == ia[0].port + 1.
type PairAllocator interface {
	AllocatePair(local netip.Addr) (rtp, rtcp *net.UDPConn, err error)
}

// RangeAllocator allocates port pairs within [PortMin, PortMax] by linear
// probing: it tries successive even ports starting from an internal
// cursor, binding both ports of a candidate pair before accepting it, and
// rolls over to PortMin when it reaches PortMax.
type RangeAllocator struct {
	PortMin, PortMax int
	cursor           int
}

// NewRangeAllocator returns a [*RangeAllocator] bounded to [min, max].
func NewRangeAllocator(min, max int) *RangeAllocator {
	return &RangeAllocator{PortMin: min, PortMax: max, cursor: min}
}

// AllocatePair finds two adjacent free UDP ports bound to local and
// returns listening sockets for both. On failure, any partially bound
// socket is closed before returning.
func (a *RangeAllocator) AllocatePair(local netip.Addr) (rtp, rtcp *net.UDPConn, err error) {
	start := a.cursor
	for {
		port := a.cursor
		a.cursor += 2
		if a.cursor > a.PortMax {
			a.cursor = a.PortMin
		}

		rtpConn, err := listenUDP(local, port)
		if err != nil {
			if a.cursor == start {
				return nil, nil, fmt.Errorf("netdial: exhausted port range [%d,%d]: %w", a.PortMin, a.PortMax, err)
			}
			continue
		}
		rtcpConn, err := listenUDP(local, port+1)
		if err != nil {
			rtpConn.Close()
			if a.cursor == start {
				return nil, nil, fmt.Errorf("netdial: exhausted port range [%d,%d]: %w", a.PortMin, a.PortMax, err)
			}
			continue
		}
		return rtpConn, rtcpConn, nil
	}
}

func listenUDP(addr netip.Addr, port int) (*net.UDPConn, error) {
	return net.ListenUDP("udp", net.UDPAddrFromAddrPort(netip.AddrPortFrom(addr, uint16(port))))
}
