// SPDX-License-Identifier: GPL-3.0-or-later

package observer

import (
	"net/netip"
	"testing"

	"github.com/rtpproxy/relay/internal/rtpstream"
	"github.com/stretchr/testify/assert"
)

func TestDispatchRunsInRegistrationOrder(t *testing.T) {
	m := New()
	var order []string

	m.Reg(func(p *Probe) bool {
		order = append(order, "first")
		return false
	}, func(p *Probe) {
		order = append(order, "first-enqueue")
	})
	m.Reg(func(p *Probe) bool {
		order = append(order, "second")
		return true
	}, func(p *Probe) {
		order = append(order, "second-enqueue")
	})

	s := rtpstream.New(rtpstream.Caller, rtpstream.RTP, netip.MustParseAddrPort("127.0.0.1:30000"))
	m.Dispatch(nil, s, rtpstream.Caller, []byte{0x80})

	assert.Equal(t, []string{"first", "second", "second-enqueue"}, order)
}

func TestTasteCanStashAux(t *testing.T) {
	m := New()
	var captured any
	m.Reg(func(p *Probe) bool {
		p.Aux = "dtmf-data"
		return true
	}, func(p *Probe) {
		captured = p.Aux
	})

	s := rtpstream.New(rtpstream.Caller, rtpstream.RTP, netip.MustParseAddrPort("127.0.0.1:30000"))
	m.Dispatch(nil, s, rtpstream.Caller, []byte{0x80})
	assert.Equal(t, "dtmf-data", captured)
}

func TestLenReflectsRegistrations(t *testing.T) {
	m := New()
	assert.Equal(t, 0, m.Len())
	m.Reg(func(p *Probe) bool { return false }, func(p *Probe) {})
	assert.Equal(t, 1, m.Len())
}
