// SPDX-License-Identifier: GPL-3.0-or-later

package dtmf

import (
	"context"
	"net/netip"
	"testing"

	"github.com/rtpproxy/relay/internal/rtpstream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRTPHolder struct {
	caller, callee *rtpstream.Stream
}

func (f fakeRTPHolder) RTPStream(side rtpstream.Side) *rtpstream.Stream {
	if side == rtpstream.Caller {
		return f.caller
	}
	return f.callee
}

type fakeSessionFinder struct {
	byTag map[string]RTPHolder
}

func (f fakeSessionFinder) FindByTag(tag string) (RTPHolder, bool) {
	h, ok := f.byTag[tag]
	return h, ok
}

func TestCatchDTMFModuleInstallsBindingOnBothStreams(t *testing.T) {
	holder := fakeRTPHolder{
		caller: rtpstream.New(rtpstream.Caller, rtpstream.RTP, netip.MustParseAddrPort("127.0.0.1:0")),
		callee: rtpstream.New(rtpstream.Callee, rtpstream.RTP, netip.MustParseAddrPort("127.0.0.1:0")),
	}
	finder := fakeSessionFinder{byTag: map[string]RTPHolder{"my-tag": holder}}
	m := NewCatchDTMFModule(finder)

	err := m.HandleSubcommand(context.Background(), "catch_dtmf", []string{"my-tag", "101"})
	require.NoError(t, err)

	assert.Equal(t, Binding{PayloadType: 101}, holder.caller.CatchDTMFData())
	assert.Equal(t, Binding{PayloadType: 101}, holder.callee.CatchDTMFData())
}

func TestCatchDTMFModuleIgnoresOtherSubcommands(t *testing.T) {
	finder := fakeSessionFinder{byTag: map[string]RTPHolder{}}
	m := NewCatchDTMFModule(finder)
	assert.NoError(t, m.HandleSubcommand(context.Background(), "update", []string{"call-1", "from-tag"}))
}

func TestCatchDTMFModuleUnknownTagErrors(t *testing.T) {
	finder := fakeSessionFinder{byTag: map[string]RTPHolder{}}
	m := NewCatchDTMFModule(finder)
	err := m.HandleSubcommand(context.Background(), "catch_dtmf", []string{"no-such-tag", "101"})
	assert.Error(t, err)
}
