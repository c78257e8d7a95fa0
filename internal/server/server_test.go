// SPDX-License-Identifier: GPL-3.0-or-later

package server

import (
	"context"
	"net/netip"
	"testing"

	"github.com/rtpproxy/relay/internal/config"
	"github.com/rtpproxy/relay/internal/dtmf"
	"github.com/rtpproxy/relay/internal/module"
	"github.com/rtpproxy/relay/internal/rlog"
	"github.com/rtpproxy/relay/internal/rtpstream"
	"github.com/rtpproxy/relay/internal/session"
	"github.com/rtpproxy/relay/internal/stats"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeNotifier struct {
	scheduled []string
}

func (f *fakeNotifier) Schedule(target, line, kind string) {
	f.scheduled = append(f.scheduled, target+"|"+line+"|"+kind)
}

func newTestServer(t *testing.T) (*Server, *fakeNotifier) {
	t.Helper()
	cfg := config.New()
	cfg.BindAddrs.Add(netip.MustParseAddr("127.0.0.1"))
	cfg.PortMin, cfg.PortMax = 36000, 36040
	notifier := &fakeNotifier{}
	s := New(cfg, stats.Discard(), notifier, module.NewRegistry(rlog.Discard()))
	return s, notifier
}

func TestNewRegistersThreeObservers(t *testing.T) {
	s, _ := newTestServer(t)
	assert.Equal(t, 3, s.observers.Len())
}

func TestHandleControlLineCreatesSession(t *testing.T) {
	s, _ := newTestServer(t)
	reply := s.handleControlLine(context.Background(), "1 U call-1 from-tag 192.0.2.10 30000")
	assert.Contains(t, reply, "1 ")
	assert.Equal(t, 1, s.registry.Len())
}

func TestHandleControlLineMalformedReturnsE1(t *testing.T) {
	s, _ := newTestServer(t)
	reply := s.handleControlLine(context.Background(), "bad")
	assert.Equal(t, "0 E1", reply)
}

func TestHandleControlLineUnknownSessionReturnsError(t *testing.T) {
	s, _ := newTestServer(t)
	reply := s.handleControlLine(context.Background(), "1 L call-missing from-tag to-tag 192.0.2.10 30000")
	assert.Contains(t, reply, "1 E")
}

func TestEnsureReceiveLoopsStartsEachStreamOnce(t *testing.T) {
	s, _ := newTestServer(t)
	s.handleControlLine(context.Background(), "1 U call-2 from-tag 192.0.2.10 30000")

	sessions := s.registry.All()
	require.Len(t, sessions, 1)
	sess := sessions[0]

	started := 0
	for id := range s.startedStreams {
		_ = id
		started++
	}
	assert.Greater(t, started, 0)

	callerID := sess.RTP().Stream(0).ID
	_, present := s.startedStreams[callerID]
	assert.True(t, present)

	s.ensureReceiveLoops(context.Background())
	assert.Len(t, s.startedStreams, started)
}

func TestExpirePipeRemovesSessionAndNotifies(t *testing.T) {
	s, notifier := newTestServer(t)
	s.handleControlLine(context.Background(), "1 U call-3 from-tag 192.0.2.10 30000")

	sessions := s.registry.All()
	require.Len(t, sessions, 1)
	sess := sessions[0]
	sess.Notify = &session.NotifyData{Socket: "/tmp/doesnotmatter.sock", Tag: "tag-x"}

	s.ExpirePipe(sess.RTP())

	assert.Equal(t, 0, s.registry.Len())
	require.Len(t, notifier.scheduled, 1)
	assert.Contains(t, notifier.scheduled[0], "tag-x 0")
}

func TestLivePipesListsBothPipesPerSession(t *testing.T) {
	s, _ := newTestServer(t)
	s.handleControlLine(context.Background(), "1 U call-4 from-tag 192.0.2.10 30000")

	pipes := s.LivePipes()
	assert.Len(t, pipes, 2)
}

func TestHandleControlLineDispatchesCatchDTMFSubcommand(t *testing.T) {
	s, _ := newTestServer(t)
	s.handleControlLine(context.Background(), "1 U call-5 from-tag 192.0.2.10 30000")

	sessions := s.registry.All()
	require.Len(t, sessions, 1)
	sess := sessions[0]
	sess.Notify = &session.NotifyData{Socket: "/tmp/doesnotmatter.sock", Tag: "my-tag"}

	reply := s.handleControlLine(context.Background(), "2 M1:catch_dtmf my-tag 101")
	assert.Equal(t, "2 0", reply)

	want := dtmf.Binding{PayloadType: 101}
	assert.Equal(t, want, sess.RTP().Stream(rtpstream.Caller).CatchDTMFData())
	assert.Equal(t, want, sess.RTP().Stream(rtpstream.Callee).CatchDTMFData())
}

func TestHandleControlLineCatchDTMFUnknownTagFails(t *testing.T) {
	s, _ := newTestServer(t)
	reply := s.handleControlLine(context.Background(), "1 M1:catch_dtmf no-such-tag 101")
	assert.Equal(t, "1 E1", reply)
}

func TestDtmfPayloadTypeUsesPerCallBindingOverride(t *testing.T) {
	s, _ := newTestServer(t)
	s.cfg.DTMFPayloadType = 101

	stream := rtpstream.New(rtpstream.Caller, rtpstream.RTP, netip.MustParseAddrPort("127.0.0.1:0"))
	assert.Equal(t, 101, s.dtmfPayloadType(stream))

	stream.SetCatchDTMFData(dtmf.Binding{PayloadType: 96})
	assert.Equal(t, 96, s.dtmfPayloadType(stream))
}
