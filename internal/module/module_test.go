// SPDX-License-Identifier: GPL-3.0-or-later

package module

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rtpproxy/relay/internal/rlog"
	"github.com/rtpproxy/relay/internal/workqueue"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type accountingModule struct {
	name        string
	sessionEnds atomic.Int32
	rtcpEvents  atomic.Int32
}

func (m *accountingModule) Name() string { return m.name }
func (m *accountingModule) Descriptor() Descriptor {
	return Descriptor{Revision: HostRevision, BuildString: "test-build"}
}
func (m *accountingModule) OnSessionEnd(ctx context.Context, sessionID uint64) {
	m.sessionEnds.Add(1)
}
func (m *accountingModule) OnRTCPReceived(ctx context.Context, sessionID uint64, payload []byte) {
	m.rtcpEvents.Add(1)
}

type controlOnlyModule struct {
	handled atomic.Int32
}

func (m *controlOnlyModule) Name() string { return "control-only" }
func (m *controlOnlyModule) Descriptor() Descriptor {
	return Descriptor{Revision: HostRevision, BuildString: "test-build"}
}
func (m *controlOnlyModule) HandleSubcommand(ctx context.Context, name string, args []string) error {
	m.handled.Add(1)
	return nil
}

func TestRegisterRejectsMismatchedRevision(t *testing.T) {
	r := NewRegistry(rlog.Discard())
	mod := &accountingModule{name: "bad-rev"}
	_, err := r.Register(context.Background(), badDescriptorModule{mod})
	assert.Error(t, err)
}

type badDescriptorModule struct {
	*accountingModule
}

func (badDescriptorModule) Descriptor() Descriptor {
	return Descriptor{Revision: HostRevision + 1, BuildString: "future"}
}

func TestAccountingModuleReceivesDoAcct(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	r := NewRegistry(rlog.Discard())
	mod := &accountingModule{name: "acct"}
	q, err := r.Register(ctx, mod)
	require.NoError(t, err)
	require.NotNil(t, q)

	r.DoAcct(ctx, 42)
	r.DoAcctRTCP(ctx, 42, []byte{1, 2, 3})

	require.Eventually(t, func() bool {
		return mod.sessionEnds.Load() == 1 && mod.rtcpEvents.Load() == 1
	}, time.Second, time.Millisecond)
}

func TestControlOnlyModuleGetsNoQueue(t *testing.T) {
	r := NewRegistry(rlog.Discard())
	mod := &controlOnlyModule{}
	q, err := r.Register(context.Background(), mod)
	require.NoError(t, err)
	assert.Nil(t, q)
}

func TestHandleSubcommandDispatchesToControlPlaneHooks(t *testing.T) {
	r := NewRegistry(rlog.Discard())
	mod := &controlOnlyModule{}
	_, err := r.Register(context.Background(), mod)
	require.NoError(t, err)

	err = r.HandleSubcommand(context.Background(), "foo", nil)
	require.NoError(t, err)
	assert.Equal(t, int32(1), mod.handled.Load())
}

func TestShutdownJoinsAllConsumers(t *testing.T) {
	ctx := context.Background()
	r := NewRegistry(rlog.Discard())
	mod := &accountingModule{name: "acct-shutdown"}
	_, err := r.Register(ctx, mod)
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		r.Shutdown(ctx)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("shutdown did not join consumer goroutine in time")
	}
}

func TestQueueCapacityIsPositive(t *testing.T) {
	assert.Greater(t, QueueCapacity, 0)
	q := workqueue.New(QueueCapacity)
	assert.Equal(t, 0, q.Len())
}
