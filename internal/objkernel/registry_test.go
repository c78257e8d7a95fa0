// SPDX-License-Identifier: GPL-3.0-or-later

package objkernel

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryLookupResolvesWhileAlive(t *testing.T) {
	reg := NewRegistry[string](0)
	ref := New()
	id := NextID()
	require.NoError(t, reg.Register(id, ref, "payload"))

	val, release, ok := reg.Lookup(id)
	require.True(t, ok)
	assert.Equal(t, "payload", val)
	release()
}

func TestRegistryLookupFailsAfterDeath(t *testing.T) {
	reg := NewRegistry[string](0)
	ref := New()
	id := NextID()
	require.NoError(t, reg.Register(id, ref, "payload"))
	ref.Decref()

	_, _, ok := reg.Lookup(id)
	assert.False(t, ok)
	assert.Equal(t, 0, reg.Len())
}

func TestRegistryLookupMissingID(t *testing.T) {
	reg := NewRegistry[string](0)
	_, _, ok := reg.Lookup(NoID)
	assert.False(t, ok)
}

func TestRegistryUnregister(t *testing.T) {
	reg := NewRegistry[int](0)
	ref := New()
	id := NextID()
	require.NoError(t, reg.Register(id, ref, 1))
	reg.Unregister(id)
	_, _, ok := reg.Lookup(id)
	assert.False(t, ok)
}

func TestRegistryCapacityExhausted(t *testing.T) {
	reg := NewRegistry[int](shardCount) // forces per-shard capacity of 1
	ref := New()
	id := uint64(1) // shard 1
	require.NoError(t, reg.Register(id, ref, 1))

	id2 := id + shardCount // same shard, different id
	err := reg.Register(id2, New(), 2)
	assert.ErrorIs(t, err, ErrResourceExhausted)
}
