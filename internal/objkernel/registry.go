// SPDX-License-Identifier: GPL-3.0-or-later

package objkernel

import (
	"errors"
	"sync"
)

// ErrResourceExhausted is returned by [Registry.Register] when the registry
// has reached its configured capacity.
var ErrResourceExhausted = errors.New("objkernel: weak registry full")

const shardCount = 16

// Registry is a weak-id registry mapping 64-bit ids to weak holds of value
// type T paired with their owning [Ref]. A weak hold never keeps the target
// alive; [Registry.Lookup] upgrades it to a temporary strong hold only while
// the target is alive.
//
// Registry is implemented as a set of independently locked shards so that
// lookups against different ids do not contend with each other, and so a
// single hot call-id bucket does not serialize the whole table.
type Registry[T any] struct {
	capacity int // 0 means unbounded
	shards   [shardCount]shard[T]
}

type shard[T any] struct {
	mu sync.RWMutex
	m  map[uint64]entry[T]
}

type entry[T any] struct {
	ref *Ref
	val T
}

// NewRegistry returns an empty [Registry]. A capacity of 0 means unbounded.
func NewRegistry[T any](capacity int) *Registry[T] {
	reg := &Registry[T]{capacity: capacity}
	for i := range reg.shards {
		reg.shards[i].m = make(map[uint64]entry[T])
	}
	return reg
}

func (r *Registry[T]) shardFor(id uint64) *shard[T] {
	return &r.shards[id%shardCount]
}

// Register inserts a weak hold for id. It does not take a strong hold of
// ref; the caller retains ownership of the strong hold it already has.
func (r *Registry[T]) Register(id uint64, ref *Ref, val T) error {
	sh := r.shardFor(id)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	if r.capacity > 0 {
		perShard := r.capacity / shardCount
		if perShard < 1 {
			perShard = 1
		}
		if _, exists := sh.m[id]; !exists && len(sh.m) >= perShard {
			return ErrResourceExhausted
		}
	}
	sh.m[id] = entry[T]{ref: ref, val: val}
	return nil
}

// Unregister removes the weak hold for id, if present.
func (r *Registry[T]) Unregister(id uint64) {
	sh := r.shardFor(id)
	sh.mu.Lock()
	delete(sh.m, id)
	sh.mu.Unlock()
}

// Lookup upgrades the weak hold for id to a temporary strong hold. It
// returns the stored value, a release func to call when done with the
// strong hold, and true on success. If the target has already been
// destroyed, Lookup opportunistically evicts the stale entry and returns
// false.
func (r *Registry[T]) Lookup(id uint64) (val T, release func(), ok bool) {
	sh := r.shardFor(id)
	sh.mu.RLock()
	e, present := sh.m[id]
	sh.mu.RUnlock()
	if !present {
		return val, nil, false
	}
	if !e.ref.Incref() {
		r.Unregister(id)
		return val, nil, false
	}
	return e.val, e.ref.Decref, true
}

// Len returns the number of registered weak holds.
func (r *Registry[T]) Len() int {
	n := 0
	for i := range r.shards {
		r.shards[i].mu.RLock()
		n += len(r.shards[i].m)
		r.shards[i].mu.RUnlock()
	}
	return n
}

