// SPDX-License-Identifier: GPL-3.0-or-later

package objkernel

import (
	"sync/atomic"
)

// Ref is a reference count with an attachable destructor.
//
// A newly constructed [Ref] starts with a count of one, representing the
// strong hold implicitly owned by whoever called [New]. Use [Ref.Incref]
// to add further strong holds and [Ref.Decref] to release them; when the
// count reaches zero the attached destructor runs exactly once.
//
// The zero value is not usable; use [New].
type Ref struct {
	count atomic.Int32
	dtor  atomic.Pointer[func()]
}

// New returns a [Ref] with an initial count of one.
func New() *Ref {
	r := &Ref{}
	r.count.Store(1)
	return r
}

// Attach registers the destructor to run when the count reaches zero.
//
// Attaching a second destructor is a programming error and panics: the
// object kernel treats double-attach as a Fatal-class invariant violation,
// not a recoverable error.
func (r *Ref) Attach(dtor func()) {
	f := dtor
	if !r.dtor.CompareAndSwap(nil, &f) {
		panic("objkernel: destructor already attached")
	}
}

// Incref adds a strong hold and reports whether it succeeded. It fails
// (returns false) if the object is already dead — callers upgrading a weak
// id must check this return value rather than assume success.
func (r *Ref) Incref() bool {
	for {
		c := r.count.Load()
		if c <= 0 {
			return false
		}
		if r.count.CompareAndSwap(c, c+1) {
			return true
		}
	}
}

// Decref releases a strong hold. When the count reaches zero the attached
// destructor, if any, runs exactly once on the calling goroutine.
func (r *Ref) Decref() {
	n := r.count.Add(-1)
	switch {
	case n == 0:
		if p := r.dtor.Load(); p != nil {
			(*p)()
		}
	case n < 0:
		panic("objkernel: decref below zero")
	}
}

// Abort forces immediate destruction regardless of the current count, for
// use on constructor error paths where the object was never fully shared
// (e.g. a pipe whose second stream failed to allocate). It is safe to call
// at most once and must not be followed by further Incref/Decref calls.
func (r *Ref) Abort() {
	r.count.Store(0)
	if p := r.dtor.Load(); p != nil {
		(*p)()
	}
}

// Alive reports whether the object has not yet been destroyed. This is a
// best-effort snapshot; the result can be stale the instant it is returned.
func (r *Ref) Alive() bool {
	return r.count.Load() > 0
}
