// SPDX-License-Identifier: GPL-3.0-or-later
//
// Grounded on spec.md §4.5: a call-id keyed table with newest-first
// insertion order, one-sided tag matching for UPDATE and two-sided for
// LOOKUP.
package session

import (
	"sync"
)

// MatchMode selects how strictly tags must match a call-id's sessions.
type MatchMode int

const (
	// OneSided accepts a match on from-tag alone, used by UPDATE.
	OneSided MatchMode = iota
	// TwoSided requires both from-tag and to-tag to match, used by
	// LOOKUP.
	TwoSided
)

// Handle is the opaque token returned by [Registry.Insert], required by
// [Registry.Remove].
type Handle struct {
	callID string
	seq    uint64
}

// Registry is a call-id keyed table of sessions: duplicates under one
// call-id are allowed and searched newest-first.
type Registry struct {
	mu    sync.RWMutex
	bySeq uint64
	rows  map[string][]entryRow
}

type entryRow struct {
	seq     uint64
	session *Session
}

// NewRegistry returns an empty [*Registry].
func NewRegistry() *Registry {
	return &Registry{rows: make(map[string][]entryRow)}
}

// Insert adds s under its call-id, returning a [Handle] for later
// [Registry.Remove]. The most recently inserted row for a call-id is
// searched first by [Registry.Lookup].
func (r *Registry) Insert(s *Session) Handle {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.bySeq++
	seq := r.bySeq
	row := entryRow{seq: seq, session: s}
	r.rows[s.CallID] = append([]entryRow{row}, r.rows[s.CallID]...)
	return Handle{callID: s.CallID, seq: seq}
}

// Remove deletes the row identified by h, if present.
func (r *Registry) Remove(h Handle) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rows := r.rows[h.callID]
	for i, row := range rows {
		if row.seq == h.seq {
			r.rows[h.callID] = append(rows[:i], rows[i+1:]...)
			if len(r.rows[h.callID]) == 0 {
				delete(r.rows, h.callID)
			}
			return
		}
	}
}

// Lookup searches call-id's rows newest-first for a tag match under mode,
// returning the first hit.
//
// OneSided matches fromTag against either the row's FromTag or ToTag
// (UPDATE may arrive for either leg of the call). TwoSided additionally
// requires toTag to match the row's ToTag.
func (r *Registry) Lookup(callID, fromTag, toTag string, mode MatchMode) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, row := range r.rows[callID] {
		s := row.session
		switch mode {
		case OneSided:
			if s.FromTag == fromTag || s.ToTag == fromTag {
				return s, true
			}
		case TwoSided:
			if s.FromTag == fromTag && s.ToTag == toTag {
				return s, true
			}
		}
	}
	return nil, false
}

// FindByTag searches every row, newest-first, for a session whose
// timeout-notify tag equals tag. Used by the catch_dtmf subcommand,
// which names its session by notify tag rather than by call-id/from-tag
// the way U/L requests do.
func (r *Registry) FindByTag(tag string) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, rows := range r.rows {
		for _, row := range rows {
			if row.session.Notify != nil && row.session.Notify.Tag == tag {
				return row.session, true
			}
		}
	}
	return nil, false
}

// Count returns the number of rows currently registered under callID.
func (r *Registry) Count(callID string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rows[callID])
}

// Len returns the total number of sessions registered across all call
// ids.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := 0
	for _, rows := range r.rows {
		n += len(rows)
	}
	return n
}

// All returns every session currently registered, across all call ids,
// in unspecified order. Used by the TTL scanner, which needs to visit
// every live session's pipes once per tick rather than look one up by
// key.
func (r *Registry) All() []*Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Session, 0, len(r.rows))
	for _, rows := range r.rows {
		for _, row := range rows {
			out = append(out, row.session)
		}
	}
	return out
}

// RemoveSession removes every row belonging to s across all call ids.
// Used by the TTL scanner to tear down an expired session without
// needing to retain the [Handle] from [Registry.Insert].
func (r *Registry) RemoveSession(s *Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rows := r.rows[s.CallID]
	for i, row := range rows {
		if row.session == s {
			r.rows[s.CallID] = append(rows[:i:i], rows[i+1:]...)
			if len(r.rows[s.CallID]) == 0 {
				delete(r.rows, s.CallID)
			}
			return
		}
	}
}
