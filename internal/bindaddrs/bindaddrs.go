// SPDX-License-Identifier: GPL-3.0-or-later

// Package bindaddrs implements the read-mostly bind-addresses table the
// command engine consults when a U/L command does not name an explicit
// local address: mutated only at startup, read by every command
// thereafter, with readers pinning entries by reference count rather than
// holding a lock across the lifetime of a listener built from one.
package bindaddrs

import (
	"fmt"
	"net/netip"
	"sync"
	"sync/atomic"
)

// Entry is one configured local bind address.
type Entry struct {
	Addr netip.Addr
	refs atomic.Int64
}

// Pin increments the entry's reference count, pinning it in place for as
// long as the caller holds the pin. Unpin releases it.
func (e *Entry) Pin() { e.refs.Add(1) }

// Unpin releases a pin taken by [Entry.Pin].
func (e *Entry) Unpin() { e.refs.Add(-1) }

// Table is a read-mostly list of local bind addresses, populated once at
// startup. It may hold several addresses of one family; [Table.Lookup]
// returns the first of the requested family.
type Table struct {
	mu      sync.RWMutex
	entries []*Entry
}

// NewTable returns an empty [Table].
func NewTable() *Table {
	return &Table{}
}

// Add registers addr in the table. Intended to be called only during
// startup, before the table is read concurrently.
func (t *Table) Add(addr netip.Addr) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.entries = append(t.entries, &Entry{Addr: addr})
}

// Lookup returns the first entry matching the requested family (4 or 6),
// pinned, or false if none is configured.
func (t *Table) Lookup(family int) (*Entry, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	for _, e := range t.entries {
		isV4 := e.Addr.Is4()
		if (family == 4) == isV4 {
			e.Pin()
			return e, true
		}
	}
	return nil, false
}

// Primary returns the first configured entry, pinned, or false if the
// table is empty. It models "the primary bind address" referenced by the
// command engine's family-resolution step.
func (t *Table) Primary() (*Entry, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if len(t.entries) == 0 {
		return nil, false
	}
	e := t.entries[0]
	e.Pin()
	return e, true
}

// String implements [fmt.Stringer] for diagnostics.
func (t *Table) String() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return fmt.Sprintf("bindaddrs.Table{entries=%d}", len(t.entries))
}
