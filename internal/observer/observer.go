// SPDX-License-Identifier: GPL-3.0-or-later
//
// Grounded on spec.md §4.6 and the teacher's observeconn.go, generalized
// from "observe one net.Conn's I/O for logging" to "run an ordered list of
// taste/enqueue pairs over every received packet".
package observer

import (
	"github.com/rtpproxy/relay/internal/pipe"
	"github.com/rtpproxy/relay/internal/rtpstream"
)

// Probe is the context built for each received packet and offered to
// every registered taste function in turn.
type Probe struct {
	Pipe    *pipe.Pipe
	Stream  *rtpstream.Stream
	Side    rtpstream.Side
	Packet  []byte

	// Aux is scratch storage a Taste function may use to stash data for
	// its paired Enqueue function's consumption.
	Aux any
}

// Taste reports whether p matches this observer and should be enqueued.
// It may mutate p.Aux to pass data to the paired [Enqueue] function.
type Taste func(p *Probe) bool

// Enqueue hands p off to the observer's worker without blocking the data
// path. Implementations are responsible for incrementing refcounts on
// anything they retain beyond the call.
type Enqueue func(p *Probe)

type registration struct {
	taste   Taste
	enqueue Enqueue
}

// Manager runs an ordered list of (taste, enqueue) pairs over every
// packet passed to [Manager.Dispatch].
type Manager struct {
	regs []registration
}

// New returns an empty [*Manager].
func New() *Manager {
	return &Manager{}
}

// Reg appends a (taste, enqueue) pair to the dispatch order.
func (m *Manager) Reg(taste Taste, enqueue Enqueue) {
	m.regs = append(m.regs, registration{taste: taste, enqueue: enqueue})
}

// Dispatch builds a fresh [Probe] from pp, stream, side and packet and runs it
// through every registered observer in registration order, calling
// Enqueue for each Taste match. Dispatch never blocks beyond whatever a
// registered Enqueue itself does, and per spec.md §4.6 every Enqueue must
// be a non-blocking queue push.
func (m *Manager) Dispatch(pp *pipe.Pipe, stream *rtpstream.Stream, side rtpstream.Side, packet []byte) {
	for _, r := range m.regs {
		probe := &Probe{Pipe: pp, Stream: stream, Side: side, Packet: packet}
		if r.taste(probe) {
			r.enqueue(probe)
		}
	}
}

// Len returns the number of registered observers.
func (m *Manager) Len() int {
	return len(m.regs)
}
