// SPDX-License-Identifier: GPL-3.0-or-later
//
// Grounded on the class/priority split in SagerNet-smux's writeRequest and
// CLASSID (github.com/sagernet/sing session.go), adapted from a
// control/data frame split into the three item kinds a module's worker
// thread actually consumes.
package workqueue

// Kind discriminates the payload carried by an [Item].
type Kind int

const (
	// KindSignal carries an out-of-band control value, notably TERM
	// (see [TERM]), used to wake a blocked consumer without a data item.
	KindSignal Kind = iota
	// KindData carries an opaque per-packet payload handed to a module's
	// worker thread by the packet observer bus.
	KindData
	// KindAPI carries a named control-plane request dispatched to a
	// module's accounting or control hook.
	KindAPI
)

// Signal values carried by a [KindSignal] item.
const (
	// TERM requests cooperative shutdown of the consumer loop. A
	// producer enqueues it exactly once per consumer as the last item it
	// ever sends.
	TERM int = iota
)

// Item is one entry in a [Queue]: a signal, a data payload, or an API
// call, each produced in FIFO order per-producer but interleaved
// arbitrarily with items from other producers.
type Item struct {
	Kind Kind

	// Signal is valid when Kind == KindSignal.
	Signal int

	// Data is valid when Kind == KindData: an opaque payload (e.g. the
	// dtmf.Job the packet observer bus queues) plus its length.
	Data    any
	DataLen int

	// APIName and APIPayload are valid when Kind == KindAPI.
	APIName    string
	APIPayload any
}

// NewSignal returns a [KindSignal] item.
func NewSignal(sig int) Item {
	return Item{Kind: KindSignal, Signal: sig}
}

// NewData returns a [KindData] item.
func NewData(data any, length int) Item {
	return Item{Kind: KindData, Data: data, DataLen: length}
}

// NewAPI returns a [KindAPI] item.
func NewAPI(name string, payload any) Item {
	return Item{Kind: KindAPI, APIName: name, APIPayload: payload}
}

// IsShutdown reports whether item is the TERM signal sentinel.
func (it Item) IsShutdown() bool {
	return it.Kind == KindSignal && it.Signal == TERM
}
