// SPDX-License-Identifier: GPL-3.0-or-later

// Package pbuf provides the pooled packet buffers the data plane reads
// inbound RTP/RTCP datagrams into, avoiding one allocation per packet on
// the hot receive path the way github.com/sagernet/sing's own UDP
// transports do internally.
package pbuf

import "github.com/sagernet/sing/common/buf"

// MaxDatagramSize is the largest UDP payload a stream endpoint will ever
// read into a single buffer: larger than any plausible RTP/RTCP packet,
// matching the conservative ceiling used by github.com/sagernet/sing's own
// packet-oriented connections.
const MaxDatagramSize = 65535

// Get returns a pooled [*buf.Buffer] sized for one datagram read. Callers
// must call Release when done with it.
func Get() *buf.Buffer {
	return buf.NewSize(MaxDatagramSize)
}

// Release returns b to the pool. It is a no-op if b is nil.
func Release(b *buf.Buffer) {
	if b == nil {
		return
	}
	b.Release()
}
