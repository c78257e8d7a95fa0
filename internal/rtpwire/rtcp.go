// SPDX-License-Identifier: GPL-3.0-or-later
//
// Grounded on github.com/pion/rtcp and other_examples'
// vopenia-io-media-sdk/rtcp.go, whose AcceptStream loop unmarshals a
// datagram into a []rtcp.Packet and switches on *rtcp.SenderReport /
// *rtcp.ReceiverReport to recover the reporting SSRC.
package rtpwire

import (
	"fmt"

	"github.com/pion/rtcp"
)

// ParseRTCP decodes one or more compound RTCP packets from buf.
func ParseRTCP(buf []byte) ([]rtcp.Packet, error) {
	pkts, err := rtcp.Unmarshal(buf)
	if err != nil {
		return nil, fmt.Errorf("rtpwire: parse rtcp: %w", err)
	}
	return pkts, nil
}

// ReportSummary is the subset of an RTCP sender/receiver report the
// accounting module records per spec.md's RTCP-accounting hook.
type ReportSummary struct {
	SSRC         uint32
	FractionLost uint8
	Jitter       uint32
}

// Summarize extracts a [ReportSummary] from the first sender or receiver
// report found in pkts, in the order vopenia-io-media-sdk's SSRC-recovery
// switch does. It reports false if pkts carries neither.
func Summarize(pkts []rtcp.Packet) (ReportSummary, bool) {
	for _, pkt := range pkts {
		switch p := pkt.(type) {
		case *rtcp.SenderReport:
			return ReportSummary{SSRC: p.SSRC}, true
		case *rtcp.ReceiverReport:
			if len(p.Reports) == 0 {
				return ReportSummary{SSRC: p.SSRC}, true
			}
			r := p.Reports[0]
			return ReportSummary{SSRC: p.SSRC, FractionLost: r.FractionLost, Jitter: r.Jitter}, true
		}
	}
	return ReportSummary{}, false
}
