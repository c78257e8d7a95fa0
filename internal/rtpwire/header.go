// SPDX-License-Identifier: GPL-3.0-or-later
//
// Grounded on github.com/pion/rtp (github.com/emiago/diago's RTPSession
// wraps the same package for header access, see other_examples'
// media/rtp_session.go), adapted from an endpoint's read/write path to a
// relay's parse-mutate-reencode path.

// Package rtpwire parses and rewrites RTP/RTCP wire frames on behalf of
// the data plane: payload-type substitution, and the sequence/timestamp
// bookkeeping the DTMF detector and stats sink both need.
package rtpwire

import (
	"fmt"

	"github.com/pion/rtp"
)

// Header is the subset of an RTP packet's fixed header the relay cares
// about: enough to make latch/codec/DTMF decisions without retaining the
// full decoded packet.
type Header struct {
	Version        uint8
	PayloadType    uint8
	SequenceNumber uint16
	Timestamp      uint32
	SSRC           uint32
	Marker         bool
}

// ParseHeader decodes the RTP header from buf, leaving the payload
// untouched. It returns an error wrapping pion/rtp's own parse error on
// malformed input.
func ParseHeader(buf []byte) (Header, error) {
	var pkt rtp.Packet
	if err := pkt.Unmarshal(buf); err != nil {
		return Header{}, fmt.Errorf("rtpwire: parse header: %w", err)
	}
	return Header{
		Version:        pkt.Version,
		PayloadType:    pkt.PayloadType,
		SequenceNumber: pkt.SequenceNumber,
		Timestamp:      pkt.Timestamp,
		SSRC:           pkt.SSRC,
		Marker:         pkt.Marker,
	}, nil
}

// RewritePayloadType decodes buf, overwrites its payload type with pt, and
// returns the re-marshaled packet. Used when the command engine has
// negotiated a different payload type number on each leg of a pipe (see
// the command engine's "c<codecs>" option handling).
func RewritePayloadType(buf []byte, pt uint8) ([]byte, error) {
	var pkt rtp.Packet
	if err := pkt.Unmarshal(buf); err != nil {
		return nil, fmt.Errorf("rtpwire: rewrite payload type: %w", err)
	}
	pkt.PayloadType = pt
	out, err := pkt.Marshal()
	if err != nil {
		return nil, fmt.Errorf("rtpwire: rewrite payload type: %w", err)
	}
	return out, nil
}
