// SPDX-License-Identifier: GPL-3.0-or-later

package rtpwire

import (
	"testing"

	"github.com/pion/rtp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func marshalResizeTestPacket(t *testing.T, seq uint16, ts uint32, payloadLen int) []byte {
	t.Helper()
	payload := make([]byte, payloadLen)
	for i := range payload {
		payload[i] = byte(i)
	}
	pkt := &rtp.Packet{
		Header: rtp.Header{
			Version:        2,
			PayloadType:    0,
			SequenceNumber: seq,
			Timestamp:      ts,
			SSRC:           0x1,
		},
		Payload: payload,
	}
	buf, err := pkt.Marshal()
	require.NoError(t, err)
	return buf
}

// Three 20ms/160-byte G.711 packets combined to one 60ms/480-byte packet.
func TestResizerCombine(t *testing.T) {
	r := NewResizer(60)

	// The first packet only primes lastSeq/lastTS and passes straight
	// through; the resizer can't infer an input ptime from one packet.
	first, err := r.Push(marshalResizeTestPacket(t, 0, 0, 160))
	require.NoError(t, err)
	require.Len(t, first, 1)

	var combined [][]byte
	for i := 1; i <= 3; i++ {
		frames, err := r.Push(marshalResizeTestPacket(t, uint16(i), uint32(i*160), 160))
		require.NoError(t, err)
		combined = append(combined, frames...)
	}
	require.Len(t, combined, 1)

	_, payload, err := SplitPayload(combined[0])
	require.NoError(t, err)
	assert.Len(t, payload, 480)
}

// One 60ms/480-byte packet split into three 20ms/160-byte packets.
func TestResizerSplit(t *testing.T) {
	r := NewResizer(20)

	first, err := r.Push(marshalResizeTestPacket(t, 0, 0, 480))
	require.NoError(t, err)
	assert.Len(t, first, 1) // first packet just primes lastSeq/lastTS

	second, err := r.Push(marshalResizeTestPacket(t, 1, 480, 480))
	require.NoError(t, err)
	require.Len(t, second, 3)

	for i, frame := range second {
		hdr, payload, err := SplitPayload(frame)
		require.NoError(t, err)
		assert.Len(t, payload, 160)
		assert.Equal(t, uint32(480+i*160), hdr.Timestamp)
	}
}

func TestResizerSameInputAndTargetPassesThrough(t *testing.T) {
	r := NewResizer(20)
	buf := marshalResizeTestPacket(t, 0, 0, 160)
	out, err := r.Push(buf)
	require.NoError(t, err)
	assert.Equal(t, [][]byte{buf}, out)

	buf2 := marshalResizeTestPacket(t, 1, 160, 160)
	out2, err := r.Push(buf2)
	require.NoError(t, err)
	require.Len(t, out2, 1)
	assert.Equal(t, buf2, out2[0])
}

func TestResizerSSRCChangeResets(t *testing.T) {
	r := NewResizer(60)
	_, err := r.Push(marshalResizeTestPacket(t, 0, 0, 160))
	require.NoError(t, err)
	_, err = r.Push(marshalResizeTestPacket(t, 1, 160, 160))
	require.NoError(t, err)

	pkt := &rtp.Packet{
		Header: rtp.Header{Version: 2, SequenceNumber: 0, Timestamp: 0, SSRC: 0x2},
		Payload: make([]byte, 160),
	}
	buf, err := pkt.Marshal()
	require.NoError(t, err)

	out, err := r.Push(buf)
	require.NoError(t, err)
	assert.Len(t, out, 1) // treated as the first packet of a new run
}
