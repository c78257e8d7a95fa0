// SPDX-License-Identifier: GPL-3.0-or-later

package pcap

import (
	"bytes"
	"testing"
	"time"

	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteFrameProducesValidGzipWithGlobalHeader(t *testing.T) {
	var buf bytes.Buffer
	sink, err := NewGzipSink(&buf)
	require.NoError(t, err)
	require.NoError(t, sink.WriteFrame(time.Unix(1000, 0), "caller", []byte{0x80, 0x00, 0x01, 0x02}))
	require.NoError(t, sink.Close())

	gr, err := gzip.NewReader(&buf)
	require.NoError(t, err)
	defer gr.Close()

	out := make([]byte, 24+16+4)
	n, err := gr.Read(out)
	require.NoError(t, err)
	assert.Equal(t, len(out), n)
	assert.Equal(t, byte(0xd4), out[0])
}

func TestCloseIsIdempotent(t *testing.T) {
	var buf bytes.Buffer
	sink, err := NewGzipSink(&buf)
	require.NoError(t, err)
	require.NoError(t, sink.Close())
	assert.NoError(t, sink.Close())
}

func TestDiscardSinkIsNoop(t *testing.T) {
	d := Discard()
	assert.NoError(t, d.WriteFrame(time.Now(), "callee", []byte{0x01}))
	assert.NoError(t, d.Close())
}
