// SPDX-License-Identifier: GPL-3.0-or-later

package pbuf

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetReleaseRoundTrip(t *testing.T) {
	b := Get()
	require.NotNil(t, b)
	assert.GreaterOrEqual(t, b.FreeLen(), MaxDatagramSize)
	Release(b)
}

func TestReleaseNilIsNoop(t *testing.T) {
	assert.NotPanics(t, func() { Release(nil) })
}
