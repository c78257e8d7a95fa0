// SPDX-License-Identifier: GPL-3.0-or-later

package command

import (
	"errors"
	"testing"

	"github.com/rtpproxy/relay/internal/errkind"
	"github.com/stretchr/testify/assert"
)

func TestErrorUnwrap(t *testing.T) {
	cause := errors.New("boom")
	err := newError(errkind.Parse, ParseBadAddress, "parse remote addr", cause)
	assert.ErrorIs(t, err, cause)
	assert.Same(t, cause, errors.Unwrap(err))
}

func TestErrorStringWithAndWithoutCause(t *testing.T) {
	withCause := newError(errkind.Policy, PolicyOverload, "create session", errors.New("overload threshold exceeded"))
	assert.Contains(t, withCause.Error(), "create session")
	assert.Contains(t, withCause.Error(), "overload threshold exceeded")

	bare := newError(errkind.Policy, PolicySlowShutdown, "create session", nil)
	assert.Contains(t, bare.Error(), "create session")
}

func TestErrorCodesAreDistinct(t *testing.T) {
	codes := []int{
		ParseBadModifier, ParseBadPtime, ParseBadCodecList, ParseBadAddress,
		ParseBadPort, ResolveNoLocalAddr, ResolveNoRoute, ResourcePortsExhausted,
		PolicySlowShutdown, ParseBadNotifyTag, PolicyOverload, PolicyNotifyRequired,
	}
	seen := make(map[int]bool)
	for _, c := range codes {
		assert.False(t, seen[c], "duplicate error code %d", c)
		seen[c] = true
	}
}
