// SPDX-License-Identifier: GPL-3.0-or-later

package command

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseOptionsEmpty(t *testing.T) {
	opts, err := ParseOptions("")
	require.NoError(t, err)
	assert.False(t, opts.AsymmetricSet)
	assert.Equal(t, BindAny, opts.Bind)
	assert.Equal(t, FamilyDefault, opts.Family)
}

func TestParseOptionsAsymmetricAndWeak(t *testing.T) {
	opts, err := ParseOptions("aw")
	require.NoError(t, err)
	assert.True(t, opts.AsymmetricSet)
	assert.True(t, opts.Asymmetric)
	assert.True(t, opts.Weak)
}

func TestParseOptionsSymmetricOverridesAsymmetric(t *testing.T) {
	opts, err := ParseOptions("s")
	require.NoError(t, err)
	assert.True(t, opts.AsymmetricSet)
	assert.False(t, opts.Asymmetric)
}

func TestParseOptionsFamilyAndBind(t *testing.T) {
	opts, err := ParseOptions("6i")
	require.NoError(t, err)
	assert.Equal(t, FamilyV6, opts.Family)
	assert.Equal(t, BindPrimary, opts.Bind)
}

func TestParseOptionsPtime(t *testing.T) {
	opts, err := ParseOptions("z20")
	require.NoError(t, err)
	assert.Equal(t, 20, opts.Ptime)
}

func TestParseOptionsBadPtimeMissingDigits(t *testing.T) {
	_, err := ParseOptions("z")
	assert.Error(t, err)
}

func TestParseOptionsCodecList(t *testing.T) {
	opts, err := ParseOptions("c0,8,18")
	require.NoError(t, err)
	assert.Equal(t, []int{0, 8, 18}, opts.Codecs)
}

func TestParseOptionsCodecListTrailingComma(t *testing.T) {
	_, err := ParseOptions("c0,")
	assert.Error(t, err)
}

func TestParseOptionsLocalAndRemoteAddr(t *testing.T) {
	opts, err := ParseOptions("l192.0.2.1 r203.0.113.5")
	require.NoError(t, err)
	assert.Equal(t, "192.0.2.1", opts.LocalAddr)
	assert.Equal(t, "203.0.113.5", opts.RemoteAddr)
}

func TestParseOptionsForceNewPort(t *testing.T) {
	opts, err := ParseOptions("n")
	require.NoError(t, err)
	assert.True(t, opts.ForceNewPort)
}

func TestParseOptionsUnknownModifier(t *testing.T) {
	_, err := ParseOptions("q")
	assert.Error(t, err)
}

func TestParseOptionsCombined(t *testing.T) {
	opts, err := ParseOptions("Aez20c0,8")
	require.NoError(t, err)
	assert.True(t, opts.Asymmetric)
	assert.Equal(t, BindSecondary, opts.Bind)
	assert.Equal(t, 20, opts.Ptime)
	assert.Equal(t, []int{0, 8}, opts.Codecs)
}
