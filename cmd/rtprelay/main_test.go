// SPDX-License-Identifier: GPL-3.0-or-later

package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rtpproxy/relay/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddBindAddrsRequiresAtLeastOne(t *testing.T) {
	cfg := config.New()
	err := addBindAddrs(cfg, "", "")
	assert.Error(t, err)
}

func TestAddBindAddrsParsesBoth(t *testing.T) {
	cfg := config.New()
	require.NoError(t, addBindAddrs(cfg, "192.0.2.10", "2001:db8::1"))

	v4, ok := cfg.BindAddrs.Lookup(4)
	require.True(t, ok)
	assert.True(t, v4.Addr.Is4())

	v6, ok := cfg.BindAddrs.Lookup(6)
	require.True(t, ok)
	assert.True(t, v6.Addr.Is6())
}

func TestAddBindAddrsRejectsMalformed(t *testing.T) {
	cfg := config.New()
	err := addBindAddrs(cfg, "not-an-address", "")
	assert.Error(t, err)
}

func TestControlListenerUnixSocket(t *testing.T) {
	path := filepath.Join(t.TempDir(), "control.sock")
	l, err := controlListener(path)
	require.NoError(t, err)
	defer l.Close()
	assert.Equal(t, "unix", l.Addr().Network())

	_, err = os.Stat(path)
	assert.NoError(t, err)
}

func TestControlListenerTCP(t *testing.T) {
	l, err := controlListener("tcp:127.0.0.1:0")
	require.NoError(t, err)
	defer l.Close()
	assert.Equal(t, "tcp", l.Addr().Network())
}
