//go:build !unix

// SPDX-License-Identifier: GPL-3.0-or-later

package config

// maxOpenSessionsDefault has no RLIMIT_NOFILE equivalent outside unix
// platforms; the soft-limit warning is disabled by default there and left
// to an explicit [Config.MaxOpenSessions] override.
func maxOpenSessionsDefault() int {
	return 0
}
