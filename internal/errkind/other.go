//go:build !unix && !windows

// SPDX-License-Identifier: GPL-3.0-or-later

package errkind

// Classify is a fallback for platforms without a socket-errno table.
func Classify(err error) string {
	if err == nil {
		return ""
	}
	return EGENERIC
}
