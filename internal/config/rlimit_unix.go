//go:build unix

// SPDX-License-Identifier: GPL-3.0-or-later

package config

import "syscall"

// maxOpenSessionsDefault derives the soft session cap from the process's
// open-file-descriptor limit: each session pins up to five descriptors
// (two UDP sockets per pipe across the RTP and RTCP pipes, plus slack for
// the control-plane connection), so RLIMIT_NOFILE/5 is the point past
// which the relay should start warning well before exhaustion.
func maxOpenSessionsDefault() int {
	var rlimit syscall.Rlimit
	if err := syscall.Getrlimit(syscall.RLIMIT_NOFILE, &rlimit); err != nil {
		return 0
	}
	return int(rlimit.Cur) / 5
}
