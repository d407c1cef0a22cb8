// Copyright 2025 The go-highway Authors. SPDX-License-Identifier: Apache-2.0

//go:build linux

package sysinfo

import (
	"time"

	"golang.org/x/sys/unix"
)

// ThreadCPUTime returns the CPU time consumed by the calling OS thread. The
// caller must hold runtime.LockOSThread for the reading to be meaningful.
func ThreadCPUTime() (time.Duration, bool) {
	var ts unix.Timespec
	if err := unix.ClockGettime(unix.CLOCK_THREAD_CPUTIME_ID, &ts); err != nil {
		return 0, false
	}
	return time.Duration(ts.Nano()), true
}
