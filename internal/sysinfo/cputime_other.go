// Copyright 2025 The go-highway Authors. SPDX-License-Identifier: Apache-2.0

//go:build !linux

package sysinfo

import "time"

// ThreadCPUTime is not available on this platform.
func ThreadCPUTime() (time.Duration, bool) {
	return 0, false
}
