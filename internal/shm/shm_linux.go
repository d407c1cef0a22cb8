// Copyright 2025 The go-highway Authors. SPDX-License-Identifier: Apache-2.0

//go:build linux

package shm

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

func createAnonymous() (*os.File, error) {
	fd, err := unix.MemfdCreate("matbench", unix.MFD_CLOEXEC)
	if err != nil {
		return nil, fmt.Errorf("shm: memfd_create: %w", err)
	}
	return os.NewFile(uintptr(fd), "memfd:matbench"), nil
}
