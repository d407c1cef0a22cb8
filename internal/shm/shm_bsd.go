// Copyright 2025 The go-highway Authors. SPDX-License-Identifier: Apache-2.0

//go:build unix && !linux

package shm

import (
	"fmt"
	"os"
)

// createAnonymous falls back to a temporary file that is unlinked right
// away; the open descriptor keeps the pages alive.
func createAnonymous() (*os.File, error) {
	f, err := os.CreateTemp("", "matbench-shm-*")
	if err != nil {
		return nil, fmt.Errorf("shm: create backing file: %w", err)
	}
	if err := os.Remove(f.Name()); err != nil {
		f.Close()
		return nil, fmt.Errorf("shm: unlink backing file: %w", err)
	}
	return f, nil
}
