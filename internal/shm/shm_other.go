// Copyright 2025 The go-highway Authors. SPDX-License-Identifier: Apache-2.0

//go:build !unix

package shm

import "os"

// New is not supported on this platform.
func New(size int) (*Region, error) {
	return nil, ErrUnsupported
}

// Open is not supported on this platform.
func Open(f *os.File, size int) (*Region, error) {
	return nil, ErrUnsupported
}

// Close is a no-op.
func (r *Region) Close() error {
	return nil
}
