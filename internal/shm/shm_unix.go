// Copyright 2025 The go-highway Authors. SPDX-License-Identifier: Apache-2.0

//go:build unix

package shm

import (
	"errors"
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// New creates an anonymous shared region of size bytes, zero filled.
func New(size int) (*Region, error) {
	if size <= 0 {
		return nil, fmt.Errorf("%w: %d bytes", ErrBadSize, size)
	}
	f, err := createAnonymous()
	if err != nil {
		return nil, err
	}
	if err := unix.Ftruncate(int(f.Fd()), int64(size)); err != nil {
		f.Close()
		return nil, fmt.Errorf("shm: truncate to %d bytes: %w", size, err)
	}
	return mapFile(f, size)
}

// Open maps an inherited descriptor, typically os.NewFile(3, ...) in a
// child process. size must match the size the parent created.
func Open(f *os.File, size int) (*Region, error) {
	if size <= 0 {
		return nil, fmt.Errorf("%w: %d bytes", ErrBadSize, size)
	}
	var st unix.Stat_t
	if err := unix.Fstat(int(f.Fd()), &st); err != nil {
		return nil, fmt.Errorf("shm: stat inherited descriptor: %w", err)
	}
	if st.Size < int64(size) {
		return nil, fmt.Errorf("%w: descriptor holds %d bytes, want %d", ErrBadSize, st.Size, size)
	}
	return mapFile(f, size)
}

func mapFile(f *os.File, size int) (*Region, error) {
	data, err := unix.Mmap(int(f.Fd()), 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("shm: mmap %d bytes: %w", size, err)
	}
	return &Region{file: f, data: data}, nil
}

// Close unmaps the region and closes its descriptor. Calling Close multiple
// times is safe.
func (r *Region) Close() error {
	if r.closed {
		return nil
	}
	r.closed = true
	err := unix.Munmap(r.data)
	r.data = nil
	return errors.Join(err, r.file.Close())
}
