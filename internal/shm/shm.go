// Copyright 2025 The go-highway Authors. SPDX-License-Identifier: Apache-2.0

// Package shm provides anonymous shared memory that survives into child
// processes.
//
// A Region is a MAP_SHARED mapping of a file with no name on disk: a memfd
// on Linux, an unlinked temporary file on other Unix systems. The parent
// passes Region.File to a child through exec.Cmd.ExtraFiles; the child maps
// the same pages with Open, so stores made by either side are visible to the
// other without any copy.
package shm

import (
	"errors"
	"fmt"
	"os"
	"unsafe"
)

var (
	// ErrUnsupported is returned on platforms without shared mappings.
	ErrUnsupported = errors.New("shm: shared memory is not supported on this platform")

	// ErrBadSize is returned for a non-positive size or an out of bounds view.
	ErrBadSize = errors.New("shm: invalid size")
)

// Region is a shared read-write mapping.
type Region struct {
	file   *os.File
	data   []byte
	closed bool
}

// Bytes returns the mapped memory.
func (r *Region) Bytes() []byte { return r.data }

// Len returns the size of the mapping in bytes.
func (r *Region) Len() int { return len(r.data) }

// File returns the descriptor backing the mapping, to be inherited by child
// processes.
func (r *Region) File() *os.File { return r.file }

// View reinterprets count elements of type T starting at byte offset as a
// slice aliasing the region. offset must be a multiple of the size of T.
func View[T any](r *Region, offset, count int) ([]T, error) {
	var zero T
	size := int(unsafe.Sizeof(zero))
	if offset < 0 || count < 0 || offset%size != 0 || offset+count*size > len(r.data) {
		return nil, fmt.Errorf("%w: view [%d, %d) of %d bytes", ErrBadSize, offset, offset+count*size, len(r.data))
	}
	if count == 0 {
		return []T{}, nil
	}
	return unsafe.Slice((*T)(unsafe.Pointer(&r.data[offset])), count), nil
}
