// Copyright 2025 The go-highway Authors. SPDX-License-Identifier: Apache-2.0

package matrix

import "fmt"

// Store owns the operands of C = A * B for one benchmark run.
type Store[T Element] struct {
	A, B, C *Dense[T]

	release func() error
	closed  bool
}

// NewStore allocates three heap matrices of dimension n.
func NewStore[T Element](n int) (*Store[T], error) {
	if n < 1 {
		return nil, fmt.Errorf("%w: n=%d", ErrBadSize, n)
	}
	s := &Store[T]{}
	var err error
	for _, dst := range []**Dense[T]{&s.A, &s.B, &s.C} {
		if *dst, err = New[T](n); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// NewStoreFrom groups existing matrices. release, if not nil, runs once on
// Close and must free the memory behind a, b and c.
func NewStoreFrom[T Element](a, b, c *Dense[T], release func() error) (*Store[T], error) {
	if a.N() != b.N() || a.N() != c.N() {
		return nil, fmt.Errorf("%w: %d, %d, %d", ErrDimensionMismatch, a.N(), b.N(), c.N())
	}
	return &Store[T]{A: a, B: b, C: c, release: release}, nil
}

// N returns the dimension shared by A, B and C.
func (s *Store[T]) N() int { return s.A.N() }

// Close releases the backing memory. The matrices must not be used after.
// Calling Close multiple times is safe.
func (s *Store[T]) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	if s.release == nil {
		return nil
	}
	return s.release()
}
