// Copyright 2025 The go-highway Authors. SPDX-License-Identifier: Apache-2.0

// Package seq is the single-threaded baseline backend.
package seq

import (
	"context"

	"github.com/ajroetker/matbench/backend"
	"github.com/ajroetker/matbench/kernel"
	"github.com/ajroetker/matbench/matrix"
)

// Backend multiplies on the calling goroutine.
type Backend[T matrix.Element] struct{}

var _ backend.Backend[float64] = Backend[float64]{}

// New returns the sequential backend.
func New[T matrix.Element]() Backend[T] { return Backend[T]{} }

func (Backend[T]) Name() string { return "sequential" }
func (Backend[T]) Workers() int { return 1 }

func (Backend[T]) Allocate(n int) (*matrix.Store[T], error) {
	return matrix.NewStore[T](n)
}

// Multiply runs the kernel over every row. ctx is not consulted.
func (Backend[T]) Multiply(_ context.Context, s *matrix.Store[T]) (backend.Stats, error) {
	kernel.Dense(s.A, s.B, s.C)
	return backend.Stats{}, nil
}
