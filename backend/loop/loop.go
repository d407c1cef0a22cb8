// Copyright 2025 The go-highway Authors. SPDX-License-Identifier: Apache-2.0

// Package loop computes every output element from one collapsed parallel
// loop over the n² (i, j) pairs, run on a persistent worker pool.
package loop

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ajroetker/matbench/backend"
	"github.com/ajroetker/matbench/kernel"
	"github.com/ajroetker/matbench/matrix"
	"github.com/ajroetker/matbench/partition"
	"github.com/ajroetker/matbench/workerpool"
)

// ErrUnknownSchedule is returned by ParseSchedule.
var ErrUnknownSchedule = errors.New("loop: unknown schedule")

// Schedule chooses how the collapsed domain is handed to workers.
type Schedule int

const (
	// Static gives each worker one contiguous block of cells.
	Static Schedule = iota

	// Dynamic lets workers claim chunks of cells from a shared counter.
	Dynamic
)

func (s Schedule) String() string {
	switch s {
	case Static:
		return "static"
	case Dynamic:
		return "dynamic"
	}
	return fmt.Sprintf("Schedule(%d)", int(s))
}

// ParseSchedule accepts "static" and "dynamic".
func ParseSchedule(s string) (Schedule, error) {
	switch strings.ToLower(s) {
	case "static":
		return Static, nil
	case "dynamic":
		return Dynamic, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownSchedule, s)
}

// Options configures a Backend.
type Options struct {
	Schedule Schedule

	// Chunk is the number of cells claimed at a time under Dynamic. Zero
	// means one row's worth (n).
	Chunk int
}

// Backend multiplies with a collapsed loop on a workerpool.Pool of a fixed
// size. It must be closed to stop the pool.
type Backend[T matrix.Element] struct {
	pool *workerpool.Pool
	opts Options
}

var _ backend.Backend[int64] = (*Backend[int64])(nil)

// New starts a pool of workers goroutines.
func New[T matrix.Element](workers int, opts Options) (*Backend[T], error) {
	if workers < 1 {
		return nil, fmt.Errorf("loop: %w: %d", partition.ErrInvalidWorkers, workers)
	}
	if opts.Schedule != Static && opts.Schedule != Dynamic {
		return nil, fmt.Errorf("%w: %v", ErrUnknownSchedule, opts.Schedule)
	}
	if opts.Chunk < 0 {
		return nil, fmt.Errorf("loop: negative chunk %d", opts.Chunk)
	}
	return &Backend[T]{pool: workerpool.New(workers), opts: opts}, nil
}

func (b *Backend[T]) Name() string { return "loop-" + b.opts.Schedule.String() }
func (b *Backend[T]) Workers() int { return b.pool.NumWorkers() }

func (b *Backend[T]) Allocate(n int) (*matrix.Store[T], error) {
	return matrix.NewStore[T](n)
}

// Multiply runs one parallel loop over all n² cells. The pool joins the loop
// before returning, so C is complete.
func (b *Backend[T]) Multiply(_ context.Context, s *matrix.Store[T]) (backend.Stats, error) {
	n := s.N()
	a, bb, c := s.A.Data(), s.B.Data(), s.C.Data()
	cell := func(idx int) { c[idx] = kernel.Cell(a, bb, n, idx/n, idx%n) }
	cells := func(start, end int) {
		for idx := start; idx < end; idx++ {
			cell(idx)
		}
	}
	switch b.opts.Schedule {
	case Dynamic:
		switch chunk := b.opts.Chunk; chunk {
		case 0:
			b.pool.ParallelForAtomicBatched(n*n, n, cells)
		case 1:
			b.pool.ParallelForAtomic(n*n, cell)
		default:
			b.pool.ParallelForAtomicBatched(n*n, chunk, cells)
		}
	default:
		b.pool.ParallelFor(n*n, cells)
	}
	return backend.Stats{}, nil
}

// Close stops the pool.
func (b *Backend[T]) Close() error {
	b.pool.Close()
	return nil
}
