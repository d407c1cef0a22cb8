// Copyright 2025 The go-highway Authors. SPDX-License-Identifier: Apache-2.0

// Package dist distributes row ranges across the ranks of a comm group.
//
// Every rank runs the same Multiply. Rank 0 owns the inputs: it broadcasts A
// and B, each rank computes its planned rows into the same rows of its own C,
// and the row blocks are gathered into C on rank 0 (on every rank with
// Options.AllGather). The reported time runs from the barrier after the
// broadcast to the barrier after the gather.
package dist

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/samber/lo"
	"k8s.io/klog/v2"

	"github.com/ajroetker/matbench/backend"
	"github.com/ajroetker/matbench/comm"
	"github.com/ajroetker/matbench/kernel"
	"github.com/ajroetker/matbench/matrix"
	"github.com/ajroetker/matbench/partition"
)

// ErrSizeMismatch is returned when the ranks do not agree on the matrix
// dimension.
var ErrSizeMismatch = errors.New("dist: ranks disagree on matrix size")

// Options configures a Backend.
type Options struct {
	// AllGather leaves the full C on every rank instead of only on rank 0.
	AllGather bool
}

// Backend is one rank's view of a distributed multiplication.
type Backend[T matrix.Element] struct {
	c    comm.Comm
	opts Options
}

var (
	_ backend.Backend[float64] = (*Backend[float64])(nil)
	_ backend.Rooted           = (*Backend[float64])(nil)
)

// New returns the backend for the rank behind c. The caller keeps ownership
// of c.
func New[T matrix.Element](c comm.Comm, opts Options) *Backend[T] {
	return &Backend[T]{c: c, opts: opts}
}

func (b *Backend[T]) Name() string { return "distributed" }
func (b *Backend[T]) Workers() int { return b.c.Size() }

// IsRoot reports whether this rank fills the inputs and reports.
func (b *Backend[T]) IsRoot() bool { return b.c.Rank() == comm.Root }

// Allocate returns heap storage on every rank; on non-root ranks A and B
// receive the broadcast.
func (b *Backend[T]) Allocate(n int) (*matrix.Store[T], error) {
	return matrix.NewStore[T](n)
}

// Multiply must be called by every rank of the group with a Store of the
// same dimension. Stats.Elapsed is the time between the two barriers; on
// the root Stats.Workers holds each rank's compute time.
func (b *Backend[T]) Multiply(ctx context.Context, s *matrix.Store[T]) (backend.Stats, error) {
	n, rank, size := s.N(), b.c.Rank(), b.c.Size()
	if err := b.agreeOnSize(ctx, n); err != nil {
		return backend.Stats{}, err
	}
	if err := comm.BcastSlice(ctx, b.c, s.A.Data()); err != nil {
		return backend.Stats{}, fmt.Errorf("dist: broadcast A: %w", err)
	}
	if err := comm.BcastSlice(ctx, b.c, s.B.Data()); err != nil {
		return backend.Stats{}, fmt.Errorf("dist: broadcast B: %w", err)
	}

	ranges, err := partition.Plan(n, size)
	if err != nil {
		return backend.Stats{}, fmt.Errorf("dist: %w", err)
	}
	mine := ranges[rank]
	counts, displs := partition.Layout(ranges, n)
	partial := s.C.Rows(mine.Start, mine.End)

	if err := b.c.Barrier(ctx); err != nil {
		return backend.Stats{}, fmt.Errorf("dist: barrier before compute: %w", err)
	}
	start := time.Now()

	kernel.MultiplyRangeInto(s.A.Data(), s.B.Data(), partial, n, mine)
	compute := time.Since(start)

	gather := comm.GathervSlice[T]
	if b.opts.AllGather {
		gather = comm.AllgathervSlice[T]
	}
	if err := gather(ctx, b.c, partial, s.C.Data(), counts, displs); err != nil {
		return backend.Stats{}, fmt.Errorf("dist: gather C: %w", err)
	}
	if err := b.c.Barrier(ctx); err != nil {
		return backend.Stats{}, fmt.Errorf("dist: barrier after gather: %w", err)
	}
	elapsed := time.Since(start)

	workers, err := b.gatherTimes(ctx, ranges, compute)
	if err != nil {
		return backend.Stats{}, err
	}
	klog.V(3).InfoS("Rank finished", "rank", rank, "rows", mine.String(), "compute", compute, "elapsed", elapsed)
	return backend.Stats{Elapsed: elapsed, Workers: workers}, nil
}

// agreeOnSize shares every rank's n so that all of them fail together on a
// mismatch instead of deadlocking in the broadcast.
func (b *Backend[T]) agreeOnSize(ctx context.Context, n int) error {
	counts, displs := scalarLayout(b.c.Size())
	all := make([]int64, b.c.Size())
	if err := comm.AllgathervSlice(ctx, b.c, []int64{int64(n)}, all, counts, displs); err != nil {
		return fmt.Errorf("dist: exchange matrix size: %w", err)
	}
	if len(lo.Uniq(all)) != 1 {
		return fmt.Errorf("%w: rank sizes %v", ErrSizeMismatch, all)
	}
	return nil
}

// gatherTimes collects each rank's compute time on the root.
func (b *Backend[T]) gatherTimes(ctx context.Context, ranges []partition.Range, compute time.Duration) ([]backend.WorkerStats, error) {
	counts, displs := scalarLayout(b.c.Size())
	all := make([]int64, b.c.Size())
	if err := comm.GathervSlice(ctx, b.c, []int64{int64(compute)}, all, counts, displs); err != nil {
		return nil, fmt.Errorf("dist: gather timings: %w", err)
	}
	if !b.IsRoot() {
		return nil, nil
	}
	return lo.Map(ranges, func(r partition.Range, i int) backend.WorkerStats {
		return backend.WorkerStats{Range: r, Wall: time.Duration(all[i])}
	}), nil
}

// scalarLayout is the gather layout of one element per rank.
func scalarLayout(size int) (counts, displs []int) {
	return lo.Times(size, func(int) int { return 1 }), lo.Times(size, func(i int) int { return i })
}
