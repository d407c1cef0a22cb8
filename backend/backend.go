// Copyright 2025 The go-highway Authors. SPDX-License-Identifier: Apache-2.0

// Package backend defines the execution models that compute C = A * B.
//
// Each subpackage implements Backend for one model: seq runs the kernel on
// the calling goroutine, threads spawns one OS-thread-pinned goroutine per
// row range, procs starts child processes over shared memory, loop runs a
// collapsed parallel loop on a worker pool and dist distributes row ranges
// across the ranks of a comm group.
package backend

import (
	"context"
	"time"

	"github.com/samber/lo"

	"github.com/ajroetker/matbench/matrix"
	"github.com/ajroetker/matbench/partition"
)

// Backend computes the product of a Store's A and B into its C.
//
// Multiply may be called any number of times on the same Store; each call
// fully overwrites C and leaves A and B unchanged. C is complete and visible
// to the caller when Multiply returns without error.
type Backend[T matrix.Element] interface {
	// Name identifies the backend in reports.
	Name() string

	// Workers is the number of parallel workers per multiplication.
	Workers() int

	// Allocate returns a Store suitable for Multiply. The caller owns it and
	// must Close it.
	Allocate(n int) (*matrix.Store[T], error)

	// Multiply computes s.C = s.A * s.B.
	Multiply(ctx context.Context, s *matrix.Store[T]) (Stats, error)
}

// Rooted is implemented by backends where only one participant owns the
// inputs and the result, as with the ranks of a distributed group. Callers
// fill A and B and report only when IsRoot is true.
type Rooted interface {
	IsRoot() bool
}

// IsRoot reports whether b owns the inputs and the result; backends that do
// not implement Rooted always do.
func IsRoot(b any) bool {
	if r, ok := b.(Rooted); ok {
		return r.IsRoot()
	}
	return true
}

// Stats describes one multiplication.
type Stats struct {
	// Elapsed is set by backends that time the multiplication themselves,
	// between their own synchronization points. Zero means the caller's
	// timing applies.
	Elapsed time.Duration

	// Workers holds per-worker measurements when the backend records them.
	Workers []WorkerStats
}

// WorkerStats is one worker's share of a multiplication.
type WorkerStats struct {
	Range partition.Range

	// Wall is the worker's own elapsed time.
	Wall time.Duration

	// CPU is the worker's CPU time; zero when the platform cannot measure it.
	CPU time.Duration
}

// MeanCPU returns the mean CPU time over the workers that recorded one.
func (s Stats) MeanCPU() (time.Duration, bool) {
	measured := lo.Filter(s.Workers, func(w WorkerStats, _ int) bool { return w.CPU > 0 })
	if len(measured) == 0 {
		return 0, false
	}
	total := lo.SumBy(measured, func(w WorkerStats) time.Duration { return w.CPU })
	return total / time.Duration(len(measured)), true
}

// MeanWall returns the mean per-worker elapsed time.
func (s Stats) MeanWall() (time.Duration, bool) {
	if len(s.Workers) == 0 {
		return 0, false
	}
	return lo.SumBy(s.Workers, func(w WorkerStats) time.Duration { return w.Wall }) / time.Duration(len(s.Workers)), true
}
