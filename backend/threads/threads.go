// Copyright 2025 The go-highway Authors. SPDX-License-Identifier: Apache-2.0

// Package threads runs one OS thread per row range.
//
// Every Multiply spawns exactly W goroutines, each locked to its own OS
// thread for its lifetime, and joins all of them before returning. The
// spawning cost is part of the measured time, as with a fresh set of
// threads per multiplication.
package threads

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/ajroetker/matbench/backend"
	"github.com/ajroetker/matbench/internal/sysinfo"
	"github.com/ajroetker/matbench/kernel"
	"github.com/ajroetker/matbench/matrix"
	"github.com/ajroetker/matbench/partition"
)

// Backend splits rows across a fixed number of threads.
type Backend[T matrix.Element] struct {
	workers int
}

var _ backend.Backend[int64] = (*Backend[int64])(nil)

// New returns a backend that uses workers threads per multiplication.
func New[T matrix.Element](workers int) (*Backend[T], error) {
	if workers < 1 {
		return nil, fmt.Errorf("threads: %w: %d", partition.ErrInvalidWorkers, workers)
	}
	return &Backend[T]{workers: workers}, nil
}

func (b *Backend[T]) Name() string { return "threads" }
func (b *Backend[T]) Workers() int { return b.workers }

func (b *Backend[T]) Allocate(n int) (*matrix.Store[T], error) {
	return matrix.NewStore[T](n)
}

// Multiply computes C with one thread per planned range, including empty
// ones. ctx is not consulted once the threads are running.
func (b *Backend[T]) Multiply(_ context.Context, s *matrix.Store[T]) (backend.Stats, error) {
	n := s.N()
	ranges, err := partition.Plan(n, b.workers)
	if err != nil {
		return backend.Stats{}, fmt.Errorf("threads: %w", err)
	}
	a, bb, c := s.A.Data(), s.B.Data(), s.C.Data()

	stats := backend.Stats{Workers: make([]backend.WorkerStats, len(ranges))}
	var wg sync.WaitGroup
	for w, r := range ranges {
		wg.Add(1)
		go func() {
			defer wg.Done()
			runtime.LockOSThread()
			defer runtime.UnlockOSThread()

			cpu0, _ := sysinfo.ThreadCPUTime()
			start := time.Now()
			kernel.MultiplyRange(a, bb, c, n, r)
			ws := backend.WorkerStats{Range: r, Wall: time.Since(start)}
			if cpu1, ok := sysinfo.ThreadCPUTime(); ok {
				ws.CPU = cpu1 - cpu0
			}
			// Each worker owns its slot.
			stats.Workers[w] = ws
		}()
	}
	wg.Wait()
	return stats, nil
}
