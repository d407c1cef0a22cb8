// Copyright 2025 The go-highway Authors. SPDX-License-Identifier: Apache-2.0

// Package procs runs one child process per row range over shared memory.
//
// Allocate places A, B and C in a single anonymous shared region. Each
// Multiply re-executes the current binary once per range; the child inherits
// the region as descriptor 3, finds its range in the MATBENCH_PROCS_CHILD
// environment variable, writes its rows of C in place and exits. Waiting for
// every child is the barrier.
//
// A program using this package must call ServeChild at the top of main.
package procs

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"sync"
	"time"

	"k8s.io/klog/v2"

	"github.com/ajroetker/matbench/backend"
	"github.com/ajroetker/matbench/internal/shm"
	"github.com/ajroetker/matbench/matrix"
	"github.com/ajroetker/matbench/partition"
)

// ErrChildFailed is returned when a worker process cannot be started or
// does not exit cleanly.
var ErrChildFailed = errors.New("procs: worker process failed")

// Options configures a Backend.
type Options struct {
	// Executable is the binary started for each worker. It must call
	// ServeChild. Empty means the running executable.
	Executable string

	// Args are passed to Executable.
	Args []string
}

// Backend splits rows across child processes.
type Backend[T matrix.Element] struct {
	workers int
	exe     string
	args    []string

	mu      sync.Mutex
	regions map[*matrix.Store[T]]*shm.Region
}

var _ backend.Backend[int64] = (*Backend[int64])(nil)

// New returns a backend that starts workers processes per multiplication.
func New[T matrix.Element](workers int, opts Options) (*Backend[T], error) {
	if workers < 1 {
		return nil, fmt.Errorf("procs: %w: %d", partition.ErrInvalidWorkers, workers)
	}
	exe := opts.Executable
	if exe == "" {
		var err error
		if exe, err = os.Executable(); err != nil {
			return nil, fmt.Errorf("procs: locate executable: %w", err)
		}
	}
	return &Backend[T]{
		workers: workers,
		exe:     exe,
		args:    opts.Args,
		regions: make(map[*matrix.Store[T]]*shm.Region),
	}, nil
}

func (b *Backend[T]) Name() string { return "processes" }
func (b *Backend[T]) Workers() int { return b.workers }

// Allocate creates the shared region for an n×n problem. The Store must be
// closed to unmap it.
func (b *Backend[T]) Allocate(n int) (*matrix.Store[T], error) {
	size, err := regionSize(n, matrix.KindOf[T]())
	if err != nil {
		return nil, fmt.Errorf("procs: %w", err)
	}
	region, err := shm.New(size)
	if err != nil {
		return nil, fmt.Errorf("procs: allocate shared operands: %w", err)
	}
	a, bb, c, err := views[T](region, n)
	if err != nil {
		region.Close()
		return nil, err
	}
	ma, _ := matrix.FromSlice(n, a)
	mb, _ := matrix.FromSlice(n, bb)
	mc, _ := matrix.FromSlice(n, c)

	var s *matrix.Store[T]
	s, err = matrix.NewStoreFrom(ma, mb, mc, func() error {
		b.mu.Lock()
		delete(b.regions, s)
		b.mu.Unlock()
		return region.Close()
	})
	if err != nil {
		region.Close()
		return nil, err
	}
	b.mu.Lock()
	b.regions[s] = region
	b.mu.Unlock()
	klog.V(2).InfoS("Allocated shared operands", "n", n, "bytes", region.Len())
	return s, nil
}

// Multiply starts one child per planned range and waits for all of them. If
// any child fails the others are killed, all are reaped, and the error names
// every failed range.
func (b *Backend[T]) Multiply(ctx context.Context, s *matrix.Store[T]) (backend.Stats, error) {
	b.mu.Lock()
	region := b.regions[s]
	b.mu.Unlock()
	if region == nil {
		return backend.Stats{}, errors.New("procs: store was not allocated by this backend")
	}
	n := s.N()
	ranges, err := partition.Plan(n, b.workers)
	if err != nil {
		return backend.Stats{}, fmt.Errorf("procs: %w", err)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	kind := matrix.KindOf[T]()
	stats := backend.Stats{Workers: make([]backend.WorkerStats, len(ranges))}
	errs := make([]error, len(ranges))
	var wg sync.WaitGroup
	for w, r := range ranges {
		cmd := exec.CommandContext(ctx, b.exe, b.args...)
		cmd.Env = append(os.Environ(), EnvChild+"="+childSpec{Kind: kind, N: n, Range: r}.String())
		cmd.ExtraFiles = []*os.File{region.File()}
		cmd.Stdout = os.Stderr
		cmd.Stderr = os.Stderr

		start := time.Now()
		if err := cmd.Start(); err != nil {
			errs[w] = fmt.Errorf("%w: start worker %d for rows %v: %v", ErrChildFailed, w, r, err)
			cancel()
			break
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := cmd.Wait()
			ws := backend.WorkerStats{Range: r, Wall: time.Since(start)}
			if ps := cmd.ProcessState; ps != nil {
				ws.CPU = ps.UserTime() + ps.SystemTime()
			}
			stats.Workers[w] = ws
			if err != nil {
				errs[w] = fmt.Errorf("%w: worker %d for rows %v: %v", ErrChildFailed, w, r, err)
				cancel()
			}
		}()
	}
	wg.Wait()
	if err := errors.Join(errs...); err != nil {
		return backend.Stats{}, err
	}
	return stats, nil
}
