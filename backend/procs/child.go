// Copyright 2025 The go-highway Authors. SPDX-License-Identifier: Apache-2.0

package procs

import (
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"

	"k8s.io/klog/v2"

	"github.com/ajroetker/matbench/internal/shm"
	"github.com/ajroetker/matbench/kernel"
	"github.com/ajroetker/matbench/matrix"
	"github.com/ajroetker/matbench/partition"
)

// EnvChild carries the child spec. A process started with it set is a
// worker, not a benchmark.
const EnvChild = "MATBENCH_PROCS_CHILD"

// regionFD is the descriptor number of the shared region in a child: the
// first entry of exec.Cmd.ExtraFiles.
const regionFD = 3

// childSpec is what a child needs to compute its rows.
type childSpec struct {
	Kind  matrix.Kind
	N     int
	Range partition.Range
}

// String encodes spec as kind:n:start:end.
func (c childSpec) String() string {
	return fmt.Sprintf("%s:%d:%d:%d", c.Kind, c.N, c.Range.Start, c.Range.End)
}

func parseChildSpec(s string) (childSpec, error) {
	parts := strings.Split(s, ":")
	if len(parts) != 4 {
		return childSpec{}, fmt.Errorf("procs: child spec %q: want kind:n:start:end", s)
	}
	kind, err := matrix.ParseKind(parts[0])
	if err != nil {
		return childSpec{}, fmt.Errorf("procs: child spec %q: %w", s, err)
	}
	var nums [3]int
	for i, p := range parts[1:] {
		if nums[i], err = strconv.Atoi(p); err != nil {
			return childSpec{}, fmt.Errorf("procs: child spec %q: %w", s, err)
		}
	}
	spec := childSpec{Kind: kind, N: nums[0], Range: partition.Range{Start: nums[1], End: nums[2]}}
	if spec.N < 1 || spec.Range.Start < 0 || spec.Range.End < spec.Range.Start || spec.Range.End > spec.N {
		return childSpec{}, fmt.Errorf("procs: child spec %q: range %v outside %d rows", s, spec.Range, spec.N)
	}
	return spec, nil
}

// regionSize is the byte size of a region holding A, B and C of kind k.
func regionSize(n int, k matrix.Kind) (int, error) {
	size := k.Size()
	if size == 0 || n < 1 || n > math.MaxInt/n || n*n > math.MaxInt/(3*size) {
		return 0, fmt.Errorf("%w: n=%d kind=%v", matrix.ErrBadSize, n, k)
	}
	return 3 * n * n * size, nil
}

// ServeChild turns the process into a worker when it was started by a
// Backend and never returns in that case. Otherwise it returns immediately.
// Programs using Backend call it first thing in main, and tests from
// TestMain.
func ServeChild() {
	spec, ok := os.LookupEnv(EnvChild)
	if !ok {
		return
	}
	if err := serve(spec, os.NewFile(regionFD, "matbench-shm")); err != nil {
		klog.ErrorS(err, "Worker process failed", "spec", spec)
		klog.FlushAndExit(klog.ExitFlushTimeout, 1)
	}
	klog.Flush()
	os.Exit(0)
}

func serve(s string, f *os.File) error {
	spec, err := parseChildSpec(s)
	if err != nil {
		return err
	}
	if f == nil {
		return fmt.Errorf("procs: no shared region on descriptor %d", regionFD)
	}
	switch spec.Kind {
	case matrix.KindInt32:
		return serveTyped[int32](spec, f)
	case matrix.KindInt64:
		return serveTyped[int64](spec, f)
	case matrix.KindFloat32:
		return serveTyped[float32](spec, f)
	case matrix.KindFloat64:
		return serveTyped[float64](spec, f)
	}
	return fmt.Errorf("procs: %w: %v", matrix.ErrUnknownKind, spec.Kind)
}

func serveTyped[T matrix.Element](spec childSpec, f *os.File) error {
	size, err := regionSize(spec.N, spec.Kind)
	if err != nil {
		return err
	}
	region, err := shm.Open(f, size)
	if err != nil {
		return err
	}
	defer region.Close()
	a, b, c, err := views[T](region, spec.N)
	if err != nil {
		return err
	}
	kernel.MultiplyRange(a, b, c, spec.N, spec.Range)
	return nil
}

// views splits a region into A, B and C, laid out back to back.
func views[T matrix.Element](r *shm.Region, n int) (a, b, c []T, err error) {
	nn := n * n
	stride := nn * matrix.ElementSize[T]()
	if a, err = shm.View[T](r, 0, nn); err != nil {
		return nil, nil, nil, err
	}
	if b, err = shm.View[T](r, stride, nn); err != nil {
		return nil, nil, nil, err
	}
	if c, err = shm.View[T](r, 2*stride, nn); err != nil {
		return nil, nil, nil, err
	}
	return a, b, c, nil
}
