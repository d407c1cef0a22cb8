// Copyright 2025 The go-highway Authors. SPDX-License-Identifier: Apache-2.0

// Package partition computes the static row assignment shared by every
// parallel backend.
//
// The n rows of the output are split into W contiguous half-open ranges.
// Every worker gets n/W rows and the first n%W workers get one extra, so
// worker 0 always holds the lowest rows and range sizes differ by at most
// one. When W > n the trailing workers receive empty ranges.
//
//	ranges, _ := partition.Plan(5, 2) // [0,3) [3,5)
package partition

import (
	"errors"
	"fmt"

	"github.com/samber/lo"
)

var (
	// ErrInvalidSize is returned when the matrix dimension is not positive.
	ErrInvalidSize = errors.New("partition: matrix size must be positive")

	// ErrInvalidWorkers is returned when the worker count is not positive.
	ErrInvalidWorkers = errors.New("partition: worker count must be positive")

	// ErrInvalidPlan is returned by Validate when ranges overlap, leave gaps
	// or do not cover [0, n).
	ErrInvalidPlan = errors.New("partition: invalid plan")
)

// Range is the half-open row interval [Start, End).
type Range struct {
	Start, End int
}

// Len returns the number of rows in r.
func (r Range) Len() int { return r.End - r.Start }

// Empty reports whether r holds no rows.
func (r Range) Empty() bool { return r.End <= r.Start }

// Contains reports whether row i belongs to r.
func (r Range) Contains(i int) bool { return i >= r.Start && i < r.End }

func (r Range) String() string { return fmt.Sprintf("[%d,%d)", r.Start, r.End) }

// Plan splits n rows across workers.
func Plan(n, workers int) ([]Range, error) {
	if n < 1 {
		return nil, fmt.Errorf("%w: n=%d", ErrInvalidSize, n)
	}
	if workers < 1 {
		return nil, fmt.Errorf("%w: workers=%d", ErrInvalidWorkers, workers)
	}

	base := n / workers
	remainder := n % workers
	ranges := make([]Range, workers)
	start := 0
	for i := range ranges {
		rows := base
		if i < remainder {
			rows++
		}
		ranges[i] = Range{Start: start, End: start + rows}
		start += rows
	}
	return ranges, nil
}

// Layout returns the per-worker element counts (rows * n) and the offset of
// each worker's block within the flat n*n result. The offsets are prefix sums
// of the counts, the layout a variable-count gather expects.
func Layout(ranges []Range, n int) (counts, displs []int) {
	counts = lo.Map(ranges, func(r Range, _ int) int { return r.Len() * n })
	displs = make([]int, len(counts))
	for i := 1; i < len(counts); i++ {
		displs[i] = displs[i-1] + counts[i-1]
	}
	return counts, displs
}

// Validate checks that ranges are ordered, non-negative, gapless and cover
// exactly [0, n).
func Validate(ranges []Range, n int) error {
	next := 0
	for i, r := range ranges {
		if r.Start != next || r.End < r.Start {
			return fmt.Errorf("%w: range %d is %v, want start %d", ErrInvalidPlan, i, r, next)
		}
		next = r.End
	}
	total := lo.SumBy(ranges, Range.Len)
	if next != n || total != n {
		return fmt.Errorf("%w: covers %d rows, want %d", ErrInvalidPlan, total, n)
	}
	return nil
}
