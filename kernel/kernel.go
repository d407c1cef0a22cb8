// Copyright 2025 The go-highway Authors. SPDX-License-Identifier: Apache-2.0

// Package kernel implements the naive O(n³) product on row ranges.
//
// All functions take flat row-major n×n operands. They read a and b and write
// only the rows of the output named by the range, which is what lets several
// workers share one output buffer without locking.
package kernel

import (
	"github.com/ajroetker/matbench/matrix"
	"github.com/ajroetker/matbench/partition"
)

// MultiplyRange computes C[i][j] = sum_k A[i][k] * B[k][j] for every row i
// in r and every column j. An empty range is a no-op.
func MultiplyRange[T matrix.Element](a, b, c []T, n int, r partition.Range) {
	if r.Empty() {
		return
	}
	MultiplyRangeInto(a, b, c[r.Start*n:r.End*n], n, r)
}

// MultiplyRangeInto computes rows r of A * B into dst, which holds
// r.Len()*n elements: row r.Start of the product lands at dst[0:n].
func MultiplyRangeInto[T matrix.Element](a, b, dst []T, n int, r partition.Range) {
	for i := r.Start; i < r.End; i++ {
		aRow := a[i*n : (i+1)*n]
		out := dst[(i-r.Start)*n : (i-r.Start+1)*n]
		for j := range n {
			var sum T
			for k, aik := range aRow {
				sum += aik * b[k*n+j]
			}
			out[j] = sum
		}
	}
}

// Cell returns element (i, j) of A * B.
func Cell[T matrix.Element](a, b []T, n, i, j int) T {
	var sum T
	aRow := a[i*n : (i+1)*n]
	for k, aik := range aRow {
		sum += aik * b[k*n+j]
	}
	return sum
}

// Multiply computes the full product sequentially.
func Multiply[T matrix.Element](a, b, c []T, n int) {
	MultiplyRange(a, b, c, n, partition.Range{Start: 0, End: n})
}

// Dense is Multiply on matrix.Dense operands.
func Dense[T matrix.Element](a, b, c *matrix.Dense[T]) {
	Multiply(a.Data(), b.Data(), c.Data(), a.N())
}
