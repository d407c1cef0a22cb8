// Copyright 2025 The go-highway Authors. SPDX-License-Identifier: Apache-2.0

// Package backendtest checks that a backend.Backend computes the same product
// as the sequential kernel.
package backendtest

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ajroetker/matbench/backend"
	"github.com/ajroetker/matbench/kernel"
	"github.com/ajroetker/matbench/matrix"
)

// FloatTolerance bounds the element-wise difference a float backend may show
// against the sequential kernel.
const FloatTolerance = 1e-9

// Sizes are the dimensions Run multiplies, chosen to hit W > n, uneven
// splits and a larger square.
var Sizes = []int{1, 2, 3, 5, 7, 16, 100}

// Run checks b on every size in Sizes and on the identity property.
func Run[T matrix.Element](t *testing.T, b backend.Backend[T]) {
	t.Helper()
	t.Run("identity", func(t *testing.T) { Identity(t, b) })
	for _, n := range Sizes {
		t.Run(fmt.Sprintf("n=%d", n), func(t *testing.T) { Random(t, b, n, uint64(n)) })
	}
}

// Identity checks that I * B = B for n = 3.
func Identity[T matrix.Element](t *testing.T, b backend.Backend[T]) {
	t.Helper()
	const n = 3
	s, err := b.Allocate(n)
	require.NoError(t, err)
	defer s.Close()

	id, err := matrix.Identity[T](n)
	require.NoError(t, err)
	require.NoError(t, s.A.CopyFrom(id))
	for i := range n {
		for j := range n {
			s.B.Set(i, j, T(i*n+j+1))
		}
	}
	_, err = b.Multiply(context.Background(), s)
	require.NoError(t, err)
	require.True(t, s.C.Equal(s.B), "I * B = %v, want %v", s.C.Data(), s.B.Data())
}

// Random fills A and B from seed, multiplies twice and compares each result
// with the sequential kernel. The second pass checks that Multiply fully
// overwrites C and leaves A and B alone.
func Random[T matrix.Element](t *testing.T, b backend.Backend[T], n int, seed uint64) {
	t.Helper()
	s, err := b.Allocate(n)
	require.NoError(t, err)
	defer s.Close()
	require.Equal(t, n, s.N())

	rng := matrix.NewRand(seed + 1)
	matrix.Fill(s.A, rng)
	matrix.Fill(s.B, rng)
	a, bb := s.A.Clone(), s.B.Clone()

	want, err := matrix.New[T](n)
	require.NoError(t, err)
	kernel.Dense(a, bb, want)

	for pass := range 2 {
		// Garbage in C must not leak into the result.
		for i := range s.C.Data() {
			s.C.Data()[i] = T(pass + 7)
		}
		stats, err := b.Multiply(context.Background(), s)
		require.NoError(t, err, "pass %d", pass)
		Equal(t, want, s.C)
		require.True(t, s.A.Equal(a), "pass %d modified A", pass)
		require.True(t, s.B.Equal(bb), "pass %d modified B", pass)
		if len(stats.Workers) > 0 {
			require.Len(t, stats.Workers, b.Workers())
		}
	}
}

// Equal compares exactly for integer kinds and within FloatTolerance for
// floats.
func Equal[T matrix.Element](t *testing.T, want, got *matrix.Dense[T]) {
	t.Helper()
	if matrix.KindOf[T]().IsFloat() {
		require.True(t, got.EqualApprox(want, FloatTolerance), "max abs diff %g", got.MaxAbsDiff(want))
		return
	}
	require.True(t, got.Equal(want), "got %v\nwant %v", got.Data(), want.Data())
}
