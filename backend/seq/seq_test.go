// Copyright 2025 The go-highway Authors. SPDX-License-Identifier: Apache-2.0

package seq

import (
	"context"
	"testing"

	"github.com/ajroetker/matbench/backend/backendtest"
	"github.com/ajroetker/matbench/matrix"
)

func TestBackend(t *testing.T) {
	t.Run("int64", func(t *testing.T) { backendtest.Run(t, New[int64]()) })
	t.Run("float64", func(t *testing.T) { backendtest.Run(t, New[float64]()) })
	t.Run("int32", func(t *testing.T) { backendtest.Run(t, New[int32]()) })
}

func TestSmallProduct(t *testing.T) {
	b := New[int64]()
	s, err := b.Allocate(2)
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()
	copy(s.A.Data(), []int64{1, 2, 3, 4})
	copy(s.B.Data(), []int64{5, 6, 7, 8})
	if _, err := b.Multiply(context.Background(), s); err != nil {
		t.Fatal(err)
	}
	want, _ := matrix.FromSlice(2, []int64{19, 22, 43, 50})
	if !s.C.Equal(want) {
		t.Errorf("C = %v, want %v", s.C.Data(), want.Data())
	}
}

func BenchmarkMultiply(b *testing.B) {
	be := New[float64]()
	s, _ := be.Allocate(128)
	defer s.Close()
	rng := matrix.NewRand(1)
	matrix.Fill(s.A, rng)
	matrix.Fill(s.B, rng)
	for b.Loop() {
		be.Multiply(context.Background(), s)
	}
}
