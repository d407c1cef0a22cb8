// Copyright 2025 The go-highway Authors. SPDX-License-Identifier: Apache-2.0

package matrix

import (
	"math/rand/v2"
	"time"
)

// NewRand returns a PCG generator seeded with seed. A zero seed picks one
// from the wall clock.
func NewRand(seed uint64) *rand.Rand {
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

// Fill overwrites m with pseudo-random values drawn from rng: integers in
// [0, 10), floats in [0, 1).
func Fill[T Element](m *Dense[T], rng *rand.Rand) {
	data := m.data
	switch KindOf[T]() {
	case KindFloat32, KindFloat64:
		for i := range data {
			data[i] = T(rng.Float64())
		}
	default:
		for i := range data {
			data[i] = T(rng.IntN(10))
		}
	}
}
