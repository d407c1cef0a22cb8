// Copyright 2025 The go-highway Authors. SPDX-License-Identifier: Apache-2.0

package matrix

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// ToGonum copies m into a float64 gonum matrix.
func ToGonum[T Element](m *Dense[T]) *mat.Dense {
	data := make([]float64, len(m.data))
	for i, v := range m.data {
		data[i] = float64(v)
	}
	return mat.NewDense(m.n, m.n, data)
}

// Reference computes A * B with gonum. It is independent of the kernel
// package and serves as the oracle for verification. Integer results are
// exact as long as every element of the product stays below 2^53.
func Reference[T Element](a, b *Dense[T]) (*Dense[T], error) {
	if a.n != b.n {
		return nil, fmt.Errorf("%w: %d vs %d", ErrDimensionMismatch, a.n, b.n)
	}
	var prod mat.Dense
	prod.Mul(ToGonum(a), ToGonum(b))

	out, err := New[T](a.n)
	if err != nil {
		return nil, err
	}
	isFloat := KindOf[T]().IsFloat()
	for i := range a.n {
		for j := range a.n {
			v := prod.At(i, j)
			if !isFloat {
				v = math.Round(v)
			}
			out.data[i*a.n+j] = T(v)
		}
	}
	return out, nil
}
