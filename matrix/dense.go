// Copyright 2025 The go-highway Authors. SPDX-License-Identifier: Apache-2.0

package matrix

import (
	"fmt"
	"math"
	"strings"
	"unsafe"

	"gonum.org/v1/gonum/floats/scalar"
)

// Element is the set of element types a benchmark matrix can hold.
type Element interface {
	int32 | int64 | float32 | float64
}

// Kind names an Element type at runtime. It is used where the type parameter
// cannot travel, e.g. across a process boundary.
type Kind uint8

const (
	KindInvalid Kind = iota
	KindInt32
	KindInt64
	KindFloat32
	KindFloat64
)

// KindOf returns the Kind of T.
func KindOf[T Element]() Kind {
	var zero T
	switch any(zero).(type) {
	case int32:
		return KindInt32
	case int64:
		return KindInt64
	case float32:
		return KindFloat32
	case float64:
		return KindFloat64
	}
	return KindInvalid
}

// String returns the Go name of the element type.
func (k Kind) String() string {
	switch k {
	case KindInt32:
		return "int32"
	case KindInt64:
		return "int64"
	case KindFloat32:
		return "float32"
	case KindFloat64:
		return "float64"
	}
	return "invalid"
}

// Size returns the size of one element in bytes.
func (k Kind) Size() int {
	switch k {
	case KindInt32, KindFloat32:
		return 4
	case KindInt64, KindFloat64:
		return 8
	}
	return 0
}

// IsFloat reports whether k is a floating point kind.
func (k Kind) IsFloat() bool {
	return k == KindFloat32 || k == KindFloat64
}

// ParseKind accepts the Go type names plus the short aliases "int" (int64)
// and "float" (float64).
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "int32":
		return KindInt32, nil
	case "int", "int64":
		return KindInt64, nil
	case "float32":
		return KindFloat32, nil
	case "float", "float64", "double":
		return KindFloat64, nil
	}
	return KindInvalid, fmt.Errorf("%w: %q", ErrUnknownKind, s)
}

// ElementSize returns the size of T in bytes.
func ElementSize[T Element]() int {
	var zero T
	return int(unsafe.Sizeof(zero))
}

// Dense is an n×n row-major matrix. Its dimension is fixed at construction.
type Dense[T Element] struct {
	n    int
	data []T
}

// Cells returns the element count of an n×n matrix of T. It fails with
// ErrBadSize when n is not positive or the matrix would not fit in
// math.MaxInt bytes.
func Cells[T Element](n int) (int, error) {
	if n < 1 || n > math.MaxInt/n || n*n > math.MaxInt/ElementSize[T]() {
		return 0, fmt.Errorf("%w: n=%d", ErrBadSize, n)
	}
	return n * n, nil
}

// New allocates a zeroed n×n matrix. A size the runtime refuses to allocate
// is reported as ErrBadSize.
func New[T Element](n int) (m *Dense[T], err error) {
	nn, err := Cells[T](n)
	if err != nil {
		return nil, err
	}
	defer func() {
		if r := recover(); r != nil {
			m, err = nil, fmt.Errorf("%w: n=%d: %v", ErrBadSize, n, r)
		}
	}()
	return &Dense[T]{n: n, data: make([]T, nn)}, nil
}

// FromSlice wraps data as an n×n matrix without copying. data must hold
// exactly n*n elements; the caller keeps ownership of the memory.
func FromSlice[T Element](n int, data []T) (*Dense[T], error) {
	nn, err := Cells[T](n)
	if err != nil {
		return nil, err
	}
	if len(data) != nn {
		return nil, fmt.Errorf("%w: n=%d len=%d", ErrBadSize, n, len(data))
	}
	return &Dense[T]{n: n, data: data}, nil
}

// Identity returns the n×n identity matrix.
func Identity[T Element](n int) (*Dense[T], error) {
	m, err := New[T](n)
	if err != nil {
		return nil, err
	}
	for i := range n {
		m.data[i*n+i] = 1
	}
	return m, nil
}

// N returns the dimension.
func (m *Dense[T]) N() int { return m.n }

// Data returns the backing row-major slice.
func (m *Dense[T]) Data() []T { return m.data }

// Row returns row i as a sub-slice of the backing data.
func (m *Dense[T]) Row(i int) []T { return m.data[i*m.n : (i+1)*m.n] }

// Rows returns rows [start, end) as a sub-slice of the backing data.
func (m *Dense[T]) Rows(start, end int) []T { return m.data[start*m.n : end*m.n] }

// At returns element (i, j).
func (m *Dense[T]) At(i, j int) T { return m.data[i*m.n+j] }

// Set stores v at (i, j).
func (m *Dense[T]) Set(i, j int, v T) { m.data[i*m.n+j] = v }

// Clone returns a heap copy of m.
func (m *Dense[T]) Clone() *Dense[T] {
	data := make([]T, len(m.data))
	copy(data, m.data)
	return &Dense[T]{n: m.n, data: data}
}

// CopyFrom overwrites m with the contents of src.
func (m *Dense[T]) CopyFrom(src *Dense[T]) error {
	if src.n != m.n {
		return fmt.Errorf("%w: %d vs %d", ErrDimensionMismatch, m.n, src.n)
	}
	copy(m.data, src.data)
	return nil
}

// Equal reports whether m and o have the same dimension and bit-identical
// elements.
func (m *Dense[T]) Equal(o *Dense[T]) bool {
	if m.n != o.n {
		return false
	}
	for i, v := range m.data {
		if o.data[i] != v {
			return false
		}
	}
	return true
}

// EqualApprox reports whether every pair of elements is within tol,
// either absolutely or relative to the larger magnitude. Integer matrices
// compare the same way after conversion to float64.
func (m *Dense[T]) EqualApprox(o *Dense[T], tol float64) bool {
	if m.n != o.n {
		return false
	}
	for i, v := range m.data {
		if !scalar.EqualWithinAbsOrRel(float64(v), float64(o.data[i]), tol, tol) {
			return false
		}
	}
	return true
}

// MaxAbsDiff returns the largest absolute element difference. It is used in
// verification messages.
func (m *Dense[T]) MaxAbsDiff(o *Dense[T]) float64 {
	var worst float64
	for i, v := range m.data {
		d := float64(v) - float64(o.data[i])
		if d < 0 {
			d = -d
		}
		worst = max(worst, d)
	}
	return worst
}
