// Copyright 2025 The go-highway Authors. SPDX-License-Identifier: Apache-2.0

package comm

import (
	"context"
	"unsafe"

	"github.com/samber/lo"
)

// Scalar is a fixed-size numeric element that can travel as raw bytes.
type Scalar interface {
	~int32 | ~int64 | ~uint32 | ~uint64 | ~float32 | ~float64
}

func asBytes[T Scalar](s []T) []byte {
	if len(s) == 0 {
		return nil
	}
	return unsafe.Slice((*byte)(unsafe.Pointer(unsafe.SliceData(s))), len(s)*int(unsafe.Sizeof(s[0])))
}

func scale[T Scalar](xs []int) []int {
	var zero T
	size := int(unsafe.Sizeof(zero))
	return lo.Map(xs, func(x int, _ int) int { return x * size })
}

// BcastSlice broadcasts buf from the root.
func BcastSlice[T Scalar](ctx context.Context, c Comm, buf []T) error {
	return c.Bcast(ctx, asBytes(buf))
}

// GathervSlice is Gatherv with counts and displs in elements.
func GathervSlice[T Scalar](ctx context.Context, c Comm, send, recv []T, counts, displs []int) error {
	return c.Gatherv(ctx, asBytes(send), asBytes(recv), scale[T](counts), scale[T](displs))
}

// AllgathervSlice is Allgatherv with counts and displs in elements.
func AllgathervSlice[T Scalar](ctx context.Context, c Comm, send, recv []T, counts, displs []int) error {
	return c.Allgatherv(ctx, asBytes(send), asBytes(recv), scale[T](counts), scale[T](displs))
}
