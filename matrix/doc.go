// Copyright 2025 The go-highway Authors. SPDX-License-Identifier: Apache-2.0

// Package matrix holds the square row-major buffers used by every benchmark
// backend.
//
// A Dense is a fixed n×n matrix backed by a flat slice. The slice may be
// owned by the Dense (New) or borrowed from memory the caller manages, for
// example a mapping shared with child processes (FromSlice). A Store groups
// the A, B and C operands of one multiplication and knows how to release
// them.
//
// Example usage:
//
//	s, err := matrix.NewStore[int64](n)
//	if err != nil {
//	    return err
//	}
//	defer s.Close()
//
//	rng := matrix.NewRand(seed)
//	matrix.Fill(s.A, rng)
//	matrix.Fill(s.B, rng)
//
// Integer matrices are filled with values in [0, 10); floating point matrices
// with values in [0, 1).
package matrix
