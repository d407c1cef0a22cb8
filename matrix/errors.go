// Copyright 2025 The go-highway Authors. SPDX-License-Identifier: Apache-2.0

package matrix

import "errors"

var (
	// ErrBadSize is returned when a dimension is not positive or a backing
	// slice does not hold exactly n*n elements.
	ErrBadSize = errors.New("matrix: invalid size")

	// ErrDimensionMismatch is returned when two operands have different n.
	ErrDimensionMismatch = errors.New("matrix: dimension mismatch")

	// ErrUnknownKind is returned by ParseKind for an unsupported element name.
	ErrUnknownKind = errors.New("matrix: unknown element kind")
)
