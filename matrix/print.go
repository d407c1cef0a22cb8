// Copyright 2025 The go-highway Authors. SPDX-License-Identifier: Apache-2.0

package matrix

import (
	"bufio"
	"fmt"
	"io"
)

// MaxPrintSize is the largest dimension Fprint writes out.
const MaxPrintSize = 10

// Fprint writes m to w under a "Matrix <name>:" title. Matrices larger than
// MaxPrintSize are skipped.
func Fprint[T Element](w io.Writer, name string, m *Dense[T]) error {
	if m.n > MaxPrintSize {
		return nil
	}
	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "\nMatrix %s:\n", name)
	isFloat := KindOf[T]().IsFloat()
	for i := range m.n {
		for j, v := range m.Row(i) {
			if j > 0 {
				bw.WriteByte('\t')
			}
			if isFloat {
				fmt.Fprintf(bw, "%.3f", float64(v))
			} else {
				fmt.Fprintf(bw, "%d", int64(v))
			}
		}
		bw.WriteByte('\n')
	}
	return bw.Flush()
}
