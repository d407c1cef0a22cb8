// Copyright 2025 The go-highway Authors. SPDX-License-Identifier: Apache-2.0

// Package bench drives a backend through a timed benchmark run: allocate,
// fill, multiply once per iteration, verify and report.
package bench

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"golang.org/x/text/language"
	"k8s.io/klog/v2"

	"github.com/ajroetker/matbench/backend"
	"github.com/ajroetker/matbench/kernel"
	"github.com/ajroetker/matbench/matrix"
	"github.com/ajroetker/matbench/report"
)

// ErrVerify is returned when a product does not match the reference.
var ErrVerify = errors.New("bench: result does not match reference")

// Element-wise tolerances for float verification. float32 products are
// accumulated in float32 by the kernel and in float64 by the reference.
const (
	VerifyTolerance   = 1e-9
	VerifyTolerance32 = 1e-4
)

// Config describes one benchmark run.
type Config struct {
	N          int
	Iterations int

	// Seed seeds the input generator; zero picks a time-based seed.
	Seed uint64

	// Verify checks every product against an independent reference.
	Verify bool

	// CSVPath, if set, receives one line per iteration.
	CSVPath string

	// Print writes A, B and C after the first iteration when N is at most
	// matrix.MaxPrintSize.
	Print bool
}

func (c Config) withDefaults() Config {
	if c.Iterations < 1 {
		c.Iterations = 1
	}
	return c
}

// Run benchmarks b and writes one line per iteration to out. Only the root
// of a rooted backend fills inputs, verifies and reports; the others take
// part in every Multiply and return nil records.
func Run[T matrix.Element](ctx context.Context, cfg Config, b backend.Backend[T], out io.Writer) ([]report.Record, error) {
	cfg = cfg.withDefaults()
	root := backend.IsRoot(b)

	s, err := b.Allocate(cfg.N)
	if err != nil {
		return nil, fmt.Errorf("bench: allocate %s: %w", b.Name(), err)
	}
	defer func() {
		if err := s.Close(); err != nil {
			klog.ErrorS(err, "Releasing matrices failed", "backend", b.Name())
		}
	}()

	var want *matrix.Dense[T]
	if root {
		rng := matrix.NewRand(cfg.Seed)
		matrix.Fill(s.A, rng)
		matrix.Fill(s.B, rng)
		if cfg.Verify {
			if want, err = reference(s.A, s.B); err != nil {
				return nil, err
			}
		}
	}

	var (
		printer = report.NewPrinter(out, language.Und)
		csv     *report.CSV
		records []report.Record
	)
	if cfg.CSVPath != "" && root {
		csv = report.NewCSV(cfg.CSVPath)
	}
	klog.InfoS("Starting run", "backend", b.Name(), "n", cfg.N, "workers", b.Workers(), "iterations", cfg.Iterations, "kind", matrix.KindOf[T]())

	for it := 1; it <= cfg.Iterations; it++ {
		if err := ctx.Err(); err != nil {
			return records, err
		}
		start := time.Now()
		stats, err := b.Multiply(ctx, s)
		elapsed := time.Since(start)
		if err != nil {
			return records, fmt.Errorf("bench: %s iteration %d: %w", b.Name(), it, err)
		}
		if !root {
			continue
		}
		if stats.Elapsed > 0 {
			elapsed = stats.Elapsed
		}
		for w, ws := range stats.Workers {
			klog.V(2).InfoS("Worker timing", "iteration", it, "worker", w, "rows", ws.Range.String(), "wall", ws.Wall, "cpu", ws.CPU)
		}

		if want != nil {
			if err := check(want, s.C); err != nil {
				return records, fmt.Errorf("bench: %s iteration %d: %w", b.Name(), it, err)
			}
		}
		if cfg.Print && it == 1 && cfg.N <= matrix.MaxPrintSize {
			for _, m := range []struct {
				name string
				d    *matrix.Dense[T]
			}{{"A", s.A}, {"B", s.B}, {"C", s.C}} {
				if err := matrix.Fprint(out, m.name, m.d); err != nil {
					return records, err
				}
			}
		}

		rec := report.Record{Backend: b.Name(), N: cfg.N, Iteration: it, Workers: b.Workers(), Elapsed: elapsed}
		rec.MeanCPU, _ = stats.MeanCPU()
		records = append(records, rec)
		if err := printer.Print(rec); err != nil {
			return records, err
		}
		if csv != nil {
			if err := csv.Append(rec); err != nil {
				klog.ErrorS(err, "Recording result failed", "path", csv.Path())
			}
		}
	}
	if root {
		if err := printer.PrintSummary(b.Name(), report.Summarize(records)); err != nil {
			return records, err
		}
	}
	klog.InfoS("Finished run", "backend", b.Name(), "n", cfg.N)
	return records, nil
}

// reference computes A * B independently of the backends: with gonum for
// floats and with the sequential kernel for integers, where float64
// rounding could hide an error.
func reference[T matrix.Element](a, b *matrix.Dense[T]) (*matrix.Dense[T], error) {
	if matrix.KindOf[T]().IsFloat() {
		return matrix.Reference(a, b)
	}
	want, err := matrix.New[T](a.N())
	if err != nil {
		return nil, err
	}
	kernel.Dense(a, b, want)
	return want, nil
}

func check[T matrix.Element](want, got *matrix.Dense[T]) error {
	switch matrix.KindOf[T]() {
	case matrix.KindFloat32:
		if !got.EqualApprox(want, VerifyTolerance32) {
			return fmt.Errorf("%w: max abs diff %g", ErrVerify, got.MaxAbsDiff(want))
		}
		return nil
	case matrix.KindFloat64:
		if !got.EqualApprox(want, VerifyTolerance) {
			return fmt.Errorf("%w: max abs diff %g", ErrVerify, got.MaxAbsDiff(want))
		}
		return nil
	}
	if !got.Equal(want) {
		return fmt.Errorf("%w: max abs diff %g", ErrVerify, got.MaxAbsDiff(want))
	}
	return nil
}
