// Copyright 2025 The go-highway Authors. SPDX-License-Identifier: Apache-2.0

// Command matloop times the product as one parallel loop over all output
// cells on a bounded worker pool.
//
// Usage:
//
//	matloop [flags] <size> <workers> [iterations]
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/ajroetker/matbench/backend/loop"
	"github.com/ajroetker/matbench/bench"
	"github.com/ajroetker/matbench/internal/cli"
	"github.com/ajroetker/matbench/matrix"
)

func main() {
	var (
		flags    cli.Flags
		schedule string
		chunk    int
	)
	cmd := cli.NewCommand("matloop <size> <workers> [iterations]", "Time C = A * B as a collapsed parallel loop", func(ctx context.Context, args []string) error {
		vals, err := cli.Positional(args, []string{"size", "workers"}, []string{"iterations"})
		if err != nil {
			return err
		}
		kind, err := flags.Kind()
		if err != nil {
			return err
		}
		sched, err := loop.ParseSchedule(schedule)
		if err != nil {
			return fmt.Errorf("%w: --schedule: %v", cli.ErrUsage, err)
		}
		if chunk < 0 {
			return fmt.Errorf("%w: --chunk must not be negative", cli.ErrUsage)
		}
		opts := loop.Options{Schedule: sched, Chunk: chunk}
		cfg := flags.Config(vals[0], vals[2])
		switch kind {
		case matrix.KindInt32:
			return run[int32](ctx, cfg, vals[1], opts)
		case matrix.KindInt64:
			return run[int64](ctx, cfg, vals[1], opts)
		case matrix.KindFloat32:
			return run[float32](ctx, cfg, vals[1], opts)
		case matrix.KindFloat64:
			return run[float64](ctx, cfg, vals[1], opts)
		}
		return fmt.Errorf("%w: type %v", cli.ErrUsage, kind)
	})
	flags.Register(cmd.Flags(), "int")
	cmd.Flags().StringVar(&schedule, "schedule", "static", "how cells are handed out: static or dynamic")
	cmd.Flags().IntVar(&chunk, "chunk", 0, "cells claimed at a time by the dynamic schedule; 0 means one row")
	cli.Main(cmd)
}

func run[T matrix.Element](ctx context.Context, cfg bench.Config, workers int, opts loop.Options) error {
	b, err := loop.New[T](workers, opts)
	if err != nil {
		return err
	}
	return cli.Bench(ctx, cfg, b, os.Stdout)
}
