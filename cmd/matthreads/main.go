// Copyright 2025 The go-highway Authors. SPDX-License-Identifier: Apache-2.0

// Command matthreads times the product with one OS thread per row range.
//
// Usage:
//
//	matthreads [flags] <size> <threads> [iterations]
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/ajroetker/matbench/backend/threads"
	"github.com/ajroetker/matbench/bench"
	"github.com/ajroetker/matbench/internal/cli"
	"github.com/ajroetker/matbench/matrix"
)

func main() {
	var flags cli.Flags
	cmd := cli.NewCommand("matthreads <size> <threads> [iterations]", "Time C = A * B split across threads", func(ctx context.Context, args []string) error {
		vals, err := cli.Positional(args, []string{"size", "threads"}, []string{"iterations"})
		if err != nil {
			return err
		}
		kind, err := flags.Kind()
		if err != nil {
			return err
		}
		cfg := flags.Config(vals[0], vals[2])
		switch kind {
		case matrix.KindInt32:
			return run[int32](ctx, cfg, vals[1])
		case matrix.KindInt64:
			return run[int64](ctx, cfg, vals[1])
		case matrix.KindFloat32:
			return run[float32](ctx, cfg, vals[1])
		case matrix.KindFloat64:
			return run[float64](ctx, cfg, vals[1])
		}
		return fmt.Errorf("%w: type %v", cli.ErrUsage, kind)
	})
	flags.Register(cmd.Flags(), "int")
	cli.Main(cmd)
}

func run[T matrix.Element](ctx context.Context, cfg bench.Config, workers int) error {
	b, err := threads.New[T](workers)
	if err != nil {
		return err
	}
	return cli.Bench(ctx, cfg, b, os.Stdout)
}
