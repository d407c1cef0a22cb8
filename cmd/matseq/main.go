// Copyright 2025 The go-highway Authors. SPDX-License-Identifier: Apache-2.0

// Command matseq times the single-threaded product of two random n×n
// matrices.
//
// Usage:
//
//	matseq [flags] <size> [iterations]
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/ajroetker/matbench/backend/seq"
	"github.com/ajroetker/matbench/bench"
	"github.com/ajroetker/matbench/internal/cli"
	"github.com/ajroetker/matbench/matrix"
)

func main() {
	var flags cli.Flags
	cmd := cli.NewCommand("matseq <size> [iterations]", "Time the sequential product C = A * B", func(ctx context.Context, args []string) error {
		vals, err := cli.Positional(args, []string{"size"}, []string{"iterations"})
		if err != nil {
			return err
		}
		kind, err := flags.Kind()
		if err != nil {
			return err
		}
		cfg := flags.Config(vals[0], vals[1])
		switch kind {
		case matrix.KindInt32:
			return run[int32](ctx, cfg)
		case matrix.KindInt64:
			return run[int64](ctx, cfg)
		case matrix.KindFloat32:
			return run[float32](ctx, cfg)
		case matrix.KindFloat64:
			return run[float64](ctx, cfg)
		}
		return fmt.Errorf("%w: type %v", cli.ErrUsage, kind)
	})
	flags.Register(cmd.Flags(), "int")
	cli.Main(cmd)
}

func run[T matrix.Element](ctx context.Context, cfg bench.Config) error {
	return cli.Bench(ctx, cfg, seq.New[T](), os.Stdout)
}
