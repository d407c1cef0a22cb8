// Copyright 2025 The go-highway Authors. SPDX-License-Identifier: Apache-2.0

// Command matrun starts a program as the ranks of a local TCP group.
//
// Each copy gets MATBENCH_RANK, MATBENCH_SIZE and MATBENCH_ROOT_ADDR in its
// environment. Output of all ranks is forwarded. If any rank fails the
// others are stopped and matrun exits 1.
//
// Usage:
//
//	matrun -n <ranks> [--addr host:port] -- <program> [args...]
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/ajroetker/matbench/internal/cli"
	"github.com/ajroetker/matbench/internal/launch"
)

func main() {
	opts := launch.Options{Stdout: os.Stdout, Stderr: os.Stderr}
	cmd := cli.NewCommand("matrun -n <ranks> [--addr host:port] -- <program> [args...]", "Run a program as the ranks of a group", func(ctx context.Context, args []string) error {
		if len(args) == 0 {
			return fmt.Errorf("%w: no program given", cli.ErrUsage)
		}
		if opts.Ranks < 1 {
			return fmt.Errorf("%w: -n must be a positive integer", cli.ErrUsage)
		}
		opts.Program, opts.Args = args[0], args[1:]
		return launch.Run(ctx, opts)
	})
	cmd.Flags().IntVarP(&opts.Ranks, "ranks", "n", 1, "number of ranks to start")
	cmd.Flags().StringVar(&opts.Addr, "addr", "", "address rank 0 listens on (default: a free loopback port)")
	// Everything after the program name belongs to the program.
	cmd.Flags().SetInterspersed(false)
	cli.Main(cmd)
}
