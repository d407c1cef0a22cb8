// Copyright 2025 The go-highway Authors. SPDX-License-Identifier: Apache-2.0

// Command matdist times the product distributed over a group of ranks.
//
// Rank 0 generates A and B, broadcasts them, and gathers the row blocks of C
// computed by every rank. Started by matrun (or with MATBENCH_RANK,
// MATBENCH_SIZE and MATBENCH_ROOT_ADDR set by hand on each node) every
// process is one rank of a TCP group. Built with -tags mpi and started by
// mpirun, the ranks are the MPI world. Started directly, matdist runs all
// ranks in this process.
//
// Usage:
//
//	matdist [flags] <size> <ranks> [iterations]
//	matrun -n 4 -- matdist [flags] <size> 4 [iterations]
//	mpirun -n 4 matdist [flags] <size> 4 [iterations]
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"golang.org/x/sync/errgroup"
	"k8s.io/klog/v2"

	"github.com/ajroetker/matbench/backend/dist"
	"github.com/ajroetker/matbench/bench"
	"github.com/ajroetker/matbench/comm"
	"github.com/ajroetker/matbench/internal/cli"
	"github.com/ajroetker/matbench/matrix"
)

type options struct {
	dist        dist.Options
	dialTimeout time.Duration
}

func main() {
	var (
		flags cli.Flags
		opts  options
	)
	cmd := cli.NewCommand("matdist <size> <ranks> [iterations]", "Time C = A * B distributed over ranks", func(ctx context.Context, args []string) error {
		vals, err := cli.Positional(args, []string{"size", "ranks"}, []string{"iterations"})
		if err != nil {
			return err
		}
		kind, err := flags.Kind()
		if err != nil {
			return err
		}
		cfg := flags.Config(vals[0], vals[2])
		ranks := vals[1]
		switch kind {
		case matrix.KindInt32:
			return run[int32](ctx, cfg, ranks, opts)
		case matrix.KindInt64:
			return run[int64](ctx, cfg, ranks, opts)
		case matrix.KindFloat32:
			return run[float32](ctx, cfg, ranks, opts)
		case matrix.KindFloat64:
			return run[float64](ctx, cfg, ranks, opts)
		}
		return fmt.Errorf("%w: type %v", cli.ErrUsage, kind)
	})
	flags.Register(cmd.Flags(), "float")
	cmd.Flags().BoolVar(&opts.dist.AllGather, "allgather", false, "leave the full result on every rank")
	cmd.Flags().DurationVar(&opts.dialTimeout, "dial-timeout", comm.DefaultDialTimeout, "how long a rank keeps trying to reach rank 0")
	cli.Main(cmd)
}

func run[T matrix.Element](ctx context.Context, cfg bench.Config, ranks int, opts options) error {
	group, launched, err := comm.ConfigFromEnv()
	if err != nil {
		return err
	}
	if !launched {
		if world, stop, ok := worldGroup(); ok {
			defer stop()
			if world.Size() > 1 || ranks == 1 {
				return runWorld[T](ctx, cfg, world, ranks, opts)
			}
			world.Close()
		}
		return runLocal[T](ctx, cfg, ranks, opts)
	}
	if group.Size != ranks {
		return fmt.Errorf("%w: launched as one of %d ranks, asked for %d", cli.ErrUsage, group.Size, ranks)
	}
	group.DialTimeout = opts.dialTimeout
	c, err := comm.Connect(ctx, group)
	if err != nil {
		return err
	}
	defer c.Close()
	klog.V(1).InfoS("Rank ready", "rank", c.Rank(), "size", c.Size())
	return cli.Bench(ctx, cfg, dist.New[T](c, opts.dist), os.Stdout)
}

// runWorld runs this process's rank of an MPI world.
func runWorld[T matrix.Element](ctx context.Context, cfg bench.Config, world comm.Comm, ranks int, opts options) error {
	defer world.Close()
	if world.Size() != ranks {
		return fmt.Errorf("%w: started as one of %d MPI ranks, asked for %d", cli.ErrUsage, world.Size(), ranks)
	}
	klog.V(1).InfoS("Rank ready", "rank", world.Rank(), "size", world.Size(), "transport", "mpi")
	return cli.Bench(ctx, cfg, dist.New[T](world, opts.dist), os.Stdout)
}

// runLocal runs every rank as a goroutine of this process.
func runLocal[T matrix.Element](ctx context.Context, cfg bench.Config, ranks int, opts options) error {
	comms, err := comm.NewLocal(ranks)
	if err != nil {
		return err
	}
	cli.LogHost()
	eg, ctx := errgroup.WithContext(ctx)
	for _, c := range comms {
		eg.Go(func() error {
			defer c.Close()
			if _, err := bench.Run(ctx, cfg, dist.New[T](c, opts.dist), os.Stdout); err != nil {
				return fmt.Errorf("rank %d: %w", c.Rank(), err)
			}
			return nil
		})
	}
	return eg.Wait()
}
