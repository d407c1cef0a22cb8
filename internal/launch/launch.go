// Copyright 2025 The go-highway Authors. SPDX-License-Identifier: Apache-2.0

// Package launch starts the ranks of a TCP comm group as local processes.
package launch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"os/exec"

	"golang.org/x/sync/errgroup"
	"k8s.io/klog/v2"

	"github.com/ajroetker/matbench/comm"
)

// ErrRankFailed is returned when a rank process fails.
var ErrRankFailed = errors.New("launch: rank failed")

// Options describes a group launch.
type Options struct {
	Ranks int

	// Addr is the address rank 0 listens on. Empty picks a free loopback
	// port.
	Addr string

	Program string
	Args    []string

	// Stdout and Stderr receive the output of every rank. Nil discards it.
	Stdout, Stderr io.Writer
}

// Run starts opts.Ranks copies of the program, each with the environment
// placing it in the group, and waits for all of them. The first rank to
// fail stops the others.
func Run(ctx context.Context, opts Options) error {
	if opts.Ranks < 1 {
		return fmt.Errorf("%w: %d ranks", comm.ErrBadConfig, opts.Ranks)
	}
	if opts.Program == "" {
		return fmt.Errorf("%w: no program", comm.ErrBadConfig)
	}
	addr := opts.Addr
	if addr == "" {
		var err error
		if addr, err = freeAddr(); err != nil {
			return err
		}
	}
	klog.V(1).InfoS("Launching group", "ranks", opts.Ranks, "root", addr, "program", opts.Program)

	eg, ctx := errgroup.WithContext(ctx)
	for rank := range opts.Ranks {
		cmd := exec.CommandContext(ctx, opts.Program, opts.Args...)
		cmd.Env = append(os.Environ(), comm.Environ(rank, opts.Ranks, addr)...)
		cmd.Stdout = opts.Stdout
		cmd.Stderr = opts.Stderr
		if err := cmd.Start(); err != nil {
			// Cancels the ranks already started.
			eg.Go(func() error { return fmt.Errorf("%w: start rank %d: %v", ErrRankFailed, rank, err) })
			break
		}
		klog.V(2).InfoS("Started rank", "rank", rank, "pid", cmd.Process.Pid)
		eg.Go(func() error {
			if err := cmd.Wait(); err != nil {
				return fmt.Errorf("%w: rank %d: %v", ErrRankFailed, rank, err)
			}
			return nil
		})
	}
	return eg.Wait()
}

// freeAddr reserves a loopback port long enough to learn its number.
func freeAddr() (string, error) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return "", fmt.Errorf("launch: pick root port: %w", err)
	}
	defer ln.Close()
	return ln.Addr().String(), nil
}
