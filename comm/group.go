// Copyright 2025 The go-highway Authors. SPDX-License-Identifier: Apache-2.0

package comm

import (
	"context"
	"fmt"
	"sync/atomic"

	"golang.org/x/sync/errgroup"
)

type opcode uint8

const (
	opBarrier opcode = iota + 1
	opBcast
	opGather
)

func (op opcode) String() string {
	switch op {
	case opBarrier:
		return "barrier"
	case opBcast:
		return "bcast"
	case opGather:
		return "gather"
	}
	return fmt.Sprintf("op(%d)", uint8(op))
}

// transport moves whole messages between the root and another rank. On the
// root, peer names the other rank; elsewhere peer is always Root. The root
// may run send and recv for different peers concurrently.
type transport interface {
	send(ctx context.Context, peer int, op opcode, seq uint32, payload []byte) error
	// recv reads the next message from peer into exactly len(into) bytes,
	// failing with ErrProtocol if op, seq or length differ.
	recv(ctx context.Context, peer int, op opcode, seq uint32, into []byte) error
	close() error
}

// group implements the collectives of Comm on a star transport.
type group struct {
	rank, size int
	t          transport

	// seq numbers collectives so that a rank that skipped one is detected.
	seq    uint32
	closed atomic.Bool
}

var _ Comm = (*group)(nil)

func (g *group) Rank() int { return g.rank }
func (g *group) Size() int { return g.size }

func (g *group) next() (uint32, error) {
	if g.closed.Load() {
		return 0, ErrClosed
	}
	g.seq++
	return g.seq, nil
}

// eachPeer runs fn for every non-root rank concurrently; the first error
// cancels the others.
func (g *group) eachPeer(ctx context.Context, fn func(ctx context.Context, peer int) error) error {
	eg, ctx := errgroup.WithContext(ctx)
	for peer := 1; peer < g.size; peer++ {
		eg.Go(func() error { return fn(ctx, peer) })
	}
	return eg.Wait()
}

func (g *group) Barrier(ctx context.Context) error {
	seq, err := g.next()
	if err != nil || g.size == 1 {
		return err
	}
	if g.rank != Root {
		if err := g.t.send(ctx, Root, opBarrier, seq, nil); err != nil {
			return fmt.Errorf("comm: barrier: %w", err)
		}
		if err := g.t.recv(ctx, Root, opBarrier, seq, nil); err != nil {
			return fmt.Errorf("comm: barrier release: %w", err)
		}
		return nil
	}
	if err := g.eachPeer(ctx, func(ctx context.Context, peer int) error {
		return g.t.recv(ctx, peer, opBarrier, seq, nil)
	}); err != nil {
		return fmt.Errorf("comm: barrier: %w", err)
	}
	if err := g.eachPeer(ctx, func(ctx context.Context, peer int) error {
		return g.t.send(ctx, peer, opBarrier, seq, nil)
	}); err != nil {
		return fmt.Errorf("comm: barrier release: %w", err)
	}
	return nil
}

func (g *group) Bcast(ctx context.Context, buf []byte) error {
	seq, err := g.next()
	if err != nil || g.size == 1 {
		return err
	}
	if g.rank != Root {
		if err := g.t.recv(ctx, Root, opBcast, seq, buf); err != nil {
			return fmt.Errorf("comm: bcast %d bytes: %w", len(buf), err)
		}
		return nil
	}
	if err := g.eachPeer(ctx, func(ctx context.Context, peer int) error {
		return g.t.send(ctx, peer, opBcast, seq, buf)
	}); err != nil {
		return fmt.Errorf("comm: bcast %d bytes: %w", len(buf), err)
	}
	return nil
}

// checkLayout validates a gather layout as seen by rank of a size-rank group.
func checkLayout(rank, size int, send, recv []byte, counts, displs []int) error {
	if len(counts) != size || len(displs) != size {
		return fmt.Errorf("%w: %d counts and %d displs for %d ranks", ErrBadLayout, len(counts), len(displs), size)
	}
	if len(send) != counts[rank] {
		return fmt.Errorf("%w: rank %d sends %d bytes, layout says %d", ErrBadLayout, rank, len(send), counts[rank])
	}
	if rank != Root {
		return nil
	}
	for r := range size {
		if counts[r] < 0 || displs[r] < 0 || displs[r]+counts[r] > len(recv) {
			return fmt.Errorf("%w: rank %d block [%d, %d) outside %d bytes", ErrBadLayout, r, displs[r], displs[r]+counts[r], len(recv))
		}
	}
	return nil
}

func (g *group) Gatherv(ctx context.Context, send, recv []byte, counts, displs []int) error {
	if err := checkLayout(g.rank, g.size, send, recv, counts, displs); err != nil {
		return err
	}
	seq, err := g.next()
	if err != nil {
		return err
	}
	if g.rank != Root {
		if err := g.t.send(ctx, Root, opGather, seq, send); err != nil {
			return fmt.Errorf("comm: gather %d bytes: %w", len(send), err)
		}
		return nil
	}
	copy(recv[displs[Root]:displs[Root]+counts[Root]], send)
	if g.size == 1 {
		return nil
	}
	// Each peer lands in its own disjoint block of recv.
	if err := g.eachPeer(ctx, func(ctx context.Context, peer int) error {
		return g.t.recv(ctx, peer, opGather, seq, recv[displs[peer]:displs[peer]+counts[peer]])
	}); err != nil {
		return fmt.Errorf("comm: gather: %w", err)
	}
	return nil
}

func (g *group) Allgatherv(ctx context.Context, send, recv []byte, counts, displs []int) error {
	if err := g.Gatherv(ctx, send, recv, counts, displs); err != nil {
		return err
	}
	return g.Bcast(ctx, recv)
}

func (g *group) Close() error {
	if g.closed.Swap(true) || g.t == nil {
		return nil
	}
	return g.t.close()
}
