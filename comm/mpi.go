// Copyright 2025 The go-highway Authors. SPDX-License-Identifier: Apache-2.0

//go:build mpi

package comm

import (
	"context"
	"fmt"
	"sync/atomic"

	mpi "github.com/sbromberger/gompi"
	"k8s.io/klog/v2"
)

// maxTag keeps message tags below the 32767 every MPI implementation accepts.
const maxTag = 1 << 15

// StartMPI initializes MPI and returns the world communicator as a Comm.
// stop finalizes MPI; call it once, after the last collective of every
// Comm. Programs built with the mpi tag are started with mpirun.
func StartMPI() (world Comm, stop func()) {
	mpi.Start(true)
	c := &mpiComm{c: mpi.NewCommunicator(nil)}
	klog.V(2).InfoS("MPI started", "rank", c.Rank(), "size", c.Size())
	return c, mpi.Stop
}

// mpiComm runs the collectives on an MPI communicator. Barrier and Bcast
// map to MPI_Barrier and MPI_Bcast; the gathers are point-to-point sends to
// the root. MPI calls cannot be interrupted, so ctx is only checked before
// each collective starts.
type mpiComm struct {
	c *mpi.Communicator

	tag    int
	closed atomic.Bool
}

var _ Comm = (*mpiComm)(nil)

func (m *mpiComm) Rank() int { return m.c.Rank() }
func (m *mpiComm) Size() int { return m.c.Size() }

// begin returns the tag of the next collective.
func (m *mpiComm) begin(ctx context.Context) (int, error) {
	if m.closed.Load() {
		return 0, ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	m.tag = (m.tag + 1) % maxTag
	return m.tag, nil
}

func (m *mpiComm) Barrier(ctx context.Context) error {
	if _, err := m.begin(ctx); err != nil {
		return err
	}
	m.c.Barrier()
	return nil
}

func (m *mpiComm) Bcast(ctx context.Context, buf []byte) error {
	if _, err := m.begin(ctx); err != nil {
		return err
	}
	if len(buf) > 0 && m.Size() > 1 {
		m.c.BcastBytes(buf, Root)
	}
	return nil
}

func (m *mpiComm) Gatherv(ctx context.Context, send, recv []byte, counts, displs []int) error {
	rank, size := m.Rank(), m.Size()
	if err := checkLayout(rank, size, send, recv, counts, displs); err != nil {
		return err
	}
	tag, err := m.begin(ctx)
	if err != nil {
		return err
	}
	if rank != Root {
		if len(send) > 0 {
			m.c.SendBytes(send, Root, tag)
		}
		return nil
	}
	copy(recv[displs[Root]:displs[Root]+counts[Root]], send)
	for peer := 1; peer < size; peer++ {
		if counts[peer] == 0 {
			continue
		}
		got, _ := m.c.RecvBytes(peer, tag)
		if len(got) != counts[peer] {
			return fmt.Errorf("%w: gather from rank %d: got %d bytes, want %d", ErrProtocol, peer, len(got), counts[peer])
		}
		copy(recv[displs[peer]:], got)
	}
	return nil
}

func (m *mpiComm) Allgatherv(ctx context.Context, send, recv []byte, counts, displs []int) error {
	if err := m.Gatherv(ctx, send, recv, counts, displs); err != nil {
		return err
	}
	return m.Bcast(ctx, recv)
}

// Close marks the Comm unusable. MPI itself is finalized by StartMPI's stop.
func (m *mpiComm) Close() error {
	m.closed.Store(true)
	return nil
}
