// Copyright 2025 The go-highway Authors. SPDX-License-Identifier: Apache-2.0

// Package comm provides the collective operations of a rank group: barrier,
// broadcast and variable-count gather.
//
// A group has Size ranks numbered from 0. Rank 0 is the root of every
// collective: it is the source of broadcasts and the destination of gathers.
// Every rank must call the same collectives in the same order; each call
// blocks until the data it needs has arrived.
//
// NewLocal connects ranks that live in the same process (one goroutine per
// rank) through channels. Connect builds a TCP star around rank 0 so that
// ranks can be separate processes on separate machines; ConfigFromEnv reads
// the rank context a launcher sets. Built with the mpi tag, StartMPI wraps
// the MPI world started by mpirun.
//
// Payloads are raw bytes in host order. The typed helpers (BcastSlice,
// GathervSlice, AllgathervSlice) view numeric slices as bytes, so all ranks
// must share the same byte order.
package comm

import (
	"context"
	"errors"
)

var (
	// ErrProtocol is returned when a peer sends a message that does not match
	// the collective being executed.
	ErrProtocol = errors.New("comm: protocol error")

	// ErrClosed is returned by collectives on a closed group.
	ErrClosed = errors.New("comm: group closed")

	// ErrBadLayout is returned when gather counts and displacements do not
	// match the group size or the buffers.
	ErrBadLayout = errors.New("comm: invalid gather layout")

	// ErrBadConfig is returned for an invalid rank, size or address.
	ErrBadConfig = errors.New("comm: invalid configuration")
)

// Root is the rank every collective is rooted at.
const Root = 0

// Comm is one rank's handle on a group.
type Comm interface {
	// Rank returns this rank's index in [0, Size).
	Rank() int

	// Size returns the number of ranks in the group.
	Size() int

	// Barrier returns once every rank has entered it.
	Barrier(ctx context.Context) error

	// Bcast copies buf from the root into buf on every other rank. All ranks
	// must pass buffers of the same length.
	Bcast(ctx context.Context, buf []byte) error

	// Gatherv stores each rank's send buffer at recv[displs[r]:displs[r]+counts[r]]
	// on the root. len(send) must equal counts[Rank()]. recv is only used on
	// the root.
	Gatherv(ctx context.Context, send, recv []byte, counts, displs []int) error

	// Allgatherv is Gatherv followed by a broadcast of recv, so every rank
	// ends with the assembled buffer.
	Allgatherv(ctx context.Context, send, recv []byte, counts, displs []int) error

	// Close releases the rank's connections.
	Close() error
}
