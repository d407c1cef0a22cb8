// Copyright 2025 The go-highway Authors. SPDX-License-Identifier: Apache-2.0

package comm

import (
	"context"
	"fmt"
	"slices"
)

type message struct {
	op      opcode
	seq     uint32
	payload []byte
}

// localNet holds one channel pair per non-root rank.
type localNet struct {
	toRoot   []chan message
	fromRoot []chan message
}

type localTransport struct {
	net  *localNet
	rank int
}

// NewLocal returns the handles of a size-rank group whose ranks run in this
// process. Element r belongs to rank r and is meant to be driven by its own
// goroutine.
func NewLocal(size int) ([]Comm, error) {
	if size < 1 {
		return nil, fmt.Errorf("%w: size %d", ErrBadConfig, size)
	}
	n := &localNet{
		toRoot:   make([]chan message, size),
		fromRoot: make([]chan message, size),
	}
	for r := 1; r < size; r++ {
		n.toRoot[r] = make(chan message, 1)
		n.fromRoot[r] = make(chan message, 1)
	}
	comms := make([]Comm, size)
	for r := range size {
		comms[r] = &group{rank: r, size: size, t: &localTransport{net: n, rank: r}}
	}
	return comms, nil
}

func (t *localTransport) link(peer int, out bool) chan message {
	if t.rank == Root {
		if out {
			return t.net.fromRoot[peer]
		}
		return t.net.toRoot[peer]
	}
	if out {
		return t.net.toRoot[t.rank]
	}
	return t.net.fromRoot[t.rank]
}

func (t *localTransport) send(ctx context.Context, peer int, op opcode, seq uint32, payload []byte) error {
	// The receiver may see the message after the sender reuses its buffer.
	m := message{op: op, seq: seq, payload: slices.Clone(payload)}
	select {
	case t.link(peer, true) <- m:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (t *localTransport) recv(ctx context.Context, peer int, op opcode, seq uint32, into []byte) error {
	select {
	case m := <-t.link(peer, false):
		if m.op != op || m.seq != seq || len(m.payload) != len(into) {
			return fmt.Errorf("%w: from rank %d got %v #%d with %d bytes, want %v #%d with %d bytes",
				ErrProtocol, peer, m.op, m.seq, len(m.payload), op, seq, len(into))
		}
		copy(into, m.payload)
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (t *localTransport) close() error { return nil }
