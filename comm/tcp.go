// Copyright 2025 The go-highway Authors. SPDX-License-Identifier: Apache-2.0

package comm

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"k8s.io/klog/v2"
)

const (
	helloMagic = 0x4d424331 // "MBC1"
	helloSize  = 12
	headerSize = 13

	// DefaultDialTimeout bounds how long a rank keeps retrying to reach the
	// root while the group forms.
	DefaultDialTimeout = 30 * time.Second

	dialBackoffMin = 10 * time.Millisecond
	dialBackoffMax = 500 * time.Millisecond
)

// Config describes one rank of a TCP group.
type Config struct {
	Rank int
	Size int

	// Addr is the root's listen address (host:port).
	Addr string

	// DialTimeout bounds the dial retry loop of non-root ranks. Zero means
	// DefaultDialTimeout.
	DialTimeout time.Duration
}

// Validate checks the rank, size and address.
func (c Config) Validate() error {
	switch {
	case c.Size < 1:
		return fmt.Errorf("%w: size %d", ErrBadConfig, c.Size)
	case c.Rank < 0 || c.Rank >= c.Size:
		return fmt.Errorf("%w: rank %d outside [0, %d)", ErrBadConfig, c.Rank, c.Size)
	case c.Size > 1 && c.Addr == "":
		return fmt.Errorf("%w: no root address", ErrBadConfig)
	}
	if c.Addr != "" {
		if _, _, err := net.SplitHostPort(c.Addr); err != nil {
			return fmt.Errorf("%w: address %q: %v", ErrBadConfig, c.Addr, err)
		}
	}
	return nil
}

// Connect joins the TCP group described by cfg. Rank 0 listens on cfg.Addr
// and waits for every other rank; the others dial it, retrying until
// cfg.DialTimeout.
func Connect(ctx context.Context, cfg Config) (Comm, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Size == 1 {
		return &group{rank: 0, size: 1}, nil
	}
	if cfg.Rank != Root {
		return Dial(ctx, cfg)
	}
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", cfg.Addr)
	if err != nil {
		return nil, fmt.Errorf("comm: listen on %s: %w", cfg.Addr, err)
	}
	defer ln.Close()
	return Accept(ctx, ln, cfg.Size)
}

// Accept forms the root side of a size-rank group on ln. It returns once
// every rank in [1, size) has connected and completed the handshake. The
// caller keeps ownership of ln.
func Accept(ctx context.Context, ln net.Listener, size int) (Comm, error) {
	if size < 1 {
		return nil, fmt.Errorf("%w: size %d", ErrBadConfig, size)
	}
	hsCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	eg, egCtx := errgroup.WithContext(hsCtx)

	// A failed handshake or a cancelled ctx unblocks the accept loop.
	if dl, ok := ln.(interface{ SetDeadline(time.Time) error }); ok {
		stop := context.AfterFunc(egCtx, func() { dl.SetDeadline(time.Now()) })
		defer func() {
			stop()
			dl.SetDeadline(time.Time{})
		}()
	}

	t := &tcpTransport{conns: make([]net.Conn, size)}
	var mu sync.Mutex
	for range size - 1 {
		conn, err := ln.Accept()
		if err != nil {
			cancel()
			if werr := eg.Wait(); werr != nil {
				err = werr
			} else if ctx.Err() != nil {
				err = ctx.Err()
			}
			t.close()
			return nil, fmt.Errorf("comm: accept: %w", err)
		}
		eg.Go(func() error {
			rank, err := serverHello(egCtx, conn, size)
			if err != nil {
				conn.Close()
				return err
			}
			mu.Lock()
			defer mu.Unlock()
			if t.conns[rank] != nil {
				conn.Close()
				return fmt.Errorf("%w: rank %d connected twice", ErrProtocol, rank)
			}
			t.conns[rank] = conn
			klog.V(2).InfoS("Rank joined", "rank", rank, "remote", conn.RemoteAddr())
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		t.close()
		return nil, err
	}
	return &group{rank: Root, size: size, t: t}, nil
}

// Dial connects a non-root rank to the root at cfg.Addr.
func Dial(ctx context.Context, cfg Config) (Comm, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Rank == Root {
		return nil, fmt.Errorf("%w: rank 0 accepts, it does not dial", ErrBadConfig)
	}
	timeout := cfg.DialTimeout
	if timeout <= 0 {
		timeout = DefaultDialTimeout
	}
	dialCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var d net.Dialer
	backoff := dialBackoffMin
	for attempt := 1; ; attempt++ {
		conn, err := d.DialContext(dialCtx, "tcp", cfg.Addr)
		if err == nil {
			if err := clientHello(ctx, conn, cfg.Rank, cfg.Size); err != nil {
				conn.Close()
				return nil, err
			}
			klog.V(2).InfoS("Joined group", "rank", cfg.Rank, "size", cfg.Size, "root", cfg.Addr, "attempts", attempt)
			t := &tcpTransport{conns: []net.Conn{conn}}
			return &group{rank: cfg.Rank, size: cfg.Size, t: t}, nil
		}
		klog.V(4).InfoS("Dial failed, retrying", "addr", cfg.Addr, "attempt", attempt, "err", err)
		select {
		case <-dialCtx.Done():
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, fmt.Errorf("comm: dial %s: gave up after %v: %w", cfg.Addr, timeout, err)
		case <-time.After(backoff):
		}
		backoff = min(2*backoff, dialBackoffMax)
	}
}

// withDeadline makes blocking I/O on conn return once ctx is done.
func withDeadline(ctx context.Context, conn net.Conn, fn func() error) error {
	stop := context.AfterFunc(ctx, func() { conn.SetDeadline(time.Now()) })
	err := fn()
	if !stop() {
		// The deadline was set (or is being set); clear it for the next call.
		conn.SetDeadline(time.Time{})
		if ctxErr := ctx.Err(); ctxErr != nil && err != nil {
			return ctxErr
		}
	}
	return err
}

func putHello(b []byte, rank, size int) {
	binary.LittleEndian.PutUint32(b[0:], helloMagic)
	binary.LittleEndian.PutUint32(b[4:], uint32(rank))
	binary.LittleEndian.PutUint32(b[8:], uint32(size))
}

func parseHello(b []byte) (rank, size int, err error) {
	if binary.LittleEndian.Uint32(b[0:]) != helloMagic {
		return 0, 0, fmt.Errorf("%w: bad handshake magic", ErrProtocol)
	}
	return int(binary.LittleEndian.Uint32(b[4:])), int(binary.LittleEndian.Uint32(b[8:])), nil
}

// clientHello sends (rank, size) and expects the root to echo it back.
func clientHello(ctx context.Context, conn net.Conn, rank, size int) error {
	return withDeadline(ctx, conn, func() error {
		var b [helloSize]byte
		putHello(b[:], rank, size)
		if _, err := conn.Write(b[:]); err != nil {
			return fmt.Errorf("comm: handshake: %w", err)
		}
		if _, err := io.ReadFull(conn, b[:]); err != nil {
			return fmt.Errorf("comm: handshake: %w", err)
		}
		gotRank, gotSize, err := parseHello(b[:])
		if err != nil {
			return err
		}
		if gotRank != rank || gotSize != size {
			return fmt.Errorf("%w: root answered rank %d size %d, sent rank %d size %d", ErrProtocol, gotRank, gotSize, rank, size)
		}
		return nil
	})
}

// serverHello reads a rank's hello, checks it against the group and echoes it.
func serverHello(ctx context.Context, conn net.Conn, size int) (int, error) {
	var rank int
	err := withDeadline(ctx, conn, func() error {
		var b [helloSize]byte
		if _, err := io.ReadFull(conn, b[:]); err != nil {
			return fmt.Errorf("comm: handshake from %s: %w", conn.RemoteAddr(), err)
		}
		r, s, err := parseHello(b[:])
		if err != nil {
			return err
		}
		if s != size {
			return fmt.Errorf("%w: rank %d expects %d ranks, root has %d", ErrProtocol, r, s, size)
		}
		if r <= Root || r >= size {
			return fmt.Errorf("%w: rank %d outside [1, %d)", ErrProtocol, r, size)
		}
		rank = r
		_, err = conn.Write(b[:])
		return err
	})
	return rank, err
}

// tcpTransport frames messages as op (1 byte), seq (4 bytes) and payload
// length (8 bytes), little endian, followed by the payload. On the root
// conns is indexed by rank; elsewhere it holds only the connection to the
// root.
type tcpTransport struct {
	conns []net.Conn
}

func (t *tcpTransport) conn(peer int) net.Conn {
	if len(t.conns) == 1 {
		return t.conns[0]
	}
	return t.conns[peer]
}

func (t *tcpTransport) send(ctx context.Context, peer int, op opcode, seq uint32, payload []byte) error {
	conn := t.conn(peer)
	hdr := make([]byte, headerSize)
	hdr[0] = byte(op)
	binary.LittleEndian.PutUint32(hdr[1:], seq)
	binary.LittleEndian.PutUint64(hdr[5:], uint64(len(payload)))
	return withDeadline(ctx, conn, func() error {
		bufs := net.Buffers{hdr, payload}
		if _, err := bufs.WriteTo(conn); err != nil {
			return fmt.Errorf("send %v to rank %d: %w", op, peer, err)
		}
		return nil
	})
}

func (t *tcpTransport) recv(ctx context.Context, peer int, op opcode, seq uint32, into []byte) error {
	conn := t.conn(peer)
	return withDeadline(ctx, conn, func() error {
		var hdr [headerSize]byte
		if _, err := io.ReadFull(conn, hdr[:]); err != nil {
			return fmt.Errorf("recv %v from rank %d: %w", op, peer, err)
		}
		gotOp := opcode(hdr[0])
		gotSeq := binary.LittleEndian.Uint32(hdr[1:])
		gotLen := binary.LittleEndian.Uint64(hdr[5:])
		if gotOp != op || gotSeq != seq || gotLen != uint64(len(into)) {
			return fmt.Errorf("%w: from rank %d got %v #%d with %d bytes, want %v #%d with %d bytes",
				ErrProtocol, peer, gotOp, gotSeq, gotLen, op, seq, len(into))
		}
		if _, err := io.ReadFull(conn, into); err != nil {
			return fmt.Errorf("recv %v payload from rank %d: %w", op, peer, err)
		}
		return nil
	})
}

func (t *tcpTransport) close() error {
	var errs []error
	for _, c := range t.conns {
		if c != nil {
			errs = append(errs, c.Close())
		}
	}
	return errors.Join(errs...)
}
