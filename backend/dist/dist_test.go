// Copyright 2025 The go-highway Authors. SPDX-License-Identifier: Apache-2.0

package dist

import (
	"context"
	"fmt"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/ajroetker/matbench/backend"
	"github.com/ajroetker/matbench/backend/backendtest"
	"github.com/ajroetker/matbench/comm"
	"github.com/ajroetker/matbench/kernel"
	"github.com/ajroetker/matbench/matrix"
	"github.com/ajroetker/matbench/partition"
)

func tcpComms(t *testing.T, size int) []comm.Comm {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	comms := make([]comm.Comm, size)
	var eg errgroup.Group
	eg.Go(func() (err error) {
		comms[0], err = comm.Accept(ctx, ln, size)
		return err
	})
	for r := 1; r < size; r++ {
		eg.Go(func() (err error) {
			comms[r], err = comm.Dial(ctx, comm.Config{Rank: r, Size: size, Addr: ln.Addr().String()})
			return err
		})
	}
	require.NoError(t, eg.Wait())
	t.Cleanup(func() {
		for _, c := range comms {
			c.Close()
		}
	})
	return comms
}

func localComms(t *testing.T, size int) []comm.Comm {
	t.Helper()
	comms, err := comm.NewLocal(size)
	require.NoError(t, err)
	return comms
}

type result[T matrix.Element] struct {
	c     []*matrix.Dense[T]
	stats []backend.Stats
	want  *matrix.Dense[T]
}

// multiply runs iterations multiplications on every rank, with only the root
// filling A and B.
func multiply[T matrix.Element](t *testing.T, comms []comm.Comm, n, iterations int, opts Options) result[T] {
	t.Helper()
	size := len(comms)
	res := result[T]{c: make([]*matrix.Dense[T], size), stats: make([]backend.Stats, size)}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	eg, ctx := errgroup.WithContext(ctx)
	for _, c := range comms {
		eg.Go(func() error {
			b := New[T](c, opts)
			s, err := b.Allocate(n)
			if err != nil {
				return err
			}
			defer s.Close()
			if b.IsRoot() {
				rng := matrix.NewRand(uint64(n))
				matrix.Fill(s.A, rng)
				matrix.Fill(s.B, rng)
				want, _ := matrix.New[T](n)
				kernel.Dense(s.A, s.B, want)
				res.want = want
			}
			for it := range iterations {
				stats, err := b.Multiply(ctx, s)
				if err != nil {
					return fmt.Errorf("rank %d iteration %d: %w", c.Rank(), it, err)
				}
				res.stats[c.Rank()] = stats
			}
			res.c[c.Rank()] = s.C.Clone()
			return nil
		})
	}
	require.NoError(t, eg.Wait())
	return res
}

func TestMultiply(t *testing.T) {
	groups := []struct {
		name string
		make func(*testing.T, int) []comm.Comm
	}{
		{"local", localComms},
		{"tcp", tcpComms},
	}
	for _, g := range groups {
		for _, tc := range []struct{ n, ranks int }{{1, 1}, {4, 2}, {5, 2}, {7, 3}, {2, 4}, {100, 4}} {
			t.Run(fmt.Sprintf("%s/n=%d/P=%d", g.name, tc.n, tc.ranks), func(t *testing.T) {
				res := multiply[float64](t, g.make(t, tc.ranks), tc.n, 2, Options{})
				backendtest.Equal(t, res.want, res.c[comm.Root])
				root := res.stats[comm.Root]
				require.Positive(t, root.Elapsed)
				want, _ := partition.Plan(tc.n, tc.ranks)
				require.Len(t, root.Workers, tc.ranks)
				for i, ws := range root.Workers {
					require.Equal(t, want[i], ws.Range)
				}
				for r := 1; r < tc.ranks; r++ {
					require.Nil(t, res.stats[r].Workers, "rank %d", r)
				}
			})
		}
	}
}

func TestMultiplyInt(t *testing.T) {
	res := multiply[int64](t, localComms(t, 3), 10, 1, Options{})
	backendtest.Equal(t, res.want, res.c[comm.Root])
}

func TestAllGather(t *testing.T) {
	res := multiply[float64](t, localComms(t, 3), 8, 1, Options{AllGather: true})
	for r, c := range res.c {
		backendtest.Equal(t, res.want, c)
		require.True(t, c.Equal(res.c[comm.Root]), "rank %d", r)
	}
}

func TestNonRootKeepsGatherOnRoot(t *testing.T) {
	res := multiply[float64](t, localComms(t, 2), 4, 1, Options{})
	// Rank 1 holds only the rows it computed; it never receives C.
	require.Equal(t, make([]float64, 8), res.c[1].Rows(0, 2))
	require.Equal(t, res.want.Rows(2, 4), res.c[1].Rows(2, 4))
}

func TestIdentity(t *testing.T) {
	groups := []struct {
		name string
		make func(*testing.T, int) []comm.Comm
	}{
		{"local", localComms},
		{"tcp", tcpComms},
	}
	const n = 3
	for _, g := range groups {
		for _, ranks := range []int{1, 2, 4} {
			t.Run(fmt.Sprintf("%s/P=%d", g.name, ranks), func(t *testing.T) {
				comms := g.make(t, ranks)
				ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()

				var (
					b0 *matrix.Dense[int64]
					c0 *matrix.Dense[int64]
				)
				eg, ctx := errgroup.WithContext(ctx)
				for _, c := range comms {
					eg.Go(func() error {
						b := New[int64](c, Options{})
						s, err := b.Allocate(n)
						if err != nil {
							return err
						}
						defer s.Close()
						if b.IsRoot() {
							id, _ := matrix.Identity[int64](n)
							if err := s.A.CopyFrom(id); err != nil {
								return err
							}
							for i := range n {
								for j := range n {
									s.B.Set(i, j, int64(i*n+j+1))
								}
							}
						}
						if _, err := b.Multiply(ctx, s); err != nil {
							return fmt.Errorf("rank %d: %w", c.Rank(), err)
						}
						if b.IsRoot() {
							b0, c0 = s.B.Clone(), s.C.Clone()
						}
						return nil
					})
				}
				require.NoError(t, eg.Wait())
				require.True(t, c0.Equal(b0), "I * B = %v, want %v", c0.Data(), b0.Data())
			})
		}
	}
}

func TestSizeMismatch(t *testing.T) {
	comms := localComms(t, 3)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	errs := make([]error, len(comms))
	var eg errgroup.Group
	for _, c := range comms {
		eg.Go(func() error {
			n := 4
			if c.Rank() == 2 {
				n = 5
			}
			b := New[float64](c, Options{})
			s, err := b.Allocate(n)
			if err != nil {
				return err
			}
			defer s.Close()
			_, errs[c.Rank()] = b.Multiply(ctx, s)
			return nil
		})
	}
	require.NoError(t, eg.Wait())
	for r, err := range errs {
		require.ErrorIs(t, err, ErrSizeMismatch, "rank %d", r)
	}
}

func TestRootAndWorkers(t *testing.T) {
	comms := localComms(t, 2)
	b0, b1 := New[int64](comms[0], Options{}), New[int64](comms[1], Options{})
	require.True(t, backend.IsRoot(b0))
	require.False(t, backend.IsRoot(b1))
	require.Equal(t, 2, b0.Workers())
	require.Equal(t, "distributed", b1.Name())
}
