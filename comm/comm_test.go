// Copyright 2025 The go-highway Authors. SPDX-License-Identifier: Apache-2.0

package comm

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

// groupMaker builds the handles of a size-rank group.
type groupMaker func(t *testing.T, size int) []Comm

func localGroup(t *testing.T, size int) []Comm {
	t.Helper()
	comms, err := NewLocal(size)
	require.NoError(t, err)
	return comms
}

func tcpGroup(t *testing.T, size int) []Comm {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()
	addr := ln.Addr().String()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	comms := make([]Comm, size)
	var eg errgroup.Group
	eg.Go(func() error {
		c, err := Accept(ctx, ln, size)
		comms[0] = c
		return err
	})
	for r := 1; r < size; r++ {
		eg.Go(func() error {
			c, err := Dial(ctx, Config{Rank: r, Size: size, Addr: addr, DialTimeout: 5 * time.Second})
			comms[r] = c
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

var makers = []struct {
	name string
	make groupMaker
}{
	{"local", localGroup},
	{"tcp", tcpGroup},
}

// runRanks drives every rank in its own goroutine.
func runRanks(t *testing.T, comms []Comm, fn func(ctx context.Context, c Comm) error) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	eg, ctx := errgroup.WithContext(ctx)
	for _, c := range comms {
		eg.Go(func() error {
			if err := fn(ctx, c); err != nil {
				return fmt.Errorf("rank %d: %w", c.Rank(), err)
			}
			return nil
		})
	}
	require.NoError(t, eg.Wait())
}

func TestRankAndSize(t *testing.T) {
	for _, m := range makers {
		t.Run(m.name, func(t *testing.T) {
			comms := m.make(t, 3)
			for r, c := range comms {
				require.Equal(t, r, c.Rank())
				require.Equal(t, 3, c.Size())
			}
		})
	}
}

func TestBcast(t *testing.T) {
	for _, m := range makers {
		for _, size := range []int{1, 2, 4} {
			t.Run(fmt.Sprintf("%s/size=%d", m.name, size), func(t *testing.T) {
				comms := m.make(t, size)
				got := make([][]float64, size)
				runRanks(t, comms, func(ctx context.Context, c Comm) error {
					buf := make([]float64, 5)
					if c.Rank() == Root {
						buf = []float64{1.5, 2, 3, 4, 5}
					}
					// Two in a row exercises the sequence numbers.
					for range 2 {
						if err := BcastSlice(ctx, c, buf); err != nil {
							return err
						}
					}
					got[c.Rank()] = buf
					return nil
				})
				for r := range size {
					require.Equal(t, []float64{1.5, 2, 3, 4, 5}, got[r], "rank %d", r)
				}
			})
		}
	}
}

func TestGatherv(t *testing.T) {
	// Uneven blocks, including an empty one, as with 3 ranks and 2 rows.
	counts := []int{2, 0, 3}
	displs := []int{0, 2, 2}
	for _, m := range makers {
		for _, all := range []bool{false, true} {
			t.Run(fmt.Sprintf("%s/all=%v", m.name, all), func(t *testing.T) {
				comms := m.make(t, 3)
				got := make([][]int64, 3)
				runRanks(t, comms, func(ctx context.Context, c Comm) error {
					r := c.Rank()
					send := make([]int64, counts[r])
					for i := range send {
						send[i] = int64(10*r + i)
					}
					recv := make([]int64, 5)
					var err error
					if all {
						err = AllgathervSlice(ctx, c, send, recv, counts, displs)
					} else {
						err = GathervSlice(ctx, c, send, recv, counts, displs)
					}
					got[r] = recv
					return err
				})
				want := []int64{0, 1, 20, 21, 22}
				require.Equal(t, want, got[0])
				for r := 1; r < 3; r++ {
					if all {
						require.Equal(t, want, got[r], "rank %d", r)
					} else {
						require.Equal(t, make([]int64, 5), got[r], "rank %d recv untouched", r)
					}
				}
			})
		}
	}
}

func TestBarrierOrdersPhases(t *testing.T) {
	for _, m := range makers {
		t.Run(m.name, func(t *testing.T) {
			comms := m.make(t, 4)
			arrived := make(chan int, 4)
			runRanks(t, comms, func(ctx context.Context, c Comm) error {
				arrived <- c.Rank()
				if err := c.Barrier(ctx); err != nil {
					return err
				}
				// Everyone has arrived before anyone leaves.
				if len(arrived) != 4 {
					return fmt.Errorf("left barrier with %d of 4 arrived", len(arrived))
				}
				return nil
			})
		})
	}
}

func TestGathervBadLayout(t *testing.T) {
	comms := localGroup(t, 2)
	ctx := context.Background()
	err := comms[0].Gatherv(ctx, make([]byte, 2), make([]byte, 4), []int{2}, []int{0})
	require.ErrorIs(t, err, ErrBadLayout)
	err = comms[0].Gatherv(ctx, make([]byte, 3), make([]byte, 4), []int{2, 2}, []int{0, 2})
	require.ErrorIs(t, err, ErrBadLayout)
	err = comms[0].Gatherv(ctx, make([]byte, 2), make([]byte, 3), []int{2, 2}, []int{0, 2})
	require.ErrorIs(t, err, ErrBadLayout)
}

func TestProtocolMismatch(t *testing.T) {
	for _, m := range makers {
		t.Run(m.name, func(t *testing.T) {
			comms := m.make(t, 2)
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			var eg errgroup.Group
			// The root broadcasts while rank 1 enters a barrier.
			eg.Go(func() error { return comms[0].Bcast(ctx, make([]byte, 8)) })
			err := comms[1].Barrier(ctx)
			require.ErrorIs(t, err, ErrProtocol)
			cancel()
			eg.Wait()
		})
	}
}

func TestCancel(t *testing.T) {
	for _, m := range makers {
		t.Run(m.name, func(t *testing.T) {
			comms := m.make(t, 2)
			ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
			defer cancel()
			// Rank 1 never shows up.
			err := comms[0].Barrier(ctx)
			require.Error(t, err)
			require.True(t, errors.Is(err, context.DeadlineExceeded), "got %v", err)
		})
	}
}

func TestClosed(t *testing.T) {
	comms := localGroup(t, 1)
	require.NoError(t, comms[0].Close())
	require.NoError(t, comms[0].Close())
	require.ErrorIs(t, comms[0].Barrier(context.Background()), ErrClosed)
}

func TestNewLocalRejectsBadSize(t *testing.T) {
	_, err := NewLocal(0)
	require.ErrorIs(t, err, ErrBadConfig)
}

func TestConnectSingleRank(t *testing.T) {
	c, err := Connect(context.Background(), Config{Rank: 0, Size: 1})
	require.NoError(t, err)
	defer c.Close()
	buf := []int32{7}
	recv := make([]int32, 1)
	require.NoError(t, c.Barrier(context.Background()))
	require.NoError(t, GathervSlice(context.Background(), c, buf, recv, []int{1}, []int{0}))
	require.Equal(t, []int32{7}, recv)
}

func TestAcceptRejectsWrongSize(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var eg errgroup.Group
	eg.Go(func() error {
		_, err := Dial(ctx, Config{Rank: 1, Size: 3, Addr: ln.Addr().String()})
		return err
	})
	_, err = Accept(ctx, ln, 2)
	require.ErrorIs(t, err, ErrProtocol)
	require.Error(t, eg.Wait())
}

func TestDialGivesUp(t *testing.T) {
	// Grab a free port and release it so nothing listens there.
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	ln.Close()

	start := time.Now()
	_, err = Dial(context.Background(), Config{Rank: 1, Size: 2, Addr: addr, DialTimeout: 100 * time.Millisecond})
	require.Error(t, err)
	require.Less(t, time.Since(start), 5*time.Second)
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
		ok   bool
	}{
		{"single", Config{Rank: 0, Size: 1}, true},
		{"pair", Config{Rank: 1, Size: 2, Addr: "localhost:7000"}, true},
		{"zero size", Config{Rank: 0, Size: 0}, false},
		{"rank too big", Config{Rank: 2, Size: 2, Addr: "localhost:7000"}, false},
		{"negative rank", Config{Rank: -1, Size: 2, Addr: "localhost:7000"}, false},
		{"no addr", Config{Rank: 0, Size: 2}, false},
		{"bad addr", Config{Rank: 0, Size: 2, Addr: "localhost"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.ok {
				require.NoError(t, err)
			} else {
				require.ErrorIs(t, err, ErrBadConfig)
			}
		})
	}
}

func env(m map[string]string) func(string) (string, bool) {
	return func(k string) (string, bool) {
		v, ok := m[k]
		return v, ok
	}
}

func TestConfigFromEnv(t *testing.T) {
	_, ok, err := configFrom(env(nil))
	require.NoError(t, err)
	require.False(t, ok)

	cfg, ok, err := configFrom(env(map[string]string{EnvRank: "2", EnvSize: "4", EnvRootAddr: "10.0.0.1:9000"}))
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, Config{Rank: 2, Size: 4, Addr: "10.0.0.1:9000"}, cfg)

	_, ok, err = configFrom(env(map[string]string{EnvRank: "x", EnvSize: "4"}))
	require.True(t, ok)
	require.ErrorIs(t, err, ErrBadConfig)

	_, _, err = configFrom(env(map[string]string{EnvRank: "4", EnvSize: "4", EnvRootAddr: "h:1"}))
	require.ErrorIs(t, err, ErrBadConfig)
}

func TestEnvironRoundTrip(t *testing.T) {
	m := map[string]string{}
	for _, kv := range Environ(1, 3, "127.0.0.1:5000") {
		k, v, _ := strings.Cut(kv, "=")
		m[k] = v
	}
	cfg, ok, err := configFrom(env(m))
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, Config{Rank: 1, Size: 3, Addr: "127.0.0.1:5000"}, cfg)
}
