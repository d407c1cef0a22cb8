// Copyright 2025 The go-highway Authors. SPDX-License-Identifier: Apache-2.0

package loop

import (
	"errors"
	"fmt"
	"testing"

	"github.com/ajroetker/matbench/backend/backendtest"
	"github.com/ajroetker/matbench/partition"
)

func TestBackend(t *testing.T) {
	opts := []Options{
		{Schedule: Static},
		{Schedule: Dynamic},
		{Schedule: Dynamic, Chunk: 1},
		{Schedule: Dynamic, Chunk: 7},
		{Schedule: Dynamic, Chunk: 1 << 20},
	}
	for _, workers := range []int{1, 3, 4} {
		for _, o := range opts {
			t.Run(fmt.Sprintf("W=%d/%v/chunk=%d", workers, o.Schedule, o.Chunk), func(t *testing.T) {
				bi, err := New[int64](workers, o)
				if err != nil {
					t.Fatal(err)
				}
				defer bi.Close()
				t.Run("int64", func(t *testing.T) { backendtest.Run(t, bi) })

				bf, err := New[float64](workers, o)
				if err != nil {
					t.Fatal(err)
				}
				defer bf.Close()
				t.Run("float64", func(t *testing.T) { backendtest.Run(t, bf) })
			})
		}
	}
}

func TestName(t *testing.T) {
	b, _ := New[int64](2, Options{Schedule: Dynamic})
	defer b.Close()
	if got := b.Name(); got != "loop-dynamic" {
		t.Errorf("Name() = %q", got)
	}
	if got := b.Workers(); got != 2 {
		t.Errorf("Workers() = %d", got)
	}
}

func TestParseSchedule(t *testing.T) {
	tests := []struct {
		in   string
		want Schedule
		ok   bool
	}{
		{"static", Static, true},
		{"dynamic", Dynamic, true},
		{"DYNAMIC", Dynamic, true},
		{"guided", 0, false},
		{"", 0, false},
	}
	for _, tt := range tests {
		got, err := ParseSchedule(tt.in)
		if tt.ok {
			if err != nil || got != tt.want {
				t.Errorf("ParseSchedule(%q) = %v, %v; want %v", tt.in, got, err, tt.want)
			}
			continue
		}
		if !errors.Is(err, ErrUnknownSchedule) {
			t.Errorf("ParseSchedule(%q) error = %v, want ErrUnknownSchedule", tt.in, err)
		}
	}
}

func TestNewRejectsBadOptions(t *testing.T) {
	if _, err := New[int64](0, Options{}); !errors.Is(err, partition.ErrInvalidWorkers) {
		t.Errorf("zero workers: %v", err)
	}
	if _, err := New[int64](2, Options{Schedule: Schedule(9)}); !errors.Is(err, ErrUnknownSchedule) {
		t.Errorf("bad schedule: %v", err)
	}
	if _, err := New[int64](2, Options{Chunk: -1}); err == nil {
		t.Error("negative chunk accepted")
	}
}

// A closed pool still computes the product, on the calling goroutine.
func TestClosedPoolStillMultiplies(t *testing.T) {
	for _, o := range []Options{{}, {Schedule: Dynamic, Chunk: 1}} {
		b, _ := New[int64](4, o)
		b.Close()
		backendtest.Random(t, b, 6, 2)
	}
}
