// Copyright 2025 The go-highway Authors. SPDX-License-Identifier: Apache-2.0

package backend

import (
	"testing"
	"time"
)

type rooted bool

func (r rooted) IsRoot() bool { return bool(r) }

func TestIsRoot(t *testing.T) {
	if !IsRoot(struct{}{}) {
		t.Error("plain value should be root")
	}
	if !IsRoot(rooted(true)) {
		t.Error("rooted(true) should be root")
	}
	if IsRoot(rooted(false)) {
		t.Error("rooted(false) should not be root")
	}
}

func TestMeanCPU(t *testing.T) {
	var s Stats
	if _, ok := s.MeanCPU(); ok {
		t.Error("MeanCPU of no workers should not be ok")
	}
	s.Workers = []WorkerStats{
		{CPU: 2 * time.Millisecond, Wall: 3 * time.Millisecond},
		{CPU: 4 * time.Millisecond, Wall: 5 * time.Millisecond},
		{Wall: time.Millisecond}, // unmeasured
	}
	got, ok := s.MeanCPU()
	if !ok || got != 3*time.Millisecond {
		t.Errorf("MeanCPU = %v, %v; want 3ms, true", got, ok)
	}
	wall, ok := s.MeanWall()
	if !ok || wall != 3*time.Millisecond {
		t.Errorf("MeanWall = %v, %v; want 3ms, true", wall, ok)
	}
}
