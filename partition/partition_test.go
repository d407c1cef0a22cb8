// Copyright 2025 The go-highway Authors. SPDX-License-Identifier: Apache-2.0

package partition

import (
	"errors"
	"fmt"
	"slices"
	"testing"
)

func TestPlanScenarios(t *testing.T) {
	tests := []struct {
		n, workers int
		want       []Range
	}{
		{4, 2, []Range{{0, 2}, {2, 4}}},
		{5, 2, []Range{{0, 3}, {3, 5}}},
		{7, 3, []Range{{0, 3}, {3, 5}, {5, 7}}},
		{1, 1, []Range{{0, 1}}},
		{2, 4, []Range{{0, 1}, {1, 2}, {2, 2}, {2, 2}}},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("n%d_w%d", tt.n, tt.workers), func(t *testing.T) {
			got, err := Plan(tt.n, tt.workers)
			if err != nil {
				t.Fatal(err)
			}
			if !slices.Equal(got, tt.want) {
				t.Errorf("Plan(%d, %d) = %v, want %v", tt.n, tt.workers, got, tt.want)
			}
		})
	}
}

func TestPlanInvariants(t *testing.T) {
	for n := 1; n <= 40; n++ {
		for w := 1; w <= 50; w++ {
			ranges, err := Plan(n, w)
			if err != nil {
				t.Fatalf("Plan(%d, %d): %v", n, w, err)
			}
			if len(ranges) != w {
				t.Fatalf("Plan(%d, %d) returned %d ranges", n, w, len(ranges))
			}
			if err := Validate(ranges, n); err != nil {
				t.Fatalf("Plan(%d, %d): %v", n, w, err)
			}
			for i, r := range ranges {
				if i >= n && !r.Empty() {
					t.Fatalf("Plan(%d, %d): worker %d got %v, want empty", n, w, i, r)
				}
				if i > 0 && ranges[i-1].Len()-r.Len() > 1 {
					t.Fatalf("Plan(%d, %d): sizes %d then %d differ by more than one",
						n, w, ranges[i-1].Len(), r.Len())
				}
			}
		}
	}
}

func TestPlanErrors(t *testing.T) {
	if _, err := Plan(0, 1); !errors.Is(err, ErrInvalidSize) {
		t.Errorf("Plan(0, 1) error = %v, want ErrInvalidSize", err)
	}
	if _, err := Plan(4, 0); !errors.Is(err, ErrInvalidWorkers) {
		t.Errorf("Plan(4, 0) error = %v, want ErrInvalidWorkers", err)
	}
}

func TestLayout(t *testing.T) {
	ranges, _ := Plan(5, 3) // [0,2) [2,4) [4,5)
	counts, displs := Layout(ranges, 5)
	if want := []int{10, 10, 5}; !slices.Equal(counts, want) {
		t.Errorf("counts = %v, want %v", counts, want)
	}
	if want := []int{0, 10, 20}; !slices.Equal(displs, want) {
		t.Errorf("displs = %v, want %v", displs, want)
	}
}

func TestValidateRejects(t *testing.T) {
	tests := []struct {
		name   string
		ranges []Range
	}{
		{"gap", []Range{{0, 1}, {2, 4}}},
		{"overlap", []Range{{0, 3}, {2, 4}}},
		{"short", []Range{{0, 1}, {1, 3}}},
		{"reversed", []Range{{0, 3}, {3, 2}, {2, 4}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := Validate(tt.ranges, 4); !errors.Is(err, ErrInvalidPlan) {
				t.Errorf("Validate(%v) error = %v, want ErrInvalidPlan", tt.ranges, err)
			}
		})
	}
}

func TestRange(t *testing.T) {
	r := Range{Start: 2, End: 5}
	if r.Len() != 3 || r.Empty() {
		t.Errorf("%v: Len = %d, Empty = %v", r, r.Len(), r.Empty())
	}
	if !r.Contains(2) || r.Contains(5) {
		t.Errorf("%v: Contains is not half-open", r)
	}
	if s := r.String(); s != "[2,5)" {
		t.Errorf("String() = %q", s)
	}
}

func BenchmarkPlan(b *testing.B) {
	for b.Loop() {
		Plan(4096, 64)
	}
}
