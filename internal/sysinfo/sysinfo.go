// Copyright 2025 The go-highway Authors. SPDX-License-Identifier: Apache-2.0

// Package sysinfo describes the host a benchmark runs on and exposes the
// per-thread CPU clock used by the thread backend.
package sysinfo

import (
	"runtime"
	"strings"

	"golang.org/x/sys/cpu"
)

// Info is a short host description logged at the start of every run.
type Info struct {
	GOOS       string
	GOARCH     string
	NumCPU     int
	GOMAXPROCS int
	Features   []string
}

// Describe collects the runtime and CPU feature information.
func Describe() Info {
	return Info{
		GOOS:       runtime.GOOS,
		GOARCH:     runtime.GOARCH,
		NumCPU:     runtime.NumCPU(),
		GOMAXPROCS: runtime.GOMAXPROCS(0),
		Features:   features(runtime.GOARCH),
	}
}

// FeatureString joins the detected features with commas, or "none".
func (i Info) FeatureString() string {
	if len(i.Features) == 0 {
		return "none"
	}
	return strings.Join(i.Features, ",")
}

type feature struct {
	name string
	ok   bool
}

func features(arch string) []string {
	var flags []feature
	switch arch {
	case "amd64", "386":
		flags = []feature{
			{"sse4.1", cpu.X86.HasSSE41},
			{"sse4.2", cpu.X86.HasSSE42},
			{"avx", cpu.X86.HasAVX},
			{"avx2", cpu.X86.HasAVX2},
			{"fma", cpu.X86.HasFMA},
			{"avx512f", cpu.X86.HasAVX512F},
		}
	case "arm64":
		flags = []feature{
			{"fp", cpu.ARM64.HasFP},
			{"asimd", cpu.ARM64.HasASIMD},
			{"sve", cpu.ARM64.HasSVE},
			{"sve2", cpu.ARM64.HasSVE2},
		}
	}
	var out []string
	for _, f := range flags {
		if f.ok {
			out = append(out, f.name)
		}
	}
	return out
}
