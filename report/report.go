// Copyright 2025 The go-highway Authors. SPDX-License-Identifier: Apache-2.0

// Package report formats benchmark results for the terminal and appends
// them to CSV files.
package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Record is the result of one timed multiplication.
type Record struct {
	Backend   string
	N         int
	Iteration int // 1-based
	Workers   int
	Elapsed   time.Duration

	// MeanCPU is the mean per-worker CPU time, when measured.
	MeanCPU time.Duration
}

// Seconds returns the elapsed time in seconds.
func (r Record) Seconds() float64 { return r.Elapsed.Seconds() }

// MFLOPS returns 2·n³ floating point operations over the elapsed time, in
// millions per second. It is zero for a zero elapsed time.
func (r Record) MFLOPS() float64 {
	if r.Elapsed <= 0 {
		return 0
	}
	n := float64(r.N)
	return 2 * n * n * n / r.Seconds() / 1e6
}

// Printer writes human readable records.
type Printer struct {
	w io.Writer
	p *message.Printer
}

// NewPrinter returns a Printer writing to w, with digit grouping in the
// given language. An undefined tag means English.
func NewPrinter(w io.Writer, tag language.Tag) *Printer {
	if tag == language.Und {
		tag = language.English
	}
	return &Printer{w: w, p: message.NewPrinter(tag)}
}

// Print writes one line per record:
//
//	threads: n=1,000 iteration=1 workers=4 time=0.812345 s 2,462.03 MFLOPS mean-cpu=0.790111 s
func (p *Printer) Print(r Record) error {
	line := p.p.Sprintf("%s: n=%d iteration=%d workers=%d time=%.6f s %.2f MFLOPS",
		r.Backend, r.N, r.Iteration, r.Workers, r.Seconds(), r.MFLOPS())
	if r.MeanCPU > 0 {
		line += fmt.Sprintf(" mean-cpu=%.6f s", r.MeanCPU.Seconds())
	}
	_, err := fmt.Fprintln(p.w, line)
	return err
}

// Summary describes all iterations of a run.
type Summary struct {
	Iterations int
	Min, Max   time.Duration
	Mean       time.Duration
}

// Summarize folds records into a Summary. It returns the zero Summary for
// no records.
func Summarize(records []Record) Summary {
	if len(records) == 0 {
		return Summary{}
	}
	s := Summary{Iterations: len(records), Min: records[0].Elapsed, Max: records[0].Elapsed}
	var total time.Duration
	for _, r := range records {
		s.Min = min(s.Min, r.Elapsed)
		s.Max = max(s.Max, r.Elapsed)
		total += r.Elapsed
	}
	s.Mean = total / time.Duration(len(records))
	return s
}

// PrintSummary writes s on one line. Nothing is written for a single
// iteration.
func (p *Printer) PrintSummary(backend string, s Summary) error {
	if s.Iterations < 2 {
		return nil
	}
	_, err := p.p.Fprintf(p.w, "%s: %d iterations mean=%.6f s min=%.6f s max=%.6f s\n",
		backend, s.Iterations, s.Mean.Seconds(), s.Min.Seconds(), s.Max.Seconds())
	return err
}

// CSV appends records as n,iteration,workers,seconds lines.
type CSV struct {
	path string
}

// NewCSV returns an appender for path. Nothing is opened until Append.
func NewCSV(path string) *CSV { return &CSV{path: path} }

// Path returns the file records are appended to.
func (c *CSV) Path() string { return c.path }

// Append adds r to the file, creating it and its parent directories if
// needed.
func (c *CSV) Append(r Record) error {
	if dir := filepath.Dir(c.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("report: create %s: %w", dir, err)
		}
	}
	f, err := os.OpenFile(c.path, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("report: open %s: %w", c.path, err)
	}
	w := csv.NewWriter(f)
	w.Write([]string{
		strconv.Itoa(r.N),
		strconv.Itoa(r.Iteration),
		strconv.Itoa(r.Workers),
		strconv.FormatFloat(r.Seconds(), 'f', 6, 64),
	})
	w.Flush()
	if err := w.Error(); err != nil {
		f.Close()
		return fmt.Errorf("report: write %s: %w", c.path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("report: close %s: %w", c.path, err)
	}
	return nil
}
