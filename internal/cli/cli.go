// Copyright 2025 The go-highway Authors. SPDX-License-Identifier: Apache-2.0

// Package cli holds the command line plumbing shared by the benchmark
// binaries: positional arguments, common flags, klog flags and the process
// exit path.
package cli

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"k8s.io/klog/v2"

	"github.com/ajroetker/matbench/backend"
	"github.com/ajroetker/matbench/bench"
	"github.com/ajroetker/matbench/internal/sysinfo"
	"github.com/ajroetker/matbench/matrix"
)

// ErrUsage marks errors caused by invalid arguments. Main prints the usage
// text for them.
var ErrUsage = errors.New("invalid arguments")

// Flags are the options every benchmark binary accepts.
type Flags struct {
	Type   string
	Seed   uint64
	CSV    string
	Verify bool
	Print  bool
}

// Register adds the flags to fs. defaultType is the element type used when
// --type is not given.
func (f *Flags) Register(fs *pflag.FlagSet, defaultType string) {
	fs.StringVar(&f.Type, "type", defaultType, "element type: int, int32, float or float32")
	fs.Uint64Var(&f.Seed, "seed", 0, "seed for the input matrices; 0 picks one from the clock")
	fs.StringVar(&f.CSV, "csv", "", "append one line per iteration to this CSV file")
	fs.BoolVar(&f.Verify, "verify", false, "check every product against an independent reference")
	fs.BoolVar(&f.Print, "print", false, fmt.Sprintf("print A, B and C when the size is at most %d", matrix.MaxPrintSize))
}

// Kind parses --type.
func (f *Flags) Kind() (matrix.Kind, error) {
	k, err := matrix.ParseKind(f.Type)
	if err != nil {
		return matrix.KindInvalid, fmt.Errorf("%w: --type: %v", ErrUsage, err)
	}
	return k, nil
}

// Config returns the bench configuration for an n×n run.
func (f *Flags) Config(n, iterations int) bench.Config {
	return bench.Config{
		N:          n,
		Iterations: iterations,
		Seed:       f.Seed,
		Verify:     f.Verify,
		CSVPath:    f.CSV,
		Print:      f.Print,
	}
}

// Positional parses args as positive integers named by required followed by
// up to len(optional) more. Missing optional values are 1.
func Positional(args, required, optional []string) ([]int, error) {
	if len(args) < len(required) || len(args) > len(required)+len(optional) {
		return nil, fmt.Errorf("%w: got %d arguments, want %d to %d", ErrUsage, len(args), len(required), len(required)+len(optional))
	}
	names := append(append([]string{}, required...), optional...)
	vals := make([]int, len(names))
	for i := range vals {
		vals[i] = 1
		if i >= len(args) {
			continue
		}
		v, err := strconv.Atoi(args[i])
		if err != nil || v < 1 {
			return nil, fmt.Errorf("%w: %s must be a positive integer, got %q", ErrUsage, names[i], args[i])
		}
		vals[i] = v
	}
	return vals, nil
}

// NewCommand returns a root command with klog's flags attached. run
// receives the raw positional arguments.
func NewCommand(use, short string, run func(ctx context.Context, args []string) error) *cobra.Command {
	cmd := &cobra.Command{
		Use:           use,
		Short:         short,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), args)
		},
	}
	AddKlogFlags(cmd.PersistentFlags())
	return cmd
}

// AddKlogFlags registers -v, --logtostderr and the other klog flags on fs.
func AddKlogFlags(fs *pflag.FlagSet) {
	gofs := flag.NewFlagSet("klog", flag.ContinueOnError)
	klog.InitFlags(gofs)
	fs.AddGoFlagSet(gofs)
}

// Main runs cmd through Execute with a context cancelled by SIGINT or
// SIGTERM and exits the process with its code.
func Main(cmd *cobra.Command) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := Execute(ctx, cmd, os.Stderr)
	stop()
	klog.Flush()
	os.Exit(code)
}

// Execute runs cmd and returns the process exit code: 0 on success, 1 on any
// error after reporting it to stderr.
func Execute(ctx context.Context, cmd *cobra.Command, stderr io.Writer) int {
	if err := cmd.ExecuteContext(ctx); err != nil {
		Report(stderr, cmd, err)
		return 1
	}
	return 0
}

// Report writes err, and the usage text for usage errors, to w.
func Report(w io.Writer, cmd *cobra.Command, err error) {
	fmt.Fprintf(w, "Error: %v\n", err)
	if errors.Is(err, ErrUsage) {
		fmt.Fprintf(w, "\n%s", cmd.UsageString())
	}
}

// LogHost logs the host description at verbosity 1.
func LogHost() {
	if !klog.V(1).Enabled() {
		return
	}
	info := sysinfo.Describe()
	klog.V(1).InfoS("Host", "os", info.GOOS, "arch", info.GOARCH, "cpus", info.NumCPU, "gomaxprocs", info.GOMAXPROCS, "features", info.FeatureString())
}

// Bench runs cfg on b, prints to w, and closes b afterwards if it is an
// io.Closer.
func Bench[T matrix.Element](ctx context.Context, cfg bench.Config, b backend.Backend[T], w io.Writer) error {
	if c, ok := b.(io.Closer); ok {
		defer c.Close()
	}
	LogHost()
	_, err := bench.Run(ctx, cfg, b, w)
	return err
}
