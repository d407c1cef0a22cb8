// Copyright 2025 The go-highway Authors. SPDX-License-Identifier: Apache-2.0

package comm

import (
	"fmt"
	"os"
	"strconv"
)

// Environment variables carrying a rank's group context.
const (
	EnvRank     = "MATBENCH_RANK"
	EnvSize     = "MATBENCH_SIZE"
	EnvRootAddr = "MATBENCH_ROOT_ADDR"
)

// ConfigFromEnv reads the group context set by a launcher. ok is false when
// none of the variables is set, meaning the program was not launched as a
// rank.
func ConfigFromEnv() (cfg Config, ok bool, err error) {
	return configFrom(os.LookupEnv)
}

func configFrom(lookup func(string) (string, bool)) (Config, bool, error) {
	rank, hasRank := lookup(EnvRank)
	size, hasSize := lookup(EnvSize)
	addr, hasAddr := lookup(EnvRootAddr)
	if !hasRank && !hasSize && !hasAddr {
		return Config{}, false, nil
	}
	var cfg Config
	var err error
	if cfg.Rank, err = strconv.Atoi(rank); err != nil {
		return Config{}, true, fmt.Errorf("%w: %s=%q", ErrBadConfig, EnvRank, rank)
	}
	if cfg.Size, err = strconv.Atoi(size); err != nil {
		return Config{}, true, fmt.Errorf("%w: %s=%q", ErrBadConfig, EnvSize, size)
	}
	cfg.Addr = addr
	if err := cfg.Validate(); err != nil {
		return Config{}, true, err
	}
	return cfg, true, nil
}

// Environ returns the variables that place a process at rank in a size-rank
// group rooted at addr, in os/exec form.
func Environ(rank, size int, addr string) []string {
	return []string{
		EnvRank + "=" + strconv.Itoa(rank),
		EnvSize + "=" + strconv.Itoa(size),
		EnvRootAddr + "=" + addr,
	}
}
