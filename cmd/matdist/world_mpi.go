// Copyright 2025 The go-highway Authors. SPDX-License-Identifier: Apache-2.0

//go:build mpi

package main

import "github.com/ajroetker/matbench/comm"

// worldGroup returns the MPI world. Under mpirun it holds every rank; run
// directly it is a single rank.
func worldGroup() (world comm.Comm, stop func(), ok bool) {
	world, stop = comm.StartMPI()
	return world, stop, true
}
