// Copyright 2025 The go-highway Authors. SPDX-License-Identifier: Apache-2.0

//go:build !mpi

package main

import "github.com/ajroetker/matbench/comm"

// worldGroup reports that the binary was built without MPI.
func worldGroup() (world comm.Comm, stop func(), ok bool) { return nil, nil, false }
