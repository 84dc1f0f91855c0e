//go:build mono

// Package mono provides low-level monotonic time. This file is the opt-in
// "fast" variant built with -tags mono: it calls straight into the runtime's
// internal clock instead of going through time.Now(), at the cost of
// depending on a private runtime symbol.
/*
 * Copyright (c) 2018-2021, NVIDIA CORPORATION. All rights reserved.
 */
package mono

import (
	_ "unsafe" // for go:linkname
)

// https://golang.org/pkg/runtime/?m=all#nanotime
//
//go:linkname NanoTime runtime.nanotime
func NanoTime() int64
