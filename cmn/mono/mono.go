//go:build !mono

// Package mono provides low-level monotonic time, used by cmn/nlog to
// timestamp log writes without going through the wall clock.
/*
 * Copyright (c) 2018-2021, NVIDIA CORPORATION. All rights reserved.
 */
package mono

import "time"

var start = time.Now()

// NanoTime returns a monotonic nanosecond timestamp relative to process
// start. Safe to subtract across calls; not comparable to wall-clock time.
func NanoTime() int64 { return time.Since(start).Nanoseconds() }
