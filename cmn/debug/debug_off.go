//go:build !debug

// Package debug provides assertions that compile to no-ops in shipping
// builds and trap on violation when built with the "debug" tag.
/*
 * Copyright (c) 2018-2021, NVIDIA CORPORATION. All rights reserved.
 */
package debug

func ON() bool { return false }

// Func runs f only in debug builds - for invariant walks that are too
// expensive to pay for unconditionally (heap/pool free-list walks, §5).
func Func(_ func()) {}

func Assert(_ bool, _ ...any)            {}
func Assertf(_ bool, _ string, _ ...any) {}
func AssertFunc(_ func() bool, _ ...any) {}
func AssertNoErr(_ error)                {}
