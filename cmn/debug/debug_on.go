//go:build debug

// Package debug provides assertions that compile to no-ops in shipping
// builds and trap on violation when built with the "debug" tag.
/*
 * Copyright (c) 2018-2021, NVIDIA CORPORATION. All rights reserved.
 */
package debug

import "fmt"

func ON() bool { return true }

func Func(f func()) { f() }

func Assert(cond bool, args ...any) {
	if cond {
		return
	}
	if len(args) == 0 {
		panic("assertion failed")
	}
	panic(fmt.Sprint(args...))
}

func Assertf(cond bool, format string, args ...any) {
	if cond {
		return
	}
	panic(fmt.Sprintf(format, args...))
}

func AssertFunc(f func() bool, args ...any) {
	Assert(f(), args...)
}

func AssertNoErr(err error) {
	if err != nil {
		panic(err)
	}
}
