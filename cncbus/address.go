// Package cncbus implements an in-process, address/subnet-routed message
// bus: producers assemble a message and hand it off asynchronously,
// dispatcher goroutines drain the queue and deliver matching messages to
// connected receivers. Grounded on
// _examples/original_source/tests/cncbus_tests.c (no cncbus.c itself was
// retrieved, so the implementation is derived from the test fixture's
// observable API and invariants) and on the teacher's transport/ package
// for the surrounding Go idiom (explicit header/body separation, unchecked
// vs. checked send variants).
/*
 * Copyright (c) 2023, NVIDIA CORPORATION. All rights reserved.
 */
package cncbus

import "fmt"

// Address is a 4-octet bus address, laid out and compared the same way an
// IPv4 address is: MakeAddress(10,10,1,1) sorts and masks byte-for-byte.
type Address uint32

// InvalidAddress marks "no reply address" / "unset" in message headers.
const InvalidAddress Address = 0

// BroadcastSubnet is the subnet mask that requires an exact address match.
const BroadcastSubnet Address = 0xffffffff

// MakeAddress packs four octets into an Address, most-significant first.
func MakeAddress(a, b, c, d byte) Address {
	return Address(a)<<24 | Address(b)<<16 | Address(c)<<8 | Address(d)
}

// Matches reports whether dest, masked by subnet, matches this address
// masked by the same subnet - the routing rule cncbus_dispatch uses to
// decide whether a connected receiver should get a given message.
func (a Address) Matches(dest, subnet Address) bool {
	return Address(a)&subnet == dest&subnet
}

func (a Address) String() string {
	return fmt.Sprintf("%d.%d.%d.%d", byte(a>>24), byte(a>>16), byte(a>>8), byte(a))
}

func (a Address) bytes() [4]byte {
	return [4]byte{byte(a >> 24), byte(a >> 16), byte(a >> 8), byte(a)}
}
