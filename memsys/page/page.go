// Package page backs heap and pool regions with raw mmap'd memory, and
// implements guard-page mode: an inaccessible page bracketing each side of
// the usable region so that a walk off either end of the arena faults
// instead of silently corrupting an adjacent allocation.
/*
 * Copyright (c) 2023, NVIDIA CORPORATION. All rights reserved.
 */
package page

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// Size returns the host's page size in bytes.
func Size() int { return unix.Getpagesize() }

func alignUp(n, align int) int { return (n + align - 1) &^ (align - 1) }

// Block is a page-aligned mapping. Region is the usable slice; when Guarded
// the mapping carries one extra PROT_NONE page immediately before and after
// Region.
type Block struct {
	Region  []byte
	Guarded bool

	raw []byte // the full mmap'd span, including guard pages
}

// Map allocates size bytes (rounded up to a whole number of pages) of
// anonymous, read/write memory. With guard=true, it brackets the usable
// region with two PROT_NONE guard pages.
func Map(size int, guard bool) (*Block, error) {
	ps := Size()
	usable := alignUp(size, ps)

	total := usable
	if guard {
		total += 2 * ps
	}

	raw, err := unix.Mmap(-1, 0, total, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_ANON|unix.MAP_PRIVATE)
	if err != nil {
		return nil, fmt.Errorf("page: mmap %d bytes: %w", total, err)
	}

	b := &Block{raw: raw, Guarded: guard}
	if guard {
		if err := unix.Mprotect(raw[:ps], unix.PROT_NONE); err != nil {
			unix.Munmap(raw)
			return nil, fmt.Errorf("page: guard head: %w", err)
		}
		if err := unix.Mprotect(raw[len(raw)-ps:], unix.PROT_NONE); err != nil {
			unix.Munmap(raw)
			return nil, fmt.Errorf("page: guard tail: %w", err)
		}
		b.Region = raw[ps : ps+usable]
	} else {
		b.Region = raw[:usable]
	}
	return b, nil
}

// Unmap releases the mapping, guard pages included.
func (b *Block) Unmap() error {
	if b.raw == nil {
		return nil
	}
	err := unix.Munmap(b.raw)
	b.raw, b.Region = nil, nil
	return err
}
