// Package bifurcated routes allocations between a "low" and "high" heap by
// requested size, and recovers the owning heap for a free/realloc by
// address-range membership. Grounded on
// _examples/original_source/source/adk/runtime/bifurcated_heap.h.
/*
 * Copyright (c) 2023, NVIDIA CORPORATION. All rights reserved.
 */
package bifurcated

import (
	"fmt"

	"github.com/nvstream/adk-core/cmn/debug"
	"github.com/nvstream/adk-core/memsys/heap"
)

// Heap routes small allocations to Low and large ones to High, by a
// configurable size threshold.
type Heap struct {
	Low, High *heap.Heap
	Threshold int // size < Threshold routes to Low; size >= Threshold routes to High
}

// New wires low and high heaps behind a single bifurcated_heap_select_by_size
// threshold.
func New(low, high *heap.Heap, threshold int) *Heap {
	return &Heap{Low: low, High: high, Threshold: threshold}
}

// selectBySize is bifurcated_heap_select_by_size: size determines routing
// before the allocation exists, so there is nothing yet to inspect by
// address.
func (b *Heap) selectBySize(size int) *heap.Heap {
	if size < b.Threshold {
		return b.Low
	}
	return b.High
}

// selectByAllocation is bifurcated_heap_select_by_allocation: once a
// pointer exists, the owning heap is recovered by checking which arena's
// address range contains it - the allocation's size class may have
// differed from what Threshold would predict today if Threshold changed
// at runtime, so this is the only correct way to route Free/Realloc.
func (b *Heap) selectByAllocation(ptr []byte) (*heap.Heap, error) {
	switch {
	case b.Low.Contains(ptr):
		return b.Low, nil
	case b.High.Contains(ptr):
		return b.High, nil
	default:
		return nil, fmt.Errorf("bifurcated heap: pointer owned by neither low nor high heap")
	}
}

func (b *Heap) Alloc(size int, tag string) ([]byte, error) {
	return b.selectBySize(size).Alloc(size, tag)
}

func (b *Heap) Calloc(size int, tag string) ([]byte, error) {
	return b.selectBySize(size).Calloc(size, tag)
}

// Free releases ptr via whichever heap actually owns it.
func (b *Heap) Free(ptr []byte) {
	owner, err := b.selectByAllocation(ptr)
	debug.AssertNoErr(err)
	if err != nil {
		return
	}
	owner.Free(ptr)
}

// Realloc resizes ptr. When the new size crosses the threshold into the
// other heap's territory, this degrades to alloc-in-new-heap + memcpy +
// free-from-old-heap, same as the original's cross-heap realloc path.
func (b *Heap) Realloc(ptr []byte, size int, tag string) ([]byte, error) {
	if ptr == nil {
		return b.Alloc(size, tag)
	}
	owner, err := b.selectByAllocation(ptr)
	if err != nil {
		return nil, err
	}
	target := b.selectBySize(size)
	if target == owner {
		return owner.Realloc(ptr, size, tag)
	}

	fresh, err := target.Alloc(size, tag)
	if err != nil {
		return nil, err
	}
	copy(fresh, ptr)
	owner.Free(ptr)
	return fresh, nil
}
