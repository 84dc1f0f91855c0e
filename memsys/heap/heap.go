// Package heap implements a first-fit, coalescing block allocator over a
// fixed-size byte arena, optionally backed by a guard-paged mapping
// (memsys/page). One Heap instance is single-owner: callers that share a
// heap across goroutines must wrap it in their own mutex, the way the
// reporter wraps its heap around the HTTP completion callback.
/*
 * Copyright (c) 2023, NVIDIA CORPORATION. All rights reserved.
 */
package heap

import (
	"fmt"
	"unsafe"

	"github.com/nvstream/adk-core/cmn/debug"
	"github.com/nvstream/adk-core/cmn/nlog"
	"github.com/nvstream/adk-core/memsys/page"
)

const (
	defaultAlignment = 16
	minBlockSize     = 16
)

type state uint8

const (
	stateFree state = iota
	stateUsed
)

// block is the out-of-band header for one allocation - the Go equivalent
// of heap_block_header_t, kept in a side structure instead of embedded in
// the arena so the arena itself holds only user bytes.
type block struct {
	offset int
	size   int
	tag    string
	state  state
	prev   *block
	next   *block
}

// Metrics mirrors heap_metrics_t: point-in-time usage counters for a Heap.
type Metrics struct {
	HeapSize       int
	NumUsedBlocks  int
	NumFreeBlocks  int
	UsedBlockSize  int
	FreeBlockSize  int
	NumMergedBlocks int
	MaxUsedSize    int
}

// Heap is a first-fit allocator over a single contiguous byte arena.
type Heap struct {
	name      string
	region    []byte
	alignment int
	blk       *page.Block // non-nil when this Heap owns a guard-paged mapping

	head *block // address-ordered doubly linked list, both used and free blocks
	base uintptr

	byOffset map[int]*block

	numUsed, numFree           int
	usedBytes, freeBytes       int
	numMergedBlocks, maxUsedSz int

	debugChecks bool
}

// New wraps region as a heap arena with the given allocation alignment
// (rounded up to a power of two, default 16).
func New(region []byte, alignment int, name string) *Heap {
	if alignment <= 0 {
		alignment = defaultAlignment
	}
	pow2 := 1
	for pow2 < alignment {
		pow2 <<= 1
	}
	alignment = pow2
	h := &Heap{
		name:      name,
		region:    region,
		alignment: alignment,
		byOffset:  make(map[int]*block),
	}
	if len(region) > 0 {
		h.base = uintptr(unsafe.Pointer(&region[0]))
	}
	root := &block{offset: 0, size: len(region), state: stateFree}
	h.head = root
	h.byOffset[0] = root
	h.numFree = 1
	h.freeBytes = len(region)
	return h
}

// NewGuarded maps a fresh size-byte region in guard-page mode and wraps it
// as a heap; Destroy unmaps it.
func NewGuarded(size int, alignment int, name string) (*Heap, error) {
	blk, err := page.Map(size, true)
	if err != nil {
		return nil, err
	}
	h := New(blk.Region, alignment, name)
	h.blk = blk
	return h, nil
}

// Destroy releases any guard-paged mapping this Heap owns. No-op for a
// Heap built over caller-supplied memory via New.
func (h *Heap) Destroy() error {
	if h.blk == nil {
		return nil
	}
	err := h.blk.Unmap()
	h.blk, h.region = nil, nil
	return err
}

func (h *Heap) align(size int) int {
	a := h.alignment
	return (size + a - 1) &^ (a - 1)
}

// EnableDebugChecks turns on/off Verify-on-every-op; expensive, intended
// for debug builds only (§5 "heap debug checks ... must not be performed
// concurrently with any mutating op").
func (h *Heap) EnableDebugChecks(enable bool) { h.debugChecks = enable }

// Alloc reserves size bytes (first-fit, address order) tagged with tag for
// leak reporting, returning a slice backed directly by the arena.
func (h *Heap) Alloc(size int, tag string) ([]byte, error) {
	if size <= 0 {
		return nil, fmt.Errorf("heap %s: invalid alloc size %d", h.name, size)
	}
	need := h.align(size)

	for b := h.head; b != nil; b = b.next {
		if b.state != stateFree || b.size < need {
			continue
		}
		h.splitAndUse(b, need, tag)
		h.maybeVerify()
		return h.region[b.offset : b.offset+size], nil
	}
	return nil, fmt.Errorf("heap %s: out of memory (heap_size=%d used=%d free=%d alloc_size=%d tag=%s)",
		h.name, len(h.region), h.usedBytes, h.freeBytes, size, tag)
}

// Calloc is Alloc with the returned memory zeroed.
func (h *Heap) Calloc(size int, tag string) ([]byte, error) {
	b, err := h.Alloc(size, tag)
	if err != nil {
		return nil, err
	}
	for i := range b {
		b[i] = 0
	}
	return b, nil
}

func (h *Heap) splitAndUse(b *block, need int, tag string) {
	if b.size-need >= minBlockSize+h.alignment {
		remainder := &block{
			offset: b.offset + need,
			size:   b.size - need,
			state:  stateFree,
			prev:   b,
			next:   b.next,
		}
		if b.next != nil {
			b.next.prev = remainder
		}
		b.next = remainder
		h.byOffset[remainder.offset] = remainder
		b.size = need
	}
	b.state = stateUsed
	b.tag = tag
	h.numFree--
	h.numUsed++
	h.freeBytes -= b.size
	h.usedBytes += b.size
	if h.usedBytes > h.maxUsedSz {
		h.maxUsedSz = h.usedBytes
	}
}

func (h *Heap) blockForPtr(ptr []byte) (*block, error) {
	if len(ptr) == 0 {
		return nil, fmt.Errorf("heap %s: nil/empty pointer", h.name)
	}
	off := int(uintptr(unsafe.Pointer(&ptr[0])) - h.base)
	b, ok := h.byOffset[off]
	if !ok || b.state != stateUsed {
		return nil, fmt.Errorf("heap %s: pointer not a live allocation (offset=%d)", h.name, off)
	}
	return b, nil
}

// Free releases ptr, coalescing with any adjacent free neighbors.
func (h *Heap) Free(ptr []byte) {
	b, err := h.blockForPtr(ptr)
	debug.AssertNoErr(err)
	if err != nil {
		nlog.Errorf("heap %s: free of invalid pointer ignored: %v", h.name, err)
		return
	}

	b.state = stateFree
	b.tag = ""
	h.numUsed--
	h.numFree++
	h.usedBytes -= b.size
	h.freeBytes += b.size

	if n := b.next; n != nil && n.state == stateFree {
		h.mergeInto(b, n)
	}
	if p := b.prev; p != nil && p.state == stateFree {
		h.mergeInto(p, b)
	}
	h.maybeVerify()
}

// mergeInto absorbs dst's immediate successor src into dst; both must be
// free and address-adjacent.
func (h *Heap) mergeInto(dst, src *block) {
	dst.size += src.size
	dst.next = src.next
	if src.next != nil {
		src.next.prev = dst
	}
	delete(h.byOffset, src.offset)
	h.numFree--
	h.numMergedBlocks++
}

// Realloc resizes ptr to size bytes, preserving contents up to the smaller
// of the old and new sizes. A nil ptr behaves like Alloc.
func (h *Heap) Realloc(ptr []byte, size int, tag string) ([]byte, error) {
	if ptr == nil {
		return h.Alloc(size, tag)
	}
	b, err := h.blockForPtr(ptr)
	if err != nil {
		return nil, err
	}
	if size <= b.size {
		return h.region[b.offset : b.offset+size], nil
	}
	fresh, err := h.Alloc(size, tag)
	if err != nil {
		return nil, err
	}
	copy(fresh, h.region[b.offset:b.offset+b.size])
	h.Free(ptr)
	return fresh, nil
}

// Walk visits every block (used and free) in address order.
func (h *Heap) Walk(fn func(tag string, size int, used bool)) {
	for b := h.head; b != nil; b = b.next {
		fn(b.tag, b.size, b.state == stateUsed)
	}
}

// Verify walks the block list checking address ordering, non-overlap,
// positive block sizes, coalescing of adjacent free blocks, and coverage
// of the whole region. It returns an error describing the first violation
// and does not panic itself (maybeVerify asserts on that error when debug
// checks are enabled); intended for debug builds and explicit calls, never
// on the hot path.
func (h *Heap) Verify() error {
	off := 0
	for b := h.head; b != nil; b = b.next {
		if b.offset != off {
			return fmt.Errorf("heap %s: block at %d expected offset %d", h.name, b.offset, off)
		}
		if b.size <= 0 {
			return fmt.Errorf("heap %s: block at %d has non-positive size %d", h.name, b.offset, b.size)
		}
		if b.next != nil && b.state == stateFree && b.next.state == stateFree {
			return fmt.Errorf("heap %s: adjacent free blocks at %d/%d were not coalesced", h.name, b.offset, b.next.offset)
		}
		off += b.size
	}
	if off != len(h.region) {
		return fmt.Errorf("heap %s: block list covers %d bytes, region is %d", h.name, off, len(h.region))
	}
	return nil
}

func (h *Heap) maybeVerify() {
	if !h.debugChecks {
		return
	}
	debug.AssertNoErr(h.Verify())
}

// DebugPrintLeaks logs every still-used block - call at shutdown to find
// allocations that were never freed.
func (h *Heap) DebugPrintLeaks() {
	h.Walk(func(tag string, size int, used bool) {
		if used {
			nlog.Warningf("heap %s: leaked %d bytes tagged %q", h.name, size, tag)
		}
	})
}

// GetMetrics returns a point-in-time usage snapshot.
func (h *Heap) GetMetrics() Metrics {
	return Metrics{
		HeapSize:        len(h.region),
		NumUsedBlocks:   h.numUsed,
		NumFreeBlocks:   h.numFree,
		UsedBlockSize:   h.usedBytes,
		FreeBlockSize:   h.freeBytes,
		NumMergedBlocks: h.numMergedBlocks,
		MaxUsedSize:     h.maxUsedSz,
	}
}

// Contains reports whether ptr lies within this heap's arena - used by
// memsys/bifurcated to recover which heap an allocation belongs to.
func (h *Heap) Contains(ptr []byte) bool {
	if len(ptr) == 0 || len(h.region) == 0 {
		return false
	}
	p := uintptr(unsafe.Pointer(&ptr[0]))
	return p >= h.base && p < h.base+uintptr(len(h.region))
}

// Name returns the heap's diagnostic name.
func (h *Heap) Name() string { return h.name }
