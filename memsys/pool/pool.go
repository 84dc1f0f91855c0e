// Package pool implements a fixed-block-size object pool: every slot is
// the same size, so alloc/free are O(1) index-list operations with no
// first-fit search or coalescing.
/*
 * Copyright (c) 2023, NVIDIA CORPORATION. All rights reserved.
 */
package pool

import (
	"fmt"
	"unsafe"

	"github.com/nvstream/adk-core/cmn/debug"
	"github.com/nvstream/adk-core/memsys/page"
)

const defaultAlignment = 16

// Pool hands out fixed-size blocks from a preallocated arena.
type Pool struct {
	region    []byte
	blockSize int
	numBlocks int
	base      uintptr
	blk       *page.Block

	free []int // indices of free blocks, used as a stack
	used map[int]string // index -> tag, for leak reporting

	debugChecks bool
}

// New carves region into numBlocks fixed-size slots. blockSize is rounded
// up to alignment (default 16); region must be at least
// numBlocks*alignedBlockSize bytes.
func New(region []byte, blockSize, numBlocks, alignment int) (*Pool, error) {
	if alignment <= 0 {
		alignment = defaultAlignment
	}
	aligned := (blockSize + alignment - 1) &^ (alignment - 1)
	need := aligned * numBlocks
	if len(region) < need {
		return nil, fmt.Errorf("pool: region of %d bytes too small for %d blocks of %d bytes", len(region), numBlocks, aligned)
	}

	p := &Pool{
		region:    region,
		blockSize: aligned,
		numBlocks: numBlocks,
		used:      make(map[int]string, numBlocks),
	}
	if len(region) > 0 {
		p.base = uintptr(unsafe.Pointer(&region[0]))
	}
	p.free = make([]int, numBlocks)
	for i := 0; i < numBlocks; i++ {
		p.free[i] = numBlocks - 1 - i // pop from the end, so index 0 is handed out first
	}
	return p, nil
}

// NewGuarded maps a guard-paged arena sized for numBlocks blocks of
// blockSize and wraps it as a Pool.
func NewGuarded(blockSize, numBlocks, alignment int) (*Pool, error) {
	if alignment <= 0 {
		alignment = defaultAlignment
	}
	aligned := (blockSize + alignment - 1) &^ (alignment - 1)
	blk, err := page.Map(aligned*numBlocks, true)
	if err != nil {
		return nil, err
	}
	p, err := New(blk.Region, blockSize, numBlocks, alignment)
	if err != nil {
		blk.Unmap()
		return nil, err
	}
	p.blk = blk
	return p, nil
}

// Destroy releases any guard-paged mapping this Pool owns.
func (p *Pool) Destroy() error {
	if p.blk == nil {
		return nil
	}
	err := p.blk.Unmap()
	p.blk, p.region = nil, nil
	return err
}

// Alloc hands out one block tagged tag, or an error if the pool is full.
func (p *Pool) Alloc(tag string) ([]byte, error) {
	if len(p.free) == 0 {
		return nil, fmt.Errorf("pool: exhausted (%d blocks, size=%d, tag=%s)", p.numBlocks, p.blockSize, tag)
	}
	idx := p.free[len(p.free)-1]
	p.free = p.free[:len(p.free)-1]
	p.used[idx] = tag

	off := idx * p.blockSize
	return p.region[off : off+p.blockSize], nil
}

// Calloc is Alloc with the returned block zeroed.
func (p *Pool) Calloc(tag string) ([]byte, error) {
	b, err := p.Alloc(tag)
	if err != nil {
		return nil, err
	}
	for i := range b {
		b[i] = 0
	}
	return b, nil
}

func (p *Pool) indexOf(ptr []byte) (int, error) {
	if len(ptr) == 0 {
		return 0, fmt.Errorf("pool: nil/empty pointer")
	}
	off := int(uintptr(unsafe.Pointer(&ptr[0])) - p.base)
	if off < 0 || off%p.blockSize != 0 {
		return 0, fmt.Errorf("pool: pointer not block-aligned (offset=%d)", off)
	}
	idx := off / p.blockSize
	if idx < 0 || idx >= p.numBlocks {
		return 0, fmt.Errorf("pool: pointer out of range (index=%d)", idx)
	}
	return idx, nil
}

// Free returns ptr (previously returned by Alloc/Calloc) to the pool.
func (p *Pool) Free(ptr []byte) {
	idx, err := p.indexOf(ptr)
	debug.AssertNoErr(err)
	if err != nil {
		return
	}
	if _, ok := p.used[idx]; !ok {
		debug.Assert(false, "pool: double free of index ", idx)
		return
	}
	delete(p.used, idx)
	p.free = append(p.free, idx)
}

// EnableDebugChecks records the flag; Alloc and Free do not read it. Free's
// alignment, range and double-free assertions run whenever debug
// assertions are compiled in.
func (p *Pool) EnableDebugChecks(enable bool) { p.debugChecks = enable }

// NumUsed/NumFree report live usage for leak/metrics reporting.
func (p *Pool) NumUsed() int { return len(p.used) }
func (p *Pool) NumFree() int { return len(p.free) }

// Contains reports whether ptr lies within this pool's arena.
func (p *Pool) Contains(ptr []byte) bool {
	if len(ptr) == 0 || len(p.region) == 0 {
		return false
	}
	addr := uintptr(unsafe.Pointer(&ptr[0]))
	return addr >= p.base && addr < p.base+uintptr(len(p.region))
}
