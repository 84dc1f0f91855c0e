package heap

import "testing"

func newTestHeap(t *testing.T, size int) *Heap {
	t.Helper()
	return New(make([]byte, size), 16, "test")
}

func TestAllocFreeRoundTrip(t *testing.T) {
	h := newTestHeap(t, 4096)

	a, err := h.Alloc(64, "a")
	if err != nil {
		t.Fatalf("Alloc: %v", err)
	}
	b, err := h.Alloc(64, "b")
	if err != nil {
		t.Fatalf("Alloc: %v", err)
	}

	for i := range a {
		a[i] = 0xAA
	}
	for i := range b {
		b[i] = 0xBB
	}
	for _, v := range a {
		if v != 0xAA {
			t.Fatalf("a corrupted by b's allocation")
		}
	}

	h.Free(a)
	h.Free(b)

	if m := h.GetMetrics(); m.NumUsedBlocks != 0 {
		t.Fatalf("expected 0 used blocks after freeing both, got %d", m.NumUsedBlocks)
	}
	if err := h.Verify(); err != nil {
		t.Fatalf("Verify: %v", err)
	}
}

func TestCoalescesAdjacentFreeBlocks(t *testing.T) {
	h := newTestHeap(t, 4096)

	a, _ := h.Alloc(64, "a")
	b, _ := h.Alloc(64, "b")
	c, _ := h.Alloc(64, "c")
	_ = c

	h.Free(a)
	h.Free(b)

	if err := h.Verify(); err != nil {
		t.Fatalf("Verify after partial free: %v", err)
	}

	m := h.GetMetrics()
	if m.NumMergedBlocks == 0 {
		t.Fatalf("expected adjacent free blocks a and b to coalesce")
	}
}

func TestOutOfMemory(t *testing.T) {
	h := newTestHeap(t, 64)
	if _, err := h.Alloc(1<<20, "too-big"); err == nil {
		t.Fatal("expected out-of-memory error")
	}
}

func TestReallocGrowPreservesContent(t *testing.T) {
	h := newTestHeap(t, 4096)

	p, _ := h.Alloc(16, "x")
	copy(p, []byte("hello world!!!!!"))

	grown, err := h.Realloc(p, 64, "x")
	if err != nil {
		t.Fatalf("Realloc: %v", err)
	}
	if string(grown[:16]) != "hello world!!!!!" {
		t.Fatalf("realloc lost original content: %q", grown[:16])
	}
}
