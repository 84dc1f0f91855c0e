package bifurcated

import (
	"testing"

	"github.com/nvstream/adk-core/memsys/heap"
)

func TestRoutesBySize(t *testing.T) {
	low := heap.New(make([]byte, 4096), 16, "low")
	high := heap.New(make([]byte, 4096), 16, "high")
	b := New(low, high, 128)

	small, err := b.Alloc(32, "small")
	if err != nil {
		t.Fatalf("Alloc small: %v", err)
	}
	if !low.Contains(small) {
		t.Fatal("expected small allocation to route to low heap")
	}

	big, err := b.Alloc(256, "big")
	if err != nil {
		t.Fatalf("Alloc big: %v", err)
	}
	if !high.Contains(big) {
		t.Fatal("expected large allocation to route to high heap")
	}

	b.Free(small)
	b.Free(big)
}

func TestReallocCrossHeapPreservesContent(t *testing.T) {
	low := heap.New(make([]byte, 4096), 16, "low")
	high := heap.New(make([]byte, 4096), 16, "high")
	b := New(low, high, 128)

	p, _ := b.Alloc(32, "x")
	copy(p, []byte("cross-heap-data!"))

	grown, err := b.Realloc(p, 256, "x")
	if err != nil {
		t.Fatalf("Realloc: %v", err)
	}
	if !high.Contains(grown) {
		t.Fatal("expected growth past threshold to land in high heap")
	}
	if string(grown[:16]) != "cross-heap-data!" {
		t.Fatalf("content lost across heap migration: %q", grown[:16])
	}
}
