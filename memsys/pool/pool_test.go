package pool

import "testing"

func TestAllocFreeReuse(t *testing.T) {
	p, err := New(make([]byte, 16*8), 16, 8, 16)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	blocks := make([][]byte, 0, 8)
	for i := 0; i < 8; i++ {
		b, err := p.Alloc("slot")
		if err != nil {
			t.Fatalf("Alloc %d: %v", i, err)
		}
		blocks = append(blocks, b)
	}

	if _, err := p.Alloc("overflow"); err == nil {
		t.Fatal("expected pool exhaustion error")
	}

	p.Free(blocks[3])
	if p.NumFree() != 1 {
		t.Fatalf("NumFree = %d, want 1", p.NumFree())
	}

	reused, err := p.Alloc("slot")
	if err != nil {
		t.Fatalf("Alloc after free: %v", err)
	}
	if &reused[0] != &blocks[3][0] {
		t.Fatalf("expected freed slot to be reused")
	}
}

func TestCallocZeroes(t *testing.T) {
	p, _ := New(make([]byte, 32), 32, 1, 16)
	b, _ := p.Alloc("dirty")
	for i := range b {
		b[i] = 0xFF
	}
	p.Free(b)

	z, err := p.Calloc("clean")
	if err != nil {
		t.Fatalf("Calloc: %v", err)
	}
	for _, v := range z {
		if v != 0 {
			t.Fatal("Calloc did not zero reused block")
		}
	}
}
