package mem

import "testing"

func TestPoolAllocZeroesAndRefcounts(t *testing.T) {
	p := NewPool(4)
	if p.Free() != 4 {
		t.Fatalf("expected 4 free frames, got %d", p.Free())
	}

	f, ok := p.Alloc()
	if !ok {
		t.Fatalf("expected allocation to succeed")
	}
	if p.Refcnt(f) != 1 {
		t.Fatalf("expected refcnt 1, got %d", p.Refcnt(f))
	}
	buf := p.Bytes(f)
	for i, b := range buf {
		if b != 0 {
			t.Fatalf("expected freshly allocated frame to be zeroed, byte %d = %d", i, b)
		}
	}
	buf[0] = 0xff

	p.Refup(f)
	if p.Refcnt(f) != 2 {
		t.Fatalf("expected refcnt 2 after refup, got %d", p.Refcnt(f))
	}
	if freed := p.Refdown(f); freed {
		t.Fatalf("expected frame to still be referenced after one refdown")
	}
	if freed := p.Refdown(f); !freed {
		t.Fatalf("expected frame to be freed after matching refdown")
	}
	if p.Free() != 4 {
		t.Fatalf("expected 4 free frames after release, got %d", p.Free())
	}
}

func TestPoolExhaustion(t *testing.T) {
	p := NewPool(2)
	if _, ok := p.Alloc(); !ok {
		t.Fatalf("expected first alloc to succeed")
	}
	if _, ok := p.Alloc(); !ok {
		t.Fatalf("expected second alloc to succeed")
	}
	if _, ok := p.Alloc(); ok {
		t.Fatalf("expected third alloc to fail on an exhausted pool")
	}
}

func TestPageBaseAndOffset(t *testing.T) {
	va := uintptr(0x1000*3 + 0x123)
	if got := PageBase(va); got != 0x3000 {
		t.Fatalf("PageBase(%x) = %x, want 0x3000", va, got)
	}
	if got := PageOffset(va); got != 0x123 {
		t.Fatalf("PageOffset(%x) = %x, want 0x123", va, got)
	}
}
