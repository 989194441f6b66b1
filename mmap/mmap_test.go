package mmap

import "testing"

func TestAddAssignsMonotonicIDs(t *testing.T) {
	ids := NewIDAllocator()
	r1 := NewRegistry(ids)
	r2 := NewRegistry(ids)

	rec1 := r1.Add(0x1000, 2, 8000, "p1")
	rec2 := r2.Add(0x2000, 1, 10, "p2")
	if rec2.ID <= rec1.ID {
		t.Fatalf("expected the shared IDAllocator to hand out increasing ids across registries, got %d then %d", rec1.ID, rec2.ID)
	}
}

func TestFindAndRemove(t *testing.T) {
	r := NewRegistry(NewIDAllocator())
	rec := r.Add(0x4000, 3, 12000, "owner")

	got, ok := r.Find(rec.ID)
	if !ok || got != rec {
		t.Fatalf("Find(%d) = %v, %v; want the added record", rec.ID, got, ok)
	}

	r.Remove(rec.ID)
	if _, ok := r.Find(rec.ID); ok {
		t.Fatalf("expected record to be gone after Remove")
	}
	// Removing an unknown id is a no-op, not a panic.
	r.Remove(rec.ID)
}

func TestEachVisitsEveryRecord(t *testing.T) {
	r := NewRegistry(NewIDAllocator())
	r.Add(0x1000, 1, 10, nil)
	r.Add(0x2000, 1, 10, nil)
	r.Add(0x3000, 1, 10, nil)

	n := 0
	r.Each(func(rec *Record) { n++ })
	if n != 3 {
		t.Fatalf("Each visited %d records, want 3", n)
	}
	if r.Len() != 3 {
		t.Fatalf("Len() = %d, want 3", r.Len())
	}
}
