package spt

import (
	"testing"

	"vmkern/mem"
)

func TestInsertRejectsDuplicate(t *testing.T) {
	tbl := New()
	e1 := &Entry{UserVpage: 0x1000, Location: Zero{}}
	if err := tbl.Insert(e1); err != nil {
		t.Fatalf("first Insert failed: %v", err)
	}
	e2 := &Entry{UserVpage: 0x1000, Location: Zero{}}
	if err := tbl.Insert(e2); err != ErrExists {
		t.Fatalf("Insert of a duplicate page = %v, want ErrExists", err)
	}
}

func TestLookupRoundsToPageBase(t *testing.T) {
	tbl := New()
	e := &Entry{UserVpage: 0x2000, Location: Zero{}}
	tbl.Insert(e)

	got, ok := tbl.Lookup(0x2123)
	if !ok || got != e {
		t.Fatalf("Lookup(0x2123) = %v, %v; want the entry at 0x2000", got, ok)
	}
	if _, ok := tbl.Lookup(0x3000); ok {
		t.Fatalf("expected no entry at an unmapped page")
	}
}

func TestFreshEntryIsNotResident(t *testing.T) {
	e := &Entry{UserVpage: 0x4000, Location: Zero{}}
	tbl := New()
	tbl.Insert(e)
	got, _ := tbl.Lookup(0x4000)
	if got.Resident() {
		t.Fatalf("expected a freshly inserted entry to report not resident")
	}
	if got.FrameBack != mem.NoFrame {
		t.Fatalf("expected FrameBack to default to mem.NoFrame, got %v", got.FrameBack)
	}
}

func TestRemove(t *testing.T) {
	tbl := New()
	e := &Entry{UserVpage: 0x5000, Location: Zero{}}
	tbl.Insert(e)
	tbl.Remove(e)
	if _, ok := tbl.Lookup(0x5000); ok {
		t.Fatalf("expected entry to be gone after Remove")
	}
	if tbl.Len() != 0 {
		t.Fatalf("Len() = %d, want 0", tbl.Len())
	}
}

func TestEachVisitsAllEntries(t *testing.T) {
	tbl := New()
	for i := 0; i < 20; i++ {
		tbl.Insert(&Entry{UserVpage: uintptr(i * mem.PGSIZE), Location: Zero{}})
	}
	seen := 0
	tbl.Each(func(e *Entry) { seen++ })
	if seen != 20 {
		t.Fatalf("Each visited %d entries, want 20", seen)
	}
}
