// Package spt implements the per-process supplemental page table: a
// table from user virtual page base to the descriptor of where its
// contents currently live, backed by vmkern/hashtable instead of a
// hand-rolled hash chain. Where a page resides is a tagged union
// (Swap/Mmap/Zero), not a bit-flag field, so the type system rather
// than a convention keeps those three descriptions from coexisting.
package spt

import (
	"fmt"

	"vmkern/file"
	"vmkern/hashtable"
	"vmkern/mem"
)

// / Location tags where an SPTE's contents live when the page is not
// / resident, or how to materialize them on first fault. Exactly one
// / concrete type implements Location for a given SPTE.
type Location interface {
	isLocation()
}

// / Swap means contents live in a swap slot, or are a fresh anonymous
// / page with no slot yet (Slot == -1).
type Swap struct {
	Slot int // -1 when no slot has ever been written
}

// / Mmap means contents live in a file at a recorded offset and length.
type Mmap struct {
	File       file.File
	FileOffset int64
	ReadBytes  int // <= mem.PGSIZE; tail of the page is zero-padded on load
	Writable   bool
}

// / Zero means contents are all-zero and have no backing store yet.
type Zero struct{}

func (Swap) isLocation() {}
func (Mmap) isLocation() {}
func (Zero) isLocation() {}

// / Entry is a supplemental page table entry (SPTE).
type Entry struct {
	UserVpage uintptr
	Location  Location

	// FrameBack is set while the page is resident; absent (mem.NoFrame)
	// otherwise. Exactly one of {FrameBack present, a Swap slot valid, an
	// Mmap region, or Zero} describes where the contents are recoverable
	// from.
	FrameBack mem.Pa_t

	// DirtySticky latches true once the hardware dirty bit has been
	// observed true, because clearing the hardware mapping loses the bit.
	DirtySticky bool
}

// / Resident reports whether the entry currently has a frame attached.
func (e *Entry) Resident() bool {
	return e.FrameBack != mem.NoFrame
}

// / ErrExists is returned by Insert when an entry for the same virtual
// / page already exists.
var ErrExists = fmt.Errorf("spt: entry already exists for this page")

const tableBuckets = 64

// / Table is one process's supplemental page table, keyed by
// / page-aligned virtual address. Lookup is the fault path's hot path
// / and must be O(1) expected, hence the hash-table backing rather than
// / a sorted or tree-based container.
type Table struct {
	ht *hashtable.Hashtable_t[uintptr, *Entry]
}

// / New allocates an empty supplemental page table for one process.
func New() *Table {
	return &Table{
		ht: hashtable.MkHash[uintptr, *Entry](tableBuckets, hashtable.HashUintptr),
	}
}

// / Insert adds entry, keyed by entry.UserVpage (already page-aligned by
// / the caller). It returns ErrExists if an entry for that page already
// / exists, which mmap installation and stack growth rely on to detect
// / overlap.
func (t *Table) Insert(e *Entry) error {
	if e.FrameBack == 0 {
		// mem.Pa_t's zero value would alias frame 0; callers must use
		// mem.NoFrame for "not resident".
		e.FrameBack = mem.NoFrame
	}
	if !t.ht.Set(e.UserVpage, e) {
		return ErrExists
	}
	return nil
}

// / Lookup rounds vaddr down to its page base and returns the entry there,
// / if any.
func (t *Table) Lookup(vaddr uintptr) (*Entry, bool) {
	base := mem.PageBase(vaddr)
	return t.ht.Get(base)
}

// / Remove deletes entry from the table. It does not release any backing
// / frame or swap slot; the caller is responsible, typically by evicting
// / the frame and releasing the slot first.
func (t *Table) Remove(e *Entry) {
	t.ht.Del(e.UserVpage)
}

// / Len reports the number of entries currently in the table, for tests.
func (t *Table) Len() int {
	return t.ht.Size()
}

// / Each visits every entry in the table. The visitor must not mutate the
// / table (Insert/Remove) while iterating; callers that need to mutate
// / while walking the table collect entries first, then mutate.
func (t *Table) Each(f func(*Entry)) {
	t.ht.Iter(func(_ uintptr, e *Entry) bool {
		f(e)
		return false
	})
}
