// Package pagedir implements the hardware page-directory capability:
// the low-level page-directory/page-table routines a real MMU driver
// would provide, specified here as a capability interface rather than
// reimplemented against real hardware. The fault handler and eviction
// core consume it only through the Directory interface; Table is the
// in-kernel implementation this module ships so the core is
// independently testable.
//
// PTE carries writable/dirty/accessed as named fields (presence is the
// entry existing at all) rather than bit flags on a packed word. A hardware PTE is a
// bit-packed register, but nothing in this core manipulates the bits
// directly, so there is no reason to carry the bit-packing into Go.
package pagedir

import (
	"sync"

	"vmkern/mem"
)

// / PTE describes one hardware page-table entry as the fault handler and
// / eviction core observe it.
type PTE struct {
	Frame    mem.Pa_t
	Writable bool
	Dirty    bool
	Accessed bool
}

// / Directory is the per-process hardware page table capability. vaddr
// / arguments are raw addresses; callers round down to a page base
// / themselves (matching pagedir_get_page et al., which do the same).
type Directory interface {
	GetMapping(vaddr uintptr) (mem.Pa_t, bool)
	SetMapping(vaddr uintptr, frame mem.Pa_t, writable bool) bool
	ClearMapping(vaddr uintptr)
	IsDirty(vaddr uintptr) bool
	IsAccessed(vaddr uintptr) bool
}

// / Table is a software page directory: a per-process map from page base
// / to PTE, guarded by its own lock so that TLB-shootdown-adjacent
// / bookkeeping (dirty/accessed observation) is consistent with concurrent
// / installs from a parent during teardown.
type Table struct {
	mu      sync.Mutex
	entries map[uintptr]*PTE
}

// / NewTable allocates an empty page directory for one address space.
func NewTable() *Table {
	return &Table{entries: make(map[uintptr]*PTE)}
}

// / GetMapping returns the frame mapped at the page containing vaddr, if
// / any.
func (t *Table) GetMapping(vaddr uintptr) (mem.Pa_t, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	base := mem.PageBase(vaddr)
	pte, ok := t.entries[base]
	if !ok {
		return 0, false
	}
	return pte.Frame, true
}

// / SetMapping installs frame at the page containing vaddr. It returns
// / false if a mapping already exists there (callers must ClearMapping
// / first), matching install_page's refusal to overwrite a present
// / mapping in the original source.
func (t *Table) SetMapping(vaddr uintptr, frame mem.Pa_t, writable bool) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	base := mem.PageBase(vaddr)
	if _, ok := t.entries[base]; ok {
		return false
	}
	t.entries[base] = &PTE{Frame: frame, Writable: writable}
	return true
}

// / ClearMapping removes the mapping at vaddr's page, if present. A real
// / implementation also shoots down the TLB entry for every CPU that has
// / this directory loaded; this software model has no TLB to invalidate.
func (t *Table) ClearMapping(vaddr uintptr) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.entries, mem.PageBase(vaddr))
}

// / IsDirty reports the hardware dirty bit for vaddr's page.
func (t *Table) IsDirty(vaddr uintptr) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	pte, ok := t.entries[mem.PageBase(vaddr)]
	return ok && pte.Dirty
}

// / IsAccessed reports the hardware accessed bit for vaddr's page.
func (t *Table) IsAccessed(vaddr uintptr) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	pte, ok := t.entries[mem.PageBase(vaddr)]
	return ok && pte.Accessed
}

// / MarkAccess records a simulated memory access for testing: it sets the
// / accessed bit, and the dirty bit too when write is true. Real hardware
// / sets these bits itself on every load/store; this model requires the
// / test harness to say when an access happened.
func (t *Table) MarkAccess(vaddr uintptr, write bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	pte, ok := t.entries[mem.PageBase(vaddr)]
	if !ok {
		return
	}
	pte.Accessed = true
	if write {
		pte.Dirty = true
	}
}
