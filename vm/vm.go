// Package vm is the fault handler and eviction core, plus the
// Process/address-space binder that holds one frame table, swap
// allocator, and mapping-id counter together across many address
// spaces.
//
// The fault path's overall shape (validate address, look up the
// region, allocate a frame, load its contents, install the mapping)
// and the teardown ordering (drain mappings, then free per-region
// state, then drop the page directory) follow a region-tree address
// space model adapted down to this kernel's per-page supplemental
// page table, which has no copy-on-write or shared mappings to carry
// through teardown.
package vm

import (
	"sync"

	"vmkern/defs"
	"vmkern/file"
	"vmkern/frame"
	"vmkern/mem"
	"vmkern/mmap"
	"vmkern/pagedir"
	"vmkern/spt"
	"vmkern/swap"
	"vmkern/util"
)

// / UserMin is the lowest address a user page fault may legitimately
// / name; addresses below it (the null page and a guard region) are
// / always killed.
const UserMin uintptr = 0x08048000

// / UserMax is the boundary of kernel space; a fault at or above it is
// / always killed.
const UserMax uintptr = 0xc0000000

// / StackGrowSlack is the largest distance below the stack pointer a
// / fault may occur at and still be treated as legitimate stack growth.
const StackGrowSlack = 32

// / FaultOutcome is what HandleFault decided. It never terminates the
// / process itself; that decision belongs to whatever dispatched the
// / fault.
type FaultOutcome int

const (
	FaultResolved FaultOutcome = iota
	FaultKilled
)

// / Kernel holds the system-wide state shared by every address space:
// / the physical frame pool, the frame table built over it, the swap
// / allocator, and the mapping-id counter. Exactly one Kernel exists
// / per running system.
type Kernel struct {
	Pool    *mem.Pool
	Frames  *frame.Table
	Swap    *swap.Allocator
	MmapIDs *mmap.IDAllocator
}

// / NewKernel builds a Kernel with nframes physical frames and a swap
// / device dev. The Kernel itself supplies frame.WriteBacker, since
// / only the fault/eviction core knows how to reach a victim's owning
// / process to clear its hardware mapping and reach the swap allocator.
func NewKernel(nframes int, dev swap.BlockDevice) *Kernel {
	k := &Kernel{
		Pool:    mem.NewPool(nframes),
		Swap:    swap.NewAllocator(dev),
		MmapIDs: mmap.NewIDAllocator(),
	}
	k.Frames = frame.NewTable(k.Pool, k)
	return k
}

// / Process binds one supplemental page table, one hardware page
// / directory, and one mapping registry to the Kernel's shared frame
// / table and swap allocator. This is the per-address-space state,
// / without a region tree or copy-on-write bookkeeping since this
// / kernel's simpler per-page model doesn't need either.
type Process struct {
	K     *Kernel
	Dir   *pagedir.Table
	SPT   *spt.Table
	Mmaps *mmap.Registry

	mu sync.Mutex // serializes this process's fault/mmap/exit paths

	sp uintptr // current user stack pointer, for the stack-growth heuristic
}

// / NewProcess creates a fresh address space on Kernel k with an
// / initial stack pointer sp (the top of the user stack, before any
// / growth).
func NewProcess(k *Kernel, sp uintptr) *Process {
	return &Process{
		K:     k,
		Dir:   pagedir.NewTable(),
		SPT:   spt.New(),
		Mmaps: mmap.NewRegistry(k.MmapIDs),
		sp:    sp,
	}
}

// / SetStackPointer records the process's current stack pointer, so a
// / later fault below it can be recognized as stack growth. A real
// / kernel reads this out of the trap frame; this model requires the
// / caller to report it.
func (p *Process) SetStackPointer(sp uintptr) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sp = sp
}

// / HandleFault resolves a page fault at addr. It either installs a
// / frame and returns FaultResolved, or returns FaultKilled for an
// / address that is out of range, unmapped, and not plausibly stack
// / growth.
func (p *Process) HandleFault(addr uintptr, write bool) FaultOutcome {
	p.mu.Lock()
	defer p.mu.Unlock()

	if addr < UserMin || addr >= UserMax {
		return FaultKilled
	}

	e, ok := p.SPT.Lookup(addr)
	if !ok {
		if addr <= p.sp && p.sp-addr <= StackGrowSlack {
			p.growStackLocked(addr)
			return FaultResolved
		}
		return FaultKilled
	}

	if e.Resident() {
		// Two faults raced on the same page; the first to arrive already
		// resolved it. Nothing further to do.
		return FaultResolved
	}

	p.loadLocked(e)
	return FaultResolved
}

// growStackLocked extends the stack downward by one page: a fresh
// anonymous SPTE (a Swap location with no slot yet, the same tag a
// never-evicted anonymous page carries) backed immediately by a
// zeroed frame.
func (p *Process) growStackLocked(addr uintptr) {
	base := mem.PageBase(addr)
	e := &spt.Entry{UserVpage: base, Location: spt.Swap{Slot: -1}}
	if err := p.SPT.Insert(e); err != nil {
		panic("vm: stack growth raced with an existing SPTE")
	}
	fte := p.K.Frames.Alloc(p, e)
	if !p.Dir.SetMapping(base, fte.Frame, true) {
		panic("vm: stack page already mapped")
	}
}

// loadLocked materializes e's contents into a freshly allocated frame
// and installs the hardware mapping.
func (p *Process) loadLocked(e *spt.Entry) {
	fte := p.K.Frames.Alloc(p, e)
	buf := p.K.Pool.Bytes(fte.Frame)

	writable := true
	switch loc := e.Location.(type) {
	case spt.Swap:
		if loc.Slot >= 0 {
			if err := p.K.Swap.Read(swap.Slot(loc.Slot), buf); err != nil {
				panic(err)
			}
			p.K.Swap.Release(swap.Slot(loc.Slot))
			e.Location = spt.Swap{Slot: -1}
		}
	case spt.Mmap:
		rf, err := loc.File.Reopen()
		if err != nil {
			panic(err)
		}
		n, err := rf.ReadAt(buf[:loc.ReadBytes], loc.FileOffset)
		if err != nil {
			panic(err)
		}
		for i := n; i < loc.ReadBytes; i++ {
			buf[i] = 0
		}
		rf.Close()
		writable = loc.Writable
	case spt.Zero:
		// Pool.Alloc already zeroed the frame.
	}

	if !p.Dir.SetMapping(e.UserVpage, fte.Frame, writable) {
		panic("vm: page already mapped")
	}
}

// / WriteBack implements frame.WriteBacker: observe the hardware dirty
// / bit before clearing the mapping (clearing loses the bit), latch it
// / into DirtySticky, then dispatch by location.
func (k *Kernel) WriteBack(victim *frame.Entry) {
	owner := victim.Owner.(*Process)
	e := victim.SPTE

	if owner.Dir.IsDirty(e.UserVpage) {
		e.DirtySticky = true
	}
	owner.Dir.ClearMapping(e.UserVpage)

	switch loc := e.Location.(type) {
	case spt.Mmap:
		if e.DirtySticky {
			rf, err := loc.File.Reopen()
			if err != nil {
				panic(err)
			}
			buf := k.Pool.Bytes(victim.Frame)
			if _, err := rf.WriteAt(buf[:loc.ReadBytes], loc.FileOffset); err != nil {
				panic(err)
			}
			rf.Close()
		}
		e.DirtySticky = false
	default:
		// SWAP and ZERO pages: always allocate a slot and write the frame
		// back. A ZERO page that was never actually written still gets a
		// slot; it's the conservative choice over tracking whether a
		// zero-fill page was ever touched.
		buf := k.Pool.Bytes(victim.Frame)
		slot, err := k.Swap.Write(buf)
		if err != nil {
			panic(err) // out of swap is fatal; there is no lower tier to fall back to
		}
		e.Location = spt.Swap{Slot: int(slot)}
		e.DirtySticky = false
	}
}

// / Mmap installs a file mapping at vaddrBase. fd is checked only for
// / the reserved stdin/stdout values; this kernel has no other notion
// / of file descriptors. It returns the new mapping's id, or a
// / negative defs.Err_t.
func (p *Process) Mmap(fd int, vaddrBase uintptr, f file.File) (int, defs.Err_t) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if vaddrBase == 0 || mem.PageOffset(vaddrBase) != 0 {
		return -1, defs.EINVAL
	}
	if fd == 0 || fd == 1 {
		return -1, defs.EINVAL
	}

	length := f.Length()
	pageCount := 0
	if length > 0 {
		pageCount = int(util.Ceildiv(length, int64(mem.PGSIZE)))
	}

	if err := p.checkRangeClearLocked(vaddrBase, pageCount); err != 0 {
		return -1, err
	}

	reopened, err := f.Reopen()
	if err != nil {
		panic(err)
	}

	rec := p.Mmaps.Add(vaddrBase, pageCount, length, p)

	for i := 0; i < pageCount; i++ {
		vpage := vaddrBase + uintptr(i)*mem.PGSIZE
		readBytes := int(util.Min(int64(mem.PGSIZE), length-int64(i)*int64(mem.PGSIZE)))
		e := &spt.Entry{
			UserVpage: vpage,
			Location: spt.Mmap{
				File:       reopened,
				FileOffset: int64(i) * int64(mem.PGSIZE),
				ReadBytes:  readBytes,
				Writable:   true,
			},
		}
		if err := p.SPT.Insert(e); err != nil {
			panic("vm: mmap conflict after the range was already checked clear")
		}
	}

	return rec.ID, 0
}

// / LoadSegment registers pageCount pages starting at vaddrBase as
// / lazily loaded from f: the first segmentLen bytes starting at
// / fileOffset are real content, and the remainder of the last page is
// / zero-padded on load. It is how a program loader registers an
// / executable's file-backed segments (text, initialized data) before
// / the process ever runs, without the segment being individually
// / unmappable the way an mmap(2) region is, so it bypasses the
// / mapping registry Mmap uses. No frame is allocated here; each page
// / is materialized lazily on first fault, same as any other SPTE.
func (p *Process) LoadSegment(vaddrBase uintptr, pageCount int, f file.File, fileOffset int64, segmentLen int64, writable bool) defs.Err_t {
	p.mu.Lock()
	defer p.mu.Unlock()

	if vaddrBase == 0 || mem.PageOffset(vaddrBase) != 0 || pageCount < 0 {
		return defs.EINVAL
	}
	if err := p.checkRangeClearLocked(vaddrBase, pageCount); err != 0 {
		return err
	}

	reopened, err := f.Reopen()
	if err != nil {
		panic(err)
	}

	for i := 0; i < pageCount; i++ {
		vpage := vaddrBase + uintptr(i)*mem.PGSIZE
		pageOff := int64(i) * int64(mem.PGSIZE)
		readBytes := 0
		if pageOff < segmentLen {
			readBytes = int(util.Min(int64(mem.PGSIZE), segmentLen-pageOff))
		}
		e := &spt.Entry{
			UserVpage: vpage,
			Location: spt.Mmap{
				File:       reopened,
				FileOffset: fileOffset + pageOff,
				ReadBytes:  readBytes,
				Writable:   writable,
			},
		}
		if err := p.SPT.Insert(e); err != nil {
			panic("vm: segment conflict after the range was already checked clear")
		}
	}
	return 0
}

// / ZeroSegment registers pageCount zero-filled anonymous pages
// / starting at vaddrBase, with no backing store until one is evicted.
// / It is how a program loader registers bss: memory a segment's
// / header reserves but the file contains no bytes for.
func (p *Process) ZeroSegment(vaddrBase uintptr, pageCount int) defs.Err_t {
	p.mu.Lock()
	defer p.mu.Unlock()

	if vaddrBase == 0 || mem.PageOffset(vaddrBase) != 0 || pageCount < 0 {
		return defs.EINVAL
	}
	if err := p.checkRangeClearLocked(vaddrBase, pageCount); err != 0 {
		return err
	}

	for i := 0; i < pageCount; i++ {
		vpage := vaddrBase + uintptr(i)*mem.PGSIZE
		e := &spt.Entry{UserVpage: vpage, Location: spt.Zero{}}
		if err := p.SPT.Insert(e); err != nil {
			panic("vm: segment conflict after the range was already checked clear")
		}
	}
	return 0
}

// checkRangeClearLocked reports EEXIST if any page in
// [vaddrBase, vaddrBase+pageCount*PGSIZE) already has an SPTE or a
// hardware mapping.
func (p *Process) checkRangeClearLocked(vaddrBase uintptr, pageCount int) defs.Err_t {
	for i := 0; i < pageCount; i++ {
		vpage := vaddrBase + uintptr(i)*mem.PGSIZE
		if _, ok := p.SPT.Lookup(vpage); ok {
			return defs.EEXIST
		}
		if _, ok := p.Dir.GetMapping(vpage); ok {
			return defs.EEXIST
		}
	}
	return 0
}

// / Munmap tears down mapping id. An unknown id is a silent no-op.
func (p *Process) Munmap(id int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.munmapLocked(id)
}

func (p *Process) munmapLocked(id int) {
	rec, ok := p.Mmaps.Find(id)
	if !ok {
		return
	}
	for i := 0; i < rec.PageCount; i++ {
		vpage := rec.Base + uintptr(i)*mem.PGSIZE
		e, ok := p.SPT.Lookup(vpage)
		if !ok {
			continue
		}
		if e.Resident() {
			fte, ok := p.K.Frames.Find(e.FrameBack)
			if !ok {
				panic("vm: resident SPTE missing its FTE")
			}
			p.K.Frames.Evict(fte)
		}
		p.SPT.Remove(e)
	}
	p.Mmaps.Remove(id)
}

// / Exit tears down the whole address space: drain the mapping
// / registry (writing back dirty mmap(2) pages), walk the remaining
// / SPT releasing each entry's frame or swap slot, then drop the SPT
// / and the page directory. Everything left in the SPT at this point
// / is anonymous memory or a loader-installed segment. A resident
// / segment page is evicted, so a dirty one is written back to its
// / file exactly as it would be on any other eviction. A resident
// / anonymous page is freed without write-back: the address space is
// / dying, so there is nothing left to read it back for.
func (p *Process) Exit() {
	p.mu.Lock()
	defer p.mu.Unlock()

	var ids []int
	p.Mmaps.Each(func(r *mmap.Record) { ids = append(ids, r.ID) })
	for _, id := range ids {
		p.munmapLocked(id)
	}

	var entries []*spt.Entry
	p.SPT.Each(func(e *spt.Entry) { entries = append(entries, e) })
	for _, e := range entries {
		if e.Resident() {
			fte, ok := p.K.Frames.Find(e.FrameBack)
			if !ok {
				panic("vm: resident SPTE missing its FTE")
			}
			if _, fileBacked := e.Location.(spt.Mmap); fileBacked {
				p.K.Frames.Evict(fte)
			} else {
				p.K.Frames.Discard(fte)
			}
		}
		if s, ok := e.Location.(spt.Swap); ok && s.Slot >= 0 {
			p.K.Swap.Release(swap.Slot(s.Slot))
		}
		p.SPT.Remove(e)
	}

	// p.SPT and p.Dir are dropped with the Process itself; there is no
	// explicit pagedir teardown call the way Dec_pmap needs one, since
	// this model's Table is plain Go-managed memory, not a hardware
	// resource with its own refcount.
}
