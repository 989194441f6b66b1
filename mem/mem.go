// Package mem manages the system-wide pool of physical frames backing
// user pages: a refcounted free list threaded through a flat array of
// per-frame metadata, rather than a true direct-mapped physical memory
// (this kernel is not bare metal, so frame contents are a plain byte
// arena instead of a direct map).
package mem

import (
	"fmt"
	"sync"

	"vmkern/util"
)

/// PGSHIFT is the base-2 exponent for the page size.
const PGSHIFT = 12

/// PGSIZE is the size of a single page in bytes.
const PGSIZE = 1 << PGSHIFT

/// PGOFFSET masks offsets within a page.
const PGOFFSET = PGSIZE - 1

/// Pa_t identifies a physical frame by its frame number (not a byte
/// address; this pool has no direct map to take an address of).
type Pa_t uint32

/// NoFrame is the all-bits-set sentinel meaning "no frame attached"
/// (the zero value would alias frame 0).
const NoFrame Pa_t = ^Pa_t(0)

type framepg_t struct {
	refcnt int32
	nexti  uint32
	data   [PGSIZE]byte
}

// / Pool is the system-wide physical frame allocator. All processes and
// / the frame table share one Pool instance.
type Pool struct {
	sync.Mutex
	pages   []framepg_t
	freei   uint32
	freelen int32
}

// / NewPool allocates a fixed-size arena of nframes physical frames.
func NewPool(nframes int) *Pool {
	if nframes <= 0 {
		panic("nframes must be positive")
	}
	p := &Pool{
		pages: make([]framepg_t, nframes),
	}
	for i := range p.pages {
		if i+1 < len(p.pages) {
			p.pages[i].nexti = uint32(i + 1)
		} else {
			p.pages[i].nexti = ^uint32(0)
		}
	}
	p.freei = 0
	p.freelen = int32(nframes)
	return p
}

// / NumFrames returns the total frame capacity of the pool.
func (p *Pool) NumFrames() int {
	return len(p.pages)
}

// / Free returns the number of currently unallocated frames.
func (p *Pool) Free() int {
	p.Lock()
	defer p.Unlock()
	return int(p.freelen)
}

// / Alloc removes a frame from the free list, zeroes it, and returns it with
// / a reference count of 1. It returns false if the pool is exhausted;
// / callers (the frame table) are responsible for triggering eviction and
// / retrying.
func (p *Pool) Alloc() (Pa_t, bool) {
	p.Lock()
	defer p.Unlock()
	if p.freei == ^uint32(0) {
		return 0, false
	}
	idx := p.freei
	p.freei = p.pages[idx].nexti
	p.freelen--
	if p.freelen < 0 {
		panic("negative free count")
	}
	pg := &p.pages[idx]
	if pg.refcnt != 0 {
		panic("allocating referenced frame")
	}
	pg.refcnt = 1
	for i := range pg.data {
		pg.data[i] = 0
	}
	return Pa_t(idx), true
}

// / Refup increments a frame's reference count.
func (p *Pool) Refup(f Pa_t) {
	p.Lock()
	defer p.Unlock()
	pg := &p.pages[f]
	if pg.refcnt <= 0 {
		panic("refup of free frame")
	}
	pg.refcnt++
}

// / Refdown decrements a frame's reference count, returning it to the free
// / list and reporting true when the count reaches zero.
func (p *Pool) Refdown(f Pa_t) bool {
	p.Lock()
	defer p.Unlock()
	pg := &p.pages[f]
	if pg.refcnt <= 0 {
		panic("refdown of free frame")
	}
	pg.refcnt--
	if pg.refcnt != 0 {
		return false
	}
	pg.nexti = p.freei
	p.freei = uint32(f)
	p.freelen++
	return true
}

// / Refcnt reports a frame's current reference count, for tests and
// / invariant checks.
func (p *Pool) Refcnt(f Pa_t) int {
	p.Lock()
	defer p.Unlock()
	return int(p.pages[f].refcnt)
}

// / Bytes returns the backing byte slice for a frame, exactly PGSIZE long.
// / This is the kernel's way of turning a frame reference into
// / addressable memory, standing in for a direct-mapped physical range.
func (p *Pool) Bytes(f Pa_t) []byte {
	return p.pages[f].data[:]
}

// / String reports basic pool occupancy, useful in panics and logs.
func (p *Pool) String() string {
	p.Lock()
	defer p.Unlock()
	return fmt.Sprintf("frame pool: %d/%d free", p.freelen, len(p.pages))
}

// / PageBase rounds a virtual address down to its containing page base.
func PageBase(va uintptr) uintptr {
	return util.Rounddown(va, uintptr(PGSIZE))
}

// / PageOffset returns the offset of va within its page.
func PageOffset(va uintptr) uintptr {
	return va & PGOFFSET
}
