// Package frame implements the system-wide frame table: the registry of
// physical frames currently backing some user page, with allocation,
// lookup, and eviction-victim selection.
//
// The entry list is an owned container/list.List of *Entry rather than
// a hand-rolled linked list with embedded nodes. Allocation and
// eviction share a dedicated acquisition lock that is always taken
// before the table's own mutation lock, so a fault that must evict a
// victim to make room never races another fault doing the same thing.
package frame

import (
	"container/list"
	"sync"

	"vmkern/mem"
	"vmkern/spt"
)

// / Entry is a frame table entry (FTE): the physical frame, its owner,
// / and a back-pointer to the SPTE it backs. The FTE -> SPTE edge is the
// / authoritative ownership link; SPTE -> FTE (Entry.SPTE.FrameBack) is
// / the weak, lookup-only edge re-established on each fault and cleared
// / on each eviction.
type Entry struct {
	Frame mem.Pa_t
	Owner any
	SPTE  *spt.Entry
}

// / WriteBacker performs the eviction write-back: observe the hardware
// / dirty bit, clear the hardware mapping (latching the bit into
// / DirtySticky), and write the page's contents to its backing store
// / according to the victim's SPTE location. It is supplied by the
// / fault/eviction core (package vm), which alone knows how to reach the
// / owner's page directory and the shared swap allocator; the frame
// / table itself only sequences victim selection.
type WriteBacker interface {
	WriteBack(victim *Entry)
}

// / Table is the system-wide frame table. Exactly one Table is shared by
// / every process in the kernel, the same way one physical frame pool
// / backs every address space.
type Table struct {
	acq sync.Mutex // frame-acquisition lock (lock order position 1)

	mu    sync.Mutex // frame-table lock (lock order position 2)
	pool  *mem.Pool
	order *list.List
	index map[mem.Pa_t]*list.Element

	wb WriteBacker
}

// / NewTable creates a Frame Table drawing frames from pool and delegating
// / eviction write-back to wb.
func NewTable(pool *mem.Pool, wb WriteBacker) *Table {
	return &Table{
		pool:  pool,
		order: list.New(),
		index: make(map[mem.Pa_t]*list.Element),
		wb:    wb,
	}
}

// / Alloc obtains a free physical frame (zeroed by the pool), builds an
// / FTE bound to sp, and inserts it into the table. If the pool is
// / exhausted it evicts one victim by policy first. It panics if no frame
// / can be freed even after eviction: frame exhaustion with no evictable
// / victim left is an unrecoverable condition.
func (t *Table) Alloc(owner any, sp *spt.Entry) *Entry {
	t.acq.Lock()
	defer t.acq.Unlock()

	f, ok := t.pool.Alloc()
	if !ok {
		t.evictOneLocked()
		f, ok = t.pool.Alloc()
		if !ok {
			panic("frame: out of frames even after eviction")
		}
	}

	e := &Entry{Frame: f, Owner: owner, SPTE: sp}
	t.mu.Lock()
	t.index[f] = t.order.PushBack(e)
	t.mu.Unlock()

	sp.FrameBack = f
	return e
}

// / Find looks up the FTE currently backing frame f.
func (t *Table) Find(f mem.Pa_t) (*Entry, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	elem, ok := t.index[f]
	if !ok {
		return nil, false
	}
	return elem.Value.(*Entry), true
}

// / Len reports the number of resident frames currently tracked, for tests.
func (t *Table) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.order.Len()
}

// / Evict evicts victim, or, when victim is nil, the frame chosen by
// / policy (FIFO: the least-recently-added frame still in the table).
// / Victim selection and write-back are atomic with respect to concurrent
// / fault handling because both take the frame-acquisition lock.
func (t *Table) Evict(victim *Entry) {
	t.acq.Lock()
	defer t.acq.Unlock()
	if victim == nil {
		t.evictOneLocked()
		return
	}
	t.evictLocked(victim)
}

func (t *Table) evictOneLocked() {
	t.mu.Lock()
	front := t.order.Front()
	t.mu.Unlock()
	if front == nil {
		panic("frame: no victim available to evict")
	}
	t.evictLocked(front.Value.(*Entry))
}

// / Discard removes victim from the table and frees its frame without
// / invoking the write-back hook. Used only by process teardown, for
// / anonymous pages whose whole address space (page directory included)
// / is about to disappear, so there is nothing to write the page back
// / for.
func (t *Table) Discard(victim *Entry) {
	t.acq.Lock()
	defer t.acq.Unlock()

	t.mu.Lock()
	elem, ok := t.index[victim.Frame]
	if !ok {
		t.mu.Unlock()
		panic("frame: discarding an FTE not present in the table")
	}
	t.order.Remove(elem)
	delete(t.index, victim.Frame)
	t.mu.Unlock()

	victim.SPTE.FrameBack = mem.NoFrame
	t.pool.Refdown(victim.Frame)
}

func (t *Table) evictLocked(victim *Entry) {
	// The write-back hook clears the hardware mapping and updates the
	// victim's SPTE location; only after it returns is the frame itself
	// free to hand to another allocation.
	t.wb.WriteBack(victim)

	t.mu.Lock()
	elem, ok := t.index[victim.Frame]
	if !ok {
		t.mu.Unlock()
		panic("frame: evicting an FTE not present in the table")
	}
	t.order.Remove(elem)
	delete(t.index, victim.Frame)
	t.mu.Unlock()

	victim.SPTE.FrameBack = mem.NoFrame
	t.pool.Refdown(victim.Frame)
}
