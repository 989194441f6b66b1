// Package mmap implements the memory-mapped file registry: per-process
// bookkeeping of active file mappings plus the system-wide monotonic
// mapping-identifier counter.
//
// The id counter carries its own lock, separate from the lock guarding
// each process's record list, so that issuing a fresh id in one
// process never contends with lookups or removals in another process's
// registry.
package mmap

import "sync"

// / Record is one active mmap call.
type Record struct {
	Base       uintptr
	PageCount  int
	ID         int
	FileLength int64
	Owner      any
}

// / IDAllocator is the kernel-wide monotonic mapping-id counter. One
// / instance is shared by every process's Registry, matching mmapID being
// / a single package-level counter in the original rather than
// / per-process.
type IDAllocator struct {
	mu   sync.Mutex
	next int
}

// / NewIDAllocator creates a counter starting at zero, matching the
// / original's `int mmapID = 0`.
func NewIDAllocator() *IDAllocator {
	return &IDAllocator{}
}

// / Next returns the next mapping id and advances the counter.
func (a *IDAllocator) Next() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	id := a.next
	a.next++
	return id
}

// / Registry is one process's list of active Mapping Records.
type Registry struct {
	mu      sync.Mutex
	ids     *IDAllocator
	records map[int]*Record
}

// / NewRegistry creates an empty registry that draws mapping ids from ids.
func NewRegistry(ids *IDAllocator) *Registry {
	return &Registry{ids: ids, records: make(map[int]*Record)}
}

// / Add registers a new Record for base/pageCount/fileLength/owner and
// / returns its freshly assigned id. Overlap checking against the SPT and
// / hardware page table happens in the caller (package vm), which alone
// / has access to those tables. Add only does what the registry itself
// / is responsible for: id issuance and bookkeeping.
func (r *Registry) Add(base uintptr, pageCount int, fileLength int64, owner any) *Record {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec := &Record{
		Base:       base,
		PageCount:  pageCount,
		ID:         r.ids.Next(),
		FileLength: fileLength,
		Owner:      owner,
	}
	r.records[rec.ID] = rec
	return rec
}

// / Find returns the record with the given id, owned by this registry, or
// / false if none exists; munmap of an unknown id is a silent no-op.
func (r *Registry) Find(id int) (*Record, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[id]
	return rec, ok
}

// / Remove deletes the record with the given id. It is a no-op if absent.
func (r *Registry) Remove(id int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.records, id)
}

// / Len reports the number of active mappings, for teardown and tests.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.records)
}

// / Each visits every record currently registered. Used by process
// / teardown to drain all mappings before walking the supplemental page
// / table.
func (r *Registry) Each(f func(*Record)) {
	r.mu.Lock()
	recs := make([]*Record, 0, len(r.records))
	for _, rec := range r.records {
		recs = append(recs, rec)
	}
	r.mu.Unlock()
	for _, rec := range recs {
		f(rec)
	}
}
