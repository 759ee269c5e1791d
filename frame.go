package kernfs

import (
	"fmt"
	"sync"
)

// frameEntry describes one occupied slot in a FrameTable: which page,
// belonging to which process, currently lives there, plus the
// second-chance clock's reference bit.
type frameEntry struct {
	used    bool
	owner   *Process
	page    *Page
	accessed bool
	pinned  bool
}

// FrameTable is the single global table of physical frames shared by
// every process, mirroring frame.c's one process-wide frame_table
// guarded by frame_table_lock. Eviction uses the second-chance (clock)
// algorithm: sweep forward from the last position, clearing accessed
// bits, and evict the first frame found already clear.
type FrameTable struct {
	mu      sync.Mutex
	pool    *PhysPool
	entries []frameEntry
	clock   int
}

// NewFrameTable creates a frame table backed by pool, with every frame
// initially free.
func NewFrameTable(pool *PhysPool) *FrameTable {
	return &FrameTable{pool: pool, entries: make([]frameEntry, pool.NumFrames())}
}

// Acquire returns a free frame for owner/page, evicting via the
// second-chance clock if the pool is full. The returned frame's bytes
// are zeroed only if the caller asks by calling PhysPool.Zero itself;
// Acquire does not zero, since callers filling the frame from disk or
// swap immediately overwrite it anyway.
func (ft *FrameTable) Acquire(owner *Process, page *Page) (FrameID, error) {
	ft.mu.Lock()
	defer ft.mu.Unlock()

	for i := range ft.entries {
		if !ft.entries[i].used {
			ft.entries[i] = frameEntry{used: true, owner: owner, page: page, accessed: true}
			return FrameID(i), nil
		}
	}

	return ft.evictLocked(owner, page)
}

// evictLocked runs the second-chance clock: it scans at most
// 2*len(entries) frames (one full lap to clear bits, a second to find a
// clear one) and returns ErrNoFrame if that finds nothing to evict,
// which happens only when every frame is pinned. It does not panic.
func (ft *FrameTable) evictLocked(owner *Process, page *Page) (FrameID, error) {
	n := len(ft.entries)
	for sweep := 0; sweep < 2*n; sweep++ {
		i := ft.clock
		ft.clock = (ft.clock + 1) % n

		e := &ft.entries[i]
		if e.pinned {
			continue
		}
		if e.accessed {
			e.accessed = false
			continue
		}

		if err := e.page.evictTo(e.owner); err != nil {
			return 0, err
		}
		ft.entries[i] = frameEntry{used: true, owner: owner, page: page, accessed: true}
		return FrameID(i), nil
	}
	return 0, ErrNoFrame
}

// Release frees frame id, making it available for Acquire.
func (ft *FrameTable) Release(id FrameID) {
	ft.mu.Lock()
	defer ft.mu.Unlock()
	ft.entries[id] = frameEntry{}
}

// Pin/Unpin exempt a frame from eviction while I/O is in flight against
// it (e.g. a page currently being read in from disk), matching the
// reference kernel's pinning discipline around frame_alloc users that
// cannot tolerate their frame disappearing mid-operation.
func (ft *FrameTable) Pin(id FrameID) {
	ft.mu.Lock()
	defer ft.mu.Unlock()
	ft.entries[id].pinned = true
}

func (ft *FrameTable) Unpin(id FrameID) {
	ft.mu.Lock()
	defer ft.mu.Unlock()
	ft.entries[id].pinned = false
}

// Touch marks id as recently accessed. Go cannot observe ordinary memory
// access, so the bit is set only at fault-service points: Acquire sets
// it on every frame it hands out, and Touch sets it again for a frame
// that is already resident. Nothing inside kernfs itself calls Touch
// (see DESIGN.md's note on the access-bit approximation).
func (ft *FrameTable) Touch(id FrameID) {
	ft.mu.Lock()
	defer ft.mu.Unlock()
	ft.entries[id].accessed = true
}

// Bytes returns the frame's backing storage.
func (ft *FrameTable) Bytes(id FrameID) []byte {
	return ft.pool.Frame(id)
}

func (ft *FrameTable) String() string {
	ft.mu.Lock()
	defer ft.mu.Unlock()
	used := 0
	for _, e := range ft.entries {
		if e.used {
			used++
		}
	}
	return fmt.Sprintf("frametable(%d/%d used)", used, len(ft.entries))
}
