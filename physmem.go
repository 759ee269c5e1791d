package kernfs

import (
	"fmt"
	"sync"

	"golang.org/x/sys/unix"
)

// PageSize is the size, in bytes, of one physical frame / virtual page.
// The reference system uses the native 4KiB page; kernfs follows it
// regardless of the host's actual page size so that frame/sector math
// stays fixed (PageSize / SectorSize == 8, matching the reference
// kernel's PGSIZE / BLOCK_SECTOR_SIZE ratio).
const PageSize = 4096

// SectorsPerPage is the number of device sectors backing one frame.
const SectorsPerPage = PageSize / SectorSize

// FrameID identifies one slot in a PhysPool.
type FrameID int

// PhysPool is a fixed-size pool of page-aligned physical memory, backing
// the frame table (frame.go). It is implemented on top of an anonymous
// mmap region obtained via golang.org/x/sys/unix, the same package the
// corpus uses elsewhere for raw OS-level primitives, so that frame
// contents live outside the Go heap/GC and can be addressed by stable
// byte slices for the lifetime of the pool.
type PhysPool struct {
	mu     sync.Mutex
	region []byte
	frames int
}

// NewPhysPool reserves memory for the given number of frames via
// unix.Mmap(MAP_ANON|MAP_PRIVATE). Close must be called to release it.
func NewPhysPool(frames int) (*PhysPool, error) {
	if frames <= 0 {
		return nil, fmt.Errorf("kernfs: PhysPool needs at least one frame")
	}
	region, err := unix.Mmap(-1, 0, frames*PageSize,
		unix.PROT_READ|unix.PROT_WRITE,
		unix.MAP_ANON|unix.MAP_PRIVATE)
	if err != nil {
		return nil, fmt.Errorf("kernfs: mmap frame pool: %w", err)
	}
	return &PhysPool{region: region, frames: frames}, nil
}

// NumFrames reports the pool's total capacity.
func (p *PhysPool) NumFrames() int {
	return p.frames
}

// Frame returns the byte slice backing frame id. The slice is exactly
// PageSize long and aliases the pool's mmap region; callers must not
// retain it past the frame's next eviction.
func (p *PhysPool) Frame(id FrameID) []byte {
	off := int(id) * PageSize
	return p.region[off : off+PageSize]
}

// Zero clears frame id to all zero bytes, for callers of
// FrameTable.Acquire that need a blank frame (Acquire does not zero).
func (p *PhysPool) Zero(id FrameID) {
	clear(p.Frame(id))
}

// Close unmaps the pool's region. The pool must not be used afterward.
func (p *PhysPool) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.region == nil {
		return nil
	}
	err := unix.Munmap(p.region)
	p.region = nil
	return err
}
