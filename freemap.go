package kernfs

import (
	"fmt"
	"sync"
)

// FreeMap is the device's sector allocation bitmap. One bit per sector;
// a set bit means "allocated". It persists as a raw contiguous run of
// sectors anchored at FreeMapSector, written directly with
// Device.ReadSector/WriteSector rather than through the inode layer:
// the inode layer itself allocates sectors via FreeMap, so routing the
// free-map's own storage through an inode would be circular. This
// mirrors the reference system's free-map.c, which also persists the
// bitmap to a handful of fixed sectors reserved ahead of the general
// allocation pool.
type FreeMap struct {
	mu   sync.Mutex
	bits []byte // one bit per sector, LSB-first within each byte
	n    int    // total sector count covered
	dev  Device
}

// freeMapSectors returns how many sectors are needed to persist a
// bitmap covering n device sectors.
func freeMapSectors(n int) int {
	bytes := (n + 7) / 8
	return (bytes + SectorSize - 1) / SectorSize
}

// NewFreeMap creates a free-map covering n sectors, with the boot
// sector, the free-map's own sectors, and the root directory sector
// pre-marked allocated.
func NewFreeMap(dev Device, n int) *FreeMap {
	fm := &FreeMap{
		bits: make([]byte, (n+7)/8),
		n:    n,
		dev:  dev,
	}
	fm.markLocked(int(BootSector), true)
	fmSectors := freeMapSectors(n)
	for i := 0; i < fmSectors; i++ {
		fm.markLocked(int(FreeMapSector)+i, true)
	}
	fm.markLocked(int(RootDirSector), true)
	return fm
}

// LoadFreeMap reads an existing free-map back from its reserved sectors.
func LoadFreeMap(dev Device, n int) (*FreeMap, error) {
	fm := &FreeMap{
		bits: make([]byte, (n+7)/8),
		n:    n,
		dev:  dev,
	}
	fmSectors := freeMapSectors(n)
	buf := make([]byte, SectorSize)
	off := 0
	for i := 0; i < fmSectors; i++ {
		if err := dev.ReadSector(FreeMapSector+Sector(i), buf); err != nil {
			return nil, fmt.Errorf("kernfs: load free-map sector %d: %w", i, err)
		}
		copy(fm.bits[off:], buf)
		off += SectorSize
	}
	return fm, nil
}

// Flush persists the free-map bitmap to its reserved sectors.
func (fm *FreeMap) Flush() error {
	fm.mu.Lock()
	defer fm.mu.Unlock()
	fmSectors := freeMapSectors(fm.n)
	buf := make([]byte, SectorSize)
	off := 0
	for i := 0; i < fmSectors; i++ {
		clear(buf)
		end := off + SectorSize
		if end > len(fm.bits) {
			end = len(fm.bits)
		}
		if end > off {
			copy(buf, fm.bits[off:end])
		}
		if err := fm.dev.WriteSector(FreeMapSector+Sector(i), buf); err != nil {
			return fmt.Errorf("kernfs: flush free-map sector %d: %w", i, err)
		}
		off += SectorSize
	}
	return nil
}

func (fm *FreeMap) testLocked(i int) bool {
	return fm.bits[i/8]&(1<<(uint(i)%8)) != 0
}

func (fm *FreeMap) markLocked(i int, used bool) {
	if used {
		fm.bits[i/8] |= 1 << (uint(i) % 8)
	} else {
		fm.bits[i/8] &^= 1 << (uint(i) % 8)
	}
}

// Allocate finds a single free sector, marks it allocated, and returns
// it. Returns ErrNoSpace if none remains.
func (fm *FreeMap) Allocate() (Sector, error) {
	s, err := fm.AllocateContiguous(1)
	if err != nil {
		return 0, err
	}
	return s, nil
}

// AllocateContiguous finds the first run of count consecutive free
// sectors, marks them allocated, and returns the run's first sector.
// This mirrors free_map_allocate's first-fit contiguous scan (used by
// the reference kernel at filesystem-format time to place the root
// directory); kernfs's inode layer itself only ever asks for count==1,
// since byte_to_sector grows a file one block at a time.
func (fm *FreeMap) AllocateContiguous(count int) (Sector, error) {
	if count <= 0 {
		return 0, fmt.Errorf("kernfs: AllocateContiguous count must be positive")
	}
	fm.mu.Lock()
	defer fm.mu.Unlock()

	run := 0
	start := -1
	for i := 0; i < fm.n; i++ {
		if fm.testLocked(i) {
			run = 0
			start = -1
			continue
		}
		if start == -1 {
			start = i
		}
		run++
		if run == count {
			for j := start; j < start+count; j++ {
				fm.markLocked(j, true)
			}
			return Sector(start), nil
		}
	}
	return 0, ErrNoSpace
}

// Release marks count sectors starting at s as free.
func (fm *FreeMap) Release(s Sector, count int) {
	fm.mu.Lock()
	defer fm.mu.Unlock()
	for j := int(s); j < int(s)+count; j++ {
		fm.markLocked(j, false)
	}
}

// InUse reports whether sector s is currently allocated.
func (fm *FreeMap) InUse(s Sector) bool {
	fm.mu.Lock()
	defer fm.mu.Unlock()
	return fm.testLocked(int(s))
}

// FreeSectors reports how many sectors remain unallocated.
func (fm *FreeMap) FreeSectors() int {
	fm.mu.Lock()
	defer fm.mu.Unlock()
	free := 0
	for i := 0; i < fm.n; i++ {
		if !fm.testLocked(i) {
			free++
		}
	}
	return free
}
