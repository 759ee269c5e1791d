package kernfs

import (
	"fmt"
	"sync"
)

// SwapSlot identifies one page-sized region on the swap device.
type SwapSlot int

// SwapDevice evicts pages out to and back in from a block device sized
// in whole pages. It is grounded on the reference kernel's swap.c,
// which tracks free slots not with a bitmap scan but with two cursors:
// free_sector, the head of an in-place singly linked free list threaded
// through the swap blocks themselves, and explored_sector, the
// high-water mark of slots never yet touched. A freed slot is pushed
// onto the free list by writing the previous head's slot number into
// its first four bytes; allocation pops the list if non-empty, else
// advances explored_sector.
type SwapDevice struct {
	mu    sync.Mutex
	dev   Device
	slots int

	freeHead  SwapSlot // head of the in-place free list, -1 if empty
	explored  int      // slots [0, explored) have been handed out at least once
}

const noFreeSlot = -1

// NewSwapDevice wraps dev, which must be sized in whole PageSize units.
func NewSwapDevice(dev Device) (*SwapDevice, error) {
	total := int(dev.NumSectors())
	if total%SectorsPerPage != 0 {
		return nil, fmt.Errorf("kernfs: swap device sector count must be a multiple of %d", SectorsPerPage)
	}
	return &SwapDevice{dev: dev, slots: total / SectorsPerPage, freeHead: noFreeSlot}, nil
}

// Capacity returns the number of page-sized slots the device holds.
func (s *SwapDevice) Capacity() int {
	return s.slots
}

// Allocate reserves a slot, preferring the in-place free list's head
// over growing into never-before-used space. Returns ErrSwapExhausted
// once both the free list is empty and every slot has been explored.
func (s *SwapDevice) Allocate() (SwapSlot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.freeHead != noFreeSlot {
		slot := s.freeHead
		next, err := s.readLink(slot)
		if err != nil {
			return 0, err
		}
		s.freeHead = next
		return slot, nil
	}

	if s.explored >= s.slots {
		return 0, ErrSwapExhausted
	}
	slot := SwapSlot(s.explored)
	s.explored++
	return slot, nil
}

// Release returns slot to the free list by linking it in front of the
// current head, matching swap_free's push.
func (s *SwapDevice) Release(slot SwapSlot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.writeLink(slot, s.freeHead); err != nil {
		return err
	}
	s.freeHead = slot
	return nil
}

// readLink/writeLink store the free-list "next" pointer in the first
// four bytes of a slot's first sector; the remaining payload bytes are
// irrelevant while the slot is free.
func (s *SwapDevice) readLink(slot SwapSlot) (SwapSlot, error) {
	buf := make([]byte, SectorSize)
	if err := s.dev.ReadSector(s.slotBase(slot), buf); err != nil {
		return 0, err
	}
	v := int32(buf[0]) | int32(buf[1])<<8 | int32(buf[2])<<16 | int32(buf[3])<<24
	return SwapSlot(v), nil
}

func (s *SwapDevice) writeLink(slot SwapSlot, next SwapSlot) error {
	buf := make([]byte, SectorSize)
	v := int32(next)
	buf[0] = byte(v)
	buf[1] = byte(v >> 8)
	buf[2] = byte(v >> 16)
	buf[3] = byte(v >> 24)
	return s.dev.WriteSector(s.slotBase(slot), buf)
}

func (s *SwapDevice) slotBase(slot SwapSlot) Sector {
	return Sector(int(slot) * SectorsPerPage)
}

// ReadPage fills page (which must be PageSize bytes) with slot's
// contents.
func (s *SwapDevice) ReadPage(slot SwapSlot, page []byte) error {
	if len(page) != PageSize {
		return fmt.Errorf("kernfs: swap ReadPage buffer must be %d bytes", PageSize)
	}
	base := s.slotBase(slot)
	buf := make([]byte, SectorSize)
	for i := 0; i < SectorsPerPage; i++ {
		if err := s.dev.ReadSector(base+Sector(i), buf); err != nil {
			return err
		}
		copy(page[i*SectorSize:(i+1)*SectorSize], buf)
	}
	return nil
}

// WritePage persists page (PageSize bytes) to slot.
func (s *SwapDevice) WritePage(slot SwapSlot, page []byte) error {
	if len(page) != PageSize {
		return fmt.Errorf("kernfs: swap WritePage buffer must be %d bytes", PageSize)
	}
	base := s.slotBase(slot)
	for i := 0; i < SectorsPerPage; i++ {
		if err := s.dev.WriteSector(base+Sector(i), page[i*SectorSize:(i+1)*SectorSize]); err != nil {
			return err
		}
	}
	return nil
}
