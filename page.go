package kernfs

import (
	"sync"
)

// PageKind classifies how a supplemental page table entry's contents
// are (re)materialized on a page fault, following page.h's page_type.
type PageKind int

const (
	// PageNormal is an anonymous page with no backing file: a stack or
	// heap page, serviced from swap if it has ever been evicted, or
	// zero-filled the first time it is touched.
	PageNormal PageKind = iota
	// PageExecutable is a read-only (or writable, for data segments)
	// page backed by a range of an executable's own inode, loaded by
	// ELF-style segment setup; once evicted it goes to swap like a
	// normal page if writable, or can simply be re-read from the file
	// if not, matching load_segment's writable flag.
	PageExecutable
	// PageMmap is backed directly by a file inode; writes eventually
	// flush back to that file rather than to swap.
	PageMmap
)

// Page is one entry in a process's supplemental page table: a
// description of how to materialize the data at a virtual address, not
// a necessarily-resident frame. This mirrors page.h's struct page.
type Page struct {
	mu   sync.Mutex
	addr uintptr // page-aligned virtual address, process-relative
	kind PageKind

	present bool     // currently resident in a frame
	frame   FrameID
	writable bool

	swapSlot SwapSlot
	hasSwap  bool

	// file-backed (executable or mmap) fields
	ino      *Inode
	fileOff  int64
	readLen  int // bytes to read from the file before zero-filling the rest
	dirty    bool
}

// SupPageTable is one process's supplemental page table: addr -> Page,
// guarded independently of the global FrameTable so that a fault in one
// process never blocks another's unrelated page-table lookups.
type SupPageTable struct {
	mu    sync.Mutex
	pages map[uintptr]*Page
}

func newSupPageTable() *SupPageTable {
	return &SupPageTable{pages: make(map[uintptr]*Page)}
}

// AddNormal registers a fresh anonymous page (stack growth, a heap
// extension) with no data yet: it will be zero-filled on first fault.
func (t *SupPageTable) AddNormal(addr uintptr, writable bool) error {
	return t.add(&Page{addr: addr, kind: PageNormal, writable: writable})
}

// AddExecutable registers a page backed by readLen bytes of ino
// starting at fileOff, the remainder (up to PageSize) zero-filled; used
// when loading a process's code/data segments.
func (t *SupPageTable) AddExecutable(addr uintptr, ino *Inode, fileOff int64, readLen int, writable bool) error {
	return t.add(&Page{addr: addr, kind: PageExecutable, ino: ino, fileOff: fileOff, readLen: readLen, writable: writable})
}

// AddMmap registers a page backed by readLen bytes of ino starting at
// fileOff, used by Process.Mmap.
func (t *SupPageTable) AddMmap(addr uintptr, ino *Inode, fileOff int64, readLen int) error {
	return t.add(&Page{addr: addr, kind: PageMmap, ino: ino, fileOff: fileOff, readLen: readLen, writable: true})
}

func (t *SupPageTable) add(p *Page) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, exists := t.pages[p.addr]; exists {
		return ErrPageExists
	}
	t.pages[p.addr] = p
	return nil
}

// Remove drops addr's entry (used when unmapping an mmap region). It
// does not itself flush dirty data; callers do that first.
func (t *SupPageTable) Remove(addr uintptr) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.pages, addr)
}

// Lookup returns the page covering addr, if any is registered.
func (t *SupPageTable) Lookup(addr uintptr) (*Page, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	p, ok := t.pages[addr]
	return p, ok
}

// Fault services a page fault at addr for proc, following the dispatch
// order from page.c's page_fault handling: if the page is already
// resident this is a no-op success (a benign re-fault raced by another
// thread); if it has swapped-out content, pull it back in and mark it
// dirty; if it is file-backed (mmap or executable) and not yet loaded,
// load it; a normal page with no swapped-out content is zero-filled. An
// address with no registered page is unrecoverable (ErrPageFault).
func (proc *Process) Fault(addr uintptr) error {
	pageAddr := addr &^ uintptr(PageSize-1)
	page, ok := proc.pages.Lookup(pageAddr)
	if !ok {
		return ErrPageFault
	}

	page.mu.Lock()
	defer page.mu.Unlock()

	if page.present {
		return nil
	}

	frame, err := proc.vm.frames.Acquire(proc, page)
	if err != nil {
		return err
	}
	buf := proc.vm.frames.Bytes(frame)

	switch {
	case page.hasSwap:
		if err := proc.vm.swap.ReadPage(page.swapSlot, buf); err != nil {
			proc.vm.frames.Release(frame)
			return err
		}
		proc.vm.swap.Release(page.swapSlot)
		page.hasSwap = false
		page.dirty = true

	case page.kind == PageExecutable || page.kind == PageMmap:
		clear(buf)
		if page.ino != nil && page.readLen > 0 {
			if _, err := page.ino.ReadAt(buf[:page.readLen], page.fileOff); err != nil {
				proc.vm.frames.Release(frame)
				return err
			}
		}

	case page.kind == PageNormal:
		clear(buf)

	default:
		proc.vm.frames.Release(frame)
		return ErrPageFault
	}

	page.present = true
	page.frame = frame
	return nil
}

// evictTo writes the frame's current contents out before the frame is
// handed to a new owner: mmap pages are never swapped (dirty ones flush
// to their file, clean ones are dropped and re-read from it later),
// clean read-only executable pages are dropped, and every other page
// goes to swap.
func (p *Page) evictTo(owner *Process) error {
	buf := owner.vm.frames.Bytes(p.frame)

	if p.kind == PageMmap {
		if p.dirty {
			if _, err := p.ino.WriteAt(buf[:p.readLen], p.fileOff); err != nil {
				return err
			}
		}
		p.present = false
		return nil
	}

	if p.kind == PageExecutable && !p.writable {
		p.present = false
		return nil
	}

	slot, err := owner.vm.swap.Allocate()
	if err != nil {
		return err
	}
	if err := owner.vm.swap.WritePage(slot, buf); err != nil {
		return err
	}
	p.swapSlot = slot
	p.hasSwap = true
	p.present = false
	return nil
}

// MarkDirty flags an mmap-backed page as modified since it was last
// flushed, called by the write path of the syscall surface when it
// writes through a mapped region.
func (p *Page) MarkDirty() {
	p.mu.Lock()
	p.dirty = true
	p.mu.Unlock()
}
