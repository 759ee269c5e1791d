package kernfs

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/semaphore"
)

// VM is the virtual-memory machinery shared by every process in a
// kernfs instance: one global frame table and one shared swap device,
// matching the reference kernel's process-wide frame_table and swap
// partition.
type VM struct {
	frames *FrameTable
	swap   *SwapDevice
}

// NewVM builds a VM from a physical frame pool and a swap-backed
// device.
func NewVM(pool *PhysPool, swapDev Device) (*VM, error) {
	swap, err := NewSwapDevice(swapDev)
	if err != nil {
		return nil, err
	}
	return &VM{frames: NewFrameTable(pool), swap: swap}, nil
}

// openFile is one entry in a process's file descriptor table: an open
// inode plus the byte offset the next Read/Write continues from.
type openFile struct {
	ino *Inode
	pos int64
}

// mmapRegion records one live Mmap call: the mapid handed back to the
// caller, the starting page-aligned address, the number of pages it
// spans, and the file it is backed by (re-opened privately, matching
// process_mmap_file's private re-open discipline so closing the fd the
// caller mapped from does not affect the mapping).
type mmapRegion struct {
	id     MapID
	addr   uintptr
	pages  int
	ino    *Inode
}

// processInfo is the shared parent/child bookkeeping record pushed onto
// the parent's children list before the child ever runs, so that a
// child which exits before its parent calls Wait still leaves behind a
// record Wait can find. status/exited/waited follow process_info's
// fields; the reference kernel's load_sema/alive_sema pair is collapsed
// here into the single exitSema, released once on exit, since kernfs
// processes don't actually fork a kernel thread. There is no load
// semaphore: Exec returns without waiting for any load step.
type processInfo struct {
	pid    int
	status int
	exited bool
	waited bool

	exitSema *semaphore.Weighted // released once on exit
}

func newProcessInfo(pid int) *processInfo {
	pi := &processInfo{pid: pid, exitSema: semaphore.NewWeighted(1)}
	pi.exitSema.Acquire(context.Background(), 1) // held until exit
	return pi
}

// Process is one running process: its filesystem namespace position
// (current working directory), file descriptor and mmap tables sharing
// one counter, its supplemental page table, and its parent/child
// bookkeeping.
type Process struct {
	fs   *FileSystem
	vm   *VM
	pid  int
	name string // argv[0], used in the exit message

	mu      sync.Mutex
	cwd     Sector
	handles *nextHandleCounter
	fds     map[FD]*openFile
	mmaps   map[MapID]*mmapRegion
	pages   *SupPageTable

	execIno *Inode // this process's own executable, deny-write while running

	self     *processInfo
	parent   *processInfo
	children map[int]*processInfo
	nextPid  *int
	procsMu  *sync.Mutex
	procs    map[int]*Process
}

// processTable roots a tree of processes and hands out unique pids,
// standing in for the reference kernel's PCB allocation.
type processTable struct {
	mu      sync.Mutex
	nextPid int
	procs   map[int]*Process
}

func newProcessTable() *processTable {
	return &processTable{nextPid: 1, procs: make(map[int]*Process)}
}

// NewRootProcess creates the first process in a fresh processTable,
// with no parent, rooted at the filesystem's root directory.
func NewRootProcess(fs *FileSystem, vm *VM, name string) *Process {
	pt := newProcessTable()
	return pt.spawn(fs, vm, name, nil, RootDirSector)
}

func (pt *processTable) spawn(fs *FileSystem, vm *VM, name string, parent *processInfo, cwd Sector) *Process {
	pt.mu.Lock()
	pid := pt.nextPid
	pt.nextPid++
	pt.mu.Unlock()

	p := &Process{
		fs:       fs,
		vm:       vm,
		pid:      pid,
		name:     name,
		cwd:      cwd,
		handles:  newHandleCounter(),
		fds:      make(map[FD]*openFile),
		mmaps:    make(map[MapID]*mmapRegion),
		pages:    newSupPageTable(),
		self:     newProcessInfo(pid),
		parent:   parent,
		children: make(map[int]*processInfo),
		procsMu:  &pt.mu,
		procs:    pt.procs,
	}
	pt.mu.Lock()
	pt.procs[pid] = p
	pt.mu.Unlock()
	return p
}

// Pid returns the process's unique identifier.
func (p *Process) Pid() int { return p.pid }

// Spawn creates a new child process of p, pushing the child's
// processInfo onto p's children list before returning, matching the
// reference kernel's process_execute ordering: the info must be
// reachable from the parent before the child can possibly finish,
// otherwise an instantly-exiting child could race a later Wait.
func (p *Process) Spawn(name string) *Process {
	p.mu.Lock()
	cwd := p.cwd
	p.mu.Unlock()

	p.procsMu.Lock()
	pid := len(p.procs) + 1
	for {
		if _, taken := p.procs[pid]; !taken {
			break
		}
		pid++
	}
	child := &Process{
		fs:       p.fs,
		vm:       p.vm,
		pid:      pid,
		name:     name,
		cwd:      cwd,
		handles:  newHandleCounter(),
		fds:      make(map[FD]*openFile),
		mmaps:    make(map[MapID]*mmapRegion),
		pages:    newSupPageTable(),
		self:     newProcessInfo(pid),
		parent:   p.self,
		children: make(map[int]*processInfo),
		procsMu:  p.procsMu,
		procs:    p.procs,
	}
	p.procs[pid] = child
	p.children[pid] = child.self
	p.procsMu.Unlock()
	return child
}

// Exit records status as the process's exit code, releases the exit
// semaphore so any Wait blocked on this pid can proceed, and returns the
// reference kernel's exact exit banner ("<name>: exit(<status>)\n") as a
// string; it prints nothing itself.
func (p *Process) Exit(status int) string {
	p.self.status = status
	p.self.exited = true
	p.self.exitSema.Release(1)

	if p.execIno != nil {
		p.execIno.AllowWrite()
		p.execIno.Close()
		p.execIno = nil
	}
	for fd, f := range p.fds {
		f.ino.Close()
		delete(p.fds, fd)
	}

	return fmt.Sprintf("%s: exit(%d)\n", p.name, status)
}

// Wait blocks until the child process named by pid has exited, then
// returns its exit status. It returns ErrNoChild if pid does not name a
// child of p (running or already exited), or has already been waited on -- a child may only
// be waited on once, matching process_wait's single-use semantics.
func (p *Process) Wait(ctx context.Context, pid int) (int, error) {
	p.mu.Lock()
	info, ok := p.children[pid]
	p.mu.Unlock()
	if !ok || info.waited {
		return 0, ErrNoChild
	}

	if err := info.exitSema.Acquire(ctx, 1); err != nil {
		return 0, err
	}
	info.exitSema.Release(1)
	info.waited = true
	return info.status, nil
}

// Chdir resolves path and, if it names a directory, updates the
// process's working directory to it.
func (p *Process) Chdir(path string) error {
	p.mu.Lock()
	cwd := p.cwd
	p.mu.Unlock()

	_, _, target, isDir, found, err := p.fs.resolve(cwd, path)
	if err != nil {
		return err
	}
	if !found {
		return ErrNotFound
	}
	if !isDir {
		return ErrNotDirectory
	}
	p.mu.Lock()
	p.cwd = target
	p.mu.Unlock()
	return nil
}
