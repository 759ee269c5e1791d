package kernfs

import "fmt"

// Create implements the create syscall: makes a new zero-length file
// named by path (resolved relative to the process's cwd, or the
// filesystem root if path is absolute) and closes it immediately,
// matching filesys_create's "create, don't leave open" contract.
func (p *Process) Create(path string) error {
	p.mu.Lock()
	cwd := p.cwd
	p.mu.Unlock()
	ino, err := p.fs.CreateFile(cwd, path)
	if err != nil {
		return err
	}
	return ino.Close()
}

// Mkdir implements the mkdir syscall.
func (p *Process) Mkdir(path string) error {
	p.mu.Lock()
	cwd := p.cwd
	p.mu.Unlock()
	ino, err := p.fs.CreateDirectory(cwd, path)
	if err != nil {
		return err
	}
	return ino.Close()
}

// Remove implements the remove syscall.
func (p *Process) Remove(path string) error {
	p.mu.Lock()
	cwd := p.cwd
	p.mu.Unlock()
	return p.fs.RemovePath(cwd, path)
}

// Open implements the open syscall: resolves path and assigns it the
// next available fd, shared with mapid's counter.
func (p *Process) Open(path string) (FD, error) {
	p.mu.Lock()
	cwd := p.cwd
	p.mu.Unlock()

	ino, err := p.fs.OpenPath(cwd, path)
	if err != nil {
		return 0, err
	}

	p.mu.Lock()
	fd := FD(p.handles.take())
	p.fds[fd] = &openFile{ino: ino}
	p.mu.Unlock()
	return fd, nil
}

func (p *Process) fdEntry(fd FD) (*openFile, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	f, ok := p.fds[fd]
	if !ok {
		return nil, ErrBadFD
	}
	return f, nil
}

// Filesize implements the filesize syscall.
func (p *Process) Filesize(fd FD) (int64, error) {
	f, err := p.fdEntry(fd)
	if err != nil {
		return 0, err
	}
	return f.ino.Size(), nil
}

// Read implements the read syscall, reading into buf from fd's current
// position and advancing it by the number of bytes actually read.
func (p *Process) Read(fd FD, buf []byte) (int, error) {
	f, err := p.fdEntry(fd)
	if err != nil {
		return 0, err
	}
	if f.ino.IsDir() {
		return 0, ErrIsDirectory
	}
	p.mu.Lock()
	pos := f.pos
	p.mu.Unlock()

	n, err := f.ino.ReadAt(buf, pos)
	if err != nil {
		return n, err
	}
	p.mu.Lock()
	f.pos += int64(n)
	p.mu.Unlock()
	return n, nil
}

// Write implements the write syscall, writing buf to fd's current
// position and advancing it, growing the file as needed.
func (p *Process) Write(fd FD, buf []byte) (int, error) {
	f, err := p.fdEntry(fd)
	if err != nil {
		return 0, err
	}
	if f.ino.IsDir() {
		return 0, ErrIsDirectory
	}
	p.mu.Lock()
	pos := f.pos
	p.mu.Unlock()

	n, err := f.ino.WriteAt(buf, pos)
	if err != nil {
		return n, err
	}
	p.mu.Lock()
	f.pos += int64(n)
	p.mu.Unlock()
	return n, nil
}

// Seek implements the seek syscall.
func (p *Process) Seek(fd FD, pos int64) error {
	f, err := p.fdEntry(fd)
	if err != nil {
		return err
	}
	p.mu.Lock()
	f.pos = pos
	p.mu.Unlock()
	return nil
}

// Tell implements the tell syscall.
func (p *Process) Tell(fd FD) (int64, error) {
	f, err := p.fdEntry(fd)
	if err != nil {
		return 0, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return f.pos, nil
}

// Close implements the close syscall.
func (p *Process) Close(fd FD) error {
	p.mu.Lock()
	f, ok := p.fds[fd]
	if ok {
		delete(p.fds, fd)
	}
	p.mu.Unlock()
	if !ok {
		return ErrBadFD
	}
	return f.ino.Close()
}

// Isdir implements the isdir syscall.
func (p *Process) Isdir(fd FD) (bool, error) {
	f, err := p.fdEntry(fd)
	if err != nil {
		return false, err
	}
	return f.ino.IsDir(), nil
}

// Inumber implements the inumber syscall: the inode's own sector
// number serves as its stable, unique identity.
func (p *Process) Inumber(fd FD) (Sector, error) {
	f, err := p.fdEntry(fd)
	if err != nil {
		return 0, err
	}
	return f.ino.Sector(), nil
}

// Readdir implements the readdir syscall: returns the next not-yet
// returned entry name for a directory fd. Unlike a regular file's Read,
// this consumes entries one at a time by name rather than by byte
// offset; kernfs tracks progress via fd.pos reused as an entry index.
func (p *Process) Readdir(fd FD) (string, bool, error) {
	f, err := p.fdEntry(fd)
	if err != nil {
		return "", false, err
	}
	if !f.ino.IsDir() {
		return "", false, ErrNotDirectory
	}
	entries := OpenDirectory(f.ino).Readdir()

	p.mu.Lock()
	idx := int(f.pos)
	p.mu.Unlock()

	if idx >= len(entries) {
		return "", false, nil
	}
	p.mu.Lock()
	f.pos++
	p.mu.Unlock()
	return entries[idx].Name, true, nil
}

// Mmap implements the mmap syscall: maps fd's file into the process's
// address space starting at addr (which must be page-aligned and
// non-zero, exactly as mmap.c's validation requires), one page per
// PageSize-sized chunk of the file, the final partial page zero-padded.
// A private handle to the same inode is opened so the mapping survives
// Close(fd), matching process_mmap_file's re-open.
func (p *Process) Mmap(fd FD, addr uintptr) (MapID, error) {
	if fd == 0 || fd == 1 {
		return 0, ErrMmapReservedFD
	}
	if addr == 0 || addr%PageSize != 0 {
		return 0, ErrMmapUnaligned
	}

	f, err := p.fdEntry(fd)
	if err != nil {
		return 0, err
	}
	size := f.ino.Size()
	if size == 0 {
		return 0, ErrMmapEmptyFile
	}

	pages := int((size + PageSize - 1) / PageSize)
	for i := 0; i < pages; i++ {
		if _, exists := p.pages.Lookup(addr + uintptr(i*PageSize)); exists {
			return 0, ErrMmapOverlap
		}
	}

	priv := f.ino.Reopen()

	off := int64(0)
	for i := 0; i < pages; i++ {
		readLen := PageSize
		if remaining := size - off; remaining < PageSize {
			readLen = int(remaining)
		}
		if err := p.pages.AddMmap(addr+uintptr(i*PageSize), priv, off, readLen); err != nil {
			return 0, err
		}
		off += PageSize
	}

	p.mu.Lock()
	id := MapID(p.handles.take())
	p.mmaps[id] = &mmapRegion{id: id, addr: addr, pages: pages, ino: priv}
	p.mu.Unlock()
	return id, nil
}

// Munmap implements the munmap syscall: flushes every dirty page in
// the mapping back to its file, drops the supplemental page table
// entries, and closes the mapping's private inode handle.
func (p *Process) Munmap(id MapID) error {
	p.mu.Lock()
	region, ok := p.mmaps[id]
	if ok {
		delete(p.mmaps, id)
	}
	p.mu.Unlock()
	if !ok {
		return ErrBadMapID
	}

	for i := 0; i < region.pages; i++ {
		addr := region.addr + uintptr(i*PageSize)
		if page, ok := p.pages.Lookup(addr); ok {
			page.mu.Lock()
			if page.present && page.dirty {
				buf := p.vm.frames.Bytes(page.frame)
				if _, err := page.ino.WriteAt(buf[:page.readLen], page.fileOff); err != nil {
					page.mu.Unlock()
					return fmt.Errorf("kernfs: munmap flush: %w", err)
				}
			}
			if page.present {
				p.vm.frames.Release(page.frame)
			}
			page.mu.Unlock()
		}
		p.pages.Remove(addr)
	}

	return region.ino.Close()
}

// Halt implements the halt syscall, used by the init process only: it
// has no kernfs-level effect beyond being a distinct, recognizable
// operation for callers to dispatch on (the reference kernel shuts the
// whole machine down, which has no analogue here).
func (p *Process) Halt() {}

// Exec implements the exec syscall: resolves execPath relative to the
// process's cwd, opens it, denies further writes to it for as long as
// any process is executing it (matching the reference kernel's
// deny_write_cnt discipline over a running executable's inode), and
// returns a new child Process whose own execIno is that denied handle.
// The caller is responsible for loading the executable's segments into
// the child's supplemental page table via AddExecutable.
func (p *Process) Exec(execPath string) (*Process, error) {
	p.mu.Lock()
	cwd := p.cwd
	p.mu.Unlock()

	ino, err := p.fs.OpenPath(cwd, execPath)
	if err != nil {
		return nil, err
	}
	if ino.IsDir() {
		ino.Close()
		return nil, ErrIsDirectory
	}
	ino.DenyWrite()

	child := p.Spawn(execPath)
	child.execIno = ino
	return child, nil
}
