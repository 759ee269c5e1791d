package kernfs

import (
	"fmt"
)

// FileSystem ties together a Device, its free-map, and the shared inode
// cache. It is the top-level object callers Format or Open, mirroring
// the reference kernel's filesys_init/filesys_done pair, generalized
// into a value instead of a handful of package globals.
type FileSystem struct {
	dev     Device
	freemap *FreeMap
	inodes  *inodeCache

	sectorCount int
}

// FSOption configures FileSystem construction, following the teacher
// corpus's functional-options idiom.
type FSOption func(*fsConfig) error

type fsConfig struct {
	sectorCount int
}

// WithSectorCount overrides the number of sectors Format reserves on a
// freshly created device-backed filesystem. Defaults to the device's
// full capacity.
func WithSectorCount(n int) FSOption {
	return func(c *fsConfig) error {
		if n <= int(RootDirSector)+1 {
			return fmt.Errorf("kernfs: sector count %d too small for filesystem layout", n)
		}
		c.sectorCount = n
		return nil
	}
}

func applyOptions(opts []FSOption) (*fsConfig, error) {
	c := &fsConfig{}
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// Format initializes a brand-new filesystem on dev: builds a fresh
// free-map covering the device (or the sector count given via
// WithSectorCount), then creates the root directory inode at
// RootDirSector, matching filesys_init(true)'s do_format path.
func Format(dev Device, opts ...FSOption) (*FileSystem, error) {
	cfg, err := applyOptions(opts)
	if err != nil {
		return nil, err
	}
	n := cfg.sectorCount
	if n == 0 {
		n = int(dev.NumSectors())
	}
	if n <= int(RootDirSector)+1 {
		return nil, ErrInvalidDevice
	}

	fm := NewFreeMap(dev, n)
	fs := &FileSystem{dev: dev, freemap: fm, inodes: newInodeCache(), sectorCount: n}

	if err := fs.createInode(RootDirSector, true, RootDirSector); err != nil {
		return nil, fmt.Errorf("kernfs: format root directory: %w", err)
	}
	if err := fm.Flush(); err != nil {
		return nil, err
	}
	return fs, nil
}

// Open mounts an already-formatted filesystem found on dev.
func Open(dev Device, opts ...FSOption) (*FileSystem, error) {
	cfg, err := applyOptions(opts)
	if err != nil {
		return nil, err
	}
	n := cfg.sectorCount
	if n == 0 {
		n = int(dev.NumSectors())
	}
	fm, err := LoadFreeMap(dev, n)
	if err != nil {
		return nil, err
	}
	return &FileSystem{dev: dev, freemap: fm, inodes: newInodeCache(), sectorCount: n}, nil
}

// Close flushes the free-map back to its reserved sectors and closes
// the underlying device. It does not force-close any inode a caller
// still has open; those remain valid until their own Close.
func (fs *FileSystem) Close() error {
	if err := fs.freemap.Flush(); err != nil {
		return err
	}
	return fs.dev.Close()
}

// RootSector returns the sector of the filesystem's root directory.
func (fs *FileSystem) RootSector() Sector { return RootDirSector }

// FreeSectors reports how many sectors remain unallocated, surfaced for
// informational df-style tooling.
func (fs *FileSystem) FreeSectors() int { return fs.freemap.FreeSectors() }

// OpenInode opens the inode at the given sector and returns it. Most callers
// go through a Process's path-based Open/Create instead; this is the
// low-level primitive the path resolver and directory walks build on.
func (fs *FileSystem) OpenInode(s Sector) (*Inode, error) {
	return fs.openInode(s)
}

// CreateFile resolves path relative to start, creates a new
// zero-length regular file named by the final path component, and
// returns its inode already open. Mirrors filesys_create's dispatch for
// a non-directory target.
func (fs *FileSystem) CreateFile(start Sector, path string) (*Inode, error) {
	return fs.create(start, path, false)
}

// CreateDirectory behaves like CreateFile but creates a directory whose
// inode records the containing directory's sector as its parent (what
// ".." resolves to), mirroring filesys_create's dir_create branch.
func (fs *FileSystem) CreateDirectory(start Sector, path string) (*Inode, error) {
	return fs.create(start, path, true)
}

func (fs *FileSystem) create(start Sector, path string, isDir bool) (*Inode, error) {
	parent, name, _, _, found, err := fs.resolve(start, path)
	if err != nil {
		return nil, err
	}
	if name == "" {
		return nil, ErrNameInvalid
	}
	if found {
		return nil, ErrExists
	}

	parentIno, err := fs.openInode(parent)
	if err != nil {
		return nil, err
	}
	defer parentIno.Close()
	if !parentIno.IsDir() {
		return nil, ErrNotDirectory
	}

	sector, err := fs.freemap.Allocate()
	if err != nil {
		return nil, err
	}
	if err := fs.createInode(sector, isDir, parent); err != nil {
		fs.freemap.Release(sector, 1)
		return nil, err
	}

	d := OpenDirectory(parentIno)
	if err := d.Add(name, sector); err != nil {
		fs.freemap.Release(sector, 1)
		return nil, err
	}

	return fs.openInode(sector)
}

// OpenPath resolves path relative to start and opens the inode it
// names, mirroring filesys_open.
func (fs *FileSystem) OpenPath(start Sector, path string) (*Inode, error) {
	parent, name, target, _, found, err := fs.resolve(start, path)
	if err != nil {
		return nil, err
	}
	if name == "" {
		return fs.openInode(target)
	}
	if !found {
		return nil, ErrNotFound
	}
	_ = parent
	return fs.openInode(target)
}

// RemovePath resolves path relative to start and removes the directory
// entry naming it, then drops the target inode's last logical
// reference so it is reclaimed once every open handle closes. It
// refuses to remove a non-empty directory or the root directory itself.
func (fs *FileSystem) RemovePath(start Sector, path string) error {
	parent, name, target, targetIsDir, found, err := fs.resolve(start, path)
	if err != nil {
		return err
	}
	if name == "" {
		if target == RootDirSector {
			return ErrRootDirectory
		}
		return ErrNotFound
	}
	if !found {
		return ErrNotFound
	}
	if target == RootDirSector {
		return ErrRootDirectory
	}

	parentIno, err := fs.openInode(parent)
	if err != nil {
		return err
	}
	defer parentIno.Close()
	d := OpenDirectory(parentIno)

	if targetIsDir {
		childIno, err := fs.openInode(target)
		if err != nil {
			return err
		}
		empty := OpenDirectory(childIno).Empty()
		childIno.Close()
		if !empty {
			return ErrDirectoryNotEmpty
		}
	}

	if err := d.Remove(target); err != nil {
		return err
	}

	ino, err := fs.openInode(target)
	if err != nil {
		if err == ErrRemoved {
			return nil
		}
		return err
	}
	ino.Remove()
	return ino.Close()
}
