//go:build fuse

package kernfs

import (
	"context"
	"syscall"

	"github.com/hanwen/go-fuse/v2/fs"
	"github.com/hanwen/go-fuse/v2/fuse"
)

// fuseNode adapts a kernfs Inode to go-fuse's high-level node API,
// playing the role the teacher corpus's inode_fuse.go plays for a
// squashfs.Inode: Lookup/Readdir/Open/Getattr backed by the same
// in-memory Inode object, plus Create/Mkdir/Unlink since kernfs, unlike
// squashfs, is mutable. Open returns no file handle and the node has no
// Read or Write method, so file contents are not read or written
// through the mount.
type fuseNode struct {
	fs.Inode
	kfs *FileSystem
	ino *Inode
}

var (
	_ fs.NodeLookuper  = (*fuseNode)(nil)
	_ fs.NodeReaddirer = (*fuseNode)(nil)
	_ fs.NodeOpener    = (*fuseNode)(nil)
	_ fs.NodeGetattrer = (*fuseNode)(nil)
	_ fs.NodeCreater   = (*fuseNode)(nil)
	_ fs.NodeMkdirer   = (*fuseNode)(nil)
	_ fs.NodeUnlinker  = (*fuseNode)(nil)
)

func (n *fuseNode) Lookup(ctx context.Context, name string, out *fuse.EntryOut) (*fs.Inode, syscall.Errno) {
	d := OpenDirectory(n.ino)
	sector, ok := d.Lookup(name)
	if !ok {
		return nil, syscall.ENOENT
	}
	child, err := n.kfs.OpenInode(sector)
	if err != nil {
		return nil, syscall.EIO
	}
	out.Mode = modeFor(child)
	stable := fs.StableAttr{Mode: out.Mode, Ino: uint64(child.Sector())}
	return n.NewInode(ctx, &fuseNode{kfs: n.kfs, ino: child}, stable), 0
}

func (n *fuseNode) Readdir(ctx context.Context) (fs.DirStream, syscall.Errno) {
	entries := OpenDirectory(n.ino).Readdir()
	list := make([]fuse.DirEntry, 0, len(entries))
	for _, e := range entries {
		list = append(list, fuse.DirEntry{Name: e.Name, Ino: uint64(e.Sector)})
	}
	return fs.NewListDirStream(list), 0
}

func (n *fuseNode) Open(ctx context.Context, flags uint32) (fs.FileHandle, uint32, syscall.Errno) {
	return nil, 0, 0
}

func (n *fuseNode) Getattr(ctx context.Context, f fs.FileHandle, out *fuse.AttrOut) syscall.Errno {
	out.Mode = modeFor(n.ino)
	out.Size = uint64(n.ino.Size())
	out.Ino = uint64(n.ino.Sector())
	return 0
}

func (n *fuseNode) Create(ctx context.Context, name string, flags uint32, mode uint32, out *fuse.EntryOut) (*fs.Inode, fs.FileHandle, uint32, syscall.Errno) {
	ino, err := n.kfs.CreateFile(n.ino.Sector(), name)
	if err != nil {
		return nil, nil, 0, syscall.EIO
	}
	out.Mode = modeFor(ino)
	stable := fs.StableAttr{Mode: out.Mode, Ino: uint64(ino.Sector())}
	return n.NewInode(ctx, &fuseNode{kfs: n.kfs, ino: ino}, stable), nil, 0, 0
}

func (n *fuseNode) Mkdir(ctx context.Context, name string, mode uint32, out *fuse.EntryOut) (*fs.Inode, syscall.Errno) {
	ino, err := n.kfs.CreateDirectory(n.ino.Sector(), name)
	if err != nil {
		return nil, syscall.EIO
	}
	out.Mode = modeFor(ino)
	stable := fs.StableAttr{Mode: out.Mode, Ino: uint64(ino.Sector())}
	return n.NewInode(ctx, &fuseNode{kfs: n.kfs, ino: ino}, stable), 0
}

func (n *fuseNode) Unlink(ctx context.Context, name string) syscall.Errno {
	if err := n.kfs.RemovePath(n.ino.Sector(), name); err != nil {
		return syscall.EIO
	}
	return 0
}

func modeFor(ino *Inode) uint32 {
	if ino.IsDir() {
		return fuse.S_IFDIR | 0755
	}
	return fuse.S_IFREG | 0644
}

// Mount mounts kfs at mountpoint, blocking until it is unmounted.
// Grounded on the reference corpus's use of github.com/hanwen/go-fuse/v2
// to expose an in-process filesystem implementation to the kernel VFS.
func Mount(kfs *FileSystem, mountpoint string) (*fuse.Server, error) {
	root, err := kfs.OpenInode(RootDirSector)
	if err != nil {
		return nil, err
	}
	node := &fuseNode{kfs: kfs, ino: root}
	return fs.Mount(mountpoint, node, &fs.Options{})
}
