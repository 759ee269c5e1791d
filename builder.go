package kernfs

import (
	"fmt"
	"io"
	"io/fs"
)

// Builder imports a tree from an io/fs.FS into a freshly formatted
// kernfs FileSystem, the mutable-filesystem counterpart to the teacher
// corpus's writer.go (which instead builds a read-only squashfs image
// from a source tree in one pass). Unlike writer.go's single-shot
// image construction, Builder drives kernfs's own Create/Mkdir/Write
// calls, so the resulting filesystem is immediately usable for further
// reads and writes afterward.
type Builder struct {
	fs *FileSystem
}

// NewBuilder wraps an already-formatted FileSystem for import.
func NewBuilder(kfs *FileSystem) *Builder {
	return &Builder{fs: kfs}
}

// Import walks src and recreates every regular file and directory
// under it inside the kernfs filesystem, rooted at dest (an existing
// directory's sector, typically kfs.RootSector()).
func (b *Builder) Import(src fs.FS, dest Sector) error {
	return fs.WalkDir(src, ".", func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if path == "." {
			return nil
		}

		if d.IsDir() {
			ino, err := b.fs.CreateDirectory(dest, path)
			if err != nil {
				return fmt.Errorf("kernfs: import mkdir %q: %w", path, err)
			}
			return ino.Close()
		}

		ino, err := b.fs.CreateFile(dest, path)
		if err != nil {
			return fmt.Errorf("kernfs: import create %q: %w", path, err)
		}
		defer ino.Close()

		f, err := src.Open(path)
		if err != nil {
			return fmt.Errorf("kernfs: import open %q: %w", path, err)
		}
		defer f.Close()

		buf := make([]byte, 64*1024)
		off := int64(0)
		for {
			n, rerr := f.Read(buf)
			if n > 0 {
				if _, werr := ino.WriteAt(buf[:n], off); werr != nil {
					return fmt.Errorf("kernfs: import write %q: %w", path, werr)
				}
				off += int64(n)
			}
			if rerr == io.EOF {
				break
			}
			if rerr != nil {
				return fmt.Errorf("kernfs: import read %q: %w", path, rerr)
			}
		}
		return nil
	})
}
