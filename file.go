package kernfs

import "strings"

// resolve walks path segment by segment, starting from root if path is
// absolute (begins with '/') or from start otherwise, following the
// reference filesystem's path.c: each non-final segment must resolve to
// a directory, "." stays in place and ".." moves to the recorded
// parent. If path is empty or MaxPathLength or longer, ErrPathTooLong is
// returned (reference kernel constant PATH_MAX_LEN).
//
// On success it returns the sector of the final component's containing
// directory, the final component's own name, and, if it already exists,
// its sector and whether it is a directory.
func (fs *FileSystem) resolve(start Sector, path string) (parentDir Sector, name string, target Sector, targetIsDir bool, found bool, err error) {
	if len(path) == 0 || len(path) >= MaxPathLength {
		return 0, "", 0, false, false, ErrPathTooLong
	}

	cur := start
	if strings.HasPrefix(path, "/") {
		cur = RootDirSector
	}

	segs := splitPath(path)
	if len(segs) == 0 {
		// "/" or "." alone names the start directory itself.
		return 0, "", cur, true, true, nil
	}

	for i, seg := range segs {
		last := i == len(segs)-1
		if last {
			err = fs.lookupInDir(cur, seg, &target, &targetIsDir, &found)
			return cur, seg, target, targetIsDir, found, err
		}

		next, ok, isDir, lerr := fs.lookupChild(cur, seg)
		if lerr != nil {
			return 0, "", 0, false, false, lerr
		}
		if !ok {
			return 0, "", 0, false, false, ErrNotFound
		}
		if !isDir {
			return 0, "", 0, false, false, ErrNotDirectory
		}
		cur = next
	}
	return cur, "", 0, false, false, nil
}

func (fs *FileSystem) lookupInDir(dirSector Sector, name string, target *Sector, isDir *bool, found *bool) error {
	dirIno, err := fs.openInode(dirSector)
	if err != nil {
		return err
	}
	defer dirIno.Close()
	if !dirIno.IsDir() {
		return ErrNotDirectory
	}
	d := OpenDirectory(dirIno)
	s, ok := d.Lookup(name)
	*found = ok
	if !ok {
		return nil
	}
	*target = s
	childIno, err := fs.openInode(s)
	if err != nil {
		return err
	}
	defer childIno.Close()
	*isDir = childIno.IsDir()
	return nil
}

func (fs *FileSystem) lookupChild(dirSector Sector, name string) (Sector, bool, bool, error) {
	dirIno, err := fs.openInode(dirSector)
	if err != nil {
		return 0, false, false, err
	}
	defer dirIno.Close()
	if !dirIno.IsDir() {
		return 0, false, false, ErrNotDirectory
	}
	d := OpenDirectory(dirIno)
	s, ok := d.Lookup(name)
	if !ok {
		return 0, false, false, nil
	}
	childIno, err := fs.openInode(s)
	if err != nil {
		return 0, false, false, err
	}
	defer childIno.Close()
	return s, true, childIno.IsDir(), nil
}

// splitPath breaks path into its non-empty, non-"." segments, resolving
// nothing itself (resolve's loop interprets ".." against the live
// directory chain rather than lexically: Directory.Lookup answers ".."
// from the directory inode's recorded parent sector).
func splitPath(path string) []string {
	parts := strings.Split(path, "/")
	segs := make([]string, 0, len(parts))
	for _, p := range parts {
		if p == "" || p == "." {
			continue
		}
		segs = append(segs, p)
	}
	return segs
}
