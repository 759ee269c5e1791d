package kernfs

import (
	"encoding/binary"
	"strings"
)

// dirEntryRecord is one fixed-size record in a directory file's data,
// the directory-as-a-file-of-records layout from the reference
// filesystem's directory.c: a name, the sector of the inode it denotes,
// and an in-use flag so removal need not compact the file.
type dirEntryRecord struct {
	Name   [NameMax + 1]byte
	Sector uint32
	InUse  uint32
}

const dirEntrySize = (NameMax + 1) + 4 + 4

func (e *dirEntryRecord) marshal() []byte {
	buf := make([]byte, dirEntrySize)
	copy(buf[:NameMax+1], e.Name[:])
	order := binary.LittleEndian
	order.PutUint32(buf[NameMax+1:NameMax+5], e.Sector)
	order.PutUint32(buf[NameMax+5:NameMax+9], e.InUse)
	return buf
}

func (e *dirEntryRecord) unmarshal(buf []byte) {
	copy(e.Name[:], buf[:NameMax+1])
	order := binary.LittleEndian
	e.Sector = order.Uint32(buf[NameMax+1 : NameMax+5])
	e.InUse = order.Uint32(buf[NameMax+5 : NameMax+9])
}

func (e *dirEntryRecord) name() string {
	i := 0
	for i < len(e.Name) && e.Name[i] != 0 {
		i++
	}
	return string(e.Name[:i])
}

func (e *dirEntryRecord) setName(name string) {
	clear(e.Name[:])
	copy(e.Name[:], name)
}

// Directory wraps a directory inode with entry add/lookup/remove
// operations, mirroring directory.c's dir_add/dir_lookup/dir_remove.
type Directory struct {
	ino *Inode
}

// OpenDirectory wraps an already-open inode as a Directory. The caller
// must have verified ino.IsDir().
func OpenDirectory(ino *Inode) *Directory {
	return &Directory{ino: ino}
}

// Inode returns the underlying inode.
func (d *Directory) Inode() *Inode { return d.ino }

// DirEntry is one resolved entry returned by Readdir.
type DirEntry struct {
	Name   string
	Sector Sector
}

func validName(name string) bool {
	if name == "" || name == "." || name == ".." {
		return false
	}
	if len(name) > NameMax {
		return false
	}
	return !strings.ContainsRune(name, '/')
}

// Lookup scans the directory's entries for name, returning the sector
// of the inode it names. It also special-cases "." (this directory) and
// ".." (the parent, read from the inode's own Parent field rather than
// any entry in the directory's data — matching inode_get_parent).
func (d *Directory) Lookup(name string) (Sector, bool) {
	if name == "." {
		return d.ino.Sector(), true
	}
	if name == ".." {
		return d.ino.Parent(), true
	}
	records := d.readAll()
	for _, r := range records {
		if r.InUse != 0 && r.name() == name {
			return Sector(r.Sector), true
		}
	}
	return 0, false
}

func (d *Directory) readAll() []dirEntryRecord {
	size := d.ino.Size()
	count := int(size) / dirEntrySize
	records := make([]dirEntryRecord, 0, count)
	buf := make([]byte, dirEntrySize)
	for i := 0; i < count; i++ {
		n, err := d.ino.ReadAt(buf, int64(i*dirEntrySize))
		if err != nil || n < dirEntrySize {
			break
		}
		var r dirEntryRecord
		r.unmarshal(buf)
		records = append(records, r)
	}
	return records
}

// Add inserts a new entry mapping name to sector, reusing the first
// free (not-in-use) slot if one exists, else appending. Returns
// ErrExists if name is already present, ErrNameInvalid/ErrNameTooLong
// for a malformed name.
func (d *Directory) Add(name string, sector Sector) error {
	if !validName(name) {
		if len(name) > NameMax {
			return ErrNameTooLong
		}
		return ErrNameInvalid
	}
	if _, ok := d.Lookup(name); ok {
		return ErrExists
	}

	rec := dirEntryRecord{Sector: uint32(sector), InUse: 1}
	rec.setName(name)
	return d.writeRecord(rec)
}

func (d *Directory) writeRecord(rec dirEntryRecord) error {
	size := d.ino.Size()
	count := int(size) / dirEntrySize
	buf := make([]byte, dirEntrySize)
	for i := 0; i < count; i++ {
		n, err := d.ino.ReadAt(buf, int64(i*dirEntrySize))
		if err != nil {
			return err
		}
		if n < dirEntrySize {
			break
		}
		var existing dirEntryRecord
		existing.unmarshal(buf)
		if existing.InUse == 0 {
			_, err := d.ino.WriteAt(rec.marshal(), int64(i*dirEntrySize))
			return err
		}
	}
	_, err := d.ino.WriteAt(rec.marshal(), int64(count*dirEntrySize))
	return err
}

// Remove clears the entry whose Sector field equals target, matching
// dir_remove's lookup_file-by-inode-identity behavior rather than a
// name comparison: a caller that resolved target by name earlier and
// now removes it is immune to the entry having been renamed in the
// interim, since its sector identity hasn't changed. It does not free
// the inode itself; callers do that via Inode.Remove once they know no
// directory still refers to it.
func (d *Directory) Remove(target Sector) error {
	size := d.ino.Size()
	count := int(size) / dirEntrySize
	buf := make([]byte, dirEntrySize)
	for i := 0; i < count; i++ {
		n, err := d.ino.ReadAt(buf, int64(i*dirEntrySize))
		if err != nil {
			return err
		}
		if n < dirEntrySize {
			break
		}
		var rec dirEntryRecord
		rec.unmarshal(buf)
		if rec.InUse != 0 && Sector(rec.Sector) == target {
			rec.InUse = 0
			if _, err := d.ino.WriteAt(rec.marshal(), int64(i*dirEntrySize)); err != nil {
				return err
			}
			return nil
		}
	}
	return ErrNotFound
}

// Readdir returns every in-use entry, for use by the readdir syscall
// surface.
func (d *Directory) Readdir() []DirEntry {
	records := d.readAll()
	out := make([]DirEntry, 0, len(records))
	for _, r := range records {
		if r.InUse == 0 {
			continue
		}
		out = append(out, DirEntry{Name: r.name(), Sector: Sector(r.Sector)})
	}
	return out
}

// Empty reports whether the directory has no entries, required before
// Remove permits deleting it.
func (d *Directory) Empty() bool {
	return len(d.Readdir()) == 0
}
