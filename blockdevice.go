package kernfs

import (
	"fmt"
	"io"
	"os"
	"sync"
)

// Device is a sector-addressed block device. All operations are
// synchronous; callers needing concurrent access must serialize through
// a FileSystem, which owns the locking discipline described in
// SPEC_FULL.md's concurrency model.
type Device interface {
	// ReadSector reads exactly SectorSize bytes at the given sector into
	// buf, which must be SectorSize bytes long.
	ReadSector(s Sector, buf []byte) error

	// WriteSector writes exactly SectorSize bytes from buf to the given
	// sector. buf must be SectorSize bytes long.
	WriteSector(s Sector, buf []byte) error

	// NumSectors reports the device's total capacity in sectors.
	NumSectors() Sector

	// Close releases any underlying resources (file handles, etc).
	Close() error
}

// MemDevice is an in-memory Device backed by a flat byte slice. It is
// used for swap, for tests, and as the device Restore returns.
type MemDevice struct {
	mu   sync.Mutex
	data []byte
}

// NewMemDevice allocates an in-memory device of n sectors, zero-filled.
func NewMemDevice(n Sector) *MemDevice {
	return &MemDevice{data: make([]byte, int(n)*SectorSize)}
}

func (d *MemDevice) ReadSector(s Sector, buf []byte) error {
	if len(buf) != SectorSize {
		return fmt.Errorf("kernfs: ReadSector buffer must be %d bytes, got %d", SectorSize, len(buf))
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	off := int(s) * SectorSize
	if off+SectorSize > len(d.data) {
		return fmt.Errorf("kernfs: %s out of range (device has %d sectors)", s, len(d.data)/SectorSize)
	}
	copy(buf, d.data[off:off+SectorSize])
	return nil
}

func (d *MemDevice) WriteSector(s Sector, buf []byte) error {
	if len(buf) != SectorSize {
		return fmt.Errorf("kernfs: WriteSector buffer must be %d bytes, got %d", SectorSize, len(buf))
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	off := int(s) * SectorSize
	if off+SectorSize > len(d.data) {
		return fmt.Errorf("kernfs: %s out of range (device has %d sectors)", s, len(d.data)/SectorSize)
	}
	copy(d.data[off:off+SectorSize], buf)
	return nil
}

func (d *MemDevice) NumSectors() Sector {
	d.mu.Lock()
	defer d.mu.Unlock()
	return Sector(len(d.data) / SectorSize)
}

func (d *MemDevice) Close() error { return nil }

// FileDevice is a Device backed by a regular OS file, read and written
// with pread/pwrite-style positioned I/O (*os.File.ReadAt/WriteAt), one
// sector at a time, mirroring the reference system's synchronous block
// device driver.
type FileDevice struct {
	mu  sync.Mutex
	f   *os.File
	num Sector
}

// OpenFileDevice opens path as a FileDevice. If create is true the file
// is created if missing and truncated to exactly n sectors; otherwise n
// is ignored and the sector count is taken from the file's size.
func OpenFileDevice(path string, n Sector, create bool) (*FileDevice, error) {
	flags := os.O_RDWR
	if create {
		flags |= os.O_CREATE
	}
	f, err := os.OpenFile(path, flags, 0644)
	if err != nil {
		return nil, fmt.Errorf("kernfs: open device file: %w", err)
	}
	size := int64(n) * SectorSize
	if create {
		if err := f.Truncate(size); err != nil {
			f.Close()
			return nil, fmt.Errorf("kernfs: truncate device file: %w", err)
		}
	} else {
		st, err := f.Stat()
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("kernfs: stat device file: %w", err)
		}
		n = Sector(st.Size() / SectorSize)
	}
	return &FileDevice{f: f, num: n}, nil
}

func (d *FileDevice) ReadSector(s Sector, buf []byte) error {
	if len(buf) != SectorSize {
		return fmt.Errorf("kernfs: ReadSector buffer must be %d bytes, got %d", SectorSize, len(buf))
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if s >= d.num {
		return fmt.Errorf("kernfs: %s out of range (device has %d sectors)", s, d.num)
	}
	_, err := d.f.ReadAt(buf, int64(s)*SectorSize)
	if err != nil && err != io.EOF {
		return err
	}
	return nil
}

func (d *FileDevice) WriteSector(s Sector, buf []byte) error {
	if len(buf) != SectorSize {
		return fmt.Errorf("kernfs: WriteSector buffer must be %d bytes, got %d", SectorSize, len(buf))
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if s >= d.num {
		return fmt.Errorf("kernfs: %s out of range (device has %d sectors)", s, d.num)
	}
	_, err := d.f.WriteAt(buf, int64(s)*SectorSize)
	return err
}

func (d *FileDevice) NumSectors() Sector {
	return d.num
}

func (d *FileDevice) Close() error {
	return d.f.Close()
}

var (
	_ Device = (*MemDevice)(nil)
	_ Device = (*FileDevice)(nil)
)
