package kernfs

import "errors"

// Package-specific error variables that can be used with errors.Is().
var (
	// ErrInvalidDevice is returned when a device is too small to hold a
	// filesystem (it must fit at least the boot, free-map and root
	// directory sectors).
	ErrInvalidDevice = errors.New("kernfs: device too small for filesystem")

	// ErrNotFound is returned when a path or directory entry does not
	// resolve to anything.
	ErrNotFound = errors.New("kernfs: no such file or directory")

	// ErrExists is returned by create operations when the name is
	// already in use within the target directory.
	ErrExists = errors.New("kernfs: file already exists")

	// ErrNotDirectory is returned when a non-directory inode is used
	// where a directory was required.
	ErrNotDirectory = errors.New("kernfs: not a directory")

	// ErrIsDirectory is returned when a directory inode is used where a
	// regular file was required.
	ErrIsDirectory = errors.New("kernfs: is a directory")

	// ErrDirectoryNotEmpty is returned by remove when a directory still
	// has in-use entries.
	ErrDirectoryNotEmpty = errors.New("kernfs: directory not empty")

	// ErrRootDirectory is returned when removal of the root directory
	// is attempted.
	ErrRootDirectory = errors.New("kernfs: cannot remove root directory")

	// ErrNameTooLong is returned when a path component exceeds NameMax.
	ErrNameTooLong = errors.New("kernfs: name too long")

	// ErrNameInvalid is returned for empty names or names that collide
	// with the "." / ".." navigation entries.
	ErrNameInvalid = errors.New("kernfs: invalid name")

	// ErrPathTooLong is returned when a path string is MaxPathLength or
	// longer, or empty.
	ErrPathTooLong = errors.New("kernfs: path too long or empty")

	// ErrNoSpace is returned when the free-map has no sector left to
	// allocate.
	ErrNoSpace = errors.New("kernfs: no space left on device")

	// ErrRemoved is returned by Open when the cache entry for the
	// requested sector is marked removed (invariant I3).
	ErrRemoved = errors.New("kernfs: inode has been removed")

	// ErrBadFD is returned by syscall-surface operations given an
	// unknown file descriptor.
	ErrBadFD = errors.New("kernfs: bad file descriptor")

	// ErrBadMapID is returned by Munmap given an unknown mapid.
	ErrBadMapID = errors.New("kernfs: bad mapid")

	// ErrMmapUnaligned is returned when an mmap target address is not
	// page-aligned.
	ErrMmapUnaligned = errors.New("kernfs: mmap address not page-aligned")

	// ErrMmapEmptyFile is returned when mmap is attempted on a
	// zero-length file.
	ErrMmapEmptyFile = errors.New("kernfs: cannot mmap an empty file")

	// ErrMmapOverlap is returned when the requested mapping would
	// overlap an already-mapped page range.
	ErrMmapOverlap = errors.New("kernfs: mmap range overlaps existing mapping")

	// ErrMmapReservedFD is returned when mmap is attempted on fd 0 or 1.
	ErrMmapReservedFD = errors.New("kernfs: cannot mmap stdin/stdout")

	// ErrMmapBelowCode is returned when the requested mapping address
	// falls below the code segment.
	ErrMmapBelowCode = errors.New("kernfs: mmap address below code segment")

	// ErrNoChild is returned by Wait when the pid named is not a child
	// of the calling process, or has already been waited on.
	ErrNoChild = errors.New("kernfs: not a child process, or already waited")

	// ErrSwapExhausted is the fatal condition raised when the swap
	// device has no free slot and no unexplored region left.
	ErrSwapExhausted = errors.New("kernfs: swap exhausted")

	// ErrNoFrame is returned when frame allocation fails even after an
	// eviction attempt.
	ErrNoFrame = errors.New("kernfs: out of frames")

	// ErrPageFault is returned by the page-fault entry point when the
	// faulting address cannot be serviced and the process must be
	// terminated.
	ErrPageFault = errors.New("kernfs: unhandled page fault")

	// ErrPageExists is returned when a supplemental page table entry
	// already exists for the requested vaddr.
	ErrPageExists = errors.New("kernfs: page already mapped")

	// ErrUnknownCodec is returned by Snapshot/Restore when no
	// handler is registered for the requested Codec (typically because
	// the build tag enabling it was not set).
	ErrUnknownCodec = errors.New("kernfs: unknown or unbuilt codec")
)
