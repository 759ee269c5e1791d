package kernfs

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func newTestFS(t *testing.T, sectors int) *FileSystem {
	t.Helper()
	dev := NewMemDevice(Sector(sectors))
	fsys, err := Format(dev)
	require.NoError(t, err)
	t.Cleanup(func() { fsys.Close() })
	return fsys
}

func TestCreateFileAndReadWriteRoundTrip(t *testing.T) {
	fsys := newTestFS(t, 256)

	ino, err := fsys.CreateFile(fsys.RootSector(), "hello.txt")
	require.NoError(t, err)
	require.False(t, ino.IsDir())
	require.Equal(t, int64(0), ino.Size())

	data := []byte("hello, kernfs")
	n, err := ino.WriteAt(data, 0)
	require.NoError(t, err)
	require.Equal(t, len(data), n)
	require.Equal(t, int64(len(data)), ino.Size())

	buf := make([]byte, len(data))
	n, err = ino.ReadAt(buf, 0)
	require.NoError(t, err)
	require.Equal(t, len(data), n)
	require.Equal(t, data, buf)

	require.NoError(t, ino.Close())
}

func TestWriteBeyondSingleSectorAllocatesMultipleBlocks(t *testing.T) {
	fsys := newTestFS(t, 256)
	ino, err := fsys.CreateFile(fsys.RootSector(), "big.bin")
	require.NoError(t, err)
	defer ino.Close()

	data := make([]byte, SectorSize*3+17)
	for i := range data {
		data[i] = byte(i)
	}
	n, err := ino.WriteAt(data, 0)
	require.NoError(t, err)
	require.Equal(t, len(data), n)

	out := make([]byte, len(data))
	n, err = ino.ReadAt(out, 0)
	require.NoError(t, err)
	require.Equal(t, len(data), n)
	require.Equal(t, data, out)
}

func TestWriteThroughIndirectBlock(t *testing.T) {
	fsys := newTestFS(t, int(DirectBlocks)+int(IndirectBlocks)+16)
	ino, err := fsys.CreateFile(fsys.RootSector(), "indirect.bin")
	require.NoError(t, err)
	defer ino.Close()

	off := int64(DirectBlocks) * SectorSize
	data := []byte("past the direct blocks")
	n, err := ino.WriteAt(data, off)
	require.NoError(t, err)
	require.Equal(t, len(data), n)

	out := make([]byte, len(data))
	_, err = ino.ReadAt(out, off)
	require.NoError(t, err)
	require.Equal(t, data, out)
}

func TestReadSparseHoleReturnsZeroes(t *testing.T) {
	fsys := newTestFS(t, 256)
	ino, err := fsys.CreateFile(fsys.RootSector(), "sparse.bin")
	require.NoError(t, err)
	defer ino.Close()

	_, err = ino.WriteAt([]byte("tail"), SectorSize*2)
	require.NoError(t, err)

	buf := make([]byte, SectorSize)
	n, err := ino.ReadAt(buf, 0)
	require.NoError(t, err)
	require.Equal(t, SectorSize, n)
	for _, b := range buf {
		require.Equal(t, byte(0), b)
	}
}

func TestDenyWriteRefusesWrites(t *testing.T) {
	fsys := newTestFS(t, 256)
	ino, err := fsys.CreateFile(fsys.RootSector(), "exec")
	require.NoError(t, err)
	defer ino.Close()

	ino.DenyWrite()
	_, err = ino.WriteAt([]byte("x"), 0)
	require.Error(t, err)

	ino.AllowWrite()
	_, err = ino.WriteAt([]byte("x"), 0)
	require.NoError(t, err)
}

func TestOpenSameSectorSharesInodeAndRefcounts(t *testing.T) {
	fsys := newTestFS(t, 256)
	ino, err := fsys.CreateFile(fsys.RootSector(), "shared")
	require.NoError(t, err)

	second, err := fsys.OpenInode(ino.Sector())
	require.NoError(t, err)
	require.Same(t, ino, second)

	require.NoError(t, ino.Close())
	require.NoError(t, second.Close())
}

func TestRemoveDefersReclamationUntilLastClose(t *testing.T) {
	fsys := newTestFS(t, 256)
	ino, err := fsys.CreateFile(fsys.RootSector(), "doomed")
	require.NoError(t, err)

	second, err := fsys.OpenInode(ino.Sector())
	require.NoError(t, err)

	ino.Remove()
	_, err = ino.ReadAt(make([]byte, 1), 0)
	require.NoError(t, err) // still readable via the second handle's sector

	require.NoError(t, ino.Close())
	// second is still open: reopening the sector should fail.
	_, err = fsys.OpenInode(ino.Sector())
	require.ErrorIs(t, err, ErrRemoved)

	require.NoError(t, second.Close())
}
