package kernfs

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFormatThenOpenPreservesContents(t *testing.T) {
	dev := NewMemDevice(256)
	fsys, err := Format(dev)
	require.NoError(t, err)

	ino, err := fsys.CreateFile(fsys.RootSector(), "persisted")
	require.NoError(t, err)
	_, err = ino.WriteAt([]byte("survives remount"), 0)
	require.NoError(t, err)
	require.NoError(t, ino.Close())
	require.NoError(t, fsys.Close())

	reopened, err := Open(dev)
	require.NoError(t, err)
	defer reopened.Close()

	found, err := reopened.OpenPath(reopened.RootSector(), "persisted")
	require.NoError(t, err)
	defer found.Close()

	buf := make([]byte, len("survives remount"))
	_, err = found.ReadAt(buf, 0)
	require.NoError(t, err)
	require.Equal(t, "survives remount", string(buf))
}

func TestNestedPathResolution(t *testing.T) {
	fsys := newTestFS(t, 256)

	a, err := fsys.CreateDirectory(fsys.RootSector(), "a")
	require.NoError(t, err)
	defer a.Close()
	b, err := fsys.CreateDirectory(a.Sector(), "b")
	require.NoError(t, err)
	defer b.Close()
	leaf, err := fsys.CreateFile(b.Sector(), "leaf.txt")
	require.NoError(t, err)
	defer leaf.Close()

	found, err := fsys.OpenPath(fsys.RootSector(), "a/b/leaf.txt")
	require.NoError(t, err)
	defer found.Close()
	require.Equal(t, leaf.Sector(), found.Sector())

	found2, err := fsys.OpenPath(fsys.RootSector(), "/a/b/leaf.txt")
	require.NoError(t, err)
	defer found2.Close()
	require.Equal(t, leaf.Sector(), found2.Sector())
}

func TestResolveDotDotNavigatesUp(t *testing.T) {
	fsys := newTestFS(t, 256)
	a, err := fsys.CreateDirectory(fsys.RootSector(), "a")
	require.NoError(t, err)
	defer a.Close()
	sibling, err := fsys.CreateFile(fsys.RootSector(), "sibling.txt")
	require.NoError(t, err)
	defer sibling.Close()

	found, err := fsys.OpenPath(a.Sector(), "../sibling.txt")
	require.NoError(t, err)
	defer found.Close()
	require.Equal(t, sibling.Sector(), found.Sector())
}

func TestRemoveNonEmptyDirectoryFails(t *testing.T) {
	fsys := newTestFS(t, 256)
	dir, err := fsys.CreateDirectory(fsys.RootSector(), "full")
	require.NoError(t, err)
	defer dir.Close()
	child, err := fsys.CreateFile(dir.Sector(), "inner")
	require.NoError(t, err)
	defer child.Close()

	err = fsys.RemovePath(fsys.RootSector(), "full")
	require.ErrorIs(t, err, ErrDirectoryNotEmpty)
}

func TestRemoveRootDirectoryFails(t *testing.T) {
	fsys := newTestFS(t, 256)
	err := fsys.RemovePath(fsys.RootSector(), ".")
	require.ErrorIs(t, err, ErrRootDirectory)
}

func TestOpenNonexistentPathFails(t *testing.T) {
	fsys := newTestFS(t, 256)
	_, err := fsys.OpenPath(fsys.RootSector(), "does/not/exist")
	require.Error(t, err)
}

func TestCreateThroughNonDirectoryComponentFails(t *testing.T) {
	fsys := newTestFS(t, 256)
	file, err := fsys.CreateFile(fsys.RootSector(), "plain")
	require.NoError(t, err)
	defer file.Close()

	_, err = fsys.CreateFile(fsys.RootSector(), "plain/inner")
	require.ErrorIs(t, err, ErrNotDirectory)
}

func TestEmptyPathRejected(t *testing.T) {
	fsys := newTestFS(t, 256)
	_, err := fsys.OpenPath(fsys.RootSector(), "")
	require.ErrorIs(t, err, ErrPathTooLong)
}
