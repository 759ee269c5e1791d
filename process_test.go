package kernfs

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func newTestProcess(t *testing.T) (*Process, *FileSystem) {
	t.Helper()
	fsys := newTestFS(t, 512)
	vm := newTestVM(t, 8, 8)
	proc := NewRootProcess(fsys, vm, "init")
	return proc, fsys
}

func TestCreateOpenReadWriteCloseSyscalls(t *testing.T) {
	proc, _ := newTestProcess(t)

	require.NoError(t, proc.Create("greeting"))
	fd, err := proc.Open("greeting")
	require.NoError(t, err)
	require.NotEqual(t, FD(0), fd)
	require.NotEqual(t, FD(1), fd)

	n, err := proc.Write(fd, []byte("hi"))
	require.NoError(t, err)
	require.Equal(t, 2, n)

	require.NoError(t, proc.Seek(fd, 0))
	buf := make([]byte, 2)
	n, err = proc.Read(fd, buf)
	require.NoError(t, err)
	require.Equal(t, "hi", string(buf[:n]))

	pos, err := proc.Tell(fd)
	require.NoError(t, err)
	require.Equal(t, int64(2), pos)

	require.NoError(t, proc.Close(fd))
	_, err = proc.Read(fd, buf)
	require.ErrorIs(t, err, ErrBadFD)
}

func TestFdAndMapidShareOneCounter(t *testing.T) {
	proc, _ := newTestProcess(t)
	require.NoError(t, proc.Create("a"))
	require.NoError(t, proc.Create("b"))

	fd1, err := proc.Open("a")
	require.NoError(t, err)
	fd2, err := proc.Open("b")
	require.NoError(t, err)
	require.NotEqual(t, fd1, fd2)

	_, err = proc.Write(fd2, make([]byte, PageSize))
	require.NoError(t, err)

	mid, err := proc.Mmap(fd2, 0x10000)
	require.NoError(t, err)

	// The handle counter is shared: the mapid must differ from both fds
	// already handed out, and a subsequently opened fd must differ from
	// the mapid.
	require.NotEqual(t, int(fd1), int(mid))
	require.NotEqual(t, int(fd2), int(mid))

	fd3, err := proc.Open("a")
	require.NoError(t, err)
	require.NotEqual(t, int(fd3), int(mid))
}

func TestMmapRejectsUnalignedAddress(t *testing.T) {
	proc, _ := newTestProcess(t)
	require.NoError(t, proc.Create("f"))
	fd, err := proc.Open("f")
	require.NoError(t, err)
	_, err = proc.Write(fd, []byte("x"))
	require.NoError(t, err)

	_, err = proc.Mmap(fd, 0x1001)
	require.ErrorIs(t, err, ErrMmapUnaligned)
}

func TestMmapRejectsEmptyFile(t *testing.T) {
	proc, _ := newTestProcess(t)
	require.NoError(t, proc.Create("empty"))
	fd, err := proc.Open("empty")
	require.NoError(t, err)

	_, err = proc.Mmap(fd, 0x2000)
	require.ErrorIs(t, err, ErrMmapEmptyFile)
}

func TestMmapReservedFdRejected(t *testing.T) {
	proc, _ := newTestProcess(t)
	_, err := proc.Mmap(0, 0x3000)
	require.ErrorIs(t, err, ErrMmapReservedFD)
}

func TestMunmapFlushesDirtyPageToFile(t *testing.T) {
	proc, _ := newTestProcess(t)
	require.NoError(t, proc.Create("mapped"))
	fd, err := proc.Open("mapped")
	require.NoError(t, err)
	_, err = proc.Write(fd, make([]byte, PageSize))
	require.NoError(t, err)

	mid, err := proc.Mmap(fd, 0x10000)
	require.NoError(t, err)

	require.NoError(t, proc.Fault(0x10000))
	page, ok := proc.pages.Lookup(0x10000)
	require.True(t, ok)
	buf := proc.vm.frames.Bytes(page.frame)
	buf[0] = 0x7F
	page.MarkDirty()

	require.NoError(t, proc.Munmap(mid))

	fd2, err := proc.Open("mapped")
	require.NoError(t, err)
	out := make([]byte, 1)
	_, err = proc.Read(fd2, out)
	require.NoError(t, err)
	require.Equal(t, byte(0x7F), out[0])
}

func TestWaitReturnsChildExitStatus(t *testing.T) {
	proc, _ := newTestProcess(t)
	child := proc.Spawn("child")
	msg := child.Exit(42)
	require.Equal(t, "child: exit(42)\n", msg)

	status, err := proc.Wait(context.Background(), child.Pid())
	require.NoError(t, err)
	require.Equal(t, 42, status)

	_, err = proc.Wait(context.Background(), child.Pid())
	require.ErrorIs(t, err, ErrNoChild)
}

func TestWaitOnUnknownPidFails(t *testing.T) {
	proc, _ := newTestProcess(t)
	_, err := proc.Wait(context.Background(), 9999)
	require.ErrorIs(t, err, ErrNoChild)
}

func TestChdirUpThenRemoveEmptyDirectorySucceeds(t *testing.T) {
	proc, fsys := newTestProcess(t)
	sub, err := fsys.CreateDirectory(fsys.RootSector(), "p")
	require.NoError(t, err)
	defer sub.Close()

	require.NoError(t, proc.Chdir("p"))
	require.NoError(t, proc.Chdir(".."))

	require.NoError(t, fsys.RemovePath(fsys.RootSector(), "p"))
}

func TestChdirUpdatesWorkingDirectory(t *testing.T) {
	proc, fsys := newTestProcess(t)
	sub, err := fsys.CreateDirectory(fsys.RootSector(), "sub")
	require.NoError(t, err)
	defer sub.Close()

	require.NoError(t, proc.Chdir("sub"))
	require.NoError(t, proc.Create("relative"))

	found, err := fsys.OpenPath(fsys.RootSector(), "sub/relative")
	require.NoError(t, err)
	require.NoError(t, found.Close())
}

func TestExecDeniesWritesToRunningExecutable(t *testing.T) {
	proc, fsys := newTestProcess(t)
	require.NoError(t, proc.Create("prog"))
	progIno, err := fsys.OpenPath(fsys.RootSector(), "prog")
	require.NoError(t, err)
	_, err = progIno.WriteAt([]byte("code"), 0)
	require.NoError(t, err)
	require.NoError(t, progIno.Close())

	child, err := proc.Exec("prog")
	require.NoError(t, err)

	// A fresh handle on the same sector shares the cached Inode that
	// Exec marked deny-write, so a write through it is refused while
	// the child is still running.
	again, err := fsys.OpenPath(fsys.RootSector(), "prog")
	require.NoError(t, err)
	_, err = again.WriteAt([]byte("x"), 0)
	require.Error(t, err)
	require.NoError(t, again.Close())

	child.Exit(0)
}
