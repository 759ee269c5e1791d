package kernfs

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

// errInjectingDevice wraps a Device and fails every Nth ReadSector call,
// letting tests exercise the I/O error paths of the inode layer without
// a real faulty disk. Grounded on the teacher corpus's mock reader
// pattern for injecting errors into an io.ReaderAt.
type errInjectingDevice struct {
	Device
	failEvery int
	calls     int
}

var errInjected = errors.New("kernfs: injected read failure")

func (d *errInjectingDevice) ReadSector(s Sector, buf []byte) error {
	d.calls++
	if d.failEvery > 0 && d.calls%d.failEvery == 0 {
		return errInjected
	}
	return d.Device.ReadSector(s, buf)
}

func TestOpenInodeSurfacesInjectedReadError(t *testing.T) {
	dev := NewMemDevice(256)
	fsys, err := Format(dev)
	require.NoError(t, err)

	// Swap in a device that fails every read only after mounting
	// succeeds, so the injected failure is attributable to the
	// specific OpenInode call under test rather than to mount-time
	// free-map loading.
	fsys.dev = &errInjectingDevice{Device: dev, failEvery: 1}

	_, err = fsys.OpenInode(fsys.RootSector())
	require.ErrorIs(t, err, errInjected)
}

func TestReadAtPropagatesDeviceErrorPartway(t *testing.T) {
	dev := NewMemDevice(256)
	fsys, err := Format(dev)
	require.NoError(t, err)
	defer fsys.Close()

	ino, err := fsys.CreateFile(fsys.RootSector(), "f")
	require.NoError(t, err)
	_, err = ino.WriteAt(make([]byte, SectorSize*2), 0)
	require.NoError(t, err)
	require.NoError(t, ino.Close())

	reopened, err := Open(dev)
	require.NoError(t, err)
	defer reopened.Close()

	found, err := reopened.OpenPath(reopened.RootSector(), "f")
	require.NoError(t, err)
	defer found.Close()

	// The first data sector reads fine and the second ReadSector call
	// fails, so ReadAt stops after one sector and reports the error.
	reopened.dev = &errInjectingDevice{Device: dev, failEvery: 2}
	buf := make([]byte, SectorSize*2)
	n, err := found.ReadAt(buf, 0)
	require.ErrorIs(t, err, errInjected)
	require.Equal(t, SectorSize, n)
}
