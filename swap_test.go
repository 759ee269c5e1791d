package kernfs

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func newTestSwap(t *testing.T, slots int) *SwapDevice {
	t.Helper()
	dev := NewMemDevice(Sector(slots * SectorsPerPage))
	sw, err := NewSwapDevice(dev)
	require.NoError(t, err)
	return sw
}

func TestSwapAllocateWriteReadRoundTrip(t *testing.T) {
	sw := newTestSwap(t, 4)
	slot, err := sw.Allocate()
	require.NoError(t, err)

	page := make([]byte, PageSize)
	for i := range page {
		page[i] = byte(i % 251)
	}
	require.NoError(t, sw.WritePage(slot, page))

	out := make([]byte, PageSize)
	require.NoError(t, sw.ReadPage(slot, out))
	require.Equal(t, page, out)
}

func TestSwapReleaseReusesSlotBeforeGrowing(t *testing.T) {
	sw := newTestSwap(t, 2)
	a, err := sw.Allocate()
	require.NoError(t, err)
	b, err := sw.Allocate()
	require.NoError(t, err)

	// Device is full now.
	_, err = sw.Allocate()
	require.ErrorIs(t, err, ErrSwapExhausted)

	require.NoError(t, sw.Release(a))
	reused, err := sw.Allocate()
	require.NoError(t, err)
	require.Equal(t, a, reused)

	_ = b
}

func TestSwapFreeListOrdersLIFO(t *testing.T) {
	sw := newTestSwap(t, 3)
	a, _ := sw.Allocate()
	b, _ := sw.Allocate()
	c, _ := sw.Allocate()

	require.NoError(t, sw.Release(a))
	require.NoError(t, sw.Release(b))

	first, err := sw.Allocate()
	require.NoError(t, err)
	require.Equal(t, b, first)

	second, err := sw.Allocate()
	require.NoError(t, err)
	require.Equal(t, a, second)

	_ = c
}

func TestNewSwapDeviceRejectsMisalignedDevice(t *testing.T) {
	dev := NewMemDevice(3)
	_, err := NewSwapDevice(dev)
	require.Error(t, err)
}
