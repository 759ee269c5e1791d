package kernfs

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFreeMapReservesFixedSectors(t *testing.T) {
	dev := NewMemDevice(64)
	fm := NewFreeMap(dev, 64)

	require.True(t, fm.InUse(BootSector))
	require.True(t, fm.InUse(FreeMapSector))
	require.True(t, fm.InUse(RootDirSector))
}

func TestFreeMapAllocateAndRelease(t *testing.T) {
	dev := NewMemDevice(64)
	fm := NewFreeMap(dev, 64)

	free := fm.FreeSectors()
	s, err := fm.Allocate()
	require.NoError(t, err)
	require.True(t, fm.InUse(s))
	require.Equal(t, free-1, fm.FreeSectors())

	fm.Release(s, 1)
	require.False(t, fm.InUse(s))
	require.Equal(t, free, fm.FreeSectors())
}

func TestFreeMapAllocateNeverReturnsReservedSectors(t *testing.T) {
	dev := NewMemDevice(16)
	fm := NewFreeMap(dev, 16)

	free := fm.FreeSectors()
	for i := 0; i < free; i++ {
		s, err := fm.Allocate()
		require.NoError(t, err)
		require.NotEqual(t, BootSector, s)
		require.NotEqual(t, FreeMapSector, s)
		require.NotEqual(t, RootDirSector, s)
	}
	_, err := fm.Allocate()
	require.ErrorIs(t, err, ErrNoSpace)
}

func TestFreeMapFlushAndReload(t *testing.T) {
	dev := NewMemDevice(64)
	fm := NewFreeMap(dev, 64)

	s1, err := fm.Allocate()
	require.NoError(t, err)
	s2, err := fm.Allocate()
	require.NoError(t, err)
	require.NoError(t, fm.Flush())

	reloaded, err := LoadFreeMap(dev, 64)
	require.NoError(t, err)
	require.True(t, reloaded.InUse(s1))
	require.True(t, reloaded.InUse(s2))
	require.Equal(t, fm.FreeSectors(), reloaded.FreeSectors())
}

func TestFreeMapAllocateContiguous(t *testing.T) {
	dev := NewMemDevice(64)
	fm := NewFreeMap(dev, 64)

	start, err := fm.AllocateContiguous(5)
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		require.True(t, fm.InUse(start+Sector(i)))
	}
}
