package system

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestClockDefaultsToShanghai(t *testing.T) {
	t.Parallel()

	clk, err := New("")
	require.NoError(t, err)
	require.Equal(t, DefaultLocation, clk.Location().String())

	before := time.Now().Add(-time.Second)
	got := clk.Now()
	require.Equal(t, clk.Location(), got.Location())
	require.WithinRange(t, got, before, time.Now().Add(time.Second))

	_, offset := got.Zone()
	require.Equal(t, 8*3600, offset)
}

func TestClockRejectsUnknownZone(t *testing.T) {
	t.Parallel()

	_, err := New("Mars/Olympus_Mons")
	require.Error(t, err)
}

func TestClockNowMonotonic(t *testing.T) {
	t.Parallel()

	clk, err := New("UTC")
	require.NoError(t, err)
	first := clk.Now()
	require.False(t, clk.Now().Before(first))
}
