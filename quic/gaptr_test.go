package quic

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGaptrContiguousPrefix(t *testing.T) {
	g := newGaptr()
	require.Equal(t, uint64(0), g.contiguousPrefix())

	g.push(0, 10)
	require.Equal(t, uint64(10), g.contiguousPrefix())
}

func TestGaptrReorderedThenFilled(t *testing.T) {
	g := newGaptr()
	g.push(10, 10) // [10,20) received, [0,10) still a gap
	require.Equal(t, uint64(0), g.firstGapOffset())

	g.push(0, 10) // fills the gap
	require.Equal(t, uint64(20), g.contiguousPrefix())
}

func TestGaptrDuplicatePush(t *testing.T) {
	g := newGaptr()
	g.push(0, 10)
	g.push(0, 10) // duplicate, should be a no-op on the gap set
	require.Equal(t, uint64(10), g.contiguousPrefix())
}

func TestGaptrOverlappingPush(t *testing.T) {
	g := newGaptr()
	g.push(0, 5)
	g.push(3, 10) // overlaps tail of first, extends to 13
	require.Equal(t, uint64(13), g.contiguousPrefix())
}
