package ratelimit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestGuardAllowsUnderLimit(t *testing.T) {
	g := New(3, time.Minute)
	for i := 0; i < 3; i++ {
		require.True(t, g.Allow("203.0.113.1:5000"))
	}
}

func TestGuardBlocksOverLimit(t *testing.T) {
	g := New(2, time.Minute)
	require.True(t, g.Allow("203.0.113.1:5000"))
	require.True(t, g.Allow("203.0.113.1:5001"))
	require.False(t, g.Allow("203.0.113.1:5002"))
}

func TestGuardTracksPerHostIgnoringPort(t *testing.T) {
	g := New(1, time.Minute)
	require.True(t, g.Allow("203.0.113.1:1"))
	require.False(t, g.Allow("203.0.113.1:2"))
	require.True(t, g.Allow("203.0.113.2:1"))
}

func TestGuardHandlesAddrWithoutPort(t *testing.T) {
	g := New(1, time.Minute)
	require.True(t, g.Allow("203.0.113.1"))
	require.False(t, g.Allow("203.0.113.1"))
}
