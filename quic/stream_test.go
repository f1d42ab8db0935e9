package quic

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStreamInitiatorDirectionality(t *testing.T) {
	require.Equal(t, InitiatorClient, StreamInitiator(0))
	require.Equal(t, InitiatorServer, StreamInitiator(1))
	require.Equal(t, DirectionalityBidi, StreamDirectionality(0))
	require.Equal(t, DirectionalityUni, StreamDirectionality(2))
}

func TestStreamSendReclaim(t *testing.T) {
	s := NewStream(4, 1<<20, 1<<20)
	n, err := s.Write([]byte("hello world"))
	require.NoError(t, err)
	require.Equal(t, 11, n)

	off, data, fin, ok := s.PendingSendRange(5)
	require.True(t, ok)
	require.False(t, fin)
	require.Equal(t, uint64(0), off)
	require.Equal(t, []byte("hello"), data)

	s.OnAcked(0, 5)
	require.False(t, s.InFlightEmpty())

	off, data, fin, ok = s.PendingSendRange(100)
	require.True(t, ok)
	require.Equal(t, uint64(5), off)
	require.Equal(t, []byte(" world"), data)
	require.False(t, fin)

	s.ShutdownWrite()
	_, _, fin, ok = s.PendingSendRange(100)
	require.True(t, ok)
	require.True(t, fin)

	s.OnAcked(5, 6)
	require.True(t, s.InFlightEmpty())
}

func TestStreamWriteBlockedByFlowControl(t *testing.T) {
	s := NewStream(4, 4, 1<<20)
	_, err := s.Write([]byte("hello"))
	require.ErrorIs(t, err, ErrStreamDataBlocked)

	_, err = s.Write([]byte("ok"))
	require.NoError(t, err)
}

// TestStreamReceiveReorderedDuplicate exercises spec.md §8's "Stream
// delivery" property: for any interleaving of STREAM frames covering
// [0,N), including duplicates, the bytes delivered to the application
// equal the original bytes in order exactly once.
func TestStreamReceiveReorderedDuplicate(t *testing.T) {
	s := NewStream(4, 1<<20, 1<<20)
	full := []byte("the quick brown fox jumps")

	out1, fin1, err := s.Receive(10, full[10:20], false)
	require.NoError(t, err)
	require.Empty(t, out1)
	require.False(t, fin1)

	// duplicate of already-buffered range
	out2, _, err := s.Receive(10, full[10:20], false)
	require.NoError(t, err)
	require.Empty(t, out2)

	out3, fin3, err := s.Receive(0, full[0:10], false)
	require.NoError(t, err)
	require.Equal(t, full[0:20], out3)
	require.False(t, fin3)

	out4, fin4, err := s.Receive(20, full[20:], true)
	require.NoError(t, err)
	require.Equal(t, full[20:], out4)
	require.True(t, fin4)
}

func TestStreamReceiveFlowControlRejection(t *testing.T) {
	s := NewStream(4, 1<<20, 10)
	_, _, err := s.Receive(5, make([]byte, 10), false)
	require.ErrorIs(t, err, ErrFlowControl)
}

func TestStreamRstStreamFinalOffsetMismatch(t *testing.T) {
	s := NewStream(4, 1<<20, 1<<20)
	_, fin, err := s.Receive(0, []byte("hello"), true)
	require.NoError(t, err)
	require.True(t, fin)

	err = s.OnRstStream(4) // disagrees with the FIN's final offset of 5
	require.ErrorIs(t, err, ErrFinalOffset)
}

func TestStreamRstStreamConsistentFinalOffset(t *testing.T) {
	s := NewStream(4, 1<<20, 1<<20)
	_, _, err := s.Receive(0, []byte("hello"), true)
	require.NoError(t, err)

	err = s.OnRstStream(5)
	require.NoError(t, err)
	require.True(t, s.State.RecvRST)
}

func TestStreamClosedLifecycle(t *testing.T) {
	s := NewStream(4, 1<<20, 1<<20)
	require.False(t, s.Closed())

	_, _, err := s.Receive(0, []byte("hi"), true)
	require.NoError(t, err)
	s.ShutdownWrite()
	s.OnAcked(0, 0) // acks the zero-length FIN at offset 0
	require.True(t, s.Closed())
}
