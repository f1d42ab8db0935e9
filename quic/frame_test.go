package quic

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func encodeFrame(f Frame) []byte {
	return f.encode(nil)
}

func TestFrameRoundTrip(t *testing.T) {
	cases := []Frame{
		PingFrame{},
		ACKFrame{LargestAcked: 10, Delay: 5, FirstBlock: 3, Ranges: []AckRange{{Gap: 1, BlockLen: 2}}},
		RstStreamFrame{StreamID: 4, AppErrCode: 1, FinalOffset: 100},
		StopSendingFrame{StreamID: 4, AppErrCode: 2},
		CryptoFrame{Offset: 0, Data: []byte("clienthello")},
		NewConnectionIDFrame{Seq: 1, CID: []byte{1, 2, 3, 4}, ResetToken: [16]byte{1}},
		MaxDataFrame{Max: 1 << 20},
		MaxStreamDataFrame{StreamID: 4, Max: 1 << 16},
		MaxStreamIDFrame{Max: 400},
		BlockedFrame{Offset: 555},
		StreamBlockedFrame{StreamID: 4, Offset: 555},
		StreamIDBlockedFrame{StreamID: 400},
		PathChallengeFrame{Data: [8]byte{1, 2, 3, 4, 5, 6, 7, 8}},
		PathResponseFrame{Data: [8]byte{8, 7, 6, 5, 4, 3, 2, 1}},
		ConnectionCloseFrame{ErrCode: 10, Reason: "protocol violation"},
		ApplicationCloseFrame{ErrCode: 20, Reason: "bye"},
		StreamFrame{StreamID: 4, Offset: 0, Data: []byte("hello"), Fin: false},
		StreamFrame{StreamID: 8, Offset: 128, Data: []byte("world"), Fin: true},
	}
	for _, f := range cases {
		buf := encodeFrame(f)
		got, n, err := decodeFrame(buf)
		require.NoError(t, err, "%T", f)
		require.Equal(t, len(buf), n, "%T", f)
		require.Equal(t, f, got, "%T", f)
	}
}

func TestPaddingFrameDecode(t *testing.T) {
	buf := []byte{0, 0, 0, 1, 2}
	f, n, err := decodeFrame(buf)
	require.NoError(t, err)
	require.Equal(t, 3, n)
	require.Equal(t, PaddingFrame{N: 3}, f)
}

func TestACKFrameCovers(t *testing.T) {
	ack := ACKFrame{LargestAcked: 20, FirstBlock: 2, Ranges: []AckRange{{Gap: 1, BlockLen: 1}}}
	// first block covers [18,20]; gap of 1 skips 16 and 17; next range
	// covers [hi-BlockLen, hi] where hi = lo-gap-2 = 18-1-2=15, so [14,15]
	require.True(t, ack.Covers(20))
	require.True(t, ack.Covers(18))
	require.False(t, ack.Covers(17))
	require.True(t, ack.Covers(15))
	require.True(t, ack.Covers(14))
	require.False(t, ack.Covers(13))
	require.False(t, ack.Covers(21))
}

func TestDecodeFrameUnknownType(t *testing.T) {
	_, _, err := decodeFrame([]byte{0x7f})
	require.Error(t, err)
}

func TestDecodeFrameTruncated(t *testing.T) {
	full := encodeFrame(StreamFrame{StreamID: 4, Data: []byte("hello")})
	_, _, err := decodeFrame(full[:len(full)-1])
	require.Error(t, err)
}
