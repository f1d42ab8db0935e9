package quic

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func testKeys(t *testing.T) *Keys {
	t.Helper()
	secret := make([]byte, 32)
	for i := range secret {
		secret[i] = byte(i * 3)
	}
	return DeriveKeys(secret, SuiteAES128GCM)
}

func TestBuildParseRoundTripShortHeader(t *testing.T) {
	keys := testKeys(t)
	h := &Header{
		Long:    false,
		DestCID: []byte{1, 2, 3, 4, 5, 6, 7, 8},
	}
	frames := []Frame{StreamFrame{StreamID: 4, Offset: 0, Data: []byte("hello from the application layer")}}

	packet, err := Build(h, frames, keys, -1)
	require.NoError(t, err)

	res, err := Parse(packet, len(h.DestCID), keys, -1)
	require.NoError(t, err)
	require.Equal(t, len(packet), res.Consumed)
	require.Equal(t, h.DestCID, res.Header.DestCID)
	require.Equal(t, uint64(0), res.Header.PacketNumber)

	f, n, err := decodeFrame(res.Payload)
	require.NoError(t, err)
	require.Equal(t, len(res.Payload), n)
	require.Equal(t, frames[0], f)
}

func TestBuildParseRoundTripLongHeader(t *testing.T) {
	keys := testKeys(t)
	h := &Header{
		Long:    true,
		Type:    PacketInitial,
		Version: 1,
		DestCID: []byte{1, 2, 3, 4, 5, 6, 7, 8},
		SrcCID:  []byte{9, 10, 11, 12},
	}
	frames := []Frame{CryptoFrame{Offset: 0, Data: []byte("client hello bytes go here")}}

	packet, err := Build(h, frames, keys, -1)
	require.NoError(t, err)

	res, err := Parse(packet, len(h.DestCID), keys, -1)
	require.NoError(t, err)
	require.Equal(t, len(packet), res.Consumed)
	require.True(t, res.Header.Long)
	require.Equal(t, PacketInitial, res.Header.Type)
	require.Equal(t, h.Version, res.Header.Version)
	require.Equal(t, h.SrcCID, res.Header.SrcCID)

	f, _, err := decodeFrame(res.Payload)
	require.NoError(t, err)
	require.Equal(t, frames[0], f)
}

func TestBuildParseSequentialPacketNumbers(t *testing.T) {
	keys := testKeys(t)
	h := &Header{Long: false, DestCID: []byte{1, 2, 3, 4}}
	largestAcked := int64(-1)
	var largestSeen int64 = -1

	for pn := uint64(0); pn < 5; pn++ {
		h.PacketNumber = pn
		packet, err := Build(h, []Frame{PingFrame{}, PaddingFrame{N: 20}}, keys, largestAcked)
		require.NoError(t, err)

		res, err := Parse(packet, 4, keys, largestSeen)
		require.NoError(t, err)
		require.Equal(t, pn, res.Header.PacketNumber)
		largestSeen = int64(pn)
		largestAcked = int64(pn)
	}
}

func TestParseRejectsTamperedCiphertext(t *testing.T) {
	keys := testKeys(t)
	h := &Header{Long: false, DestCID: []byte{1, 2, 3, 4}}
	packet, err := Build(h, []Frame{PingFrame{}, PaddingFrame{N: 20}}, keys, -1)
	require.NoError(t, err)

	tampered := append([]byte(nil), packet...)
	tampered[len(tampered)-1] ^= 0xff

	_, err = Parse(tampered, 4, keys, -1)
	require.ErrorIs(t, err, ErrDecryptFailed)
}

func TestIsStatelessReset(t *testing.T) {
	token := [16]byte{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15, 16}
	datagram := append(make([]byte, 10), token[:]...)
	require.True(t, IsStatelessReset(datagram, token))

	var other [16]byte
	require.False(t, IsStatelessReset(datagram, other))
	require.False(t, IsStatelessReset(datagram[:10], token))
}
