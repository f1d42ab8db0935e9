package quic

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTransportParametersRoundTrip(t *testing.T) {
	p := &TransportParameters{
		InitialMaxStreamData: 1 << 16,
		InitialMaxData:       1 << 20,
		IdleTimeoutSeconds:   30,
		MaxStreamIDBidi:      64,
		MaxStreamIDUni:       32,
		isServer:             true,
		HasStatelessResetToken: true,
		StatelessResetToken:    [16]byte{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15, 16},
	}
	buf := EncodeTransportParameters(p)
	got, err := DecodeTransportParameters(buf, true)
	require.NoError(t, err)
	require.Equal(t, p.InitialMaxStreamData, got.InitialMaxStreamData)
	require.Equal(t, p.InitialMaxData, got.InitialMaxData)
	require.Equal(t, p.IdleTimeoutSeconds, got.IdleTimeoutSeconds)
	require.Equal(t, p.MaxStreamIDBidi, got.MaxStreamIDBidi)
	require.Equal(t, p.MaxStreamIDUni, got.MaxStreamIDUni)
	require.True(t, got.HasStatelessResetToken)
	require.Equal(t, p.StatelessResetToken, got.StatelessResetToken)
}

func TestTransportParametersClientOmitsServerOnly(t *testing.T) {
	p := &TransportParameters{
		InitialMaxStreamData: 1 << 16,
		InitialMaxData:       1 << 20,
		IdleTimeoutSeconds:   30,
	}
	buf := EncodeTransportParameters(p)
	got, err := DecodeTransportParameters(buf, false)
	require.NoError(t, err)
	require.False(t, got.HasStatelessResetToken)
}

func TestTransportParametersMissingRequired(t *testing.T) {
	var buf []byte
	buf = appendTP(buf, tpInitialMaxStreamData, varintBytes(100))
	_, err := DecodeTransportParameters(buf, false)
	require.Error(t, err)
}

func TestTransportParametersRejectsServerOnlyFromClient(t *testing.T) {
	var buf []byte
	buf = appendTP(buf, tpInitialMaxStreamData, varintBytes(1))
	buf = appendTP(buf, tpInitialMaxData, varintBytes(1))
	buf = appendTP(buf, tpIdleTimeout, varintBytes(1))
	var token [16]byte
	buf = appendTP(buf, tpStatelessResetToken, token[:])
	_, err := DecodeTransportParameters(buf, false)
	require.Error(t, err)
}
