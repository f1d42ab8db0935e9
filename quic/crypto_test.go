package quic

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDeriveInitialSecretsDeterministic(t *testing.T) {
	cid := []byte{1, 2, 3, 4, 5, 6, 7, 8}
	c1, s1 := DeriveInitialSecrets(cid)
	c2, s2 := DeriveInitialSecrets(cid)
	require.Equal(t, c1, c2)
	require.Equal(t, s1, s2)
	require.NotEqual(t, c1, s1)
}

func TestSealOpenRoundTripAES(t *testing.T) {
	secret := make([]byte, 32)
	for i := range secret {
		secret[i] = byte(i)
	}
	keys := DeriveKeys(secret, SuiteAES128GCM)

	ad := []byte("header bytes")
	plaintext := []byte("stream frame payload")
	sealed, err := keys.Seal(nil, ad, plaintext, 42)
	require.NoError(t, err)

	opened, err := keys.Open(nil, ad, sealed, 42)
	require.NoError(t, err)
	require.Equal(t, plaintext, opened)
}

func TestSealOpenRoundTripChaCha20(t *testing.T) {
	secret := make([]byte, 32)
	for i := range secret {
		secret[i] = byte(i + 1)
	}
	keys := DeriveKeys(secret, SuiteChaCha20Poly1305)

	ad := []byte("header bytes")
	plaintext := []byte("stream frame payload")
	sealed, err := keys.Seal(nil, ad, plaintext, 7)
	require.NoError(t, err)

	opened, err := keys.Open(nil, ad, sealed, 7)
	require.NoError(t, err)
	require.Equal(t, plaintext, opened)
}

func TestOpenFailsWithWrongPacketNumber(t *testing.T) {
	secret := make([]byte, 32)
	keys := DeriveKeys(secret, SuiteAES128GCM)
	sealed, err := keys.Seal(nil, []byte("ad"), []byte("payload"), 1)
	require.NoError(t, err)
	_, err = keys.Open(nil, []byte("ad"), sealed, 2)
	require.Error(t, err)
}

func TestHeaderProtectionMaskDeterministic(t *testing.T) {
	secret := make([]byte, 32)
	keys := DeriveKeys(secret, SuiteAES128GCM)
	sample := make([]byte, 16)
	m1, err := keys.headerProtectionMask(sample)
	require.NoError(t, err)
	m2, err := keys.headerProtectionMask(sample)
	require.NoError(t, err)
	require.Equal(t, m1, m2)
	require.Len(t, m1, 5)
}
