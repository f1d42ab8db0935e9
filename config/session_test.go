package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSaveLoadSessionRoundTrip(t *testing.T) {
	dir := t.TempDir()
	state := []byte("opaque ticket bytes from tls.QUICConn")

	path, err := SaveSession(dir, state)
	require.NoError(t, err)
	require.FileExists(t, path)

	got, err := LoadSession(path)
	require.NoError(t, err)
	require.Equal(t, state, got)
}

func TestSaveSessionNamesAreUnique(t *testing.T) {
	dir := t.TempDir()
	p1, err := SaveSession(dir, []byte("a"))
	require.NoError(t, err)
	p2, err := SaveSession(dir, []byte("b"))
	require.NoError(t, err)
	require.NotEqual(t, p1, p2)
}

func TestLoadSessionRejectsForeignPEM(t *testing.T) {
	path := filepath.Join(t.TempDir(), "not-a-session.pem")
	pemBody := "-----BEGIN CERTIFICATE-----\nAAAA\n-----END CERTIFICATE-----\n"
	require.NoError(t, os.WriteFile(path, []byte(pemBody), 0o600))

	_, err := LoadSession(path)
	require.Error(t, err)
}

func TestLoadSessionMissingFile(t *testing.T) {
	_, err := LoadSession(filepath.Join(t.TempDir(), "missing.pem"))
	require.Error(t, err)
}

func TestLoadTLSCredentialsMissingFiles(t *testing.T) {
	_, err := LoadTLSCredentials(
		filepath.Join(t.TempDir(), "missing.crt"),
		filepath.Join(t.TempDir(), "missing.key"),
	)
	require.Error(t, err)
}

