package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSaveLoadTransportParamsRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tp.txt")
	p := &SavedTransportParams{
		InitialMaxStreamData: 65536,
		InitialMaxData:       1 << 20,
		IdleTimeoutSeconds:   30,
		MaxStreamIDBidi:      1024,
		MaxStreamIDUni:       1024,
	}
	require.NoError(t, SaveTransportParams(path, p))

	got, err := LoadTransportParams(path)
	require.NoError(t, err)
	require.Equal(t, p, got)
}

func TestLoadTransportParamsIgnoresCommentsAndUnknownKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tp.txt")
	content := "# comment\n\ninitial_max_data=100\nfuture_key=999\nidle_timeout=10\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	got, err := LoadTransportParams(path)
	require.NoError(t, err)
	require.Equal(t, uint64(100), got.InitialMaxData)
	require.Equal(t, uint64(10), got.IdleTimeoutSeconds)
}

func TestLoadTransportParamsRejectsMalformedLine(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tp.txt")
	require.NoError(t, os.WriteFile(path, []byte("not-a-kv-line\n"), 0o600))

	_, err := LoadTransportParams(path)
	require.Error(t, err)
}

func TestLoadTransportParamsMissingFile(t *testing.T) {
	_, err := LoadTransportParams(filepath.Join(t.TempDir(), "missing.txt"))
	require.Error(t, err)
}
