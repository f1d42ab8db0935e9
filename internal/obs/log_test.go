package obs

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNewWritesJSONLinesAtConfiguredLevel(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.log")
	logger := New(Options{Level: "warn", Path: path})
	defer logger.Sync()

	logger.Info("dropped, below warn")
	logger.Warn("kept", zap.String("streams", "4"))
	logger.Sync()

	buf, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := splitNonEmptyLines(buf)
	require.Len(t, lines, 1)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(lines[0], &entry))
	require.Equal(t, "warn", entry["level"])
	require.Equal(t, "kept", entry["msg"])
}

func TestNewDebugLevelKeepsEverything(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.log")
	logger := New(Options{Level: "debug", Path: path})
	defer logger.Sync()

	logger.Debug("low level detail")
	logger.Error("high level detail")
	logger.Sync()

	buf, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Len(t, splitNonEmptyLines(buf), 2)
}

func splitNonEmptyLines(buf []byte) [][]byte {
	var out [][]byte
	start := 0
	for i, b := range buf {
		if b == '\n' {
			if i > start {
				out = append(out, buf[start:i])
			}
			start = i + 1
		}
	}
	if start < len(buf) {
		out = append(out, buf[start:])
	}
	return out
}
