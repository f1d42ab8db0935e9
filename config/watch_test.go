package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestWatchAndReloadPicksUpRewrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "setting.json")
	initial := `{"tunnel":{"name":"edge-a","role":"client","mode":"openflow","quicAddr":"10.0.0.1","quicPort":4433,"localAddr":"127.0.0.1","localPort":6633}}`
	require.NoError(t, os.WriteFile(path, []byte(initial), 0o600))

	var lastErr error
	w, err := WatchAndReload(path, func(e error) { lastErr = e })
	require.NoError(t, err)
	defer w.Close()

	updated := `{"tunnel":{"name":"edge-b","role":"server","mode":"ovsdb","quicAddr":"10.0.0.2","quicPort":4434,"localAddr":"127.0.0.1","localPort":6640}}`
	require.NoError(t, os.WriteFile(path, []byte(updated), 0o600))

	require.Eventually(t, func() bool {
		return GlobalCfg.Tunnel != nil && GlobalCfg.Tunnel.Name == "edge-b"
	}, 2*time.Second, 10*time.Millisecond)
	require.NoError(t, lastErr)
}

func TestWatchAndReloadReportsBadRewrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "setting.json")
	initial := `{"tunnel":{"name":"edge-a","role":"client","mode":"openflow","quicAddr":"10.0.0.1","quicPort":4433,"localAddr":"127.0.0.1","localPort":6633}}`
	require.NoError(t, os.WriteFile(path, []byte(initial), 0o600))

	errCh := make(chan error, 1)
	w, err := WatchAndReload(path, func(e error) {
		select {
		case errCh <- e:
		default:
		}
	})
	require.NoError(t, err)
	defer w.Close()

	require.NoError(t, os.WriteFile(path, []byte(`not json`), 0o600))

	select {
	case err := <-errCh:
		require.Error(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for reload error callback")
	}
}
