package collector

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/molt/scummgr/internal/config"
	"github.com/molt/scummgr/internal/storage"
)

// A daemon restart must adopt the session a crash left open instead of
// closing it at the replay boundary and opening a second one, otherwise the
// replayed span gets credited twice.
func TestStartAdoptsOpenSessionAfterCrash(t *testing.T) {
	dir := t.TempDir()
	logDir := filepath.Join(dir, "logs")
	require.NoError(t, os.MkdirAll(logDir, 0o755))

	store, err := storage.New(filepath.Join(dir, "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	serverID, err := store.UpsertServer("main", "", logDir)
	require.NoError(t, err)

	joined := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	alpha := "76561198000000001"
	beta := "76561198000000002"

	// Previous run: beta logged out cleanly at 11:00, alpha's session was
	// still open when the daemon died.
	require.NoError(t, store.UpsertPlayerSeen(beta, "Beta", "", "", joined))
	_, err = store.OpenSession(beta, serverID, joined.Add(30*time.Minute), "")
	require.NoError(t, err)
	require.NoError(t, store.CloseSession(beta, serverID, joined.Add(time.Hour)))

	require.NoError(t, store.UpsertPlayerSeen(alpha, "Alpha", "", "", joined))
	_, err = store.OpenSession(alpha, serverID, joined, "")
	require.NoError(t, err)

	logPath := filepath.Join(logDir, "scum.log")
	writeLogFile(t, logPath,
		"[2024.03.01-10.00.00:000] '76561198000000001:Alpha(1)' logged in at: X=0 Y=0 Z=0\n")

	cfg := &config.Config{GameServers: []config.GameServer{{Name: "main", LogDir: logDir}}}
	m := NewServerManager(cfg, store)
	require.NoError(t, m.Start())
	defer m.Stop()

	// The open session survives the restart: same row, same start, and
	// nothing credited for the replayed span.
	sessions, err := store.GetPlayerSessions(alpha, 10)
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	require.Nil(t, sessions[0].SessionEnd)
	require.True(t, sessions[0].SessionStart.Equal(joined))

	p, err := store.GetPlayer(alpha)
	require.NoError(t, err)
	require.Zero(t, p.TotalPlaytime)

	// A logout after the restart credits the whole stay exactly once
	appendLogFile(t, logPath,
		"[2024.03.01-12.00.00:000] '76561198000000001:Alpha(1)' logged out at: X=0 Y=0 Z=0\n")

	require.Eventually(t, func() bool {
		p, err := store.GetPlayer(alpha)
		return err == nil && p.TotalPlaytime > 0
	}, 5*time.Second, 50*time.Millisecond)

	p, err = store.GetPlayer(alpha)
	require.NoError(t, err)
	require.Equal(t, int64(2*3600), p.TotalPlaytime)
}
