package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
auth:
  jwt_secret: test-secret
game_servers:
  - name: main
    rcon_address: 127.0.0.1:27015
    rcon_password: hunter2
    log_dir: /srv/scum/Logs
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	require.Equal(t, "127.0.0.1", cfg.Server.ListenAddr)
	require.Equal(t, 8080, cfg.Server.HTTPPort)
	require.Equal(t, 5*time.Second, cfg.Server.PollInterval)
	require.Equal(t, "/var/lib/scummgr/scummgr.db", cfg.Database.Path)
	require.Equal(t, 24*time.Hour, cfg.Auth.TokenDuration)

	require.Len(t, cfg.GameServers, 1)
	require.Equal(t, "main", cfg.GameServers[0].Name)
	require.Equal(t, "127.0.0.1:27015", cfg.GameServers[0].RconAddress)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

func TestLoadInvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("{{not yaml"), 0o644))

	_, err := Load(path)
	require.Error(t, err)
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")

	cfg := &Config{}
	cfg.Server.HTTPPort = 9090
	cfg.Auth.JWTSecret = "secret"
	cfg.GameServers = []GameServer{{Name: "main", AutoRestart: true}}

	require.NoError(t, Save(path, cfg))

	loaded, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, 9090, loaded.Server.HTTPPort)
	require.True(t, loaded.GameServers[0].AutoRestart)
}
