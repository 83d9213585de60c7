package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/molt/scummgr/internal/auth"
	"github.com/molt/scummgr/internal/collector"
	"github.com/molt/scummgr/internal/config"
	"github.com/molt/scummgr/internal/storage"
)

func newTestServer(t *testing.T) (*httptest.Server, *storage.Store) {
	t.Helper()

	store, err := storage.New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	authSvc := auth.NewService("test-secret", time.Hour)
	manager := collector.NewServerManager(&config.Config{}, store)
	api := NewServer(store, manager, authSvc, "")

	srv := httptest.NewServer(api.Routes())
	t.Cleanup(srv.Close)
	return srv, store
}

func createUser(t *testing.T, store *storage.Store, username, password string, isAdmin bool) {
	t.Helper()
	hash, err := auth.HashPassword(password)
	require.NoError(t, err)
	_, err = store.CreateUser(username, hash, isAdmin)
	require.NoError(t, err)
}

func login(t *testing.T, srv *httptest.Server, username, password string) string {
	t.Helper()
	body, _ := json.Marshal(map[string]string{"username": username, "password": password})
	resp, err := http.Post(srv.URL+"/api/auth/login", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	require.NotEmpty(t, out.Token)
	return out.Token
}

func doRequest(t *testing.T, srv *httptest.Server, method, path, token string, body []byte) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, srv.URL+path, bytes.NewReader(body))
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

func TestHealth(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestLoginBadCredentials(t *testing.T) {
	srv, store := newTestServer(t)
	createUser(t, store, "operator", "correct-horse", false)

	body, _ := json.Marshal(map[string]string{"username": "operator", "password": "wrong"})
	resp, err := http.Post(srv.URL+"/api/auth/login", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestAuthRequired(t *testing.T) {
	srv, _ := newTestServer(t)

	resp := doRequest(t, srv, http.MethodGet, "/api/players", "", nil)
	defer resp.Body.Close()
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestAdminRequired(t *testing.T) {
	srv, store := newTestServer(t)
	createUser(t, store, "viewer", "correct-horse", false)
	token := login(t, srv, "viewer", "correct-horse")

	// Read access works
	resp := doRequest(t, srv, http.MethodGet, "/api/players", token, nil)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	// Mutations do not
	body, _ := json.Marshal(map[string]string{"command": "#listplayers"})
	resp = doRequest(t, srv, http.MethodPost, "/api/servers/1/rcon", token, body)
	resp.Body.Close()
	require.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestPlayerEndpoints(t *testing.T) {
	srv, store := newTestServer(t)
	createUser(t, store, "operator", "correct-horse", true)
	token := login(t, srv, "operator", "correct-horse")

	at := time.Date(2024, 3, 1, 18, 0, 0, 0, time.UTC)
	require.NoError(t, store.UpsertPlayerSeen("76561198012345678", "Rick", "RickChar", "203.0.113.7", at))

	resp := doRequest(t, srv, http.MethodGet, "/api/players/76561198012345678", token, nil)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var player struct {
		SteamID     string `json:"steam_id"`
		DisplayName string `json:"display_name"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&player))
	require.Equal(t, "Rick", player.DisplayName)

	resp = doRequest(t, srv, http.MethodGet, "/api/players/76561198099999999", token, nil)
	resp.Body.Close()
	require.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = doRequest(t, srv, http.MethodGet, "/api/players/search?q=rick", token, nil)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestKickValidation(t *testing.T) {
	srv, store := newTestServer(t)
	createUser(t, store, "operator", "correct-horse", true)
	token := login(t, srv, "operator", "correct-horse")

	body, _ := json.Marshal(map[string]string{"steam_id": "not-a-steam-id", "reason": "x"})
	resp := doRequest(t, srv, http.MethodPost, "/api/servers/1/kick", token, body)
	resp.Body.Close()
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestUserManagement(t *testing.T) {
	srv, store := newTestServer(t)
	createUser(t, store, "operator", "correct-horse", true)
	token := login(t, srv, "operator", "correct-horse")

	body, _ := json.Marshal(map[string]interface{}{
		"username": "helper", "password": "long-enough-pw", "is_admin": false,
	})
	resp := doRequest(t, srv, http.MethodPost, "/api/users", token, body)
	resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	// Short passwords rejected
	body, _ = json.Marshal(map[string]interface{}{"username": "weak", "password": "short"})
	resp = doRequest(t, srv, http.MethodPost, "/api/users", token, body)
	resp.Body.Close()
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	// Cannot delete yourself
	resp = doRequest(t, srv, http.MethodDelete, "/api/users/operator", token, nil)
	resp.Body.Close()
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = doRequest(t, srv, http.MethodDelete, "/api/users/helper", token, nil)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
}
