package main

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func newQueryCapture(t *testing.T, param string) (*httptest.Server, *string) {
	t.Helper()
	var got string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.URL.Query().Get(param)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte("[]"))
	}))
	t.Cleanup(srv.Close)
	return srv, &got
}

func TestPlayersSearchQueryEscaped(t *testing.T) {
	srv, got := newQueryCapture(t, "q")

	err := cmdPlayers([]string{"--addr", srv.URL, "--token", "t", "--search", "two words & more"})
	require.NoError(t, err)
	require.Equal(t, "two words & more", *got)
}

func TestActionsPlayerFilterEscaped(t *testing.T) {
	srv, got := newQueryCapture(t, "steam_id")

	err := cmdActions([]string{"--addr", srv.URL, "--token", "t", "--player", "7656&limit=9"})
	require.NoError(t, err)
	require.Equal(t, "7656&limit=9", *got)
}
