// Package api exposes the manager over HTTP and WebSocket.
package api

import (
	"encoding/json"
	"log"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/molt/scummgr/internal/auth"
	"github.com/molt/scummgr/internal/collector"
	"github.com/molt/scummgr/internal/storage"
)

// Server is the HTTP API server
type Server struct {
	store     *storage.Store
	manager   *collector.ServerManager
	auth      *auth.Service
	hub       *Hub
	staticDir string
}

// NewServer creates the API server and its WebSocket hub
func NewServer(store *storage.Store, manager *collector.ServerManager, authSvc *auth.Service, staticDir string) *Server {
	return &Server{
		store:     store,
		manager:   manager,
		auth:      authSvc,
		hub:       NewHub(),
		staticDir: staticDir,
	}
}

// Hub returns the WebSocket hub for event broadcasting
func (s *Server) Hub() *Hub {
	return s.hub
}

// Routes builds the HTTP handler
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("POST /api/auth/login", s.handleLogin)
	mux.HandleFunc("GET /api/auth/check", s.requireAuth(s.handleAuthCheck))
	mux.HandleFunc("POST /api/auth/password", s.requireAuth(s.handleChangePassword))

	mux.HandleFunc("GET /api/servers", s.requireAuth(s.handleListServers))
	mux.HandleFunc("GET /api/servers/{id}/status", s.requireAuth(s.handleServerStatus))
	mux.HandleFunc("POST /api/servers/{id}/start", s.requireAdmin(s.handleServerStart))
	mux.HandleFunc("POST /api/servers/{id}/stop", s.requireAdmin(s.handleServerStop))
	mux.HandleFunc("POST /api/servers/{id}/restart", s.requireAdmin(s.handleServerRestart))
	mux.HandleFunc("POST /api/servers/{id}/update", s.requireAdmin(s.handleServerUpdate))
	mux.HandleFunc("POST /api/servers/{id}/rcon", s.requireAdmin(s.handleRcon))
	mux.HandleFunc("POST /api/servers/{id}/kick", s.requireAdmin(s.handleKick))
	mux.HandleFunc("POST /api/servers/{id}/announce", s.requireAdmin(s.handleAnnounce))
	mux.HandleFunc("GET /api/servers/{id}/settings", s.requireAuth(s.handleGetSettings))
	mux.HandleFunc("PUT /api/servers/{id}/settings", s.requireAdmin(s.handlePutSettings))
	mux.HandleFunc("POST /api/servers/{id}/bans", s.requireAdmin(s.handleBan))
	mux.HandleFunc("DELETE /api/servers/{id}/bans/{steamID}", s.requireAdmin(s.handleUnban))
	mux.HandleFunc("POST /api/servers/{id}/admins", s.requireAdmin(s.handleAdminAdd))
	mux.HandleFunc("DELETE /api/servers/{id}/admins/{steamID}", s.requireAdmin(s.handleAdminRemove))

	mux.HandleFunc("GET /api/updates", s.requireAuth(s.handleListUpdates))
	mux.HandleFunc("GET /api/updates/{id}", s.requireAuth(s.handleGetUpdate))
	mux.HandleFunc("POST /api/updates/{id}/cancel", s.requireAdmin(s.handleCancelUpdate))

	mux.HandleFunc("GET /api/players", s.requireAuth(s.handleListPlayers))
	mux.HandleFunc("GET /api/players/online", s.requireAuth(s.handleOnlinePlayers))
	mux.HandleFunc("GET /api/players/search", s.requireAuth(s.handleSearchPlayers))
	mux.HandleFunc("GET /api/players/{steamID}", s.requireAuth(s.handleGetPlayer))
	mux.HandleFunc("GET /api/players/{steamID}/sessions", s.requireAuth(s.handlePlayerSessions))
	mux.HandleFunc("PUT /api/players/{steamID}/notes", s.requireAdmin(s.handlePlayerNotes))

	mux.HandleFunc("GET /api/bans", s.requireAuth(s.handleListBans))
	mux.HandleFunc("GET /api/admins", s.requireAuth(s.handleListAdmins))
	mux.HandleFunc("GET /api/actions", s.requireAuth(s.handleListActions))

	mux.HandleFunc("GET /api/users", s.requireAdmin(s.handleListUsers))
	mux.HandleFunc("POST /api/users", s.requireAdmin(s.handleCreateUser))
	mux.HandleFunc("DELETE /api/users/{username}", s.requireAdmin(s.handleDeleteUser))

	mux.HandleFunc("GET /ws", s.handleWebSocket)
	mux.HandleFunc("GET /ws/logs", s.handleLogStream)

	if s.staticDir != "" {
		if _, err := os.Stat(s.staticDir); err == nil {
			mux.Handle("GET /", http.FileServer(http.Dir(s.staticDir)))
		} else {
			log.Printf("static dir %s not found, not serving UI", s.staticDir)
		}
	}

	return logRequests(cors(mux))
}

// cors allows browser dashboards served from another origin to call the API
func cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// logRequests logs each request with its duration
func logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		log.Printf("%s %s %s", r.Method, r.URL.Path, time.Since(start))
	})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("encoding response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

func readJSON(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

// pathServerID parses the {id} path segment
func pathServerID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	return id, err == nil
}

func queryInt(r *http.Request, key string, def int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return def
	}
	return n
}
