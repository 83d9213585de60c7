package api

import (
	"net/http"
	"strings"

	"github.com/molt/scummgr/internal/auth"
	"github.com/molt/scummgr/internal/banfile"
	"github.com/molt/scummgr/internal/domain"
)

// ---- servers ----

func (s *Server) handleListServers(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.manager.GetAllStatuses())
}

func (s *Server) handleServerStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := pathServerID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid server id")
		return
	}
	status := s.manager.GetServerStatus(id)
	if status == nil {
		writeError(w, http.StatusNotFound, "unknown server")
		return
	}
	writeJSON(w, http.StatusOK, status)
}

func (s *Server) handleServerStart(w http.ResponseWriter, r *http.Request) {
	s.serverAction(w, r, s.manager.StartServer, "started")
}

func (s *Server) handleServerStop(w http.ResponseWriter, r *http.Request) {
	s.serverAction(w, r, s.manager.StopServer, "stopped")
}

func (s *Server) handleServerRestart(w http.ResponseWriter, r *http.Request) {
	s.serverAction(w, r, s.manager.RestartServer, "restarted")
}

func (s *Server) serverAction(w http.ResponseWriter, r *http.Request, action func(int64) error, verb string) {
	id, ok := pathServerID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid server id")
		return
	}
	if err := action(id); err != nil {
		writeError(w, http.StatusConflict, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": verb})
}

func (s *Server) handleServerUpdate(w http.ResponseWriter, r *http.Request) {
	id, ok := pathServerID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid server id")
		return
	}
	taskID, err := s.manager.StartUpdate(id)
	if err != nil {
		writeError(w, http.StatusConflict, err.Error())
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"task_id": taskID})
}

// ---- updates ----

func (s *Server) handleListUpdates(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.manager.Downloader().List())
}

func (s *Server) handleGetUpdate(w http.ResponseWriter, r *http.Request) {
	task, ok := s.manager.Downloader().Get(r.PathValue("id"))
	if !ok {
		writeError(w, http.StatusNotFound, "unknown task")
		return
	}
	writeJSON(w, http.StatusOK, task)
}

func (s *Server) handleCancelUpdate(w http.ResponseWriter, r *http.Request) {
	if !s.manager.Downloader().Cancel(r.PathValue("id")) {
		writeError(w, http.StatusConflict, "task not running")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "cancelling"})
}

// ---- rcon ----

func (s *Server) handleRcon(w http.ResponseWriter, r *http.Request) {
	id, ok := pathServerID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid server id")
		return
	}

	var req struct {
		Command string `json:"command"`
	}
	if !readJSON(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Command) == "" {
		writeError(w, http.StatusBadRequest, "empty command")
		return
	}

	response, err := s.manager.ExecuteRcon(r.Context(), id, req.Command)
	if err != nil {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"response": response})
}

func (s *Server) handleKick(w http.ResponseWriter, r *http.Request) {
	id, ok := pathServerID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid server id")
		return
	}

	var req struct {
		SteamID string `json:"steam_id"`
		Reason  string `json:"reason"`
	}
	if !readJSON(w, r, &req) {
		return
	}
	if !domain.ValidSteamID(req.SteamID) {
		writeError(w, http.StatusBadRequest, "invalid steam id")
		return
	}

	claims := requestClaims(r)
	if err := s.manager.KickPlayer(r.Context(), id, req.SteamID, req.Reason, claims.Username); err != nil {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "kicked"})
}

func (s *Server) handleAnnounce(w http.ResponseWriter, r *http.Request) {
	id, ok := pathServerID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid server id")
		return
	}

	var req struct {
		Message string `json:"message"`
	}
	if !readJSON(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		writeError(w, http.StatusBadRequest, "empty message")
		return
	}

	claims := requestClaims(r)
	if err := s.manager.Announce(r.Context(), id, req.Message, claims.Username); err != nil {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "announced"})
}

// ---- players ----

func (s *Server) handleListPlayers(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 50)
	offset := queryInt(r, "offset", 0)
	players, err := s.store.ListPlayers(limit, offset)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "listing players failed")
		return
	}
	writeJSON(w, http.StatusOK, players)
}

func (s *Server) handleOnlinePlayers(w http.ResponseWriter, r *http.Request) {
	players, err := s.store.ListOnlinePlayers()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "listing online players failed")
		return
	}
	writeJSON(w, http.StatusOK, players)
}

func (s *Server) handleSearchPlayers(w http.ResponseWriter, r *http.Request) {
	query := strings.TrimSpace(r.URL.Query().Get("q"))
	if query == "" {
		writeError(w, http.StatusBadRequest, "missing query")
		return
	}
	players, err := s.store.SearchPlayers(query, queryInt(r, "limit", 50))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "search failed")
		return
	}
	writeJSON(w, http.StatusOK, players)
}

func (s *Server) handleGetPlayer(w http.ResponseWriter, r *http.Request) {
	steamID := r.PathValue("steamID")
	player, err := s.store.GetPlayer(steamID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "fetching player failed")
		return
	}
	if player == nil {
		writeError(w, http.StatusNotFound, "unknown player")
		return
	}
	writeJSON(w, http.StatusOK, player)
}

func (s *Server) handlePlayerSessions(w http.ResponseWriter, r *http.Request) {
	steamID := r.PathValue("steamID")
	sessions, err := s.store.GetPlayerSessions(steamID, queryInt(r, "limit", 50))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "fetching sessions failed")
		return
	}
	writeJSON(w, http.StatusOK, sessions)
}

func (s *Server) handlePlayerNotes(w http.ResponseWriter, r *http.Request) {
	steamID := r.PathValue("steamID")

	var req struct {
		Notes string `json:"notes"`
	}
	if !readJSON(w, r, &req) {
		return
	}

	if err := s.store.SetPlayerNotes(steamID, req.Notes); err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "saved"})
}

// ---- bans and admins ----

func (s *Server) handleListBans(w http.ResponseWriter, r *http.Request) {
	bans, err := s.store.ListBans()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "listing bans failed")
		return
	}
	writeJSON(w, http.StatusOK, bans)
}

func (s *Server) handleBan(w http.ResponseWriter, r *http.Request) {
	id, ok := pathServerID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid server id")
		return
	}

	var req struct {
		SteamID string `json:"steam_id"`
		Reason  string `json:"reason"`
	}
	if !readJSON(w, r, &req) {
		return
	}
	if !domain.ValidSteamID(req.SteamID) {
		writeError(w, http.StatusBadRequest, "invalid steam id")
		return
	}

	claims := requestClaims(r)
	if err := s.manager.BanPlayer(r.Context(), id, req.SteamID, req.Reason, claims.Username); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "banned"})
}

func (s *Server) handleUnban(w http.ResponseWriter, r *http.Request) {
	id, ok := pathServerID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid server id")
		return
	}
	steamID := r.PathValue("steamID")

	claims := requestClaims(r)
	if err := s.manager.UnbanPlayer(id, steamID, claims.Username); err != nil {
		writeError(w, http.StatusConflict, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "unbanned"})
}

func (s *Server) handleListAdmins(w http.ResponseWriter, r *http.Request) {
	admins, err := s.store.ListAdmins()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "listing admins failed")
		return
	}
	writeJSON(w, http.StatusOK, admins)
}

func (s *Server) handleAdminAdd(w http.ResponseWriter, r *http.Request) {
	id, ok := pathServerID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid server id")
		return
	}

	var req struct {
		SteamID string `json:"steam_id"`
	}
	if !readJSON(w, r, &req) {
		return
	}
	if !domain.ValidSteamID(req.SteamID) {
		writeError(w, http.StatusBadRequest, "invalid steam id")
		return
	}

	claims := requestClaims(r)
	if err := s.manager.SetAdmin(id, req.SteamID, true, claims.Username); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "admin granted"})
}

func (s *Server) handleAdminRemove(w http.ResponseWriter, r *http.Request) {
	id, ok := pathServerID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid server id")
		return
	}
	steamID := r.PathValue("steamID")

	claims := requestClaims(r)
	if err := s.manager.SetAdmin(id, steamID, false, claims.Username); err != nil {
		writeError(w, http.StatusConflict, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "admin revoked"})
}

// ---- audit log ----

func (s *Server) handleListActions(w http.ResponseWriter, r *http.Request) {
	steamID := r.URL.Query().Get("steam_id")
	actions, err := s.store.ListAdminActions(steamID, queryInt(r, "limit", 100))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "listing actions failed")
		return
	}
	writeJSON(w, http.StatusOK, actions)
}

// ---- settings ----

func (s *Server) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	id, ok := pathServerID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid server id")
		return
	}
	path, err := s.manager.SettingsPath(id)
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	settings, err := banfile.LoadSettings(path)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, settings.All())
}

func (s *Server) handlePutSettings(w http.ResponseWriter, r *http.Request) {
	id, ok := pathServerID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid server id")
		return
	}
	path, err := s.manager.SettingsPath(id)
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}

	var req map[string]string
	if !readJSON(w, r, &req) {
		return
	}

	settings, err := banfile.LoadSettings(path)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	for key, value := range req {
		settings.Set(key, value)
	}
	if err := banfile.SaveSettings(path, settings); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "saved"})
}

// ---- users ----

func (s *Server) handleListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := s.store.ListUsers()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "listing users failed")
		return
	}
	writeJSON(w, http.StatusOK, users)
}

func (s *Server) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
		IsAdmin  bool   `json:"is_admin"`
	}
	if !readJSON(w, r, &req) {
		return
	}
	if req.Username == "" || len(req.Password) < 8 {
		writeError(w, http.StatusBadRequest, "username required and password must be at least 8 characters")
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "creating user failed")
		return
	}
	user, err := s.store.CreateUser(req.Username, hash, req.IsAdmin)
	if err != nil {
		writeError(w, http.StatusConflict, "username already exists")
		return
	}
	writeJSON(w, http.StatusCreated, user)
}

func (s *Server) handleDeleteUser(w http.ResponseWriter, r *http.Request) {
	username := r.PathValue("username")
	claims := requestClaims(r)
	if username == claims.Username {
		writeError(w, http.StatusBadRequest, "cannot delete your own account")
		return
	}
	if err := s.store.DeleteUser(username); err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}
