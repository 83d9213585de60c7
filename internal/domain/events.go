package domain

import "time"

// Event types for WebSocket notifications
const (
	EventPlayerJoin     = "player_join"
	EventPlayerLeave    = "player_leave"
	EventServerUpdate   = "server_update"
	EventBan            = "ban"
	EventUnban          = "unban"
	EventKick           = "kick"
	EventAdminAction    = "admin_action"
	EventUpdateProgress = "update_progress"
)

// Event represents a real-time event for WebSocket broadcast
type Event struct {
	Type      string      `json:"event"`
	ServerID  int64       `json:"server_id"`
	Timestamp time.Time   `json:"timestamp"`
	Data      interface{} `json:"data,omitempty"`
}

// PlayerJoinEvent is sent when a player connects
type PlayerJoinEvent struct {
	SteamID     string `json:"steam_id"`
	DisplayName string `json:"display_name"`
	CharName    string `json:"char_name,omitempty"`
	IPAddress   string `json:"ip_address,omitempty"`
}

// PlayerLeaveEvent is sent when a player disconnects
type PlayerLeaveEvent struct {
	SteamID         string `json:"steam_id"`
	DisplayName     string `json:"display_name"`
	DurationSeconds int64  `json:"duration_seconds,omitempty"`
}

// BanEvent is sent when a player is banned or unbanned
type BanEvent struct {
	SteamID     string `json:"steam_id"`
	DisplayName string `json:"display_name,omitempty"`
	Reason      string `json:"reason,omitempty"`
	Admin       string `json:"admin"`
}

// KickEvent is sent when a player is kicked
type KickEvent struct {
	SteamID     string `json:"steam_id"`
	DisplayName string `json:"display_name,omitempty"`
	Reason      string `json:"reason,omitempty"`
	Admin       string `json:"admin"`
}

// UpdateProgressEvent is sent while a server-package download runs
type UpdateProgressEvent struct {
	TaskID     string `json:"task_id"`
	State      string `json:"state"`
	BytesDone  int64  `json:"bytes_done"`
	BytesTotal int64  `json:"bytes_total"`
}
