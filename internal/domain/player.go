package domain

import (
	"regexp"
	"time"
)

// Player statuses persisted in the players table.
const (
	StatusOnline  = "online"
	StatusOffline = "offline"
)

// Player represents a person identified by their SteamID64.
type Player struct {
	SteamID             string     `json:"steam_id"`
	DisplayName         string     `json:"display_name"`
	CharName            string     `json:"char_name,omitempty"`
	IPAddress           string     `json:"ip_address,omitempty"`
	FirstSeen           time.Time  `json:"first_seen"`
	LastSeen            time.Time  `json:"last_seen"`
	TotalPlaytime       int64      `json:"total_playtime"` // seconds, accumulated on session close
	Status              string     `json:"status"`
	IsAdmin             bool       `json:"is_admin"`
	IsBanned            bool       `json:"is_banned"`
	BanReason           string     `json:"ban_reason,omitempty"`
	BanTimestamp        *time.Time `json:"ban_timestamp,omitempty"`
	AdminAddedTimestamp *time.Time `json:"admin_added_timestamp,omitempty"`
	Notes               string     `json:"notes,omitempty"`
}

// PlayerSession represents a single stretch of time a player spent on a server.
type PlayerSession struct {
	ID           int64      `json:"id"`
	SteamID      string     `json:"steam_id"`
	ServerID     int64      `json:"server_id"`
	SessionStart time.Time  `json:"session_start"`
	SessionEnd   *time.Time `json:"session_end,omitempty"`
	Duration     int64      `json:"duration,omitempty"` // seconds
	IPAddress    string     `json:"ip_address,omitempty"`
}

// AdminAction types recorded in the audit log.
const (
	ActionBan         = "ban"
	ActionUnban       = "unban"
	ActionKick        = "kick"
	ActionAdminAdd    = "admin_add"
	ActionAdminRemove = "admin_remove"
	ActionRcon        = "rcon"
	ActionAnnounce    = "announce"
)

// AdminAction is one entry in the administrative audit log.
type AdminAction struct {
	ID            int64     `json:"id"`
	Timestamp     time.Time `json:"timestamp"`
	AdminSteamID  string    `json:"admin_steam_id"` // web username for actions taken through the API
	ActionType    string    `json:"action_type"`
	TargetSteamID string    `json:"target_steam_id,omitempty"`
	TargetName    string    `json:"target_name,omitempty"`
	Reason        string    `json:"reason,omitempty"`
	Success       bool      `json:"success"`
}

// Ban is the API representation of a banned player.
type Ban struct {
	SteamID      string     `json:"steam_id"`
	DisplayName  string     `json:"display_name,omitempty"`
	Reason       string     `json:"reason,omitempty"`
	BanTimestamp *time.Time `json:"ban_timestamp,omitempty"`
}

// User is a web/CLI account for the manager itself (not a game player).
type User struct {
	ID                     int64      `json:"id"`
	Username               string     `json:"username"`
	PasswordHash           string     `json:"-"`
	IsAdmin                bool       `json:"is_admin"`
	CreatedAt              time.Time  `json:"created_at"`
	LastLogin              *time.Time `json:"last_login,omitempty"`
	PasswordChangeRequired bool       `json:"password_change_required"`
}

// steamIDRegex matches a SteamID64 as reported in SCUM and BattlEye logs.
var steamIDRegex = regexp.MustCompile(`^7656119\d{10}$`)

// ValidSteamID reports whether s looks like a SteamID64.
func ValidSteamID(s string) bool {
	return steamIDRegex.MatchString(s)
}
