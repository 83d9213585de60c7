package domain

import "time"

// Server represents a managed SCUM dedicated server.
type Server struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Address   string    `json:"address"` // RCON host:port
	LogDir    string    `json:"log_dir,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// ServerStatus is the current state of a managed server.
type ServerStatus struct {
	ServerID    int64          `json:"server_id"`
	Name        string         `json:"name"`
	Address     string         `json:"address"`
	Online      bool           `json:"online"`
	Players     []OnlinePlayer `json:"players"`
	PlayerCount int            `json:"player_count"`
	Process     *ProcessStats  `json:"process,omitempty"`
	LastUpdated time.Time      `json:"last_updated"`
}

// OnlinePlayer is a player currently connected to a server.
type OnlinePlayer struct {
	SteamID     string    `json:"steam_id"`
	DisplayName string    `json:"display_name"`
	CharName    string    `json:"char_name,omitempty"`
	IPAddress   string    `json:"ip_address,omitempty"`
	ConnectedAt time.Time `json:"connected_at"`
}

// ProcessStats holds resource usage for the server process.
type ProcessStats struct {
	PID           int32     `json:"pid"`
	Running       bool      `json:"running"`
	CPUPercent    float64   `json:"cpu_percent"`
	MemoryRSS     uint64    `json:"memory_rss"`
	StartedAt     time.Time `json:"started_at,omitempty"`
	UptimeSeconds int64     `json:"uptime_seconds,omitempty"`
}

// UpdateTask reports the state of a background server-package download.
type UpdateTask struct {
	ID         string     `json:"id"`
	ServerID   int64      `json:"server_id"`
	URL        string     `json:"url"`
	State      string     `json:"state"` // "running", "done", "failed", "cancelled"
	BytesDone  int64      `json:"bytes_done"`
	BytesTotal int64      `json:"bytes_total"` // -1 when the server did not send a length
	Error      string     `json:"error,omitempty"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}
