package storage

import (
	"database/sql"
	_ "embed"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/molt/scummgr/internal/domain"
)

//go:embed schema.sql
var schemaSQL string

const timeLayout = "2006-01-02T15:04:05Z"

// Store wraps the SQLite database
type Store struct {
	db *sql.DB
}

// New opens (or creates) the database at path and applies the schema.
func New(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// modernc sqlite is not safe for concurrent writers on one file
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA foreign_keys = ON",
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("setting pragma: %w", err)
		}
	}

	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("applying schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database
func (s *Store) Close() error {
	return s.db.Close()
}

func formatTimestamp(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

// ---- servers ----

// UpsertServer registers a server by name and returns its row id.
func (s *Store) UpsertServer(name, rconAddress, logDir string) (int64, error) {
	_, err := s.db.Exec(`
		INSERT INTO servers (name, rcon_address, log_dir, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET rcon_address = excluded.rcon_address, log_dir = excluded.log_dir`,
		name, rconAddress, logDir, formatTimestamp(time.Now()))
	if err != nil {
		return 0, fmt.Errorf("upserting server: %w", err)
	}

	var id int64
	if err := s.db.QueryRow(`SELECT id FROM servers WHERE name = ?`, name).Scan(&id); err != nil {
		return 0, fmt.Errorf("fetching server id: %w", err)
	}
	return id, nil
}

// ListServers returns all registered servers
func (s *Store) ListServers() ([]domain.Server, error) {
	rows, err := s.db.Query(`SELECT id, name, rcon_address, log_dir, created_at FROM servers ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("querying servers: %w", err)
	}
	defer rows.Close()

	var servers []domain.Server
	for rows.Next() {
		var (
			srv       domain.Server
			createdAt string
		)
		if err := rows.Scan(&srv.ID, &srv.Name, &srv.Address, &srv.LogDir, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning server: %w", err)
		}
		srv.CreatedAt = parseTime(createdAt)
		servers = append(servers, srv)
	}
	return servers, rows.Err()
}

// ---- players ----

const playerColumns = `steam_id, display_name, char_name, ip_address, first_seen, last_seen,
	total_playtime, status, is_admin, is_banned, ban_reason, ban_timestamp, admin_added_timestamp, notes`

// UpsertPlayerSeen records a sighting of a player, creating the row on first
// contact. Empty name/IP values never overwrite known ones.
func (s *Store) UpsertPlayerSeen(steamID, displayName, charName, ipAddress string, seenAt time.Time) error {
	ts := formatTimestamp(seenAt)
	_, err := s.db.Exec(`
		INSERT INTO players (steam_id, display_name, char_name, ip_address, first_seen, last_seen)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(steam_id) DO UPDATE SET
			display_name = CASE WHEN excluded.display_name != '' THEN excluded.display_name ELSE players.display_name END,
			char_name    = CASE WHEN excluded.char_name != '' THEN excluded.char_name ELSE players.char_name END,
			ip_address   = CASE WHEN excluded.ip_address != '' THEN excluded.ip_address ELSE players.ip_address END,
			last_seen    = excluded.last_seen`,
		steamID, displayName, charName, ipAddress, ts, ts)
	if err != nil {
		return fmt.Errorf("upserting player: %w", err)
	}
	return nil
}

// SetPlayerStatus sets a player's online/offline status
func (s *Store) SetPlayerStatus(steamID, status string) error {
	_, err := s.db.Exec(`UPDATE players SET status = ? WHERE steam_id = ?`, status, steamID)
	if err != nil {
		return fmt.Errorf("updating player status: %w", err)
	}
	return nil
}

// SetAllPlayersOffline marks every player offline, used at daemon startup
// before replay establishes who is actually connected.
func (s *Store) SetAllPlayersOffline() error {
	_, err := s.db.Exec(`UPDATE players SET status = ?`, domain.StatusOffline)
	if err != nil {
		return fmt.Errorf("resetting player statuses: %w", err)
	}
	return nil
}

// GetPlayer returns a single player by Steam ID, or nil if unknown.
func (s *Store) GetPlayer(steamID string) (*domain.Player, error) {
	row := s.db.QueryRow(`SELECT `+playerColumns+` FROM players WHERE steam_id = ?`, steamID)
	player, err := scanPlayer(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying player: %w", err)
	}
	return player, nil
}

// ListPlayers returns players ordered by most recently seen
func (s *Store) ListPlayers(limit, offset int) ([]domain.Player, error) {
	rows, err := s.db.Query(`SELECT `+playerColumns+` FROM players
		ORDER BY last_seen DESC LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("querying players: %w", err)
	}
	defer rows.Close()
	return scanPlayers(rows)
}

// SearchPlayers matches players by name or Steam ID substring
func (s *Store) SearchPlayers(query string, limit int) ([]domain.Player, error) {
	pattern := "%" + query + "%"
	rows, err := s.db.Query(`SELECT `+playerColumns+` FROM players
		WHERE steam_id LIKE ? OR display_name LIKE ? OR char_name LIKE ?
		ORDER BY last_seen DESC LIMIT ?`, pattern, pattern, pattern, limit)
	if err != nil {
		return nil, fmt.Errorf("searching players: %w", err)
	}
	defer rows.Close()
	return scanPlayers(rows)
}

// ListOnlinePlayers returns players currently marked online
func (s *Store) ListOnlinePlayers() ([]domain.Player, error) {
	rows, err := s.db.Query(`SELECT `+playerColumns+` FROM players
		WHERE status = ? ORDER BY display_name`, domain.StatusOnline)
	if err != nil {
		return nil, fmt.Errorf("querying online players: %w", err)
	}
	defer rows.Close()
	return scanPlayers(rows)
}

// SetPlayerNotes replaces the free-form notes on a player
func (s *Store) SetPlayerNotes(steamID, notes string) error {
	res, err := s.db.Exec(`UPDATE players SET notes = ? WHERE steam_id = ?`, notes, steamID)
	if err != nil {
		return fmt.Errorf("updating notes: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("unknown player %s", steamID)
	}
	return nil
}

// ---- sessions ----

// OpenSession starts a session for a player unless one is already open on
// the same server. Returns the session id.
func (s *Store) OpenSession(steamID string, serverID int64, start time.Time, ipAddress string) (int64, error) {
	var existing int64
	err := s.db.QueryRow(`SELECT id FROM player_sessions
		WHERE steam_id = ? AND server_id = ? AND session_end IS NULL`,
		steamID, serverID).Scan(&existing)
	if err == nil {
		return existing, nil
	}
	if err != sql.ErrNoRows {
		return 0, fmt.Errorf("checking open session: %w", err)
	}

	res, err := s.db.Exec(`
		INSERT INTO player_sessions (steam_id, server_id, session_start, ip_address)
		VALUES (?, ?, ?, ?)`,
		steamID, serverID, formatTimestamp(start), ipAddress)
	if err != nil {
		return 0, fmt.Errorf("opening session: %w", err)
	}
	return res.LastInsertId()
}

// CloseSession ends the open session for a player on a server, computes its
// duration and folds it into the player's total playtime. Closing with no
// open session is a no-op.
func (s *Store) CloseSession(steamID string, serverID int64, end time.Time) error {
	var (
		id    int64
		start string
	)
	err := s.db.QueryRow(`SELECT id, session_start FROM player_sessions
		WHERE steam_id = ? AND server_id = ? AND session_end IS NULL`,
		steamID, serverID).Scan(&id, &start)
	if err == sql.ErrNoRows {
		return nil
	}
	if err != nil {
		return fmt.Errorf("finding open session: %w", err)
	}

	duration := int64(end.Sub(parseTime(start)).Seconds())
	if duration < 0 {
		duration = 0
	}

	if _, err := s.db.Exec(`UPDATE player_sessions SET session_end = ?, duration = ? WHERE id = ?`,
		formatTimestamp(end), duration, id); err != nil {
		return fmt.Errorf("closing session: %w", err)
	}

	if _, err := s.db.Exec(`UPDATE players SET total_playtime = total_playtime + ? WHERE steam_id = ?`,
		duration, steamID); err != nil {
		return fmt.Errorf("accumulating playtime: %w", err)
	}
	return nil
}

// CloseOpenSessions closes every open session on a server, skipping players
// listed in except. Used when the server shuts down or the daemon reconciles
// after a crash; the except list protects sessions that are adopted instead
// of closed.
func (s *Store) CloseOpenSessions(serverID int64, end time.Time, except ...string) (int, error) {
	skip := make(map[string]bool, len(except))
	for _, id := range except {
		skip[id] = true
	}

	rows, err := s.db.Query(`SELECT steam_id FROM player_sessions
		WHERE server_id = ? AND session_end IS NULL`, serverID)
	if err != nil {
		return 0, fmt.Errorf("listing open sessions: %w", err)
	}
	var steamIDs []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return 0, fmt.Errorf("scanning open session: %w", err)
		}
		steamIDs = append(steamIDs, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, err
	}

	closed := 0
	for _, id := range steamIDs {
		if skip[id] {
			continue
		}
		if err := s.CloseSession(id, serverID, end); err != nil {
			return closed, err
		}
		closed++
	}
	return closed, nil
}

// GetLastSessionEnd returns the most recent session end on a server, used as
// the replay boundary at startup. Zero time when no closed sessions exist.
func (s *Store) GetLastSessionEnd(serverID int64) (time.Time, error) {
	var end sql.NullString
	err := s.db.QueryRow(`SELECT MAX(session_end) FROM player_sessions WHERE server_id = ?`,
		serverID).Scan(&end)
	if err != nil {
		return time.Time{}, fmt.Errorf("querying last session end: %w", err)
	}
	if !end.Valid {
		return time.Time{}, nil
	}
	return parseTime(end.String), nil
}

// GetPlayerSessions returns a player's sessions, newest first
func (s *Store) GetPlayerSessions(steamID string, limit int) ([]domain.PlayerSession, error) {
	rows, err := s.db.Query(`
		SELECT id, steam_id, server_id, session_start, session_end, duration, ip_address
		FROM player_sessions WHERE steam_id = ?
		ORDER BY session_start DESC LIMIT ?`, steamID, limit)
	if err != nil {
		return nil, fmt.Errorf("querying sessions: %w", err)
	}
	defer rows.Close()

	var sessions []domain.PlayerSession
	for rows.Next() {
		var (
			sess     domain.PlayerSession
			start    string
			end      sql.NullString
			duration sql.NullInt64
		)
		if err := rows.Scan(&sess.ID, &sess.SteamID, &sess.ServerID, &start, &end, &duration, &sess.IPAddress); err != nil {
			return nil, fmt.Errorf("scanning session: %w", err)
		}
		sess.SessionStart = parseTime(start)
		sess.SessionEnd = parseNullTime(end)
		sess.Duration = duration.Int64
		sessions = append(sessions, sess)
	}
	return sessions, rows.Err()
}

// ---- bans and admins ----

// BanPlayer marks a player banned, creating the row if the player was never
// seen in a log.
func (s *Store) BanPlayer(steamID, reason string, at time.Time) error {
	ts := formatTimestamp(at)
	_, err := s.db.Exec(`
		INSERT INTO players (steam_id, is_banned, ban_reason, ban_timestamp)
		VALUES (?, 1, ?, ?)
		ON CONFLICT(steam_id) DO UPDATE SET
			is_banned = 1, ban_reason = excluded.ban_reason, ban_timestamp = excluded.ban_timestamp`,
		steamID, reason, ts)
	if err != nil {
		return fmt.Errorf("banning player: %w", err)
	}
	return nil
}

// UnbanPlayer clears the ban flag. Returns an error if the player was not banned.
func (s *Store) UnbanPlayer(steamID string) error {
	res, err := s.db.Exec(`UPDATE players SET is_banned = 0, ban_reason = '', ban_timestamp = NULL
		WHERE steam_id = ? AND is_banned = 1`, steamID)
	if err != nil {
		return fmt.Errorf("unbanning player: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("player %s is not banned", steamID)
	}
	return nil
}

// ListBans returns all banned players
func (s *Store) ListBans() ([]domain.Ban, error) {
	rows, err := s.db.Query(`SELECT steam_id, display_name, ban_reason, ban_timestamp
		FROM players WHERE is_banned = 1 ORDER BY ban_timestamp DESC`)
	if err != nil {
		return nil, fmt.Errorf("querying bans: %w", err)
	}
	defer rows.Close()

	var bans []domain.Ban
	for rows.Next() {
		var (
			ban domain.Ban
			ts  sql.NullString
		)
		if err := rows.Scan(&ban.SteamID, &ban.DisplayName, &ban.Reason, &ts); err != nil {
			return nil, fmt.Errorf("scanning ban: %w", err)
		}
		ban.BanTimestamp = parseNullTime(ts)
		bans = append(bans, ban)
	}
	return bans, rows.Err()
}

// SetAdmin grants or revokes a player's game admin flag
func (s *Store) SetAdmin(steamID string, isAdmin bool, at time.Time) error {
	if isAdmin {
		_, err := s.db.Exec(`
			INSERT INTO players (steam_id, is_admin, admin_added_timestamp)
			VALUES (?, 1, ?)
			ON CONFLICT(steam_id) DO UPDATE SET
				is_admin = 1, admin_added_timestamp = excluded.admin_added_timestamp`,
			steamID, formatTimestamp(at))
		if err != nil {
			return fmt.Errorf("granting admin: %w", err)
		}
		return nil
	}

	res, err := s.db.Exec(`UPDATE players SET is_admin = 0, admin_added_timestamp = NULL
		WHERE steam_id = ? AND is_admin = 1`, steamID)
	if err != nil {
		return fmt.Errorf("revoking admin: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("player %s is not an admin", steamID)
	}
	return nil
}

// ListAdmins returns all players with the game admin flag
func (s *Store) ListAdmins() ([]domain.Player, error) {
	rows, err := s.db.Query(`SELECT `+playerColumns+` FROM players
		WHERE is_admin = 1 ORDER BY display_name`)
	if err != nil {
		return nil, fmt.Errorf("querying admins: %w", err)
	}
	defer rows.Close()
	return scanPlayers(rows)
}

// ---- admin actions ----

// RecordAdminAction appends one entry to the audit log
func (s *Store) RecordAdminAction(action domain.AdminAction) error {
	_, err := s.db.Exec(`
		INSERT INTO admin_actions (timestamp, admin_steam_id, action_type, target_steam_id, target_name, reason, success)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		formatTimestamp(action.Timestamp), action.AdminSteamID, action.ActionType,
		action.TargetSteamID, action.TargetName, action.Reason, boolToInt(action.Success))
	if err != nil {
		return fmt.Errorf("recording admin action: %w", err)
	}
	return nil
}

// ListAdminActions returns audit entries, newest first. A non-empty steamID
// filters to actions targeting that player.
func (s *Store) ListAdminActions(steamID string, limit int) ([]domain.AdminAction, error) {
	query := `SELECT id, timestamp, admin_steam_id, action_type, target_steam_id, target_name, reason, success
		FROM admin_actions`
	args := []interface{}{}
	if steamID != "" {
		query += ` WHERE target_steam_id = ?`
		args = append(args, steamID)
	}
	query += ` ORDER BY timestamp DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying admin actions: %w", err)
	}
	defer rows.Close()

	var actions []domain.AdminAction
	for rows.Next() {
		var (
			action  domain.AdminAction
			ts      string
			success int
		)
		if err := rows.Scan(&action.ID, &ts, &action.AdminSteamID, &action.ActionType,
			&action.TargetSteamID, &action.TargetName, &action.Reason, &success); err != nil {
			return nil, fmt.Errorf("scanning admin action: %w", err)
		}
		action.Timestamp = parseTime(ts)
		action.Success = success != 0
		actions = append(actions, action)
	}
	return actions, rows.Err()
}

// ---- users ----

// CreateUser adds a web/CLI account
func (s *Store) CreateUser(username, passwordHash string, isAdmin bool) (*domain.User, error) {
	now := time.Now()
	res, err := s.db.Exec(`
		INSERT INTO users (username, password_hash, is_admin, created_at)
		VALUES (?, ?, ?, ?)`,
		username, passwordHash, boolToInt(isAdmin), formatTimestamp(now))
	if err != nil {
		return nil, fmt.Errorf("creating user: %w", err)
	}
	id, _ := res.LastInsertId()
	return &domain.User{
		ID:        id,
		Username:  username,
		IsAdmin:   isAdmin,
		CreatedAt: now.UTC().Truncate(time.Second),
	}, nil
}

// GetUserByUsername returns a user or nil if not found
func (s *Store) GetUserByUsername(username string) (*domain.User, error) {
	row := s.db.QueryRow(`
		SELECT id, username, password_hash, is_admin, created_at, last_login, password_change_required
		FROM users WHERE username = ?`, username)
	user, err := scanUser(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying user: %w", err)
	}
	return user, nil
}

// ListUsers returns all accounts
func (s *Store) ListUsers() ([]domain.User, error) {
	rows, err := s.db.Query(`
		SELECT id, username, password_hash, is_admin, created_at, last_login, password_change_required
		FROM users ORDER BY username`)
	if err != nil {
		return nil, fmt.Errorf("querying users: %w", err)
	}
	defer rows.Close()

	var users []domain.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning user: %w", err)
		}
		users = append(users, *user)
	}
	return users, rows.Err()
}

// UpdateUserPassword replaces a user's password hash and clears any forced
// password change.
func (s *Store) UpdateUserPassword(username, passwordHash string) error {
	res, err := s.db.Exec(`UPDATE users SET password_hash = ?, password_change_required = 0
		WHERE username = ?`, passwordHash, username)
	if err != nil {
		return fmt.Errorf("updating password: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("unknown user %s", username)
	}
	return nil
}

// SetUserPasswordChangeRequired forces a password change on next login
func (s *Store) SetUserPasswordChangeRequired(username string, required bool) error {
	res, err := s.db.Exec(`UPDATE users SET password_change_required = ? WHERE username = ?`,
		boolToInt(required), username)
	if err != nil {
		return fmt.Errorf("updating user: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("unknown user %s", username)
	}
	return nil
}

// TouchUserLogin stamps the user's last login time
func (s *Store) TouchUserLogin(username string, at time.Time) error {
	_, err := s.db.Exec(`UPDATE users SET last_login = ? WHERE username = ?`,
		formatTimestamp(at), username)
	if err != nil {
		return fmt.Errorf("updating last login: %w", err)
	}
	return nil
}

// DeleteUser removes an account
func (s *Store) DeleteUser(username string) error {
	res, err := s.db.Exec(`DELETE FROM users WHERE username = ?`, username)
	if err != nil {
		return fmt.Errorf("deleting user: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("unknown user %s", username)
	}
	return nil
}

// CountUsers returns the number of accounts
func (s *Store) CountUsers() (int, error) {
	var n int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM users`).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting users: %w", err)
	}
	return n, nil
}
