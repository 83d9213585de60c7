package storage

import (
	"database/sql"
	"time"

	"github.com/molt/scummgr/internal/domain"
)

// rowScanner covers both *sql.Row and *sql.Rows
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func parseTime(s string) time.Time {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func parseNullTime(ns sql.NullString) *time.Time {
	if !ns.Valid || ns.String == "" {
		return nil
	}
	t := parseTime(ns.String)
	if t.IsZero() {
		return nil
	}
	return &t
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func scanPlayer(row rowScanner) (*domain.Player, error) {
	var (
		p         domain.Player
		firstSeen sql.NullString
		lastSeen  sql.NullString
		isAdmin   int
		isBanned  int
		banTS     sql.NullString
		adminTS   sql.NullString
	)
	err := row.Scan(&p.SteamID, &p.DisplayName, &p.CharName, &p.IPAddress,
		&firstSeen, &lastSeen, &p.TotalPlaytime, &p.Status,
		&isAdmin, &isBanned, &p.BanReason, &banTS, &adminTS, &p.Notes)
	if err != nil {
		return nil, err
	}
	if firstSeen.Valid {
		p.FirstSeen = parseTime(firstSeen.String)
	}
	if lastSeen.Valid {
		p.LastSeen = parseTime(lastSeen.String)
	}
	p.IsAdmin = isAdmin != 0
	p.IsBanned = isBanned != 0
	p.BanTimestamp = parseNullTime(banTS)
	p.AdminAddedTimestamp = parseNullTime(adminTS)
	return &p, nil
}

func scanPlayers(rows *sql.Rows) ([]domain.Player, error) {
	var players []domain.Player
	for rows.Next() {
		p, err := scanPlayer(rows)
		if err != nil {
			return nil, err
		}
		players = append(players, *p)
	}
	return players, rows.Err()
}

func scanUser(row rowScanner) (*domain.User, error) {
	var (
		u         domain.User
		isAdmin   int
		createdAt string
		lastLogin sql.NullString
		pwChange  int
	)
	err := row.Scan(&u.ID, &u.Username, &u.PasswordHash, &isAdmin, &createdAt, &lastLogin, &pwChange)
	if err != nil {
		return nil, err
	}
	u.IsAdmin = isAdmin != 0
	u.CreatedAt = parseTime(createdAt)
	u.LastLogin = parseNullTime(lastLogin)
	u.PasswordChangeRequired = pwChange != 0
	return &u, nil
}
