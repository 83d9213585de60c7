// Package banfile reads and writes the game server's BannedUsers.ini and
// AdminUsers.ini files. The format is a section header followed by one line
// per player:
//
//	[BannedUsers]
//	SteamID="76561198012345678";Reason="cheating";Timestamp="2024-03-01T20:00:00Z"
//
// The game only cares about the Steam ID; reason and timestamp are carried
// for operators reading the file by hand.
package banfile

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"
)

// Section headers used by the game
const (
	SectionBanned = "BannedUsers"
	SectionAdmins = "AdminUsers"
)

const timeLayout = "2006-01-02T15:04:05Z"

// Entry is one player line in a list file
type Entry struct {
	SteamID   string
	Reason    string
	Timestamp time.Time
}

// List is the parsed content of one list file. Lines that are not entries
// (comments, blanks, unknown keys) are preserved verbatim on save.
type List struct {
	Section string
	Entries []Entry
	extra   []string
}

var entryRegex = regexp.MustCompile(`^SteamID="(\d{17})"(?:;Reason="([^"]*)")?(?:;Timestamp="([^"]*)")?`)

// Load parses a list file. A missing file yields an empty list with the
// given section, so first use does not require the file to exist.
func Load(path, section string) (*List, error) {
	list := &List{Section: section}

	file, err := os.Open(path)
	if os.IsNotExist(err) {
		return list, nil
	}
	if err != nil {
		return nil, fmt.Errorf("opening list file: %w", err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")
		trimmed := strings.TrimSpace(line)

		if trimmed == "["+section+"]" {
			continue
		}

		if match := entryRegex.FindStringSubmatch(trimmed); match != nil {
			entry := Entry{SteamID: match[1], Reason: match[2]}
			if match[3] != "" {
				if ts, err := time.Parse(timeLayout, match[3]); err == nil {
					entry.Timestamp = ts
				}
			}
			list.Entries = append(list.Entries, entry)
			continue
		}

		if trimmed != "" {
			list.extra = append(list.extra, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading list file: %w", err)
	}

	return list, nil
}

// Contains reports whether the list has an entry for the Steam ID
func (l *List) Contains(steamID string) bool {
	for _, e := range l.Entries {
		if e.SteamID == steamID {
			return true
		}
	}
	return false
}

// Add appends an entry, replacing any existing one for the same Steam ID.
func (l *List) Add(entry Entry) {
	for i, e := range l.Entries {
		if e.SteamID == entry.SteamID {
			l.Entries[i] = entry
			return
		}
	}
	l.Entries = append(l.Entries, entry)
}

// Remove deletes the entry for the Steam ID. Returns false if absent.
func (l *List) Remove(steamID string) bool {
	for i, e := range l.Entries {
		if e.SteamID == steamID {
			l.Entries = append(l.Entries[:i], l.Entries[i+1:]...)
			return true
		}
	}
	return false
}

// Save writes the list back to path atomically (temp file + rename) so the
// game never reads a half-written file.
func Save(path string, list *List) error {
	var b strings.Builder
	b.WriteString("[" + list.Section + "]\n")
	for _, e := range list.Entries {
		b.WriteString(fmt.Sprintf("SteamID=%q;Reason=%q", e.SteamID, e.Reason))
		if !e.Timestamp.IsZero() {
			b.WriteString(fmt.Sprintf(";Timestamp=%q", e.Timestamp.UTC().Format(timeLayout)))
		}
		b.WriteString("\n")
	}
	for _, line := range list.extra {
		b.WriteString(line + "\n")
	}

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.WriteString(b.String()); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("writing temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("replacing list file: %w", err)
	}
	return nil
}
