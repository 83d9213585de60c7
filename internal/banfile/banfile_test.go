package banfile

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadMissingFile(t *testing.T) {
	list, err := Load(filepath.Join(t.TempDir(), "BannedUsers.ini"), SectionBanned)
	require.NoError(t, err)
	require.Empty(t, list.Entries)
	require.Equal(t, SectionBanned, list.Section)
}

func TestLoadAndSaveRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "BannedUsers.ini")

	content := `[BannedUsers]
SteamID="76561198012345678";Reason="cheating";Timestamp="2024-03-01T20:00:00Z"
SteamID="76561198087654321";Reason=""
# kept by hand, do not remove
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	list, err := Load(path, SectionBanned)
	require.NoError(t, err)
	require.Len(t, list.Entries, 2)
	require.Equal(t, "76561198012345678", list.Entries[0].SteamID)
	require.Equal(t, "cheating", list.Entries[0].Reason)
	require.Equal(t, time.Date(2024, 3, 1, 20, 0, 0, 0, time.UTC), list.Entries[0].Timestamp)
	require.True(t, list.Entries[1].Timestamp.IsZero())

	require.NoError(t, Save(path, list))

	reloaded, err := Load(path, SectionBanned)
	require.NoError(t, err)
	require.Equal(t, list.Entries, reloaded.Entries)

	// The stray comment survived the rewrite
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(data), "# kept by hand, do not remove")
	require.Contains(t, string(data), "[BannedUsers]")
}

func TestAddReplacesExisting(t *testing.T) {
	list := &List{Section: SectionBanned}
	at := time.Date(2024, 3, 1, 20, 0, 0, 0, time.UTC)

	list.Add(Entry{SteamID: "76561198012345678", Reason: "first", Timestamp: at})
	list.Add(Entry{SteamID: "76561198012345678", Reason: "second", Timestamp: at.Add(time.Hour)})

	require.Len(t, list.Entries, 1)
	require.Equal(t, "second", list.Entries[0].Reason)
}

func TestRemove(t *testing.T) {
	list := &List{Section: SectionAdmins}
	list.Add(Entry{SteamID: "76561198012345678"})

	require.True(t, list.Contains("76561198012345678"))
	require.True(t, list.Remove("76561198012345678"))
	require.False(t, list.Remove("76561198012345678"))
	require.Empty(t, list.Entries)
}

func TestSettingsPreservesComments(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "ServerSettings.ini")

	content := `# server identity
scum.ServerName=My Server
scum.MaxPlayers=64

scum.ServerPassword=
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	s, err := LoadSettings(path)
	require.NoError(t, err)

	name, ok := s.Get("scum.ServerName")
	require.True(t, ok)
	require.Equal(t, "My Server", name)

	_, ok = s.Get("scum.Missing")
	require.False(t, ok)

	s.Set("scum.MaxPlayers", "96")
	s.Set("scum.NewKey", "1")
	require.NoError(t, SaveSettings(path, s))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	text := string(data)
	require.Contains(t, text, "# server identity")
	require.Contains(t, text, "scum.MaxPlayers=96")
	require.Contains(t, text, "scum.NewKey=1")

	all := s.All()
	require.Equal(t, "96", all["scum.MaxPlayers"])
	require.NotContains(t, all, "# server identity")
}
