package collector

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func ts(s string) time.Time {
	t, err := time.Parse("2006.01.02-15.04.05", s)
	if err != nil {
		panic(err)
	}
	return t.UTC()
}

func TestTrackerGameLoginLogout(t *testing.T) {
	tr := NewTracker()

	trans := tr.Apply(LogEvent{
		Timestamp: ts("2024.03.01-18.00.00"),
		Type:      EventTypeLogin,
		Data:      LoginData{SteamID: "76561198012345678", Name: "Rick", CharID: 3, Location: "X=1 Y=2 Z=3"},
	})
	require.Len(t, trans, 1)
	require.Equal(t, TransitionJoin, trans[0].Kind)
	require.Equal(t, "76561198012345678", trans[0].SteamID)
	require.True(t, tr.IsOnline("76561198012345678"))

	trans = tr.Apply(LogEvent{
		Timestamp: ts("2024.03.01-19.30.00"),
		Type:      EventTypeLogout,
		Data:      LogoutData{SteamID: "76561198012345678", Name: "Rick"},
	})
	require.Len(t, trans, 1)
	require.Equal(t, TransitionLeave, trans[0].Kind)
	require.False(t, tr.IsOnline("76561198012345678"))
}

func TestTrackerBattlEyeFlow(t *testing.T) {
	tr := NewTracker()

	// Connect alone opens nothing: no identity yet
	trans := tr.Apply(LogEvent{
		Timestamp: ts("2024.03.01-18.00.00"),
		Type:      EventTypeBEConnect,
		Data:      BEConnectData{Index: 3, Name: "Morty", IPAddress: "10.0.0.5", Port: 2304},
	})
	require.Empty(t, trans)
	require.Empty(t, tr.Online())

	// Steam ID line binds the slot and opens the presence, stamped with
	// the connect time
	trans = tr.Apply(LogEvent{
		Timestamp: ts("2024.03.01-18.00.02"),
		Type:      EventTypeBESteamID,
		Data:      BESteamIDData{Index: 3, Name: "Morty", SteamID: "76561198087654321"},
	})
	require.Len(t, trans, 1)
	require.Equal(t, TransitionJoin, trans[0].Kind)
	require.Equal(t, "76561198087654321", trans[0].SteamID)
	require.Equal(t, "10.0.0.5", trans[0].IPAddress)
	require.Equal(t, ts("2024.03.01-18.00.00"), trans[0].Timestamp)

	trans = tr.Apply(LogEvent{
		Timestamp: ts("2024.03.01-18.45.00"),
		Type:      EventTypeBEDisconnect,
		Data:      BEDisconnectData{Index: 3, Name: "Morty"},
	})
	require.Len(t, trans, 1)
	require.Equal(t, TransitionLeave, trans[0].Kind)
	require.False(t, tr.IsOnline("76561198087654321"))
}

func TestTrackerDuplicateJoinEnriches(t *testing.T) {
	tr := NewTracker()

	tr.Apply(LogEvent{
		Timestamp: ts("2024.03.01-18.00.00"),
		Type:      EventTypeBEConnect,
		Data:      BEConnectData{Index: 1, Name: "Summer", IPAddress: "192.168.1.4", Port: 2304},
	})
	trans := tr.Apply(LogEvent{
		Timestamp: ts("2024.03.01-18.00.01"),
		Type:      EventTypeBESteamID,
		Data:      BESteamIDData{Index: 1, Name: "Summer", SteamID: "76561198011111111"},
	})
	require.Len(t, trans, 1)

	// Game login for the same player must not open a second presence
	trans = tr.Apply(LogEvent{
		Timestamp: ts("2024.03.01-18.00.05"),
		Type:      EventTypeLogin,
		Data:      LoginData{SteamID: "76561198011111111", Name: "SummerChar", CharID: 7, Location: "X=0 Y=0 Z=0"},
	})
	require.Empty(t, trans)
	require.Len(t, tr.Online(), 1)

	// Logout closes it once, carrying the enriched character name
	trans = tr.Apply(LogEvent{
		Timestamp: ts("2024.03.01-20.00.00"),
		Type:      EventTypeLogout,
		Data:      LogoutData{SteamID: "76561198011111111", Name: "SummerChar"},
	})
	require.Len(t, trans, 1)
	require.Equal(t, "SummerChar", trans[0].CharName)

	// Late BE disconnect for the same player is a no-op
	trans = tr.Apply(LogEvent{
		Timestamp: ts("2024.03.01-20.00.02"),
		Type:      EventTypeBEDisconnect,
		Data:      BEDisconnectData{Index: 1, Name: "Summer"},
	})
	require.Empty(t, trans)
}

func TestTrackerSteamIDWithoutConnect(t *testing.T) {
	tr := NewTracker()

	// Tailer attached mid-connection: only the steam-id line was seen
	trans := tr.Apply(LogEvent{
		Timestamp: ts("2024.03.01-18.00.00"),
		Type:      EventTypeBESteamID,
		Data:      BESteamIDData{Index: 9, Name: "Beth", SteamID: "76561198022222222"},
	})
	require.Len(t, trans, 1)
	require.Equal(t, TransitionJoin, trans[0].Kind)
}

func TestTrackerShutdownClosesAll(t *testing.T) {
	tr := NewTracker()

	for _, id := range []string{"76561198000000001", "76561198000000002"} {
		tr.Apply(LogEvent{
			Timestamp: ts("2024.03.01-18.00.00"),
			Type:      EventTypeLogin,
			Data:      LoginData{SteamID: id, Name: "p", CharID: 1},
		})
	}
	require.Len(t, tr.Online(), 2)

	trans := tr.Apply(LogEvent{
		Timestamp: ts("2024.03.01-22.00.00"),
		Type:      EventTypeServerShutdown,
		Data:      nil,
	})
	require.Len(t, trans, 2)
	for _, tn := range trans {
		require.Equal(t, TransitionLeave, tn.Kind)
	}
	require.Empty(t, tr.Online())
}

func TestTrackerStartupClosesStale(t *testing.T) {
	tr := NewTracker()

	tr.Apply(LogEvent{
		Timestamp: ts("2024.03.01-18.00.00"),
		Type:      EventTypeLogin,
		Data:      LoginData{SteamID: "76561198000000003", Name: "p", CharID: 1},
	})

	// A startup line with players still marked online means the previous
	// shutdown was never logged (crash)
	trans := tr.Apply(LogEvent{
		Timestamp: ts("2024.03.01-23.00.00"),
		Type:      EventTypeServerStartup,
		Data:      ServerStartupData{Version: "0.9.601.93000"},
	})
	require.Len(t, trans, 1)
	require.Equal(t, TransitionLeave, trans[0].Kind)
	require.Empty(t, tr.Online())
}

func TestTrackerLogoutWithoutLogin(t *testing.T) {
	tr := NewTracker()

	trans := tr.Apply(LogEvent{
		Timestamp: ts("2024.03.01-18.00.00"),
		Type:      EventTypeLogout,
		Data:      LogoutData{SteamID: "76561198099999999", Name: "ghost"},
	})
	require.Empty(t, trans)
}
