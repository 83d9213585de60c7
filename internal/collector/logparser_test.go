package collector

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

const sampleLog = `[2024.03.01-17.59.58:001] Game version: 0.9.601.93000
[2024.03.01-18.00.00:123] BattlEye: Player #0 Rick (203.0.113.7:2304) connected
[2024.03.01-18.00.02:456] BattlEye: Player #0 Rick - Steam ID 76561198012345678
[2024.03.01-18.00.05:789] '76561198012345678:RickChar(3)' logged in at: X=-311772.906 Y=5480.292 Z=36099.227
[2024.03.01-18.04.11:200] some unrelated engine chatter
[2024.03.01-19.30.00:000] '76561198012345678:RickChar(3)' logged out at: X=-311772.906 Y=5480.292 Z=36099.227
[2024.03.01-19.30.01:500] BattlEye: Player #0 Rick disconnected
[2024.03.01-22.00.00:000] Log file closed.`

func TestParseLineTimestamp(t *testing.T) {
	event, err := ParseLine(`[2024.03.01-18.00.05:789] '76561198012345678:RickChar(3)' logged in at: X=1 Y=2 Z=3`)
	require.NoError(t, err)
	require.Equal(t, time.Date(2024, 3, 1, 18, 0, 5, 789*int(time.Millisecond), time.UTC), event.Timestamp)
}

func TestParseLineEvents(t *testing.T) {
	tests := []struct {
		name     string
		line     string
		wantType string
		wantData interface{}
	}{
		{
			name:     "login",
			line:     `[2024.03.01-18.00.05:789] '76561198012345678:RickChar(3)' logged in at: X=-311772.906 Y=5480.292 Z=36099.227`,
			wantType: EventTypeLogin,
			wantData: LoginData{
				SteamID:  "76561198012345678",
				Name:     "RickChar",
				CharID:   3,
				Location: "X=-311772.906 Y=5480.292 Z=36099.227",
			},
		},
		{
			name:     "logout",
			line:     `[2024.03.01-19.30.00:000] '76561198012345678:RickChar(3)' logged out at: X=1 Y=2 Z=3`,
			wantType: EventTypeLogout,
			wantData: LogoutData{
				SteamID:  "76561198012345678",
				Name:     "RickChar",
				CharID:   3,
				Location: "X=1 Y=2 Z=3",
			},
		},
		{
			name:     "login name with parens",
			line:     `[2024.03.01-18.00.05:789] '76561198012345678:Some (Guy)(12)' logged in at: X=1 Y=2 Z=3`,
			wantType: EventTypeLogin,
			wantData: LoginData{
				SteamID:  "76561198012345678",
				Name:     "Some (Guy)",
				CharID:   12,
				Location: "X=1 Y=2 Z=3",
			},
		},
		{
			name:     "battleye connect",
			line:     `[2024.03.01-18.00.00:123] BattlEye: Player #0 Rick (203.0.113.7:2304) connected`,
			wantType: EventTypeBEConnect,
			wantData: BEConnectData{Index: 0, Name: "Rick", IPAddress: "203.0.113.7", Port: 2304},
		},
		{
			name:     "battleye steam id",
			line:     `[2024.03.01-18.00.02:456] BattlEye: Player #0 Rick - Steam ID 76561198012345678`,
			wantType: EventTypeBESteamID,
			wantData: BESteamIDData{Index: 0, Name: "Rick", SteamID: "76561198012345678"},
		},
		{
			name:     "battleye disconnect",
			line:     `[2024.03.01-19.30.01:500] BattlEye: Player #0 Rick disconnected`,
			wantType: EventTypeBEDisconnect,
			wantData: BEDisconnectData{Index: 0, Name: "Rick"},
		},
		{
			name:     "startup",
			line:     `[2024.03.01-17.59.58:001] Game version: 0.9.601.93000`,
			wantType: EventTypeServerStartup,
			wantData: ServerStartupData{Version: "0.9.601.93000"},
		},
		{
			name:     "shutdown",
			line:     `[2024.03.01-22.00.00:000] Log file closed.`,
			wantType: EventTypeServerShutdown,
			wantData: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			event, err := ParseLine(tt.line)
			require.NoError(t, err)
			require.Equal(t, tt.wantType, event.Type)
			require.Equal(t, tt.wantData, event.Data)
		})
	}
}

func TestParseLineUnknown(t *testing.T) {
	_, err := ParseLine(`[2024.03.01-18.04.11:200] some unrelated engine chatter`)
	require.Error(t, err)
}

func TestParseSampleLogPresence(t *testing.T) {
	tr := NewTracker()
	var joins, leaves int

	for _, line := range strings.Split(sampleLog, "\n") {
		event, err := ParseLine(line)
		if err != nil {
			continue
		}
		for _, trans := range tr.Apply(*event) {
			switch trans.Kind {
			case TransitionJoin:
				joins++
			case TransitionLeave:
				leaves++
			}
		}
	}

	require.Equal(t, 1, joins)
	require.Equal(t, 1, leaves)
	require.Empty(t, tr.Online())
}
