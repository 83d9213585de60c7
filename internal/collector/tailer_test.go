package collector

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func writeLogFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func appendLogFile(t *testing.T, path, content string) {
	t.Helper()
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	require.NoError(t, err)
	defer f.Close()
	_, err = f.WriteString(content)
	require.NoError(t, err)
}

func waitForEvent(t *testing.T, events <-chan LogEvent) LogEvent {
	t.Helper()
	select {
	case event := <-events:
		return event
	case <-time.After(3 * time.Second):
		t.Fatal("no event before timeout")
		return LogEvent{}
	}
}

func TestReplayFromTimestampClassifiesEvents(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scum.log")
	writeLogFile(t, path,
		"[2024.03.01-10.00.00:000] '76561198000000001:Alpha(1)' logged in at: X=0 Y=0 Z=0\n"+
			"[2024.03.01-11.30.00:000] '76561198000000002:Beta(2)' logged in at: X=0 Y=0 Z=0\n")

	tailer := NewLogTailer(path)
	_, err := tailer.OpenFile()
	require.NoError(t, err)
	defer tailer.Stop()

	type seen struct {
		steamID string
		replay  bool
	}
	var got []seen
	after := time.Date(2024, 3, 1, 11, 0, 0, 0, time.UTC)
	require.NoError(t, tailer.ReplayFromTimestamp(after, func(event LogEvent, replayMode bool) {
		got = append(got, seen{event.Data.(LoginData).SteamID, replayMode})
	}))

	require.Equal(t, []seen{
		{"76561198000000001", true},
		{"76561198000000002", false},
	}, got)
}

func TestTailerPartialLineAcrossPolls(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scum.log")
	writeLogFile(t, path, "")

	tailer := NewLogTailer(path)
	require.NoError(t, tailer.Start())
	defer tailer.Stop()

	line := "[2024.03.01-10.00.00:000] '76561198012345678:Rick(3)' logged in at: X=0 Y=0 Z=0"
	half := len(line) / 2

	appendLogFile(t, path, line[:half])
	time.Sleep(300 * time.Millisecond) // at least one poll sees the fragment
	appendLogFile(t, path, line[half:]+"\n")

	event := waitForEvent(t, tailer.Events)
	require.Equal(t, EventTypeLogin, event.Type)
	require.Equal(t, "76561198012345678", event.Data.(LoginData).SteamID)
}

func TestReplayLeavesPartialLineForTail(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scum.log")
	line := "[2024.03.01-11.30.00:000] '76561198000000002:Beta(2)' logged in at: X=0 Y=0 Z=0"
	half := len(line) / 2
	writeLogFile(t, path,
		"[2024.03.01-10.00.00:000] '76561198000000001:Alpha(1)' logged in at: X=0 Y=0 Z=0\n"+line[:half])

	tailer := NewLogTailer(path)
	_, err := tailer.OpenFile()
	require.NoError(t, err)
	defer tailer.Stop()

	replayed := 0
	require.NoError(t, tailer.ReplayFromTimestamp(time.Time{}, func(LogEvent, bool) {
		replayed++
	}))
	require.Equal(t, 1, replayed)

	require.NoError(t, tailer.Start())
	appendLogFile(t, path, line[half:]+"\n")

	event := waitForEvent(t, tailer.Events)
	require.Equal(t, "76561198000000002", event.Data.(LoginData).SteamID)
}

func TestTailerRecoversFromTruncation(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scum.log")
	writeLogFile(t, path, "")

	tailer := NewLogTailer(path)
	require.NoError(t, tailer.Start())
	defer tailer.Stop()

	appendLogFile(t, path, "[2024.03.01-10.00.00:000] '76561198000000001:Alpha(1)' logged in at: X=0 Y=0 Z=0\n")
	event := waitForEvent(t, tailer.Events)
	require.Equal(t, EventTypeLogin, event.Type)

	require.NoError(t, os.Truncate(path, 0))
	time.Sleep(300 * time.Millisecond)

	appendLogFile(t, path, "[2024.03.01-10.05.00:000] '76561198000000001:Alpha(1)' logged out at: X=0 Y=0 Z=0\n")
	event = waitForEvent(t, tailer.Events)
	require.Equal(t, EventTypeLogout, event.Type)
}

func TestTailerStopTwice(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scum.log")
	writeLogFile(t, path, "")

	tailer := NewLogTailer(path)
	require.NoError(t, tailer.Start())

	tailer.Stop()
	select {
	case <-tailer.Done():
	default:
		t.Fatal("done not signalled after stop")
	}
	require.NotPanics(t, tailer.Stop)
}

func TestRawTailerPartialLineAcrossPolls(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scum.log")
	writeLogFile(t, path, "boot line\n")

	tailer := NewRawLogTailer(path)
	require.NoError(t, tailer.Start())
	defer tailer.Stop()

	appendLogFile(t, path, "half a ")
	time.Sleep(600 * time.Millisecond) // raw tailer polls every 250ms
	appendLogFile(t, path, "log line\n")

	select {
	case line := <-tailer.Lines:
		require.Equal(t, "half a log line", line)
	case <-time.After(3 * time.Second):
		t.Fatal("no line before timeout")
	}
}
