package collector

import (
	"fmt"
	"regexp"
	"strconv"
	"time"
)

// LogEvent represents a parsed event from the game log
type LogEvent struct {
	Timestamp time.Time
	Type      string
	Data      interface{}
}

// Event types
const (
	EventTypeLogin          = "login"
	EventTypeLogout         = "logout"
	EventTypeBEConnect      = "be_connect"
	EventTypeBESteamID      = "be_steamid"
	EventTypeBEDisconnect   = "be_disconnect"
	EventTypeServerStartup  = "server_startup"
	EventTypeServerShutdown = "server_shutdown"
)

// Event data structures

type LoginData struct {
	SteamID  string
	Name     string
	CharID   int
	Location string
}

type LogoutData struct {
	SteamID  string
	Name     string
	CharID   int
	Location string
}

type BEConnectData struct {
	Index     int
	Name      string
	IPAddress string
	Port      int
}

type BESteamIDData struct {
	Index   int
	Name    string
	SteamID string
}

type BEDisconnectData struct {
	Index int
	Name  string
}

type ServerStartupData struct {
	Version string
}

// Regular expressions for parsing log lines
var (
	// Matches bracket timestamp at start of line: [2024.01.15-20.33.10:123]
	timestampRegex = regexp.MustCompile(`^\[(\d{4})\.(\d{2})\.(\d{2})-(\d{2})\.(\d{2})\.(\d{2}):(\d{3})\]\s*`)

	// Event patterns (after timestamp is stripped)
	loginRegex        = regexp.MustCompile(`^'(\d{17}):(.+)\((\d+)\)' logged in at: (.*)$`)
	logoutRegex       = regexp.MustCompile(`^'(\d{17}):(.+)\((\d+)\)' logged out at: (.*)$`)
	beConnectRegex    = regexp.MustCompile(`^BattlEye: Player #(\d+) (.+?) \((\d+\.\d+\.\d+\.\d+):(\d+)\) connected$`)
	beSteamIDRegex    = regexp.MustCompile(`^BattlEye: Player #(\d+) (.+?) - Steam ID (\d{17})$`)
	beDisconnectRegex = regexp.MustCompile(`^BattlEye: Player #(\d+) (.+?) disconnected$`)
	startupRegex      = regexp.MustCompile(`^Game version: (.+)$`)
	shutdownRegex     = regexp.MustCompile(`^Log file closed\.?$`)
)

// parseTimestamp converts the bracket timestamp captures to a UTC time.
func parseTimestamp(match []string) time.Time {
	year, _ := strconv.Atoi(match[1])
	month, _ := strconv.Atoi(match[2])
	day, _ := strconv.Atoi(match[3])
	hour, _ := strconv.Atoi(match[4])
	minute, _ := strconv.Atoi(match[5])
	sec, _ := strconv.Atoi(match[6])
	ms, _ := strconv.Atoi(match[7])
	return time.Date(year, time.Month(month), day, hour, minute, sec, ms*int(time.Millisecond), time.UTC)
}

// ParseLine parses a single log line into an event
func ParseLine(line string) (*LogEvent, error) {
	var timestamp time.Time
	content := line

	if match := timestampRegex.FindStringSubmatch(line); match != nil {
		timestamp = parseTimestamp(match)
		content = line[len(match[0]):]
	}

	// If no timestamp, use current time
	if timestamp.IsZero() {
		timestamp = time.Now().UTC()
	}

	event := &LogEvent{Timestamp: timestamp}

	if match := loginRegex.FindStringSubmatch(content); match != nil {
		charID, _ := strconv.Atoi(match[3])
		event.Type = EventTypeLogin
		event.Data = LoginData{
			SteamID:  match[1],
			Name:     match[2],
			CharID:   charID,
			Location: match[4],
		}
		return event, nil
	}

	if match := logoutRegex.FindStringSubmatch(content); match != nil {
		charID, _ := strconv.Atoi(match[3])
		event.Type = EventTypeLogout
		event.Data = LogoutData{
			SteamID:  match[1],
			Name:     match[2],
			CharID:   charID,
			Location: match[4],
		}
		return event, nil
	}

	if match := beConnectRegex.FindStringSubmatch(content); match != nil {
		index, _ := strconv.Atoi(match[1])
		port, _ := strconv.Atoi(match[4])
		event.Type = EventTypeBEConnect
		event.Data = BEConnectData{
			Index:     index,
			Name:      match[2],
			IPAddress: match[3],
			Port:      port,
		}
		return event, nil
	}

	if match := beSteamIDRegex.FindStringSubmatch(content); match != nil {
		index, _ := strconv.Atoi(match[1])
		event.Type = EventTypeBESteamID
		event.Data = BESteamIDData{
			Index:   index,
			Name:    match[2],
			SteamID: match[3],
		}
		return event, nil
	}

	if match := beDisconnectRegex.FindStringSubmatch(content); match != nil {
		index, _ := strconv.Atoi(match[1])
		event.Type = EventTypeBEDisconnect
		event.Data = BEDisconnectData{
			Index: index,
			Name:  match[2],
		}
		return event, nil
	}

	if match := startupRegex.FindStringSubmatch(content); match != nil {
		event.Type = EventTypeServerStartup
		event.Data = ServerStartupData{Version: match[1]}
		return event, nil
	}

	if shutdownRegex.MatchString(content) {
		event.Type = EventTypeServerShutdown
		return event, nil
	}

	// Unknown event type
	return nil, fmt.Errorf("unknown event: %s", content)
}
