package collector

import (
	"time"
)

// TransitionKind identifies what a log event did to player presence
type TransitionKind int

const (
	// TransitionNone means the event changed internal state only
	TransitionNone TransitionKind = iota
	// TransitionJoin means a player came online
	TransitionJoin
	// TransitionLeave means a player went offline
	TransitionLeave
)

// Transition is the presence change produced by applying a log event.
// A single event can close every open presence (server shutdown), so
// Apply returns a slice.
type Transition struct {
	Kind      TransitionKind
	SteamID   string
	Name      string
	CharName  string
	IPAddress string
	Timestamp time.Time
}

// beSlot holds a BattlEye connection that has not yet reported a Steam ID.
// BattlEye logs connect/steam-id/disconnect keyed by a small session index,
// while the game log keys purely by Steam ID, so we bridge the two here.
type beSlot struct {
	name      string
	ipAddress string
	steamID   string
	connected time.Time
}

// presence is a player currently considered online
type presence struct {
	name      string
	charName  string
	ipAddress string
	joined    time.Time
}

// Tracker derives player presence from the interleaved game and BattlEye
// log lines. It recognizes both the game's own login/logout lines and the
// BattlEye connect/disconnect lines, whichever arrives first, and keeps a
// single open presence per Steam ID.
type Tracker struct {
	slots  map[int]*beSlot     // BattlEye index -> pending connection
	online map[string]*presence // steam id -> open presence
}

// NewTracker creates an empty presence tracker
func NewTracker() *Tracker {
	return &Tracker{
		slots:  make(map[int]*beSlot),
		online: make(map[string]*presence),
	}
}

// Apply feeds one parsed log event through the state machine and returns
// the presence transitions it caused, in order.
func (t *Tracker) Apply(event LogEvent) []Transition {
	switch event.Type {
	case EventTypeLogin:
		data := event.Data.(LoginData)
		return t.applyJoin(data.SteamID, data.Name, data.Name, "", event.Timestamp)

	case EventTypeLogout:
		data := event.Data.(LogoutData)
		return t.applyLeave(data.SteamID, event.Timestamp)

	case EventTypeBEConnect:
		data := event.Data.(BEConnectData)
		t.slots[data.Index] = &beSlot{
			name:      data.Name,
			ipAddress: data.IPAddress,
			connected: event.Timestamp,
		}
		return nil

	case EventTypeBESteamID:
		data := event.Data.(BESteamIDData)
		slot, ok := t.slots[data.Index]
		if !ok {
			// Steam ID line without a preceding connect line, seen when
			// tailing starts mid-connection. Treat it as a bare join.
			return t.applyJoin(data.SteamID, data.Name, "", "", event.Timestamp)
		}
		slot.steamID = data.SteamID
		return t.applyJoin(data.SteamID, slot.name, "", slot.ipAddress, slot.connected)

	case EventTypeBEDisconnect:
		data := event.Data.(BEDisconnectData)
		slot, ok := t.slots[data.Index]
		if !ok {
			return nil
		}
		delete(t.slots, data.Index)
		if slot.steamID == "" {
			// Never identified, nothing was opened
			return nil
		}
		return t.applyLeave(slot.steamID, event.Timestamp)

	case EventTypeServerStartup, EventTypeServerShutdown:
		// Either way, nobody from before this line is still connected
		return t.closeAll(event.Timestamp)
	}

	return nil
}

func (t *Tracker) applyJoin(steamID, name, charName, ipAddress string, at time.Time) []Transition {
	if p, ok := t.online[steamID]; ok {
		// Already online: enrich the open presence instead of opening a
		// second one. The game login line carries the character name the
		// BattlEye lines lack, and vice versa for the IP.
		if name != "" {
			p.name = name
		}
		if charName != "" {
			p.charName = charName
		}
		if ipAddress != "" {
			p.ipAddress = ipAddress
		}
		return nil
	}

	t.online[steamID] = &presence{
		name:      name,
		charName:  charName,
		ipAddress: ipAddress,
		joined:    at,
	}
	return []Transition{{
		Kind:      TransitionJoin,
		SteamID:   steamID,
		Name:      name,
		CharName:  charName,
		IPAddress: ipAddress,
		Timestamp: at,
	}}
}

func (t *Tracker) applyLeave(steamID string, at time.Time) []Transition {
	p, ok := t.online[steamID]
	if !ok {
		return nil
	}
	delete(t.online, steamID)

	// Drop any BE slot still bound to this player so a late disconnect
	// line does not produce a second leave
	for idx, slot := range t.slots {
		if slot.steamID == steamID {
			delete(t.slots, idx)
		}
	}

	return []Transition{{
		Kind:      TransitionLeave,
		SteamID:   steamID,
		Name:      p.name,
		CharName:  p.charName,
		IPAddress: p.ipAddress,
		Timestamp: at,
	}}
}

func (t *Tracker) closeAll(at time.Time) []Transition {
	var transitions []Transition
	for steamID, p := range t.online {
		transitions = append(transitions, Transition{
			Kind:      TransitionLeave,
			SteamID:   steamID,
			Name:      p.name,
			CharName:  p.charName,
			IPAddress: p.ipAddress,
			Timestamp: at,
		})
	}
	t.online = make(map[string]*presence)
	t.slots = make(map[int]*beSlot)
	return transitions
}

// Online returns the Steam IDs currently considered online
func (t *Tracker) Online() []string {
	ids := make([]string, 0, len(t.online))
	for id := range t.online {
		ids = append(ids, id)
	}
	return ids
}

// IsOnline reports whether the given Steam ID has an open presence
func (t *Tracker) IsOnline(steamID string) bool {
	_, ok := t.online[steamID]
	return ok
}
