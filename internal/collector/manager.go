package collector

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/molt/scummgr/internal/banfile"
	"github.com/molt/scummgr/internal/config"
	"github.com/molt/scummgr/internal/domain"
	"github.com/molt/scummgr/internal/process"
	"github.com/molt/scummgr/internal/rcon"
	"github.com/molt/scummgr/internal/storage"
)

const rconTimeout = 5 * time.Second

// managedServer is the runtime state for one configured game server
type managedServer struct {
	cfg        config.GameServer
	id         int64
	tracker    *Tracker
	tailer     *LogTailer
	supervisor *process.Supervisor

	players     map[string]domain.OnlinePlayer
	stats       *domain.ProcessStats
	lastUpdated time.Time
}

// ServerManager ties the log tailers, presence trackers, process
// supervisors and the database together for all configured servers.
type ServerManager struct {
	mu         sync.Mutex
	cfg        *config.Config
	store      *storage.Store
	servers    map[int64]*managedServer
	downloader *process.Downloader
	events     chan domain.Event
	done       chan struct{}
	wg         sync.WaitGroup
}

// NewServerManager creates a manager for the configured game servers
func NewServerManager(cfg *config.Config, store *storage.Store) *ServerManager {
	m := &ServerManager{
		cfg:     cfg,
		store:   store,
		servers: make(map[int64]*managedServer),
		events:  make(chan domain.Event, 256),
		done:    make(chan struct{}),
	}
	m.downloader = process.NewDownloader(m.onDownloadProgress)
	return m
}

// Events returns the channel of real-time events for broadcast
func (m *ServerManager) Events() <-chan domain.Event {
	return m.events
}

// Downloader exposes the update task registry
func (m *ServerManager) Downloader() *process.Downloader {
	return m.downloader
}

// Start registers the configured servers, replays their logs to rebuild
// presence, and begins live tailing and polling.
func (m *ServerManager) Start() error {
	if err := m.store.SetAllPlayersOffline(); err != nil {
		return fmt.Errorf("resetting player statuses: %w", err)
	}

	for _, gs := range m.cfg.GameServers {
		id, err := m.store.UpsertServer(gs.Name, gs.RconAddress, gs.LogDir)
		if err != nil {
			return fmt.Errorf("registering server %s: %w", gs.Name, err)
		}

		ms := &managedServer{
			cfg:     gs,
			id:      id,
			tracker: NewTracker(),
			players: make(map[string]domain.OnlinePlayer),
			stats:   &domain.ProcessStats{},
		}
		if gs.InstallDir != "" && gs.Executable != "" {
			ms.supervisor = process.NewSupervisor(gs.InstallDir, gs.Executable, gs.StartArgs)
			if _, err := ms.supervisor.Attach(); err != nil {
				log.Printf("server %s: attach failed: %v", gs.Name, err)
			}
		}

		m.mu.Lock()
		m.servers[id] = ms
		m.mu.Unlock()

		if err := m.startTailing(ms); err != nil {
			log.Printf("server %s: %v (will retry on poll)", gs.Name, err)
		}
	}

	m.wg.Add(1)
	go m.pollLoop()
	return nil
}

// Stop shuts down tailers and the poll loop
func (m *ServerManager) Stop() {
	close(m.done)
	m.wg.Wait()

	m.mu.Lock()
	defer m.mu.Unlock()
	for _, ms := range m.servers {
		if ms.tailer != nil {
			ms.tailer.Stop()
			ms.tailer = nil
		}
	}
}

// startTailing finds the newest log file, replays it to rebuild presence,
// reconciles the database, then begins live tailing. Caller must not hold
// the manager lock.
func (m *ServerManager) startTailing(ms *managedServer) error {
	if ms.cfg.LogDir == "" {
		return fmt.Errorf("no log dir configured")
	}

	path, err := LatestLogPath(ms.cfg.LogDir)
	if err != nil {
		return err
	}

	lastEnd, err := m.store.GetLastSessionEnd(ms.id)
	if err != nil {
		return err
	}

	tailer := NewLogTailer(path)
	if _, err := tailer.OpenFile(); err != nil {
		return err
	}

	err = tailer.ReplayFromTimestamp(lastEnd, func(event LogEvent, replayMode bool) {
		if replayMode {
			// State rebuild only
			m.mu.Lock()
			m.applyTransitionsLocked(ms, ms.tracker.Apply(event))
			m.mu.Unlock()
			return
		}
		m.handleEvent(ms, event)
	})
	if err != nil {
		tailer.Stop()
		return fmt.Errorf("replaying %s: %w", path, err)
	}

	m.mu.Lock()
	stillOnline := make([]domain.OnlinePlayer, 0, len(ms.players))
	for _, op := range ms.players {
		stillOnline = append(stillOnline, op)
	}
	m.mu.Unlock()

	// Sessions left open by an unclean shutdown end at the replay boundary.
	// Players the replay shows still online are skipped: persistJoin adopts
	// their open session, keeping the original start without crediting the
	// replayed span a second time.
	keep := make([]string, 0, len(stillOnline))
	for _, op := range stillOnline {
		keep = append(keep, op.SteamID)
	}
	if n, err := m.store.CloseOpenSessions(ms.id, boundaryOrNow(lastEnd), keep...); err != nil {
		tailer.Stop()
		return err
	} else if n > 0 {
		log.Printf("server %s: closed %d orphaned sessions", ms.cfg.Name, n)
	}

	for _, op := range stillOnline {
		m.persistJoin(ms, op)
	}
	count := len(stillOnline)

	if err := tailer.Start(); err != nil {
		return err
	}

	m.mu.Lock()
	ms.tailer = tailer
	m.mu.Unlock()

	log.Printf("server %s: tailing %s, %d players online after replay", ms.cfg.Name, path, count)

	m.wg.Add(1)
	go m.consumeTailer(ms, tailer)
	return nil
}

func boundaryOrNow(t time.Time) time.Time {
	if t.IsZero() {
		return time.Now()
	}
	return t
}

func (m *ServerManager) consumeTailer(ms *managedServer, tailer *LogTailer) {
	defer m.wg.Done()
	for {
		select {
		case <-m.done:
			return
		case <-tailer.Done():
			return
		case event := <-tailer.Events:
			m.handleEvent(ms, event)
		case err := <-tailer.Errors:
			log.Printf("server %s: tail error: %v", ms.cfg.Name, err)
		}
	}
}

// handleEvent runs one live log event through the presence tracker and
// persists whatever changed.
func (m *ServerManager) handleEvent(ms *managedServer, event LogEvent) {
	m.mu.Lock()
	transitions := ms.tracker.Apply(event)
	m.applyTransitionsLocked(ms, transitions)
	joined, left := splitTransitions(transitions)
	m.mu.Unlock()

	for _, op := range joined {
		m.persistJoin(ms, op)
		m.emitEvent(domain.Event{
			Type:      domain.EventPlayerJoin,
			ServerID:  ms.id,
			Timestamp: op.ConnectedAt,
			Data: domain.PlayerJoinEvent{
				SteamID:     op.SteamID,
				DisplayName: op.DisplayName,
				CharName:    op.CharName,
				IPAddress:   op.IPAddress,
			},
		})
	}
	for _, lv := range left {
		m.persistLeave(ms, lv)
		m.emitEvent(domain.Event{
			Type:      domain.EventPlayerLeave,
			ServerID:  ms.id,
			Timestamp: lv.at,
			Data: domain.PlayerLeaveEvent{
				SteamID:         lv.player.SteamID,
				DisplayName:     lv.player.DisplayName,
				DurationSeconds: int64(lv.at.Sub(lv.player.ConnectedAt).Seconds()),
			},
		})
	}

	if event.Type == EventTypeServerStartup {
		if data, ok := event.Data.(ServerStartupData); ok {
			log.Printf("server %s: started, game version %s", ms.cfg.Name, data.Version)
		}
	}
}

type leaveRecord struct {
	player domain.OnlinePlayer
	at     time.Time
}

// applyTransitionsLocked updates the in-memory player set. Must hold the
// manager lock.
func (m *ServerManager) applyTransitionsLocked(ms *managedServer, transitions []Transition) {
	for _, tr := range transitions {
		switch tr.Kind {
		case TransitionJoin:
			ms.players[tr.SteamID] = domain.OnlinePlayer{
				SteamID:     tr.SteamID,
				DisplayName: tr.Name,
				CharName:    tr.CharName,
				IPAddress:   tr.IPAddress,
				ConnectedAt: tr.Timestamp,
			}
		case TransitionLeave:
			delete(ms.players, tr.SteamID)
		}
	}
	ms.lastUpdated = time.Now()
}

// splitTransitions pairs leave transitions with the player records captured
// at join time so durations and names survive the delete.
func splitTransitions(transitions []Transition) ([]domain.OnlinePlayer, []leaveRecord) {
	var joined []domain.OnlinePlayer
	var left []leaveRecord
	for _, tr := range transitions {
		switch tr.Kind {
		case TransitionJoin:
			joined = append(joined, domain.OnlinePlayer{
				SteamID:     tr.SteamID,
				DisplayName: tr.Name,
				CharName:    tr.CharName,
				IPAddress:   tr.IPAddress,
				ConnectedAt: tr.Timestamp,
			})
		case TransitionLeave:
			left = append(left, leaveRecord{
				player: domain.OnlinePlayer{
					SteamID:     tr.SteamID,
					DisplayName: tr.Name,
					CharName:    tr.CharName,
					IPAddress:   tr.IPAddress,
					ConnectedAt: tr.Timestamp,
				},
				at: tr.Timestamp,
			})
		}
	}
	return joined, left
}

func (m *ServerManager) persistJoin(ms *managedServer, op domain.OnlinePlayer) {
	if err := m.store.UpsertPlayerSeen(op.SteamID, op.DisplayName, op.CharName, op.IPAddress, op.ConnectedAt); err != nil {
		log.Printf("server %s: upserting %s: %v", ms.cfg.Name, op.SteamID, err)
		return
	}
	if _, err := m.store.OpenSession(op.SteamID, ms.id, op.ConnectedAt, op.IPAddress); err != nil {
		log.Printf("server %s: opening session for %s: %v", ms.cfg.Name, op.SteamID, err)
	}
	if err := m.store.SetPlayerStatus(op.SteamID, domain.StatusOnline); err != nil {
		log.Printf("server %s: marking %s online: %v", ms.cfg.Name, op.SteamID, err)
	}
}

func (m *ServerManager) persistLeave(ms *managedServer, lv leaveRecord) {
	if err := m.store.UpsertPlayerSeen(lv.player.SteamID, lv.player.DisplayName, lv.player.CharName, "", lv.at); err != nil {
		log.Printf("server %s: upserting %s: %v", ms.cfg.Name, lv.player.SteamID, err)
	}
	if err := m.store.CloseSession(lv.player.SteamID, ms.id, lv.at); err != nil {
		log.Printf("server %s: closing session for %s: %v", ms.cfg.Name, lv.player.SteamID, err)
	}
	if err := m.store.SetPlayerStatus(lv.player.SteamID, domain.StatusOffline); err != nil {
		log.Printf("server %s: marking %s offline: %v", ms.cfg.Name, lv.player.SteamID, err)
	}
}

// pollLoop periodically samples process stats, retries failed tailers,
// follows log rotation, and broadcasts server status.
func (m *ServerManager) pollLoop() {
	defer m.wg.Done()

	interval := m.cfg.Server.PollInterval
	if interval <= 0 {
		interval = 5 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-m.done:
			return
		case <-ticker.C:
			m.poll()
		}
	}
}

func (m *ServerManager) poll() {
	m.mu.Lock()
	servers := make([]*managedServer, 0, len(m.servers))
	for _, ms := range m.servers {
		servers = append(servers, ms)
	}
	m.mu.Unlock()

	for _, ms := range servers {
		m.pollServer(ms)
	}
}

func (m *ServerManager) pollServer(ms *managedServer) {
	var stats *domain.ProcessStats
	if ms.supervisor != nil {
		if !ms.supervisor.Running() {
			if _, err := ms.supervisor.Attach(); err != nil {
				log.Printf("server %s: attach failed: %v", ms.cfg.Name, err)
			}
		}
		stats = ms.supervisor.Stats()

		if !stats.Running && ms.cfg.AutoRestart {
			log.Printf("server %s: process not running, auto-restarting", ms.cfg.Name)
			if err := ms.supervisor.Start(); err != nil {
				log.Printf("server %s: auto-restart failed: %v", ms.cfg.Name, err)
			} else {
				stats = ms.supervisor.Stats()
			}
		}
	}

	m.mu.Lock()
	if stats != nil {
		ms.stats = stats
	}
	ms.lastUpdated = time.Now()
	tailer := ms.tailer
	m.mu.Unlock()

	// Retry a tailer that never started, or follow rotation to a newer file
	if tailer == nil {
		if err := m.startTailing(ms); err != nil {
			log.Printf("server %s: %v", ms.cfg.Name, err)
		}
	} else if latest, err := LatestLogPath(ms.cfg.LogDir); err == nil && latest != tailer.Path() {
		log.Printf("server %s: log rotated to %s", ms.cfg.Name, latest)
		tailer.Stop()
		m.mu.Lock()
		ms.tailer = nil
		m.mu.Unlock()
		if err := m.startTailing(ms); err != nil {
			log.Printf("server %s: %v", ms.cfg.Name, err)
		}
	}

	status := m.GetServerStatus(ms.id)
	if status != nil {
		m.emitEvent(domain.Event{
			Type:      domain.EventServerUpdate,
			ServerID:  ms.id,
			Timestamp: time.Now(),
			Data:      status,
		})
	}
}

// GetServerStatus returns the current status of one server, or nil if unknown.
func (m *ServerManager) GetServerStatus(serverID int64) *domain.ServerStatus {
	m.mu.Lock()
	defer m.mu.Unlock()

	ms, ok := m.servers[serverID]
	if !ok {
		return nil
	}
	return m.statusLocked(ms)
}

// GetAllStatuses returns the status of every managed server
func (m *ServerManager) GetAllStatuses() []domain.ServerStatus {
	m.mu.Lock()
	defer m.mu.Unlock()

	statuses := make([]domain.ServerStatus, 0, len(m.servers))
	for _, ms := range m.servers {
		statuses = append(statuses, *m.statusLocked(ms))
	}
	return statuses
}

func (m *ServerManager) statusLocked(ms *managedServer) *domain.ServerStatus {
	players := make([]domain.OnlinePlayer, 0, len(ms.players))
	for _, op := range ms.players {
		players = append(players, op)
	}

	online := ms.stats != nil && ms.stats.Running
	if !online && len(players) > 0 {
		// No supervised process but the log shows players, e.g. the server
		// runs on another host and we only see its shipped logs
		online = true
	}

	return &domain.ServerStatus{
		ServerID:    ms.id,
		Name:        ms.cfg.Name,
		Address:     ms.cfg.RconAddress,
		Online:      online,
		Players:     players,
		PlayerCount: len(players),
		Process:     ms.stats,
		LastUpdated: ms.lastUpdated,
	}
}

func (m *ServerManager) getServer(serverID int64) (*managedServer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ms, ok := m.servers[serverID]
	if !ok {
		return nil, fmt.Errorf("unknown server %d", serverID)
	}
	return ms, nil
}

// ---- rcon ----

// ExecuteRcon runs one command against a server's RCON port. Each call
// dials a fresh connection; the game's RCON implementation drops idle
// connections quickly enough that pooling is not worth the bookkeeping.
func (m *ServerManager) ExecuteRcon(ctx context.Context, serverID int64, command string) (string, error) {
	ms, err := m.getServer(serverID)
	if err != nil {
		return "", err
	}
	if ms.cfg.RconAddress == "" {
		return "", fmt.Errorf("server %s has no rcon address configured", ms.cfg.Name)
	}

	conn, err := rcon.Dial(ctx, ms.cfg.RconAddress, ms.cfg.RconPassword, rconTimeout)
	if err != nil {
		return "", fmt.Errorf("rcon connect: %w", err)
	}
	defer conn.Close()

	response, err := conn.Exec(command)
	if err != nil {
		return "", fmt.Errorf("rcon exec: %w", err)
	}
	return response, nil
}

// KickPlayer kicks a player via RCON and records the action
func (m *ServerManager) KickPlayer(ctx context.Context, serverID int64, steamID, reason, admin string) error {
	command := fmt.Sprintf("#kick %s", steamID)
	if reason != "" {
		command += " " + reason
	}
	_, err := m.ExecuteRcon(ctx, serverID, command)

	name := m.playerName(steamID)
	m.recordAction(domain.AdminAction{
		Timestamp:     time.Now(),
		AdminSteamID:  admin,
		ActionType:    domain.ActionKick,
		TargetSteamID: steamID,
		TargetName:    name,
		Reason:        reason,
		Success:       err == nil,
	})
	if err != nil {
		return err
	}

	m.emitEvent(domain.Event{
		Type:      domain.EventKick,
		ServerID:  serverID,
		Timestamp: time.Now(),
		Data:      domain.KickEvent{SteamID: steamID, DisplayName: name, Reason: reason, Admin: admin},
	})
	return nil
}

// Announce sends a server-wide chat announcement via RCON
func (m *ServerManager) Announce(ctx context.Context, serverID int64, message, admin string) error {
	_, err := m.ExecuteRcon(ctx, serverID, "#announce "+message)
	m.recordAction(domain.AdminAction{
		Timestamp:    time.Now(),
		AdminSteamID: admin,
		ActionType:   domain.ActionAnnounce,
		Reason:       message,
		Success:      err == nil,
	})
	return err
}

// ---- bans and admins ----

// BanPlayer bans a player: database flag, BannedUsers.ini entry, and a kick
// if the player is online. The INI write failing does not undo the database
// ban; the file is re-synced on the next ban or unban.
func (m *ServerManager) BanPlayer(ctx context.Context, serverID int64, steamID, reason, admin string) error {
	ms, err := m.getServer(serverID)
	if err != nil {
		return err
	}

	now := time.Now()
	if err := m.store.BanPlayer(steamID, reason, now); err != nil {
		m.recordAction(domain.AdminAction{
			Timestamp: now, AdminSteamID: admin, ActionType: domain.ActionBan,
			TargetSteamID: steamID, Reason: reason, Success: false,
		})
		return err
	}

	if ms.cfg.BanListPath != "" {
		if err := m.appendListEntry(ms.cfg.BanListPath, banfile.SectionBanned, steamID, reason, now); err != nil {
			log.Printf("server %s: updating ban list: %v", ms.cfg.Name, err)
		}
	}

	name := m.playerName(steamID)
	m.recordAction(domain.AdminAction{
		Timestamp: now, AdminSteamID: admin, ActionType: domain.ActionBan,
		TargetSteamID: steamID, TargetName: name, Reason: reason, Success: true,
	})
	m.emitEvent(domain.Event{
		Type:      domain.EventBan,
		ServerID:  serverID,
		Timestamp: now,
		Data:      domain.BanEvent{SteamID: steamID, DisplayName: name, Reason: reason, Admin: admin},
	})

	// Kick if online so the ban takes effect immediately
	m.mu.Lock()
	_, online := ms.players[steamID]
	m.mu.Unlock()
	if online {
		command := fmt.Sprintf("#kick %s banned: %s", steamID, reason)
		if _, err := m.ExecuteRcon(ctx, serverID, command); err != nil {
			log.Printf("server %s: kicking banned player: %v", ms.cfg.Name, err)
		}
	}
	return nil
}

// UnbanPlayer lifts a ban in the database and the BannedUsers.ini file
func (m *ServerManager) UnbanPlayer(serverID int64, steamID, admin string) error {
	ms, err := m.getServer(serverID)
	if err != nil {
		return err
	}

	now := time.Now()
	if err := m.store.UnbanPlayer(steamID); err != nil {
		m.recordAction(domain.AdminAction{
			Timestamp: now, AdminSteamID: admin, ActionType: domain.ActionUnban,
			TargetSteamID: steamID, Success: false,
		})
		return err
	}

	if ms.cfg.BanListPath != "" {
		if err := m.removeListEntry(ms.cfg.BanListPath, banfile.SectionBanned, steamID); err != nil {
			log.Printf("server %s: updating ban list: %v", ms.cfg.Name, err)
		}
	}

	name := m.playerName(steamID)
	m.recordAction(domain.AdminAction{
		Timestamp: now, AdminSteamID: admin, ActionType: domain.ActionUnban,
		TargetSteamID: steamID, TargetName: name, Success: true,
	})
	m.emitEvent(domain.Event{
		Type:      domain.EventUnban,
		ServerID:  serverID,
		Timestamp: now,
		Data:      domain.BanEvent{SteamID: steamID, DisplayName: name, Admin: admin},
	})
	return nil
}

// SetAdmin grants or revokes game admin, updating AdminUsers.ini alongside
// the database flag.
func (m *ServerManager) SetAdmin(serverID int64, steamID string, grant bool, admin string) error {
	ms, err := m.getServer(serverID)
	if err != nil {
		return err
	}

	now := time.Now()
	actionType := domain.ActionAdminAdd
	if !grant {
		actionType = domain.ActionAdminRemove
	}

	if err := m.store.SetAdmin(steamID, grant, now); err != nil {
		m.recordAction(domain.AdminAction{
			Timestamp: now, AdminSteamID: admin, ActionType: actionType,
			TargetSteamID: steamID, Success: false,
		})
		return err
	}

	if ms.cfg.AdminList != "" {
		var ferr error
		if grant {
			ferr = m.appendListEntry(ms.cfg.AdminList, banfile.SectionAdmins, steamID, "", now)
		} else {
			ferr = m.removeListEntry(ms.cfg.AdminList, banfile.SectionAdmins, steamID)
		}
		if ferr != nil {
			log.Printf("server %s: updating admin list: %v", ms.cfg.Name, ferr)
		}
	}

	m.recordAction(domain.AdminAction{
		Timestamp: now, AdminSteamID: admin, ActionType: actionType,
		TargetSteamID: steamID, TargetName: m.playerName(steamID), Success: true,
	})
	return nil
}

func (m *ServerManager) appendListEntry(path, section, steamID, reason string, at time.Time) error {
	list, err := banfile.Load(path, section)
	if err != nil {
		return err
	}
	list.Add(banfile.Entry{SteamID: steamID, Reason: reason, Timestamp: at})
	return banfile.Save(path, list)
}

func (m *ServerManager) removeListEntry(path, section, steamID string) error {
	list, err := banfile.Load(path, section)
	if err != nil {
		return err
	}
	if !list.Remove(steamID) {
		return nil
	}
	return banfile.Save(path, list)
}

// ---- process control ----

// StartServer launches the server executable
func (m *ServerManager) StartServer(serverID int64) error {
	ms, err := m.getServer(serverID)
	if err != nil {
		return err
	}
	if ms.supervisor == nil {
		return fmt.Errorf("server %s has no executable configured", ms.cfg.Name)
	}
	return ms.supervisor.Start()
}

// StopServer terminates the server executable
func (m *ServerManager) StopServer(serverID int64) error {
	ms, err := m.getServer(serverID)
	if err != nil {
		return err
	}
	if ms.supervisor == nil {
		return fmt.Errorf("server %s has no executable configured", ms.cfg.Name)
	}
	return ms.supervisor.Stop(30 * time.Second)
}

// RestartServer stops then starts the server executable
func (m *ServerManager) RestartServer(serverID int64) error {
	ms, err := m.getServer(serverID)
	if err != nil {
		return err
	}
	if ms.supervisor == nil {
		return fmt.Errorf("server %s has no executable configured", ms.cfg.Name)
	}
	return ms.supervisor.Restart(30 * time.Second)
}

// StartUpdate begins downloading the server package configured for the
// server and returns the task id.
func (m *ServerManager) StartUpdate(serverID int64) (string, error) {
	ms, err := m.getServer(serverID)
	if err != nil {
		return "", err
	}
	if ms.cfg.UpdateURL == "" {
		return "", fmt.Errorf("server %s has no update url configured", ms.cfg.Name)
	}
	if ms.cfg.InstallDir == "" {
		return "", fmt.Errorf("server %s has no install dir configured", ms.cfg.Name)
	}
	if ms.supervisor != nil && ms.supervisor.Running() {
		return "", fmt.Errorf("server %s is running, stop it before updating", ms.cfg.Name)
	}
	return m.downloader.Start(serverID, ms.cfg.UpdateURL, ms.cfg.InstallDir)
}

func (m *ServerManager) onDownloadProgress(task domain.UpdateTask) {
	m.emitEvent(domain.Event{
		Type:      domain.EventUpdateProgress,
		ServerID:  task.ServerID,
		Timestamp: time.Now(),
		Data: domain.UpdateProgressEvent{
			TaskID:     task.ID,
			State:      task.State,
			BytesDone:  task.BytesDone,
			BytesTotal: task.BytesTotal,
		},
	})
}

// ---- helpers ----

// LogDir returns the log directory for a server, for the raw log stream
func (m *ServerManager) LogDir(serverID int64) (string, error) {
	ms, err := m.getServer(serverID)
	if err != nil {
		return "", err
	}
	if ms.cfg.LogDir == "" {
		return "", fmt.Errorf("server %s has no log dir configured", ms.cfg.Name)
	}
	return ms.cfg.LogDir, nil
}

// SettingsPath returns the ServerSettings.ini path for a server
func (m *ServerManager) SettingsPath(serverID int64) (string, error) {
	ms, err := m.getServer(serverID)
	if err != nil {
		return "", err
	}
	if ms.cfg.SettingsPath == "" {
		return "", fmt.Errorf("server %s has no settings path configured", ms.cfg.Name)
	}
	return ms.cfg.SettingsPath, nil
}

func (m *ServerManager) playerName(steamID string) string {
	player, err := m.store.GetPlayer(steamID)
	if err != nil || player == nil {
		return ""
	}
	return player.DisplayName
}

func (m *ServerManager) recordAction(action domain.AdminAction) {
	if err := m.store.RecordAdminAction(action); err != nil {
		log.Printf("recording admin action: %v", err)
	}
	m.emitEvent(domain.Event{
		Type:      domain.EventAdminAction,
		Timestamp: action.Timestamp,
		Data:      action,
	})
}

// emitEvent sends without blocking; slow consumers lose events
func (m *ServerManager) emitEvent(event domain.Event) {
	select {
	case m.events <- event:
	default:
	}
}
