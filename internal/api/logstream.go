package api

import (
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/websocket"

	"github.com/molt/scummgr/internal/collector"
)

// handleLogStream streams the raw server log over a WebSocket: the last
// lines of the current file first, then new lines as they are written.
func (s *Server) handleLogStream(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.authenticate(r); !ok {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	serverID, err := strconv.ParseInt(r.URL.Query().Get("server_id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid server_id")
		return
	}

	logDir, err := s.manager.LogDir(serverID)
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	path, err := collector.LatestLogPath(logDir)
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("websocket upgrade: %v", err)
		return
	}
	defer conn.Close()

	// Seed the viewer with recent history
	lines, err := collector.ReadLastNLines(path, 200)
	if err != nil {
		log.Printf("reading log tail: %v", err)
		return
	}
	for _, line := range lines {
		conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteMessage(websocket.TextMessage, []byte(line)); err != nil {
			return
		}
	}

	tailer := collector.NewRawLogTailer(path)
	if err := tailer.Start(); err != nil {
		log.Printf("starting raw tail: %v", err)
		return
	}
	defer tailer.Stop()

	// Detect the client going away
	disconnected := make(chan struct{})
	go func() {
		defer close(disconnected)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ping := time.NewTicker(pingPeriod)
	defer ping.Stop()

	for {
		select {
		case <-disconnected:
			return
		case line := <-tailer.Lines:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.TextMessage, []byte(line)); err != nil {
				return
			}
		case err := <-tailer.Errors:
			log.Printf("raw tail: %v", err)
		case <-ping.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
