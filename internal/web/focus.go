package web

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"mybrain/internal/focus"
	appLog "mybrain/internal/log"
)

const (
	wsWriteWait  = 10 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = wsPongWait * 9 / 10
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

type focusResponse struct {
	Focus     focus.Candidate `json:"focus"`
	UpdatedAt time.Time       `json:"updatedAt"`
	Partial   bool            `json:"partial,omitempty"`
}

// handleFocus returns the current focus candidate, refreshing the
// dashboard first when the cached one is stale.
func (s *Server) handleFocus(w http.ResponseWriter, r *http.Request) {
	snap, err := s.backend.Current(r.Context(), focusMaxAge)
	if err != nil {
		appLog.Error("focus refresh failed", err)
		if snap.UpdatedAt.IsZero() {
			writeError(w, http.StatusServiceUnavailable, "dashboard unavailable")
			return
		}
	}
	writeJSON(w, http.StatusOK, focusResponse{Focus: snap.Focus, UpdatedAt: snap.UpdatedAt, Partial: snap.Partial || err != nil})
}

// handleFocusStream pushes the current focus candidate and then every
// change over a websocket until the client goes away.
func (s *Server) handleFocusStream(w http.ResponseWriter, r *http.Request) {
	// Subscribe before reading the current value so no change is missed.
	updates, cancel := s.backend.Subscribe()
	defer cancel()

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the error response.
		appLog.Warn("focus websocket upgrade failed", "reason", err)
		return
	}
	defer conn.Close()

	closed := make(chan struct{})
	go func() {
		defer close(closed)
		conn.SetReadLimit(512)
		_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(wsPongWait))
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					appLog.Debug("focus websocket read error", "reason", err)
				}
				return
			}
		}
	}()

	var (
		last focus.Candidate
		sent bool
	)
	send := func(c focus.Candidate) bool {
		if sent && c == last {
			return true
		}
		last, sent = c, true
		_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
		if err := conn.WriteJSON(c); err != nil {
			appLog.Debug("focus websocket write failed", "reason", err)
			return false
		}
		return true
	}

	snap, err := s.backend.Current(r.Context(), focusMaxAge)
	if err != nil {
		appLog.Error("focus refresh failed", err)
	}
	if !snap.UpdatedAt.IsZero() && !send(snap.Focus) {
		return
	}

	ping := time.NewTicker(wsPingPeriod)
	defer ping.Stop()
	for {
		select {
		case c := <-updates:
			if !send(c) {
				return
			}
		case <-ping.C:
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-closed:
			return
		}
	}
}
