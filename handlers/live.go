// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"slices"
	"time"

	"github.com/gin-contrib/sse"
	"github.com/gorilla/websocket"

	"github.com/danielhkuo/classpoll/broadcast"
	"github.com/danielhkuo/classpoll/cliparse"
	"github.com/danielhkuo/classpoll/lifecycle"
	"github.com/danielhkuo/classpoll/middleware"
	"github.com/danielhkuo/classpoll/models"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
	sseHeartbeat   = 30 * time.Second
)

// LiveHandler serves the broadcast channel over WebSocket and Server-Sent
// Events. Every connection receives every event.
type LiveHandler struct {
	hub      *broadcast.Hub
	manager  *lifecycle.Manager
	cfg      cliparse.Config
	upgrader websocket.Upgrader
}

func NewLiveHandler(hub *broadcast.Hub, manager *lifecycle.Manager, cfg cliparse.Config) *LiveHandler {
	h := &LiveHandler{hub: hub, manager: manager, cfg: cfg}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     h.checkOrigin,
	}
	return h
}

// checkOrigin accepts requests without an Origin header (non-browser
// clients) and browsers from the configured CORS origins.
func (h *LiveHandler) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	return slices.Contains(h.cfg.CORSOrigins, "*") || slices.Contains(h.cfg.CORSOrigins, origin)
}

type inboundMessage struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// ServeWS handles GET /ws
func (h *LiveHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	// Subscribe before the upgrade so nothing published after the handshake
	// is missed.
	events, cancel := h.hub.Subscribe()

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		cancel()
		slog.Warn("websocket upgrade failed", "remote", middleware.GetClientIP(r), "error", err)
		return
	}

	remote := middleware.GetClientIP(r)
	slog.Info("live client connected", "transport", "websocket", "remote", remote)

	direct := make(chan []byte, 8)
	done := make(chan struct{})
	go h.writePump(conn, events, direct, done)

	h.readPump(r, conn, direct)

	close(done)
	cancel()
	slog.Info("live client disconnected", "transport", "websocket", "remote", remote)
}

// readPump handles client messages until the connection fails.
func (h *LiveHandler) readPump(r *http.Request, conn *websocket.Conn, direct chan<- []byte) {
	conn.SetReadLimit(maxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				slog.Warn("websocket read failed", "error", err)
			}
			return
		}

		if reply := h.handleInbound(r, data); reply != nil {
			select {
			case direct <- reply:
			default:
				slog.Warn("dropping reply to slow websocket client")
			}
		}
	}
}

// handleInbound processes one client message and returns an error envelope
// for the sender, or nil on success.
func (h *LiveHandler) handleInbound(r *http.Request, data []byte) []byte {
	var msg inboundMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return errorEnvelope(http.StatusBadRequest, "Invalid JSON")
	}

	switch msg.Event {
	case models.EventSubmitAnswer:
		var req models.LiveSubmitAnswer
		if err := json.Unmarshal(msg.Data, &req); err != nil {
			return errorEnvelope(http.StatusBadRequest, "Invalid JSON")
		}
		if err := middleware.Validate(&req); err != nil {
			return errorEnvelope(http.StatusBadRequest, err.Error())
		}

		// Success is visible to everyone as tally-updated
		if _, err := h.manager.SubmitAnswerForPoll(r.Context(), req.PollID, req.StudentID, req.Option); err != nil {
			status, body := errorBody(err)
			return errorEnvelope(status, body.Message)
		}
		return nil
	default:
		return errorEnvelope(http.StatusBadRequest, "Unknown event "+msg.Event)
	}
}

func errorEnvelope(status int, message string) []byte {
	msg, err := broadcast.Encode(models.Event{
		Name: models.EventError,
		Data: models.ErrorResponse{Error: http.StatusText(status), Message: message},
	})
	if err != nil {
		return nil
	}
	return msg.Envelope
}

// writePump is the only writer on conn. It forwards hub events and direct
// replies and keeps the connection alive with pings.
func (h *LiveHandler) writePump(conn *websocket.Conn, events <-chan broadcast.Message, direct <-chan []byte, done <-chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		conn.Close()
	}()

	write := func(payload []byte) bool {
		_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
		return conn.WriteMessage(websocket.TextMessage, payload) == nil
	}

	for {
		select {
		case <-done:
			return
		case msg, ok := <-events:
			if !ok {
				// Hub closed
				_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
				_ = conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"))
				return
			}
			if !write(msg.Envelope) {
				return
			}
		case payload := <-direct:
			if !write(payload) {
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// ServeSSE handles GET /events
func (h *LiveHandler) ServeSSE(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Streaming unsupported")
		return
	}

	events, cancel := h.hub.Subscribe()
	defer cancel()

	w.Header().Set("Content-Type", sse.ContentType)
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	remote := middleware.GetClientIP(r)
	slog.Info("live client connected", "transport", "sse", "remote", remote)
	defer slog.Info("live client disconnected", "transport", "sse", "remote", remote)

	heartbeat := time.NewTicker(sseHeartbeat)
	defer heartbeat.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case msg, ok := <-events:
			if !ok {
				return
			}
			err := sse.Encode(w, sse.Event{Event: msg.Event, Data: string(msg.Data)})
			if err != nil {
				return
			}
			flusher.Flush()
		case t := <-heartbeat.C:
			if err := sse.Encode(w, sse.Event{Event: "ping", Data: t.UTC().Format(time.RFC3339)}); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}
