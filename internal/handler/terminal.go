package handler

import (
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/workbox-dev/workbox/internal/vfs"
)

var terminalUpgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	// Auth happens in middleware; cross-origin upgrades are allowed so the
	// editor UI can be served from a different origin in development.
	CheckOrigin: func(_ *http.Request) bool { return true },
}

// TerminalSocket bridges a browser WebSocket to the terminal server inside
// the session's sandbox. The sandbox is brought to ready before the upgrade
// so a failed start can still answer with a plain HTTP error.
// GET /ws?session=...
func (h *Handler) TerminalSocket(w http.ResponseWriter, r *http.Request) {
	if !strings.EqualFold(r.Header.Get("Upgrade"), "websocket") {
		h.Fail(w, http.StatusBadRequest, "WebSocket upgrade required")
		return
	}

	sessionID := r.URL.Query().Get("session")
	if sessionID == "" {
		sessionID = "term-" + uuid.New().String()
	}
	sessionID = vfs.ResolveSessionID(sessionID)

	if _, err := h.controller.Start(r.Context(), sessionID); err != nil {
		h.log.Error("sandbox start for terminal failed", "session", sessionID, "error", err)
		h.Fail(w, http.StatusInternalServerError, "Failed to start terminal")
		return
	}

	upstreamURL := h.provider.Instance(sessionID).TerminalURL(h.cfg.TerminalPort)
	upstream, _, err := websocket.DefaultDialer.Dial(upstreamURL, nil)
	if err != nil {
		h.log.Error("terminal upstream dial failed", "session", sessionID, "url", upstreamURL, "error", err)
		h.Fail(w, http.StatusBadGateway, "Failed to reach terminal")
		return
	}

	client, err := terminalUpgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written its own error response.
		h.log.Error("terminal upgrade failed", "session", sessionID, "error", err)
		upstream.Close()
		return
	}

	h.log.Info("terminal connected", "session", sessionID)
	proxyWebSocket(client, upstream)
}

// proxyWebSocket pumps frames in both directions, preserving message types,
// until either side errors or closes. Both connections are closed on exit.
func proxyWebSocket(client, upstream *websocket.Conn) {
	done := make(chan struct{}, 2)

	pump := func(src, dst *websocket.Conn) {
		defer func() { done <- struct{}{} }()
		for {
			messageType, payload, err := src.ReadMessage()
			if err != nil {
				return
			}
			if err := dst.WriteMessage(messageType, payload); err != nil {
				return
			}
		}
	}

	go pump(client, upstream)
	go pump(upstream, client)

	<-done
	client.Close()
	upstream.Close()
	<-done
}
