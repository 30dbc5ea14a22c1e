package handler

import (
	"net/http"

	"github.com/workbox-dev/workbox/internal/vfs"
)

type sandboxRequest struct {
	SessionID string `json:"sessionId"`
}

// StartSandbox brings the session's sandbox to ready: bucket mounted (or
// degraded with a message) and terminal server running.
// POST /api/sandbox/start {sessionId}
func (h *Handler) StartSandbox(w http.ResponseWriter, r *http.Request) {
	var req sandboxRequest
	h.DecodeJSON(r, &req)
	sessionID := vfs.ResolveSessionID(req.SessionID)

	status, err := h.controller.Start(r.Context(), sessionID)
	if err != nil {
		h.log.Error("sandbox start failed", "session", sessionID, "error", err)
		h.Fail(w, http.StatusInternalServerError, "Failed to start sandbox")
		return
	}

	resp := map[string]any{
		"success": true,
		"running": true,
		"mounted": status.Mounted,
	}
	if status.Message != "" {
		resp["mountMessage"] = status.Message
	}
	h.JSON(w, http.StatusOK, resp)
}

// StopSandbox tears the session's sandbox down. Remote cleanup failures do
// not fail the request; the session always ends up unregistered.
// POST /api/sandbox/stop {sessionId}
func (h *Handler) StopSandbox(w http.ResponseWriter, r *http.Request) {
	var req sandboxRequest
	h.DecodeJSON(r, &req)
	sessionID := vfs.ResolveSessionID(req.SessionID)

	h.controller.Stop(r.Context(), sessionID)

	h.JSON(w, http.StatusOK, map[string]any{"success": true, "running": false})
}

// SandboxStatus reports this process's view of whether the session's
// sandbox is running.
// GET /api/sandbox/status?session=...
func (h *Handler) SandboxStatus(w http.ResponseWriter, r *http.Request) {
	sessionID := vfs.ResolveSessionID(r.URL.Query().Get("session"))
	h.JSON(w, http.StatusOK, map[string]any{
		"success": true,
		"running": h.controller.Running(sessionID),
	})
}
