// Package handler contains the HTTP surface of the control plane: file
// operations, sandbox lifecycle, auth endpoints, and the terminal socket.
package handler

import (
	"encoding/json"
	"net/http"

	"github.com/workbox-dev/workbox/internal/auth"
	"github.com/workbox-dev/workbox/internal/config"
	"github.com/workbox-dev/workbox/internal/logger"
	"github.com/workbox-dev/workbox/internal/objstore"
	"github.com/workbox-dev/workbox/internal/sandbox"
)

// Handler contains all HTTP handlers.
type Handler struct {
	cfg        *config.Config
	log        *logger.Logger
	gateway    *objstore.Gateway
	authority  *auth.Authority
	controller *sandbox.Controller
	provider   sandbox.Provider
}

// New creates a Handler over the control-plane services.
func New(cfg *config.Config, log *logger.Logger, gateway *objstore.Gateway, authority *auth.Authority, controller *sandbox.Controller, provider sandbox.Provider) *Handler {
	return &Handler{
		cfg:        cfg,
		log:        log,
		gateway:    gateway,
		authority:  authority,
		controller: controller,
		provider:   provider,
	}
}

// JSON writes a JSON response.
func (h *Handler) JSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if data != nil {
		_ = json.NewEncoder(w).Encode(data)
	}
}

// Fail writes the failure envelope with a short human-readable error.
func (h *Handler) Fail(w http.ResponseWriter, status int, message string) {
	h.JSON(w, status, map[string]any{"success": false, "error": message})
}

// DecodeJSON decodes the request body. A missing or malformed body decodes
// to the zero value so handlers can validate fields uniformly.
func (h *Handler) DecodeJSON(r *http.Request, v any) {
	_ = json.NewDecoder(r.Body).Decode(v)
}
