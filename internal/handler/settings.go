package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/dukerupert/smartassist/internal/auth"
	"github.com/dukerupert/smartassist/internal/store"
	"github.com/dukerupert/smartassist/internal/websocket"
)

type PreferencesHandler struct {
	settingsStore *store.SettingsStore
	hub           Sender
	logger        *slog.Logger
}

func NewPreferencesHandler(ss *store.SettingsStore, hub Sender, logger *slog.Logger) *PreferencesHandler {
	return &PreferencesHandler{settingsStore: ss, hub: hub, logger: logger}
}

type preferences struct {
	VoiceEnabled bool `json:"voice_enabled"`
}

type preferencesRequest struct {
	VoiceEnabled *bool `json:"voice_enabled"`
}

// Get handles GET /api/preferences
func (h *PreferencesHandler) Get(w http.ResponseWriter, r *http.Request) {
	enabled, err := h.settingsStore.VoiceEnabled(r.Context(), auth.UserID(r.Context()))
	if err != nil {
		h.logger.Error("get preferences", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to get preferences")
		return
	}
	writeJSON(w, http.StatusOK, preferences{VoiceEnabled: enabled})
}

// Update handles PUT /api/preferences
func (h *PreferencesHandler) Update(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())

	var req preferencesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.VoiceEnabled == nil {
		writeError(w, http.StatusBadRequest, "voice_enabled is required")
		return
	}

	if err := h.settingsStore.SetVoiceEnabled(r.Context(), userID, *req.VoiceEnabled); err != nil {
		h.logger.Error("save preferences", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to save preferences")
		return
	}

	if h.hub != nil {
		h.hub.SendToUser(userID, websocket.NewMessage("preferences", "updated", "", nil))
	}
	writeJSON(w, http.StatusOK, preferences{VoiceEnabled: *req.VoiceEnabled})
}
