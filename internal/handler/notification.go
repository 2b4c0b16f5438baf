package handler

import (
	"log/slog"
	"net/http"

	"github.com/dukerupert/smartassist/internal/auth"
	"github.com/dukerupert/smartassist/internal/model"
	"github.com/dukerupert/smartassist/internal/notify"
)

type NotificationHandler struct {
	gateway *notify.Gateway
	logger  *slog.Logger
}

func NewNotificationHandler(g *notify.Gateway, logger *slog.Logger) *NotificationHandler {
	return &NotificationHandler{gateway: g, logger: logger}
}

// Respond handles POST /api/notifications/{id}/response
func (h *NotificationHandler) Respond(w http.ResponseWriter, r *http.Request) {
	if err := h.gateway.Respond(r.Context(), auth.UserID(r.Context()), r.PathValue("id")); err != nil {
		writeReminderError(w, h.logger, "respond to notification", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Scheduled handles GET /api/notifications/scheduled
func (h *NotificationHandler) Scheduled(w http.ResponseWriter, r *http.Request) {
	list, err := h.gateway.Scheduled(r.Context(), auth.UserID(r.Context()))
	if err != nil {
		h.logger.Error("list scheduled notifications", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list notifications")
		return
	}
	if list == nil {
		list = []model.ScheduledNotification{}
	}
	writeJSON(w, http.StatusOK, list)
}
