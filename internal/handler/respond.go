package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/dukerupert/smartassist/internal/notify"
	"github.com/dukerupert/smartassist/internal/reminder"
	"github.com/dukerupert/smartassist/internal/websocket"
)

// Sender delivers realtime messages to a user's devices.
type Sender interface {
	SendToUser(userID string, msg websocket.Message)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeReminderError maps manager errors onto HTTP statuses.
func writeReminderError(w http.ResponseWriter, logger *slog.Logger, op string, err error) {
	var (
		verr *reminder.ValidationError
		nerr *reminder.NotificationError
		serr *reminder.StoreError
	)
	switch {
	case errors.As(err, &verr):
		writeError(w, http.StatusBadRequest, verr.Message)
	case errors.Is(err, reminder.ErrNotFound), errors.Is(err, notify.ErrUnknownNotification):
		writeError(w, http.StatusNotFound, "not found")
	case errors.As(err, &nerr):
		logger.Error(op, "error", err)
		writeError(w, http.StatusBadGateway, "failed to schedule notification")
	case errors.As(err, &serr):
		logger.Error(op, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to save reminder")
	default:
		logger.Error(op, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}
