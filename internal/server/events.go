package server

import (
	"context"
	"log/slog"

	"github.com/dukerupert/smartassist/internal/notify"
	"github.com/dukerupert/smartassist/internal/reminder"
	ws "github.com/dukerupert/smartassist/internal/websocket"
)

// ConnectGateway feeds gateway events into the reminder manager and tells the
// user's devices about fired notifications. A failed response is returned to
// the gateway so the caller sees it and can retry.
func ConnectGateway(gw *notify.Gateway, m *reminder.Manager, hub *ws.Hub, logger *slog.Logger) {
	gw.Subscribe(func(ctx context.Context, ev notify.Event) error {
		n := reminder.Notification{
			ID:      ev.NotificationID,
			UserID:  ev.UserID,
			Title:   ev.Title,
			Body:    ev.Body,
			Payload: ev.Payload,
		}

		switch ev.Kind {
		case notify.Received:
			m.OnNotificationReceived(ctx, n)
			hub.SendToUser(ev.UserID, ws.NewMessage("notification", "received", ev.NotificationID, map[string]any{
				"reminder_id": ev.Payload[reminder.PayloadReminderID],
				"title":       ev.Title,
				"body":        ev.Body,
				"fired_at":    ev.FiredAt,
			}))
		case notify.Responded:
			if err := m.OnNotificationResponse(ctx, n); err != nil {
				logger.Error("handle notification response", "notification_id", ev.NotificationID, "error", err)
				return err
			}
			if id := ev.Payload[reminder.PayloadReminderID]; id != "" {
				hub.SendToUser(ev.UserID, ws.NewMessage("reminder", "updated", id, nil))
			}
		}
		return nil
	})
}
