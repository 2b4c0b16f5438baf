package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/dukerupert/smartassist/internal/model"
)

// NotificationStore holds the registrations owned by the notification gateway
// and the log of firings used to de-duplicate deliveries.
type NotificationStore struct {
	db *sql.DB
}

func NewNotificationStore(db *sql.DB) *NotificationStore {
	return &NotificationStore{db: db}
}

const notificationCols = `id, user_id, title, body, rule, hour, minute, next_fire_at, payload, created_at`

func scanNotification(scanner interface{ Scan(...any) error }) (*model.ScheduledNotification, error) {
	var n model.ScheduledNotification
	var payload string

	err := scanner.Scan(
		&n.ID, &n.UserID, &n.Title, &n.Body, &n.Rule, &n.Hour, &n.Minute,
		&n.NextFireAt, &payload, &n.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(payload), &n.Payload); err != nil {
		return nil, fmt.Errorf("decode payload: %w", err)
	}
	return &n, nil
}

func (s *NotificationStore) Create(ctx context.Context, n *model.ScheduledNotification) error {
	payload, err := json.Marshal(n.Payload)
	if err != nil {
		return fmt.Errorf("encode payload: %w", err)
	}
	if n.Payload == nil {
		payload = []byte("{}")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO scheduled_notifications (id, user_id, title, body, rule, hour, minute, next_fire_at, payload)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		n.ID, n.UserID, n.Title, n.Body, n.Rule, n.Hour, n.Minute,
		n.NextFireAt.UTC(), string(payload),
	)
	if err != nil {
		return fmt.Errorf("insert scheduled notification: %w", err)
	}
	return nil
}

func (s *NotificationStore) GetByID(ctx context.Context, id string) (*model.ScheduledNotification, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+notificationCols+` FROM scheduled_notifications WHERE id = ?`, id)
	n, err := scanNotification(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get scheduled notification: %w", err)
	}
	return n, nil
}

// Delete removes a registration. Deleting an unknown id is not an error.
func (s *NotificationStore) Delete(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM scheduled_notifications WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete scheduled notification: %w", err)
	}
	return nil
}

func (s *NotificationStore) ListByUser(ctx context.Context, userID string) ([]model.ScheduledNotification, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+notificationCols+` FROM scheduled_notifications WHERE user_id = ? ORDER BY next_fire_at ASC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("list scheduled notifications: %w", err)
	}
	defer rows.Close()
	return scanNotifications(rows)
}

// ListDue returns registrations whose next firing is at or before now.
func (s *NotificationStore) ListDue(ctx context.Context, now time.Time) ([]model.ScheduledNotification, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+notificationCols+` FROM scheduled_notifications WHERE next_fire_at <= ? ORDER BY next_fire_at ASC`,
		now.UTC(),
	)
	if err != nil {
		return nil, fmt.Errorf("list due notifications: %w", err)
	}
	defer rows.Close()
	return scanNotifications(rows)
}

// Reschedule moves a recurring registration to its next firing time.
func (s *NotificationStore) Reschedule(ctx context.Context, id string, next time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE scheduled_notifications SET next_fire_at = ? WHERE id = ?`,
		next.UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("reschedule notification: %w", err)
	}
	return nil
}

// RecordSent records that a registration fired for the given occurrence (for dedup).
func (s *NotificationStore) RecordSent(ctx context.Context, id string, fireAt time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO sent_notifications (notification_id, fire_at, sent_at) VALUES (?, ?, ?)`,
		id, fireAt.UTC(), time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("record sent notification: %w", err)
	}
	return nil
}

// WasSent checks if the occurrence was already delivered.
func (s *NotificationStore) WasSent(ctx context.Context, id string, fireAt time.Time) (bool, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM sent_notifications WHERE notification_id = ? AND fire_at = ?`,
		id, fireAt.UTC(),
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("check sent notification: %w", err)
	}
	return count > 0, nil
}

// CleanupSent deletes sent_notifications older than the given time.
func (s *NotificationStore) CleanupSent(ctx context.Context, before time.Time) (int64, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM sent_notifications WHERE sent_at < ?`, before.UTC())
	if err != nil {
		return 0, fmt.Errorf("cleanup sent notifications: %w", err)
	}
	n, _ := result.RowsAffected()
	return n, nil
}

func scanNotifications(rows *sql.Rows) ([]model.ScheduledNotification, error) {
	var out []model.ScheduledNotification
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, fmt.Errorf("scan scheduled notification: %w", err)
		}
		out = append(out, *n)
	}
	return out, rows.Err()
}
