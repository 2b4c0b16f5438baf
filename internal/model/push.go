package model

import "time"

// Notification type constants
const (
	NotifTypeReminder = "reminder"
)

type PushSubscription struct {
	ID         int64     `json:"id"`
	UserID     string    `json:"user_id"`
	Endpoint   string    `json:"endpoint"`
	P256dhKey  string    `json:"p256dh_key"`
	AuthKey    string    `json:"auth_key"`
	DeviceName string    `json:"device_name"`
	CreatedAt  time.Time `json:"created_at"`
}

// ScheduledNotification is one registration held by the notification gateway.
// One-shot entries have an empty Rule and fire once at NextFireAt; recurring
// entries carry an RRULE (FREQ=DAILY or FREQ=WEEKLY;BYDAY=..) and fire at Hour:Minute.
type ScheduledNotification struct {
	ID         string            `json:"id"`
	UserID     string            `json:"user_id"`
	Title      string            `json:"title"`
	Body       string            `json:"body"`
	Rule       string            `json:"rule,omitempty"`
	Hour       int               `json:"hour"`
	Minute     int               `json:"minute"`
	NextFireAt time.Time         `json:"next_fire_at"`
	Payload    map[string]string `json:"payload"`
	CreatedAt  time.Time         `json:"created_at"`
}
