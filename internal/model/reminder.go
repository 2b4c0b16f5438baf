package model

import (
	"fmt"
	"time"
)

// ReminderType is the closed set of reminder kinds.
type ReminderType string

const (
	ReminderOnce        ReminderType = "once"
	ReminderDaily       ReminderType = "daily"
	ReminderWeekly      ReminderType = "weekly"
	ReminderMedication  ReminderType = "medication"
	ReminderAppointment ReminderType = "appointment"
)

var reminderTypes = map[ReminderType]bool{
	ReminderOnce:        true,
	ReminderDaily:       true,
	ReminderWeekly:      true,
	ReminderMedication:  true,
	ReminderAppointment: true,
}

// Valid reports whether t is one of the known reminder types.
func (t ReminderType) Valid() bool {
	return reminderTypes[t]
}

// OneShot reports whether reminders of this type fire exactly once.
func (t ReminderType) OneShot() bool {
	return t == ReminderOnce || t == ReminderMedication || t == ReminderAppointment
}

// ParseReminderType converts a string into a ReminderType.
func ParseReminderType(s string) (ReminderType, error) {
	t := ReminderType(s)
	if !t.Valid() {
		return "", fmt.Errorf("unknown reminder type %q", s)
	}
	return t, nil
}

// Registration links a reminder to one scheduled notification.
// Weekday is 1..7 (Mon..Sun) for weekly reminders and 0 otherwise.
type Registration struct {
	Weekday        int    `json:"weekday" firestore:"weekday"`
	NotificationID string `json:"notification_id" firestore:"notificationId"`
}

type Reminder struct {
	ID            string         `json:"id" firestore:"-"`
	UserID        string         `json:"user_id" firestore:"userId"`
	Title         string         `json:"title" firestore:"title"`
	Description   string         `json:"description" firestore:"description"`
	DateTime      time.Time      `json:"date_time" firestore:"dateTime"`
	Type          ReminderType   `json:"type" firestore:"type"`
	Weekdays      []int          `json:"weekdays" firestore:"weekdays"`
	IsCompleted   bool           `json:"is_completed" firestore:"isCompleted"`
	Registrations []Registration `json:"registrations" firestore:"registrations"`
	VoicePrompt   string         `json:"voice_prompt" firestore:"voicePrompt"`
	Color         string         `json:"color" firestore:"color"`
	CreatedAt     time.Time      `json:"created_at" firestore:"createdAt"`
	UpdatedAt     time.Time      `json:"updated_at" firestore:"updatedAt"`
}

// NotificationIDs returns the ids of all current registrations in order.
func (r *Reminder) NotificationIDs() []string {
	ids := make([]string, 0, len(r.Registrations))
	for _, reg := range r.Registrations {
		ids = append(ids, reg.NotificationID)
	}
	return ids
}
