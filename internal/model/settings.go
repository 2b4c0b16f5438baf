package model

import "time"

// SettingVoiceEnabled toggles reading fired reminders aloud. Stored as a
// strconv bool.
const SettingVoiceEnabled = "voice_enabled"

// Setting is one preference of one user. Keys are unique per user.
type Setting struct {
	UserID    string    `json:"user_id"`
	Key       string    `json:"key"`
	Value     string    `json:"value"`
	UpdatedAt time.Time `json:"updated_at"`
}
