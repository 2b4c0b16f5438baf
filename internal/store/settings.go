package store

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"time"

	"github.com/dukerupert/smartassist/internal/model"
)

// SettingsStore holds per-user preferences as key/value pairs.
type SettingsStore struct {
	db *sql.DB
}

func NewSettingsStore(db *sql.DB) *SettingsStore {
	return &SettingsStore{db: db}
}

// Get returns the value for key, or ok=false if the user never set it.
func (s *SettingsStore) Get(ctx context.Context, userID, key string) (value string, ok bool, err error) {
	err = s.db.QueryRowContext(ctx,
		`SELECT value FROM settings WHERE user_id = ? AND key = ?`, userID, key,
	).Scan(&value)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get setting %q: %w", key, err)
	}
	return value, true, nil
}

// GetAll returns the user's settings ordered by key.
func (s *SettingsStore) GetAll(ctx context.Context, userID string) ([]model.Setting, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT user_id, key, value, updated_at FROM settings WHERE user_id = ? ORDER BY key`, userID,
	)
	if err != nil {
		return nil, fmt.Errorf("get all settings: %w", err)
	}
	defer rows.Close()

	var settings []model.Setting
	for rows.Next() {
		var st model.Setting
		if err := rows.Scan(&st.UserID, &st.Key, &st.Value, &st.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan setting: %w", err)
		}
		settings = append(settings, st)
	}
	return settings, rows.Err()
}

func (s *SettingsStore) Set(ctx context.Context, userID, key, value string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO settings (user_id, key, value, updated_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(user_id, key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		userID, key, value, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("set setting %q: %w", key, err)
	}
	return nil
}

// VoiceEnabled reports whether reminders should be read aloud. Defaults to false.
func (s *SettingsStore) VoiceEnabled(ctx context.Context, userID string) (bool, error) {
	v, ok, err := s.Get(ctx, userID, model.SettingVoiceEnabled)
	if err != nil || !ok {
		return false, err
	}
	enabled, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("parse %s: %w", model.SettingVoiceEnabled, err)
	}
	return enabled, nil
}

func (s *SettingsStore) SetVoiceEnabled(ctx context.Context, userID string, enabled bool) error {
	return s.Set(ctx, userID, model.SettingVoiceEnabled, strconv.FormatBool(enabled))
}
