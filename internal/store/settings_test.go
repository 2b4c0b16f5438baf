package store

import (
	"context"
	"testing"

	"github.com/dukerupert/smartassist/internal/database"
	"github.com/dukerupert/smartassist/internal/model"
)

func setupSettingsTestDB(t *testing.T) *SettingsStore {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewSettingsStore(db)
}

func TestSettingsGetNotFound(t *testing.T) {
	s := setupSettingsTestDB(t)

	_, ok, err := s.Get(context.Background(), "u1", "nonexistent")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if ok {
		t.Error("expected ok=false for unknown key")
	}
}

func TestSettingsSet(t *testing.T) {
	s := setupSettingsTestDB(t)
	ctx := context.Background()

	if err := s.Set(ctx, "u1", "theme", "dark"); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := s.Set(ctx, "u1", "theme", "light"); err != nil {
		t.Fatalf("overwrite: %v", err)
	}

	val, ok, err := s.Get(ctx, "u1", "theme")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !ok || val != "light" {
		t.Errorf("value = %q (ok=%v), want %q", val, ok, "light")
	}

	// Settings are per user
	if _, ok, _ := s.Get(ctx, "u2", "theme"); ok {
		t.Error("u2 should not see u1's setting")
	}
}

func TestSettingsGetAll(t *testing.T) {
	s := setupSettingsTestDB(t)
	ctx := context.Background()

	s.Set(ctx, "u1", "b", "2")
	s.Set(ctx, "u1", "a", "1")

	all, err := s.GetAll(ctx, "u1")
	if err != nil {
		t.Fatalf("get all: %v", err)
	}
	if len(all) != 2 || all[0].Key != "a" || all[1].Key != "b" {
		t.Errorf("settings = %+v, want keys [a b]", all)
	}
	for _, st := range all {
		if st.UserID != "u1" {
			t.Errorf("setting %q user = %q, want u1", st.Key, st.UserID)
		}
	}

	other, err := s.GetAll(ctx, "u2")
	if err != nil {
		t.Fatalf("get all for other user: %v", err)
	}
	if len(other) != 0 {
		t.Errorf("other user settings = %+v, want none", other)
	}
}

func TestVoiceEnabled(t *testing.T) {
	s := setupSettingsTestDB(t)
	ctx := context.Background()

	enabled, err := s.VoiceEnabled(ctx, "u1")
	if err != nil {
		t.Fatalf("voice enabled: %v", err)
	}
	if enabled {
		t.Error("voice should default to disabled")
	}

	if err := s.SetVoiceEnabled(ctx, "u1", true); err != nil {
		t.Fatalf("set voice enabled: %v", err)
	}
	if enabled, _ := s.VoiceEnabled(ctx, "u1"); !enabled {
		t.Error("expected voice enabled")
	}

	s.Set(ctx, "u1", model.SettingVoiceEnabled, "sometimes")
	if _, err := s.VoiceEnabled(ctx, "u1"); err == nil {
		t.Error("expected parse error for invalid value")
	}
}
