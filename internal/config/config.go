// Package config loads settings from defaults, an optional YAML file and
// SMARTASSIST_* environment variables, in that order of precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

const (
	BackendSQLite    = "sqlite"
	BackendFirestore = "firestore"

	envPrefix = "SMARTASSIST_"
)

type Config struct {
	Log          LogConfig          `koanf:"log"`
	HTTP         HTTPConfig         `koanf:"http"`
	Database     DatabaseConfig     `koanf:"database"`
	Store        StoreConfig        `koanf:"store"`
	Firestore    FirestoreConfig    `koanf:"firestore"`
	Push         PushConfig         `koanf:"push"`
	Notify       NotifyConfig       `koanf:"notify"`
	Voice        VoiceConfig        `koanf:"voice"`
	Reminder     ReminderConfig     `koanf:"reminder"`
	Housekeeping HousekeepingConfig `koanf:"housekeeping"`
	RateLimit    RateLimitConfig    `koanf:"ratelimit"`
}

type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"` // text or json
}

type HTTPConfig struct {
	Port int `koanf:"port"`
}

type DatabaseConfig struct {
	Path string `koanf:"path"`
}

type StoreConfig struct {
	Backend string `koanf:"backend"` // sqlite or firestore
}

type FirestoreConfig struct {
	ProjectID string `koanf:"project_id"`
}

type PushConfig struct {
	VAPIDPublicKey  string `koanf:"vapid_public_key"`
	VAPIDPrivateKey string `koanf:"vapid_private_key"`
	Subscriber      string `koanf:"subscriber"`
}

// Enabled reports whether both VAPID keys are configured.
func (p PushConfig) Enabled() bool {
	return p.VAPIDPublicKey != "" && p.VAPIDPrivateKey != ""
}

type NotifyConfig struct {
	PollInterval time.Duration `koanf:"poll_interval"`
}

type VoiceConfig struct {
	GeminiAPIKey string `koanf:"gemini_api_key"`
	Model        string `koanf:"model"`
	VoiceName    string `koanf:"voice_name"`
}

type ReminderConfig struct {
	Location            string `koanf:"location"`
	RestoreOnUncomplete bool   `koanf:"restore_on_uncomplete"`
}

type HousekeepingConfig struct {
	SentRetention     time.Duration `koanf:"sent_retention"`
	ReconcileInterval time.Duration `koanf:"reconcile_interval"`
}

type RateLimitConfig struct {
	PerMinute int `koanf:"per_minute"`
}

// Load builds the configuration. A .env file in the working directory is
// applied to the environment first. configPath may be empty.
func Load(configPath string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	k := koanf.New(".")

	if err := k.Load(defaultProvider(), nil); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}

	if configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file: %w", err)
		}
	}

	if err := k.Load(env.Provider(envPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("load env vars: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return &cfg, nil
}

// envKey maps SMARTASSIST_PUSH__VAPID_PUBLIC_KEY to push.vapid_public_key.
func envKey(s string) string {
	s = strings.ToLower(strings.TrimPrefix(s, envPrefix))
	return strings.ReplaceAll(s, "__", ".")
}

func (c *Config) Validate() error {
	switch c.Store.Backend {
	case BackendSQLite:
		if c.Database.Path == "" {
			return errors.New("database.path is required for the sqlite backend")
		}
	case BackendFirestore:
		if c.Firestore.ProjectID == "" {
			return errors.New("firestore.project_id is required for the firestore backend")
		}
	default:
		return fmt.Errorf("unknown store backend %q (supported: %s, %s)", c.Store.Backend, BackendSQLite, BackendFirestore)
	}

	if c.Log.Format != "text" && c.Log.Format != "json" {
		return fmt.Errorf("log.format %q must be text or json", c.Log.Format)
	}
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port %d out of range", c.HTTP.Port)
	}
	if c.Notify.PollInterval <= 0 {
		return errors.New("notify.poll_interval must be positive")
	}
	if c.Housekeeping.SentRetention <= 0 {
		return errors.New("housekeeping.sent_retention must be positive")
	}
	if c.Housekeeping.ReconcileInterval <= 0 {
		return errors.New("housekeeping.reconcile_interval must be positive")
	}
	if c.RateLimit.PerMinute <= 0 {
		return errors.New("ratelimit.per_minute must be positive")
	}
	if (c.Push.VAPIDPublicKey == "") != (c.Push.VAPIDPrivateKey == "") {
		return errors.New("push.vapid_public_key and push.vapid_private_key must be set together")
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	return nil
}

// Location resolves reminder.location, the zone reminder times are entered in.
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Reminder.Location)
	if err != nil {
		return nil, fmt.Errorf("reminder.location: %w", err)
	}
	return loc, nil
}
