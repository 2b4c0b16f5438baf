package config

import "github.com/knadh/koanf/providers/confmap"

func defaults() map[string]any {
	return map[string]any{
		"log": map[string]any{
			"level":  "info",
			"format": "text",
		},
		"http": map[string]any{
			"port": 8080,
		},
		"database": map[string]any{
			"path": "smartassist.db",
		},
		"store": map[string]any{
			"backend": BackendSQLite,
		},
		"firestore": map[string]any{
			"project_id": "",
		},
		"push": map[string]any{
			"vapid_public_key":  "",
			"vapid_private_key": "",
			"subscriber":        "",
		},
		"notify": map[string]any{
			"poll_interval": "15s",
		},
		"voice": map[string]any{
			"gemini_api_key": "",
			"model":          "gemini-2.5-flash-preview-tts",
			"voice_name":     "Kore",
		},
		"reminder": map[string]any{
			"location":              "Local",
			"restore_on_uncomplete": false,
		},
		"housekeeping": map[string]any{
			"sent_retention":     "720h",
			"reconcile_interval": "1h",
		},
		"ratelimit": map[string]any{
			"per_minute": 60,
		},
	}
}

func defaultProvider() *confmap.Confmap {
	return confmap.Provider(defaults(), ".")
}
