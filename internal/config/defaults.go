package config

import "time"

// DefaultConfig returns a Config populated with all default values.
func DefaultConfig() *Config {
	return &Config{
		API: APIConfig{
			BaseURL:   "https://parthgoai.pythonanywhere.com",
			Timeout:   0,
			RateLimit: 0,
			Burst:     1,
			Debug:     false,
		},
		Polling: PollingConfig{
			JobInterval:      2 * time.Second,
			OptimizeInterval: 3 * time.Second,
			MaxPollDuration:  30 * time.Minute,
			MaxConcurrent:    4,
			WaitTimeout:      5 * time.Minute,
		},
		Notifications: NotificationConfig{
			TTL: 5 * time.Second,
		},
		Storage: StorageConfig{
			Path:       "~/.config/llmredi",
			SQLiteFile: "llmredi.db",
		},
		Logging: LoggingConfig{
			Level: "info",
			File:  "llmredi.log",
		},
	}
}
