package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Default config file path.
const DefaultConfigPath = "~/.config/llmredi/config.yaml"

// Environment overrides.
const (
	EnvAPIBaseURL = "LLMREDI_API_BASE_URL"
	EnvLogLevel   = "LLMREDI_LOG_LEVEL"
	EnvDebug      = "LLMREDI_DEBUG"
)

// Config holds all llmredi configuration.
type Config struct {
	API           APIConfig          `yaml:"api"`
	Polling       PollingConfig      `yaml:"polling"`
	Notifications NotificationConfig `yaml:"notifications"`
	Storage       StorageConfig      `yaml:"storage"`
	Logging       LoggingConfig      `yaml:"logging"`
}

type APIConfig struct {
	BaseURL string `yaml:"base_url"`
	// Timeout of zero leaves requests to the transport defaults.
	Timeout time.Duration `yaml:"timeout"`
	// RateLimit is requests per second; zero disables limiting.
	RateLimit float64 `yaml:"rate_limit"`
	Burst     int     `yaml:"burst"`
	Debug     bool    `yaml:"debug"`
}

type PollingConfig struct {
	JobInterval      time.Duration `yaml:"job_interval"`
	OptimizeInterval time.Duration `yaml:"optimize_interval"`
	// MaxPollDuration bounds how long a non-terminal job is polled before
	// it is marked stalled. Zero polls indefinitely.
	MaxPollDuration time.Duration `yaml:"max_poll_duration"`
	MaxConcurrent   int           `yaml:"max_concurrent"`
	WaitTimeout     time.Duration `yaml:"wait_timeout"`
}

type NotificationConfig struct {
	TTL time.Duration `yaml:"ttl"`
}

type StorageConfig struct {
	Path       string `yaml:"path"`
	SQLiteFile string `yaml:"sqlite_file"`
}

type LoggingConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
}

// Load reads a YAML config file at path, merges it with defaults and
// applies environment overrides.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// LoadOrCreate loads the config from the default path, creating it with
// defaults when missing.
func LoadOrCreate() (*Config, error) {
	path, err := ExpandPath(DefaultConfigPath)
	if err != nil {
		return nil, err
	}
	return LoadOrCreateAt(path)
}

// LoadOrCreateAt loads the config from the given path. If the file does
// not exist, it creates the directory structure and writes defaults.
func LoadOrCreateAt(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		cfg := DefaultConfig()

		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("creating config directory: %w", err)
		}

		data, err := yaml.Marshal(cfg)
		if err != nil {
			return nil, fmt.Errorf("marshaling default config: %w", err)
		}

		if err := os.WriteFile(path, data, 0o644); err != nil {
			return nil, fmt.Errorf("writing default config: %w", err)
		}

		if err := cfg.applyEnv(); err != nil {
			return nil, err
		}
		return cfg, cfg.Validate()
	}

	return Load(path)
}

// loadEnvFiles loads .env.local then .env from the working directory.
// Variables already set in the environment win; missing files are ignored.
func loadEnvFiles() error {
	for _, f := range []string{".env.local", ".env"} {
		if err := godotenv.Load(f); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("load %s: %w", f, err)
		}
	}
	return nil
}

func (c *Config) applyEnv() error {
	if err := loadEnvFiles(); err != nil {
		return err
	}

	if v := os.Getenv(EnvAPIBaseURL); v != "" {
		c.API.BaseURL = v
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv(EnvDebug); v != "" {
		c.API.Debug = strings.EqualFold(v, "true") || v == "1"
	}
	return nil
}

// Validate rejects configurations the client cannot run with.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.API.BaseURL) == "" {
		return fmt.Errorf("api.base_url must not be empty")
	}
	if c.Polling.JobInterval <= 0 {
		return fmt.Errorf("polling.job_interval must be positive")
	}
	if c.Polling.OptimizeInterval <= 0 {
		return fmt.Errorf("polling.optimize_interval must be positive")
	}
	if c.Polling.MaxPollDuration < 0 {
		return fmt.Errorf("polling.max_poll_duration must not be negative")
	}
	if c.Notifications.TTL <= 0 {
		return fmt.Errorf("notifications.ttl must be positive")
	}
	return nil
}

// DatabasePath resolves the SQLite file location.
func (c *Config) DatabasePath() (string, error) {
	dir, err := ExpandPath(c.Storage.Path)
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, c.Storage.SQLiteFile), nil
}

// LogPath resolves the log file location. Relative names live next to the database.
func (c *Config) LogPath() (string, error) {
	if c.Logging.File == "" {
		return "", nil
	}
	p, err := ExpandPath(c.Logging.File)
	if err != nil {
		return "", err
	}
	if filepath.IsAbs(p) {
		return p, nil
	}
	dir, err := ExpandPath(c.Storage.Path)
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, p), nil
}

// ExpandPath replaces a leading ~ with the user's home directory.
func ExpandPath(path string) (string, error) {
	if len(path) > 0 && path[0] == '~' {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolving home directory: %w", err)
		}
		return filepath.Join(home, path[1:]), nil
	}
	return path, nil
}
