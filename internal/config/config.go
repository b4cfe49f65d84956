package config

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/tailscale/hujson"
)

type Config struct {
	DBPath         string `json:"db_path"`
	StorageKey     string `json:"storage_key"`
	WebEnabled     bool   `json:"web_enabled"`
	WebPort        int    `json:"web_port"`
	Locale         string `json:"locale"`
	ReminderLead   string `json:"reminder_lead"`
	RearmReminders bool   `json:"rearm_reminders"`
	LogLevel       string `json:"log_level"`
}

func Default() Config {
	return Config{
		StorageKey:   "todoTasks",
		WebPort:      8080,
		Locale:       "en-US",
		ReminderLead: "1h",
		LogLevel:     "info",
	}
}

func DefaultConfigPath() (string, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, "lazytodo", "config.json"), nil
}

func EnsureDir(path string) error {
	dir := filepath.Dir(path)
	return os.MkdirAll(dir, 0o755)
}

// Load reads the config file, accepting comments and trailing commas.
// A missing file yields the defaults.
func Load(path string) (Config, error) {
	config := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return config, nil
		}
		return Config{}, err
	}

	standard, err := hujson.Standardize(data)
	if err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	if err := json.Unmarshal(standard, &config); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	return config, nil
}

func Save(path string, cfg Config) error {
	if err := EnsureDir(path); err != nil {
		return err
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0o644)
}

// Lead returns the reminder offset, falling back to one hour when unset or invalid.
func (c Config) Lead() time.Duration {
	lead, err := time.ParseDuration(strings.TrimSpace(c.ReminderLead))
	if err != nil || lead <= 0 {
		return time.Hour
	}
	return lead
}

func (c Config) Level() slog.Level {
	switch strings.ToLower(strings.TrimSpace(c.LogLevel)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
