package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config keeps runtime settings for the planner.
type Config struct {
	TelegramToken  string
	DatabaseURL    string
	ReportInterval time.Duration
	WarmupAt       string
	Log            LogConfig
}

type LogConfig struct {
	Level      string // debug, info, warn, error
	Format     string // json, text
	Output     string // stdout, file, both
	FilePath   string
	MaxSize    int // MB
	MaxBackups int
	MaxAge     int // days
}

// Load reads configuration from the environment (and .env, when present)
// with sane defaults. The Telegram token is checked by RequireTelegram so
// the CLI commands can run without it.
func Load() (Config, error) {
	// .env is optional; real environment wins.
	_ = godotenv.Load()

	cfg := Config{
		TelegramToken:  strings.TrimSpace(os.Getenv("TELEGRAM_TOKEN")),
		DatabaseURL:    strings.TrimSpace(os.Getenv("DATABASE_URL")),
		ReportInterval: parseInterval(strings.TrimSpace(os.Getenv("REPORT_INTERVAL_HOURS"))),
		WarmupAt:       strings.TrimSpace(os.Getenv("WARMUP_AT")),
		Log: LogConfig{
			Level:      strings.ToLower(strings.TrimSpace(os.Getenv("LOG_LEVEL"))),
			Format:     strings.ToLower(strings.TrimSpace(os.Getenv("LOG_FORMAT"))),
			Output:     strings.ToLower(strings.TrimSpace(os.Getenv("LOG_OUTPUT"))),
			FilePath:   strings.TrimSpace(os.Getenv("LOG_FILE")),
			MaxSize:    parseInt(os.Getenv("LOG_MAX_SIZE_MB"), 100),
			MaxBackups: parseInt(os.Getenv("LOG_MAX_BACKUPS"), 5),
			MaxAge:     parseInt(os.Getenv("LOG_MAX_AGE_DAYS"), 30),
		},
	}

	if cfg.DatabaseURL == "" {
		cfg.DatabaseURL = "fleet_planner.db"
	}
	if cfg.ReportInterval == 0 {
		cfg.ReportInterval = 24 * time.Hour
	}
	if cfg.WarmupAt == "" {
		cfg.WarmupAt = "06:00"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "text"
	}
	if cfg.Log.Output == "" {
		cfg.Log.Output = "stdout"
	}
	if cfg.Log.FilePath == "" {
		cfg.Log.FilePath = "logs/fleet-planner.log"
	}

	switch cfg.Log.Output {
	case "stdout", "file", "both":
	default:
		return cfg, fmt.Errorf("LOG_OUTPUT must be stdout, file or both, got %q", cfg.Log.Output)
	}

	return cfg, nil
}

// RequireTelegram fails when the bot cannot start.
func (c Config) RequireTelegram() error {
	if c.TelegramToken == "" {
		return fmt.Errorf("TELEGRAM_TOKEN is required")
	}
	return nil
}

func parseInterval(raw string) time.Duration {
	if raw == "" {
		return 0
	}
	hours, err := time.ParseDuration(raw + "h")
	if err != nil || hours <= 0 {
		return 0
	}
	return hours
}

func parseInt(raw string, def int) int {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || n <= 0 {
		return def
	}
	return n
}
