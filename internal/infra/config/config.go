package config

import (
	"fmt"
	"os"
	"strconv"
	"strings" // For LogLevel normalization
	"time"
	_ "time/tzdata" // TIMEZONE must resolve in minimal containers

	"github.com/joho/godotenv"
)

// AppConfig holds the infrastructure configuration of the service.
// Business settings (integrations, assignment rules) live in the database.
type AppConfig struct {
	DatabaseURL        string
	HTTPAddr           string
	LogLevel           string
	Environment        string
	Timezone           string
	Location           *time.Location
	PhoneRegion        string
	CronSpecStale      string // hourly staleness sweep
	CronSpecSiteVisit  string // daily site-visit reminders
	CronSpecQuote      string // daily quote follow-ups
	CORSAllowedOrigins []string
	SweepSecret        string
	MetaGraphBaseURL   string

	// Optional integrations. Empty values disable them.
	TelegramToken       string
	AdminTelegramID     int64
	TelegramAlertChatID int64
	AMQPURL             string
}

// Load reads configuration from environment variables and .env file (if present).
func Load() (*AppConfig, error) {
	// godotenv.Load will not override existing env variables.
	_ = godotenv.Load()

	cfg := &AppConfig{}
	var err error

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is not set")
	}

	cfg.HTTPAddr = envOr("HTTP_ADDR", ":8080")

	cfg.LogLevel = strings.ToLower(os.Getenv("LOG_LEVEL"))
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}

	cfg.Environment = strings.ToLower(os.Getenv("ENVIRONMENT"))
	if cfg.Environment == "" {
		cfg.Environment = "development"
	}

	cfg.Timezone = envOr("TIMEZONE", "Asia/Karachi")
	cfg.Location, err = time.LoadLocation(cfg.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid TIMEZONE: %w", err)
	}

	cfg.PhoneRegion = strings.ToUpper(envOr("PHONE_REGION", "PK"))

	cfg.CronSpecStale = envOr("CRON_SPEC_STALE", "0 * * * *")          // top of every hour
	cfg.CronSpecSiteVisit = envOr("CRON_SPEC_SITE_VISIT", "0 9 * * *") // 09:00 daily
	cfg.CronSpecQuote = envOr("CRON_SPEC_QUOTE", "0 10 * * *")         // 10:00 daily

	cfg.CORSAllowedOrigins = splitList(envOr("CORS_ALLOWED_ORIGINS", "http://localhost:5173"))
	cfg.SweepSecret = os.Getenv("SWEEP_SECRET")
	cfg.MetaGraphBaseURL = envOr("META_GRAPH_BASE_URL", "https://graph.facebook.com/v19.0")

	cfg.TelegramToken = os.Getenv("TELEGRAM_TOKEN")
	if cfg.AdminTelegramID, err = optionalInt64("ADMIN_TELEGRAM_ID"); err != nil {
		return nil, err
	}
	if cfg.TelegramAlertChatID, err = optionalInt64("TELEGRAM_ALERT_CHAT_ID"); err != nil {
		return nil, err
	}

	cfg.AMQPURL = os.Getenv("AMQP_URL")

	return cfg, nil
}

func envOr(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func optionalInt64(key string) (int64, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return v, nil
}

func splitList(raw string) []string {
	var out []string
	for _, p := range strings.Split(raw, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
