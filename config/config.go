package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config is everything the engine process reads from the environment.
type Config struct {
	Env          string
	Port         string
	DatabaseURL  string
	ServiceToken string
	// Comma-separated CORS origins.
	AllowedOrigins string

	StreakSweepInterval time.Duration
	ReconcileInterval   time.Duration
	LedgerArchiveHour   int

	R2 R2Config
}

type R2Config struct {
	AccountID       string
	AccessKeyID     string
	AccessKeySecret string
	Bucket          string
}

// Enabled reports whether ledger archiving to R2 should run.
func (c R2Config) Enabled() bool {
	return c.Bucket != "" && c.AccountID != ""
}

// Load reads .env (if present) and then the process environment.
// The returned bool is false when no .env file was found.
func Load() (*Config, bool, error) {
	foundDotenv := godotenv.Load() == nil

	cfg := &Config{
		Env:                 String("APP_ENV", "development"),
		Port:                String("PORT", "5200"),
		DatabaseURL:         String("DATABASE_URL", ""),
		ServiceToken:        String("GAME_SERVICE_TOKEN", ""),
		AllowedOrigins:      String("ALLOWED_ORIGINS", "http://localhost:3000"),
		StreakSweepInterval: Duration("STREAK_SWEEP_INTERVAL", time.Hour),
		ReconcileInterval:   Duration("RECONCILE_INTERVAL", 6*time.Hour),
		LedgerArchiveHour:   Int("LEDGER_ARCHIVE_HOUR", 1),
		R2: R2Config{
			AccountID:       String("CLOUDFLARE_ACCOUNT_ID", ""),
			AccessKeyID:     String("R2_ACCESS_KEY_ID", ""),
			AccessKeySecret: String("R2_ACCESS_KEY_SECRET", ""),
			Bucket:          String("R2_BUCKET_NAME", ""),
		},
	}

	if cfg.DatabaseURL == "" {
		return nil, foundDotenv, errors.New("DATABASE_URL environment variable not set")
	}
	if cfg.ServiceToken == "" {
		return nil, foundDotenv, errors.New("GAME_SERVICE_TOKEN environment variable not set")
	}
	if cfg.LedgerArchiveHour < 0 || cfg.LedgerArchiveHour > 23 {
		cfg.LedgerArchiveHour = 1
	}
	return cfg, foundDotenv, nil
}

func String(name, def string) string {
	v := strings.TrimSpace(os.Getenv(name))
	if v == "" {
		return def
	}
	return v
}

func Int(name string, def int) int {
	v := strings.TrimSpace(os.Getenv(name))
	if v == "" {
		return def
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return i
}

// Duration accepts Go duration strings ("90m", "6h").
func Duration(name string, def time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(name))
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return def
	}
	return d
}
