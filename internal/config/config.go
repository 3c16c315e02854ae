// Package config loads and validates application configuration from environment variables.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Storage backends.
const (
	StoragePostgres = "postgres"
	StorageMemory   = "memory"
)

// Config holds all configuration values for the API server.
// Values are populated by Load from environment variables.
type Config struct {
	// Port is the TCP port the HTTP server listens on. Defaults to "8080".
	Port string

	// Storage selects the repository backend: "postgres" (default) or "memory".
	Storage string

	// DatabaseURL is the Postgres connection string. Required for postgres storage.
	DatabaseURL string

	// LogLevel is the minimum slog level. Defaults to info.
	LogLevel slog.Level

	// CORSOrigins is the list of allowed cross-origin request origins.
	// Defaults to ["http://localhost:5173"] (Vite dev server).
	// Set CORS_ORIGINS to a comma-separated list to override.
	CORSOrigins []string

	// JWTSecret is the HS256 key bearer tokens are signed with. Required.
	JWTSecret string

	// MaxBodyBytes caps request bodies. Defaults to 1 MiB.
	MaxBodyBytes int64

	PlatformFeeRate        float64
	VATRate                float64
	InsuranceFeePerDiver   float64
	DefaultConservationFee float64

	// SiteFeeCacheTTL is how long a site's conservation fee is cached.
	SiteFeeCacheTTL time.Duration

	// PromotionWindow is how long a promoted waitlist diver has to book.
	PromotionWindow time.Duration

	// WaitlistSweepInterval is how often expired promotions are swept.
	// Zero disables the sweep.
	WaitlistSweepInterval time.Duration

	// TelegramBotToken enables Telegram notifications when set.
	TelegramBotToken string

	// SendGridAPIKey enables email notifications when set. EmailFrom is
	// then required.
	SendGridAPIKey string
	EmailFrom      string
}

// LoadDotEnv copies variables from the given .env files (default ".env")
// into the process environment without overriding variables already set.
// Missing files are ignored.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("config.LoadDotEnv: %s: %w", f, err)
		}
	}
	return nil
}

// Load reads configuration from environment variables and returns a Config.
// Returns an error listing every required variable that is not set and
// every value that cannot be parsed.
func Load() (Config, error) {
	p := parser{}
	cfg := Config{
		Port:        getEnv("PORT", "8080"),
		Storage:     strings.ToLower(getEnv("STORAGE", StoragePostgres)),
		DatabaseURL: os.Getenv("DATABASE_URL"),
		CORSOrigins: splitCSV(getEnv("CORS_ORIGINS", "http://localhost:5173")),
		JWTSecret:   os.Getenv("JWT_SECRET"),

		MaxBodyBytes: p.int64("MAX_BODY_BYTES", 1<<20),

		PlatformFeeRate:        p.float("PLATFORM_FEE_RATE", 0.05),
		VATRate:                p.float("VAT_RATE", 0.15),
		InsuranceFeePerDiver:   p.float("INSURANCE_FEE_PER_DIVER", 15),
		DefaultConservationFee: p.float("DEFAULT_CONSERVATION_FEE", 35),

		SiteFeeCacheTTL:       p.duration("SITE_FEE_CACHE_TTL", 10*time.Minute),
		PromotionWindow:       p.duration("PROMOTION_WINDOW", 24*time.Hour),
		WaitlistSweepInterval: p.duration("WAITLIST_SWEEP_INTERVAL", 5*time.Minute),

		TelegramBotToken: os.Getenv("TELEGRAM_BOT_TOKEN"),
		SendGridAPIKey:   os.Getenv("SENDGRID_API_KEY"),
		EmailFrom:        os.Getenv("EMAIL_FROM"),
	}
	if err := cfg.LogLevel.UnmarshalText([]byte(getEnv("LOG_LEVEL", "info"))); err != nil {
		p.invalid = append(p.invalid, "LOG_LEVEL")
	}

	var missing []string
	switch cfg.Storage {
	case StoragePostgres:
		if cfg.DatabaseURL == "" {
			missing = append(missing, "DATABASE_URL")
		}
	case StorageMemory:
	default:
		p.invalid = append(p.invalid, "STORAGE")
	}
	if cfg.JWTSecret == "" {
		missing = append(missing, "JWT_SECRET")
	}
	if cfg.SendGridAPIKey != "" && cfg.EmailFrom == "" {
		missing = append(missing, "EMAIL_FROM")
	}
	if cfg.MaxBodyBytes <= 0 {
		p.invalid = append(p.invalid, "MAX_BODY_BYTES")
	}
	if cfg.PromotionWindow <= 0 {
		p.invalid = append(p.invalid, "PROMOTION_WINDOW")
	}

	var errs []error
	if len(missing) > 0 {
		errs = append(errs, fmt.Errorf("required environment variables not set: %s", strings.Join(missing, ", ")))
	}
	if len(p.invalid) > 0 {
		errs = append(errs, fmt.Errorf("invalid environment variables: %s", strings.Join(p.invalid, ", ")))
	}
	if err := errors.Join(errs...); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// parser reads typed variables and remembers the names of the ones it
// could not parse.
type parser struct {
	invalid []string
}

func (p *parser) float(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || f < 0 {
		p.invalid = append(p.invalid, key)
		return fallback
	}
	return f
}

func (p *parser) int64(key string, fallback int64) int64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		p.invalid = append(p.invalid, key)
		return fallback
	}
	return n
}

func (p *parser) duration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil || d < 0 {
		p.invalid = append(p.invalid, key)
		return fallback
	}
	return d
}

// getEnv returns the value of the environment variable named by key,
// or fallback if the variable is not set or is empty.
func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// splitCSV splits a comma-separated string into a trimmed slice, ignoring empty entries.
func splitCSV(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if t := strings.TrimSpace(part); t != "" {
			out = append(out, t)
		}
	}
	return out
}
