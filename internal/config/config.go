package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Port string

	DBDriver    string
	DatabaseURL string

	WebhookSecret string
	AdminToken    string

	// AI provider (any OpenAI-compatible endpoint)
	OpenAIAPIKey  string
	OpenAIModel   string
	OpenAIBaseURL string

	// Green-API gateway
	GreenAPIBaseURL    string
	GreenAPIIDInstance string
	GreenAPIToken      string

	PacingMin     time.Duration
	PacingMax     time.Duration
	HistoryWindow int

	HTTPWriteTimeout time.Duration

	LogLevel  string
	LogFormat string
}

// Load reads .env (if present) and the process environment.
func Load() (Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.AutomaticEnv()

	v.SetDefault("PORT", "8080")
	v.SetDefault("DB_DRIVER", "postgres")
	v.SetDefault("OPENAI_MODEL", "gpt-4o-mini")
	v.SetDefault("GREEN_API_BASE_URL", "https://api.green-api.com")
	v.SetDefault("PACING_MIN_MS", 1000)
	v.SetDefault("PACING_MAX_MS", 5000)
	v.SetDefault("HISTORY_WINDOW", 30)
	v.SetDefault("HTTP_WRITE_TIMEOUT", "30s")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "text")

	writeTimeout, err := time.ParseDuration(v.GetString("HTTP_WRITE_TIMEOUT"))
	if err != nil {
		return Config{}, fmt.Errorf("HTTP_WRITE_TIMEOUT: %w", err)
	}

	cfg := Config{
		Port: v.GetString("PORT"),

		DBDriver:    strings.ToLower(strings.TrimSpace(v.GetString("DB_DRIVER"))),
		DatabaseURL: v.GetString("DATABASE_URL"),

		WebhookSecret: v.GetString("WEBHOOK_SECRET"),
		AdminToken:    v.GetString("ADMIN_TOKEN"),

		OpenAIAPIKey:  v.GetString("OPENAI_API_KEY"),
		OpenAIModel:   v.GetString("OPENAI_MODEL"),
		OpenAIBaseURL: v.GetString("OPENAI_BASE_URL"),

		GreenAPIBaseURL:    strings.TrimRight(v.GetString("GREEN_API_BASE_URL"), "/"),
		GreenAPIIDInstance: strings.TrimSpace(v.GetString("GREEN_API_ID_INSTANCE")),
		GreenAPIToken:      strings.TrimSpace(v.GetString("GREEN_API_TOKEN")),

		PacingMin:     time.Duration(v.GetInt("PACING_MIN_MS")) * time.Millisecond,
		PacingMax:     time.Duration(v.GetInt("PACING_MAX_MS")) * time.Millisecond,
		HistoryWindow: v.GetInt("HISTORY_WINDOW"),

		HTTPWriteTimeout: writeTimeout,

		LogLevel:  v.GetString("LOG_LEVEL"),
		LogFormat: v.GetString("LOG_FORMAT"),
	}
	if cfg.HistoryWindow <= 0 {
		cfg.HistoryWindow = 30
	}
	return cfg, nil
}

// ValidateStorage checks what the migrate command needs.
func (c Config) ValidateStorage() error {
	switch c.DBDriver {
	case "postgres", "sqlite":
	default:
		return fmt.Errorf("DB_DRIVER must be postgres or sqlite, got %q", c.DBDriver)
	}
	if c.DatabaseURL == "" {
		return errors.New("DATABASE_URL is not set")
	}
	return nil
}

// Validate checks everything the server needs to handle deliveries.
func (c Config) Validate() error {
	if err := c.ValidateStorage(); err != nil {
		return err
	}
	var errs []error
	if c.OpenAIAPIKey == "" {
		errs = append(errs, errors.New("OPENAI_API_KEY is not set"))
	}
	if c.GreenAPIIDInstance == "" || c.GreenAPIToken == "" {
		errs = append(errs, errors.New("GREEN_API_ID_INSTANCE / GREEN_API_TOKEN are not set"))
	}
	if c.PacingMin < 0 || c.PacingMax < c.PacingMin {
		errs = append(errs, fmt.Errorf("invalid pacing bounds: min=%s max=%s", c.PacingMin, c.PacingMax))
	}
	// pacing must leave headroom for the generator and the gateway call
	if c.HTTPWriteTimeout > 0 && c.PacingMax >= c.HTTPWriteTimeout/2 {
		errs = append(errs, fmt.Errorf("PACING_MAX_MS (%s) must stay below half of HTTP_WRITE_TIMEOUT (%s)", c.PacingMax, c.HTTPWriteTimeout))
	}
	return errors.Join(errs...)
}
