package config

import (
	"strings"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/wa")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Port != "8080" {
		t.Errorf("Port = %q, want %q", cfg.Port, "8080")
	}
	if cfg.DBDriver != "postgres" {
		t.Errorf("DBDriver = %q, want %q", cfg.DBDriver, "postgres")
	}
	if cfg.PacingMin != time.Second || cfg.PacingMax != 5*time.Second {
		t.Errorf("pacing = %s..%s, want 1s..5s", cfg.PacingMin, cfg.PacingMax)
	}
	if cfg.HistoryWindow != 30 {
		t.Errorf("HistoryWindow = %d, want 30", cfg.HistoryWindow)
	}
	if cfg.GreenAPIBaseURL != "https://api.green-api.com" {
		t.Errorf("GreenAPIBaseURL = %q", cfg.GreenAPIBaseURL)
	}
	if cfg.HTTPWriteTimeout != 30*time.Second {
		t.Errorf("HTTPWriteTimeout = %s, want 30s", cfg.HTTPWriteTimeout)
	}
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("DB_DRIVER", " SQLite ")
	t.Setenv("DATABASE_URL", "file:wa.db")
	t.Setenv("PACING_MIN_MS", "0")
	t.Setenv("PACING_MAX_MS", "250")
	t.Setenv("HISTORY_WINDOW", "10")
	t.Setenv("GREEN_API_BASE_URL", "https://7103.api.greenapi.com/")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.DBDriver != "sqlite" {
		t.Errorf("DBDriver = %q, want sqlite", cfg.DBDriver)
	}
	if cfg.PacingMin != 0 || cfg.PacingMax != 250*time.Millisecond {
		t.Errorf("pacing = %s..%s, want 0s..250ms", cfg.PacingMin, cfg.PacingMax)
	}
	if cfg.HistoryWindow != 10 {
		t.Errorf("HistoryWindow = %d, want 10", cfg.HistoryWindow)
	}
	if cfg.GreenAPIBaseURL != "https://7103.api.greenapi.com" {
		t.Errorf("GreenAPIBaseURL = %q, trailing slash not trimmed", cfg.GreenAPIBaseURL)
	}
}

func TestLoad_BadWriteTimeout(t *testing.T) {
	t.Setenv("HTTP_WRITE_TIMEOUT", "soon")
	if _, err := Load(); err == nil {
		t.Fatal("expected error for unparseable HTTP_WRITE_TIMEOUT")
	}
}

func validConfig() Config {
	return Config{
		DBDriver:           "postgres",
		DatabaseURL:        "postgres://localhost/wa",
		OpenAIAPIKey:       "sk-test",
		GreenAPIIDInstance: "1101",
		GreenAPIToken:      "tok",
		PacingMin:          time.Second,
		PacingMax:          5 * time.Second,
		HTTPWriteTimeout:   30 * time.Second,
	}
}

func TestValidate(t *testing.T) {
	if err := validConfig().Validate(); err != nil {
		t.Fatalf("Validate() on valid config: %v", err)
	}

	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"unknown driver", func(c *Config) { c.DBDriver = "mysql" }, "DB_DRIVER"},
		{"no dsn", func(c *Config) { c.DatabaseURL = "" }, "DATABASE_URL"},
		{"no openai key", func(c *Config) { c.OpenAIAPIKey = "" }, "OPENAI_API_KEY"},
		{"no green token", func(c *Config) { c.GreenAPIToken = "" }, "GREEN_API"},
		{"inverted pacing", func(c *Config) { c.PacingMin = 3 * time.Second; c.PacingMax = time.Second }, "pacing"},
		{"pacing over budget", func(c *Config) { c.PacingMax = 20 * time.Second }, "PACING_MAX_MS"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := validConfig()
			tt.mutate(&c)
			err := c.Validate()
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error %q does not mention %q", err, tt.want)
			}
		})
	}
}
