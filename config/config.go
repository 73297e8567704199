package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"go-icewatch/types"
)

// SourceConfig is the per-collector configuration block.
type SourceConfig struct {
	Enabled  bool
	Interval time.Duration
	Trust    types.Trust
}

// Config holds everything the monitor needs. Values come from the
// environment (with .env support) plus CLI flag overrides.
type Config struct {
	Locale *Locale

	WebhookURL string

	// Geographic scope radius around the locale center.
	MaxDistanceKM float64

	// Required distinct sources before a NORMAL-trust cluster alerts.
	MinCorroborationSources int

	ClusterExpiry  time.Duration
	FreshMax       time.Duration
	TemporalWindow time.Duration
	GeoWindowKM    float64
	SimThreshold   float64

	QueueCapacity int
	PollDeadline  time.Duration
	DrainGrace    time.Duration

	DBPath   string
	HTTPAddr string

	// Optional external capabilities.
	NLPCredentials string // base64 service-account JSON for Cloud NLP
	MapsAPIKey     string
	OpenAIKey      string

	Sources map[string]SourceConfig

	DryRun   bool
	LogLevel string
}

// Load reads configuration from the environment. Returns a ConfigError
// when a required value is missing or malformed.
func Load() (*Config, error) {
	locale, err := LoadLocale(os.Getenv("LOCALE"))
	if err != nil {
		return nil, &types.ConfigError{Field: "LOCALE", Err: err}
	}

	cfg := &Config{
		Locale:                  locale,
		WebhookURL:              os.Getenv("WEBHOOK_URL"),
		MaxDistanceKM:           getEnvFloat("MAX_DISTANCE_KM", locale.RadiusKM),
		MinCorroborationSources: getEnvInt("MIN_CORROBORATION_SOURCES", 2),
		ClusterExpiry:           getEnvHours("CLUSTER_EXPIRY_HOURS", 6.0),
		FreshMax:                getEnvHours("FRESH_MAX_HOURS", 3.0),
		TemporalWindow:          getEnvHours("TEMPORAL_WINDOW_HOURS", 2.0),
		GeoWindowKM:             getEnvFloat("GEO_WINDOW_KM", 3.0),
		SimThreshold:            getEnvFloat("SIM_THRESHOLD", 0.25),
		QueueCapacity:           getEnvInt("QUEUE_CAPACITY", 1024),
		PollDeadline:            time.Duration(getEnvInt("POLL_DEADLINE_SECONDS", 30)) * time.Second,
		DrainGrace:              time.Duration(getEnvInt("DRAIN_GRACE_SECONDS", 10)) * time.Second,
		DBPath:                  getEnv("DB_PATH", "icewatch.db"),
		HTTPAddr:                getEnv("HTTP_ADDR", ":8080"),
		NLPCredentials:          os.Getenv("NATURAL_LANGUAGE_CREDENTIALS"),
		MapsAPIKey:              os.Getenv("MAPS_CREDENTIALS"),
		OpenAIKey:               os.Getenv("OPENAI_API_KEY"),
		DryRun:                  getEnvBool("DRY_RUN", false),
		LogLevel:                getEnv("LOG_LEVEL", "INFO"),
	}

	cfg.Sources = map[string]SourceConfig{
		"iceout": {
			Enabled:  getEnvBool("ICEOUT_ENABLED", true),
			Interval: time.Duration(getEnvInt("ICEOUT_POLL_INTERVAL", 90)) * time.Second,
			Trust:    types.TrustHigh,
		},
		"stopice": {
			Enabled:  getEnvBool("STOPICE_ENABLED", true),
			Interval: time.Duration(getEnvInt("STOPICE_POLL_INTERVAL", 1800)) * time.Second,
			Trust:    types.TrustHigh,
		},
		"bluesky": {
			Enabled:  getEnvBool("BLUESKY_ENABLED", true),
			Interval: time.Duration(getEnvInt("BLUESKY_POLL_INTERVAL", 120)) * time.Second,
			Trust:    types.TrustNormal,
		},
		"instagram": {
			Enabled:  getEnvBool("INSTAGRAM_ENABLED", true),
			Interval: time.Duration(getEnvInt("INSTAGRAM_POLL_INTERVAL", 300)) * time.Second,
			Trust:    types.TrustNormal,
		},
		"rss": {
			Enabled:  getEnvBool("RSS_ENABLED", true),
			Interval: time.Duration(getEnvInt("RSS_POLL_INTERVAL", 300)) * time.Second,
			Trust:    types.TrustNormal,
		},
	}

	return cfg, cfg.Validate()
}

// Validate checks cross-field constraints. The webhook URL is required
// unless running dry.
func (c *Config) Validate() error {
	if c.WebhookURL == "" && !c.DryRun {
		return &types.ConfigError{Field: "WEBHOOK_URL", Err: fmt.Errorf("required unless DRY_RUN is set")}
	}
	if c.MaxDistanceKM <= 0 {
		return &types.ConfigError{Field: "MAX_DISTANCE_KM", Err: fmt.Errorf("must be positive, got %v", c.MaxDistanceKM)}
	}
	if c.MinCorroborationSources < 1 {
		return &types.ConfigError{Field: "MIN_CORROBORATION_SOURCES", Err: fmt.Errorf("must be at least 1")}
	}
	if c.SimThreshold < 0 || c.SimThreshold > 1 {
		return &types.ConfigError{Field: "SIM_THRESHOLD", Err: fmt.Errorf("must be in [0,1], got %v", c.SimThreshold)}
	}
	if c.QueueCapacity < 1 {
		return &types.ConfigError{Field: "QUEUE_CAPACITY", Err: fmt.Errorf("must be at least 1")}
	}
	return nil
}

func getEnv(key, fallback string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	return v
}

func getEnvInt(key string, fallback int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvFloat(key string, fallback float64) float64 {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvHours(key string, fallback float64) time.Duration {
	return time.Duration(getEnvFloat(key, fallback) * float64(time.Hour))
}

func getEnvBool(key string, fallback bool) bool {
	v := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	if v == "" {
		return fallback
	}
	return v == "true" || v == "1" || v == "yes"
}
