package main

import (
	"log/slog"
	"os"
	"strconv"
	"time"
)

// Config is read from the environment. A .env file next to the binary is
// loaded first by godotenv/autoload.
type Config struct {
	Port         string
	DBPath       string
	ProfileFile  string
	TemplatesDir string

	// Projects panel geometry. The header row stays visible while collapsed
	// and is clipped together with the body when expanded.
	CollapsedHeightPx float64
	HeaderHeightPx    float64
	BorderPx          float64
	PanelTTL          time.Duration

	// RodURL points at a Chrome DevTools endpoint used to measure panels
	// server-side before the browser reports. "launch" starts a local one.
	RodURL string

	AdminUsername    string
	AdminPassword    string
	VisitorRetention time.Duration
	Debug            bool
}

func loadConfig(log *slog.Logger) Config {
	cfg := Config{
		Port:              envString("PORT", "8080"),
		DBPath:            envString("DB_PATH", "site.db"),
		ProfileFile:       envString("PROFILE_FILE", "profile.yaml"),
		TemplatesDir:      envString("TEMPLATES_DIR", "templates"),
		CollapsedHeightPx: envFloat(log, "PANEL_COLLAPSED_HEIGHT", 48),
		HeaderHeightPx:    envFloat(log, "PANEL_HEADER_HEIGHT", 48),
		BorderPx:          envFloat(log, "PANEL_BORDER", 2),
		PanelTTL:          envDuration(log, "PANEL_TTL", 30*time.Minute),
		RodURL:            os.Getenv("ROD_URL"),
		AdminUsername:     os.Getenv("ADMIN_USERNAME"),
		AdminPassword:     os.Getenv("ADMIN_PASSWORD"),
		VisitorRetention:  envDuration(log, "VISITOR_RETENTION", 365*24*time.Hour),
		Debug:             envBool(log, "LOG_DEBUG", false),
	}

	// Default credentials for development (set both in production)
	if cfg.AdminUsername == "" {
		cfg.AdminUsername = "admin"
		log.Warn("using default admin username, set ADMIN_USERNAME")
	}
	if cfg.AdminPassword == "" {
		cfg.AdminPassword = "admin123"
		log.Warn("using default admin password, set ADMIN_PASSWORD")
	}
	return cfg
}

func envString(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envFloat(log *slog.Logger, key string, def float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || f < 0 {
		log.Warn("invalid number in environment, using default", "key", key, "value", v, "default", def)
		return def
	}
	return f
}

func envDuration(log *slog.Logger, key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil || d < 0 {
		log.Warn("invalid duration in environment, using default", "key", key, "value", v, "default", def)
		return def
	}
	return d
}

func envBool(log *slog.Logger, key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		log.Warn("invalid boolean in environment, using default", "key", key, "value", v, "default", def)
		return def
	}
	return b
}
