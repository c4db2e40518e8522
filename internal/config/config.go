package config

import (
	"errors"
	"net"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds the environment-driven settings shared by the server and
// worker binaries.
type Config struct {
	DatabaseURL     string
	JWTSecret       string
	JWTExpiration   time.Duration
	ServerHost      string
	ServerPort      int
	PollInterval    time.Duration
	EmailWebhookURL string
	// ConflictStrategy names the push conflict policy; the sync engine maps
	// unknown values to server_wins.
	ConflictStrategy string
	AllowedOrigins   []string
	Pretty           bool
}

// Load reads configuration from the environment. DATABASE_URL is the only
// required variable; everything else falls back to a default.
func Load() (*Config, error) {
	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		return nil, errors.New("DATABASE_URL is required")
	}

	return &Config{
		DatabaseURL:      dbURL,
		JWTSecret:        env("JWT_SECRET", "secret"),
		JWTExpiration:    time.Duration(envInt("JWT_EXPIRATION_HOURS", 24)) * time.Hour,
		ServerHost:       env("SERVER_HOST", "0.0.0.0"),
		ServerPort:       envInt("SERVER_PORT", 3000),
		PollInterval:     time.Duration(envInt("WORKER_POLL_INTERVAL_SECONDS", 60)) * time.Second,
		EmailWebhookURL:  os.Getenv("EMAIL_WEBHOOK_URL"),
		ConflictStrategy: env("CONFLICT_STRATEGY", "server_wins"),
		AllowedOrigins:   splitCSV(env("CORS_ALLOWED_ORIGINS", "*")),
		Pretty:           os.Getenv("LOG_PRETTY") != "",
	}, nil
}

// Addr is the listen address for the HTTP server.
func (c *Config) Addr() string {
	return net.JoinHostPort(c.ServerHost, strconv.Itoa(c.ServerPort))
}

func env(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

// envInt falls back to def when the variable is missing or unparseable.
func envInt(k string, def int) int {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func splitCSV(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
