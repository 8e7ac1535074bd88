package main

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"time"
)

// CLIConfig holds command-line configuration.
type CLIConfig struct {
	BindAddress     string
	NATSURL         string
	Storage         string
	PostgresURI     string
	CookieSecret    string
	SessionTTL      time.Duration
	SecureCookies   bool
	Playground      bool
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration
	ValidateOnly    bool
	ShowVersion     bool
	ShowHelp        bool
}

func parseFlags() *CLIConfig {
	cfg := &CLIConfig{}

	flag.StringVar(&cfg.BindAddress, "bind",
		getEnv("THREADIT_BIND", ":8080"),
		"HTTP bind address (env: THREADIT_BIND)")

	flag.StringVar(&cfg.NATSURL, "nats-url",
		getEnv("THREADIT_NATS_URL", "nats://localhost:4222"),
		"NATS server URL (env: THREADIT_NATS_URL)")

	flag.StringVar(&cfg.Storage, "storage",
		getEnv("THREADIT_STORAGE", "postgres"),
		"Storage backend: postgres, memory (env: THREADIT_STORAGE)")

	flag.StringVar(&cfg.PostgresURI, "postgres-uri",
		getEnv("THREADIT_POSTGRES_URI", ""),
		"PostgreSQL connection URI (env: THREADIT_POSTGRES_URI)")

	flag.StringVar(&cfg.CookieSecret, "cookie-secret",
		getEnv("THREADIT_COOKIE_SECRET", ""),
		"Session cookie signing secret, at least 32 bytes (env: THREADIT_COOKIE_SECRET)")

	flag.DurationVar(&cfg.SessionTTL, "session-ttl",
		getEnvDuration("THREADIT_SESSION_TTL", 7*24*time.Hour),
		"Session lifetime (env: THREADIT_SESSION_TTL)")

	flag.BoolVar(&cfg.SecureCookies, "secure-cookies",
		getEnvBool("THREADIT_SECURE_COOKIES", false),
		"Mark session cookies Secure (env: THREADIT_SECURE_COOKIES)")

	flag.BoolVar(&cfg.Playground, "playground",
		getEnvBool("THREADIT_PLAYGROUND", true),
		"Enable the GraphQL playground (env: THREADIT_PLAYGROUND)")

	flag.StringVar(&cfg.LogLevel, "log-level",
		getEnv("THREADIT_LOG_LEVEL", "info"),
		"Log level: debug, info, warn, error (env: THREADIT_LOG_LEVEL)")

	flag.StringVar(&cfg.LogFormat, "log-format",
		getEnv("THREADIT_LOG_FORMAT", "json"),
		"Log format: json, text (env: THREADIT_LOG_FORMAT)")

	flag.DurationVar(&cfg.ShutdownTimeout, "shutdown-timeout",
		getEnvDuration("THREADIT_SHUTDOWN_TIMEOUT", 30*time.Second),
		"Graceful shutdown timeout (env: THREADIT_SHUTDOWN_TIMEOUT)")

	flag.BoolVar(&cfg.ValidateOnly, "validate", false, "Validate configuration and exit")
	flag.BoolVar(&cfg.ShowVersion, "version", false, "Show version information")
	flag.BoolVar(&cfg.ShowVersion, "v", false, "Show version information")
	flag.BoolVar(&cfg.ShowHelp, "help", false, "Show help information")
	flag.BoolVar(&cfg.ShowHelp, "h", false, "Show help information")

	flag.Parse()

	return cfg
}

func validateFlags(cfg *CLIConfig) error {
	if cfg.ShowVersion || cfg.ShowHelp {
		return nil
	}

	validLevels := []string{"debug", "info", "warn", "error"}
	if !contains(validLevels, cfg.LogLevel) {
		return fmt.Errorf("invalid log level: %s", cfg.LogLevel)
	}

	validFormats := []string{"json", "text"}
	if !contains(validFormats, cfg.LogFormat) {
		return fmt.Errorf("invalid log format: %s", cfg.LogFormat)
	}

	switch cfg.Storage {
	case "postgres":
		if cfg.PostgresURI == "" {
			return fmt.Errorf("postgres storage requires -postgres-uri")
		}
	case "memory":
	default:
		return fmt.Errorf("invalid storage backend: %s", cfg.Storage)
	}

	if len(cfg.CookieSecret) < 32 {
		return fmt.Errorf("cookie secret must be at least 32 bytes")
	}

	return nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func contains(list []string, item string) bool {
	for _, v := range list {
		if v == item {
			return true
		}
	}
	return false
}
