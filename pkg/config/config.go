package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/archon-labs/archon-authz/pkg/observability"
	"github.com/archon-labs/archon-authz/pkg/session"
	"github.com/archon-labs/archon-authz/pkg/storage"
)

// Config holds all application configuration.
type Config struct {
	Server        ServerConfig
	Storage       storage.Config
	Session       SessionConfig
	Observability ObservabilityConfig
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host            string
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	// Health/metrics server (separate port for k8s probes).
	HealthPort string

	// CORSOrigins lists allowed browser origins, comma-separated in the
	// environment. Empty disables CORS headers.
	CORSOrigins []string
}

// SessionConfig holds token signing and session store settings.
type SessionConfig struct {
	RedisURL      string
	RedisPassword string
	RedisDB       int

	JWTSecret  string
	Issuer     string
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

// ObservabilityConfig holds logging and metrics settings.
type ObservabilityConfig struct {
	LogLevel       observability.LogLevel
	MetricsEnabled bool
}

// LoadConfig loads configuration from environment variables.
func LoadConfig() (*Config, error) {
	cfg := &Config{
		Server:        loadServerConfig(),
		Storage:       loadStorageConfig(),
		Session:       loadSessionConfig(),
		Observability: loadObservabilityConfig(),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

func loadServerConfig() ServerConfig {
	return ServerConfig{
		Host:            getEnv("ARCHON_HOST", "0.0.0.0"),
		Port:            getEnv("ARCHON_PORT", "8080"),
		ReadTimeout:     getEnvDuration("ARCHON_READ_TIMEOUT", 15*time.Second),
		WriteTimeout:    getEnvDuration("ARCHON_WRITE_TIMEOUT", 15*time.Second),
		IdleTimeout:     getEnvDuration("ARCHON_IDLE_TIMEOUT", 60*time.Second),
		ShutdownTimeout: getEnvDuration("ARCHON_SHUTDOWN_TIMEOUT", 30*time.Second),
		HealthPort:      getEnv("ARCHON_HEALTH_PORT", "9090"),
		CORSOrigins:     splitList(getEnv("ARCHON_CORS_ORIGINS", "")),
	}
}

func loadStorageConfig() storage.Config {
	cfg := storage.DefaultConfig()

	cfg.PostgresURL = getEnv("ARCHON_POSTGRES_URL", "")
	if maxConns := getEnvInt("ARCHON_POSTGRES_MAX_CONNS", 0); maxConns > 0 {
		cfg.PostgresMaxConns = maxConns
	}
	if minConns := getEnvInt("ARCHON_POSTGRES_MIN_CONNS", 0); minConns > 0 {
		cfg.PostgresMinConns = minConns
	}
	if timeout := getEnvDuration("ARCHON_POSTGRES_TIMEOUT", 0); timeout > 0 {
		cfg.PostgresTimeout = timeout
	}
	return cfg
}

func loadSessionConfig() SessionConfig {
	return SessionConfig{
		RedisURL:      getEnv("ARCHON_REDIS_URL", "redis://localhost:6379"),
		RedisPassword: getEnv("ARCHON_REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("ARCHON_REDIS_DB", 0),
		JWTSecret:     getEnv("ARCHON_JWT_SECRET", ""),
		Issuer:        getEnv("ARCHON_JWT_ISSUER", "archon"),
		AccessTTL:     getEnvDuration("ARCHON_ACCESS_TTL", 15*time.Minute),
		RefreshTTL:    getEnvDuration("ARCHON_REFRESH_TTL", 7*24*time.Hour),
	}
}

func loadObservabilityConfig() ObservabilityConfig {
	return ObservabilityConfig{
		LogLevel:       parseLogLevel(getEnv("ARCHON_LOG_LEVEL", "info")),
		MetricsEnabled: getEnvBool("ARCHON_METRICS_ENABLED", true),
	}
}

// StoreConfig projects the session settings onto the Redis store.
func (c SessionConfig) StoreConfig() session.StoreConfig {
	return session.StoreConfig{
		RedisURL:      c.RedisURL,
		RedisPassword: c.RedisPassword,
		RedisDB:       c.RedisDB,
	}
}

// ManagerConfig projects the session settings onto the token manager.
func (c SessionConfig) ManagerConfig() session.ManagerConfig {
	return session.ManagerConfig{
		Secret:     c.JWTSecret,
		Issuer:     c.Issuer,
		AccessTTL:  c.AccessTTL,
		RefreshTTL: c.RefreshTTL,
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("server port is required")
	}
	if c.Server.HealthPort == "" {
		return fmt.Errorf("health port is required")
	}
	if c.Server.Port == c.Server.HealthPort {
		return fmt.Errorf("server port and health port must be different")
	}

	if c.Storage.PostgresURL == "" {
		return fmt.Errorf("postgres URL is required")
	}
	if c.Session.RedisURL == "" {
		return fmt.Errorf("redis URL is required")
	}

	if c.Session.JWTSecret == "" {
		return fmt.Errorf("JWT secret is required")
	}
	if len(c.Session.JWTSecret) < 32 {
		return fmt.Errorf("JWT secret must be at least 32 bytes")
	}
	if c.Session.AccessTTL <= 0 || c.Session.RefreshTTL <= 0 {
		return fmt.Errorf("token TTLs must be positive")
	}
	if c.Session.AccessTTL >= c.Session.RefreshTTL {
		return fmt.Errorf("access TTL must be shorter than refresh TTL")
	}

	return nil
}

// parseLogLevel parses a log level string.
func parseLogLevel(level string) observability.LogLevel {
	switch strings.ToLower(level) {
	case "debug":
		return observability.DebugLevel
	case "info":
		return observability.InfoLevel
	case "warn", "warning":
		return observability.WarnLevel
	case "error":
		return observability.ErrorLevel
	default:
		return observability.InfoLevel
	}
}

func splitList(value string) []string {
	if value == "" {
		return nil
	}
	var out []string
	for _, item := range strings.Split(value, ",") {
		if trimmed := strings.TrimSpace(item); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

// getEnv returns an environment variable value or a default.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool returns a boolean environment variable or a default.
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return strings.ToLower(value) == "true" || value == "1"
	}
	return defaultValue
}

// getEnvInt returns an integer environment variable or a default.
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvDuration returns a duration environment variable or a default.
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
