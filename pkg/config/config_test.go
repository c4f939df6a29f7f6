package config

import (
	"os"
	"testing"
	"time"

	"github.com/archon-labs/archon-authz/pkg/observability"
)

// TestGetEnv tests the getEnv helper function
func TestGetEnv(t *testing.T) {
	tests := []struct {
		name         string
		key          string
		defaultValue string
		envValue     string
		want         string
	}{
		{
			name:         "returns env value when set",
			key:          "TEST_VAR",
			defaultValue: "default",
			envValue:     "custom",
			want:         "custom",
		},
		{
			name:         "returns default when env not set",
			key:          "TEST_VAR_NOT_SET",
			defaultValue: "default",
			envValue:     "",
			want:         "default",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.envValue != "" {
				os.Setenv(tt.key, tt.envValue)
				defer os.Unsetenv(tt.key)
			}

			got := getEnv(tt.key, tt.defaultValue)
			if got != tt.want {
				t.Errorf("getEnv() = %v, want %v", got, tt.want)
			}
		})
	}
}

// TestGetEnvBool tests the getEnvBool helper function
func TestGetEnvBool(t *testing.T) {
	tests := []struct {
		name         string
		key          string
		defaultValue bool
		envValue     string
		want         bool
	}{
		{
			name:         "returns true for 'true'",
			key:          "TEST_BOOL",
			defaultValue: false,
			envValue:     "true",
			want:         true,
		},
		{
			name:         "returns true for '1'",
			key:          "TEST_BOOL",
			defaultValue: false,
			envValue:     "1",
			want:         true,
		},
		{
			name:         "returns false for 'false'",
			key:          "TEST_BOOL",
			defaultValue: true,
			envValue:     "false",
			want:         false,
		},
		{
			name:         "returns default when not set",
			key:          "TEST_BOOL_NOT_SET",
			defaultValue: true,
			envValue:     "",
			want:         true,
		},
		{
			name:         "returns true for 'TRUE' (case insensitive)",
			key:          "TEST_BOOL",
			defaultValue: false,
			envValue:     "TRUE",
			want:         true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.envValue != "" {
				os.Setenv(tt.key, tt.envValue)
				defer os.Unsetenv(tt.key)
			} else {
				os.Unsetenv(tt.key)
			}

			got := getEnvBool(tt.key, tt.defaultValue)
			if got != tt.want {
				t.Errorf("getEnvBool() = %v, want %v", got, tt.want)
			}
		})
	}
}

// TestGetEnvDuration tests the getEnvDuration helper function
func TestGetEnvDuration(t *testing.T) {
	tests := []struct {
		name         string
		key          string
		defaultValue time.Duration
		envValue     string
		want         time.Duration
	}{
		{
			name:         "returns parsed duration",
			key:          "TEST_DURATION",
			defaultValue: 10 * time.Second,
			envValue:     "30s",
			want:         30 * time.Second,
		},
		{
			name:         "returns default for invalid duration",
			key:          "TEST_DURATION",
			defaultValue: 10 * time.Second,
			envValue:     "invalid",
			want:         10 * time.Second,
		},
		{
			name:         "returns default when not set",
			key:          "TEST_DURATION_NOT_SET",
			defaultValue: 10 * time.Second,
			envValue:     "",
			want:         10 * time.Second,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.envValue != "" {
				os.Setenv(tt.key, tt.envValue)
				defer os.Unsetenv(tt.key)
			} else {
				os.Unsetenv(tt.key)
			}

			got := getEnvDuration(tt.key, tt.defaultValue)
			if got != tt.want {
				t.Errorf("getEnvDuration() = %v, want %v", got, tt.want)
			}
		})
	}
}

// TestParseLogLevel tests the parseLogLevel function
func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		name  string
		level string
		want  observability.LogLevel
	}{
		{name: "debug", level: "debug", want: observability.DebugLevel},
		{name: "DEBUG uppercase", level: "DEBUG", want: observability.DebugLevel},
		{name: "info", level: "info", want: observability.InfoLevel},
		{name: "warn", level: "warn", want: observability.WarnLevel},
		{name: "warning", level: "warning", want: observability.WarnLevel},
		{name: "error", level: "error", want: observability.ErrorLevel},
		{name: "invalid defaults to info", level: "invalid", want: observability.InfoLevel},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := parseLogLevel(tt.level)
			if got != tt.want {
				t.Errorf("parseLogLevel() = %v, want %v", got, tt.want)
			}
		})
	}
}

// TestSplitList tests CORS origin list parsing
func TestSplitList(t *testing.T) {
	tests := []struct {
		name  string
		value string
		want  int
	}{
		{name: "empty", value: "", want: 0},
		{name: "single", value: "https://app.example.com", want: 1},
		{name: "multiple with spaces", value: "https://a.example.com, https://b.example.com", want: 2},
		{name: "trailing comma", value: "https://a.example.com,", want: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := splitList(tt.value)
			if len(got) != tt.want {
				t.Errorf("splitList(%q) = %v entries, want %v", tt.value, len(got), tt.want)
			}
		})
	}
}

// TestLoadServerConfig tests the loadServerConfig function
func TestLoadServerConfig(t *testing.T) {
	envVars := []string{
		"ARCHON_HOST",
		"ARCHON_PORT",
		"ARCHON_READ_TIMEOUT",
		"ARCHON_WRITE_TIMEOUT",
		"ARCHON_IDLE_TIMEOUT",
		"ARCHON_SHUTDOWN_TIMEOUT",
		"ARCHON_HEALTH_PORT",
		"ARCHON_CORS_ORIGINS",
	}
	originalEnv := make(map[string]string)
	for _, k := range envVars {
		originalEnv[k] = os.Getenv(k)
	}
	defer func() {
		for k, v := range originalEnv {
			if v == "" {
				os.Unsetenv(k)
			} else {
				os.Setenv(k, v)
			}
		}
	}()

	tests := []struct {
		name string
		env  map[string]string
		want ServerConfig
	}{
		{
			name: "defaults",
			env:  map[string]string{},
			want: ServerConfig{
				Host:            "0.0.0.0",
				Port:            "8080",
				ReadTimeout:     15 * time.Second,
				WriteTimeout:    15 * time.Second,
				IdleTimeout:     60 * time.Second,
				ShutdownTimeout: 30 * time.Second,
				HealthPort:      "9090",
			},
		},
		{
			name: "custom values",
			env: map[string]string{
				"ARCHON_HOST":             "localhost",
				"ARCHON_PORT":             "3000",
				"ARCHON_READ_TIMEOUT":     "30s",
				"ARCHON_WRITE_TIMEOUT":    "30s",
				"ARCHON_IDLE_TIMEOUT":     "120s",
				"ARCHON_SHUTDOWN_TIMEOUT": "60s",
				"ARCHON_HEALTH_PORT":      "9091",
			},
			want: ServerConfig{
				Host:            "localhost",
				Port:            "3000",
				ReadTimeout:     30 * time.Second,
				WriteTimeout:    30 * time.Second,
				IdleTimeout:     120 * time.Second,
				ShutdownTimeout: 60 * time.Second,
				HealthPort:      "9091",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k := range originalEnv {
				os.Unsetenv(k)
			}
			for k, v := range tt.env {
				os.Setenv(k, v)
			}

			got := loadServerConfig()
			if got.Host != tt.want.Host {
				t.Errorf("Host = %v, want %v", got.Host, tt.want.Host)
			}
			if got.Port != tt.want.Port {
				t.Errorf("Port = %v, want %v", got.Port, tt.want.Port)
			}
			if got.ReadTimeout != tt.want.ReadTimeout {
				t.Errorf("ReadTimeout = %v, want %v", got.ReadTimeout, tt.want.ReadTimeout)
			}
			if got.WriteTimeout != tt.want.WriteTimeout {
				t.Errorf("WriteTimeout = %v, want %v", got.WriteTimeout, tt.want.WriteTimeout)
			}
			if got.IdleTimeout != tt.want.IdleTimeout {
				t.Errorf("IdleTimeout = %v, want %v", got.IdleTimeout, tt.want.IdleTimeout)
			}
			if got.ShutdownTimeout != tt.want.ShutdownTimeout {
				t.Errorf("ShutdownTimeout = %v, want %v", got.ShutdownTimeout, tt.want.ShutdownTimeout)
			}
			if got.HealthPort != tt.want.HealthPort {
				t.Errorf("HealthPort = %v, want %v", got.HealthPort, tt.want.HealthPort)
			}
		})
	}
}

// TestLoadSessionConfig tests the loadSessionConfig function
func TestLoadSessionConfig(t *testing.T) {
	envVars := []string{
		"ARCHON_REDIS_URL",
		"ARCHON_REDIS_PASSWORD",
		"ARCHON_REDIS_DB",
		"ARCHON_JWT_SECRET",
		"ARCHON_JWT_ISSUER",
		"ARCHON_ACCESS_TTL",
		"ARCHON_REFRESH_TTL",
	}
	originalEnv := make(map[string]string)
	for _, k := range envVars {
		originalEnv[k] = os.Getenv(k)
	}
	defer func() {
		for k, v := range originalEnv {
			if v == "" {
				os.Unsetenv(k)
			} else {
				os.Setenv(k, v)
			}
		}
	}()

	t.Run("defaults", func(t *testing.T) {
		for _, k := range envVars {
			os.Unsetenv(k)
		}

		cfg := loadSessionConfig()
		if cfg.RedisURL != "redis://localhost:6379" {
			t.Errorf("RedisURL = %v, want redis://localhost:6379", cfg.RedisURL)
		}
		if cfg.Issuer != "archon" {
			t.Errorf("Issuer = %v, want archon", cfg.Issuer)
		}
		if cfg.AccessTTL != 15*time.Minute {
			t.Errorf("AccessTTL = %v, want 15m", cfg.AccessTTL)
		}
		if cfg.RefreshTTL != 7*24*time.Hour {
			t.Errorf("RefreshTTL = %v, want 168h", cfg.RefreshTTL)
		}
		if cfg.JWTSecret != "" {
			t.Errorf("JWTSecret = %v, want empty (no default secret)", cfg.JWTSecret)
		}
	})

	t.Run("custom values", func(t *testing.T) {
		for _, k := range envVars {
			os.Unsetenv(k)
		}
		os.Setenv("ARCHON_REDIS_URL", "redis://cache:6379")
		os.Setenv("ARCHON_REDIS_DB", "2")
		os.Setenv("ARCHON_JWT_SECRET", "0123456789abcdef0123456789abcdef")
		os.Setenv("ARCHON_ACCESS_TTL", "5m")

		cfg := loadSessionConfig()
		if cfg.RedisURL != "redis://cache:6379" {
			t.Errorf("RedisURL = %v, want redis://cache:6379", cfg.RedisURL)
		}
		if cfg.RedisDB != 2 {
			t.Errorf("RedisDB = %v, want 2", cfg.RedisDB)
		}
		if cfg.AccessTTL != 5*time.Minute {
			t.Errorf("AccessTTL = %v, want 5m", cfg.AccessTTL)
		}

		mc := cfg.ManagerConfig()
		if mc.Secret != "0123456789abcdef0123456789abcdef" {
			t.Errorf("ManagerConfig().Secret = %v", mc.Secret)
		}
		sc := cfg.StoreConfig()
		if sc.RedisDB != 2 {
			t.Errorf("StoreConfig().RedisDB = %v, want 2", sc.RedisDB)
		}
	})
}

// validTestConfig returns a config that passes Validate.
func validTestConfig() Config {
	cfg := Config{
		Server: ServerConfig{
			Port:       "8080",
			HealthPort: "9090",
		},
		Session: SessionConfig{
			RedisURL:   "redis://localhost:6379",
			JWTSecret:  "0123456789abcdef0123456789abcdef",
			AccessTTL:  15 * time.Minute,
			RefreshTTL: 7 * 24 * time.Hour,
		},
	}
	cfg.Storage.PostgresURL = "postgres://localhost/archon"
	return cfg
}

// TestConfigValidate tests the Config.Validate method
func TestConfigValidate(t *testing.T) {
	t.Run("valid config", func(t *testing.T) {
		cfg := validTestConfig()
		if err := cfg.Validate(); err != nil {
			t.Errorf("Validate() unexpected error = %v", err)
		}
	})

	t.Run("missing server port", func(t *testing.T) {
		cfg := validTestConfig()
		cfg.Server.Port = ""
		if err := cfg.Validate(); err == nil {
			t.Error("Validate() expected error, got nil")
		}
	})

	t.Run("same server and health port", func(t *testing.T) {
		cfg := validTestConfig()
		cfg.Server.HealthPort = cfg.Server.Port
		if err := cfg.Validate(); err == nil {
			t.Error("Validate() expected error, got nil")
		}
	})

	t.Run("missing postgres url", func(t *testing.T) {
		cfg := validTestConfig()
		cfg.Storage.PostgresURL = ""
		if err := cfg.Validate(); err == nil {
			t.Error("Validate() expected error, got nil")
		}
	})

	t.Run("missing JWT secret", func(t *testing.T) {
		cfg := validTestConfig()
		cfg.Session.JWTSecret = ""
		if err := cfg.Validate(); err == nil {
			t.Error("Validate() expected error, got nil")
		}
	})

	t.Run("short JWT secret", func(t *testing.T) {
		cfg := validTestConfig()
		cfg.Session.JWTSecret = "too-short"
		if err := cfg.Validate(); err == nil {
			t.Error("Validate() expected error, got nil")
		}
	})

	t.Run("access TTL not shorter than refresh TTL", func(t *testing.T) {
		cfg := validTestConfig()
		cfg.Session.AccessTTL = cfg.Session.RefreshTTL
		if err := cfg.Validate(); err == nil {
			t.Error("Validate() expected error, got nil")
		}
	})
}

// TestLoadConfig tests the LoadConfig function
func TestLoadConfig(t *testing.T) {
	envVars := []string{
		"ARCHON_PORT",
		"ARCHON_HEALTH_PORT",
		"ARCHON_POSTGRES_URL",
		"ARCHON_JWT_SECRET",
	}
	originalEnv := make(map[string]string)
	for _, k := range envVars {
		originalEnv[k] = os.Getenv(k)
	}
	defer func() {
		for k, v := range originalEnv {
			if v == "" {
				os.Unsetenv(k)
			} else {
				os.Setenv(k, v)
			}
		}
	}()

	tests := []struct {
		name    string
		env     map[string]string
		wantErr bool
	}{
		{
			name: "valid config",
			env: map[string]string{
				"ARCHON_POSTGRES_URL": "postgres://localhost/archon",
				"ARCHON_JWT_SECRET":   "0123456789abcdef0123456789abcdef",
			},
			wantErr: false,
		},
		{
			name: "missing postgres url",
			env: map[string]string{
				"ARCHON_JWT_SECRET": "0123456789abcdef0123456789abcdef",
			},
			wantErr: true,
		},
		{
			name: "missing JWT secret",
			env: map[string]string{
				"ARCHON_POSTGRES_URL": "postgres://localhost/archon",
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for _, k := range envVars {
				os.Unsetenv(k)
			}
			for k, v := range tt.env {
				os.Setenv(k, v)
			}

			cfg, err := LoadConfig()
			if (err != nil) != tt.wantErr {
				t.Errorf("LoadConfig() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if !tt.wantErr && cfg == nil {
				t.Error("LoadConfig() returned nil config without error")
			}
		})
	}
}
