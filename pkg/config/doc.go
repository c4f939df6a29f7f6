// Package config provides application configuration management from environment variables.
//
// # Overview
//
// This package loads and validates configuration from environment variables with
// sensible defaults for all settings except secrets.
//
// # Configuration Structure
//
// Server settings:
//
//	ARCHON_HOST="0.0.0.0"
//	ARCHON_PORT="8080"
//	ARCHON_HEALTH_PORT="9090"
//	ARCHON_READ_TIMEOUT="15s"
//	ARCHON_WRITE_TIMEOUT="15s"
//	ARCHON_CORS_ORIGINS="https://app.example.com,https://staging.example.com"
//
// Storage settings:
//
//	ARCHON_POSTGRES_URL="postgres://localhost/archon"
//	ARCHON_POSTGRES_MAX_CONNS="20"
//
// Session settings:
//
//	ARCHON_REDIS_URL="redis://localhost:6379"
//	ARCHON_JWT_SECRET=<required, at least 32 bytes>
//	ARCHON_ACCESS_TTL="15m"
//	ARCHON_REFRESH_TTL="168h"
//
// Observability settings:
//
//	ARCHON_LOG_LEVEL="info"  # debug, info, warn, error
//	ARCHON_METRICS_ENABLED="true"
//
// # Usage Example
//
// Load configuration:
//
//	cfg, err := config.LoadConfig()
//	if err != nil {
//		log.Fatal(err)
//	}
//
// # Related Packages
//
//   - pkg/storage: Uses storage configuration
//   - pkg/session: Uses session configuration
//   - pkg/observability: Uses observability configuration
package config
