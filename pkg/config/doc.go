// Package config loads groundup-api configuration from GROUNDUP_* environment
// variables.
//
// Server settings:
//
//	GROUNDUP_HOST="0.0.0.0"
//	GROUNDUP_PORT="8080"
//	GROUNDUP_HEALTH_PORT="9090"
//	GROUNDUP_READ_TIMEOUT="15s"
//	GROUNDUP_SHUTDOWN_TIMEOUT="30s"
//	GROUNDUP_MAX_BODY_BYTES="1048576"
//
// Database settings:
//
//	GROUNDUP_DATABASE_URL="postgres://localhost/groundup"  # required
//	GROUNDUP_DATABASE_REPLICA_URLS="postgres://r1/groundup,postgres://r2/groundup"
//	GROUNDUP_DATABASE_DRIVER="postgres"  # postgres (lib/pq) or pgx
//	GROUNDUP_DATABASE_MAX_CONNS="20"
//	GROUNDUP_DATABASE_CONNECT_WAIT="30s"  # keep retrying the primary at startup
//
// Authentication settings:
//
//	GROUNDUP_AUTH_MODE="header"  # header or jwt
//	GROUNDUP_JWT_SECRET="..."    # HS256 key, at least 32 bytes, jwt mode only
//	GROUNDUP_JWT_ISSUER="groundup"
//	GROUNDUP_TOKEN_TTL="1h"      # lifetime of tokens issued by groundup-admin
//
// Authorization settings:
//
//	GROUNDUP_PERMISSION_TABLE="/etc/groundup/permissions.yaml"
//	GROUNDUP_REDIS_URL="redis://localhost:6379"  # enables the grant cache
//	GROUNDUP_GRANT_CACHE_SIZE="10000"            # 0 disables the cache
//	GROUNDUP_GRANT_CACHE_TTL="5m"
//	GROUNDUP_INVALIDATION_CHANNEL="groundup:rbac:invalidate"
//	GROUNDUP_RESOLVER_CONCURRENCY="4"
//	GROUNDUP_RESOLVER_BREAKER_FAILURES="5"  # 0 disables the circuit breaker
//	GROUNDUP_RESOLVER_BREAKER_COOLDOWN="10s"
//
// Observability settings:
//
//	GROUNDUP_LOG_LEVEL="info"  # debug, info, warn, error
//	GROUNDUP_METRICS_ENABLED="true"
//	GROUNDUP_OTEL_ENABLED="true"
//	GROUNDUP_OTEL_ENDPOINT="otel-collector:4317"
//	GROUNDUP_OTEL_SAMPLE_RATIO="0.1"
//
// Variables can also come from a dotenv file; values already present in the
// environment take precedence:
//
//	if err := config.LoadEnvFile(".env"); err != nil {
//		log.Fatal(err)
//	}
//
// Usage:
//
//	cfg, err := config.LoadConfig()
//	if err != nil {
//		log.Fatal(err)
//	}
//	if cfg.CacheEnabled() {
//		// wire the Redis invalidation bus and CachingResolver
//	}
package config
