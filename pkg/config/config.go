package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/rsbst23/groundup/pkg/observability"
	"github.com/rsbst23/groundup/pkg/rbac"
	"github.com/rsbst23/groundup/pkg/storage"
)

// Config holds all application configuration
type Config struct {
	// Server configuration
	Server ServerConfig

	// Database configuration
	Database storage.ConnectionConfig

	// Redis configuration, optional. A URL enables the grant cache.
	Redis storage.RedisConfig

	// Authentication configuration
	Auth AuthConfig

	// Authorization configuration
	Authz AuthzConfig

	// Observability configuration
	Observability ObservabilityConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
	MaxBodyBytes    int64

	// Health/metrics server (separate port for k8s probes)
	HealthPort string
}

// Authentication modes
const (
	AuthModeHeader = "header"
	AuthModeJWT    = "jwt"
)

// AuthConfig selects how callers are identified
type AuthConfig struct {
	// Mode is "header" (trust X-User-ID/X-Tenant-ID from a gateway) or
	// "jwt" (HS256 bearer tokens)
	Mode      string
	JWTSecret string
	JWTIssuer string
	TokenTTL  time.Duration
}

// AuthzConfig holds permission table and grant resolution settings
type AuthzConfig struct {
	// PermissionTablePath points to a YAML file overriding the compiled-in
	// operation requirements. Empty means no override.
	PermissionTablePath string

	CacheSize           int
	CacheTTL            time.Duration
	InvalidationChannel string
	ResolverConcurrency int

	// BreakerFailures consecutive store faults open the resolver circuit
	// breaker for BreakerCooldown. Zero disables the breaker.
	BreakerFailures int
	BreakerCooldown time.Duration
}

// CacheEnabled reports whether the grant cache can run, which needs a
// Redis bus for invalidations
func (c *Config) CacheEnabled() bool {
	return c.Redis.URL != "" && c.Authz.CacheSize > 0
}

// ObservabilityConfig holds observability settings
type ObservabilityConfig struct {
	// Logging
	LogLevel observability.LogLevel

	// Metrics
	MetricsEnabled bool

	// OpenTelemetry
	OTelEnabled        bool
	OTelEndpoint       string
	OTelServiceName    string
	OTelServiceVersion string
	OTelInsecure       bool // Use insecure gRPC connection
	OTelSampleRatio    float64
}

// OTel converts the settings into the tracing bootstrap config
func (o ObservabilityConfig) OTel() observability.OTelConfig {
	return observability.OTelConfig{
		ServiceName:    o.OTelServiceName,
		ServiceVersion: o.OTelServiceVersion,
		Endpoint:       o.OTelEndpoint,
		Insecure:       o.OTelInsecure,
		Enabled:        o.OTelEnabled,
		SampleRatio:    o.OTelSampleRatio,
	}
}

// LoadEnvFile adds the variables in a dotenv file to the environment.
// Variables already set are left alone. An empty path is a no-op.
func LoadEnvFile(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("failed to load env file %s: %w", path, err)
	}
	return nil
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	cfg := &Config{
		Server:        loadServerConfig(),
		Database:      loadDatabaseConfig(),
		Redis:         loadRedisConfig(),
		Auth:          LoadAuthConfig(),
		Authz:         loadAuthzConfig(),
		Observability: loadObservabilityConfig(),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// loadServerConfig loads server configuration from environment
func loadServerConfig() ServerConfig {
	return ServerConfig{
		Host:            getEnv("GROUNDUP_HOST", "0.0.0.0"),
		Port:            getEnv("GROUNDUP_PORT", "8080"),
		ReadTimeout:     getEnvDuration("GROUNDUP_READ_TIMEOUT", 15*time.Second),
		WriteTimeout:    getEnvDuration("GROUNDUP_WRITE_TIMEOUT", 15*time.Second),
		IdleTimeout:     getEnvDuration("GROUNDUP_IDLE_TIMEOUT", 60*time.Second),
		ShutdownTimeout: getEnvDuration("GROUNDUP_SHUTDOWN_TIMEOUT", 30*time.Second),
		MaxBodyBytes:    getEnvInt64("GROUNDUP_MAX_BODY_BYTES", 1<<20),
		HealthPort:      getEnv("GROUNDUP_HEALTH_PORT", "9090"),
	}
}

// loadDatabaseConfig loads PostgreSQL configuration from environment
func loadDatabaseConfig() storage.ConnectionConfig {
	return storage.ConnectionConfig{
		Driver:      getEnv("GROUNDUP_DATABASE_DRIVER", "postgres"),
		PrimaryURL:  getEnv("GROUNDUP_DATABASE_URL", ""),
		ReplicaURLs: storage.ParseReplicaURLs(getEnv("GROUNDUP_DATABASE_REPLICA_URLS", "")),
		MaxConns:    getEnvInt("GROUNDUP_DATABASE_MAX_CONNS", 20),
		MinConns:    getEnvInt("GROUNDUP_DATABASE_MIN_CONNS", 2),
		Timeout:     getEnvDuration("GROUNDUP_DATABASE_TIMEOUT", 5*time.Second),
		MaxLifetime: getEnvDuration("GROUNDUP_DATABASE_MAX_LIFETIME", 30*time.Minute),
		MaxIdleTime: getEnvDuration("GROUNDUP_DATABASE_MAX_IDLE_TIME", 5*time.Minute),
		ConnectWait: getEnvDuration("GROUNDUP_DATABASE_CONNECT_WAIT", 30*time.Second),
	}
}

// loadRedisConfig loads Redis configuration from environment
func loadRedisConfig() storage.RedisConfig {
	cfg := storage.RedisConfig{
		URL:      getEnv("GROUNDUP_REDIS_URL", ""),
		Password: getEnv("GROUNDUP_REDIS_PASSWORD", ""),
	}
	if redisDB := getEnvInt("GROUNDUP_REDIS_DB", -1); redisDB >= 0 {
		cfg.DB = redisDB
	}
	if maxRetries := getEnvInt("GROUNDUP_REDIS_MAX_RETRIES", 0); maxRetries > 0 {
		cfg.MaxRetries = maxRetries
	}
	if poolSize := getEnvInt("GROUNDUP_REDIS_POOL_SIZE", 0); poolSize > 0 {
		cfg.PoolSize = poolSize
	}
	return cfg
}

// LoadAuthConfig loads authentication configuration from environment. It
// needs no database settings, so token tooling can use it alone.
func LoadAuthConfig() AuthConfig {
	return AuthConfig{
		Mode:      strings.ToLower(getEnv("GROUNDUP_AUTH_MODE", AuthModeHeader)),
		JWTSecret: getEnv("GROUNDUP_JWT_SECRET", ""),
		JWTIssuer: getEnv("GROUNDUP_JWT_ISSUER", "groundup"),
		TokenTTL:  getEnvDuration("GROUNDUP_TOKEN_TTL", time.Hour),
	}
}

// loadAuthzConfig loads authorization configuration from environment
func loadAuthzConfig() AuthzConfig {
	return AuthzConfig{
		PermissionTablePath: getEnv("GROUNDUP_PERMISSION_TABLE", ""),
		CacheSize:           getEnvInt("GROUNDUP_GRANT_CACHE_SIZE", 10000),
		CacheTTL:            getEnvDuration("GROUNDUP_GRANT_CACHE_TTL", 5*time.Minute),
		InvalidationChannel: getEnv("GROUNDUP_INVALIDATION_CHANNEL", rbac.DefaultInvalidationChannel),
		ResolverConcurrency: getEnvInt("GROUNDUP_RESOLVER_CONCURRENCY", 4),
		BreakerFailures:     getEnvInt("GROUNDUP_RESOLVER_BREAKER_FAILURES", 5),
		BreakerCooldown:     getEnvDuration("GROUNDUP_RESOLVER_BREAKER_COOLDOWN", 10*time.Second),
	}
}

// loadObservabilityConfig loads observability configuration from environment
func loadObservabilityConfig() ObservabilityConfig {
	return ObservabilityConfig{
		LogLevel:           observability.ParseLogLevel(getEnv("GROUNDUP_LOG_LEVEL", "info")),
		MetricsEnabled:     getEnvBool("GROUNDUP_METRICS_ENABLED", true),
		OTelEnabled:        getEnvBool("GROUNDUP_OTEL_ENABLED", false),
		OTelEndpoint:       getEnv("GROUNDUP_OTEL_ENDPOINT", "localhost:4317"),
		OTelServiceName:    getEnv("GROUNDUP_OTEL_SERVICE_NAME", "groundup-api"),
		OTelServiceVersion: getEnv("GROUNDUP_OTEL_SERVICE_VERSION", "1.0.0"),
		OTelInsecure:       getEnvBool("GROUNDUP_OTEL_INSECURE", true),
		OTelSampleRatio:    getEnvFloat("GROUNDUP_OTEL_SAMPLE_RATIO", 1.0),
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	// Validate server config
	if c.Server.Port == "" {
		return fmt.Errorf("server port is required")
	}
	if c.Server.HealthPort == "" {
		return fmt.Errorf("health port is required")
	}
	if c.Server.Port == c.Server.HealthPort {
		return fmt.Errorf("server port and health port must be different")
	}
	if c.Server.MaxBodyBytes <= 0 {
		return fmt.Errorf("max body bytes must be positive")
	}

	// Validate database config
	if c.Database.PrimaryURL == "" {
		return fmt.Errorf("database URL is required")
	}
	if c.Database.MaxConns <= 0 {
		return fmt.Errorf("database max connections must be positive")
	}
	switch c.Database.Driver {
	case "", "postgres", "pgx":
	default:
		return fmt.Errorf("unsupported database driver %q (postgres or pgx)", c.Database.Driver)
	}
	if c.Database.MinConns > c.Database.MaxConns {
		return fmt.Errorf("database min connections (%d) exceeds max connections (%d)",
			c.Database.MinConns, c.Database.MaxConns)
	}

	// Validate auth config
	switch c.Auth.Mode {
	case AuthModeHeader:
	case AuthModeJWT:
		if len(c.Auth.JWTSecret) < 32 {
			return fmt.Errorf("jwt secret must be at least 32 bytes")
		}
	default:
		return fmt.Errorf("unknown auth mode %q", c.Auth.Mode)
	}

	// Validate authz config
	if c.Authz.CacheSize < 0 {
		return fmt.Errorf("grant cache size must not be negative")
	}
	if c.Authz.CacheTTL < 0 {
		return fmt.Errorf("grant cache TTL must not be negative")
	}
	if c.Authz.ResolverConcurrency <= 0 {
		return fmt.Errorf("resolver concurrency must be positive")
	}
	if c.Authz.BreakerFailures < 0 {
		return fmt.Errorf("resolver breaker failures must not be negative")
	}
	if c.Redis.URL != "" && c.Authz.InvalidationChannel == "" {
		return fmt.Errorf("invalidation channel is required when redis is configured")
	}

	// Validate OpenTelemetry config
	if c.Observability.OTelEnabled {
		if c.Observability.OTelEndpoint == "" {
			return fmt.Errorf("OpenTelemetry endpoint is required when OTel is enabled")
		}
		if c.Observability.OTelServiceName == "" {
			return fmt.Errorf("OpenTelemetry service name is required when OTel is enabled")
		}
		if c.Observability.OTelSampleRatio < 0 || c.Observability.OTelSampleRatio > 1 {
			return fmt.Errorf("OpenTelemetry sample ratio must be between 0 and 1")
		}
	}

	return nil
}

// getEnv returns an environment variable value or a default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool returns a boolean environment variable or a default
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return strings.ToLower(value) == "true" || value == "1"
	}
	return defaultValue
}

// getEnvInt returns an integer environment variable or a default
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvInt64 returns an int64 environment variable or a default
func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvDuration returns a duration environment variable or a default
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// getEnvFloat returns a float environment variable or a default
func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}
