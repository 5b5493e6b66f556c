package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/landrecords/portal/common/models"
)

// Config holds all service configuration
type Config struct {
	Service   ServiceConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Cache     CacheConfig
	Queue     QueueConfig
	Notify    NotifyConfig
	Store     StoreConfig
	Documents DocumentConfig
	RateLimit RateLimitConfig
	Telemetry TelemetryConfig

	// SeedUsers are "id:role" pairs upserted at startup.
	SeedUsers []string
}

// ServiceConfig holds service-specific settings
type ServiceConfig struct {
	Name        string
	Port        int
	Environment string
	LogLevel    string
	LogFormat   string
}

// DatabaseConfig holds Postgres connection settings
type DatabaseConfig struct {
	Host        string
	Port        int
	Database    string
	User        string
	Password    string
	MaxConns    int
	MinConns    int
	MaxIdleTime time.Duration
	MaxLifetime time.Duration
}

// RedisConfig holds Redis connection settings
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// CacheConfig controls the role lookup cache
type CacheConfig struct {
	Enabled bool
	RoleTTL time.Duration
}

// QueueConfig holds message queue settings
type QueueConfig struct {
	Type    string // "memory" or "kafka"
	Brokers []string
	Topic   string
}

// NotifyConfig selects where workflow notifications go
type NotifyConfig struct {
	Backend string // "queue", "redis" or "log"
	Channel string
}

// StoreConfig selects the persistence backend
type StoreConfig struct {
	Backend string // "postgres" or "memory"
}

// DocumentConfig holds sealed document storage settings
type DocumentConfig struct {
	Dir           string
	VerifyBaseURL string
}

// RateLimitConfig holds per-minute request limits. Limits are kept in Redis.
type RateLimitConfig struct {
	Enabled     bool
	PublicLimit int64 // per client IP on public endpoints
	ActorLimit  int64 // per X-User-ID on writes
}

// TelemetryConfig holds observability settings
type TelemetryConfig struct {
	EnablePprof   bool
	PprofPort     int
	EnableMetrics bool
	MetricsPort   int
}

// Load loads configuration from environment variables
func Load(serviceName string) (*Config, error) {
	cfg := &Config{
		Service: ServiceConfig{
			Name:        serviceName,
			Port:        getEnvInt("PORT", 8080),
			Environment: getEnv("ENVIRONMENT", "development"),
			LogLevel:    getEnv("LOG_LEVEL", "info"),
			LogFormat:   getEnv("LOG_FORMAT", "text"),
		},
		Database: DatabaseConfig{
			Host:        getEnv("POSTGRES_HOST", "localhost"),
			Port:        getEnvInt("POSTGRES_PORT", 5432),
			Database:    getEnv("POSTGRES_DB", "landrecords"),
			User:        getEnv("POSTGRES_USER", "landrecords"),
			Password:    getEnv("POSTGRES_PASSWORD", "landrecords"),
			MaxConns:    getEnvInt("POSTGRES_MAX_CONNS", 20),
			MinConns:    getEnvInt("POSTGRES_MIN_CONNS", 2),
			MaxIdleTime: getEnvDuration("POSTGRES_MAX_IDLE_TIME", 30*time.Minute),
			MaxLifetime: getEnvDuration("POSTGRES_MAX_LIFETIME", 1*time.Hour),
		},
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnvInt("REDIS_PORT", 6379),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
		},
		Cache: CacheConfig{
			Enabled: getEnvBool("CACHE_ENABLED", true),
			RoleTTL: getEnvDuration("CACHE_ROLE_TTL", 30*time.Second),
		},
		Queue: QueueConfig{
			Type:    getEnv("QUEUE_TYPE", "memory"),
			Brokers: getEnvSlice("KAFKA_BROKERS", []string{"localhost:9092"}),
			Topic:   getEnv("KAFKA_TOPIC", "land.notifications"),
		},
		Notify: NotifyConfig{
			Backend: getEnv("NOTIFY_BACKEND", "queue"),
			Channel: getEnv("NOTIFY_CHANNEL", "land:notifications"),
		},
		Store: StoreConfig{
			Backend: getEnv("STORE_BACKEND", "postgres"),
		},
		Documents: DocumentConfig{
			Dir:           getEnv("DOCUMENT_DIR", "./data/documents"),
			VerifyBaseURL: getEnv("VERIFY_BASE_URL", "http://localhost:8080"),
		},
		RateLimit: RateLimitConfig{
			Enabled:     getEnvBool("RATE_LIMIT_ENABLED", false),
			PublicLimit: int64(getEnvInt("RATE_LIMIT_PUBLIC", 60)),
			ActorLimit:  int64(getEnvInt("RATE_LIMIT_ACTOR", 120)),
		},
		Telemetry: TelemetryConfig{
			EnablePprof:   getEnvBool("ENABLE_PPROF", false),
			PprofPort:     getEnvInt("PPROF_PORT", 6060),
			EnableMetrics: getEnvBool("ENABLE_METRICS", true),
			MetricsPort:   getEnvInt("METRICS_PORT", 9090),
		},
		SeedUsers: getEnvSlice("SEED_USERS", nil),
	}

	return cfg, cfg.Validate()
}

// Validate checks if configuration is valid
func (c *Config) Validate() error {
	if c.Service.Port < 1 || c.Service.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Service.Port)
	}

	switch c.Store.Backend {
	case "postgres":
		if c.Database.Host == "" {
			return fmt.Errorf("database host is required")
		}
		if c.Database.MaxConns < c.Database.MinConns {
			return fmt.Errorf("max_conns must be >= min_conns")
		}
	case "memory":
	default:
		return fmt.Errorf("unknown store backend: %s", c.Store.Backend)
	}

	switch c.Queue.Type {
	case "memory":
	case "kafka":
		if len(c.Queue.Brokers) == 0 {
			return fmt.Errorf("kafka brokers are required")
		}
	default:
		return fmt.Errorf("unknown queue type: %s", c.Queue.Type)
	}

	switch c.Notify.Backend {
	case "queue", "redis", "log":
	default:
		return fmt.Errorf("unknown notify backend: %s", c.Notify.Backend)
	}

	if c.RateLimit.Enabled && (c.RateLimit.PublicLimit < 1 || c.RateLimit.ActorLimit < 1) {
		return fmt.Errorf("rate limits must be positive")
	}

	if c.Documents.Dir == "" {
		return fmt.Errorf("document dir is required")
	}

	for _, pair := range c.SeedUsers {
		_, role, ok := SplitSeedUser(pair)
		if !ok {
			return fmt.Errorf("invalid seed user %q, want id:role", pair)
		}
		if !models.Role(role).Valid() {
			return fmt.Errorf("seed user %q has unknown role %q", pair, role)
		}
	}

	return nil
}

// DatabaseURL returns the PostgreSQL connection string
func (c *Config) DatabaseURL() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=disable",
		c.Database.User,
		c.Database.Password,
		c.Database.Host,
		c.Database.Port,
		c.Database.Database,
	)
}

// RedisAddr returns host:port for the Redis client
func (c *Config) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Redis.Host, c.Redis.Port)
}

// NeedsRedis reports whether any enabled component uses Redis
func (c *Config) NeedsRedis() bool {
	return c.Notify.Backend == "redis" || c.RateLimit.Enabled
}

// SplitSeedUser parses an "id:role" pair. Spaces around either half are
// dropped; the role is not checked against the declared roles.
func SplitSeedUser(pair string) (id, role string, ok bool) {
	id, role, ok = strings.Cut(pair, ":")
	id, role = strings.TrimSpace(id), strings.TrimSpace(role)
	if !ok || id == "" || role == "" {
		return "", "", false
	}
	return id, role, true
}

// Helper functions

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getEnvSlice(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
