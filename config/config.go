package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/yeremiapane/table-order/utils"
)

// Config is resolved once at process start.
type Config struct {
	Port        string
	GinMode     string
	LogLevel    string
	FrontendURL string

	DBDriver    string
	DatabaseURL string
	Pool        PoolSettings

	CacheBackend string
	RedisURL     string
	CacheTTL     CacheTTLs

	NotifyQueueSize int
	NotifyAMQPURL   string
	NotifyExchange  string

	JWTSecret     string
	JWTTTL        time.Duration
	AdminUsername string
	AdminPassword string
	SeedTables    int
}

type PoolSettings struct {
	MinSize        int
	MaxSize        int
	AcquireTimeout time.Duration
	ProbeInterval  time.Duration
	MaxIdleTime    time.Duration
}

// CacheTTLs holds the per-view TTL for each named cache key group.
type CacheTTLs struct {
	Tables time.Duration
	Orders time.Duration
	Income time.Duration
	Stats  time.Duration
}

// Load membaca .env (jika ada) lalu environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		utils.InfoLogger.Debugf(".env not loaded: %v", err)
	}
	return FromEnv()
}

func FromEnv() (*Config, error) {
	cfg := &Config{
		Port:        getEnv("PORT", "5000"),
		GinMode:     getEnv("GIN_MODE", ""),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		FrontendURL: getEnv("FRONTEND_URL", "*"),

		DBDriver:    strings.ToLower(getEnv("DB_DRIVER", "postgres")),
		DatabaseURL: os.Getenv("DATABASE_URL"),
		Pool: PoolSettings{
			MinSize:        getEnvInt("DB_POOL_MIN", 2),
			MaxSize:        getEnvInt("DB_POOL_MAX", 15),
			AcquireTimeout: getEnvDuration("DB_POOL_ACQUIRE_TIMEOUT", 3*time.Second),
			ProbeInterval:  getEnvDuration("DB_POOL_PROBE_INTERVAL", 30*time.Second),
			MaxIdleTime:    getEnvDuration("DB_POOL_MAX_IDLE_TIME", 5*time.Minute),
		},

		CacheBackend: strings.ToLower(getEnv("CACHE_BACKEND", "memory")),
		RedisURL:     os.Getenv("REDIS_URL"),
		CacheTTL: CacheTTLs{
			Tables: getEnvDuration("CACHE_TTL_TABLES", 5*time.Second),
			Orders: getEnvDuration("CACHE_TTL_ORDERS", 5*time.Second),
			Income: getEnvDuration("CACHE_TTL_INCOME", 30*time.Second),
			Stats:  getEnvDuration("CACHE_TTL_STATS", 60*time.Second),
		},

		NotifyQueueSize: getEnvInt("NOTIFY_QUEUE_SIZE", 256),
		NotifyAMQPURL:   os.Getenv("NOTIFY_AMQP_URL"),
		NotifyExchange:  getEnv("NOTIFY_EXCHANGE", "restaurant.events"),

		JWTSecret:     getEnv("JWT_SECRET_KEY", "change-me-in-production"),
		JWTTTL:        getEnvDuration("JWT_TTL", time.Hour),
		AdminUsername: getEnv("ADMIN_USERNAME", "admin"),
		AdminPassword: getEnv("ADMIN_PASSWORD", "1234"),
		SeedTables:    getEnvInt("SEED_TABLES", 6),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	switch c.DBDriver {
	case "postgres", "mysql", "sqlite":
	default:
		return fmt.Errorf("unsupported DB_DRIVER %q", c.DBDriver)
	}
	if c.DatabaseURL == "" && c.DBDriver != "sqlite" {
		return fmt.Errorf("DATABASE_URL environment variable is not set")
	}
	if c.Pool.MinSize < 0 || c.Pool.MaxSize < 1 || c.Pool.MinSize > c.Pool.MaxSize {
		return fmt.Errorf("invalid pool size: min=%d max=%d", c.Pool.MinSize, c.Pool.MaxSize)
	}
	switch c.CacheBackend {
	case "memory":
	case "redis":
		if c.RedisURL == "" {
			return fmt.Errorf("REDIS_URL is required when CACHE_BACKEND=redis")
		}
	default:
		return fmt.Errorf("unsupported CACHE_BACKEND %q", c.CacheBackend)
	}
	for name, ttl := range map[string]time.Duration{
		"CACHE_TTL_TABLES": c.CacheTTL.Tables,
		"CACHE_TTL_ORDERS": c.CacheTTL.Orders,
		"CACHE_TTL_INCOME": c.CacheTTL.Income,
		"CACHE_TTL_STATS":  c.CacheTTL.Stats,
	} {
		if ttl <= 0 {
			return fmt.Errorf("%s must be positive, got %s", name, ttl)
		}
	}
	if c.NotifyQueueSize < 1 {
		return fmt.Errorf("NOTIFY_QUEUE_SIZE must be positive")
	}
	return nil
}

func getEnv(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && strings.TrimSpace(v) != "" {
		return strings.TrimSpace(v)
	}
	return def
}

func getEnvInt(key string, def int) int {
	v := getEnv(key, "")
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		utils.ErrorLogger.Warnf("invalid %s=%q, using %d", key, v, def)
		return def
	}
	return n
}

// getEnvDuration accepts Go durations ("5s") or plain seconds ("5").
func getEnvDuration(key string, def time.Duration) time.Duration {
	v := getEnv(key, "")
	if v == "" {
		return def
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	if n, err := strconv.Atoi(v); err == nil {
		return time.Duration(n) * time.Second
	}
	utils.ErrorLogger.Warnf("invalid %s=%q, using %s", key, v, def)
	return def
}
