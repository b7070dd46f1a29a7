package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration for the application errors service.
type Config struct {
	Server   ServerConfig
	Log      LogConfig
	Store    StoreConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Host     HostConfig
	Health   HealthConfig
	Cleanup  CleanupConfig
	Admin    AdminConfig
}

type ServerConfig struct {
	Port int
	Env  string
}

type LogConfig struct {
	Level  string
	Pretty bool
}

// StoreConfig selects the error store backend.
type StoreConfig struct {
	Type string
}

type DatabaseConfig struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	Migrate         bool
}

// RedisConfig is optional. When URL is set, cleanup runs take a Redis lock so that
// only one instance sweeps a shared store per interval.
type RedisConfig struct {
	URL string
}

// HostConfig overrides the detected host identity. Empty fields are detected.
type HostConfig struct {
	Name      string
	IPAddress string
	Port      int
}

type HealthConfig struct {
	Enabled      bool
	WindowAmount int
	WindowUnit   string
}

type CleanupConfig struct {
	Enabled             bool
	Strategy            string
	ResolvedRetention   time.Duration
	UnresolvedRetention time.Duration
	JobName             string
	InitialDelay        time.Duration
	Interval            time.Duration
}

// AdminConfig guards mutating endpoints. TokenHash is a bcrypt hash of the bearer token.
type AdminConfig struct {
	TokenHash string
}

const (
	StorePostgres = "postgres"
	StoreSQL      = "sql"
	StoreMemory   = "memory"
	StoreNoop     = "noop"

	CleanupAllErrors    = "ALL_ERRORS"
	CleanupResolvedOnly = "RESOLVED_ONLY"
)

var validStores = map[string]bool{
	StorePostgres: true,
	StoreSQL:      true,
	StoreMemory:   true,
	StoreNoop:     true,
}

var timeUnits = map[string]time.Duration{
	"second":  time.Second,
	"seconds": time.Second,
	"minute":  time.Minute,
	"minutes": time.Minute,
	"hour":    time.Hour,
	"hours":   time.Hour,
	"day":     24 * time.Hour,
	"days":    24 * time.Hour,
}

// Load reads configuration from environment variables and returns a validated Config.
// Returns an error with a descriptive message if any required value is missing or invalid.
func Load() (*Config, error) {
	port := envInt("APPERR_PORT", 8080)
	cfg := &Config{
		Server: ServerConfig{
			Port: port,
			Env:  envString("APPERR_ENV", "development"),
		},
		Log: LogConfig{
			Level:  envString("APPERR_LOG_LEVEL", "info"),
			Pretty: envBool("APPERR_LOG_PRETTY", false),
		},
		Store: StoreConfig{
			Type: strings.ToLower(envString("APPERR_STORE", StoreMemory)),
		},
		Database: DatabaseConfig{
			URL:             os.Getenv("DATABASE_URL"),
			MaxOpenConns:    envInt("DATABASE_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    envInt("DATABASE_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: envDuration("DATABASE_CONN_MAX_LIFETIME", 5*time.Minute),
			Migrate:         envBool("DATABASE_MIGRATE", true),
		},
		Redis: RedisConfig{
			URL: os.Getenv("REDIS_URL"),
		},
		Host: HostConfig{
			Name:      os.Getenv("APPERR_HOST_NAME"),
			IPAddress: os.Getenv("APPERR_IP_ADDRESS"),
			Port:      envInt("APPERR_HOST_PORT", port),
		},
		Health: HealthConfig{
			Enabled:      envBool("APPERR_HEALTH_ENABLED", true),
			WindowAmount: envInt("APPERR_HEALTH_WINDOW_AMOUNT", 15),
			WindowUnit:   strings.ToLower(envString("APPERR_HEALTH_WINDOW_UNIT", "minutes")),
		},
		Cleanup: CleanupConfig{
			Enabled:             envBool("APPERR_CLEANUP_ENABLED", true),
			Strategy:            strings.ToUpper(envString("APPERR_CLEANUP_STRATEGY", CleanupAllErrors)),
			ResolvedRetention:   envDuration("APPERR_CLEANUP_RESOLVED_RETENTION", 14*24*time.Hour),
			UnresolvedRetention: envDuration("APPERR_CLEANUP_UNRESOLVED_RETENTION", 60*24*time.Hour),
			JobName:             envString("APPERR_CLEANUP_JOB_NAME", "application-errors-cleanup"),
			InitialDelay:        envDuration("APPERR_CLEANUP_INITIAL_DELAY", time.Minute),
			Interval:            envDuration("APPERR_CLEANUP_INTERVAL", 24*time.Hour),
		},
		Admin: AdminConfig{
			TokenHash: os.Getenv("APPERR_ADMIN_TOKEN_HASH"),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Window returns the recent-errors probe window.
func (h HealthConfig) Window() time.Duration {
	return time.Duration(h.WindowAmount) * timeUnits[h.WindowUnit]
}

func (c *Config) validate() error {
	if !validStores[c.Store.Type] {
		return fmt.Errorf("APPERR_STORE must be one of postgres, sql, memory, noop; got %q", c.Store.Type)
	}
	if (c.Store.Type == StorePostgres || c.Store.Type == StoreSQL) && c.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required when APPERR_STORE is %s", c.Store.Type)
	}
	if c.Store.Type == StorePostgres &&
		!strings.HasPrefix(c.Database.URL, "postgres://") && !strings.HasPrefix(c.Database.URL, "postgresql://") {
		return fmt.Errorf("DATABASE_URL must start with postgres:// or postgresql:// for the postgres store")
	}

	if c.Redis.URL != "" && !strings.HasPrefix(c.Redis.URL, "redis://") && !strings.HasPrefix(c.Redis.URL, "rediss://") {
		return fmt.Errorf("REDIS_URL must start with redis:// or rediss://, got %q", c.Redis.URL)
	}

	if c.Host.Port < 0 || c.Host.Port > 65535 {
		return fmt.Errorf("APPERR_HOST_PORT must be between 0 and 65535, got %d", c.Host.Port)
	}

	if c.Health.Enabled {
		if c.Health.WindowAmount <= 0 {
			return fmt.Errorf("APPERR_HEALTH_WINDOW_AMOUNT must be > 0, got %d", c.Health.WindowAmount)
		}
		if _, ok := timeUnits[c.Health.WindowUnit]; !ok {
			return fmt.Errorf("APPERR_HEALTH_WINDOW_UNIT must be one of seconds, minutes, hours, days; got %q", c.Health.WindowUnit)
		}
	}

	if c.Cleanup.Enabled {
		if c.Cleanup.Strategy != CleanupAllErrors && c.Cleanup.Strategy != CleanupResolvedOnly {
			return fmt.Errorf("APPERR_CLEANUP_STRATEGY must be ALL_ERRORS or RESOLVED_ONLY; got %q", c.Cleanup.Strategy)
		}
		if c.Cleanup.ResolvedRetention <= 0 {
			return fmt.Errorf("APPERR_CLEANUP_RESOLVED_RETENTION must be > 0")
		}
		if c.Cleanup.UnresolvedRetention <= 0 {
			return fmt.Errorf("APPERR_CLEANUP_UNRESOLVED_RETENTION must be > 0")
		}
		if c.Cleanup.Interval <= 0 {
			return fmt.Errorf("APPERR_CLEANUP_INTERVAL must be > 0")
		}
		if c.Cleanup.InitialDelay < 0 {
			return fmt.Errorf("APPERR_CLEANUP_INITIAL_DELAY must be >= 0")
		}
	}

	return nil
}

func envString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func envBool(key string, defaultVal bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return defaultVal
	}
	return b
}

func envDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}
