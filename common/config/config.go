package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all service configuration
type Config struct {
	Service     ServiceConfig
	Scheduler   SchedulerConfig
	Persistence PersistenceConfig
	Tool        ToolConfig
	Cache       CacheConfig
}

// ServiceConfig holds service-specific settings
type ServiceConfig struct {
	Name        string
	Port        int
	Environment string
	LogLevel    string
	LogFormat   string
}

// SchedulerConfig holds execution-scheduling settings.
type SchedulerConfig struct {
	MaxConcurrentNodes  int
	SnapshotInterval    time.Duration
	SnapshotEveryNNodes int
	DefaultNodeTimeout  time.Duration
	MaxLoopIterations   int
	CancelDrainTimeout  time.Duration
}

// PersistenceConfig holds snapshot/archival store settings.
type PersistenceConfig struct {
	Backend          string // "memory", "redis", "postgres"
	RedisAddr        string
	RedisPassword    string
	RedisDB          int
	PostgresHost     string
	PostgresPort     int
	PostgresDatabase string
	PostgresUser     string
	PostgresPassword string
	PostgresMaxConns int
	PostgresMinConns int
}

// ToolConfig holds Tool Registry + Dispatch settings.
type ToolConfig struct {
	HandleCacheSize     int
	HandleIdleTimeout   time.Duration
	InvocationTimeout   time.Duration
	BreakerMaxRequests  uint32
	BreakerTimeout      time.Duration
	BreakerFailureRatio float64
	OssRootDir          string
}

// CacheConfig holds the persistence read-through cache's settings.
type CacheConfig struct {
	Enabled bool
	SizeMB  int
	TTL     time.Duration
}

// Load loads configuration from environment variables
func Load(serviceName string) (*Config, error) {
	cfg := &Config{
		Service: ServiceConfig{
			Name:        serviceName,
			Port:        getEnvInt("PORT", 8080),
			Environment: getEnv("ENVIRONMENT", "development"),
			LogLevel:    getEnv("LOG_LEVEL", "info"),
			LogFormat:   getEnv("LOG_FORMAT", "text"), // Default to text for development
		},
		Scheduler: SchedulerConfig{
			MaxConcurrentNodes:  getEnvInt("SCHEDULER_MAX_CONCURRENT_NODES", 32),
			SnapshotInterval:    getEnvDuration("SCHEDULER_SNAPSHOT_INTERVAL", 5*time.Second),
			SnapshotEveryNNodes: getEnvInt("SCHEDULER_SNAPSHOT_EVERY_N_NODES", 5),
			DefaultNodeTimeout:  getEnvDuration("SCHEDULER_DEFAULT_NODE_TIMEOUT", 30*time.Second),
			MaxLoopIterations:   getEnvInt("SCHEDULER_MAX_LOOP_ITERATIONS", 10000),
			CancelDrainTimeout:  getEnvDuration("SCHEDULER_CANCEL_DRAIN_TIMEOUT", 30*time.Second),
		},
		Persistence: PersistenceConfig{
			Backend:          getEnv("PERSISTENCE_BACKEND", "memory"),
			RedisAddr:        getEnv("REDIS_ADDR", "localhost:6379"),
			RedisPassword:    getEnv("REDIS_PASSWORD", ""),
			RedisDB:          getEnvInt("REDIS_DB", 0),
			PostgresHost:     getEnv("POSTGRES_HOST", "localhost"),
			PostgresPort:     getEnvInt("POSTGRES_PORT", 5432),
			PostgresDatabase: getEnv("POSTGRES_DB", "fec"),
			PostgresUser:     getEnv("POSTGRES_USER", "fec"),
			PostgresPassword: getEnv("POSTGRES_PASSWORD", "fec"),
			PostgresMaxConns: getEnvInt("POSTGRES_MAX_CONNS", 50),
			PostgresMinConns: getEnvInt("POSTGRES_MIN_CONNS", 10),
		},
		Tool: ToolConfig{
			HandleCacheSize:     getEnvInt("TOOL_HANDLE_CACHE_SIZE", 256),
			HandleIdleTimeout:   getEnvDuration("TOOL_HANDLE_IDLE_TIMEOUT", 10*time.Minute),
			InvocationTimeout:   getEnvDuration("TOOL_INVOCATION_TIMEOUT", 15*time.Second),
			BreakerMaxRequests:  uint32(getEnvInt("TOOL_BREAKER_MAX_REQUESTS", 5)),
			BreakerTimeout:      getEnvDuration("TOOL_BREAKER_TIMEOUT", 30*time.Second),
			BreakerFailureRatio: getEnvFloat("TOOL_BREAKER_FAILURE_RATIO", 0.6),
			OssRootDir:          getEnv("OSS_ROOT_DIR", "./data/oss"),
		},
		Cache: CacheConfig{
			Enabled: getEnvBool("CACHE_ENABLED", true),
			SizeMB:  getEnvInt("CACHE_SIZE_MB", 64),
			TTL:     getEnvDuration("CACHE_TTL", 30*time.Second),
		},
	}

	return cfg, cfg.Validate()
}

// Validate checks if configuration is valid
func (c *Config) Validate() error {
	if c.Service.Port < 1 || c.Service.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Service.Port)
	}

	switch c.Persistence.Backend {
	case "memory", "redis", "postgres":
	default:
		return fmt.Errorf("invalid persistence backend: %q", c.Persistence.Backend)
	}

	if c.Persistence.PostgresMaxConns < c.Persistence.PostgresMinConns {
		return fmt.Errorf("postgres_max_conns must be >= postgres_min_conns")
	}

	if c.Scheduler.MaxConcurrentNodes < 1 {
		return fmt.Errorf("scheduler_max_concurrent_nodes must be >= 1")
	}

	return nil
}

// PostgresURL returns the PostgreSQL connection string for the archival store.
func (c *Config) PostgresURL() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=disable",
		c.Persistence.PostgresUser,
		c.Persistence.PostgresPassword,
		c.Persistence.PostgresHost,
		c.Persistence.PostgresPort,
		c.Persistence.PostgresDatabase,
	)
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

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
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
