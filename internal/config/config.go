package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Link     LinkConfig
	Pipeline PipelineConfig
	Geo      GeoConfig
	Quota    QuotaConfig
	Logging  LoggingConfig
}

type ServerConfig struct {
	Host            string
	Port            int
	BaseURL         string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

type DatabaseConfig struct {
	Host            string
	Port            int
	User            string
	Password        string
	Database        string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
}

type RedisConfig struct {
	Host         string
	Port         int
	Password     string
	DB           int
	PoolSize     int
	MinIdleConns int
	MaxRetries   int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

type LinkConfig struct {
	CodeLength     int
	MaxAllocTries  int
	CacheTTL       time.Duration
	ResolveTimeout time.Duration
}

type PipelineConfig struct {
	QueueSize      int
	Workers        int
	MaxRetries     int
	RetryBackoff   time.Duration
	EnrichTimeout  time.Duration
	PersistTimeout time.Duration
}

type GeoConfig struct {
	// Path to a MaxMind GeoLite2/GeoIP2 City database. Empty disables geo
	// enrichment; clicks then carry Unknown locations.
	DBPath string
}

type QuotaConfig struct {
	// Default plan applied when the billing system has no record for an
	// owner. -1 means unlimited.
	DefaultPlanName  string
	DefaultMaxLinks  int64
	DefaultMaxClicks int64
}

type LoggingConfig struct {
	Level  string
	Format string
}

// DSN returns the data source name for the database connection.
func (c DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

func Load() (*Config, error) {
	return &Config{
		Server: ServerConfig{
			Host:            getEnv("SERVER_HOST", "0.0.0.0"),
			Port:            getEnvAsInt("SERVER_PORT", 8080),
			BaseURL:         getEnv("BASE_URL", "http://localhost:8080"),
			ReadTimeout:     getEnvAsDuration("SERVER_READ_TIMEOUT", 10*time.Second),
			WriteTimeout:    getEnvAsDuration("SERVER_WRITE_TIMEOUT", 10*time.Second),
			ShutdownTimeout: getEnvAsDuration("SERVER_SHUTDOWN_TIMEOUT", 30*time.Second),
		},
		Database: DatabaseConfig{
			Host:            getEnv("DB_HOST", "localhost"),
			Port:            getEnvAsInt("DB_PORT", 5432),
			User:            getEnv("DB_USER", "postgres"),
			Password:        getEnv("DB_PASSWORD", "postgres"),
			Database:        getEnv("DB_NAME", "linksight"),
			SSLMode:         getEnv("DB_SSL_MODE", "disable"),
			MaxOpenConns:    getEnvAsInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    getEnvAsInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getEnvAsDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute),
			ConnMaxIdleTime: getEnvAsDuration("DB_CONN_MAX_IDLE_TIME", 1*time.Minute),
		},
		Redis: RedisConfig{
			Host:         getEnv("REDIS_HOST", "localhost"),
			Port:         getEnvAsInt("REDIS_PORT", 6379),
			Password:     getEnv("REDIS_PASSWORD", ""),
			DB:           getEnvAsInt("REDIS_DB", 0),
			PoolSize:     getEnvAsInt("REDIS_POOL_SIZE", 10),
			MinIdleConns: getEnvAsInt("REDIS_MIN_IDLE_CONNS", 5),
			MaxRetries:   getEnvAsInt("REDIS_MAX_RETRIES", 3),
			DialTimeout:  getEnvAsDuration("REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  getEnvAsDuration("REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: getEnvAsDuration("REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		Link: LinkConfig{
			CodeLength:     getEnvAsInt("LINK_CODE_LENGTH", 7),
			MaxAllocTries:  getEnvAsInt("LINK_MAX_ALLOC_TRIES", 5),
			CacheTTL:       getEnvAsDuration("LINK_CACHE_TTL", 24*time.Hour),
			ResolveTimeout: getEnvAsDuration("LINK_RESOLVE_TIMEOUT", 2*time.Second),
		},
		Pipeline: PipelineConfig{
			QueueSize:      getEnvAsInt("CLICK_QUEUE_SIZE", 4096),
			Workers:        getEnvAsInt("CLICK_WORKERS", 4),
			MaxRetries:     getEnvAsInt("CLICK_MAX_RETRIES", 3),
			RetryBackoff:   getEnvAsDuration("CLICK_RETRY_BACKOFF", 100*time.Millisecond),
			EnrichTimeout:  getEnvAsDuration("CLICK_ENRICH_TIMEOUT", 500*time.Millisecond),
			PersistTimeout: getEnvAsDuration("CLICK_PERSIST_TIMEOUT", 5*time.Second),
		},
		Geo: GeoConfig{
			DBPath: getEnv("GEOIP_DB_PATH", ""),
		},
		Quota: QuotaConfig{
			DefaultPlanName:  getEnv("QUOTA_DEFAULT_PLAN", "free"),
			DefaultMaxLinks:  getEnvAsInt64("QUOTA_DEFAULT_MAX_LINKS", 50),
			DefaultMaxClicks: getEnvAsInt64("QUOTA_DEFAULT_MAX_CLICKS", 10000),
		},
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
	}, nil
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value, exists := os.LookupEnv(key); exists {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsInt64(key string, defaultValue int64) int64 {
	if value, exists := os.LookupEnv(key); exists {
		if intValue, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value, exists := os.LookupEnv(key); exists {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
