// Package config provides configuration management for the application.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Default values applied when the corresponding environment variable is unset.
const (
	DefaultEnvironment   = "staging"
	DefaultPort          = "8080"
	DefaultBaseURL       = "https://api.openai.com/v1"
	DefaultTimeout       = 60 * time.Second
	DefaultDatabasePath  = "data/metadata.db"
	DefaultBufferSize    = 256
	DefaultBodySizeLimit = int64(25 << 20) // 25MB, enough for spreadsheet exports
)

// Config holds the application configuration
type Config struct {
	Environment string
	Server      ServerConfig
	OpenAI      OpenAIConfig
	Storage     StorageConfig
	Metadata    MetadataConfig
	Metrics     MetricsConfig
	LogFormat   string
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port             string
	CORSAllowOrigins []string
	BodySizeLimit    int64
}

// OpenAIConfig holds external provider configuration
type OpenAIConfig struct {
	APIKey      string
	BaseURL     string
	AssistantID string
	Timeout     time.Duration
	// ConnectRetries is the number of extra attempts made after a
	// network-level failure. Zero preserves the single-attempt contract.
	ConnectRetries int
}

// StorageConfig holds metadata storage configuration
type StorageConfig struct {
	// Type selects the backend: "sqlite" (default), "postgresql", or "mongodb"
	Type       string
	SQLite     SQLiteConfig
	PostgreSQL PostgreSQLConfig
	MongoDB    MongoDBConfig
}

// SQLiteConfig holds SQLite-specific configuration
type SQLiteConfig struct {
	Path string
}

// PostgreSQLConfig holds PostgreSQL-specific configuration
type PostgreSQLConfig struct {
	URL      string
	MaxConns int
}

// MongoDBConfig holds MongoDB-specific configuration
type MongoDBConfig struct {
	URL      string
	Database string
}

// MetadataConfig holds metadata logging configuration
type MetadataConfig struct {
	Enabled    bool
	BufferSize int
}

// MetricsConfig holds Prometheus metrics configuration
type MetricsConfig struct {
	Enabled  bool
	Endpoint string
}

// Load reads configuration from an optional .env file and the environment.
func Load() (*Config, error) {
	// Optional; absence of a .env file is the normal deployed case.
	_ = godotenv.Load()

	cfg := &Config{
		Environment: getEnv("ENVIRONMENT", DefaultEnvironment),
		Server: ServerConfig{
			Port:             getEnv("PORT", DefaultPort),
			CORSAllowOrigins: splitAndTrim(getEnv("CORS_ALLOW_ORIGINS", "http://localhost:3000")),
			BodySizeLimit:    getEnvInt64("BODY_SIZE_LIMIT", DefaultBodySizeLimit),
		},
		OpenAI: OpenAIConfig{
			APIKey:         os.Getenv("OPENAI_API_KEY"),
			BaseURL:        strings.TrimRight(getEnv("OPENAI_BASE_URL", DefaultBaseURL), "/"),
			AssistantID:    os.Getenv("OPENAI_ASSISTANT_ID"),
			Timeout:        getEnvDuration("OPENAI_TIMEOUT", DefaultTimeout),
			ConnectRetries: getEnvInt("OPENAI_CONNECT_RETRIES", 0),
		},
		Storage: StorageConfig{
			Type: getEnv("STORAGE_TYPE", "sqlite"),
			SQLite: SQLiteConfig{
				Path: getEnv("DATABASE_PATH", DefaultDatabasePath),
			},
			PostgreSQL: PostgreSQLConfig{
				URL:      os.Getenv("POSTGRES_URL"),
				MaxConns: getEnvInt("POSTGRES_MAX_CONNS", 10),
			},
			MongoDB: MongoDBConfig{
				URL:      os.Getenv("MONGODB_URL"),
				Database: getEnv("MONGODB_DATABASE", "agentgw"),
			},
		},
		Metadata: MetadataConfig{
			Enabled:    getEnvBool("METADATA_ENABLED", true),
			BufferSize: getEnvInt("METADATA_BUFFER_SIZE", DefaultBufferSize),
		},
		Metrics: MetricsConfig{
			Enabled:  getEnvBool("METRICS_ENABLED", false),
			Endpoint: getEnv("METRICS_ENDPOINT", "/metrics"),
		},
		LogFormat: getEnv("LOG_FORMAT", "json"),
	}

	return cfg, nil
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return defaultVal
	}
	return n
}

func getEnvInt64(key string, defaultVal int64) int64 {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	n, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return defaultVal
	}
	return n
}

func getEnvBool(key string, defaultVal bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	b, err := strconv.ParseBool(val)
	if err != nil {
		return defaultVal
	}
	return b
}

// getEnvDuration accepts either plain integers (interpreted as seconds)
// or Go duration strings (e.g. "90s", "2m").
func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	if secs, err := strconv.Atoi(val); err == nil {
		return time.Duration(secs) * time.Second
	}
	if d, err := time.ParseDuration(val); err == nil {
		return d
	}
	return defaultVal
}

func splitAndTrim(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
