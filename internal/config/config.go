// Package config provides centralized configuration management for the application.
// It loads configuration from environment variables with sensible defaults and
// validates all settings on startup to fail fast on misconfiguration.
package config

import "time"

// Config holds all application configuration.
// All settings can be configured via environment variables.
type Config struct {
	Server     ServerConfig
	Database   DatabaseConfig
	Upload     UploadConfig
	Processing ProcessingConfig
	Enhance    EnhanceConfig
	Storage    StorageConfig
	Rate       RateLimitConfig
	Security   SecurityConfig
	Logging    LoggingConfig
	Archive    ArchiveConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	// Host is the interface to bind to (default: 0.0.0.0)
	Host string `env:"SERVER_HOST" default:"0.0.0.0"`

	// Port is the port to listen on (default: 8080)
	Port int `env:"SERVER_PORT" default:"8080"`

	// ReadTimeout is the maximum duration for reading request body (default: 30s)
	ReadTimeout time.Duration `env:"SERVER_READ_TIMEOUT" default:"30s"`

	// WriteTimeout is the maximum duration for writing response (default: 120s)
	WriteTimeout time.Duration `env:"SERVER_WRITE_TIMEOUT" default:"120s"`

	// IdleTimeout is the keep-alive timeout (default: 60s)
	IdleTimeout time.Duration `env:"SERVER_IDLE_TIMEOUT" default:"60s"`

	// ShutdownTimeout is the maximum duration to wait for graceful shutdown (default: 30s)
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" default:"30s"`

	// RequestTimeout is the middleware timeout for requests (default: 60s).
	// Batch processing runs detached from the request and is bounded by
	// PROCESS_TIMEOUT instead.
	RequestTimeout time.Duration `env:"SERVER_REQUEST_TIMEOUT" default:"60s"`
}

// DatabaseConfig holds database connection settings.
type DatabaseConfig struct {
	// URL is the PostgreSQL connection string (required)
	// Supports both DATABASE_URL and DB_URL env vars for compatibility
	URL string `env:"DATABASE_URL" envAlt:"DB_URL" required:"true"`

	// MaxConns is the maximum number of connections in the pool (default: 20)
	MaxConns int `env:"DB_MAX_CONNS" default:"20"`

	// MinConns is the minimum number of connections to keep open (default: 4)
	MinConns int `env:"DB_MIN_CONNS" default:"4"`

	// MaxConnLifetime is the maximum lifetime of a connection (default: 1h)
	MaxConnLifetime time.Duration `env:"DB_MAX_CONN_LIFETIME" default:"1h"`

	// MaxConnIdleTime is the maximum idle time before a connection is closed (default: 30m)
	MaxConnIdleTime time.Duration `env:"DB_MAX_CONN_IDLE_TIME" default:"30m"`
}

// UploadConfig holds spreadsheet upload settings.
type UploadConfig struct {
	// MaxFileSize is the maximum allowed file size in bytes (default: 16MB)
	MaxFileSize int64 `env:"UPLOAD_MAX_FILE_SIZE" default:"16777216"`

	// DefaultRegion is used when an upload names no region (default: singapore)
	DefaultRegion string `env:"UPLOAD_DEFAULT_REGION" default:"singapore"`

	// BatchSize is the number of rows inserted per COPY (default: 1000)
	BatchSize int `env:"UPLOAD_BATCH_SIZE" default:"1000"`
}

// ProcessingConfig holds batch cleaning settings.
type ProcessingConfig struct {
	// MaxConcurrent is the maximum number of batches cleaned at once (default: 3)
	MaxConcurrent int `env:"PROCESS_MAX_CONCURRENT" default:"3"`

	// MaxWaitTime is how long to wait for a processing slot (default: 30s)
	MaxWaitTime time.Duration `env:"PROCESS_MAX_WAIT_TIME" default:"30s"`

	// Workers bounds per-batch cleaning concurrency; 0 means NumCPU (default: 0)
	Workers int `env:"PROCESS_WORKERS" default:"0"`

	// Timeout is the maximum duration of one processing job (default: 30m)
	Timeout time.Duration `env:"PROCESS_TIMEOUT" default:"30m"`

	// NotifyThreshold is the record count above which completion is announced (default: 100)
	NotifyThreshold int `env:"PROCESS_NOTIFY_THRESHOLD" default:"100"`
}

// EnhanceConfig holds settings for the optional language-model correction pass.
type EnhanceConfig struct {
	// Enabled turns the correction pass on (default: false)
	Enabled bool `env:"LLM_ENABLED" default:"false"`

	// BaseURL is the OpenAI-compatible API root (default: https://api.openai.com/v1)
	BaseURL string `env:"LLM_BASE_URL" default:"https://api.openai.com/v1"`

	// Model is the chat model name (default: gpt-4.1-mini)
	Model string `env:"LLM_MODEL" default:"gpt-4.1-mini"`

	// APIKey authenticates against the API
	APIKey string `env:"LLM_API_KEY" envAlt:"OPENAI_API_KEY"`

	// Timeout bounds one correction request (default: 90s)
	Timeout time.Duration `env:"LLM_TIMEOUT" default:"90s"`

	// GroupSize is the number of records per request (default: 10)
	GroupSize int `env:"LLM_GROUP_SIZE" default:"10"`

	// RequestsPerMinute throttles calls to the API; 0 disables (default: 60)
	RequestsPerMinute int `env:"LLM_REQUESTS_PER_MINUTE" default:"60"`
}

// StorageConfig selects where uploaded and exported files are kept.
type StorageConfig struct {
	// Backend is "local" or "azure" (default: local)
	Backend string `env:"STORAGE_BACKEND" default:"local"`

	// LocalDir is the root directory of the local backend (default: ./data/files)
	LocalDir string `env:"STORAGE_LOCAL_DIR" default:"./data/files"`

	// ConnectionString is the Azure Storage connection string
	ConnectionString string `env:"AZURE_STORAGE_CONNECTION_STRING"`

	// Container is the Azure blob container (default: addrclean)
	Container string `env:"STORAGE_CONTAINER" default:"addrclean"`
}

// RateLimitConfig holds rate limiting settings per time window.
type RateLimitConfig struct {
	// Enabled controls whether rate limiting is active (default: true)
	Enabled bool `env:"RATE_LIMIT_ENABLED" default:"true"`

	// RequestsPerMinute is the default rate limit per IP (default: 100)
	RequestsPerMinute int `env:"RATE_LIMIT_REQUESTS_PER_MINUTE" default:"100"`

	// UploadLimit is requests per minute for upload and processing endpoints (default: 10)
	UploadLimit int `env:"RATE_LIMIT_UPLOAD" default:"10"`
}

// SecurityConfig holds security-related settings.
type SecurityConfig struct {
	// TrustedProxies is a comma-separated list of trusted proxy CIDRs
	TrustedProxies []string `env:"TRUSTED_PROXIES"`

	// RequireAPIKey rejects requests without a valid API key (default: true)
	RequireAPIKey bool `env:"REQUIRE_API_KEY" default:"true"`

	// APIKeys is a comma-separated list of static operator keys. Keys
	// issued through the API are checked against the database as well.
	APIKeys []string `env:"API_KEYS"`

	// DefaultUserID is the acting user for static keys that send no
	// X-User-ID header (default: 1)
	DefaultUserID int64 `env:"DEFAULT_USER_ID" default:"1"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error (default: info)
	Level string `env:"LOG_LEVEL" default:"info"`

	// Format is the log format: text or json (default: text)
	Format string `env:"LOG_FORMAT" default:"text"`
}

// ArchiveConfig holds audit log retention settings.
type ArchiveConfig struct {
	// RetentionDays is how long audit entries are kept (default: 365)
	RetentionDays int `env:"AUDIT_RETENTION_DAYS" default:"365"`

	// BatchSize is rows deleted per purge statement (default: 5000)
	BatchSize int `env:"AUDIT_PURGE_BATCH" default:"5000"`

	// CheckInterval is how often the purge runs (default: 24h)
	CheckInterval time.Duration `env:"AUDIT_PURGE_INTERVAL" default:"24h"`
}

// Addr returns the server listen address in host:port format.
func (c *ServerConfig) Addr() string {
	if c.Host == "" {
		return ":" + itoa(c.Port)
	}
	return c.Host + ":" + itoa(c.Port)
}

// itoa converts an int to string without importing strconv in this file.
func itoa(i int) string {
	if i == 0 {
		return "0"
	}
	var b [20]byte
	n := len(b)
	neg := i < 0
	if neg {
		i = -i
	}
	for i > 0 {
		n--
		b[n] = byte('0' + i%10)
		i /= 10
	}
	if neg {
		n--
		b[n] = '-'
	}
	return string(b[n:])
}
