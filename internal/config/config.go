// Package config provides centralized configuration for the merge service
// and CLI. Values come from environment variables with defaults, and every
// setting is validated on startup so misconfiguration fails fast.
package config

import (
	"strconv"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Upload   UploadConfig
	Rate     RateLimitConfig
	Security SecurityConfig
	Logging  LoggingConfig
	Merge    MergeConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	// Host is the interface to bind to (default: 0.0.0.0)
	Host string `env:"SERVER_HOST" default:"0.0.0.0"`

	// Port is the port to listen on (default: 8080)
	Port int `env:"SERVER_PORT" default:"8080"`

	ReadTimeout  time.Duration `env:"SERVER_READ_TIMEOUT" default:"30s"`
	WriteTimeout time.Duration `env:"SERVER_WRITE_TIMEOUT" default:"2m"`
	IdleTimeout  time.Duration `env:"SERVER_IDLE_TIMEOUT" default:"60s"`

	// ShutdownTimeout bounds graceful shutdown, including running merges (default: 30s)
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" default:"30s"`

	// RequestTimeout is the middleware timeout for requests (default: 2m)
	RequestTimeout time.Duration `env:"SERVER_REQUEST_TIMEOUT" default:"2m"`
}

// DatabaseConfig holds the optional run history database.
// When URL is empty, run history is kept in memory only.
type DatabaseConfig struct {
	// URL is the PostgreSQL connection string.
	// Supports both DATABASE_URL and DB_URL env vars.
	URL string `env:"DATABASE_URL" envAlt:"DB_URL"`

	MaxConns        int           `env:"DB_MAX_CONNS" default:"5"`
	MinConns        int           `env:"DB_MIN_CONNS" default:"0"`
	MaxConnLifetime time.Duration `env:"DB_MAX_CONN_LIFETIME" default:"1h"`
	MaxConnIdleTime time.Duration `env:"DB_MAX_CONN_IDLE_TIME" default:"30m"`
}

// Enabled reports whether a history database is configured.
func (c DatabaseConfig) Enabled() bool { return c.URL != "" }

// UploadConfig bounds the input accepted by one merge request.
type UploadConfig struct {
	// MaxFileSize is the largest single input file in bytes (default: 100MB)
	MaxFileSize int64 `env:"UPLOAD_MAX_FILE_SIZE" default:"104857600"`

	// MaxTotalSize is the largest multipart request body in bytes (default: 500MB)
	MaxTotalSize int64 `env:"UPLOAD_MAX_TOTAL_SIZE" default:"524288000"`

	// MaxFiles is the most input files per merge (default: 50)
	MaxFiles int `env:"UPLOAD_MAX_FILES" default:"50"`

	// MaxConcurrent is the number of merges allowed to run at once (default: 4)
	MaxConcurrent int `env:"UPLOAD_MAX_CONCURRENT" default:"4"`

	// MaxWaitTime is how long a merge waits for a free slot (default: 30s)
	MaxWaitTime time.Duration `env:"UPLOAD_MAX_WAIT_TIME" default:"30s"`

	// Timeout bounds a single merge run. Together with MaxWaitTime it must
	// fit inside SERVER_REQUEST_TIMEOUT and SERVER_WRITE_TIMEOUT (default: 90s)
	Timeout time.Duration `env:"UPLOAD_TIMEOUT" default:"90s"`
}

// RateLimitConfig holds per-IP rate limiting settings.
type RateLimitConfig struct {
	Enabled bool `env:"RATE_LIMIT_ENABLED" default:"true"`

	// RequestsPerMinute is the default rate limit per IP (default: 100)
	RequestsPerMinute int `env:"RATE_LIMIT_REQUESTS_PER_MINUTE" default:"100"`

	// MergeLimit is requests per minute for the merge endpoints (default: 20)
	MergeLimit int `env:"RATE_LIMIT_MERGE" default:"20"`
}

// SecurityConfig holds security-related settings.
type SecurityConfig struct {
	// TrustedProxies is a comma-separated list of trusted proxy CIDRs
	TrustedProxies []string `env:"TRUSTED_PROXIES"`

	EnableCSP bool `env:"SECURITY_ENABLE_CSP" default:"true"`

	// RequireAPIKey protects /api routes with the X-API-Key header
	RequireAPIKey bool     `env:"REQUIRE_API_KEY" default:"false"`
	APIKeys       []string `env:"API_KEYS"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error (default: info)
	Level string `env:"LOG_LEVEL" default:"info"`

	// Format is the log format: text or json (default: text)
	Format string `env:"LOG_FORMAT" default:"text"`
}

// MergeConfig holds the defaults applied to every merge run. Profiles and
// per-request options override them field by field.
type MergeConfig struct {
	// KeyColumn is the business key column (default: URL)
	KeyColumn string `env:"MERGE_KEY_COLUMN" default:"URL"`

	// Delimiter is a single character or one of tab, comma, semicolon, pipe (default: ,)
	Delimiter string `env:"MERGE_DELIMITER" default:","`

	// Quote is the quoting character (default: ")
	Quote string `env:"MERGE_QUOTE" default:"\""`

	// LineEnding of written output: crlf or lf (default: crlf)
	LineEnding string `env:"MERGE_LINE_ENDING" default:"crlf"`

	// MalformedRows is skip or fail (default: skip)
	MalformedRows string `env:"MERGE_MALFORMED_ROWS" default:"skip"`

	// FilterKeyContains keeps only rows whose key contains this text
	FilterKeyContains string `env:"MERGE_FILTER_KEY_CONTAINS"`

	// FilterMinLengthColumn and FilterMinLength keep only rows whose column
	// holds more than FilterMinLength characters
	FilterMinLengthColumn string `env:"MERGE_FILTER_MIN_LENGTH_COLUMN"`
	FilterMinLength       int    `env:"MERGE_FILTER_MIN_LENGTH" default:"0"`

	// ProfilesFile is an optional YAML file of named merge profiles
	ProfilesFile string `env:"MERGE_PROFILES_FILE"`

	// DefaultProfile is used when a request names none (default: default)
	DefaultProfile string `env:"MERGE_DEFAULT_PROFILE" default:"default"`

	// OutputName is the download file name (default: merged.csv)
	OutputName string `env:"MERGE_OUTPUT_NAME" default:"merged.csv"`

	// PreviewRows is how many merged rows the preview endpoint returns (default: 20)
	PreviewRows int `env:"MERGE_PREVIEW_ROWS" default:"20"`

	// HistorySize is how many runs the in-memory history keeps (default: 200)
	HistorySize int `env:"MERGE_HISTORY_SIZE" default:"200"`

	// HistoryRetention is how long run history is kept; 0 keeps it forever (default: 720h)
	HistoryRetention time.Duration `env:"MERGE_HISTORY_RETENTION" default:"720h"`

	// HistoryPruneInterval is how often expired history is deleted (default: 1h)
	HistoryPruneInterval time.Duration `env:"MERGE_HISTORY_PRUNE_INTERVAL" default:"1h"`
}

// Addr returns the server listen address in host:port format.
func (c *ServerConfig) Addr() string {
	return c.Host + ":" + strconv.Itoa(c.Port)
}
