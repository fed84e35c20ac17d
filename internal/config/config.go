// Package config loads catalogdesk settings from environment variables.
// Defaults come from struct tags and everything is validated on startup so
// a misconfiguration fails fast.
package config

import (
	"strconv"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Storage   StorageConfig
	Deals     DealsConfig
	Extractor ExtractorConfig
	Catalog   CatalogConfig
	Jobs      JobsConfig
	Rate      RateLimitConfig
	Security  SecurityConfig
	Logging   LoggingConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `env:"SERVER_HOST" default:"0.0.0.0"`
	Port int    `env:"SERVER_PORT" default:"8080"`

	ReadTimeout  time.Duration `env:"SERVER_READ_TIMEOUT" default:"15s"`
	WriteTimeout time.Duration `env:"SERVER_WRITE_TIMEOUT" default:"60s"`
	IdleTimeout  time.Duration `env:"SERVER_IDLE_TIMEOUT" default:"60s"`

	// ShutdownTimeout bounds graceful shutdown, including running
	// spreadsheet jobs.
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" default:"30s"`

	// RequestTimeout is the per-request middleware deadline.
	RequestTimeout time.Duration `env:"SERVER_REQUEST_TIMEOUT" default:"60s"`

	// MaxUploadBytes caps spreadsheet import bodies.
	MaxUploadBytes int64 `env:"SERVER_MAX_UPLOAD_BYTES" default:"20971520"`
}

// DatabaseConfig holds the remote product store connection settings.
type DatabaseConfig struct {
	// URL accepts DATABASE_URL or DB_URL.
	URL string `env:"DATABASE_URL" envAlt:"DB_URL" required:"true"`

	MaxConns        int           `env:"DB_MAX_CONNS" default:"10"`
	MinConns        int           `env:"DB_MIN_CONNS" default:"2"`
	MaxConnLifetime time.Duration `env:"DB_MAX_CONN_LIFETIME" default:"1h"`
	MaxConnIdleTime time.Duration `env:"DB_MAX_CONN_IDLE_TIME" default:"30m"`

	// Migrate creates the products and audit_log tables on startup.
	Migrate bool `env:"DB_MIGRATE" default:"true"`
}

// Storage backends for the local KV cache.
const (
	StorageFile   = "file"
	StorageMemory = "memory"
	StorageRedis  = "redis"
)

// StorageConfig selects and configures the KV cache that holds the
// selection, export columns, review template and saved products.
type StorageConfig struct {
	Backend   string `env:"STORAGE_BACKEND" default:"file"`
	Dir       string `env:"STORAGE_DIR" default:"./data"`
	KeyPrefix string `env:"STORAGE_KEY_PREFIX" default:"catalogdesk:"`

	// MaxValueBytes is the per-key quota; 0 means the backend default.
	MaxValueBytes int64 `env:"STORAGE_MAX_VALUE_BYTES" default:"0"`

	RedisAddr     string `env:"REDIS_ADDR" default:"localhost:6379"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB" default:"0"`
}

// DealsConfig holds deal API client settings. An empty APIKey is allowed;
// deal requests then fail with a clear message.
type DealsConfig struct {
	BaseURL           string        `env:"DEALS_API_BASE_URL" default:"https://real-time-amazon-data.p.rapidapi.com"`
	APIKey            string        `env:"DEALS_API_KEY" envAlt:"RAPIDAPI_KEY"`
	Country           string        `env:"DEALS_COUNTRY" default:"US"`
	RequestsPerSecond float64       `env:"DEALS_REQUESTS_PER_SECOND" default:"1"`
	Timeout           time.Duration `env:"DEALS_TIMEOUT" default:"15s"`
}

// ExtractorConfig holds product page extractor settings.
type ExtractorConfig struct {
	Timeout      time.Duration `env:"EXTRACTOR_TIMEOUT" default:"10s"`
	CacheSize    int           `env:"EXTRACTOR_CACHE_SIZE" default:"256"`
	UserAgent    string        `env:"EXTRACTOR_USER_AGENT" default:"Mozilla/5.0 (compatible; catalogdesk/1.0)"`
	MaxBodyBytes int64         `env:"EXTRACTOR_MAX_BODY_BYTES" default:"5242880"`
}

// CatalogConfig holds view-model settings.
type CatalogConfig struct {
	// CollationLocale is a BCP 47 tag for alphabetical sorting.
	CollationLocale string `env:"CATALOG_COLLATION_LOCALE" default:"en"`

	// DefaultColumns are the export columns used until an operator saves
	// their own. Empty means the built-in default.
	DefaultColumns []string `env:"CATALOG_DEFAULT_COLUMNS"`

	// AuditMemory is how many audit entries are kept in memory for the
	// audit log page.
	AuditMemory int `env:"CATALOG_AUDIT_MEMORY" default:"500"`
}

// JobsConfig bounds concurrent spreadsheet imports and exports.
type JobsConfig struct {
	MaxConcurrent int           `env:"JOBS_MAX_CONCURRENT" default:"4"`
	MaxWait       time.Duration `env:"JOBS_MAX_WAIT" default:"15s"`
}

// RateLimitConfig holds per-client rate limiting settings.
type RateLimitConfig struct {
	Enabled           bool `env:"RATE_LIMIT_ENABLED" default:"true"`
	RequestsPerMinute int  `env:"RATE_LIMIT_REQUESTS_PER_MINUTE" default:"120"`
	Burst             int  `env:"RATE_LIMIT_BURST" default:"20"`
}

// SecurityConfig holds security-related settings.
type SecurityConfig struct {
	// TrustedProxies are CIDRs whose X-Real-IP / X-Forwarded-For is trusted.
	TrustedProxies []string `env:"TRUSTED_PROXIES"`

	EnableCSP bool `env:"SECURITY_ENABLE_CSP" default:"true"`

	// RequireAPIKey protects /api with X-API-Key.
	RequireAPIKey bool     `env:"REQUIRE_API_KEY" default:"false"`
	APIKeys       []string `env:"API_KEYS"`

	CORSAllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `env:"LOG_LEVEL" default:"info"`
	Format string `env:"LOG_FORMAT" default:"text"`

	// File enables a rotated copy of the log.
	File       string `env:"LOG_FILE"`
	MaxSizeMB  int    `env:"LOG_MAX_SIZE_MB" default:"100"`
	MaxBackups int    `env:"LOG_MAX_BACKUPS" default:"10"`
	MaxAgeDays int    `env:"LOG_MAX_AGE_DAYS" default:"30"`
}

// Addr returns the listen address in host:port form.
func (c *ServerConfig) Addr() string {
	return c.Host + ":" + strconv.Itoa(c.Port)
}
