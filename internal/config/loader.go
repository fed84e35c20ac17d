package config

import (
	"fmt"
	"net/url"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/language"
)

// Load reads configuration from environment variables, applies tag
// defaults and validates the result.
func Load() (*Config, error) {
	cfg := &Config{}

	if err := loadStruct(reflect.ValueOf(cfg).Elem()); err != nil {
		return nil, fmt.Errorf("config load: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return cfg, nil
}

// loadStruct recursively populates struct fields from environment variables.
func loadStruct(v reflect.Value) error {
	t := v.Type()

	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		fieldVal := v.Field(i)

		if !fieldVal.CanSet() {
			continue
		}

		if field.Type.Kind() == reflect.Struct && field.Type != reflect.TypeOf(time.Time{}) {
			if err := loadStruct(fieldVal); err != nil {
				return err
			}
			continue
		}

		envName := field.Tag.Get("env")
		envAlt := field.Tag.Get("envAlt")
		defaultVal := field.Tag.Get("default")
		required := field.Tag.Get("required") == "true"

		if envName == "" {
			continue
		}

		value := os.Getenv(envName)
		if value == "" && envAlt != "" {
			value = os.Getenv(envAlt)
		}

		if value == "" {
			if required {
				return fmt.Errorf("required environment variable %s is not set", envName)
			}
			value = defaultVal
		}

		if value == "" {
			continue
		}

		if err := setField(fieldVal, value); err != nil {
			return fmt.Errorf("invalid value for %s=%q: %w", envName, value, err)
		}
	}

	return nil
}

// setField sets a reflect.Value from a string based on its type.
func setField(field reflect.Value, value string) error {
	switch field.Kind() {
	case reflect.String:
		field.SetString(value)

	case reflect.Int, reflect.Int64:
		if field.Type() == reflect.TypeOf(time.Duration(0)) {
			d, err := time.ParseDuration(value)
			if err != nil {
				return fmt.Errorf("invalid duration: %w", err)
			}
			field.Set(reflect.ValueOf(d))
		} else {
			i, err := strconv.ParseInt(value, 10, 64)
			if err != nil {
				return fmt.Errorf("invalid integer: %w", err)
			}
			field.SetInt(i)
		}

	case reflect.Float64:
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("invalid number: %w", err)
		}
		field.SetFloat(f)

	case reflect.Bool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid boolean: %w", err)
		}
		field.SetBool(b)

	case reflect.Slice:
		if field.Type().Elem().Kind() == reflect.String {
			// Comma separated; blanks dropped.
			parts := strings.Split(value, ",")
			result := make([]string, 0, len(parts))
			for _, p := range parts {
				p = strings.TrimSpace(p)
				if p != "" {
					result = append(result, p)
				}
			}
			field.Set(reflect.ValueOf(result))
		} else {
			return fmt.Errorf("unsupported slice type: %s", field.Type().Elem().Kind())
		}

	default:
		return fmt.Errorf("unsupported field type: %s", field.Kind())
	}

	return nil
}

// Validate checks the loaded configuration and reports every problem at
// once.
func (c *Config) Validate() error {
	var errs []string

	if c.Database.URL == "" {
		errs = append(errs, "DATABASE_URL is required")
	}
	if c.Database.MaxConns <= 0 {
		errs = append(errs, "DB_MAX_CONNS must be positive")
	}
	if c.Database.MinConns < 0 {
		errs = append(errs, "DB_MIN_CONNS must be non-negative")
	}
	if c.Database.MaxConns < c.Database.MinConns {
		errs = append(errs, fmt.Sprintf("DB_MAX_CONNS (%d) must be >= DB_MIN_CONNS (%d)",
			c.Database.MaxConns, c.Database.MinConns))
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("SERVER_PORT (%d) must be 1-65535", c.Server.Port))
	}
	if c.Server.ReadTimeout < 0 {
		errs = append(errs, "SERVER_READ_TIMEOUT must be non-negative")
	}
	if c.Server.ShutdownTimeout <= 0 {
		errs = append(errs, "SERVER_SHUTDOWN_TIMEOUT must be positive")
	}
	if c.Server.RequestTimeout <= 0 {
		errs = append(errs, "SERVER_REQUEST_TIMEOUT must be positive")
	}
	if c.Server.MaxUploadBytes <= 0 {
		errs = append(errs, "SERVER_MAX_UPLOAD_BYTES must be positive")
	}

	switch strings.ToLower(c.Storage.Backend) {
	case StorageFile:
		if strings.TrimSpace(c.Storage.Dir) == "" {
			errs = append(errs, "STORAGE_DIR is required when STORAGE_BACKEND=file")
		}
	case StorageRedis:
		if strings.TrimSpace(c.Storage.RedisAddr) == "" {
			errs = append(errs, "REDIS_ADDR is required when STORAGE_BACKEND=redis")
		}
	case StorageMemory:
	default:
		errs = append(errs, fmt.Sprintf("STORAGE_BACKEND (%q) must be one of: file, memory, redis", c.Storage.Backend))
	}
	if c.Storage.MaxValueBytes < 0 {
		errs = append(errs, "STORAGE_MAX_VALUE_BYTES must be non-negative")
	}

	if u, err := url.Parse(c.Deals.BaseURL); err != nil || !u.IsAbs() {
		errs = append(errs, fmt.Sprintf("DEALS_API_BASE_URL (%q) must be an absolute URL", c.Deals.BaseURL))
	}
	if len(c.Deals.Country) != 2 {
		errs = append(errs, fmt.Sprintf("DEALS_COUNTRY (%q) must be a two-letter country code", c.Deals.Country))
	}
	if c.Deals.RequestsPerSecond < 0 {
		errs = append(errs, "DEALS_REQUESTS_PER_SECOND must be non-negative")
	}
	if c.Deals.Timeout <= 0 {
		errs = append(errs, "DEALS_TIMEOUT must be positive")
	}

	if c.Extractor.Timeout <= 0 {
		errs = append(errs, "EXTRACTOR_TIMEOUT must be positive")
	}
	if c.Extractor.CacheSize <= 0 {
		errs = append(errs, "EXTRACTOR_CACHE_SIZE must be positive")
	}
	if c.Extractor.MaxBodyBytes <= 0 {
		errs = append(errs, "EXTRACTOR_MAX_BODY_BYTES must be positive")
	}

	if _, err := language.Parse(c.Catalog.CollationLocale); err != nil {
		errs = append(errs, fmt.Sprintf("CATALOG_COLLATION_LOCALE (%q) is not a language tag", c.Catalog.CollationLocale))
	}
	if c.Catalog.AuditMemory <= 0 {
		errs = append(errs, "CATALOG_AUDIT_MEMORY must be positive")
	}

	if c.Jobs.MaxConcurrent <= 0 {
		errs = append(errs, "JOBS_MAX_CONCURRENT must be positive")
	}
	if c.Jobs.MaxWait <= 0 {
		errs = append(errs, "JOBS_MAX_WAIT must be positive")
	}

	if c.Rate.Enabled && c.Rate.RequestsPerMinute <= 0 {
		errs = append(errs, "RATE_LIMIT_REQUESTS_PER_MINUTE must be positive when rate limiting is enabled")
	}
	if c.Rate.Enabled && c.Rate.Burst <= 0 {
		errs = append(errs, "RATE_LIMIT_BURST must be positive when rate limiting is enabled")
	}

	if c.Security.RequireAPIKey && len(c.Security.APIKeys) == 0 {
		errs = append(errs, "REQUIRE_API_KEY is true but API_KEYS is empty; configure at least one API key or disable auth")
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Logging.Level)] {
		errs = append(errs, fmt.Sprintf("LOG_LEVEL (%q) must be one of: debug, info, warn, error", c.Logging.Level))
	}
	validFormats := map[string]bool{"text": true, "json": true}
	if !validFormats[strings.ToLower(c.Logging.Format)] {
		errs = append(errs, fmt.Sprintf("LOG_FORMAT (%q) must be one of: text, json", c.Logging.Format))
	}

	if len(errs) > 0 {
		return fmt.Errorf("validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

// String is safe to log: database URL, passwords and keys are masked.
func (c *Config) String() string {
	var b strings.Builder
	b.WriteString("Config{")
	fmt.Fprintf(&b, "Server: {Host: %q, Port: %d}, ", c.Server.Host, c.Server.Port)
	fmt.Fprintf(&b, "Database: {URL: [MASKED], MaxConns: %d, MinConns: %d}, ",
		c.Database.MaxConns, c.Database.MinConns)
	fmt.Fprintf(&b, "Storage: {Backend: %q, Dir: %q, RedisAddr: %q, RedisPassword: %s}, ",
		c.Storage.Backend, c.Storage.Dir, c.Storage.RedisAddr, mask(c.Storage.RedisPassword))
	fmt.Fprintf(&b, "Deals: {BaseURL: %q, APIKey: %s, Country: %q}, ",
		c.Deals.BaseURL, mask(c.Deals.APIKey), c.Deals.Country)
	fmt.Fprintf(&b, "Rate: {Enabled: %v, RequestsPerMinute: %d}, ",
		c.Rate.Enabled, c.Rate.RequestsPerMinute)
	fmt.Fprintf(&b, "Security: {RequireAPIKey: %v, APIKeys: %d configured}, ",
		c.Security.RequireAPIKey, len(c.Security.APIKeys))
	fmt.Fprintf(&b, "Logging: {Level: %q, Format: %q}", c.Logging.Level, c.Logging.Format)
	b.WriteString("}")
	return b.String()
}

func mask(secret string) string {
	if secret == "" {
		return "[EMPTY]"
	}
	return "[MASKED]"
}
