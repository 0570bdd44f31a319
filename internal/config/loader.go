package config

import (
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"
)

// Load reads configuration from environment variables.
// It applies defaults for unset values and validates the result.
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

// Defaults returns the configuration with every default applied and no
// environment lookups. The CLI starts from this and layers flags on top.
func Defaults() *Config {
	cfg := &Config{}
	_ = loadStructFrom(reflect.ValueOf(cfg).Elem(), func(string) string { return "" })
	return cfg
}

func loadStruct(v reflect.Value) error {
	return loadStructFrom(v, os.Getenv)
}

// loadStructFrom recursively populates struct fields using lookup.
func loadStructFrom(v reflect.Value, lookup func(string) string) error {
	t := v.Type()

	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		fieldVal := v.Field(i)

		if !fieldVal.CanSet() {
			continue
		}

		if field.Type.Kind() == reflect.Struct {
			if err := loadStructFrom(fieldVal, lookup); err != nil {
				return err
			}
			continue
		}

		envName := field.Tag.Get("env")
		if envName == "" {
			continue
		}
		envAlt := field.Tag.Get("envAlt")
		required := field.Tag.Get("required") == "true"

		value := lookup(envName)
		if value == "" && envAlt != "" {
			value = lookup(envAlt)
		}

		if value == "" {
			if required {
				return fmt.Errorf("required environment variable %s is not set", envName)
			}
			value = field.Tag.Get("default")
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
			return nil
		}
		i, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid integer: %w", err)
		}
		field.SetInt(i)

	case reflect.Bool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid boolean: %w", err)
		}
		field.SetBool(b)

	case reflect.Slice:
		if field.Type().Elem().Kind() != reflect.String {
			return fmt.Errorf("unsupported slice type: %s", field.Type().Elem().Kind())
		}
		parts := strings.Split(value, ",")
		result := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				result = append(result, p)
			}
		}
		field.Set(reflect.ValueOf(result))

	default:
		return fmt.Errorf("unsupported field type: %s", field.Kind())
	}

	return nil
}

// Validate checks that the configuration is valid.
// Returns an error describing all validation failures.
func (c *Config) Validate() error {
	var errs []string

	if c.Database.Enabled() {
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

	if c.Upload.MaxFileSize <= 0 {
		errs = append(errs, "UPLOAD_MAX_FILE_SIZE must be positive")
	}
	if c.Upload.MaxTotalSize < c.Upload.MaxFileSize {
		errs = append(errs, "UPLOAD_MAX_TOTAL_SIZE must be >= UPLOAD_MAX_FILE_SIZE")
	}
	if c.Upload.MaxFiles <= 0 {
		errs = append(errs, "UPLOAD_MAX_FILES must be positive")
	}
	if c.Upload.MaxConcurrent <= 0 {
		errs = append(errs, "UPLOAD_MAX_CONCURRENT must be positive")
	}
	if c.Upload.MaxWaitTime <= 0 {
		errs = append(errs, "UPLOAD_MAX_WAIT_TIME must be positive")
	}
	if c.Upload.Timeout <= 0 {
		errs = append(errs, "UPLOAD_TIMEOUT must be positive")
	}
	// A merge request may wait for a slot and then run to its own timeout;
	// a shorter server timeout would cut it off first.
	runBudget := c.Upload.MaxWaitTime + c.Upload.Timeout
	if c.Server.RequestTimeout > 0 && c.Server.RequestTimeout < runBudget {
		errs = append(errs, fmt.Sprintf("SERVER_REQUEST_TIMEOUT (%s) must be >= UPLOAD_MAX_WAIT_TIME + UPLOAD_TIMEOUT (%s)",
			c.Server.RequestTimeout, runBudget))
	}
	if c.Server.WriteTimeout > 0 && c.Server.WriteTimeout < runBudget {
		errs = append(errs, fmt.Sprintf("SERVER_WRITE_TIMEOUT (%s) must be >= UPLOAD_MAX_WAIT_TIME + UPLOAD_TIMEOUT (%s)",
			c.Server.WriteTimeout, runBudget))
	}

	if c.Rate.Enabled && (c.Rate.RequestsPerMinute <= 0 || c.Rate.MergeLimit <= 0) {
		errs = append(errs, "RATE_LIMIT_REQUESTS_PER_MINUTE and RATE_LIMIT_MERGE must be positive when rate limiting is enabled")
	}

	if c.Security.RequireAPIKey && len(c.Security.APIKeys) == 0 {
		errs = append(errs, "REQUIRE_API_KEY is true but API_KEYS is empty; configure at least one API key or disable auth")
	}

	errs = append(errs, c.Merge.validate()...)

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

// validate checks only what can be checked without the tabular package;
// dialect characters are parsed when the profile is resolved.
func (m *MergeConfig) validate() []string {
	var errs []string
	if strings.TrimSpace(m.KeyColumn) == "" {
		errs = append(errs, "MERGE_KEY_COLUMN must not be empty")
	}
	switch strings.ToLower(m.LineEnding) {
	case "crlf", "lf":
	default:
		errs = append(errs, fmt.Sprintf("MERGE_LINE_ENDING (%q) must be crlf or lf", m.LineEnding))
	}
	switch strings.ToLower(m.MalformedRows) {
	case "skip", "fail":
	default:
		errs = append(errs, fmt.Sprintf("MERGE_MALFORMED_ROWS (%q) must be skip or fail", m.MalformedRows))
	}
	if m.FilterMinLength < 0 {
		errs = append(errs, "MERGE_FILTER_MIN_LENGTH must be non-negative")
	}
	if m.FilterMinLength > 0 && m.FilterMinLengthColumn == "" {
		errs = append(errs, "MERGE_FILTER_MIN_LENGTH requires MERGE_FILTER_MIN_LENGTH_COLUMN")
	}
	if m.PreviewRows < 0 {
		errs = append(errs, "MERGE_PREVIEW_ROWS must be non-negative")
	}
	if m.HistorySize <= 0 {
		errs = append(errs, "MERGE_HISTORY_SIZE must be positive")
	}
	if m.HistoryRetention < 0 {
		errs = append(errs, "MERGE_HISTORY_RETENTION must be non-negative")
	}
	if m.HistoryRetention > 0 && m.HistoryPruneInterval <= 0 {
		errs = append(errs, "MERGE_HISTORY_PRUNE_INTERVAL must be positive when retention is enabled")
	}
	if strings.TrimSpace(m.OutputName) == "" {
		errs = append(errs, "MERGE_OUTPUT_NAME must not be empty")
	}
	return errs
}

// String returns a safe string representation of the config for logging.
// The database URL and API keys are masked.
func (c *Config) String() string {
	var b strings.Builder
	b.WriteString("Config{")
	fmt.Fprintf(&b, "Server: {Host: %q, Port: %d}, ", c.Server.Host, c.Server.Port)
	if c.Database.Enabled() {
		fmt.Fprintf(&b, "Database: {URL: [MASKED], MaxConns: %d}, ", c.Database.MaxConns)
	} else {
		b.WriteString("Database: {disabled}, ")
	}
	fmt.Fprintf(&b, "Upload: {MaxFileSize: %d, MaxFiles: %d, MaxConcurrent: %d}, ",
		c.Upload.MaxFileSize, c.Upload.MaxFiles, c.Upload.MaxConcurrent)
	fmt.Fprintf(&b, "Rate: {Enabled: %v, RequestsPerMinute: %d}, ",
		c.Rate.Enabled, c.Rate.RequestsPerMinute)
	fmt.Fprintf(&b, "Security: {RequireAPIKey: %v, APIKeys: %d}, ",
		c.Security.RequireAPIKey, len(c.Security.APIKeys))
	fmt.Fprintf(&b, "Merge: {KeyColumn: %q, Delimiter: %q, MalformedRows: %q, Profile: %q}, ",
		c.Merge.KeyColumn, c.Merge.Delimiter, c.Merge.MalformedRows, c.Merge.DefaultProfile)
	fmt.Fprintf(&b, "Logging: {Level: %q, Format: %q}", c.Logging.Level, c.Logging.Format)
	b.WriteString("}")
	return b.String()
}
