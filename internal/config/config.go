// Package config provides configuration loading and validation for the server and CLI.
package config

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata" // time zones must resolve on hosts without a zoneinfo database
)

// Defaults for fields left empty by the file and environment.
const (
	DefaultPort              = "8080"
	DefaultGeocoderURL       = "https://nominatim.openstreetmap.org"
	DefaultGeocoderUserAgent = "bin-crew/1.0"
	DefaultGeocoderInterval  = "1s"
	DefaultLogLevel          = "info"
	DefaultLogFormat         = "json"
	DefaultTimeZone          = "America/New_York"
	DefaultJWTExpiration     = 24
)

// Config represents the service configuration that can be loaded from a JSON file.
// All fields are optional; environment variables override file values.
type Config struct {
	// Server
	Port     string `json:"port,omitempty"`
	TimeZone string `json:"time_zone,omitempty"` // IANA zone that defines "today" for clock-in

	// Storage
	DatabaseURL string `json:"database_url,omitempty"` // PostgreSQL; empty runs on the in-memory store
	RedisURL    string `json:"redis_url,omitempty"`    // Geocode cache; empty uses the database or memory

	// Geocoding
	GeocoderURL       string `json:"geocoder_url,omitempty"`
	GeocoderUserAgent string `json:"geocoder_user_agent,omitempty"`
	GeocoderInterval  string `json:"geocoder_interval,omitempty"` // Go duration, e.g. "1s"

	// Email
	EmailAPIURL string `json:"email_api_url,omitempty"`
	EmailAPIKey string `json:"email_api_key,omitempty"`
	EmailFrom   string `json:"email_from,omitempty"`

	// Best-effort side effects
	OutboxWorkers     int `json:"outbox_workers,omitempty"`
	OutboxQueueSize   int `json:"outbox_queue_size,omitempty"`
	OutboxMaxAttempts int `json:"outbox_max_attempts,omitempty"`

	// Coverage
	ZonesFile string `json:"zones_file,omitempty"` // Overrides the built-in zone table

	// Logging
	LogLevel  string `json:"log_level,omitempty"`
	LogFormat string `json:"log_format,omitempty"`

	// Auth
	JWTSecret          string `json:"jwt_secret,omitempty"`
	JWTExpirationHours int    `json:"jwt_expiration_hours,omitempty"`
}

// LoadConfig loads configuration from a JSON file.
// Returns an error if the file cannot be read or parsed.
func LoadConfig(path string) (*Config, error) {
	if path == "" {
		return nil, fmt.Errorf("config path is empty")
	}

	// Resolve path relative to current directory if not absolute
	if !filepath.IsAbs(path) {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get current directory: %w", err)
		}
		path = filepath.Join(cwd, path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	return &cfg, nil
}

// Load builds the effective configuration: the optional JSON file at path, then
// environment overrides, then defaults. The result is validated.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if path != "" {
		loaded, err := LoadConfig(path)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}
	if err := cfg.ApplyEnv(os.Getenv); err != nil {
		return nil, err
	}
	merged := cfg.MergeWithDefaults(Defaults())
	if err := merged.Validate(); err != nil {
		return nil, err
	}
	return &merged, nil
}

// Defaults returns the built-in defaults.
func Defaults() Config {
	return Config{
		Port:               DefaultPort,
		TimeZone:           DefaultTimeZone,
		GeocoderURL:        DefaultGeocoderURL,
		GeocoderUserAgent:  DefaultGeocoderUserAgent,
		GeocoderInterval:   DefaultGeocoderInterval,
		LogLevel:           DefaultLogLevel,
		LogFormat:          DefaultLogFormat,
		JWTExpirationHours: DefaultJWTExpiration,
	}
}

// ApplyEnv overlays non-empty environment variables read through getenv.
func (c *Config) ApplyEnv(getenv func(string) string) error {
	strs := map[string]*string{
		"PORT":                &c.Port,
		"TIME_ZONE":           &c.TimeZone,
		"DATABASE_URL":        &c.DatabaseURL,
		"REDIS_URL":           &c.RedisURL,
		"GEOCODER_URL":        &c.GeocoderURL,
		"GEOCODER_USER_AGENT": &c.GeocoderUserAgent,
		"GEOCODER_INTERVAL":   &c.GeocoderInterval,
		"EMAIL_API_URL":       &c.EmailAPIURL,
		"EMAIL_API_KEY":       &c.EmailAPIKey,
		"EMAIL_FROM":          &c.EmailFrom,
		"ZONES_FILE":          &c.ZonesFile,
		"LOG_LEVEL":           &c.LogLevel,
		"LOG_FORMAT":          &c.LogFormat,
		"JWT_SECRET":          &c.JWTSecret,
	}
	for key, field := range strs {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			*field = v
		}
	}

	ints := map[string]*int{
		"OUTBOX_WORKERS":       &c.OutboxWorkers,
		"OUTBOX_QUEUE_SIZE":    &c.OutboxQueueSize,
		"OUTBOX_MAX_ATTEMPTS":  &c.OutboxMaxAttempts,
		"JWT_EXPIRATION_HOURS": &c.JWTExpirationHours,
	}
	for key, field := range ints {
		v := strings.TrimSpace(getenv(key))
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", key, err)
		}
		*field = n
	}
	return nil
}

// Validate checks that the configuration has valid values.
func (c *Config) Validate() error {
	if c.Port != "" {
		if p, err := strconv.Atoi(c.Port); err != nil || p < 1 || p > 65535 {
			return fmt.Errorf("config error: 'port' must be a number between 1 and 65535, got %q", c.Port)
		}
	}
	if c.TimeZone != "" {
		if _, err := time.LoadLocation(c.TimeZone); err != nil {
			return fmt.Errorf("config error: unknown 'time_zone' %q", c.TimeZone)
		}
	}
	if c.GeocoderInterval != "" {
		d, err := time.ParseDuration(c.GeocoderInterval)
		if err != nil || d < 0 {
			return fmt.Errorf("config error: 'geocoder_interval' must be a non-negative duration, got %q", c.GeocoderInterval)
		}
	}
	for name, raw := range map[string]string{"geocoder_url": c.GeocoderURL, "email_api_url": c.EmailAPIURL} {
		if raw == "" {
			continue
		}
		if u, err := url.Parse(raw); err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("config error: '%s' must be an absolute URL, got %q", name, raw)
		}
	}
	if c.EmailAPIURL != "" && c.EmailFrom == "" {
		return fmt.Errorf("config error: 'email_from' is required when 'email_api_url' is set")
	}

	// Validate numeric ranges
	if c.OutboxWorkers < 0 || c.OutboxQueueSize < 0 || c.OutboxMaxAttempts < 0 {
		return fmt.Errorf("config error: outbox settings must be non-negative")
	}
	if c.JWTExpirationHours < 0 {
		return fmt.Errorf("config error: 'jwt_expiration_hours' must be non-negative")
	}

	switch c.LogFormat {
	case "", "json", "console":
	default:
		return fmt.Errorf("config error: 'log_format' must be json or console, got %q", c.LogFormat)
	}

	if c.ZonesFile != "" {
		if _, err := os.Stat(c.ZonesFile); os.IsNotExist(err) {
			return fmt.Errorf("config error: zones file not found: %s", c.ZonesFile)
		}
	}

	return nil
}

// MergeWithDefaults returns a new Config with empty fields filled from defaults.
func (c *Config) MergeWithDefaults(defaults Config) Config {
	result := *c

	// String fields: use default if empty
	fill := func(field *string, def string) {
		if *field == "" {
			*field = def
		}
	}
	fill(&result.Port, defaults.Port)
	fill(&result.TimeZone, defaults.TimeZone)
	fill(&result.DatabaseURL, defaults.DatabaseURL)
	fill(&result.RedisURL, defaults.RedisURL)
	fill(&result.GeocoderURL, defaults.GeocoderURL)
	fill(&result.GeocoderUserAgent, defaults.GeocoderUserAgent)
	fill(&result.GeocoderInterval, defaults.GeocoderInterval)
	fill(&result.EmailAPIURL, defaults.EmailAPIURL)
	fill(&result.EmailAPIKey, defaults.EmailAPIKey)
	fill(&result.EmailFrom, defaults.EmailFrom)
	fill(&result.ZonesFile, defaults.ZonesFile)
	fill(&result.LogLevel, defaults.LogLevel)
	fill(&result.LogFormat, defaults.LogFormat)
	fill(&result.JWTSecret, defaults.JWTSecret)

	// Int fields: use default if zero
	if result.OutboxWorkers == 0 {
		result.OutboxWorkers = defaults.OutboxWorkers
	}
	if result.OutboxQueueSize == 0 {
		result.OutboxQueueSize = defaults.OutboxQueueSize
	}
	if result.OutboxMaxAttempts == 0 {
		result.OutboxMaxAttempts = defaults.OutboxMaxAttempts
	}
	if result.JWTExpirationHours == 0 {
		result.JWTExpirationHours = defaults.JWTExpirationHours
	}

	return result
}

// Location returns the configured time zone, or time.Local when unset.
func (c *Config) Location() (*time.Location, error) {
	if c.TimeZone == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.TimeZone)
	if err != nil {
		return nil, fmt.Errorf("failed to load time zone %s: %w", c.TimeZone, err)
	}
	return loc, nil
}

// GeocodeInterval returns the parsed provider spacing. Unset means one second.
func (c *Config) GeocodeInterval() time.Duration {
	d, err := time.ParseDuration(c.GeocoderInterval)
	if err != nil {
		return time.Second
	}
	return d
}
