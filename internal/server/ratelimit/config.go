package ratelimit

import (
	"strconv"
	"strings"
	"time"
)

// EndpointConfig represents rate limiting configuration for a specific endpoint.
type EndpointConfig struct {
	Path   string        // Path pattern: exact, {name} segments, or a "/"-terminated prefix
	Method string        // HTTP method; empty matches any
	Limit  int           // Maximum requests per window
	Window time.Duration // Time window
	Burst  int           // Burst capacity (defaults to Limit if 0)
}

// LoadConfig loads rate limiting configuration from environment variables read
// through getenv. Malformed values fall back to their defaults.
//
// RATE_LIMIT_ENDPOINTS adds or replaces endpoint limits, one per
// semicolon-separated entry in the form "METHOD /path=LIMIT/WINDOW[/BURST]",
// for example "POST /geocode=10/1m/2".
func LoadConfig(getenv func(string) string) *Config {
	env := envReader(getenv)
	if !env.boolValue("RATE_LIMIT_ENABLED", true) {
		return &Config{Enabled: false}
	}

	return &Config{
		Enabled:         true,
		DefaultLimit:    env.intValue("RATE_LIMIT_DEFAULT_LIMIT", 1000),
		DefaultWindow:   env.durationValue("RATE_LIMIT_DEFAULT_WINDOW", time.Minute),
		CleanupInterval: env.durationValue("RATE_LIMIT_CLEANUP_INTERVAL", 5*time.Minute),
		IdleTimeout:     env.durationValue("RATE_LIMIT_IDLE_TIMEOUT", time.Hour),
		Whitelist:       parseIPList(getenv("RATE_LIMIT_WHITELIST")),
		Blacklist:       parseIPList(getenv("RATE_LIMIT_BLACKLIST")),
		EndpointConfigs: mergeEndpoints(DefaultEndpointConfigs(), parseEndpoints(getenv("RATE_LIMIT_ENDPOINTS"))),
	}
}

// DefaultEndpointConfigs returns the built-in per-endpoint limits.
func DefaultEndpointConfigs() []EndpointConfig {
	perMinute := func(method, path string, limit, burst int) EndpointConfig {
		return EndpointConfig{Path: path, Method: method, Limit: limit, Window: time.Minute, Burst: burst}
	}
	return []EndpointConfig{
		// Calls that can reach the external geocoder or build files.
		perMinute("POST", "/geocode", 30, 5),
		perMinute("POST", "/route/optimize", 30, 5),
		perMinute("GET", "/employees/{id}/route", 60, 10),
		perMinute("GET", "/employees/{id}/earnings.xlsx", 30, 5),

		// Writes.
		perMinute("POST", "/employees/{id}/clock-in", 20, 5),
		perMinute("POST", "/assignments", 100, 10),
		perMinute("POST", "/employees/", 100, 10),
		perMinute("POST", "/jobs/", 200, 20),
	}
}

// parseEndpoints reads RATE_LIMIT_ENDPOINTS. Entries that do not parse are skipped.
func parseEndpoints(raw string) []EndpointConfig {
	var out []EndpointConfig
	for _, entry := range strings.Split(raw, ";") {
		entry = strings.TrimSpace(entry)
		route, limits, ok := strings.Cut(entry, "=")
		if !ok {
			continue
		}
		method, path, ok := strings.Cut(strings.TrimSpace(route), " ")
		path = strings.TrimSpace(path)
		if !ok || !strings.HasPrefix(path, "/") {
			continue
		}

		parts := strings.Split(limits, "/")
		if len(parts) < 2 || len(parts) > 3 {
			continue
		}
		limit, err := strconv.Atoi(parts[0])
		if err != nil || limit < 0 {
			continue
		}
		window, err := time.ParseDuration(parts[1])
		if err != nil || window <= 0 {
			continue
		}
		burst := 0
		if len(parts) == 3 {
			if burst, err = strconv.Atoi(parts[2]); err != nil || burst < 0 {
				continue
			}
		}

		out = append(out, EndpointConfig{
			Path:   path,
			Method: strings.ToUpper(method),
			Limit:  limit,
			Window: window,
			Burst:  burst,
		})
	}
	return out
}

// mergeEndpoints replaces base entries with the same method and path and appends
// the rest.
func mergeEndpoints(base, overrides []EndpointConfig) []EndpointConfig {
	merged := append([]EndpointConfig(nil), base...)
	for _, o := range overrides {
		replaced := false
		for i := range merged {
			if merged[i].Method == o.Method && merged[i].Path == o.Path {
				merged[i] = o
				replaced = true
				break
			}
		}
		if !replaced {
			merged = append(merged, o)
		}
	}
	return merged
}

type envReader func(string) string

func (e envReader) intValue(key string, def int) int {
	if v, err := strconv.Atoi(e(key)); err == nil {
		return v
	}
	return def
}

func (e envReader) boolValue(key string, def bool) bool {
	if v, err := strconv.ParseBool(e(key)); err == nil {
		return v
	}
	return def
}

func (e envReader) durationValue(key string, def time.Duration) time.Duration {
	if v, err := time.ParseDuration(e(key)); err == nil {
		return v
	}
	return def
}

// parseIPList parses a comma-separated list of IP addresses into a set.
func parseIPList(list string) map[string]bool {
	result := make(map[string]bool)
	for _, ip := range strings.Split(list, ",") {
		if ip = strings.TrimSpace(ip); ip != "" {
			result[ip] = true
		}
	}
	return result
}
