// Package geocode resolves free-text addresses to coordinates with a write-once
// cache in front of a rate-limited external provider.
package geocode

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/jonathan/bin-crew/internal/types"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// DefaultInterval is the minimum spacing between provider requests.
const DefaultInterval = time.Second

// ErrNotFound is returned when the provider has no candidate for an address.
var ErrNotFound = errors.New("address not found")

// Result is a geocoded address.
type Result struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Cached    bool    `json:"cached"`
}

// Entry is a cached geocode.
type Entry struct {
	Latitude   float64   `json:"latitude"`
	Longitude  float64   `json:"longitude"`
	GeocodedAt time.Time `json:"geocoded_at"`
}

// Cache stores entries under normalized address keys. Entries are never
// overwritten.
type Cache interface {
	// Get returns (nil, nil) on a miss.
	Get(ctx context.Context, key string) (*Entry, error)
	// PutIfAbsent stores entry unless key exists. It reports whether it stored.
	PutIfAbsent(ctx context.Context, key string, entry Entry) (bool, error)
}

// Candidate is one provider match with coordinates as returned on the wire.
type Candidate struct {
	Lat         string `json:"lat"`
	Lon         string `json:"lon"`
	DisplayName string `json:"display_name,omitempty"`
}

// Provider looks up candidates for an address.
type Provider interface {
	Lookup(ctx context.Context, address string) ([]Candidate, error)
}

// Limiter spaces provider requests. *rate.Limiter satisfies it.
type Limiter interface {
	Wait(ctx context.Context) error
}

// ParseError reports an unparsable coordinate from the provider.
type ParseError struct {
	Address string
	Field   string
	Value   string
	Err     error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("geocoder returned invalid %s %q for %q: %v", e.Field, e.Value, e.Address, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// NewLimiter returns a process-wide limiter allowing one request per interval.
func NewLimiter(interval time.Duration) *rate.Limiter {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return rate.NewLimiter(rate.Every(interval), 1)
}

// NormalizeAddress is the cache key for an address: lowercased, trimmed, with
// internal whitespace runs collapsed.
func NormalizeAddress(address string) string {
	return strings.Join(strings.Fields(strings.ToLower(address)), " ")
}

// Geocoder resolves addresses. It is safe for concurrent use; all cache misses
// share one limiter.
type Geocoder struct {
	cache    Cache
	provider Provider
	limiter  Limiter
	now      func() time.Time
	logger   *zap.Logger
}

// New creates a geocoder. The limiter must be shared by every geocoder that talks
// to the same provider.
func New(cache Cache, provider Provider, limiter Limiter, logger *zap.Logger) *Geocoder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Geocoder{
		cache:    cache,
		provider: provider,
		limiter:  limiter,
		now:      time.Now,
		logger:   logger,
	}
}

// Geocode resolves address. A cache hit returns without touching the limiter or
// the provider.
func (g *Geocoder) Geocode(ctx context.Context, address string) (*Result, error) {
	key := NormalizeAddress(address)
	if key == "" {
		return nil, &types.ValidationError{Field: "address", Message: "is required"}
	}

	entry, err := g.cache.Get(ctx, key)
	if err != nil {
		g.logger.Warn("geocode cache read failed, falling through to provider",
			zap.String("key", key), zap.Error(err))
	}
	if entry != nil {
		if types.ValidCoordinates(entry.Latitude, entry.Longitude) {
			return &Result{Latitude: entry.Latitude, Longitude: entry.Longitude, Cached: true}, nil
		}
		g.logger.Warn("ignoring unusable cached coordinates",
			zap.String("key", key),
			zap.Float64("latitude", entry.Latitude),
			zap.Float64("longitude", entry.Longitude))
	}

	if err := g.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("geocode rate limiter: %w", err)
	}

	candidates, err := g.provider.Lookup(ctx, address)
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		return nil, ErrNotFound
	}

	first := candidates[0]
	lat, err := parseCoordinate(first.Lat, 90)
	if err != nil {
		return nil, &ParseError{Address: address, Field: "latitude", Value: first.Lat, Err: err}
	}
	lon, err := parseCoordinate(first.Lon, 180)
	if err != nil {
		return nil, &ParseError{Address: address, Field: "longitude", Value: first.Lon, Err: err}
	}

	if _, err := g.cache.PutIfAbsent(ctx, key, Entry{Latitude: lat, Longitude: lon, GeocodedAt: g.now()}); err != nil {
		g.logger.Warn("failed to cache geocode result", zap.String("key", key), zap.Error(err))
	}
	return &Result{Latitude: lat, Longitude: lon}, nil
}

// parseCoordinate parses a provider coordinate and rejects non-finite values and
// values outside [-limit, limit].
func parseCoordinate(raw string, limit float64) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(v) || v < -limit || v > limit {
		return 0, fmt.Errorf("outside [-%g, %g]", limit, limit)
	}
	return v, nil
}
