package geocode

import (
	"context"
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonathan/bin-crew/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type fakeProvider struct {
	calls      atomic.Int32
	candidates []Candidate
	err        error
}

func (p *fakeProvider) Lookup(context.Context, string) ([]Candidate, error) {
	p.calls.Add(1)
	return p.candidates, p.err
}

type countingLimiter struct {
	waits atomic.Int32
}

func (l *countingLimiter) Wait(context.Context) error {
	l.waits.Add(1)
	return nil
}

func atlanta() []Candidate {
	return []Candidate{{Lat: "33.7490", Lon: "-84.3880"}, {Lat: "0", Lon: "0"}}
}

func TestNormalizeAddress(t *testing.T) {
	assert.Equal(t, "1 peach st, atlanta", NormalizeAddress("  1 Peach   St,\tAtlanta "))
	assert.Equal(t, "", NormalizeAddress("   "))
}

func TestGeocode_CacheMissThenHit(t *testing.T) {
	provider := &fakeProvider{candidates: atlanta()}
	limiter := &countingLimiter{}
	cache := NewMemoryCache()
	g := New(cache, provider, limiter, nil)
	ctx := context.Background()

	first, err := g.Geocode(ctx, "1 Peach St, Atlanta")
	require.NoError(t, err)
	assert.False(t, first.Cached)
	assert.InDelta(t, 33.749, first.Latitude, 1e-9)
	assert.InDelta(t, -84.388, first.Longitude, 1e-9)

	second, err := g.Geocode(ctx, "  1 PEACH ST, atlanta ")
	require.NoError(t, err)
	assert.True(t, second.Cached)
	assert.Equal(t, first.Latitude, second.Latitude)

	assert.Equal(t, int32(1), provider.calls.Load())
	assert.Equal(t, int32(1), limiter.waits.Load(), "cache hits do not consume the limiter")
	assert.Equal(t, 1, cache.Len())
}

func TestGeocode_NotFoundIsNotCached(t *testing.T) {
	provider := &fakeProvider{}
	cache := NewMemoryCache()
	g := New(cache, provider, &countingLimiter{}, nil)

	_, err := g.Geocode(context.Background(), "nowhere")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, 0, cache.Len())

	provider.candidates = atlanta()
	res, err := g.Geocode(context.Background(), "nowhere")
	require.NoError(t, err)
	assert.False(t, res.Cached)
}

func TestGeocode_UnparsableCoordinateIsHardError(t *testing.T) {
	cache := NewMemoryCache()
	g := New(cache, &fakeProvider{candidates: []Candidate{{Lat: "north", Lon: "-84.3"}}}, &countingLimiter{}, nil)

	_, err := g.Geocode(context.Background(), "1 Peach St")
	var pe *ParseError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, "latitude", pe.Field)
	assert.False(t, errors.Is(err, ErrNotFound))
	assert.Equal(t, 0, cache.Len())
}

func TestGeocode_NonFiniteOrOutOfRangeCoordinateIsHardError(t *testing.T) {
	tests := []struct {
		name      string
		candidate Candidate
		field     string
	}{
		{"NaN latitude", Candidate{Lat: "NaN", Lon: "-84.3"}, "latitude"},
		{"infinite latitude", Candidate{Lat: "+Inf", Lon: "-84.3"}, "latitude"},
		{"latitude past the pole", Candidate{Lat: "91", Lon: "-84.3"}, "latitude"},
		{"NaN longitude", Candidate{Lat: "33.7", Lon: "nan"}, "longitude"},
		{"longitude out of range", Candidate{Lat: "33.7", Lon: "-184.3"}, "longitude"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cache := NewMemoryCache()
			g := New(cache, &fakeProvider{candidates: []Candidate{tt.candidate}}, &countingLimiter{}, nil)

			res, err := g.Geocode(context.Background(), "1 Peach St")
			assert.Nil(t, res)
			var pe *ParseError
			require.ErrorAs(t, err, &pe)
			assert.Equal(t, tt.field, pe.Field)
			assert.Equal(t, 0, cache.Len(), "bad coordinates are never cached")
		})
	}
}

func TestGeocode_UnusableCachedEntryFallsThrough(t *testing.T) {
	cache := NewMemoryCache()
	_, err := cache.PutIfAbsent(context.Background(), "1 peach st, atlanta", Entry{Latitude: math.NaN(), Longitude: -84.3})
	require.NoError(t, err)
	provider := &fakeProvider{candidates: atlanta()}
	g := New(cache, provider, &countingLimiter{}, nil)

	res, err := g.Geocode(context.Background(), "1 Peach St, Atlanta")
	require.NoError(t, err)
	assert.False(t, res.Cached)
	assert.InDelta(t, 33.749, res.Latitude, 1e-9)
	assert.Equal(t, int32(1), provider.calls.Load())
}

func TestGeocode_EmptyAddress(t *testing.T) {
	provider := &fakeProvider{}
	g := New(NewMemoryCache(), provider, &countingLimiter{}, nil)

	_, err := g.Geocode(context.Background(), "   ")
	var ve *types.ValidationError
	require.True(t, errors.As(err, &ve))
	assert.Equal(t, int32(0), provider.calls.Load())
}

func TestGeocode_ProviderUnavailable(t *testing.T) {
	unavailable := &types.UnavailableError{Service: "geocoder", Err: errors.New("timeout")}
	g := New(NewMemoryCache(), &fakeProvider{err: unavailable}, &countingLimiter{}, nil)

	_, err := g.Geocode(context.Background(), "1 Peach St")
	var ue *types.UnavailableError
	assert.True(t, errors.As(err, &ue))
}

type brokenCache struct{}

func (brokenCache) Get(context.Context, string) (*Entry, error) {
	return nil, errors.New("redis: connection refused")
}

func (brokenCache) PutIfAbsent(context.Context, string, Entry) (bool, error) {
	return false, errors.New("redis: connection refused")
}

func TestGeocode_CacheFailuresAreLoggedNotReturned(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	g := New(brokenCache{}, &fakeProvider{candidates: atlanta()}, &countingLimiter{}, zap.New(core))

	res, err := g.Geocode(context.Background(), "1 Peach St")
	require.NoError(t, err)
	assert.False(t, res.Cached)
	assert.Equal(t, 1, logs.FilterMessage("geocode cache read failed, falling through to provider").Len())
	assert.Equal(t, 1, logs.FilterMessage("failed to cache geocode result").Len())
}

func TestGeocode_LimiterCancellation(t *testing.T) {
	limiter := NewLimiter(time.Hour)
	require.True(t, limiter.Allow(), "burst of one")

	g := New(NewMemoryCache(), &fakeProvider{candidates: atlanta()}, limiter, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := g.Geocode(ctx, "1 Peach St")
	assert.Error(t, err)
}

func TestGeocode_ConcurrentMissesAreSpaced(t *testing.T) {
	interval := 20 * time.Millisecond
	g := New(NewMemoryCache(), &fakeProvider{candidates: atlanta()}, NewLimiter(interval), nil)

	var wg sync.WaitGroup
	start := time.Now()
	for _, addr := range []string{"a st", "b st", "c st", "d st"} {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := g.Geocode(context.Background(), addr)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	// Four misses with burst 1 need at least three intervals.
	assert.GreaterOrEqual(t, time.Since(start), 3*interval-5*time.Millisecond)
}

func TestMemoryCache_WriteOnce(t *testing.T) {
	c := NewMemoryCache()
	ctx := context.Background()

	stored, err := c.PutIfAbsent(ctx, "k", Entry{Latitude: 1})
	require.NoError(t, err)
	assert.True(t, stored)

	stored, err = c.PutIfAbsent(ctx, "k", Entry{Latitude: 2})
	require.NoError(t, err)
	assert.False(t, stored)

	e, _ := c.Get(ctx, "k")
	assert.Equal(t, 1.0, e.Latitude)
}

func TestNominatimProvider_Lookup(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/search", r.URL.Path)
		assert.Equal(t, "json", r.URL.Query().Get("format"))
		assert.Equal(t, "1", r.URL.Query().Get("limit"))
		assert.Equal(t, "1 Peach St, Atlanta", r.URL.Query().Get("q"))
		assert.Equal(t, "bin-crew-test", r.Header.Get("User-Agent"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[{"lat":"33.7490","lon":"-84.3880","display_name":"Atlanta"}]`))
	}))
	defer srv.Close()

	p := NewNominatimProvider(srv.URL, "bin-crew-test")
	candidates, err := p.Lookup(context.Background(), "1 Peach St, Atlanta")
	require.NoError(t, err)
	require.Len(t, candidates, 1)
	assert.Equal(t, "33.7490", candidates[0].Lat)
	assert.Equal(t, "-84.3880", candidates[0].Lon)
}

func TestNominatimProvider_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := NewNominatimProvider(srv.URL, "ua").Lookup(context.Background(), "x")
	var ue *types.UnavailableError
	require.True(t, errors.As(err, &ue))
	assert.Equal(t, "geocoder", ue.Service)
}

func TestNominatimProvider_EmptyResult(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	g := New(NewMemoryCache(), NewNominatimProvider(srv.URL, "ua"), &countingLimiter{}, nil)
	_, err := g.Geocode(context.Background(), "nowhere")
	assert.ErrorIs(t, err, ErrNotFound)
}
