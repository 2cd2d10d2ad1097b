package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jonathan/bin-crew/internal/geocode"
)

var _ geocode.Cache = (*GeocodeCache)(nil)

// GeocodeCache is the geocode.Cache backed by the geocode_cache table.
type GeocodeCache struct {
	db *DB
}

// GeocodeCache returns a cache view over this database
func (db *DB) GeocodeCache() *GeocodeCache {
	return &GeocodeCache{db: db}
}

// Get retrieves a cached entry by normalized address key
func (c *GeocodeCache) Get(ctx context.Context, key string) (*geocode.Entry, error) {
	var e geocode.Entry
	err := c.db.pool.QueryRow(ctx,
		`SELECT latitude, longitude, geocoded_at FROM geocode_cache WHERE address_key = $1`,
		key,
	).Scan(&e.Latitude, &e.Longitude, &e.GeocodedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get geocode: %w", err)
	}
	return &e, nil
}

// PutIfAbsent stores an entry unless the key is already cached
func (c *GeocodeCache) PutIfAbsent(ctx context.Context, key string, entry geocode.Entry) (bool, error) {
	tag, err := c.db.pool.Exec(ctx,
		`INSERT INTO geocode_cache (address_key, latitude, longitude)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (address_key) DO NOTHING`,
		key, entry.Latitude, entry.Longitude,
	)
	if err != nil {
		return false, fmt.Errorf("failed to cache geocode: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}
