package postgres

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"github.com/babcs2035/enzetsu-navi/internal/domain"
)

type GeocodeStore struct {
	db *sqlx.DB
}

func NewGeocodeStore(db *sqlx.DB) *GeocodeStore {
	return &GeocodeStore{db: db}
}

// Get fetches the cache entry for a literal location string. Returns
// (nil, nil) on a cache miss.
func (s *GeocodeStore) Get(ctx context.Context, locationName string) (*domain.GeocodeCacheEntry, error) {
	query := `
		SELECT id, location_name, lat, lng, address, created_at
		FROM geocode_cache
		WHERE location_name = $1`

	var entry domain.GeocodeCacheEntry
	err := sqlx.GetContext(ctx, GetExecutor(ctx, s.db), &entry, query, locationName)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

// Create writes one cache row. Entries are immutable: a concurrent write for
// the same string keeps whichever row landed first.
func (s *GeocodeStore) Create(ctx context.Context, entry *domain.GeocodeCacheEntry) error {
	query := `
		INSERT INTO geocode_cache (location_name, lat, lng, address)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (location_name) DO NOTHING`

	_, err := GetExecutor(ctx, s.db).ExecContext(ctx, query,
		entry.LocationName,
		entry.Lat,
		entry.Lng,
		entry.Address,
	)
	return err
}
