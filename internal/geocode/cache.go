package geocode

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/babcs2035/enzetsu-navi/internal/domain"
	"github.com/babcs2035/enzetsu-navi/internal/metrics"
)

// Store persists cache entries keyed on the literal location string.
type Store interface {
	Get(ctx context.Context, locationName string) (*domain.GeocodeCacheEntry, error)
	Create(ctx context.Context, entry *domain.GeocodeCacheEntry) error
}

// Cache bounds provider calls: every unique location string hits the provider
// at most once, ever. Failed lookups are stored as negative entries and never
// retried. Keys are not normalized; two spellings of one place are two rows.
type Cache struct {
	store       Store
	provider    Provider
	countryHint string
	logger      *slog.Logger
}

func NewCache(store Store, provider Provider, countryHint string, logger *slog.Logger) *Cache {
	return &Cache{
		store:       store,
		provider:    provider,
		countryHint: countryHint,
		logger:      logger.With("component", "geocode_cache"),
	}
}

// Lookup resolves a location string to coordinates. A nil result with a nil
// error means the location is not resolvable (now or in a past run).
func (c *Cache) Lookup(ctx context.Context, locationName string) (*domain.GeoPoint, error) {
	entry, err := c.store.Get(ctx, locationName)
	if err != nil {
		return nil, fmt.Errorf("get cache entry: %w", err)
	}

	if entry != nil {
		if point := entry.Point(); point != nil {
			metrics.GeocodeLookups.WithLabelValues("hit").Inc()
			return point, nil
		}
		metrics.GeocodeLookups.WithLabelValues("negative_hit").Inc()
		return nil, nil
	}

	query := locationName
	if c.countryHint != "" {
		query = locationName + " " + c.countryHint
	}

	point, err := c.provider.Search(ctx, query)
	if err != nil {
		// Provider errors become negative entries too: one failed call per
		// unique string, never retried.
		c.logger.Warn("geocoding failed", "location", locationName, "error", err)
		metrics.GeocodeLookups.WithLabelValues("provider_error").Inc()
		point = nil
	} else if point == nil {
		metrics.GeocodeLookups.WithLabelValues("provider_miss").Inc()
	} else {
		metrics.GeocodeLookups.WithLabelValues("provider_ok").Inc()
	}

	newEntry := &domain.GeocodeCacheEntry{LocationName: locationName}
	if point != nil {
		newEntry.Lat = &point.Lat
		newEntry.Lng = &point.Lng
		newEntry.Address = &point.Address
	}

	if err := c.store.Create(ctx, newEntry); err != nil {
		return nil, fmt.Errorf("write cache entry: %w", err)
	}

	return point, nil
}
