package domain

import "time"

// GeoPoint is a successful geocoding result.
type GeoPoint struct {
	Lat     float64
	Lng     float64
	Address string
}

// GeocodeCacheEntry caches one provider lookup, keyed on the literal location
// string. An entry with all nullable fields nil is a negative entry: the
// lookup failed once and is never retried. Entries are immutable once written.
type GeocodeCacheEntry struct {
	ID           int64     `db:"id"`
	LocationName string    `db:"location_name"`
	Lat          *float64  `db:"lat"`
	Lng          *float64  `db:"lng"`
	Address      *string   `db:"address"`
	CreatedAt    time.Time `db:"created_at"`
}

// Point returns the cached coordinates, or nil for a negative entry.
func (e *GeocodeCacheEntry) Point() *GeoPoint {
	if e.Lat == nil || e.Lng == nil {
		return nil
	}
	p := &GeoPoint{Lat: *e.Lat, Lng: *e.Lng}
	if e.Address != nil {
		p.Address = *e.Address
	}
	return p
}
