package opencage

import (
	"context"
	"fmt"

	"github.com/couchcryptid/quake-insight-service/internal/domain"
	"github.com/couchcryptid/quake-insight-service/internal/observability"
	lru "github.com/hashicorp/golang-lru/v2"
)

// CachedGeocoder wraps a Geocoder with an in-memory LRU cache keyed on
// coordinates rounded to six decimals (about 0.1 m).
type CachedGeocoder struct {
	inner   domain.Geocoder
	cache   *lru.Cache[string, domain.GeocodingResult]
	metrics *observability.Metrics
}

var _ domain.Geocoder = (*CachedGeocoder)(nil)

// NewCachedGeocoder creates a cache decorator around a geocoder. A
// non-positive maxEntries holds a single answer.
func NewCachedGeocoder(inner domain.Geocoder, maxEntries int, metrics *observability.Metrics) *CachedGeocoder {
	maxEntries = max(maxEntries, 1)
	cache, err := lru.New[string, domain.GeocodingResult](maxEntries)
	if err != nil {
		// lru.New only fails for a non-positive size.
		panic(err)
	}
	return &CachedGeocoder{
		inner:   inner,
		cache:   cache,
		metrics: metrics,
	}
}

func (c *CachedGeocoder) ReverseGeocode(ctx context.Context, lat, lon float64) (domain.GeocodingResult, error) {
	key := fmt.Sprintf("%.6f,%.6f", lat, lon)
	if result, ok := c.cache.Get(key); ok {
		c.metrics.GeocodeCache.WithLabelValues("hit").Inc()
		return result, nil
	}
	c.metrics.GeocodeCache.WithLabelValues("miss").Inc()

	result, err := c.inner.ReverseGeocode(ctx, lat, lon)
	if err != nil {
		return result, err
	}
	// Empty answers stay uncached so a later request can retry the provider.
	if result.FormattedAddress != "" {
		c.cache.Add(key, result)
	}
	return result, nil
}

// Len reports the number of cached answers.
func (c *CachedGeocoder) Len() int {
	return c.cache.Len()
}
