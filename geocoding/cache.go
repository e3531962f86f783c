package geocoding

import (
	"context"
	"sync"

	"bitbucket.org/kleinnic74/pinphotos/domain/gps"
	"bitbucket.org/kleinnic74/pinphotos/logging"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

// Stats counts the lookups answered by the cache
type Stats struct {
	Hits         int `json:"hits"`
	Misses       int `json:"misses"`
	MultiMatches int `json:"multimatches"`
	Total        int `json:"total"`
}

const (
	lookupHit   = "hit"
	lookupMiss  = "miss"
	lookupMulti = "multi"
)

type lookups struct {
	lock    sync.Mutex
	counted Stats
	results *prometheus.CounterVec
}

// record counts one lookup, a multi match is also a miss
func (l *lookups) record(result string) {
	l.results.WithLabelValues(result).Inc()
	l.lock.Lock()
	defer l.lock.Unlock()
	l.counted.Total++
	switch result {
	case lookupHit:
		l.counted.Hits++
	case lookupMulti:
		l.counted.MultiMatches++
		l.counted.Misses++
	default:
		l.counted.Misses++
	}
}

func (l *lookups) snapshot() Stats {
	l.lock.Lock()
	defer l.lock.Unlock()
	return l.counted
}

// Cache answers reverse geocoding lookups from the bounding boxes of places
// already resolved, falling back to the delegate resolver
type Cache struct {
	lookups  *lookups
	delegate Resolver

	lock   sync.RWMutex
	places *QuadTree[*gps.Address]
}

// NewGeoCache caches the places resolved by r by their bounding box. The
// metrics are registered with reg, nil means not registered.
func NewGeoCache(r Resolver, reg prometheus.Registerer) *Cache {
	results := promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
		Name: "geocoding_cache_lookups_total",
		Help: "Reverse geocoding lookups in the place cache by result",
	}, []string{"result"})
	return &Cache{
		lookups:  &lookups{results: results},
		delegate: r,
		places:   NewQuadTree[*gps.Address](gps.WorldBounds),
	}
}

// DumpStats returns the lookup counts since the cache was created
func (c *Cache) DumpStats() Stats {
	return c.lookups.snapshot()
}

func (c *Cache) ReverseGeocode(ctx context.Context, lat, lon float64) (*gps.Address, bool, error) {
	log, ctx := logging.FromWithNameAndFields(ctx, "geocache", zap.Stringer("pos", gps.PointFromLatLon(lat, lon)))
	candidates := c.findPlace(lat, lon)
	switch len(candidates) {
	case 1:
		c.lookups.record(lookupHit)
		return candidates[0], true, nil
	case 0:
		c.lookups.record(lookupMiss)
		log.Debug("Cache miss")
	default:
		c.lookups.record(lookupMulti)
		log.Debug("Ambiguous cache match", zap.Int("candidates", len(candidates)))
	}
	place, found, err := c.delegate.ReverseGeocode(ctx, lat, lon)
	if err != nil {
		return nil, false, err
	}
	switch {
	case !found:
		log.Info("No place at position")
	case !c.Add(*place):
		log.Info("Place not cacheable", zap.Stringer("place", place.ID))
	}
	return place, found, nil
}

func (c *Cache) findPlace(lat float64, lon float64) []*gps.Address {
	c.lock.RLock()
	defer c.lock.RUnlock()
	return c.places.At(gps.PointFromLatLon(lat, lon))
}

// Add caches a place, places without a bounding box inside the world
// bounds are ignored
func (c *Cache) Add(place gps.Address) bool {
	if !place.HasValidBoundingBox() || !gps.WorldBounds.FullyContains(*place.BoundingBox) {
		return false
	}
	return c.add(*place.BoundingBox, &place)
}

func (c *Cache) add(r gps.Rect, place *gps.Address) bool {
	c.lock.Lock()
	defer c.lock.Unlock()
	return c.places.Insert(r, place) == nil
}

// PlacesIn returns the cached places whose bounding box intersects r
func (c *Cache) PlacesIn(r gps.Rect) []gps.Address {
	c.lock.RLock()
	defer c.lock.RUnlock()
	found := c.places.Within(r)
	places := make([]gps.Address, len(found))
	for i, p := range found {
		places[i] = *p
	}
	return places
}

// Len returns the number of cached places
func (c *Cache) Len() int {
	c.lock.RLock()
	defer c.lock.RUnlock()
	return c.places.Len()
}

func (c *Cache) Visit(v Visitor) {
	c.lock.RLock()
	defer c.lock.RUnlock()
	c.places.Visit(v)
}
