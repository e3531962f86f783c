// Package pins implements the operations on map pins: dropping a pin
// searches photos around it, the photos of a pin can be refreshed, removed
// and prefetched into the image cache.
package pins

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"bitbucket.org/kleinnic74/pinphotos/consts"
	"bitbucket.org/kleinnic74/pinphotos/domain"
	"bitbucket.org/kleinnic74/pinphotos/domain/gps"
	"bitbucket.org/kleinnic74/pinphotos/flickr"
	"bitbucket.org/kleinnic74/pinphotos/geocoding"
	"bitbucket.org/kleinnic74/pinphotos/library"
	"bitbucket.org/kleinnic74/pinphotos/logging"

	"go.uber.org/zap"
)

var ErrInvalidLocation = errors.New("invalid location")

// Searcher finds photos around a location
type Searcher interface {
	SearchRandom(ctx context.Context, lat, lon float64) (*flickr.Result, error)
}

// Pager pages sequentially through the results of a search
type Pager interface {
	Search(ctx context.Context, lat, lon float64) (*flickr.Result, error)
	NextPage(ctx context.Context) (*flickr.Result, error)
}

// ImageCache is the part of the image cache the service needs
type ImageCache interface {
	Get(id string) ([]byte, bool)
	Remove(id string)
	PurgeAll()
}

// ImageLoader resolves images through the cache, Load runs in the
// background and reports through done
type ImageLoader interface {
	Get(ctx context.Context, id, remoteURL string) ([]byte, error)
	Load(ctx context.Context, id, remoteURL string, done func([]byte, error))
}

type Option func(*Service)

// WithResolver names new pins after the place they are dropped at
func WithResolver(r geocoding.Resolver) Option {
	return func(s *Service) {
		s.places = r
	}
}

func WithPager(p Pager) Option {
	return func(s *Service) {
		s.pager = p
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

type Service struct {
	store  library.PinStore
	search Searcher
	cache  ImageCache
	loader ImageLoader
	pager  Pager
	places geocoding.Resolver

	now func() time.Time
}

func NewService(store library.PinStore, search Searcher, cache ImageCache, loader ImageLoader, opts ...Option) *Service {
	s := &Service{
		store:  store,
		search: search,
		cache:  cache,
		loader: loader,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Drop creates a pin at the given location and searches photos for it. The
// pin is stored even if the search fails, the search error is returned
// together with the pin.
func (s *Service) Drop(ctx context.Context, lat, lon float64) (*library.Pin, *flickr.Result, error) {
	location := gps.NewCoordinates(lat, lon)
	if !location.IsValid() {
		return nil, nil, fmt.Errorf("%w: %s", ErrInvalidLocation, location)
	}
	title := geocoding.PlaceTitle(ctx, s.places, lat, lon, library.DefaultTitle)
	pin := library.NewPin(title, location, s.now())
	log, ctx := logging.FromWithNameAndFields(ctx, "pins", zap.Stringer("pin", pin.ID))
	if err := s.store.Add(ctx, pin); err != nil {
		return nil, nil, err
	}
	log.Info("Pin dropped", zap.String("title", pin.Title), zap.Stringer("location", location))

	result, err := s.search.SearchRandom(ctx, lat, lon)
	if err != nil {
		log.Warn("Search for new pin failed", zap.Error(err))
		return pin, nil, err
	}
	if err := s.store.ReplacePhotos(ctx, pin.ID, result.Photos); err != nil {
		return pin, result, err
	}
	pin.Photos = result.Photos
	return pin, result, nil
}

func (s *Service) Get(ctx context.Context, id library.PinID) (*library.Pin, error) {
	return s.store.Get(ctx, id)
}

func (s *Service) List(ctx context.Context, start, maxCount int, order consts.SortOrder) ([]*library.Pin, bool, error) {
	return s.store.FindAllPaged(ctx, start, maxCount, order)
}

// Refresh replaces the photos of a pin by a new random collection. The
// cached images of the previous photos are evicted. On a search failure the
// pin keeps its photos.
func (s *Service) Refresh(ctx context.Context, id library.PinID) (*library.Pin, *flickr.Result, error) {
	log, ctx := logging.FromWithNameAndFields(ctx, "pins", zap.Stringer("pin", id))
	pin, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	result, err := s.search.SearchRandom(ctx, pin.Location.Lat, pin.Location.Long)
	if err != nil {
		log.Warn("Search for new collection failed", zap.Error(err))
		return pin, nil, err
	}
	if err := s.store.ReplacePhotos(ctx, id, result.Photos); err != nil {
		return pin, result, err
	}
	s.evict(pin.Photos, result.Photos)
	log.Info("New collection", zap.Int("photos", len(result.Photos)), zap.Stringer("outcome", result.Outcome))
	pin.Photos = result.Photos
	return pin, result, nil
}

// RemovePhoto removes a photo from a pin and evicts its image from the cache
func (s *Service) RemovePhoto(ctx context.Context, id library.PinID, key string) error {
	if err := s.store.RemovePhoto(ctx, id, key); err != nil {
		return err
	}
	s.cache.Remove(key)
	return nil
}

// Delete removes a pin and evicts the images of all its photos
func (s *Service) Delete(ctx context.Context, id library.PinID) error {
	pin, err := s.store.Delete(ctx, id)
	if err != nil {
		return err
	}
	s.evict(pin.Photos, nil)
	logging.From(ctx).Info("Pin deleted", zap.Stringer("pin", id), zap.Int("photos", len(pin.Photos)))
	return nil
}

// Image returns the image of a photo of a pin, loading it if it is not cached
func (s *Service) Image(ctx context.Context, id library.PinID, key string) ([]byte, error) {
	pin, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	photo, found := pin.Photo(key)
	if !found {
		return nil, library.PhotoNotFound(key)
	}
	return s.loader.Get(ctx, photo.Key(), photo.URL)
}

// PrefetchReport counts the outcome of a prefetch
type PrefetchReport struct {
	Cached  int `json:"cached"`
	Fetched int `json:"fetched"`
	Failed  int `json:"failed"`
}

// Prefetch loads the images of all photos of a pin into the cache through
// the background loader. Failed images are counted, they do not abort the
// prefetch. The number of concurrent downloads is bounded by the loader.
func (s *Service) Prefetch(ctx context.Context, id library.PinID) (PrefetchReport, error) {
	var report PrefetchReport
	pin, err := s.store.Get(ctx, id)
	if err != nil {
		return report, err
	}
	log, ctx := logging.FromWithNameAndFields(ctx, "prefetch", zap.Stringer("pin", id))

	var lock sync.Mutex
	var wg sync.WaitGroup
	for _, photo := range pin.Photos {
		if _, found := s.cache.Get(photo.Key()); found {
			report.Cached++
			continue
		}
		wg.Add(1)
		s.loader.Load(ctx, photo.Key(), photo.URL, func(_ []byte, err error) {
			defer wg.Done()
			lock.Lock()
			defer lock.Unlock()
			if err != nil {
				report.Failed++
			} else {
				report.Fetched++
			}
		})
	}
	wg.Wait()
	if err := ctx.Err(); err != nil {
		return report, err
	}
	log.Info("Prefetch done", zap.Int("cached", report.Cached), zap.Int("fetched", report.Fetched), zap.Int("failed", report.Failed))
	return report, nil
}

// Browse starts paging through the photos around a location
func (s *Service) Browse(ctx context.Context, lat, lon float64) (*flickr.Result, error) {
	if s.pager == nil {
		return nil, errors.New("browsing not available")
	}
	if !gps.NewCoordinates(lat, lon).IsValid() {
		return nil, fmt.Errorf("%w: %f,%f", ErrInvalidLocation, lat, lon)
	}
	return s.pager.Search(ctx, lat, lon)
}

// NextPage continues the last Browse
func (s *Service) NextPage(ctx context.Context) (*flickr.Result, error) {
	if s.pager == nil {
		return nil, errors.New("browsing not available")
	}
	return s.pager.NextPage(ctx)
}

// PurgeCache removes all images from the cache. Images of stored pins are
// evicted one by one so that images written by earlier runs are removed too.
func (s *Service) PurgeCache(ctx context.Context) error {
	all, err := s.store.FindAll(ctx, consts.Ascending)
	if err != nil {
		return err
	}
	evicted := 0
	for _, pin := range all {
		s.evict(pin.Photos, nil)
		evicted += len(pin.Photos)
	}
	s.cache.PurgeAll()
	logging.From(ctx).Info("Image cache purged", zap.Int("pins", len(all)), zap.Int("photos", evicted))
	return nil
}

// evict removes the cached images of old photos which are not in keep
func (s *Service) evict(old []domain.Photo, keep []domain.Photo) {
	kept := make(map[string]struct{}, len(keep))
	for _, p := range keep {
		kept[p.Key()] = struct{}{}
	}
	for _, p := range old {
		if _, found := kept[p.Key()]; !found {
			s.cache.Remove(p.Key())
		}
	}
}
