// Package loader resolves photo images through the image cache, fetching
// and caching them on a miss.
package loader

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"bitbucket.org/kleinnic74/pinphotos/consts"
	"bitbucket.org/kleinnic74/pinphotos/domain"
	"bitbucket.org/kleinnic74/pinphotos/logging"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

const (
	DefaultWorkers = 4
	DefaultTimeout = 30 * time.Second

	maxImageSize = 32 << 20
)

var ErrNoURL = errors.New("no URL to load the image from")

// Cache is the storage images are looked up in and written to
type Cache interface {
	Get(id string) ([]byte, bool)
	Put(id string, data []byte)
}

// FetchError reports an image which could not be downloaded
type FetchError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("failed to fetch %s: status %d", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("failed to fetch %s: %s", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

type Option func(*Loader)

func WithHTTPClient(client *http.Client) Option {
	return func(l *Loader) {
		l.client = client
	}
}

func WithDispatcher(d Dispatcher) Option {
	return func(l *Loader) {
		l.dispatcher = d
	}
}

// WithWorkers bounds the number of concurrent downloads
func WithWorkers(n int) Option {
	return func(l *Loader) {
		if n > 0 {
			l.workers = n
		}
	}
}

func WithTimeout(d time.Duration) Option {
	return func(l *Loader) {
		if d > 0 {
			l.timeout = d
		}
	}
}

// WithNormalizer sets the conversion applied to downloaded content before
// it is cached
func WithNormalizer(n domain.Normalizer) Option {
	return func(l *Loader) {
		l.normalizer = n
	}
}

func WithRegisterer(reg prometheus.Registerer) Option {
	return func(l *Loader) {
		l.reg = reg
	}
}

// Loader loads images in the background. Concurrent loads of the same image
// are not coalesced, each of them fetches the image.
type Loader struct {
	cache      Cache
	client     *http.Client
	dispatcher Dispatcher
	normalizer domain.Normalizer
	workers    int
	timeout    time.Duration
	reg        prometheus.Registerer

	slots   chan struct{}
	pending sync.WaitGroup

	fetches     prometheus.Counter
	fetchErrors prometheus.Counter
}

func New(cache Cache, opts ...Option) *Loader {
	l := &Loader{
		cache:      cache,
		client:     http.DefaultClient,
		dispatcher: Inline,
		normalizer: domain.LocalNormalizer{},
		workers:    DefaultWorkers,
		timeout:    DefaultTimeout,
	}
	for _, opt := range opts {
		opt(l)
	}
	l.slots = make(chan struct{}, l.workers)
	factory := promauto.With(l.reg)
	l.fetches = factory.NewCounter(prometheus.CounterOpts{
		Name: "loader_fetches",
		Help: "Number of images downloaded because they were not cached",
	})
	l.fetchErrors = factory.NewCounter(prometheus.CounterOpts{
		Name: "loader_fetch_errors",
		Help: "Number of image downloads which failed",
	})
	return l
}

// Load resolves the image in the background and hands the result to done
// through the dispatcher. On failure nothing is cached.
func (l *Loader) Load(ctx context.Context, id, remoteURL string, done func([]byte, error)) {
	l.pending.Add(1)
	go func() {
		defer l.pending.Done()
		data, err := l.Get(ctx, id, remoteURL)
		if done != nil {
			l.dispatcher.Dispatch(func() { done(data, err) })
		}
	}()
}

// Get resolves the image synchronously
func (l *Loader) Get(ctx context.Context, id, remoteURL string) ([]byte, error) {
	if data, found := l.cache.Get(id); found {
		return data, nil
	}
	log, ctx := logging.FromWithNameAndFields(ctx, "loader", zap.String("id", id))
	if remoteURL == "" {
		return nil, ErrNoURL
	}
	select {
	case l.slots <- struct{}{}:
		defer func() { <-l.slots }()
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	l.fetches.Inc()
	raw, err := l.fetch(ctx, remoteURL)
	if err != nil {
		l.fetchErrors.Inc()
		log.Warn("Failed to fetch image", zap.String("url", remoteURL), zap.Error(err))
		return nil, err
	}
	data, err := l.normalizer.Normalize(raw)
	if err != nil {
		l.fetchErrors.Inc()
		log.Warn("Downloaded content is not usable", zap.String("url", remoteURL), zap.Error(err))
		return nil, fmt.Errorf("cannot convert image %s: %w", remoteURL, err)
	}
	l.cache.Put(id, data)
	log.Debug("Image cached", zap.Int("size", len(data)))
	return data, nil
}

// Wait blocks until all background loads have completed
func (l *Loader) Wait() {
	l.pending.Wait()
}

func (l *Loader) fetch(ctx context.Context, remoteURL string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, remoteURL, nil)
	if err != nil {
		return nil, &FetchError{URL: remoteURL, Err: err}
	}
	req.Header.Set("User-Agent", consts.UserAgent())
	resp, err := l.client.Do(req)
	if err != nil {
		return nil, &FetchError{URL: remoteURL, Err: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, &FetchError{URL: remoteURL, StatusCode: resp.StatusCode, Err: errors.New(resp.Status)}
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxImageSize))
	if err != nil {
		return nil, &FetchError{URL: remoteURL, Err: err}
	}
	return data, nil
}
