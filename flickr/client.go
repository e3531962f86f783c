// Package flickr searches the Flickr REST API for photos taken around a
// geographic location.
package flickr

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"net/url"
	"time"

	"bitbucket.org/kleinnic74/pinphotos/consts"
	"bitbucket.org/kleinnic74/pinphotos/logging"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	DefaultBaseURL   = "https://api.flickr.com/services/rest/"
	DefaultPerPage   = 100
	DefaultMaxPhotos = 4000
	DefaultTimeout   = 30 * time.Second

	maxResponseSize = 8 << 20
)

type Option func(*Client)

func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		c.client = client
	}
}

func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		c.baseURL = baseURL
	}
}

func WithPerPage(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.perPage = n
		}
	}
}

// WithMaxPhotos limits the range of photos a random page is chosen from
func WithMaxPhotos(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.maxPhotos = n
		}
	}
}

// WithTimeout bounds the duration of each request
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithRateLimit limits the requests sent to the API, rps <= 0 means unlimited
func WithRateLimit(rps float64, burst int) Option {
	return func(c *Client) {
		if rps <= 0 {
			c.limiter = rate.NewLimiter(rate.Inf, 0)
			return
		}
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// WithCircuitBreaker stops sending requests after the given number of
// consecutive transport failures, 0 disables the breaker
func WithCircuitBreaker(failures uint32, openFor time.Duration) Option {
	return func(c *Client) {
		if failures == 0 {
			c.breaker = nil
			return
		}
		c.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:    "flickr",
			Timeout: openFor,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= failures
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				logging.From(context.Background()).Warn("Circuit breaker changed state",
					zap.String("breaker", name), zap.Stringer("from", from), zap.Stringer("to", to))
			},
		})
	}
}

func WithRegisterer(reg prometheus.Registerer) Option {
	return func(c *Client) {
		c.reg = reg
	}
}

// WithRandom replaces the source of the random page selection, intn must
// return a value in [0,n)
func WithRandom(intn func(n int) int) Option {
	return func(c *Client) {
		c.intn = intn
	}
}

// Client searches photos by location. It keeps no per-search state and is
// safe for concurrent use.
type Client struct {
	apiKey    string
	baseURL   string
	perPage   int
	maxPhotos int
	timeout   time.Duration

	client  *http.Client
	limiter *rate.Limiter
	breaker *gobreaker.CircuitBreaker
	reg     prometheus.Registerer
	stats   *internalStats
	intn    func(n int) int
}

func NewClient(apiKey string, opts ...Option) *Client {
	c := &Client{
		apiKey:    apiKey,
		baseURL:   DefaultBaseURL,
		perPage:   DefaultPerPage,
		maxPhotos: DefaultMaxPhotos,
		timeout:   DefaultTimeout,
		client:    http.DefaultClient,
		limiter:   rate.NewLimiter(rate.Inf, 0),
		intn:      rand.Intn,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.stats = newStats(c.reg)
	return c
}

func (c *Client) PerPage() int {
	return c.perPage
}

// SearchRandom returns the photos of a randomly chosen result page of a
// search around the given location. A first request determines the number
// of matching photos, a second one fetches the chosen page. Transport
// failures are returned as *RequestError, responses which cannot be
// interpreted yield a result with OutcomeMalformed.
func (c *Client) SearchRandom(ctx context.Context, lat, lon float64) (*Result, error) {
	log, ctx := logging.FromWithNameAndFields(ctx, "flickr", zap.Float64("lat", lat), zap.Float64("lon", lon))

	body, err := c.get(ctx, lat, lon, 0)
	if err != nil {
		return nil, err
	}
	meta, err := decodeMetadata(body)
	if err != nil {
		log.Warn("Cannot read search metadata", zap.Error(err))
		c.stats.malformed.Inc()
		return malformedResult(err.Error()), nil
	}
	if meta.Total <= 0 {
		log.Debug("No photos around location")
		return emptyResult(meta), nil
	}

	page := c.randomPage(meta.Total)
	log.Debug("Fetching random page", zap.Int("page", page), zap.Int("pages", meta.Pages), zap.Int("total", meta.Total))
	return c.SearchPage(ctx, lat, lon, page)
}

// SearchPage returns the photos of the given result page, pages start at 1
func (c *Client) SearchPage(ctx context.Context, lat, lon float64, page int) (*Result, error) {
	log := logging.From(ctx)
	body, err := c.get(ctx, lat, lon, page)
	if err != nil {
		return nil, err
	}
	photos, meta, skipped, err := decodePhotos(body)
	if err != nil {
		log.Warn("Cannot read search results", zap.Int("page", page), zap.Error(err))
		c.stats.malformed.Inc()
		return malformedResult(err.Error()), nil
	}
	if skipped > 0 {
		log.Info("Skipped malformed photo entries", zap.Int("skipped", skipped))
	}
	if len(photos) == 0 {
		return emptyResult(meta), nil
	}
	return &Result{Outcome: OutcomeOK, Photos: photos, Meta: meta}, nil
}

// randomPage picks a page among the first maxPhotos results. Pages at the
// low end are slightly favoured by the integer division.
func (c *Client) randomPage(total int) int {
	maxEligible := total
	if c.maxPhotos < maxEligible {
		maxEligible = c.maxPhotos
	}
	return (c.intn(maxEligible) + c.perPage) / c.perPage
}

func (c *Client) get(ctx context.Context, lat, lon float64, page int) ([]byte, error) {
	u, err := c.searchURL(lat, lon, page)
	if err != nil {
		return nil, err
	}
	c.stats.requests.Inc()
	body, err := c.execute(ctx, u)
	if err != nil {
		c.stats.errors.Inc()
		logging.From(ctx).Warn("Search request failed", zap.Int("page", page), zap.Error(err))
		return nil, err
	}
	return body, nil
}

func (c *Client) execute(ctx context.Context, u *url.URL) ([]byte, error) {
	if c.breaker == nil {
		return c.fetch(ctx, u)
	}
	body, err := c.breaker.Execute(func() (interface{}, error) {
		return c.fetch(ctx, u)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, newRequestError(u, 0, err)
		}
		return nil, err
	}
	return body.([]byte), nil
}

func (c *Client) fetch(ctx context.Context, u *url.URL) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, newRequestError(u, 0, err)
	}
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, newRequestError(u, 0, err)
	}
	req.Header.Set("User-Agent", consts.UserAgent())
	req.Header.Set("Accept", "application/json")
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, newRequestError(u, 0, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseSize))
		return nil, newRequestError(u, resp.StatusCode, fmt.Errorf("unexpected status %s", resp.Status))
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, newRequestError(u, resp.StatusCode, err)
	}
	return body, nil
}
