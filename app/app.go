// Package app wires the pin store, the photo search client, the image cache
// and the REST handlers into a runnable server.
package app

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"bitbucket.org/kleinnic74/pinphotos/config"
	"bitbucket.org/kleinnic74/pinphotos/consts"
	"bitbucket.org/kleinnic74/pinphotos/domain"
	"bitbucket.org/kleinnic74/pinphotos/flickr"
	"bitbucket.org/kleinnic74/pinphotos/geocoding"
	"bitbucket.org/kleinnic74/pinphotos/geocoding/openstreetmap"
	"bitbucket.org/kleinnic74/pinphotos/imagecache"
	"bitbucket.org/kleinnic74/pinphotos/library"
	"bitbucket.org/kleinnic74/pinphotos/library/boltstore"
	"bitbucket.org/kleinnic74/pinphotos/loader"
	"bitbucket.org/kleinnic74/pinphotos/logging"
	"bitbucket.org/kleinnic74/pinphotos/pins"
	"bitbucket.org/kleinnic74/pinphotos/rest"

	"github.com/gorilla/mux"
	"github.com/kleinnic74/fflags"
	"github.com/prometheus/client_golang/prometheus"
	bolt "go.etcd.io/bbolt"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

type App struct {
	db      *bolt.DB
	store   library.ClosableStore
	cache   *imagecache.Cache
	loader  *loader.Loader
	service *pins.Service
	router  *mux.Router
	handler http.Handler

	addr string

	shutdownHandlers shutdownHandlers
}

type Options struct {
	Config *config.Config
	// Registerer receives the metrics of all components, nil disables metrics
	Registerer prometheus.Registerer
	// Gatherer serves /metrics, nil disables the endpoint
	Gatherer prometheus.Gatherer
	// HTTPClient is used for all outbound requests, defaults to http.DefaultClient
	HTTPClient *http.Client
}

type shutdownHandler func(context.Context, *App)

const (
	dbName = "pins.db"
)

type shutdownHandlers struct {
	h []shutdownHandler
}

func (hdls *shutdownHandlers) Add(h shutdownHandler) {
	hdls.h = append(hdls.h, h)
}

func (hdls shutdownHandlers) Execute(ctx context.Context, a *App) {
	for i := len(hdls.h) - 1; i >= 0; i-- {
		hdls.h[i](ctx, a)
	}
}

// NewSearchClient creates the photo search client for the given settings
func NewSearchClient(c config.FlickrConfig, reg prometheus.Registerer, httpClient *http.Client) *flickr.Client {
	opts := []flickr.Option{
		flickr.WithPerPage(c.PerPage),
		flickr.WithMaxPhotos(c.MaxPhotos),
		flickr.WithTimeout(c.Timeout),
		flickr.WithRateLimit(c.RequestsPerSecond, c.Burst),
		flickr.WithCircuitBreaker(c.BreakerFailures, c.BreakerOpenFor),
		flickr.WithRegisterer(reg),
	}
	if c.BaseURL != "" {
		opts = append(opts, flickr.WithBaseURL(c.BaseURL))
	}
	if httpClient != nil {
		opts = append(opts, flickr.WithHTTPClient(httpClient))
	}
	return flickr.NewClient(c.APIKey, opts...)
}

// OpenStore opens the pin database in dir, the returned function closes it
func OpenStore(dir string) (library.ClosableStore, func(), error) {
	if err := os.MkdirAll(dir, os.ModePerm); err != nil {
		return nil, nil, err
	}
	db, err := bolt.Open(filepath.Join(dir, dbName), 0600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open pin database: %w", err)
	}
	store, err := boltstore.NewBoltStore(db)
	if err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("failed to initialize pin store: %w", err)
	}
	return store, func() {
		store.Close()
		db.Close()
	}, nil
}

func NewApp(ctx context.Context, o Options) (_ *App, err error) {
	logger, ctx := logging.SubFrom(ctx, "app")
	cfg := o.Config

	a := &App{
		addr:   fmt.Sprintf(":%d", cfg.Server.Port),
		router: mux.NewRouter(),
	}
	defer func() {
		if err != nil {
			a.shutdownHandlers.Execute(ctx, a)
		}
	}()

	logger.Info("Library directory", zap.String("dir", cfg.Library.Dir))
	var closeStore func()
	if a.store, closeStore, err = OpenStore(cfg.Library.Dir); err != nil {
		return nil, err
	}
	a.shutdownHandlers.Add(func(ctx context.Context, a *App) {
		closeStore()
		logging.From(ctx).Info("Closed pin store")
	})

	cacheOpts := []imagecache.Option{
		imagecache.WithMemoryLimit(cfg.Cache.MemoryLimit),
		imagecache.WithRegisterer(o.Registerer),
		imagecache.WithLogger(logging.From(ctx).Named("imagecache")),
	}
	if cfg.Cache.Ext != "" {
		cacheOpts = append(cacheOpts, imagecache.WithExtension(cfg.Cache.Ext))
	}
	if a.cache, err = imagecache.Open(cfg.Cache.Dir, cacheOpts...); err != nil {
		return nil, fmt.Errorf("failed to open image cache: %w", err)
	}
	a.shutdownHandlers.Add(func(ctx context.Context, a *App) {
		a.cache.Close()
		logging.From(ctx).Info("Closed image cache")
	})
	logger.Info("Opened image cache", zap.String("dir", a.cache.Dir()))

	client := NewSearchClient(cfg.Flickr, o.Registerer, o.HTTPClient)

	workers := cfg.Loader.Workers
	if workers <= 0 {
		workers = loader.DefaultWorkers
	}
	normalizer := domain.NewParallelNormalizer(domain.LocalNormalizer{MaxWidth: domain.ThumbSize(cfg.Loader.ThumbWidth)}, workers)
	callbacks := loader.NewSerialDispatcher(workers)
	a.shutdownHandlers.Add(func(ctx context.Context, a *App) {
		callbacks.Close()
	})
	loaderOpts := []loader.Option{
		loader.WithDispatcher(callbacks),
		loader.WithWorkers(workers),
		loader.WithTimeout(cfg.Loader.Timeout),
		loader.WithNormalizer(normalizer),
		loader.WithRegisterer(o.Registerer),
	}
	if o.HTTPClient != nil {
		loaderOpts = append(loaderOpts, loader.WithHTTPClient(o.HTTPClient))
	}
	a.loader = loader.New(a.cache, loaderOpts...)
	a.shutdownHandlers.Add(func(ctx context.Context, a *App) {
		a.loader.Wait()
		logging.From(ctx).Info("Background image loads completed")
	})

	serviceOpts := []pins.Option{pins.WithPager(client.NewBrowser())}
	var places *geocoding.Cache
	if cfg.Geocoding.Enabled {
		if err = fflags.IfEnabled(fflags.Define("pins.geocode"), func() error {
			var resolver geocoding.Resolver
			if o.HTTPClient != nil {
				resolver = openstreetmap.NewResolverWithClient(o.HTTPClient, cfg.Geocoding.Language...)
			} else {
				resolver = openstreetmap.NewResolver(cfg.Geocoding.Language...)
			}
			places = geocoding.NewGeoCache(resolver, o.Registerer)
			serviceOpts = append(serviceOpts, pins.WithResolver(places))
			logger.Info("Reverse geocoding of pins enabled", zap.Strings("language", cfg.Geocoding.Language))
			return nil
		}); err != nil {
			return nil, fmt.Errorf("failed to initialize geocoding: %w", err)
		}
	}
	a.service = pins.NewService(a.store, client, a.cache, a.loader, serviceOpts...)

	// REST Handlers

	if o.Gatherer != nil {
		metrics := rest.NewMetricsHandler(o.Gatherer)
		metrics.InitRoutes(a.router)
	}

	if consts.IsDevMode() {
		logs := rest.NewLogsHandler()
		logs.InitRoutes(a.router)
		debugService := DebugHandler{}
		debugService.InitRoutes(a.router)
	}

	pinsAPI := rest.NewPinsHandler(a.service)
	pinsAPI.InitRoutes(a.router)

	browse := rest.NewBrowseHandler(a.service)
	browse.InitRoutes(a.router)

	mapView := rest.NewMapHandler(a.service, places)
	mapView.InitRoutes(a.router)

	a.handler = rest.NewMiddlewares(o.Registerer).Wrap(a.router, "rest")

	return a, nil
}

// Service gives access to the pin operations without going through HTTP
func (a *App) Service() *pins.Service {
	return a.service
}

func (a *App) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	a.handler.ServeHTTP(w, r)
}

// Close releases all resources in reverse order of their creation
func (a *App) Close(ctx context.Context) {
	a.shutdownHandlers.Execute(ctx, a)
	a.shutdownHandlers = shutdownHandlers{}
}

// Run serves HTTP until ctx is done, then shuts down the server and closes
// the app
func (a *App) Run(ctx context.Context) error {
	logger, ctx := logging.SubFrom(ctx, "app")

	server := http.Server{
		Addr:        a.addr,
		Handler:     a,
		BaseContext: func(l net.Listener) context.Context { return ctx },
	}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger, _ := logging.SubFrom(ctx, "http")
		logger.Info("Starting HTTP server...", zap.String("bindAddr", a.addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("HTTP server failed", zap.Error(err))
			return err
		}
		logger.Info("DONE")
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Stopping...")
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(ctxShutdown); err != nil {
			logger.Error("Failed to shutdown HTTP server", zap.Error(err))
		}
		return nil
	})
	runErr := g.Wait()

	ctxClose, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	a.Close(logging.Context(ctxClose, logger))

	logger.Info("Terminated gracefully")
	return runErr
}
