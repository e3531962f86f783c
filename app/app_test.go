package app

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/png"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"bitbucket.org/kleinnic74/pinphotos/config"
	"bitbucket.org/kleinnic74/pinphotos/rest/views"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const searchResponse = `{"photos":{"page":1,"pages":1,"perpage":100,"total":"2","photo":[
	{"id":"11","title":"lake","url_m":"http://farm.test/11_m.jpg"},
	{"id":"12","title":"hill","url_m":"http://farm.test/12_m.jpg"}]},"stat":"ok"}`

type RoundTripperFunc func(*http.Request) *http.Response

func (f RoundTripperFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req), nil
}

func fakeInternet(t *testing.T) *http.Client {
	var img bytes.Buffer
	require.NoError(t, png.Encode(&img, image.NewGray(image.Rect(0, 0, 8, 8))))
	return &http.Client{Transport: RoundTripperFunc(func(r *http.Request) *http.Response {
		body := searchResponse
		if r.URL.Host == "farm.test" {
			body = img.String()
		}
		return &http.Response{
			StatusCode: http.StatusOK,
			Body:       io.NopCloser(strings.NewReader(body)),
			Header:     http.Header{},
		}
	})}
}

func testConfig(t *testing.T) *config.Config {
	dir := t.TempDir()
	return &config.Config{
		Server:  config.ServerConfig{Port: 0},
		Library: config.LibraryConfig{Dir: filepath.Join(dir, "library")},
		Flickr: config.FlickrConfig{
			APIKey:    "secret",
			BaseURL:   "http://api.test/services/rest/",
			PerPage:   100,
			MaxPhotos: 4000,
			Timeout:   time.Second,
		},
		Cache:  config.CacheConfig{Dir: filepath.Join(dir, "cache"), Ext: ".png"},
		Loader: config.LoaderConfig{Workers: 2, Timeout: time.Second},
	}
}

func newTestApp(t *testing.T) *App {
	reg := prometheus.NewRegistry()
	a, err := NewApp(context.Background(), Options{
		Config:     testConfig(t),
		Registerer: reg,
		Gatherer:   reg,
		HTTPClient: fakeInternet(t),
	})
	require.NoError(t, err)
	t.Cleanup(func() { a.Close(context.Background()) })
	return a
}

func TestDropPinThroughApp(t *testing.T) {
	a := newTestApp(t)

	rr := httptest.NewRecorder()
	a.ServeHTTP(rr, httptest.NewRequest("POST", "/pins", strings.NewReader(`{"lat":46.5,"lon":7.9}`)))
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	assert.NotEmpty(t, rr.Header().Get("X-Request-ID"))
	var created views.PinWithSearch
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&created))
	require.Len(t, created.Pin.Photos, 2)

	rr = httptest.NewRecorder()
	a.ServeHTTP(rr, httptest.NewRequest("GET", created.Pin.Photos[0].Links["image"], nil))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "image/png", rr.Header().Get("Content-Type"))

	rr = httptest.NewRecorder()
	a.ServeHTTP(rr, httptest.NewRequest("GET", "/metrics", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	body := rr.Body.String()
	assert.Contains(t, body, "flickr_search_requests")
	assert.Contains(t, body, "loader_fetches 1")
	assert.Contains(t, body, "http_request_duration_seconds")
}

func TestPinsSurviveRestart(t *testing.T) {
	cfg := testConfig(t)
	open := func() *App {
		a, err := NewApp(context.Background(), Options{Config: cfg, HTTPClient: fakeInternet(t)})
		require.NoError(t, err)
		return a
	}
	a := open()
	pin, _, err := a.Service().Drop(context.Background(), 1, 2)
	require.NoError(t, err)
	a.Close(context.Background())

	a = open()
	defer a.Close(context.Background())
	reloaded, err := a.Service().Get(context.Background(), pin.ID)
	require.NoError(t, err)
	assert.Equal(t, pin.Title, reloaded.Title)
	assert.Len(t, reloaded.Photos, 2)
}

func TestRunStopsWhenContextIsDone(t *testing.T) {
	a := newTestApp(t)
	a.addr = "127.0.0.1:0"
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error)
	go func() { done <- a.Run(ctx) }()
	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("Run did not return after cancellation")
	}
}

func TestNewAppFailsOnUnusableLibraryDir(t *testing.T) {
	cfg := testConfig(t)
	blocker := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0600))
	cfg.Library.Dir = filepath.Join(blocker, "library")
	_, err := NewApp(context.Background(), Options{Config: cfg})
	assert.Error(t, err)
}

func TestPrefetchLoadsInBackground(t *testing.T) {
	a := newTestApp(t)
	pin, _, err := a.Service().Drop(context.Background(), 46.5, 7.9)
	require.NoError(t, err)

	rr := httptest.NewRecorder()
	a.ServeHTTP(rr, httptest.NewRequest("POST", "/pins/"+string(pin.ID)+"/prefetch", nil))
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	var report struct {
		Cached  int `json:"cached"`
		Fetched int `json:"fetched"`
		Failed  int `json:"failed"`
	}
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&report))
	assert.Equal(t, 2, report.Fetched)
	assert.Zero(t, report.Failed)

	for _, p := range pin.Photos {
		_, found := a.cache.Get(p.Key())
		assert.True(t, found, p.Key())
	}
}
