package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"bitbucket.org/kleinnic74/pinphotos/domain"
	"bitbucket.org/kleinnic74/pinphotos/domain/gps"
	"bitbucket.org/kleinnic74/pinphotos/flickr"
	"bitbucket.org/kleinnic74/pinphotos/geocoding"
	"bitbucket.org/kleinnic74/pinphotos/imagecache"
	"bitbucket.org/kleinnic74/pinphotos/library"
	"bitbucket.org/kleinnic74/pinphotos/library/boltstore"
	"bitbucket.org/kleinnic74/pinphotos/loader"
	"bitbucket.org/kleinnic74/pinphotos/pins"
	"bitbucket.org/kleinnic74/pinphotos/rest/cursor"
	"bitbucket.org/kleinnic74/pinphotos/rest/views"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	bolt "go.etcd.io/bbolt"
)

type RoundTripperFunc func(*http.Request) *http.Response

func (f RoundTripperFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req), nil
}

type fakeSearcher struct {
	result *flickr.Result
	err    error
}

func (f *fakeSearcher) SearchRandom(ctx context.Context, lat, lon float64) (*flickr.Result, error) {
	return f.result, f.err
}

type fakePager struct {
	first, next *flickr.Result
}

func (p *fakePager) Search(ctx context.Context, lat, lon float64) (*flickr.Result, error) {
	return p.first, nil
}

func (p *fakePager) NextPage(ctx context.Context) (*flickr.Result, error) {
	return p.next, nil
}

func pngImage(t *testing.T) []byte {
	img := image.NewRGBA(image.Rect(0, 0, 4, 3))
	img.Set(1, 1, color.RGBA{R: 255, A: 255})
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

type server struct {
	router   *mux.Router
	searcher *fakeSearcher
	cache    *imagecache.Cache
	store    library.PinStore
	fetches  atomic.Int32
}

func newServer(t *testing.T) *server {
	db, err := bolt.Open(filepath.Join(t.TempDir(), "pins.db"), 0600, nil)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	store, err := boltstore.NewBoltStore(db)
	require.NoError(t, err)
	cache, err := imagecache.Open(filepath.Join(t.TempDir(), "cache"))
	require.NoError(t, err)
	t.Cleanup(func() { cache.Close() })

	s := &server{router: mux.NewRouter(), searcher: &fakeSearcher{}, cache: cache, store: store}
	img := pngImage(t)
	client := &http.Client{Transport: RoundTripperFunc(func(r *http.Request) *http.Response {
		s.fetches.Add(1)
		if strings.HasSuffix(r.URL.Path, "missing.jpg") {
			return &http.Response{StatusCode: http.StatusNotFound, Body: io.NopCloser(strings.NewReader("")), Header: http.Header{}}
		}
		return &http.Response{StatusCode: http.StatusOK, Body: io.NopCloser(bytes.NewReader(img)), Header: http.Header{}}
	})}
	l := loader.New(cache, loader.WithHTTPClient(client))
	pager := &fakePager{
		first: &flickr.Result{Outcome: flickr.OutcomeOK, Photos: photos("p1"), Meta: flickr.PageMetadata{Page: 1, Pages: 2, Total: 2}},
		next:  &flickr.Result{Outcome: flickr.OutcomeEmpty, Photos: []domain.Photo{}},
	}
	service := pins.NewService(store, s.searcher, cache, l, pins.WithPager(pager))
	NewPinsHandler(service).InitRoutes(s.router)
	NewBrowseHandler(service).InitRoutes(s.router)
	NewMapHandler(service, nil).InitRoutes(s.router)
	return s
}

func photos(keys ...string) []domain.Photo {
	result := make([]domain.Photo, len(keys))
	for i, k := range keys {
		result[i] = domain.Photo{ID: k, Title: "Photo " + k, URL: "http://farm.test/" + k + ".jpg"}
	}
	return result
}

func (s *server) do(method, target, body string) *httptest.ResponseRecorder {
	var r *http.Request
	if body != "" {
		r = httptest.NewRequest(method, target, strings.NewReader(body))
	} else {
		r = httptest.NewRequest(method, target, nil)
	}
	rr := httptest.NewRecorder()
	s.router.ServeHTTP(rr, r)
	return rr
}

func (s *server) drop(t *testing.T) views.PinWithSearch {
	rr := s.do("POST", "/pins", `{"lat":47.37,"lon":8.54}`)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	var created views.PinWithSearch
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&created))
	return created
}

func TestDropPin(t *testing.T) {
	s := newServer(t)
	s.searcher.result = &flickr.Result{Outcome: flickr.OutcomeOK, Photos: photos("a", "b")}

	created := s.drop(t)
	assert.Equal(t, library.DefaultTitle, created.Pin.Title)
	assert.Len(t, created.Pin.Photos, 2)
	assert.Equal(t, flickr.OutcomeOK, created.Search.Outcome)
	assert.Equal(t, flickr.BoundingBox(47.37, 8.54), created.Pin.BBox)
	assert.Empty(t, created.Error)

	rr := s.do("GET", "/pins/"+string(created.Pin.ID), "")
	require.Equal(t, http.StatusOK, rr.Code)
	var pin views.Pin
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&pin))
	assert.Equal(t, "a", pin.Photos[0].Key)
	assert.Equal(t, "/pins/"+string(pin.ID)+"/photos/a/image", pin.Photos[0].Links["image"])
}

func TestDropPinWithQueryParameters(t *testing.T) {
	s := newServer(t)
	s.searcher.result = &flickr.Result{Outcome: flickr.OutcomeEmpty, Photos: []domain.Photo{}}

	rr := s.do("POST", "/pins?lat=1.5&lon=2.5", "")
	require.Equal(t, http.StatusCreated, rr.Code)
	var created views.PinWithSearch
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&created))
	assert.Equal(t, 1.5, created.Pin.Location.Lat)
	assert.Equal(t, flickr.OutcomeEmpty, created.Search.Outcome)
}

func TestDropPinKeepsPinOnSearchFailure(t *testing.T) {
	s := newServer(t)
	s.searcher.err = &flickr.RequestError{URL: "http://api.test", StatusCode: 503}

	created := s.drop(t)
	assert.Nil(t, created.Search)
	assert.NotEmpty(t, created.Error)
	assert.Empty(t, created.Pin.Photos)
}

func TestDropPinRejectsBadLocation(t *testing.T) {
	s := newServer(t)
	for _, body := range []string{`{"lat":95,"lon":0}`, `{"lat":1}`, `not json`} {
		rr := s.do("POST", "/pins", body)
		assert.Equal(t, http.StatusBadRequest, rr.Code, body)
	}
	rr := s.do("POST", "/pins?lat=abc&lon=1", "")
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestGetUnknownPin(t *testing.T) {
	s := newServer(t)
	rr := s.do("GET", "/pins/nope", "")
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestListPinsPaged(t *testing.T) {
	s := newServer(t)
	s.searcher.result = &flickr.Result{Outcome: flickr.OutcomeOK, Photos: photos("a")}
	for i := 0; i < 3; i++ {
		s.drop(t)
	}
	rr := s.do("GET", "/pins?p=2", "")
	require.Equal(t, http.StatusOK, rr.Code)
	var page cursor.Page[views.Pin]
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&page))
	assert.Len(t, page.Data, 2)
	require.Len(t, page.Links, 1)
	assert.Equal(t, "next", page.Links[0].Name)
}

func TestImageIsLoadedOnceThenCached(t *testing.T) {
	s := newServer(t)
	s.searcher.result = &flickr.Result{Outcome: flickr.OutcomeOK, Photos: photos("a")}
	created := s.drop(t)
	path := "/pins/" + string(created.Pin.ID) + "/photos/a/image"

	for i := 0; i < 2; i++ {
		rr := s.do("GET", path, "")
		require.Equal(t, http.StatusOK, rr.Code)
		assert.Equal(t, "image/png", rr.Header().Get("Content-Type"))
		_, err := png.Decode(rr.Body)
		assert.NoError(t, err)
	}
	assert.Equal(t, int32(1), s.fetches.Load())
}

func TestImageFetchFailure(t *testing.T) {
	s := newServer(t)
	s.searcher.result = &flickr.Result{Outcome: flickr.OutcomeOK, Photos: photos("missing")}
	created := s.drop(t)

	rr := s.do("GET", "/pins/"+string(created.Pin.ID)+"/photos/missing/image", "")
	assert.Equal(t, http.StatusBadGateway, rr.Code)
	_, found := s.cache.Get("missing")
	assert.False(t, found)
}

func TestRemovePhotoAndDeletePin(t *testing.T) {
	s := newServer(t)
	s.searcher.result = &flickr.Result{Outcome: flickr.OutcomeOK, Photos: photos("a", "b")}
	created := s.drop(t)
	id := string(created.Pin.ID)
	s.cache.Put("a", []byte("cached"))

	rr := s.do("DELETE", "/pins/"+id+"/photos/a", "")
	assert.Equal(t, http.StatusNoContent, rr.Code)
	_, found := s.cache.Get("a")
	assert.False(t, found)

	rr = s.do("DELETE", "/pins/"+id+"/photos/a", "")
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = s.do("DELETE", "/pins/"+id, "")
	assert.Equal(t, http.StatusNoContent, rr.Code)
	rr = s.do("GET", "/pins/"+id, "")
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestRefreshPin(t *testing.T) {
	s := newServer(t)
	s.searcher.result = &flickr.Result{Outcome: flickr.OutcomeOK, Photos: photos("a")}
	created := s.drop(t)
	s.searcher.result = &flickr.Result{Outcome: flickr.OutcomeMalformed, Photos: []domain.Photo{}, Reason: "bad payload"}

	rr := s.do("POST", "/pins/"+string(created.Pin.ID)+"/refresh", "")
	require.Equal(t, http.StatusOK, rr.Code)
	var refreshed views.PinWithSearch
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&refreshed))
	assert.Equal(t, flickr.OutcomeMalformed, refreshed.Search.Outcome)
	assert.Equal(t, "bad payload", refreshed.Search.Reason)
	assert.Empty(t, refreshed.Pin.Photos)
}

func TestPrefetchAndPurge(t *testing.T) {
	s := newServer(t)
	s.searcher.result = &flickr.Result{Outcome: flickr.OutcomeOK, Photos: photos("a", "b")}
	created := s.drop(t)

	rr := s.do("POST", "/pins/"+string(created.Pin.ID)+"/prefetch", "")
	require.Equal(t, http.StatusOK, rr.Code)
	var report pins.PrefetchReport
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&report))
	assert.Equal(t, pins.PrefetchReport{Fetched: 2}, report)
	assert.Equal(t, 2, s.cache.Known())

	rr = s.do("DELETE", "/cache", "")
	assert.Equal(t, http.StatusNoContent, rr.Code)
	assert.Equal(t, 0, s.cache.Known())
}

func TestBrowse(t *testing.T) {
	s := newServer(t)
	rr := s.do("GET", "/browse?lat=1&lon=2", "")
	require.Equal(t, http.StatusOK, rr.Code)
	var first views.Search
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&first))
	assert.Equal(t, 2, first.Meta.Pages)
	assert.Equal(t, "p1", first.Photos[0].Key)

	rr = s.do("GET", "/browse?next=true", "")
	require.Equal(t, http.StatusOK, rr.Code)
	var next views.Search
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&next))
	assert.Equal(t, flickr.OutcomeEmpty, next.Outcome)

	rr = s.do("GET", "/browse?lat=x", "")
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestMapSVG(t *testing.T) {
	s := newServer(t)
	s.searcher.result = &flickr.Result{Outcome: flickr.OutcomeOK, Photos: photos("a")}
	s.drop(t)

	rr := s.do("GET", "/map.svg?fit=true", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "image/svg+xml", rr.Header().Get("Content-Type"))
	assert.Contains(t, rr.Body.String(), "<svg")
	assert.Contains(t, rr.Body.String(), "<title>Pin</title>")
}

func TestMiddlewares(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMiddlewares(reg)
	h := m.Wrap(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NotEmpty(t, requestID(r.Context()))
		w.Write([]byte("ok"))
	}), "test")

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest("GET", "/", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.NotEmpty(t, rr.Header().Get("X-Request-ID"))

	r := httptest.NewRequest("GET", "/", nil)
	r.Header.Set("X-Request-ID", "given")
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, r)
	assert.Equal(t, "given", rr.Header().Get("X-Request-ID"))

	families, err := reg.Gather()
	require.NoError(t, err)
	require.Len(t, families, 1)
	assert.Equal(t, "http_request_duration_seconds", families[0].GetName())
}

func TestMiddlewaresRecoverPanics(t *testing.T) {
	h := NewMiddlewares(nil).Wrap(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}), "test")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest("GET", "/", nil))
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
}

func TestGeoCacheRoutes(t *testing.T) {
	places := geocoding.NewGeoCache(nil, nil)
	bern := gps.AsAddress("Switzerland", "ch", "Bern", "3000")
	bbox := gps.RectFrom(7.29, 46.91, 7.5, 46.99)
	bern.BoundingBox = &bbox
	require.True(t, places.Add(bern))

	router := mux.NewRouter()
	NewMapHandler(nil, places).InitRoutes(router)
	get := func(target string) *httptest.ResponseRecorder {
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, httptest.NewRequest("GET", target, nil))
		return rr
	}

	rr := get("/geo/cache/places?bbox=7,46,8,47")
	require.Equal(t, http.StatusOK, rr.Code)
	var found []gps.Address
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&found))
	require.Len(t, found, 1)
	assert.Equal(t, "Bern", found[0].City)

	rr = get("/geo/cache/places?bbox=1,2")
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = get("/geo/cache.svg")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "<svg")

	rr = get("/geo/cache/stats")
	assert.Equal(t, http.StatusOK, rr.Code)
}
