package flickr

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	metadataPage   = `{"photos":{"page":1,"pages":5,"perpage":100,"total":"450","photo":[]},"stat":"ok"}`
	photosPageJSON = `{"photos":{"page":%d,"pages":5,"perpage":100,"total":"450","photo":[
		{"id":"1","title":"first","url_m":"https://farm/1_m.jpg"},
		{"id":"2","title":"second","url_m":"https://farm/2_m.jpg"}]},"stat":"ok"}`
)

type fakeAPI struct {
	*httptest.Server

	lock     sync.Mutex
	requests []url.Values
	respond  func(q url.Values) (int, string)
}

func newFakeAPI(t *testing.T, respond func(q url.Values) (int, string)) *fakeAPI {
	api := &fakeAPI{respond: respond}
	api.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		api.lock.Lock()
		api.requests = append(api.requests, q)
		api.lock.Unlock()
		status, body := api.respond(q)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		fmt.Fprint(w, body)
	}))
	t.Cleanup(api.Close)
	return api
}

func (api *fakeAPI) count() int {
	api.lock.Lock()
	defer api.lock.Unlock()
	return len(api.requests)
}

func (api *fakeAPI) request(i int) url.Values {
	api.lock.Lock()
	defer api.lock.Unlock()
	return api.requests[i]
}

func pagedAPI(q url.Values) (int, string) {
	if q.Get("page") == "" {
		return http.StatusOK, metadataPage
	}
	page, _ := strconv.Atoi(q.Get("page"))
	return http.StatusOK, fmt.Sprintf(photosPageJSON, page)
}

func newTestClient(api *fakeAPI, opts ...Option) *Client {
	opts = append([]Option{
		WithBaseURL(api.URL + "/services/rest/"),
		WithHTTPClient(api.Client()),
		WithRegisterer(prometheus.NewRegistry()),
	}, opts...)
	return NewClient("secret", opts...)
}

func TestSearchRandom(t *testing.T) {
	api := newFakeAPI(t, pagedAPI)
	client := newTestClient(api)

	result, err := client.SearchRandom(context.Background(), 51.5, -0.12)
	require.NoError(t, err)
	assert.Equal(t, OutcomeOK, result.Outcome)
	assert.Equal(t, []string{"1", "2"}, []string{result.Photos[0].ID, result.Photos[1].ID})
	assert.Equal(t, "https://farm/1_m.jpg", result.Photos[0].URL)
	assert.Equal(t, "first", result.Photos[0].Title)

	require.Equal(t, 2, api.count())
	first := api.request(0)
	assert.Equal(t, SearchMethod, first.Get("method"))
	assert.Equal(t, "secret", first.Get("api_key"))
	assert.Equal(t, "1", first.Get("safe_search"))
	assert.Equal(t, "url_m", first.Get("extras"))
	assert.Equal(t, "json", first.Get("format"))
	assert.Equal(t, "1", first.Get("nojsoncallback"))
	assert.Equal(t, "100", first.Get("per_page"))
	assert.Equal(t, BoundingBox(51.5, -0.12), first.Get("bbox"))
	assert.False(t, first.Has("page"))

	page, err := strconv.Atoi(api.request(1).Get("page"))
	require.NoError(t, err)
	assert.True(t, page >= 1 && page <= 5, "page %d out of range", page)
	assert.Equal(t, first.Get("bbox"), api.request(1).Get("bbox"))
}

func TestSearchRandomPageStaysInRange(t *testing.T) {
	api := newFakeAPI(t, pagedAPI)
	client := newTestClient(api)
	for i := 0; i < 20; i++ {
		_, err := client.SearchRandom(context.Background(), 10, 10)
		require.NoError(t, err)
	}
	for i := 1; i < api.count(); i += 2 {
		page, _ := strconv.Atoi(api.request(i).Get("page"))
		assert.True(t, page >= 1 && page <= 5, "page %d out of range", page)
	}
}

func TestSearchRandomWithoutPhotos(t *testing.T) {
	api := newFakeAPI(t, func(url.Values) (int, string) {
		return http.StatusOK, `{"photos":{"page":1,"pages":0,"perpage":100,"total":0,"photo":[]},"stat":"ok"}`
	})
	result, err := newTestClient(api).SearchRandom(context.Background(), 0, 0)
	require.NoError(t, err)
	assert.Equal(t, OutcomeEmpty, result.Outcome)
	assert.NotNil(t, result.Photos)
	assert.Empty(t, result.Photos)
	assert.Equal(t, 1, api.count(), "no second request expected")
}

func TestSearchRandomMalformedMetadata(t *testing.T) {
	bodies := []string{
		`{"photos":`,
		`<html>Service unavailable</html>`,
		`{"stat":"ok"}`,
		`{"photos":{"page":1,"photo":[]},"stat":"ok"}`,
		`{"photos":{"pages":1,"total":"many","photo":[]},"stat":"ok"}`,
	}
	for i, body := range bodies {
		t.Run(strconv.Itoa(i), func(t *testing.T) {
			api := newFakeAPI(t, func(url.Values) (int, string) { return http.StatusOK, body })
			result, err := newTestClient(api).SearchRandom(context.Background(), 0, 0)
			require.NoError(t, err)
			assert.Equal(t, OutcomeMalformed, result.Outcome)
			assert.Empty(t, result.Photos)
			assert.NotEmpty(t, result.Reason)
			assert.Equal(t, 1, api.count())
		})
	}
}

func TestSearchRandomAPIFailure(t *testing.T) {
	api := newFakeAPI(t, func(url.Values) (int, string) {
		return http.StatusOK, `{"stat":"fail","code":100,"message":"Invalid API Key (Key has invalid format)"}`
	})
	result, err := newTestClient(api).SearchRandom(context.Background(), 0, 0)
	require.NoError(t, err)
	assert.Equal(t, OutcomeMalformed, result.Outcome)
	assert.Contains(t, result.Reason, "Invalid API Key")
}

func TestSearchRandomMalformedPage(t *testing.T) {
	api := newFakeAPI(t, func(q url.Values) (int, string) {
		if q.Get("page") == "" {
			return http.StatusOK, metadataPage
		}
		return http.StatusOK, `{"photos":{"page":2}}`
	})
	result, err := newTestClient(api).SearchRandom(context.Background(), 0, 0)
	require.NoError(t, err)
	assert.Equal(t, OutcomeMalformed, result.Outcome)
	assert.Equal(t, 2, api.count())
}

func TestSearchRandomSkipsBadEntries(t *testing.T) {
	api := newFakeAPI(t, func(q url.Values) (int, string) {
		if q.Get("page") == "" {
			return http.StatusOK, metadataPage
		}
		return http.StatusOK, `{"photos":{"page":1,"pages":5,"total":450,"photo":[
			{"id":"1","url_m":"https://farm/1_m.jpg"},
			42,
			{"id":"3","title":"no url"},
			{"id":4,"title":"numeric id","url_m":"https://farm/4_m.jpg"}]},"stat":"ok"}`
	})
	result, err := newTestClient(api).SearchRandom(context.Background(), 0, 0)
	require.NoError(t, err)
	assert.Equal(t, OutcomeOK, result.Outcome)
	require.Len(t, result.Photos, 2)
	assert.Equal(t, "1", result.Photos[0].ID)
	assert.Equal(t, "4", result.Photos[1].ID)
}

func TestSearchRandomHTTPError(t *testing.T) {
	api := newFakeAPI(t, func(url.Values) (int, string) { return http.StatusInternalServerError, "oops" })
	result, err := newTestClient(api).SearchRandom(context.Background(), 0, 0)
	assert.Nil(t, result)
	var reqErr *RequestError
	require.ErrorAs(t, err, &reqErr)
	assert.Equal(t, http.StatusInternalServerError, reqErr.StatusCode)
	assert.NotContains(t, reqErr.Error(), "secret", "API key must not leak into errors")
	assert.Equal(t, 1, api.count())
}

func TestSearchRandomConnectionRefused(t *testing.T) {
	api := newFakeAPI(t, pagedAPI)
	client := newTestClient(api)
	api.Close()

	_, err := client.SearchRandom(context.Background(), 0, 0)
	var reqErr *RequestError
	assert.ErrorAs(t, err, &reqErr)
}

func TestSearchRandomCancelled(t *testing.T) {
	api := newFakeAPI(t, pagedAPI)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := newTestClient(api).SearchRandom(ctx, 0, 0)
	assert.Nil(t, result)
	assert.True(t, errors.Is(err, context.Canceled), "unexpected error %v", err)
	var reqErr *RequestError
	assert.ErrorAs(t, err, &reqErr)
	assert.Equal(t, 0, api.count())
}

func TestSearchRandomTimeout(t *testing.T) {
	release := make(chan struct{})
	api := &fakeAPI{}
	api.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-release:
		}
	}))
	defer api.Close()
	defer close(release)

	client := newTestClient(api, WithTimeout(20*time.Millisecond))
	start := time.Now()
	_, err := client.SearchRandom(context.Background(), 0, 0)
	assert.True(t, errors.Is(err, context.DeadlineExceeded), "unexpected error %v", err)
	assert.Less(t, int64(time.Since(start)), int64(5*time.Second))
}

func TestCircuitBreaker(t *testing.T) {
	api := newFakeAPI(t, func(url.Values) (int, string) { return http.StatusBadGateway, "" })
	client := newTestClient(api, WithCircuitBreaker(2, time.Minute))

	for i := 0; i < 2; i++ {
		_, err := client.SearchRandom(context.Background(), 0, 0)
		var reqErr *RequestError
		require.ErrorAs(t, err, &reqErr)
		assert.Equal(t, http.StatusBadGateway, reqErr.StatusCode)
	}
	_, err := client.SearchRandom(context.Background(), 0, 0)
	var reqErr *RequestError
	require.ErrorAs(t, err, &reqErr)
	assert.True(t, errors.Is(err, gobreaker.ErrOpenState))
	assert.Equal(t, 2, api.count(), "open breaker must not send requests")
}

func TestRandomPage(t *testing.T) {
	data := []struct {
		perPage, maxPhotos, total int
		maxEligible               int
	}{
		{100, 4000, 450, 450},
		{100, 4000, 100000, 4000},
		{40, 4000, 1, 1},
		{40, 4000, 41, 41},
	}
	for i, d := range data {
		var seen int
		low := NewClient("k", WithPerPage(d.perPage), WithMaxPhotos(d.maxPhotos),
			WithRandom(func(n int) int { seen = n; return 0 }))
		high := NewClient("k", WithPerPage(d.perPage), WithMaxPhotos(d.maxPhotos),
			WithRandom(func(n int) int { return n - 1 }))

		assert.Equal(t, 1, low.randomPage(d.total), "#%d", i)
		assert.Equal(t, d.maxEligible, seen, "#%d", i)
		lastPage := (d.maxEligible + d.perPage - 1) / d.perPage
		assert.Equal(t, lastPage, high.randomPage(d.total), "#%d", i)
	}
}

func TestBoundingBox(t *testing.T) {
	assert.Equal(t, "-0.1,-0.1,0.1,0.1", BoundingBox(0, 0))
	for _, c := range [][2]float64{{51.5, -0.12}, {-33.9, 151.2}, {89.95, 179.95}} {
		tokens := strings.Split(BoundingBox(c[0], c[1]), ",")
		require.Len(t, tokens, 4)
		var v [4]float64
		for i, tok := range tokens {
			f, err := strconv.ParseFloat(tok, 64)
			require.NoError(t, err)
			v[i] = f
		}
		assert.InDelta(t, 0.2, v[2]-v[0], 1e-9)
		assert.InDelta(t, 0.2, v[3]-v[1], 1e-9)
		assert.InDelta(t, c[1], (v[0]+v[2])/2, 1e-9)
		assert.InDelta(t, c[0], (v[1]+v[3])/2, 1e-9)
	}
}
