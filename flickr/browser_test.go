package flickr

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func twoPagesAPI(q url.Values) (int, string) {
	page := q.Get("page")
	return http.StatusOK, fmt.Sprintf(`{"photos":{"page":%s,"pages":2,"total":"3","photo":[
		{"id":"p%s","url_m":"https://farm/p%s.jpg"}]},"stat":"ok"}`, page, page, page)
}

func TestBrowserPagesThroughResults(t *testing.T) {
	api := newFakeAPI(t, twoPagesAPI)
	b := newTestClient(api).NewBrowser()
	ctx := context.Background()

	first, err := b.Search(ctx, 48.2, 16.37)
	require.NoError(t, err)
	assert.Equal(t, "p1", first.Photos[0].ID)

	second, err := b.NextPage(ctx)
	require.NoError(t, err)
	assert.Equal(t, "p2", second.Photos[0].ID)

	last, err := b.NextPage(ctx)
	require.NoError(t, err)
	assert.Equal(t, OutcomeEmpty, last.Outcome)
	assert.Equal(t, 2, api.count(), "no request beyond the last page")
}

func TestBrowserNextPageWithoutSearch(t *testing.T) {
	api := newFakeAPI(t, twoPagesAPI)
	r, err := newTestClient(api).NewBrowser().NextPage(context.Background())
	require.NoError(t, err)
	assert.Equal(t, OutcomeEmpty, r.Outcome)
	assert.Equal(t, 0, api.count())
}

func TestBrowserNewSearchRestarts(t *testing.T) {
	api := newFakeAPI(t, twoPagesAPI)
	b := newTestClient(api).NewBrowser()
	ctx := context.Background()

	b.Search(ctx, 1, 1)
	b.NextPage(ctx)
	r, err := b.Search(ctx, 2, 2)
	require.NoError(t, err)
	assert.Equal(t, "p1", r.Photos[0].ID)
	assert.Equal(t, "1", api.request(2).Get("page"))
	assert.Equal(t, BoundingBox(2, 2), api.request(2).Get("bbox"))
}
