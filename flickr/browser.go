package flickr

import (
	"context"
	"sync"

	"bitbucket.org/kleinnic74/pinphotos/logging"
	"go.uber.org/zap"
)

// Browser pages sequentially through the results of the last search
type Browser struct {
	client *Client

	lock     sync.Mutex
	active   bool
	lat, lon float64
	page     int
	lastPage int
}

func (c *Client) NewBrowser() *Browser {
	return &Browser{client: c}
}

// Search starts a new search around the given location and returns its first page
func (b *Browser) Search(ctx context.Context, lat, lon float64) (*Result, error) {
	b.lock.Lock()
	b.active, b.lat, b.lon, b.page, b.lastPage = true, lat, lon, 1, 0
	b.lock.Unlock()
	return b.fetch(ctx, lat, lon, 1)
}

// NextPage returns the page following the last returned one. Once the last
// page has been returned or before any search, the result is empty.
func (b *Browser) NextPage(ctx context.Context) (*Result, error) {
	b.lock.Lock()
	if !b.active || b.page >= b.lastPage {
		b.lock.Unlock()
		logging.From(ctx).Debug("No more pages")
		return emptyResult(PageMetadata{}), nil
	}
	b.page++
	lat, lon, page := b.lat, b.lon, b.page
	b.lock.Unlock()
	return b.fetch(ctx, lat, lon, page)
}

func (b *Browser) fetch(ctx context.Context, lat, lon float64, page int) (*Result, error) {
	r, err := b.client.SearchPage(ctx, lat, lon, page)
	if err != nil {
		return nil, err
	}
	b.lock.Lock()
	defer b.lock.Unlock()
	if b.lat == lat && b.lon == lon && r.Outcome != OutcomeMalformed {
		b.lastPage = r.Meta.Pages
	}
	logging.From(ctx).Debug("Browsed page", zap.Int("page", page), zap.Int("pages", b.lastPage))
	return r, nil
}
