package flickr

import (
	"net/url"

	"bitbucket.org/kleinnic74/pinphotos/domain/gps"
	"bitbucket.org/kleinnic74/pinphotos/httpquery"
)

const (
	SearchMethod = "flickr.photos.search"

	// BoundingBoxHalfSize is the distance in degrees from the searched
	// location to each side of the search box
	BoundingBoxHalfSize = 0.1

	safeSearchOn = 1
	extraURLs    = "url_m"
	formatJSON   = "json"
)

type searchParams struct {
	Method         string `url:"method"`
	APIKey         string `url:"api_key"`
	SafeSearch     int    `url:"safe_search"`
	Extras         string `url:"extras"`
	Format         string `url:"format"`
	NoJSONCallback int    `url:"nojsoncallback"`
	PerPage        int    `url:"per_page"`
	BBox           string `url:"bbox"`
	Page           int    `url:"page,omitempty"`
}

// BoundingBox returns the "minLon,minLat,maxLon,maxLat" search box around
// the given location. Values are not clamped to the valid coordinate ranges.
func BoundingBox(lat, lon float64) string {
	return gps.RectAround(gps.PointFromLatLon(lat, lon), BoundingBoxHalfSize).BBox()
}

func (c *Client) searchURL(lat, lon float64, page int) (*url.URL, error) {
	params, err := httpquery.Values(searchParams{
		Method:         SearchMethod,
		APIKey:         c.apiKey,
		SafeSearch:     safeSearchOn,
		Extras:         extraURLs,
		Format:         formatJSON,
		NoJSONCallback: 1,
		PerPage:        c.perPage,
		BBox:           BoundingBox(lat, lon),
		Page:           page,
	})
	if err != nil {
		return nil, err
	}
	return httpquery.BuildURL(c.baseURL, "", "", params)
}
