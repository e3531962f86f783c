package openstreetmap

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"bitbucket.org/kleinnic74/pinphotos/consts"
	"bitbucket.org/kleinnic74/pinphotos/domain/gps"
	"bitbucket.org/kleinnic74/pinphotos/geocoding"
	"bitbucket.org/kleinnic74/pinphotos/httpquery"
	"bitbucket.org/kleinnic74/pinphotos/logging"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

var IllegalBoundingBox = errors.New("Not a valid bounding box")

const (
	baseURL = "https://nominatim.openstreetmap.org/"
	zoom    = 10
)

type resolver struct {
	lang    string
	client  *http.Client
	limiter *rate.Limiter
}

type boundingbox gps.Rect

func (b *boundingbox) Rect() *gps.Rect {
	if b == nil {
		return nil
	}
	r := gps.Rect(*b)
	return &r
}

// UnmarshalJSON reads the Nominatim format [lat0, lat1, lon0, lon1]
func (b *boundingbox) UnmarshalJSON(data []byte) error {
	var points []string
	if err := json.Unmarshal(data, &points); err != nil {
		return nil
	}
	if len(points) == 0 {
		return nil
	}
	if len(points) != 4 {
		return IllegalBoundingBox
	}
	var values [4]float64
	for i, p := range points {
		v, err := strconv.ParseFloat(p, 64)
		if err != nil {
			return fmt.Errorf("%w: %s", IllegalBoundingBox, err)
		}
		values[i] = v
	}
	*b = boundingbox(gps.RectFrom(values[2], values[0], values[3], values[1]))
	return nil
}

type address struct {
	City       string `json:"city"`
	Town       string `json:"town"`
	Village    string `json:"village"`
	Zip        string `json:"postcode"`
	Country    string `json:"country"`
	CountryISO string `json:"country_code"`
}

func (a address) place() string {
	switch {
	case a.City != "":
		return a.City
	case a.Town != "":
		return a.Town
	default:
		return a.Village
	}
}

type latlon float64

func (p *latlon) UnmarshalJSON(data []byte) error {
	var v string
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return err
	}
	*p = latlon(f)
	return nil
}

type location struct {
	ID          int          `json:"osm_id"`
	OSMType     string       `json:"osm_type"`
	Type        string       `json:"type"`
	Lat         latlon       `json:"lat"`
	Long        latlon       `json:"lon"`
	BoundingBox *boundingbox `json:"boundingbox"`
	DisplayName string       `json:"display_name"`
	Address     address      `json:"address"`
	Error       string       `json:"error"`
}

func (l location) Pos() gps.Point {
	return gps.Point{float64(l.Long), float64(l.Lat)}
}

// NewResolver returns a resolver using the public Nominatim service, results
// are localized in the given languages. Requests are limited to one per second
// as required by the Nominatim usage policy.
func NewResolver(lang ...string) geocoding.Resolver {
	return NewResolverWithClient(&http.Client{Timeout: 5 * time.Second}, lang...)
}

func NewResolverWithClient(client *http.Client, lang ...string) geocoding.Resolver {
	return &resolver{
		lang:    strings.Join(lang, ","),
		client:  client,
		limiter: rate.NewLimiter(rate.Every(time.Second), 1),
	}
}

func (osm *resolver) ReverseGeocode(ctx context.Context, lat, long float64) (*gps.Address, bool, error) {
	logger, ctx := logging.SubFrom(ctx, "openstreetmap")
	params, err := httpquery.Values(struct {
		Format         string  `url:"format"`
		Lat            float64 `url:"lat"`
		Lon            float64 `url:"lon"`
		AddressDetails int     `url:"addressdetails"`
		Zoom           int     `url:"zoom"`
	}{"json", lat, long, 1, zoom})
	if err != nil {
		return nil, false, err
	}
	u, err := httpquery.BuildURL(baseURL, "reverse", "", params)
	if err != nil {
		return nil, false, err
	}
	if err := osm.limiter.Wait(ctx); err != nil {
		return nil, false, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, false, err
	}
	req.Header.Set("User-Agent", consts.UserAgent())
	if osm.lang != "" {
		req.Header.Set("Accept-Language", osm.lang)
	}
	res, err := osm.client.Do(req)
	if err != nil {
		return nil, false, err
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		return nil, false, fmt.Errorf("reverse geocoding failed with status %d", res.StatusCode)
	}
	data, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, false, err
	}
	logger.Debug("reverseGeocode response", zap.ByteString("response", data))
	var location location
	if err := json.Unmarshal(data, &location); err != nil {
		return nil, false, err
	}
	if location.Error != "" {
		logger.Debug("Place not found", zap.String("error", location.Error))
		return nil, false, nil
	}
	a := gps.AsAddress(location.Address.Country, location.Address.CountryISO, location.Address.place(), location.Address.Zip)
	a.BoundingBox = location.BoundingBox.Rect()
	return &a, true, nil
}
