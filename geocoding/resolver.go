package geocoding

import (
	"context"

	"bitbucket.org/kleinnic74/pinphotos/domain/gps"
	"bitbucket.org/kleinnic74/pinphotos/logging"

	"go.uber.org/zap"
)

// Resolver finds the address of a geographical location
type Resolver interface {
	ReverseGeocode(ctx context.Context, lat, lon float64) (*gps.Address, bool, error)
}

// PlaceTitle returns a short name for the place at the given location, or
// fallback if the place cannot be resolved
func PlaceTitle(ctx context.Context, r Resolver, lat, lon float64, fallback string) string {
	if r == nil {
		return fallback
	}
	address, found, err := r.ReverseGeocode(ctx, lat, lon)
	if err != nil {
		logging.From(ctx).Warn("Reverse geocoding failed", zap.Float64("lat", lat), zap.Float64("lon", lon), zap.Error(err))
		return fallback
	}
	if !found || address == nil {
		return fallback
	}
	if title := address.Title(); title != "" {
		return title
	}
	return fallback
}
