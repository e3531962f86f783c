package gps

import (
	"fmt"
	"math"
)

// Coordinates is a WGS84 position as dropped by a user on the map
type Coordinates struct {
	Lat  float64 `json:"lat"`
	Long float64 `json:"long"`
}

func NewCoordinates(lat, long float64) Coordinates {
	return Coordinates{Lat: lat, Long: long}
}

func (c Coordinates) String() string {
	return fmt.Sprintf("[%f;%f]", c.Lat, c.Long)
}

// IsValid reports whether the coordinates lie within the valid latitude and longitude ranges
func (c Coordinates) IsValid() bool {
	return !math.IsNaN(c.Lat) && !math.IsNaN(c.Long) &&
		c.Lat >= -90 && c.Lat <= 90 && c.Long >= -180 && c.Long <= 180
}

func (c Coordinates) Point() Point {
	return PointFromLatLon(c.Lat, c.Long)
}

func (c Coordinates) ISO6709() string {
	return fmt.Sprintf("%+010.6f%+011.6f/", c.Lat, c.Long)
}
