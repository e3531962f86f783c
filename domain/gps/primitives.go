package gps

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Rect is an axis-aligned rectangle {x0, y0, x1, y1}; for geographic
// rectangles x is the longitude and y the latitude
type Rect [4]float64

// WorldBounds covers all valid longitudes and latitudes
var WorldBounds = RectFrom(-180, -90, 180, 90)

func RectFrom(x0, y0, x1, y1 float64) Rect {
	return Rect([4]float64{math.Min(x0, x1), math.Min(y0, y1), math.Max(x0, x1), math.Max(y0, y1)})
}

func RectPointSize(x0, y0, w, h float64) Rect {
	return Rect{x0, y0, x0 + w, y0 + h}
}

// RectAround returns the square of half-size half centered on p. Coordinates
// are not clamped to WorldBounds.
func RectAround(p Point, half float64) Rect {
	return Rect{p.X() - half, p.Y() - half, p.X() + half, p.Y() + half}
}

func (r Rect) W() float64 {
	return r[2] - r[0]
}

func (r Rect) H() float64 {
	return r[3] - r[1]
}

func (r Rect) X0() float64 {
	return r[0]
}

func (r Rect) Y0() float64 {
	return r[1]
}

func (r Rect) X1() float64 {
	return r[2]
}

func (r Rect) Y1() float64 {
	return r[3]
}

func (r Rect) Center() Point {
	return Point{(r[0] + r[2]) / 2, (r[1] + r[3]) / 2}
}

func (r Rect) HalfSize() (float64, float64) {
	return r.W() / 2, r.H() / 2
}

func (r Rect) FullyContains(other Rect) bool {
	return other[0] >= r[0] && other[2] < r[2] && other[1] >= r[1] && other[3] < r[3]
}

func (r Rect) Translate(x, y float64) Rect {
	return RectFrom(r[0]+x, r[1]+y, r[2]+x, r[3]+y)
}

// Intersects reports whether r and other share at least one point
func (r Rect) Intersects(other Rect) bool {
	return other[0] <= r[2] && other[2] >= r[0] && other[1] <= r[3] && other[3] >= r[1]
}

// Union returns the smallest rect containing both r and other
func (r Rect) Union(other Rect) Rect {
	return Rect{math.Min(r[0], other[0]), math.Min(r[1], other[1]), math.Max(r[2], other[2]), math.Max(r[3], other[3])}
}

// BBox formats the rect as "x0,y0,x1,y1", the bbox parameter format of
// photo search APIs (min lon, min lat, max lon, max lat)
func (r Rect) BBox() string {
	corners := make([]string, len(r))
	for i, v := range r {
		corners[i] = strconv.FormatFloat(v, 'f', -1, 64)
	}
	return strings.Join(corners, ",")
}

// ParseBBox parses the "x0,y0,x1,y1" format produced by BBox
func ParseBBox(s string) (Rect, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return Rect{}, fmt.Errorf("bbox %q: expected 4 values, got %d", s, len(parts))
	}
	var v [4]float64
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return Rect{}, fmt.Errorf("bbox %q: %w", s, err)
		}
		v[i] = f
	}
	return RectFrom(v[0], v[1], v[2], v[3]), nil
}

type Point [2]float64

func PointFromLatLon(lat, lon float64) Point {
	return Point{lon, lat}
}

func (p Point) X() float64 {
	return p[0]
}

func (p Point) Y() float64 {
	return p[1]
}

func (p Point) Lat() float64 {
	return p[1]
}

func (p Point) Lon() float64 {
	return p[0]
}

func (p Point) In(r Rect) bool {
	return p[0] >= r[0] && p[0] < r[2] && p[1] >= r[1] && p[1] < r[3]
}

func (p Point) String() string {
	return "[" + strconv.FormatFloat(p.Lat(), 'f', 6, 64) + ";" + strconv.FormatFloat(p.Lon(), 'f', 6, 64) + "]"
}
