package geocoding

import (
	"fmt"
	"io"

	"bitbucket.org/kleinnic74/pinphotos/domain/gps"

	svg "github.com/ajstarks/svgo"
)

var (
	strokeGrid   = []string{`stroke="gray"`, `stroke-width="0.01"`, `fill="none"`}
	strokeQuad   = []string{`stroke="blue"`, `stroke-width="0.01"`}
	strokeObject = []string{`stroke="red"`, `stroke-width="0.01"`, `fill="none"`}
	fillMarker   = []string{`fill="red"`, `stroke="none"`}
)

// GeoView renders rectangles and points in geographic coordinates as SVG.
// It implements Visitor so that the geocoding cache can be rendered.
type GeoView struct {
	canvas *svg.SVG
	marker float64
}

func NewGeoView(out io.Writer) *GeoView {
	canvas := svg.New(out)
	return &GeoView{
		canvas: canvas,
		marker: 0.01,
	}
}

func xlinePath(bounds gps.Rect) string {
	center := bounds.Center()
	return fmt.Sprintf("M %f %f l %f %f", bounds.X0(), center.Y(), bounds.W(), 0.)
}

func ylinePath(bounds gps.Rect) string {
	center := bounds.Center()
	return fmt.Sprintf("M %f %f l %f %f", center.X(), bounds.Y0(), 0., bounds.H())
}

func rectPath(bounds gps.Rect) string {
	return fmt.Sprintf("M %f %f l 0 %f l %f 0 l 0 %f Z", bounds.X0(), bounds.Y0(), bounds.H(), bounds.W(), -bounds.H())
}

func markerPath(p gps.Point, size float64) string {
	return fmt.Sprintf("M %f %f l %f %f l %f 0 Z", p.X(), p.Y(), -size/2, size, size)
}

// Begin starts the document, y is flipped so that north is up
func (g *GeoView) Begin(bounds gps.Rect) {
	g.marker = bounds.W() / 100
	if h := bounds.H() / 100; h > g.marker {
		g.marker = h
	}
	g.canvas.Startpercent(100, 100, fmt.Sprintf(`viewBox="%f %f %f %f"`, bounds.X0(), -bounds.Y1(), bounds.W(), bounds.H()))
	g.canvas.Gtransform("scale(1,-1)")
	g.canvas.Path("M 0 -90 l 0 180", strokeGrid...)
	g.canvas.Path("M -180 0 l 360 0", strokeGrid...)
	g.canvas.Path("M -180 -90 L -180 90 L 180 90 L 180 -90 Z", strokeGrid...)
}

func (g *GeoView) Level(depth int, bounds gps.Rect) {
	g.canvas.Group()
	g.canvas.Path(xlinePath(bounds), strokeQuad...)
	g.canvas.Path(ylinePath(bounds), strokeQuad...)
	g.canvas.Gend()
}

func (g *GeoView) Object(bounds gps.Rect) {
	g.canvas.Group()
	g.canvas.Path(rectPath(bounds), strokeObject...)
	g.canvas.Gend()
}

// Marker draws a pin at the given point
func (g *GeoView) Marker(p gps.Point, title string) {
	g.canvas.Group()
	g.canvas.Title(title)
	g.canvas.Path(markerPath(p, g.marker), fillMarker...)
	g.canvas.Gend()
}

func (g *GeoView) End() {
	g.canvas.Gend()
	g.canvas.End()
}
