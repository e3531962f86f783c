package domain

import (
	"bytes"
	"image"

	"github.com/disintegration/gift"
	"github.com/rwcarlsen/goexif/exif"
)

// Orientation is the EXIF orientation of a picture (1-8)
type Orientation int

const (
	NormalOrientation = Orientation(1)
)

var orientationFilters = map[Orientation]gift.Filter{
	2: gift.FlipHorizontal(),
	3: gift.Rotate180(),
	4: gift.FlipVertical(),
	5: gift.Transpose(),
	6: gift.Rotate270(),
	7: gift.Transverse(),
	8: gift.Rotate90(),
}

// OrientationOf reads the EXIF orientation of the given content, pictures
// without EXIF data are considered to be normally oriented
func OrientationOf(data []byte) Orientation {
	x, err := exif.Decode(bytes.NewReader(data))
	if err != nil {
		return NormalOrientation
	}
	tag, err := x.Get(exif.Orientation)
	if err != nil {
		return NormalOrientation
	}
	o, err := tag.Int(0)
	if err != nil || o < 1 || o > 8 {
		return NormalOrientation
	}
	return Orientation(o)
}

// Apply returns img rotated and flipped so that it is displayed upright
func (o Orientation) Apply(img image.Image) image.Image {
	filter, found := orientationFilters[o]
	if !found {
		return img
	}
	g := gift.New(filter)
	dst := image.NewNRGBA(g.Bounds(img.Bounds()))
	g.Draw(dst, img)
	return dst
}

// SwapsAxes is true for orientations which exchange width and height
func (o Orientation) SwapsAxes() bool {
	return o >= 5 && o <= 8
}
