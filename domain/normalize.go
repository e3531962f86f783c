package domain

import (
	"image"

	"github.com/disintegration/gift"
)

// ThumbSize is the maximum width of a normalized picture, 0 means unbounded
type ThumbSize int

// BoundsOf returns the bounds of img scaled down to fit the width, the
// aspect ratio is kept. Images narrower than the size are not scaled up.
func (size ThumbSize) BoundsOf(img image.Rectangle) image.Rectangle {
	if size <= 0 || img.Dx() <= int(size) {
		return image.Rect(0, 0, img.Dx(), img.Dy())
	}
	h := (int(size) * img.Dy()) / img.Dx()
	if h < 1 {
		h = 1
	}
	return image.Rect(0, 0, int(size), h)
}

// Normalizer converts downloaded content into the cached representation
type Normalizer interface {
	Normalize(data []byte) ([]byte, error)
}

// LocalNormalizer decodes a picture, puts it upright, scales it down to
// MaxWidth and re-encodes it as PNG
type LocalNormalizer struct {
	MaxWidth ThumbSize
}

func (n LocalNormalizer) Normalize(data []byte) ([]byte, error) {
	format, err := FormatOf(data)
	if err != nil {
		return nil, err
	}
	img, err := format.Decode(bytesReader(data))
	if err != nil {
		return nil, err
	}
	if format.ID == JPEG.ID {
		img = OrientationOf(data).Apply(img)
	}
	return EncodePNG(Resize(img, n.MaxWidth))
}

// Resize scales img down to the given size
func Resize(img image.Image, size ThumbSize) image.Image {
	target := size.BoundsOf(img.Bounds())
	if target.Dx() == img.Bounds().Dx() {
		return img
	}
	thumb := image.NewRGBA(target)
	filter := gift.New(
		gift.ResizeToFit(target.Dx(), target.Dy(), gift.LinearResampling),
	)
	filter.Draw(thumb, img)
	return thumb
}
