package domain

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/gif"
	"image/jpeg"
	"image/png"
	"io"

	"github.com/h2non/filetype"
)

type photoDecoder func(io.Reader) (image.Image, error)

// Format is a decodable picture format
type Format struct {
	ID   string
	Mime string

	decoder photoDecoder
}

// ErrNotAnImage is returned for content which is not a picture
type ErrNotAnImage string

func (e ErrNotAnImage) Error() string {
	return fmt.Sprintf("not an image: %s", string(e))
}

var (
	formatsById = map[string]Format{}

	ErrNoDecoderAvailable = errors.New("No decoder available for this format")
)

var (
	JPEG Format
	PNG  Format
	GIF  Format
)

func init() {
	JPEG = RegisterFormat("jpg", "image/jpeg", jpeg.Decode)
	PNG = RegisterFormat("png", "image/png", png.Decode)
	GIF = RegisterFormat("gif", "image/gif", gif.Decode)
}

func RegisterFormat(extension string, mime string, decoder photoDecoder) Format {
	format := Format{ID: extension, Mime: mime, decoder: decoder}
	formatsById[extension] = format
	return format
}

func FormatForExt(ext string) (Format, bool) {
	f, found := formatsById[ext]
	return f, found
}

// FormatOf detects the format of the given content from its header
func FormatOf(data []byte) (Format, error) {
	if !filetype.IsImage(data) {
		return Format{}, ErrNotAnImage("unknown content")
	}
	kind, err := filetype.Match(data)
	if err != nil {
		return Format{}, err
	}
	f, found := formatsById[kind.Extension]
	if !found {
		return Format{}, ErrNotAnImage(kind.MIME.Value)
	}
	return f, nil
}

// Decode decodes the binary data from the given reader as an image in this format
func (f Format) Decode(in io.Reader) (image.Image, error) {
	if f.decoder == nil {
		return nil, ErrNoDecoderAvailable
	}
	return f.decoder(in)
}

func (f Format) String() string {
	return f.ID
}

// EncodePNG is the storage encoding of all cached pictures
func EncodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func bytesReader(data []byte) io.Reader {
	return bytes.NewReader(data)
}
