package geocoding

import (
	"bytes"
	"strings"
	"testing"

	"bitbucket.org/kleinnic74/pinphotos/domain/gps"

	"github.com/stretchr/testify/assert"
)

func TestGeoViewRendersObjectsAndMarkers(t *testing.T) {
	var buf bytes.Buffer
	view := NewGeoView(&buf)
	view.Begin(gps.RectFrom(16, 48, 17, 49))
	view.Object(gps.RectFrom(16.2, 48.1, 16.4, 48.3))
	view.Marker(gps.PointFromLatLon(48.2, 16.3), "Wien")
	view.End()

	out := buf.String()
	assert.True(t, strings.HasPrefix(out, "<?xml"))
	assert.Contains(t, out, "<title>Wien</title>")
	assert.Equal(t, 5, strings.Count(out, "<path"))
	assert.True(t, strings.HasSuffix(strings.TrimSpace(out), "</svg>"))
}

func TestVisitEmptyCache(t *testing.T) {
	var buf bytes.Buffer
	NewGeoCache(nil, nil).Visit(NewGeoView(&buf))
	assert.Contains(t, buf.String(), "</svg>")
}
