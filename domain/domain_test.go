package domain_test

import (
	"testing"

	"bitbucket.org/kleinnic74/pinphotos/domain"

	"github.com/stretchr/testify/assert"
)

func TestPhotoKey(t *testing.T) {
	data := []struct {
		photo domain.Photo
		key   string
	}{
		{domain.Photo{ID: "123", URL: "https://farm/123_m.jpg"}, "123"},
		{domain.Photo{URL: "https://farm/456_m.jpg"}, "https://farm/456_m.jpg"},
		{domain.Photo{}, ""},
	}
	for i, d := range data {
		if actual := d.photo.Key(); actual != d.key {
			t.Errorf("#%d: bad key, expected %q, got %q", i, d.key, actual)
		}
	}
}

func TestKeysPreserveOrder(t *testing.T) {
	photos := []domain.Photo{{ID: "b", URL: "u1"}, {ID: "a", URL: "u2"}, {URL: "u3"}}
	assert.Equal(t, []string{"b", "a", "u3"}, domain.Keys(photos))
}

func TestPhotoIsValid(t *testing.T) {
	assert.True(t, domain.Photo{URL: "https://x"}.IsValid())
	assert.False(t, domain.Photo{ID: "1", URL: "  "}.IsValid())
}
