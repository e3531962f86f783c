package library

import (
	"time"

	"bitbucket.org/kleinnic74/pinphotos/domain"
	"bitbucket.org/kleinnic74/pinphotos/domain/gps"

	"github.com/google/uuid"
)

const DefaultTitle = "Pin"

// PinID is the unique identifier of a Pin
type PinID string

func (id PinID) String() string {
	return string(id)
}

// Pin is a location dropped on the map together with the photos found around it
type Pin struct {
	ID       PinID           `json:"id"`
	Title    string          `json:"title"`
	Location gps.Coordinates `json:"location"`
	Created  time.Time       `json:"created"`
	Photos   []domain.Photo  `json:"photos"`
}

// NewPin creates a pin without photos at the given location
func NewPin(title string, location gps.Coordinates, created time.Time) *Pin {
	if title == "" {
		title = DefaultTitle
	}
	return &Pin{
		ID:       PinID(uuid.New().String()),
		Title:    title,
		Location: location,
		Created:  created.UTC(),
		Photos:   []domain.Photo{},
	}
}

// Photo returns the photo with the given key
func (p *Pin) Photo(key string) (domain.Photo, bool) {
	for _, photo := range p.Photos {
		if photo.Key() == key {
			return photo, true
		}
	}
	return domain.Photo{}, false
}

// Bounds returns the area searched for photos of this pin
func (p *Pin) Bounds(halfSize float64) gps.Rect {
	return gps.RectAround(p.Location.Point(), halfSize)
}
