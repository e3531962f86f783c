package library

import (
	"fmt"
	"math/rand"
	"time"

	"bitbucket.org/kleinnic74/pinphotos/domain"
	"bitbucket.org/kleinnic74/pinphotos/domain/gps"
)

// RandomPin returns a pin with n photos at a random location, used by tests
func RandomPin(n int) *Pin {
	created, _ := time.Parse(time.RFC3339, "2018-02-23T13:43:12Z")
	pin := NewPin("", gps.NewCoordinates(rand.Float64()*180-90, rand.Float64()*360-180), created)
	for i := 0; i < n; i++ {
		id := fmt.Sprintf("%d", rand.Uint32())
		pin.Photos = append(pin.Photos, domain.Photo{ID: id, URL: "https://farm.example.com/" + id + "_m.jpg"})
	}
	return pin
}
