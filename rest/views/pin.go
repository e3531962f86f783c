package views

import (
	"fmt"
	"net/url"
	"time"

	"bitbucket.org/kleinnic74/pinphotos/domain"
	"bitbucket.org/kleinnic74/pinphotos/domain/gps"
	"bitbucket.org/kleinnic74/pinphotos/flickr"
	"bitbucket.org/kleinnic74/pinphotos/library"
)

type Links map[string]string

func (l Links) Add(name, link string) Links {
	l[name] = link
	return l
}

type Photo struct {
	Key    string `json:"key"`
	Title  string `json:"title,omitempty"`
	Remote string `json:"remote"`
	Links  Links  `json:"links"`
}

type Pin struct {
	ID       library.PinID   `json:"id"`
	Title    string          `json:"title"`
	Location gps.Coordinates `json:"location"`
	BBox     string          `json:"bbox"`
	Created  time.Time       `json:"created"`
	Photos   []Photo         `json:"photos"`
	Links    Links           `json:"links"`
}

// Search is the result of a photo search as returned to clients
type Search struct {
	Outcome flickr.Outcome      `json:"outcome"`
	Reason  string              `json:"reason,omitempty"`
	Meta    flickr.PageMetadata `json:"meta"`
	Photos  []Photo             `json:"photos"`
}

// PinWithSearch is the response to operations running a search for a pin
type PinWithSearch struct {
	Pin    Pin     `json:"pin"`
	Search *Search `json:"search,omitempty"`
	Error  string  `json:"error,omitempty"`
}

func pinLink(id library.PinID) string {
	return fmt.Sprintf("/pins/%s", url.PathEscape(string(id)))
}

func photoOfPin(id library.PinID, p domain.Photo) Photo {
	return Photo{
		Key:    p.Key(),
		Title:  p.Title,
		Remote: p.URL,
		Links: Links{
			"image":  fmt.Sprintf("%s/photos/%s/image", pinLink(id), url.PathEscape(p.Key())),
			"remove": fmt.Sprintf("%s/photos/%s", pinLink(id), url.PathEscape(p.Key())),
		},
	}
}

func PinFrom(p *library.Pin) Pin {
	photos := make([]Photo, len(p.Photos))
	for i, photo := range p.Photos {
		photos[i] = photoOfPin(p.ID, photo)
	}
	self := pinLink(p.ID)
	return Pin{
		ID:       p.ID,
		Title:    p.Title,
		Location: p.Location,
		BBox:     flickr.BoundingBox(p.Location.Lat, p.Location.Long),
		Created:  p.Created,
		Photos:   photos,
		Links: Links{
			"self":     self,
			"refresh":  self + "/refresh",
			"prefetch": self + "/prefetch",
		},
	}
}

func SearchFrom(r *flickr.Result) *Search {
	if r == nil {
		return nil
	}
	photos := make([]Photo, len(r.Photos))
	for i, p := range r.Photos {
		photos[i] = Photo{Key: p.Key(), Title: p.Title, Remote: p.URL, Links: Links{}}
	}
	return &Search{
		Outcome: r.Outcome,
		Reason:  r.Reason,
		Meta:    r.Meta,
		Photos:  photos,
	}
}
