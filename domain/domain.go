package domain

import "strings"

// Photo is a reference to a remote picture found by a photo search
type Photo struct {
	ID    string `json:"id"`
	Title string `json:"title,omitempty"`
	URL   string `json:"url"`
}

// Key returns the identity of the photo: its ID or, if the photo has
// no ID, its URL
func (p Photo) Key() string {
	if p.ID != "" {
		return p.ID
	}
	return p.URL
}

func (p Photo) IsValid() bool {
	return strings.TrimSpace(p.URL) != ""
}

// Keys returns the identity keys of the given photos, in order
func Keys(photos []Photo) []string {
	keys := make([]string, len(photos))
	for i := range photos {
		keys[i] = photos[i].Key()
	}
	return keys
}
