package rest

import (
	"bytes"
	"net/http"

	"bitbucket.org/kleinnic74/pinphotos/consts"
	"bitbucket.org/kleinnic74/pinphotos/domain/gps"
	"bitbucket.org/kleinnic74/pinphotos/flickr"
	"bitbucket.org/kleinnic74/pinphotos/geocoding"
	"bitbucket.org/kleinnic74/pinphotos/pins"

	"github.com/gorilla/mux"
)

// MapHandler renders the pins and the searched areas as SVG
type MapHandler struct {
	service *pins.Service
	places  *geocoding.Cache
}

// NewMapHandler creates the map handler, places may be nil if reverse
// geocoding is disabled
func NewMapHandler(service *pins.Service, places *geocoding.Cache) *MapHandler {
	return &MapHandler{service: service, places: places}
}

func (h *MapHandler) InitRoutes(r *mux.Router) {
	r.HandleFunc("/map.svg", h.pinsMap).Methods("GET")
	if h.places != nil {
		r.HandleFunc("/geo/cache.svg", h.placesMap).Methods("GET")
		r.HandleFunc("/geo/cache/stats", h.placesStats).Methods("GET")
		r.HandleFunc("/geo/cache/places", h.listPlaces).Methods("GET")
	}
}

func (h *MapHandler) pinsMap(w http.ResponseWriter, r *http.Request) {
	all, _, err := h.service.List(r.Context(), 0, 0, consts.Ascending)
	if err != nil {
		respondWithServiceError(w, r, err)
		return
	}
	bounds := gps.WorldBounds
	if r.URL.Query().Get("fit") == "true" && len(all) > 0 {
		bounds = all[0].Bounds(flickr.BoundingBoxHalfSize)
		for _, p := range all[1:] {
			bounds = bounds.Union(p.Bounds(flickr.BoundingBoxHalfSize))
		}
	}
	var buf bytes.Buffer
	view := geocoding.NewGeoView(&buf)
	view.Begin(bounds)
	for _, p := range all {
		view.Object(p.Bounds(flickr.BoundingBoxHalfSize))
		view.Marker(p.Location.Point(), p.Title)
	}
	view.End()
	respondWithBinary(w, "image/svg+xml", buf.Bytes())
}

func (h *MapHandler) placesMap(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	h.places.Visit(geocoding.NewGeoView(&buf))
	respondWithBinary(w, "image/svg+xml", buf.Bytes())
}

func (h *MapHandler) placesStats(w http.ResponseWriter, r *http.Request) {
	Respond(r).WithJSON(w, http.StatusOK, h.places.DumpStats())
}

// listPlaces lists the cached places intersecting the bbox query parameter,
// all places without it
func (h *MapHandler) listPlaces(w http.ResponseWriter, r *http.Request) {
	bounds := gps.WorldBounds
	if bbox := r.URL.Query().Get("bbox"); bbox != "" {
		var err error
		if bounds, err = gps.ParseBBox(bbox); err != nil {
			Respond(r).WithError(w, http.StatusBadRequest, err)
			return
		}
	}
	Respond(r).WithJSON(w, http.StatusOK, h.places.PlacesIn(bounds))
}
