package rest

import (
	"net/http"

	"bitbucket.org/kleinnic74/pinphotos/flickr"
	"bitbucket.org/kleinnic74/pinphotos/pins"
	"bitbucket.org/kleinnic74/pinphotos/rest/views"

	"github.com/gorilla/mux"
)

// BrowseHandler pages through the photos around a location without creating a pin
type BrowseHandler struct {
	service *pins.Service
}

func NewBrowseHandler(service *pins.Service) *BrowseHandler {
	return &BrowseHandler{service: service}
}

func (h *BrowseHandler) InitRoutes(r *mux.Router) {
	r.HandleFunc("/browse", h.browse).Methods("GET")
}

// browse starts a search at lat/lon, with next=true it continues the last one
func (h *BrowseHandler) browse(w http.ResponseWriter, r *http.Request) {
	var result *flickr.Result
	var err error
	if r.URL.Query().Get("next") == "true" {
		result, err = h.service.NextPage(r.Context())
	} else {
		lat, lon, perr := queryLocation(r)
		if perr != nil {
			respondWithServiceError(w, r, perr)
			return
		}
		result, err = h.service.Browse(r.Context(), lat, lon)
	}
	if err != nil {
		respondWithServiceError(w, r, err)
		return
	}
	Respond(r).WithJSON(w, http.StatusOK, views.SearchFrom(result))
}
