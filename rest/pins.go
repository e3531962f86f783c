package rest

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"bitbucket.org/kleinnic74/pinphotos/consts"
	"bitbucket.org/kleinnic74/pinphotos/domain"
	"bitbucket.org/kleinnic74/pinphotos/flickr"
	"bitbucket.org/kleinnic74/pinphotos/library"
	"bitbucket.org/kleinnic74/pinphotos/logging"
	"bitbucket.org/kleinnic74/pinphotos/pins"
	"bitbucket.org/kleinnic74/pinphotos/rest/cursor"
	"bitbucket.org/kleinnic74/pinphotos/rest/views"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// PinsHandler serves the pins, their photos and the image cache
type PinsHandler struct {
	service *pins.Service
}

func NewPinsHandler(service *pins.Service) *PinsHandler {
	return &PinsHandler{service: service}
}

func (h *PinsHandler) InitRoutes(r *mux.Router) {
	r.HandleFunc("/pins", h.dropPin).Methods("POST")
	r.HandleFunc("/pins", h.getPins).Methods("GET")
	r.HandleFunc("/pins/{id}", h.getPin).Methods("GET")
	r.HandleFunc("/pins/{id}", h.deletePin).Methods("DELETE")
	r.HandleFunc("/pins/{id}/refresh", h.refreshPin).Methods("POST")
	r.HandleFunc("/pins/{id}/prefetch", h.prefetch).Methods("POST")
	r.HandleFunc("/pins/{id}/photos/{key}", h.removePhoto).Methods("DELETE")
	r.HandleFunc("/pins/{id}/photos/{key}/image", h.getImage).Methods("GET")
	r.HandleFunc("/cache", h.purgeCache).Methods("DELETE")
}

type dropRequest struct {
	Lat *float64 `json:"lat"`
	Lon *float64 `json:"lon"`
}

// location reads lat and lon from a JSON body or, if there is none, from the
// query parameters
func location(r *http.Request) (lat, lon float64, err error) {
	if r.Body != nil && r.ContentLength != 0 {
		var req dropRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			return 0, 0, fmt.Errorf("%w: %s", pins.ErrInvalidLocation, err)
		}
		if req.Lat == nil || req.Lon == nil {
			return 0, 0, fmt.Errorf("%w: lat and lon are required", pins.ErrInvalidLocation)
		}
		return *req.Lat, *req.Lon, nil
	}
	return queryLocation(r)
}

func queryLocation(r *http.Request) (lat, lon float64, err error) {
	q := r.URL.Query()
	if lat, err = strconv.ParseFloat(q.Get("lat"), 64); err != nil {
		return 0, 0, fmt.Errorf("%w: bad lat %q", pins.ErrInvalidLocation, q.Get("lat"))
	}
	if lon, err = strconv.ParseFloat(q.Get("lon"), 64); err != nil {
		return 0, 0, fmt.Errorf("%w: bad lon %q", pins.ErrInvalidLocation, q.Get("lon"))
	}
	return lat, lon, nil
}

func pinWithSearch(pin *library.Pin, result *flickr.Result, err error) views.PinWithSearch {
	v := views.PinWithSearch{Pin: views.PinFrom(pin), Search: views.SearchFrom(result)}
	if err != nil {
		v.Error = err.Error()
	}
	return v
}

func (h *PinsHandler) dropPin(w http.ResponseWriter, r *http.Request) {
	lat, lon, err := location(r)
	if err != nil {
		respondWithServiceError(w, r, err)
		return
	}
	pin, result, err := h.service.Drop(r.Context(), lat, lon)
	if pin == nil {
		respondWithServiceError(w, r, err)
		return
	}
	w.Header().Set("Location", "/pins/"+string(pin.ID))
	Respond(r).WithJSON(w, http.StatusCreated, pinWithSearch(pin, result, err))
}

func (h *PinsHandler) getPins(w http.ResponseWriter, r *http.Request) {
	c := cursor.DecodeFromRequest(r)
	order := consts.SortOrderFrom(r.URL.Query().Get("order"))
	found, hasMore, err := h.service.List(r.Context(), c.Start, c.PageSize, order)
	if err != nil {
		respondWithServiceError(w, r, err)
		return
	}
	logging.From(r.Context()).Named("http").Debug("/pins",
		zap.Bool("hasMore", hasMore), zap.Int("start", c.Start), zap.Int("page", c.PageSize))
	pinViews := make([]views.Pin, len(found))
	for i, p := range found {
		pinViews[i] = views.PinFrom(p)
	}
	Respond(r).WithJSON(w, http.StatusOK, cursor.PageFor(pinViews, c, hasMore))
}

func pinID(r *http.Request) library.PinID {
	return library.PinID(mux.Vars(r)["id"])
}

func (h *PinsHandler) getPin(w http.ResponseWriter, r *http.Request) {
	pin, err := h.service.Get(r.Context(), pinID(r))
	if err != nil {
		respondWithServiceError(w, r, err)
		return
	}
	Respond(r).WithJSON(w, http.StatusOK, views.PinFrom(pin))
}

func (h *PinsHandler) deletePin(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Delete(r.Context(), pinID(r)); err != nil {
		respondWithServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *PinsHandler) refreshPin(w http.ResponseWriter, r *http.Request) {
	pin, result, err := h.service.Refresh(r.Context(), pinID(r))
	if pin == nil {
		respondWithServiceError(w, r, err)
		return
	}
	status := http.StatusOK
	if err != nil {
		status = statusFor(err)
	}
	Respond(r).WithJSON(w, status, pinWithSearch(pin, result, err))
}

func (h *PinsHandler) prefetch(w http.ResponseWriter, r *http.Request) {
	report, err := h.service.Prefetch(r.Context(), pinID(r))
	if err != nil {
		respondWithServiceError(w, r, err)
		return
	}
	Respond(r).WithJSON(w, http.StatusOK, report)
}

func (h *PinsHandler) removePhoto(w http.ResponseWriter, r *http.Request) {
	if err := h.service.RemovePhoto(r.Context(), pinID(r), mux.Vars(r)["key"]); err != nil {
		respondWithServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *PinsHandler) getImage(w http.ResponseWriter, r *http.Request) {
	data, err := h.service.Image(r.Context(), pinID(r), mux.Vars(r)["key"])
	if err != nil {
		status := statusFor(err)
		if status == http.StatusInternalServerError {
			status = http.StatusBadGateway
		}
		Respond(r).WithError(w, status, err)
		return
	}
	mime := "application/octet-stream"
	if format, err := domain.FormatOf(data); err == nil {
		mime = format.Mime
	}
	respondWithBinary(w, mime, data)
}

func (h *PinsHandler) purgeCache(w http.ResponseWriter, r *http.Request) {
	if err := h.service.PurgeCache(r.Context()); err != nil {
		respondWithServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
