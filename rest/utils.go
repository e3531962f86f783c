package rest

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"bitbucket.org/kleinnic74/pinphotos/flickr"
	"bitbucket.org/kleinnic74/pinphotos/library"
	"bitbucket.org/kleinnic74/pinphotos/pins"

	"github.com/andybalholm/brotli"
)

type Responder interface {
	WithJSON(http.ResponseWriter, int, interface{})
	WithError(http.ResponseWriter, int, error)
}

type encoderFunc func(*json.Encoder) *json.Encoder

type responder struct {
	encoderOptions encoderFunc
	request        *http.Request
}

func pretty(encoder *json.Encoder) *json.Encoder {
	encoder.SetIndent("", "  ")
	return encoder
}

func compact(encoder *json.Encoder) *json.Encoder {
	return encoder
}

// Respond returns a responder for the given request. The JSON is indented when
// the request has pretty=true and compressed according to Accept-Encoding.
func Respond(r *http.Request) Responder {
	if r.URL.Query().Get("pretty") == "true" {
		return responder{pretty, r}
	}
	return responder{compact, r}
}

func (r responder) WithError(w http.ResponseWriter, status int, err error) {
	r.WithJSON(w, status, map[string]string{"error": err.Error()})
}

func (r responder) WithJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	body := brotli.HTTPCompressor(w, r.request)
	defer body.Close()
	w.WriteHeader(status)
	encoder := r.encoderOptions(json.NewEncoder(body))
	encoder.Encode(payload)
}

// statusFor maps errors of the pin service to HTTP status codes
func statusFor(err error) int {
	var requestErr *flickr.RequestError
	switch {
	case library.IsNotFound(err):
		return http.StatusNotFound
	case errors.Is(err, pins.ErrInvalidLocation):
		return http.StatusBadRequest
	case errors.As(err, &requestErr):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func respondWithServiceError(w http.ResponseWriter, r *http.Request, err error) {
	Respond(r).WithError(w, statusFor(err), err)
}

func respondWithBinary(w http.ResponseWriter, mime string, data []byte) {
	w.Header().Set("Content-Type", mime)
	w.Header().Set("Content-Length", fmt.Sprintf("%d", len(data)))
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}
