package rest

import (
	"net/http"

	"bitbucket.org/kleinnic74/pinphotos/logging"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// LogsHandler serves the most recent log lines kept in memory
type LogsHandler struct{}

func NewLogsHandler() LogsHandler {
	return LogsHandler{}
}

func (l LogsHandler) InitRoutes(r *mux.Router) {
	r.Handle("/logs", l).Methods("GET")
}

// ServeHTTP writes the newest lines first unless order=asc is requested
func (l LogsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	reverse := r.URL.Query().Get("order") != "asc"
	w.Header().Add("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)
	if err := logging.Dump(w, reverse); err != nil {
		logging.From(r.Context()).Warn("Failed to dump logs", zap.Error(err))
	}
}
