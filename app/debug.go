package app

import (
	"fmt"
	"net/http"
	"net/http/pprof"

	"github.com/gorilla/mux"
)

// DebugHandler lists the registered routes and exposes pprof, dev mode only
type DebugHandler struct{}

func (d DebugHandler) InitRoutes(router *mux.Router) {
	router.HandleFunc("/debug/mux", func(rw http.ResponseWriter, r *http.Request) {
		rw.Header().Set("Content-Type", "text/html")
		rw.WriteHeader(http.StatusOK)
		fmt.Fprintln(rw, "<html><head><title>Endpoints</title></head><body>")
		router.Walk(func(route *mux.Route, router *mux.Router, ancestors []*mux.Route) error {
			t, err := route.GetPathTemplate()
			if err != nil {
				return err
			}
			methods, _ := route.GetMethods()
			fmt.Fprintf(rw, "<div>%v <a href=\"%s\">%s</a></div>\n", methods, t, t)
			return nil
		})
		fmt.Fprintln(rw, "</body></html>")
	}).Methods("GET")

	router.HandleFunc("/debug/pprof/", pprof.Index).Methods("GET")
	router.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	router.HandleFunc("/debug/pprof/profile", pprof.Profile)
	router.HandleFunc("/debug/pprof/symbol", pprof.Symbol)

	for _, profile := range []string{"goroutine", "threadcreate", "heap", "allocs", "block", "mutex"} {
		router.Handle("/debug/pprof/"+profile, pprof.Handler(profile))
	}
}
