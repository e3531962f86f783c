package flickr

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type internalStats struct {
	requests  prometheus.Counter
	errors    prometheus.Counter
	malformed prometheus.Counter
}

func newStats(reg prometheus.Registerer) *internalStats {
	factory := promauto.With(reg)
	return &internalStats{
		requests: factory.NewCounter(prometheus.CounterOpts{
			Name: "flickr_search_requests",
			Help: "Number of search requests sent to the photo API",
		}),
		errors: factory.NewCounter(prometheus.CounterOpts{
			Name: "flickr_search_request_errors",
			Help: "Number of search requests which failed at the transport level",
		}),
		malformed: factory.NewCounter(prometheus.CounterOpts{
			Name: "flickr_search_malformed_responses",
			Help: "Number of search responses which could not be interpreted",
		}),
	}
}
