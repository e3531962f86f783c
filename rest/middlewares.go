package rest

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"bitbucket.org/kleinnic74/pinphotos/consts"
	"bitbucket.org/kleinnic74/pinphotos/logging"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

// Middlewares wraps handlers with request ids, request logging, panic
// recovery and request metrics
type Middlewares struct {
	requests *prometheus.HistogramVec
}

// NewMiddlewares registers the request metrics with reg, a nil reg leaves
// them unregistered
func NewMiddlewares(reg prometheus.Registerer) *Middlewares {
	return &Middlewares{
		requests: promauto.With(reg).NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests by handler and status",
			Buckets: prometheus.DefBuckets,
		}, []string{"handler", "status"}),
	}
}

func (m *Middlewares) Wrap(handler http.Handler, name string) http.Handler {
	return cors(addRequestID(m.logRequest(recoverPanic(handler), name)))
}

type responseWrapper struct {
	writer http.ResponseWriter
	status int
}

func (w *responseWrapper) Header() http.Header {
	return w.writer.Header()
}

func (w *responseWrapper) Write(data []byte) (int, error) {
	if w.status == 0 {
		w.status = http.StatusOK
	}
	return w.writer.Write(data)
}

func (w *responseWrapper) WriteHeader(status int) {
	w.status = status
	w.writer.WriteHeader(status)
}

func (m *Middlewares) logRequest(f http.Handler, name string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rid := requestID(r.Context())
		log, ctx := logging.FromWithFields(r.Context(), zap.String("request", rid))
		wrapper := responseWrapper{
			writer: w,
		}
		defer func() {
			if wrapper.status == 0 {
				wrapper.status = http.StatusOK
			}
			elapsed := time.Since(start)
			log.Named(name).Debug("HTTP Request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Duration("duration", elapsed),
				zap.Int("status", wrapper.status))
			m.requests.WithLabelValues(name, strconv.Itoa(wrapper.status)).Observe(elapsed.Seconds())
		}()
		f.ServeHTTP(&wrapper, r.WithContext(ctx))
	})
}

func recoverPanic(f http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if p := recover(); p != nil {
				logging.From(r.Context()).Error("Handler panicked", zap.Any("panic", p), zap.Stack("stack"))
				Respond(r).WithError(w, http.StatusInternalServerError, fmt.Errorf("internal error"))
			}
		}()
		f.ServeHTTP(w, r)
	})
}

type requestIDKeyType int

const requestIDKey = requestIDKeyType(0)

func requestID(ctx context.Context) string {
	if rid, ok := ctx.Value(requestIDKey).(string); ok {
		return rid
	}
	return ""
}

func addRequestID(f http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rid := r.Header.Get("X-Request-ID")
		if rid == "" {
			rid = uuid.New().String()
			r.Header.Set("X-Request-ID", rid)
		}
		w.Header().Set("X-Request-ID", rid)
		ctx := context.WithValue(r.Context(), requestIDKey, rid)
		f.ServeHTTP(w, r.WithContext(ctx))
	})
}

func cors(h http.Handler) http.Handler {
	if consts.IsDevMode() {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Add("Access-Control-Allow-Origin", "*")
			h.ServeHTTP(w, r)
		})
	}
	return h
}
