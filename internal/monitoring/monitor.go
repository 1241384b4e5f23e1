package monitoring

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	RequestCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ctest_http_requests_total",
			Help: "Total number of HTTP requests served",
		},
		[]string{"method", "route", "status"},
	)

	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ctest_http_request_duration_seconds",
			Help:    "Duration of HTTP requests served",
			Buckets: []float64{0.05, 0.1, 0.5, 1, 2, 5},
		},
		[]string{"method", "route"},
	)

	BackendCalls = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ctest_backend_requests_total",
			Help: "Calls to the C-Test backend by operation and outcome",
		},
		[]string{"op", "status"},
	)

	BackendDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ctest_backend_request_duration_seconds",
			Help:    "Duration of C-Test backend calls",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
		},
		[]string{"op"},
	)

	PageCache = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ctest_page_cache_total",
			Help: "Page data cache lookups by result",
		},
		[]string{"result"},
	)

	Submissions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ctest_submissions_total",
			Help: "Submission attempts by final protocol state",
		},
		[]string{"state"},
	)

	HintsGiven = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "ctest_hints_given_total",
			Help: "Characters revealed by the hint mechanic",
		},
	)

	HintsThrottled = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "ctest_hints_throttled_total",
			Help: "Hint requests rejected by the cooldown",
		},
	)
)

// Init registers all collectors with reg.
func Init(reg prometheus.Registerer) {
	reg.MustRegister(
		RequestCounter,
		RequestDuration,
		BackendCalls,
		BackendDuration,
		PageCache,
		Submissions,
		HintsGiven,
		HintsThrottled,
	)
}

// Middleware records request count and latency per chi route pattern.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if p := rctx.RoutePattern(); p != "" {
				route = p
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		RequestCounter.WithLabelValues(r.Method, route, strconv.Itoa(status)).Inc()
		RequestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}

// Handler serves the metrics of the given gatherer.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
