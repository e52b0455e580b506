// Package metrics holds the Prometheus collectors of the interview server.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "interviewer_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"route", "method", "status"},
	)
	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "interviewer_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		},
		[]string{"route", "method"},
	)

	OracleRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "interviewer_oracle_requests_total",
			Help: "Total number of oracle completion calls by operation and outcome",
		},
		[]string{"operation", "outcome"},
	)
	OracleRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "interviewer_oracle_request_duration_seconds",
			Help:    "Oracle completion latency in seconds, retries included",
			Buckets: []float64{0.25, 0.5, 1, 2, 5, 10, 20, 40, 60, 120},
		},
		[]string{"operation"},
	)

	// Overall scores as a fraction of the round's cap.
	EvaluationScore = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "interviewer_evaluation_score_ratio",
			Help:    "Distribution of overall evaluation scores normalized to [0,1]",
			Buckets: []float64{0, 0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9, 1.0},
		},
		[]string{"round", "kind"},
	)
)

// Init registers all collectors with the default registry.
func Init() {
	prometheus.MustRegister(HTTPRequestsTotal)
	prometheus.MustRegister(HTTPRequestDuration)
	prometheus.MustRegister(OracleRequestsTotal)
	prometheus.MustRegister(OracleRequestDuration)
	prometheus.MustRegister(EvaluationScore)
}

// Middleware records request counts and latency per chi route pattern.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := ""
		if rc := chi.RouteContext(r.Context()); rc != nil {
			route = rc.RoutePattern()
		}
		if route == "" {
			route = "unmatched"
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		HTTPRequestsTotal.WithLabelValues(route, r.Method, strconv.Itoa(status)).Inc()
		HTTPRequestDuration.WithLabelValues(route, r.Method).Observe(time.Since(start).Seconds())
	})
}

// ObserveOracle records one completion call.
func ObserveOracle(operation, outcome string, d time.Duration) {
	OracleRequestsTotal.WithLabelValues(operation, outcome).Inc()
	OracleRequestDuration.WithLabelValues(operation).Observe(d.Seconds())
}

// ObserveScore records an overall score against its cap.
func ObserveScore(round, kind string, overall, limit int) {
	if limit <= 0 {
		return
	}
	EvaluationScore.WithLabelValues(round, kind).Observe(float64(overall) / float64(limit))
}
