// Package metrics exposes Prometheus collectors for the roasting
// service.
package metrics

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	roastsTotal                *prometheus.CounterVec
	admissionRejectionsTotal   *prometheus.CounterVec
	fetchDurationSeconds       *prometheus.HistogramVec
	generationAttemptsTotal    *prometheus.CounterVec
	voteTogglesTotal           *prometheus.CounterVec
	dailyBudgetRemaining       prometheus.Gauge
	httpRequestsTotal          *prometheus.CounterVec
	httpRequestDurationSeconds *prometheus.HistogramVec

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		roastsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "roasting_roasts_total",
				Help: "Total roast requests, labeled by outcome and failing stage.",
			},
			[]string{"outcome", "stage"},
		)

		admissionRejectionsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "roasting_admission_rejections_total",
				Help: "Total admission rejections, labeled by reason.",
			},
			[]string{"reason"},
		)

		fetchDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "roasting_fetch_duration_seconds",
				Help:    "Histogram of page fetch latencies, labeled by mode.",
				Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 20},
			},
			[]string{"mode"},
		)

		generationAttemptsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "roasting_generation_attempts_total",
				Help: "Total generation attempts against the model provider, labeled by status.",
			},
			[]string{"status"},
		)

		voteTogglesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "roasting_vote_toggles_total",
				Help: "Total vote toggles, labeled by direction.",
			},
			[]string{"direction"},
		)

		dailyBudgetRemaining = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "roasting_daily_budget_remaining",
				Help: "Remaining roast generations in the current UTC day.",
			},
		)

		httpRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests, labeled by method and code.",
			},
			[]string{"method", "code"},
		)

		httpRequestDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Histogram of HTTP request latencies, labeled by method and route.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
			},
			[]string{"method", "route"},
		)
	})
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveRoast records the outcome of one roast request. Stage is empty
// for successes.
func ObserveRoast(outcome, stage string) {
	roastsTotal.WithLabelValues(outcome, stage).Inc()
}

// ObserveAdmissionRejection increments the rejection counter for a reason.
func ObserveAdmissionRejection(reason string) {
	admissionRejectionsTotal.WithLabelValues(reason).Inc()
}

// ObserveFetch records one page fetch. Mode is "probe" or "headless".
func ObserveFetch(mode string, duration time.Duration) {
	fetchDurationSeconds.WithLabelValues(mode).Observe(duration.Seconds())
}

// ObserveGenerationAttempt counts one provider call by status.
func ObserveGenerationAttempt(status string) {
	generationAttemptsTotal.WithLabelValues(status).Inc()
}

// ObserveVoteToggle counts one vote toggle. Direction is "added" or
// "removed".
func ObserveVoteToggle(direction string) {
	voteTogglesTotal.WithLabelValues(direction).Inc()
}

// SetDailyBudgetRemaining updates the remaining-budget gauge.
func SetDailyBudgetRemaining(remaining int) {
	dailyBudgetRemaining.Set(float64(remaining))
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}
