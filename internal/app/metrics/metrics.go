package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Registry holds the application-specific Prometheus collectors.
	Registry = prometheus.NewRegistry()

	httpInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "dedpost",
			Subsystem: "http",
			Name:      "inflight_requests",
			Help:      "Current number of in-flight HTTP requests.",
		},
	)

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "dedpost",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled.",
		},
		[]string{"method", "path", "status"},
	)

	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "dedpost",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10), // 5ms to ~5s
		},
		[]string{"method", "path"},
	)

	engagementEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "dedpost",
			Subsystem: "engagement",
			Name:      "events_total",
			Help:      "Total number of engagement events recorded.",
		},
		[]string{"type", "counted"},
	)

	accrualOutcomes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "dedpost",
			Subsystem: "ledger",
			Name:      "accruals_total",
			Help:      "Total number of earnings accrual postings by outcome.",
		},
		[]string{"outcome"},
	)

	payoutSettlements = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "dedpost",
			Subsystem: "payouts",
			Name:      "settlements_total",
			Help:      "Total number of payout settlement attempts.",
		},
		[]string{"outcome"},
	)

	payoutAmount = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "dedpost",
			Subsystem: "payouts",
			Name:      "settled_amount_total",
			Help:      "Total amount settled through payouts.",
		},
	)

	reconcilerReplays = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "dedpost",
			Subsystem: "ledger",
			Name:      "reconciler_replays_total",
			Help:      "Total number of unapplied events replayed by the reconciler.",
		},
		[]string{"outcome"},
	)
)

func init() {
	Registry.MustRegister(
		httpInFlight,
		httpRequests,
		httpDuration,
		engagementEvents,
		accrualOutcomes,
		payoutSettlements,
		payoutAmount,
		reconcilerReplays,
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
		prometheus.NewGoCollector(),
	)
}

// Handler returns an HTTP handler exposing the registered Prometheus metrics.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// InstrumentHandler wraps the provided handler with HTTP metrics collection.
func InstrumentHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/metrics" {
			next.ServeHTTP(w, r)
			return
		}

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()

		httpInFlight.Inc()
		defer httpInFlight.Dec()

		next.ServeHTTP(rec, r)

		duration := time.Since(start)
		path := canonicalPath(r.URL.Path)
		method := strings.ToUpper(r.Method)

		httpRequests.WithLabelValues(method, path, strconv.Itoa(rec.status)).Inc()
		httpDuration.WithLabelValues(method, path).Observe(duration.Seconds())
	})
}

// RecordEngagement records an engagement request and whether it changed state.
func RecordEngagement(eventType string, counted bool) {
	engagementEvents.WithLabelValues(eventType, strconv.FormatBool(counted)).Inc()
}

// RecordAccrual records the outcome of an earnings accrual posting.
func RecordAccrual(outcome string) {
	accrualOutcomes.WithLabelValues(outcome).Inc()
}

// RecordSettlement records a payout settlement attempt and, on success, the
// settled amount.
func RecordSettlement(outcome string, amount float64) {
	payoutSettlements.WithLabelValues(outcome).Inc()
	if outcome == "success" && amount > 0 {
		payoutAmount.Add(amount)
	}
}

// RecordReconcilerReplay records one replay attempt by the ledger reconciler.
func RecordReconcilerReplay(outcome string) {
	reconcilerReplays.WithLabelValues(outcome).Inc()
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	return r.ResponseWriter.Write(b)
}

// canonicalPath collapses resource IDs out of request paths to keep label
// cardinality bounded.
func canonicalPath(raw string) string {
	trimmed := strings.Trim(raw, "/")
	if trimmed == "" {
		return "/"
	}
	parts := strings.Split(trimmed, "/")
	switch parts[0] {
	case "posts":
		if len(parts) == 1 {
			return "/posts"
		}
		if parts[1] == "feed" {
			return "/posts/feed"
		}
		if len(parts) == 2 {
			return "/posts/:id"
		}
		return "/posts/:id/" + parts[2]
	case "users":
		if len(parts) == 1 {
			return "/users"
		}
		if len(parts) == 2 {
			return "/users/:id"
		}
		return "/users/:id/" + parts[2]
	case "admin":
		if len(parts) == 1 {
			return "/admin"
		}
		if parts[1] == "users" && len(parts) > 2 {
			path := "/admin/users/:id"
			if len(parts) > 3 {
				path += "/" + parts[3]
			}
			return path
		}
		if parts[1] == "posts" && len(parts) > 2 {
			return "/admin/posts/:id"
		}
		return "/admin/" + strings.Join(parts[1:], "/")
	default:
		return "/" + parts[0]
	}
}
