// Package metrics exposes the Prometheus collectors of the service.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "walletauth"

// Verification outcomes
const (
	ResultSuccess     = "success"
	ResultNoChallenge = "no_challenge"
	ResultMismatch    = "message_mismatch"
	ResultMalformed   = "malformed"
	ResultWrongSigner = "wrong_signer"
	ResultReplayed    = "replayed"
	ResultError       = "error"
)

var (
	// Registry holds the application-specific Prometheus collectors.
	Registry = prometheus.NewRegistry()

	challengesIssued = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "challenge",
			Name:      "issued_total",
			Help:      "Total number of sign-in challenges issued.",
		},
	)

	verifications = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "challenge",
			Name:      "verifications_total",
			Help:      "Total number of signature verifications, by result.",
		},
		[]string{"result"},
	)

	swept = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sweeper",
			Name:      "removed_total",
			Help:      "Total number of expired entries removed by the sweeper.",
		},
		[]string{"store"},
	)

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled.",
		},
		[]string{"method", "path", "status"},
	)

	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms to ~4s
		},
		[]string{"method", "path"},
	)
)

func init() {
	Registry.MustRegister(
		challengesIssued,
		verifications,
		swept,
		httpRequests,
		httpDuration,
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
		prometheus.NewGoCollector(),
	)
}

// Handler returns an HTTP handler exposing the registered Prometheus metrics.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// RegisterActiveChallenges exposes count as the active challenge gauge.
func RegisterActiveChallenges(count func() int) error {
	return Registry.Register(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "challenge",
			Name:      "active",
			Help:      "Number of stored challenges, including expired ones not yet swept.",
		},
		func() float64 { return float64(count()) },
	))
}

func ChallengeIssued() {
	challengesIssued.Inc()
}

func Verification(result string) {
	verifications.WithLabelValues(result).Inc()
}

func Swept(store string, n int) {
	swept.WithLabelValues(store).Add(float64(n))
}

// HTTPRequest records one handled request.
func HTTPRequest(method, path string, status int, elapsed time.Duration) {
	httpRequests.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	httpDuration.WithLabelValues(method, path).Observe(elapsed.Seconds())
}
