// Package metrics defines the Prometheus collectors exposed on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Turns counts narrative turns by scenario, action, and outcome.
	Turns = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ecoquest_turns_total",
		Help: "Narrative turns processed, by scenario, action, and outcome.",
	}, []string{"scenario", "action", "outcome"})

	// RateLimitDenials counts inbound requests rejected by the admission gate.
	RateLimitDenials = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ecoquest_rate_limit_denials_total",
		Help: "Inbound requests denied by the per-player admission gate.",
	}, []string{"reason"})

	// UpstreamRetries counts upstream attempts that had to be retried.
	UpstreamRetries = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ecoquest_upstream_retries_total",
		Help: "Upstream completion attempts that were retried, by cause.",
	}, []string{"cause"})

	// UpstreamLatency observes the wall time of one completion call,
	// pacing waits and retries included.
	UpstreamLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "ecoquest_upstream_latency_seconds",
		Help:    "Wall time of upstream completion calls, including retries and pacing.",
		Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
	})
)

// RegisterLimiterGauges exposes live limiter occupancy. Call once at
// startup with the process's limiter instances.
func RegisterLimiterGauges(trackedPlayers, upstreamUsed func() int) {
	promauto.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "ecoquest_tracked_players",
		Help: "Player identities currently tracked by the inbound limiter.",
	}, func() float64 { return float64(trackedPlayers()) })

	promauto.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "ecoquest_upstream_window_used",
		Help: "Calls currently counted against the upstream pacing window.",
	}, func() float64 { return float64(upstreamUsed()) })
}
