// Package metrics exposes Prometheus metrics for the ingestion and
// settlement pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/fx"
)

type PipelineMetrics struct {
	registry *prometheus.Registry

	MatchesProcessed *prometheus.CounterVec
	ClaimConflicts   prometheus.Counter
	StaleClaims      prometheus.Counter
	SweepErrors      prometheus.Counter
	SweepDuration    prometheus.Histogram

	BetsSettled      *prometheus.CounterVec
	WindowsCancelled prometheus.Counter
	PayoutTotal      prometheus.Counter

	APIRetries prometheus.Counter
}

func New() *PipelineMetrics {
	m := &PipelineMetrics{
		registry: prometheus.NewRegistry(),

		MatchesProcessed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "riftbot",
			Name:      "matches_processed_total",
			Help:      "Matches fully processed, by kind (full, solo).",
		}, []string{"kind"}),
		ClaimConflicts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "riftbot",
			Name:      "claim_conflicts_total",
			Help:      "Atomic claims lost to another worker.",
		}),
		StaleClaims: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "riftbot",
			Name:      "stale_claims_recovered_total",
			Help:      "Claims deleted by the staleness sweep.",
		}),
		SweepErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "riftbot",
			Name:      "sweep_errors_total",
			Help:      "Per-match errors collected during sweeps.",
		}),
		SweepDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "riftbot",
			Name:      "sweep_duration_seconds",
			Help:      "Wall time of one ingestion sweep.",
			Buckets:   prometheus.DefBuckets,
		}),

		BetsSettled: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "riftbot",
			Name:      "bets_settled_total",
			Help:      "Settled bets by result.",
		}, []string{"result"}),
		WindowsCancelled: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "riftbot",
			Name:      "windows_cancelled_total",
			Help:      "Bet windows cancelled for timeout.",
		}),
		PayoutTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "riftbot",
			Name:      "payout_currency_total",
			Help:      "Currency credited to winning bettors.",
		}),

		APIRetries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "riftbot",
			Name:      "riot_api_retries_total",
			Help:      "Retried Riot API requests.",
		}),
	}

	m.registry.MustRegister(
		m.MatchesProcessed, m.ClaimConflicts, m.StaleClaims, m.SweepErrors,
		m.SweepDuration, m.BetsSettled, m.WindowsCancelled, m.PayoutTotal,
		m.APIRetries,
	)
	return m
}

func (m *PipelineMetrics) Registry() *prometheus.Registry {
	return m.registry
}

var Module = fx.Provide(New)
