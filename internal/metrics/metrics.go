// Package metrics holds Prometheus instruments used across the watcher.
// All collectors are registered with the global registry, so importing this
// package is enough to expose them on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	ProviderFetchTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "courtwatch_provider_fetch_total",
			Help: "Upstream availability and club-info requests by provider, kind and outcome.",
		}, []string{"provider", "kind", "outcome"})

	FreshnessLookupTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "courtwatch_freshness_lookup_total",
			Help: "Freshness decisions by result (hit skips the live fetch).",
		}, []string{"result"})

	SlotsReconciledTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "courtwatch_slots_reconciled_total",
			Help: "Slots written by the reconciler, by outcome.",
		}, []string{"outcome"})

	CourtsPromotedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "courtwatch_courts_promoted_total",
			Help: "Court metadata refresh actions, by action.",
		}, []string{"action"})

	TaskTransitionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "courtwatch_task_transitions_total",
			Help: "Search task state transitions, by target status.",
		}, []string{"status"})

	SchedulerTicksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "courtwatch_scheduler_ticks_total",
			Help: "Re-check ticks, by result (run or skipped).",
		}, []string{"result"})

	SchedulerTickDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "courtwatch_scheduler_tick_duration_seconds",
			Help:    "Wall-clock duration of a re-check tick.",
			Buckets: prometheus.ExponentialBuckets(0.5, 2, 10),
		})

	AlertsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "courtwatch_alerts_total",
			Help: "Alerts by outcome (dispatched, delivered, failed, dropped).",
		}, []string{"outcome"})

	ResponseCacheTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "courtwatch_response_cache_total",
			Help: "Cached GET endpoints by result (hit, miss, bypass).",
		}, []string{"result"})
)

func init() {
	prometheus.MustRegister(
		ProviderFetchTotal,
		FreshnessLookupTotal,
		SlotsReconciledTotal,
		CourtsPromotedTotal,
		TaskTransitionsTotal,
		SchedulerTicksTotal,
		SchedulerTickDuration,
		AlertsTotal,
		ResponseCacheTotal,
	)
}
