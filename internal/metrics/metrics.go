// Scavengers - Offline-First Sync Core for Location-Based Hunt Games
// Copyright 2026 Justin Newbold (justinnewbold)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/justinnewbold/scavengers-sub000

// Package metrics provides Prometheus instrumentation for the sync core:
// queue depth, drain outcomes, websocket connection churn, and reducer
// throughput. Collectors are registered on the default registry and exposed
// by the status API's /metrics endpoint.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Queue metrics
	QueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "scavsync_queue_depth",
			Help: "Current number of pending submissions in the offline queue",
		},
	)

	SubmissionsDirect = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "scavsync_submissions_direct_total",
			Help: "Submissions sent directly without queueing",
		},
	)

	SubmissionsQueued = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "scavsync_submissions_queued_total",
			Help: "Submissions enqueued for later sync",
		},
	)

	// Drain metrics
	DrainSynced = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "scavsync_drain_synced_total",
			Help: "Queued submissions acknowledged during drains",
		},
	)

	DrainFailed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "scavsync_drain_failed_total",
			Help: "Queued submissions that failed a drain attempt",
		},
	)

	DrainEvicted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "scavsync_drain_evicted_total",
			Help: "Queued submissions evicted after exceeding max retries",
		},
	)

	DrainDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "scavsync_drain_duration_seconds",
			Help:    "Duration of full queue drains in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	// Realtime metrics
	WSReconnects = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "scavsync_ws_reconnect_attempts_total",
			Help: "Websocket reconnect attempts",
		},
	)

	WSConnectionState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "scavsync_ws_connection_state",
			Help: "Current websocket connection state (1 for the active state)",
		},
		[]string{"state"},
	)

	EventsApplied = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scavsync_events_applied_total",
			Help: "Realtime events applied to the leaderboard reducer",
		},
		[]string{"type"},
	)

	EventsDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "scavsync_events_dropped_total",
			Help: "Inbound realtime messages dropped as malformed",
		},
	)

	// Connectivity metrics
	OnlineState = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "scavsync_online",
			Help: "Last observed connectivity state (1 online, 0 offline)",
		},
	)
)

// SetConnectionState flips the state gauge so exactly one label is hot.
func SetConnectionState(state string) {
	for _, s := range []string{"disconnected", "connecting", "connected", "reconnecting"} {
		v := 0.0
		if s == state {
			v = 1.0
		}
		WSConnectionState.WithLabelValues(s).Set(v)
	}
}
