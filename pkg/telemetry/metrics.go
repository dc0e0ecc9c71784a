// Package telemetry exposes the server's Prometheus collectors. Metrics are
// registered on the default registry and served at /metrics.
package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// MessagesAccepted counts frames that passed validation and were persisted.
	MessagesAccepted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "crewchat_messages_accepted_total",
		Help: "Messages accepted, persisted and fanned out.",
	})

	// MessagesDenied counts frames rejected before persistence, by reason.
	MessagesDenied = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "crewchat_messages_denied_total",
		Help: "Frames rejected before persistence.",
	}, []string{"reason"})

	// BroadcastDeliveries counts successful per-recipient pushes.
	BroadcastDeliveries = promauto.NewCounter(prometheus.CounterOpts{
		Name: "crewchat_broadcast_deliveries_total",
		Help: "Per-recipient pushes delivered.",
	})

	// SessionsPruned counts sessions removed outside explicit disconnect.
	SessionsPruned = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "crewchat_sessions_pruned_total",
		Help: "Live sessions pruned, by reason (expired, revoked, push_failed).",
	}, []string{"reason"})

	// LiveSessions tracks the current size of the session registry.
	LiveSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "crewchat_live_sessions",
		Help: "Currently registered live sessions.",
	})

	// ReceiptsWritten counts read-receipt writes by outcome.
	ReceiptsWritten = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "crewchat_receipts_written_total",
		Help: "Read-receipt writes, by outcome (inserted, exists).",
	}, []string{"outcome"})

	// RateLimited counts frames denied by the per-user limiter.
	RateLimited = promauto.NewCounter(prometheus.CounterOpts{
		Name: "crewchat_rate_limited_total",
		Help: "Frames denied by the per-user rate limiter.",
	})
)
