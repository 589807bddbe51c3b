package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// MessagesSent counts appended messages by kind (text|file|system).
	MessagesSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "comms_messages_sent_total",
			Help: "Total number of messages appended to conversations",
		},
		[]string{"kind"},
	)

	// ConversationsCreated counts conversation creations by kind and outcome
	// (created|existing). Idempotent direct creates report "existing".
	ConversationsCreated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "comms_conversations_created_total",
			Help: "Total number of conversation create operations",
		},
		[]string{"kind", "outcome"},
	)

	// BootstrapRuns counts bootstrap invocations by caller role and result
	// (ok|partial).
	BootstrapRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "comms_bootstrap_runs_total",
			Help: "Total number of bootstrap policy runs",
		},
		[]string{"role", "result"},
	)

	// NotificationsPurged counts notifications removed by the retention sweeper.
	NotificationsPurged = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "comms_notifications_purged_total",
			Help: "Notifications removed by the retention sweeper",
		},
	)

	// APILatency measures HTTP request latencies.
	APILatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "comms_api_latency_seconds",
			Help:    "API endpoint latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)
