// Package metrics provides Prometheus metrics for the sync service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// WebhookDeliveriesTotal tracks outbound webhook attempts by event and outcome
	WebhookDeliveriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "newbusiness",
			Subsystem: "webhook",
			Name:      "deliveries_total",
			Help:      "Total number of outbound webhook delivery attempts",
		},
		[]string{"event", "outcome"},
	)

	// WebhookDeliveryDuration tracks outbound webhook latency
	WebhookDeliveryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "newbusiness",
			Subsystem: "webhook",
			Name:      "delivery_duration_seconds",
			Help:      "Duration of outbound webhook deliveries in seconds",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"event"},
	)

	// InboundWebhooksTotal tracks received webhooks by source, event and result
	InboundWebhooksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "newbusiness",
			Subsystem: "webhook",
			Name:      "inbound_total",
			Help:      "Total number of inbound webhooks",
		},
		[]string{"source", "event", "result"},
	)

	// SyncItemsTotal tracks bulk pull items by source, collection and result
	SyncItemsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "newbusiness",
			Subsystem: "sync",
			Name:      "items_total",
			Help:      "Total number of upstream items processed by bulk pulls",
		},
		[]string{"source", "collection", "result"},
	)

	// SyncRunDuration tracks full bulk pull duration
	SyncRunDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "newbusiness",
			Subsystem: "sync",
			Name:      "run_duration_seconds",
			Help:      "Duration of bulk pulls in seconds",
			Buckets:   []float64{0.5, 1, 5, 10, 30, 60, 120, 300, 600},
		},
		[]string{"source"},
	)

	// ReconcileOutcomesTotal tracks contact reconciliation results
	ReconcileOutcomesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "newbusiness",
			Subsystem: "reconcile",
			Name:      "outcomes_total",
			Help:      "Total number of contact reconciliations by matched key and action",
		},
		[]string{"source", "match", "action"},
	)

	// UpstreamRequestsTotal tracks read-API calls
	UpstreamRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "newbusiness",
			Subsystem: "upstream",
			Name:      "requests_total",
			Help:      "Total number of upstream read-API requests",
		},
		[]string{"source", "status_code"},
	)
)
