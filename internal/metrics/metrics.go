// Package metrics registers the daemon's prometheus collectors on the
// default registry, exposed by the HTTP surface at /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// IntentsTotal counts dispatched intents by provider and terminal result.
	IntentsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "prism_intents_total",
		Help: "Dispatched intents by provider and result.",
	}, []string{"provider", "result"})

	// ComplianceRejections counts intents stopped at the risk gate.
	ComplianceRejections = promauto.NewCounter(prometheus.CounterOpts{
		Name: "prism_compliance_rejections_total",
		Help: "Intents rejected by the compliance gate.",
	})

	// BroadcastFailovers counts broadcasts rerouted to the secondary endpoint.
	BroadcastFailovers = promauto.NewCounter(prometheus.CounterOpts{
		Name: "prism_broadcast_failovers_total",
		Help: "Broadcasts that failed over to the secondary RPC endpoint.",
	})

	// ReconciliationsTotal counts watchdog status transitions by outcome.
	ReconciliationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "prism_reconciliations_total",
		Help: "Watchdog-resolved transaction outcomes.",
	}, []string{"outcome"})
)
