package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics for monitoring
var (
	TransfersSubmitted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "relay_transfers_submitted_total",
		Help: "Origin transactions accepted by the wallet, by origin chain",
	}, []string{"chain_id"})

	TransfersCreated = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "relay_transfers_created_total",
		Help: "Tracked transfers created from a CallMessageSent log",
	}, []string{"origin_chain", "destination_chain"})

	TransfersCompleted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "relay_transfers_completed_total",
		Help: "Transfers reaching a terminal or rollback status",
	}, []string{"status"})

	ReceiptTimeouts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "relay_receipt_timeouts_total",
		Help: "Receipt polls that exhausted the retry budget",
	}, []string{"chain_id"})

	DuplicateEventsDropped = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "relay_duplicate_events_dropped_total",
		Help: "Duplicate destination events discarded by sn",
	}, []string{"chain_id"})

	ActiveSubscriptions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "relay_active_subscriptions",
		Help: "Currently open (chain, event kind) subscriptions",
	})

	SolverOrders = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "relay_solver_orders_total",
		Help: "Intent orders submitted to the solver, by terminal status",
	}, []string{"status"})
)
