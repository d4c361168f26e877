package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Package-level collectors for the monetary state machines. Registered once
// through promauto; exported on /metrics.
var (
	OrdersCreatedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "orders_created_total",
			Help: "Orders created, by item kind and payment rail",
		},
		[]string{"kind", "rail"},
	)

	OrdersPaidTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "orders_paid_total",
			Help: "Orders settled, by item kind and payment rail",
		},
		[]string{"kind", "rail"},
	)

	OrdersExpiredTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "orders_expired_total",
			Help: "Orders expired by the confirmation-timeout sweep",
		},
	)

	ConfirmationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payment_confirmations_total",
			Help: "Confirmation strategy outcomes, by rail and result",
		},
		[]string{"rail", "result"},
	)

	FulfillmentAttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fulfillment_attempts_total",
			Help: "Fulfillment dispatches, by result",
		},
		[]string{"result"},
	)

	FulfillmentRetriesQueued = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "fulfillment_retries_queued_total",
			Help: "Fulfillment retry tasks pushed onto the durable queue",
		},
	)

	WithdrawalsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "withdrawals_total",
			Help: "Withdrawal terminal outcomes",
		},
		[]string{"status"},
	)

	ReferralRewardsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "referral_rewards_total",
			Help: "Referral rewards credited",
		},
	)

	QueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "fulfillment_queue_depth",
			Help: "Current depth of the fulfillment retry queue",
		},
	)
)
