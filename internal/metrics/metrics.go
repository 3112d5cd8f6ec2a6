package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	OrdersCreated = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "escrow_orders_created_total",
			Help: "Total number of escrow orders created.",
		},
	)
	OrdersResolved = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "escrow_orders_resolved_total",
			Help: "Total number of escrow orders resolved, by outcome.",
		},
		[]string{"outcome"},
	)
	OperationFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "escrow_operation_failures_total",
			Help: "Total number of failed escrow operations, by operation.",
		},
		[]string{"operation"},
	)
	FeeWithdrawals = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "escrow_fee_withdrawals_total",
			Help: "Total number of fee withdrawals.",
		},
	)
)

func Register(registry *prometheus.Registry) {
	registry.MustRegister(OrdersCreated, OrdersResolved, OperationFailures, FeeWithdrawals)
}

func Handler(registry *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}
