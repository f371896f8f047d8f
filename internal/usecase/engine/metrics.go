package engine

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ordersSubmitted = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "baraka",
		Name:      "orders_submitted_total",
		Help:      "Number of orders accepted by the matching engine.",
	})

	tradesExecuted = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "baraka",
		Name:      "trades_executed_total",
		Help:      "Number of fills produced by the matching engine.",
	})
)
