// Package metrics exposes the pipeline's prometheus collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	SignalsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bottrade_signals_total",
		Help: "Inbound messages by parse result.",
	}, []string{"result"}) // parsed, not_signal, invalid, duplicate, infeasible

	OrdersTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bottrade_orders_total",
		Help: "Entry orders placed by side.",
	}, []string{"side"})

	OrderFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bottrade_order_failures_total",
		Help: "Entry attempts that failed at the exchange.",
	})

	EventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bottrade_stream_events_total",
		Help: "Classified order-stream events by kind.",
	}, []string{"kind"})

	EscalationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bottrade_stop_escalations_total",
		Help: "Stop-loss escalations by level and outcome.",
	}, []string{"level", "outcome"}) // outcome: moved, skipped, failed

	OpenPositions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "bottrade_open_positions",
		Help: "Positions currently tracked by the cascade store.",
	})
)
