package repository

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	primaryFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "oeemon_store_primary_failures_total",
		Help: "Primary store calls that failed and were handed to the fallback store",
	}, []string{"op"})

	fallbackServed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "oeemon_store_fallback_served_total",
		Help: "Calls answered by the fallback store after a primary failure",
	}, []string{"op"})

	terminalFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "oeemon_store_terminal_failures_total",
		Help: "Calls that failed on both the primary and the fallback store",
	}, []string{"op"})

	replicationFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "oeemon_store_replication_failures_total",
		Help: "Best-effort writes into the fallback store that failed",
	}, []string{"op"})

	breakerState = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "oeemon_store_breaker_state",
		Help: "Primary store circuit breaker state (0 closed, 1 half-open, 2 open)",
	})
)
