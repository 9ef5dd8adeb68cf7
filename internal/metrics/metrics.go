// Package metrics holds the process-wide Prometheus instruments, exposed by
// the daemon on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	Cycles = promauto.NewCounter(prometheus.CounterOpts{
		Name: "powerkeeper_cycles_total",
		Help: "Number of completed decision cycles.",
	})

	CycleDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "powerkeeper_cycle_duration_seconds",
		Help:    "Wall-clock duration of a decision cycle.",
		Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
	})

	Machines = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "powerkeeper_machines",
		Help: "Number of machines per power state.",
	}, []string{"state"})

	PowerCommands = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "powerkeeper_power_commands_total",
		Help: "Number of power commands issued to management controllers.",
	}, []string{"command"})

	JobAssignments = promauto.NewCounter(prometheus.CounterOpts{
		Name: "powerkeeper_job_assignments_total",
		Help: "Number of tentative job-to-slot assignments made while packing.",
	})

	ForcedTransitions = promauto.NewCounter(prometheus.CounterOpts{
		Name: "powerkeeper_forced_transitions_total",
		Help: "Number of operator-forced state transitions.",
	})
)
