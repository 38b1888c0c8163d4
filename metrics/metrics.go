// Package metrics holds the Prometheus instruments exported on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	CompilationsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "packettunnel",
		Name:      "compilations_total",
		Help:      "Topology compilations by role and outcome.",
	}, []string{"role", "outcome"})

	ViolationsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "packettunnel",
		Name:      "violations_total",
		Help:      "Topology violations reported by the validator, by kind.",
	}, []string{"kind"})

	DocumentWritesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "packettunnel",
		Name:      "document_writes_total",
		Help:      "Document files written, by outcome.",
	}, []string{"outcome"})

	EngineRunning = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "packettunnel",
		Name:      "engine_running",
		Help:      "Whether the engine process is up.",
	})

	EngineRestartsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "packettunnel",
		Name:      "engine_restarts_total",
		Help:      "Engine restarts triggered by the watchdog or the panel.",
	})
)

func init() {
	prometheus.MustRegister(
		CompilationsTotal,
		ViolationsTotal,
		DocumentWritesTotal,
		EngineRunning,
		EngineRestartsTotal,
	)
}
