// Package metrics registers the Prometheus instruments for the session
// service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	ImportsTotal       prometheus.Counter
	CandidatesImported prometheus.Counter
	DecisionsApplied   *prometheus.CounterVec
	DecisionsRejected  prometheus.Counter
	TransfersApplied   prometheus.Counter
	TransfersRejected  prometheus.Counter
}

// New creates and registers all metrics on the default registry.
func New() *Metrics {
	return &Metrics{
		ImportsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "session_imports_total",
			Help: "Total number of candidate import operations",
		}),
		CandidatesImported: promauto.NewCounter(prometheus.CounterOpts{
			Name: "session_candidates_imported_total",
			Help: "Total number of candidate records loaded into the store",
		}),
		DecisionsApplied: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "session_decisions_applied_total",
			Help: "Decisions recorded, labeled by decision value",
		}, []string{"decision"}),
		DecisionsRejected: promauto.NewCounter(prometheus.CounterOpts{
			Name: "session_decisions_rejected_total",
			Help: "Favorable decisions rejected because the bucket quota was exhausted",
		}),
		TransfersApplied: promauto.NewCounter(prometheus.CounterOpts{
			Name: "session_capacity_transfers_total",
			Help: "Capacity transfers applied between buckets",
		}),
		TransfersRejected: promauto.NewCounter(prometheus.CounterOpts{
			Name: "session_capacity_transfers_rejected_total",
			Help: "Capacity transfers rejected by validation or availability",
		}),
	}
}

func (m *Metrics) RecordImport(candidates int) {
	m.ImportsTotal.Inc()
	m.CandidatesImported.Add(float64(candidates))
}

func (m *Metrics) DecisionApplied(decision string) {
	m.DecisionsApplied.WithLabelValues(decision).Inc()
}

func (m *Metrics) DecisionRejected() { m.DecisionsRejected.Inc() }
func (m *Metrics) TransferApplied()  { m.TransfersApplied.Inc() }
func (m *Metrics) TransferRejected() { m.TransfersRejected.Inc() }
