package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Reciprocal edge outcomes.
const (
	EdgeWritten = "written"
	EdgeSkipped = "skipped"
	EdgeFailed  = "failed"
)

// Metrics provides observability for the beneficiary module.
// Tracks creation by mode, conflicts, replication failures and reciprocal propagation.
type Metrics struct {
	Created             *prometheus.CounterVec
	Conflicts           *prometheus.CounterVec
	ReplicationFailures prometheus.Counter
	ReciprocalEdges     *prometheus.CounterVec
	CreateDuration      *prometheus.HistogramVec
}

var (
	registerOnce sync.Once
	shared       *Metrics
)

// New returns the beneficiary module metrics, registering them on first use.
func New() *Metrics {
	registerOnce.Do(func() {
		shared = &Metrics{
			Created: promauto.NewCounterVec(prometheus.CounterOpts{
				Name: "caredesk_beneficiaries_created_total",
				Help: "Total number of beneficiary records created, by mode (single, replicated)",
			}, []string{"mode"}),
			Conflicts: promauto.NewCounterVec(prometheus.CounterOpts{
				Name: "caredesk_beneficiary_conflicts_total",
				Help: "Total number of creates rejected because the internal number was taken, by mode",
			}, []string{"mode"}),
			ReplicationFailures: promauto.NewCounter(prometheus.CounterOpts{
				Name: "caredesk_replication_branch_failures_total",
				Help: "Total number of branch writes that failed during replication",
			}),
			ReciprocalEdges: promauto.NewCounterVec(prometheus.CounterOpts{
				Name: "caredesk_reciprocal_edges_total",
				Help: "Reciprocal relationship edges by outcome (written, skipped, failed)",
			}, []string{"outcome"}),
			CreateDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
				Name:    "caredesk_beneficiary_create_duration_seconds",
				Help:    "Duration of beneficiary create operations, by mode",
				Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
			}, []string{"mode"}),
		}
	})
	return shared
}

func (m *Metrics) IncrementCreated(mode string, n int) {
	m.Created.WithLabelValues(mode).Add(float64(n))
}

func (m *Metrics) IncrementConflict(mode string) {
	m.Conflicts.WithLabelValues(mode).Inc()
}

func (m *Metrics) IncrementReplicationFailures(n int) {
	m.ReplicationFailures.Add(float64(n))
}

func (m *Metrics) IncrementReciprocalEdge(outcome string) {
	m.ReciprocalEdges.WithLabelValues(outcome).Inc()
}

// ObserveCreate records the duration of a create operation.
// Call with time.Now() at the start of the operation.
func (m *Metrics) ObserveCreate(mode string, start time.Time) {
	m.CreateDuration.WithLabelValues(mode).Observe(time.Since(start).Seconds())
}
