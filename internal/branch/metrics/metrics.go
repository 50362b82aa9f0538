package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the branch directory.
type Metrics struct {
	BranchCreated prometheus.Counter
	CacheLookups  *prometheus.CounterVec
}

var (
	registerOnce sync.Once
	shared       *Metrics
)

// New returns the branch module metrics, registering them on first use.
func New() *Metrics {
	registerOnce.Do(func() {
		shared = &Metrics{
			BranchCreated: promauto.NewCounter(prometheus.CounterOpts{
				Name: "caredesk_branches_created_total",
				Help: "Total number of branches created",
			}),
			CacheLookups: promauto.NewCounterVec(prometheus.CounterOpts{
				Name: "caredesk_branch_cache_lookups_total",
				Help: "Branch directory cache lookups, by result (hit, miss)",
			}, []string{"result"}),
		}
	})
	return shared
}

func (m *Metrics) IncrementBranchCreated() {
	m.BranchCreated.Inc()
}

func (m *Metrics) IncrementCacheHit() {
	m.CacheLookups.WithLabelValues("hit").Inc()
}

func (m *Metrics) IncrementCacheMiss() {
	m.CacheLookups.WithLabelValues("miss").Inc()
}
