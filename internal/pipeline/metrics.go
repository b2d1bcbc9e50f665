package pipeline

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the prometheus collectors for the refresh engine.
type Metrics struct {
	RefreshTotal    *prometheus.CounterVec
	LastRefreshRows *prometheus.GaugeVec
	Staleness       *prometheus.GaugeVec
	PendingChanges  *prometheus.GaugeVec
	CycleDuration   prometheus.Histogram
}

// NewMetrics creates and registers the pipeline collectors on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		RefreshTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "slicehouse",
			Subsystem: "pipeline",
			Name:      "refresh_total",
			Help:      "Refresh attempts by table, mode and result.",
		}, []string{"table", "mode", "result"}),
		LastRefreshRows: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "slicehouse",
			Subsystem: "pipeline",
			Name:      "last_refresh_rows",
			Help:      "Rows written by the most recent refresh of each table.",
		}, []string{"table"}),
		Staleness: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "slicehouse",
			Subsystem: "pipeline",
			Name:      "staleness_seconds",
			Help:      "Seconds since the last successful refresh of each table.",
		}, []string{"table"}),
		PendingChanges: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "slicehouse",
			Subsystem: "pipeline",
			Name:      "pending_changes",
			Help:      "Unconsumed upstream change events per table.",
		}, []string{"table"}),
		CycleDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "slicehouse",
			Subsystem: "pipeline",
			Name:      "cycle_duration_seconds",
			Help:      "Duration of refresh cycles.",
			Buckets:   prometheus.DefBuckets,
		}),
	}
	reg.MustRegister(m.RefreshTotal, m.LastRefreshRows, m.Staleness, m.PendingChanges, m.CycleDuration)
	return m
}

// ObserveStatus updates the staleness and pending-changes gauges from a
// status snapshot.
func (m *Metrics) ObserveStatus(statuses []TableStatus) {
	for _, st := range statuses {
		if st.Staleness >= 0 {
			m.Staleness.WithLabelValues(st.Name).Set(st.Staleness.Seconds())
		}
		m.PendingChanges.WithLabelValues(st.Name).Set(float64(st.Pending))
	}
}
