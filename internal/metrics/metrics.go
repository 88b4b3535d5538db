// Package metrics exposes archiver counters to Prometheus. A nil *Metrics is
// valid and records nothing.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "enqarchive"

type Metrics struct {
	RowsCopied      *prometheus.CounterVec
	RowsAlready     *prometheus.CounterVec
	RowsPurged      *prometheus.CounterVec
	Batches         *prometheus.CounterVec
	Discrepancies   *prometheus.CounterVec
	EntityRuns      *prometheus.CounterVec
	RemainingRows   *prometheus.GaugeVec
	RunDuration     *prometheus.HistogramVec
	LastSuccessTime *prometheus.GaugeVec
}

// New creates the archiver metrics and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		RowsCopied: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rows_copied_total",
			Help:      "Rows inserted into the archive store.",
		}, []string{"entity"}),
		RowsAlready: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rows_already_archived_total",
			Help:      "Rows skipped because the archive already held their key.",
		}, []string{"entity"}),
		RowsPurged: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rows_purged_total",
			Help:      "Rows deleted from the source store after archiving.",
		}, []string{"entity"}),
		Batches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "batches_total",
			Help:      "Batches processed, by phase and outcome.",
		}, []string{"entity", "phase", "outcome"}),
		Discrepancies: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "archive_discrepancies_total",
			Help:      "Already-archived rows whose content differs from the live row.",
		}, []string{"entity"}),
		EntityRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "entity_runs_total",
			Help:      "Entity archival runs, by status.",
		}, []string{"entity", "status"}),
		RemainingRows: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "source_rows_remaining",
			Help:      "Rows left in the source table after the last run.",
		}, []string{"entity"}),
		RunDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "entity_run_duration_seconds",
			Help:      "Time spent archiving one entity type.",
			Buckets:   []float64{0.1, 0.5, 1, 5, 10, 30, 60, 300, 900, 3600},
		}, []string{"entity"}),
		LastSuccessTime: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_success_timestamp_seconds",
			Help:      "Unix time of the last successful run per entity.",
		}, []string{"entity"}),
	}
	reg.MustRegister(
		m.RowsCopied, m.RowsAlready, m.RowsPurged, m.Batches, m.Discrepancies,
		m.EntityRuns, m.RemainingRows, m.RunDuration, m.LastSuccessTime,
	)
	return m
}

func (m *Metrics) Copied(entity string, copied, already int64) {
	if m == nil {
		return
	}
	m.RowsCopied.WithLabelValues(entity).Add(float64(copied))
	m.RowsAlready.WithLabelValues(entity).Add(float64(already))
	m.Batches.WithLabelValues(entity, "copy", "ok").Inc()
}

func (m *Metrics) Purged(entity string, purged int64) {
	if m == nil {
		return
	}
	m.RowsPurged.WithLabelValues(entity).Add(float64(purged))
	m.Batches.WithLabelValues(entity, "purge", "ok").Inc()
}

func (m *Metrics) BatchFailed(entity, phase string) {
	if m == nil {
		return
	}
	m.Batches.WithLabelValues(entity, phase, "error").Inc()
}

func (m *Metrics) Discrepancy(entity string) {
	if m == nil {
		return
	}
	m.Discrepancies.WithLabelValues(entity).Inc()
}

// EntityDone records the outcome of one entity type.
func (m *Metrics) EntityDone(entity string, ok bool, remaining int64, took time.Duration) {
	if m == nil {
		return
	}
	status := "succeeded"
	if !ok {
		status = "failed"
	}
	m.EntityRuns.WithLabelValues(entity, status).Inc()
	m.RemainingRows.WithLabelValues(entity).Set(float64(remaining))
	m.RunDuration.WithLabelValues(entity).Observe(took.Seconds())
	if ok {
		m.LastSuccessTime.WithLabelValues(entity).SetToCurrentTime()
	}
}
