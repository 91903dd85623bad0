package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Check result labels.
const (
	ResultGood     = "good"
	ResultMismatch = "mismatch"
	ResultMissing  = "missing"
	ResultError    = "error"
)

// Repair outcome labels.
const (
	OutcomeRepaired = "repaired"
	OutcomeFailed   = "failed"
)

// ArchiveMetrics records archive operation metrics. A nil *ArchiveMetrics is
// valid and records nothing.
type ArchiveMetrics struct {
	ingests       prometheus.Counter
	retrievals    *prometheus.CounterVec
	checks        *prometheus.CounterVec
	repairs       *prometheus.CounterVec
	checkDuration prometheus.Histogram
	sweepDuration prometheus.Histogram
	resources     prometheus.Gauge
}

// NewArchiveMetrics creates the archive metric set, or nil when metrics are
// disabled.
func NewArchiveMetrics() *ArchiveMetrics {
	if !IsEnabled() {
		return nil
	}
	reg := GetRegistry()

	return &ArchiveMetrics{
		ingests: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "libreary_ingests_total",
			Help: "Total number of resources ingested",
		}),
		retrievals: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "libreary_retrievals_total",
				Help: "Total number of object retrievals by serving adapter",
			},
			[]string{"adapter"},
		),
		checks: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "libreary_copy_checks_total",
				Help: "Total number of copy integrity checks by result",
			},
			[]string{"adapter", "result"},
		),
		repairs: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "libreary_repairs_total",
				Help: "Total number of copy repair attempts by outcome",
			},
			[]string{"adapter", "outcome"},
		),
		checkDuration: promauto.With(reg).NewHistogram(prometheus.HistogramOpts{
			Name:    "libreary_check_duration_seconds",
			Help:    "Duration of single-copy integrity checks",
			Buckets: prometheus.DefBuckets,
		}),
		sweepDuration: promauto.With(reg).NewHistogram(prometheus.HistogramOpts{
			Name:    "libreary_sweep_duration_seconds",
			Help:    "Duration of full integrity sweeps",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
		}),
		resources: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Name: "libreary_resources",
			Help: "Number of resources currently in the catalog",
		}),
	}
}

// RecordIngest counts one successful ingest.
func (m *ArchiveMetrics) RecordIngest() {
	if m == nil {
		return
	}
	m.ingests.Inc()
}

// RecordRetrieval counts one retrieval served by the given adapter.
func (m *ArchiveMetrics) RecordRetrieval(adapterID string) {
	if m == nil {
		return
	}
	m.retrievals.WithLabelValues(adapterID).Inc()
}

// RecordCheck counts one copy check and its duration.
func (m *ArchiveMetrics) RecordCheck(adapterID, result string, duration time.Duration) {
	if m == nil {
		return
	}
	m.checks.WithLabelValues(adapterID, result).Inc()
	m.checkDuration.Observe(duration.Seconds())
}

// RecordRepair counts one repair attempt.
func (m *ArchiveMetrics) RecordRepair(adapterID, outcome string) {
	if m == nil {
		return
	}
	m.repairs.WithLabelValues(adapterID, outcome).Inc()
}

// RecordSweep records the duration of a full integrity sweep.
func (m *ArchiveMetrics) RecordSweep(duration time.Duration) {
	if m == nil {
		return
	}
	m.sweepDuration.Observe(duration.Seconds())
}

// SetResourceCount records the catalog resource count.
func (m *ArchiveMetrics) SetResourceCount(n int) {
	if m == nil {
		return
	}
	m.resources.Set(float64(n))
}
