package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	barsQueried   *prometheus.CounterVec
	resampledBars *prometheus.CounterVec
	foldsTotal    *prometheus.CounterVec
	foldDuration  *prometheus.HistogramVec
	runMetric     *prometheus.GaugeVec
	leakagesTotal prometheus.Counter
	errorsTotal   *prometheus.CounterVec
}

// New creates a new Prometheus metrics recorder.
func New() *Recorder {
	return &Recorder{
		barsQueried: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mtfcast_bars_queried_total",
				Help: "Total 1-minute bars fetched from the bar store",
			},
			[]string{"symbol"},
		),
		resampledBars: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mtfcast_resampled_bars_total",
				Help: "Total bars produced by resampling",
			},
			[]string{"timeframe"},
		),
		foldsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mtfcast_folds_total",
				Help: "Total folds executed",
			},
			[]string{"status"},
		),
		foldDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "mtfcast_fold_duration_seconds",
				Help:    "Duration of one fold train/predict cycle",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"status"},
		),
		runMetric: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "mtfcast_run_metric",
				Help: "Aggregate backtest metric of the latest run",
			},
			[]string{"name"},
		),
		leakagesTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "mtfcast_leakage_violations_total",
				Help: "Total temporal leakage violations detected",
			},
		),
		errorsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mtfcast_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type"},
		),
	}
}

// RecordBarsQueried records bars fetched from the store for a symbol.
func (r *Recorder) RecordBarsQueried(symbol string, n int) {
	r.barsQueried.WithLabelValues(symbol).Add(float64(n))
}

// RecordResampledBars records bars produced for a target timeframe.
func (r *Recorder) RecordResampledBars(tf string, n int) {
	r.resampledBars.WithLabelValues(tf).Add(float64(n))
}

// RecordFold records one fold completion with its duration.
func (r *Recorder) RecordFold(status string, seconds float64) {
	r.foldsTotal.WithLabelValues(status).Inc()
	r.foldDuration.WithLabelValues(status).Observe(seconds)
}

// RecordRunMetric records an aggregate metric of the latest run.
func (r *Recorder) RecordRunMetric(name string, value float64) {
	r.runMetric.WithLabelValues(name).Set(value)
}

// RecordLeakageViolation records a detected leakage violation.
func (r *Recorder) RecordLeakageViolation() {
	r.leakagesTotal.Inc()
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}
