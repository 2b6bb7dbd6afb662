package repository

import (
	"context"
	"time"

	"MTFCast/internal/domain/models"
)

// BarStore is the boundary to the external 1-minute time-series store.
// Query returns bars sorted by period start with no duplicates; absence of
// data for a sub-range is represented by omission, never by null-filled bars.
type BarStore interface {
	Query(ctx context.Context, symbol string, from, to time.Time) ([]models.Bar, error)
	Health(ctx context.Context) error
	Close() error
}

// ModelHandle is an opaque token for a fitted model. This core never
// inspects model internals.
type ModelHandle interface{}

// Trainable is the external fit/predict unit. Any architecture can be
// substituted without touching the backtest core.
type Trainable interface {
	Fit(ctx context.Context, train []models.AlignedVector, targets []float64) (ModelHandle, error)
	Predict(ctx context.Context, h ModelHandle, eval []models.AlignedVector) ([]float64, error)
}

// ResultSink publishes run output for downstream reporting.
type ResultSink interface {
	PublishPredictions(ctx context.Context, runID string, records []models.PredictionRecord) error
	PublishMetrics(ctx context.Context, runID string, results []models.MetricResult) error
	Close() error
}

// Metrics records run instrumentation.
type Metrics interface {
	RecordBarsQueried(symbol string, n int)
	RecordResampledBars(tf string, n int)
	RecordFold(status string, seconds float64)
	RecordRunMetric(name string, value float64)
	RecordLeakageViolation()
	RecordError(kind string)
}
