package backtest

import (
	"math"
	"testing"
	"time"

	"MTFCast/internal/domain/models"
)

func outcomeWith(fold int, preds, actuals []float64) models.FoldOutcome {
	start := time.Date(2023, 5, 1, 0, 0, 0, 0, time.UTC)
	o := models.FoldOutcome{Spec: models.FoldSpec{Index: fold}}
	for i := range preds {
		o.Records = append(o.Records, models.PredictionRecord{
			Fold:      fold,
			Timestamp: start.Add(time.Duration(i) * time.Minute),
			Predicted: preds[i],
			Actual:    actuals[i],
		})
	}
	return o
}

func findMetric(t *testing.T, results []models.MetricResult, scope, name string) models.MetricResult {
	t.Helper()
	for _, r := range results {
		if r.Scope == scope && r.Name == name {
			return r
		}
	}
	t.Fatalf("metric %s/%s not found", scope, name)
	return models.MetricResult{}
}

func TestAggregatePerFoldValues(t *testing.T) {
	o := outcomeWith(0, []float64{2, 4, 6}, []float64{1, 5, 5})
	results := Aggregate([]models.FoldOutcome{o})

	mae := findMetric(t, results, "fold_0", MetricMAE)
	if !mae.Defined || math.Abs(mae.Value-1) > 1e-12 {
		t.Fatalf("mae = %v (defined=%v), want 1", mae.Value, mae.Defined)
	}
	rmse := findMetric(t, results, "fold_0", MetricRMSE)
	if math.Abs(rmse.Value-1) > 1e-12 {
		t.Fatalf("rmse = %v, want 1", rmse.Value)
	}
	mape := findMetric(t, results, "fold_0", MetricMAPE)
	want := (1.0/1 + 1.0/5 + 1.0/5) / 3
	if math.Abs(mape.Value-want) > 1e-12 {
		t.Fatalf("mape = %v, want %v", mape.Value, want)
	}
	// Directional pairs: (4-1 vs 5-1)=hit, (6-5 vs 5-5)=miss.
	dir := findMetric(t, results, "fold_0", MetricDirectional)
	if math.Abs(dir.Value-0.5) > 1e-12 {
		t.Fatalf("directional = %v, want 0.5", dir.Value)
	}
}

func TestAggregateMAPEUndefinedOnZeroActuals(t *testing.T) {
	o := outcomeWith(0, []float64{1, 2}, []float64{0, 0})
	results := Aggregate([]models.FoldOutcome{o})

	mape := findMetric(t, results, "fold_0", MetricMAPE)
	if mape.Defined {
		t.Fatalf("mape must be undefined when every actual is zero")
	}
	agg := findMetric(t, results, "aggregate", MetricMAPE)
	if agg.Defined {
		t.Fatalf("aggregate mape must be undefined with no defined folds")
	}
	// Zero-actual records still count toward MAE/RMSE.
	if mae := findMetric(t, results, "fold_0", MetricMAE); !mae.Defined {
		t.Fatalf("mae should still be defined")
	}
}

func TestAggregateUnweightedMeanExcludesFailedFolds(t *testing.T) {
	good := outcomeWith(0, []float64{3, 3}, []float64{1, 1})    // mae 2
	better := outcomeWith(1, []float64{2, 2}, []float64{1, 1})  // mae 1
	failed := outcomeWith(2, []float64{99, 99}, []float64{1, 1})
	failed.Failed = true
	failed.Reason = "fit: timeout"

	results := Aggregate([]models.FoldOutcome{good, better, failed})

	agg := findMetric(t, results, "aggregate", MetricMAE)
	if math.Abs(agg.Value-1.5) > 1e-12 {
		t.Fatalf("aggregate mae = %v, want unweighted mean 1.5", agg.Value)
	}
	for _, r := range results {
		if r.Scope == "fold_2" {
			t.Fatalf("failed fold must not contribute fold-level rows")
		}
	}
}

func TestAggregateEmptyRun(t *testing.T) {
	results := Aggregate(nil)
	for _, name := range []string{MetricMAE, MetricRMSE, MetricMAPE, MetricDirectional} {
		if r := findMetric(t, results, "aggregate", name); r.Defined {
			t.Fatalf("%s should be undefined for an empty run", name)
		}
	}
}
