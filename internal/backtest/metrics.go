package backtest

import (
	"fmt"
	"math"

	"MTFCast/internal/domain/models"
)

// Metric names emitted by Aggregate.
const (
	MetricMAE         = "mae"
	MetricRMSE        = "rmse"
	MetricMAPE        = "mape"
	MetricDirectional = "directional_accuracy"
)

var metricNames = []string{MetricMAE, MetricRMSE, MetricMAPE, MetricDirectional}

// Aggregate computes per-fold metrics plus an unweighted cross-fold mean.
// Failed folds contribute nothing to the aggregate but keep their fold-level
// rows absent, so fold-level degradation is visible next to the average.
// MAPE observations with a zero actual are excluded; if none remain the
// metric is reported undefined rather than divided by zero.
func Aggregate(outcomes []models.FoldOutcome) []models.MetricResult {
	results := make([]models.MetricResult, 0, (len(outcomes)+1)*len(metricNames))
	sums := make(map[string]float64, len(metricNames))
	counts := make(map[string]int, len(metricNames))

	for _, o := range outcomes {
		if o.Failed {
			continue
		}
		scope := fmt.Sprintf("fold_%d", o.Spec.Index)
		for _, m := range foldMetrics(o) {
			m.Scope = scope
			results = append(results, m)
			if m.Defined {
				sums[m.Name] += m.Value
				counts[m.Name]++
			}
		}
	}

	for _, name := range metricNames {
		agg := models.MetricResult{Scope: "aggregate", Name: name}
		if n := counts[name]; n > 0 {
			agg.Value = sums[name] / float64(n)
			agg.Defined = true
		}
		results = append(results, agg)
	}
	return results
}

func foldMetrics(o models.FoldOutcome) []models.MetricResult {
	var absSum, sqSum, apeSum float64
	var apeN, dirHits, dirN int

	for i, rec := range o.Records {
		err := rec.Predicted - rec.Actual
		absSum += math.Abs(err)
		sqSum += err * err
		if rec.Actual != 0 {
			apeSum += math.Abs(err / rec.Actual)
			apeN++
		}
		if i > 0 {
			prev := o.Records[i-1].Actual
			if sign(rec.Predicted-prev) == sign(rec.Actual-prev) {
				dirHits++
			}
			dirN++
		}
	}

	n := float64(len(o.Records))
	out := []models.MetricResult{
		{Name: MetricMAE},
		{Name: MetricRMSE},
		{Name: MetricMAPE},
		{Name: MetricDirectional},
	}
	if n > 0 {
		out[0] = models.MetricResult{Name: MetricMAE, Value: absSum / n, Defined: true}
		out[1] = models.MetricResult{Name: MetricRMSE, Value: math.Sqrt(sqSum / n), Defined: true}
	}
	if apeN > 0 {
		out[2] = models.MetricResult{Name: MetricMAPE, Value: apeSum / float64(apeN), Defined: true}
	}
	if dirN > 0 {
		out[3] = models.MetricResult{Name: MetricDirectional, Value: float64(dirHits) / float64(dirN), Defined: true}
	}
	return out
}

func sign(v float64) int {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	default:
		return 0
	}
}
