package models

import "time"

// AlignedVector maps each configured timeframe to the most recent bar that
// had fully closed as of Ref. A timeframe with no closed bar yet is simply
// absent from ByTF; callers handle absence explicitly.
type AlignedVector struct {
	Ref  time.Time         `json:"ref"`
	ByTF map[Timeframe]Bar `json:"by_tf"`
}

// Bar returns the bar selected for tf, if any.
func (v AlignedVector) Bar(tf Timeframe) (Bar, bool) {
	b, ok := v.ByTF[tf]
	return b, ok
}

// Complete reports whether every timeframe in tfs has a closed bar.
func (v AlignedVector) Complete(tfs []Timeframe) bool {
	for _, tf := range tfs {
		if _, ok := v.ByTF[tf]; !ok {
			return false
		}
	}
	return true
}

// FoldSpec is one walk-forward fold. Train always precedes Eval:
// Train.End <= Eval.Start, both half-open.
type FoldSpec struct {
	Index int   `json:"index"`
	Train Range `json:"train"`
	Eval  Range `json:"eval"`
}

// PredictionRecord pairs one model prediction with the realized value.
type PredictionRecord struct {
	Fold      int       `json:"fold"`
	Timestamp time.Time `json:"timestamp"`
	Predicted float64   `json:"predicted"`
	Actual    float64   `json:"actual"`
}

// MetricResult is one computed metric, scoped to a fold or to the whole run.
// Defined is false when the metric is not computable (e.g. MAPE with only
// zero actuals); such results are reported as N/A, never as a division by zero.
type MetricResult struct {
	Scope   string  `json:"scope"` // "fold_3" or "aggregate"
	Name    string  `json:"name"`
	Value   float64 `json:"value"`
	Defined bool    `json:"defined"`
}

// FoldOutcome carries everything a single fold produced. A failed fold keeps
// its failure reason and is excluded from aggregate metrics; it never aborts
// the run.
type FoldOutcome struct {
	Spec    FoldSpec           `json:"spec"`
	Records []PredictionRecord `json:"records,omitempty"`
	Failed  bool               `json:"failed"`
	Reason  string             `json:"reason,omitempty"`
}

// RunReport is the output artifact of one backtest run.
type RunReport struct {
	RunID      string         `json:"run_id"`
	Symbol     string         `json:"symbol"`
	Timeframes []string       `json:"timeframes"`
	StartedAt  time.Time      `json:"started_at"`
	FinishedAt time.Time      `json:"finished_at"`
	Folds      []FoldOutcome  `json:"folds"`
	Metrics    []MetricResult `json:"metrics"`
}
