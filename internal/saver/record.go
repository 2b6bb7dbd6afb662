package saver

import (
	"MTFCast/internal/domain/models"
)

// Record is the flat DTO written to disk (CSV/Parquet/JSON). It carries no
// time.Time so the Parquet schema stays a plain int64 column.
type Record struct {
	RunID     string  `json:"run_id" parquet:"run_id"`
	Fold      int32   `json:"fold" parquet:"fold"`
	Timestamp int64   `json:"t" parquet:"t"`
	Predicted float64 `json:"predicted" parquet:"predicted"`
	Actual    float64 `json:"actual" parquet:"actual"`
}

// FromOutcomes flattens fold outcomes into save records. Failed folds carry
// no records, so they contribute nothing.
func FromOutcomes(runID string, outcomes []models.FoldOutcome) []Record {
	var out []Record
	for _, o := range outcomes {
		if o.Failed {
			continue
		}
		for _, r := range o.Records {
			out = append(out, Record{
				RunID:     runID,
				Fold:      int32(r.Fold),
				Timestamp: r.Timestamp.Unix(),
				Predicted: r.Predicted,
				Actual:    r.Actual,
			})
		}
	}
	return out
}
