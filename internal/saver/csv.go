package saver

import (
	"encoding/csv"
	"os"
	"strconv"
)

// CSVSaver writes records as CSV (header: run_id,fold,t,predicted,actual).
type CSVSaver struct{}

func (CSVSaver) Extension() string { return "csv" }

func (CSVSaver) Save(records []Record, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	w := csv.NewWriter(f)
	defer w.Flush()

	if err := w.Write([]string{"run_id", "fold", "t", "predicted", "actual"}); err != nil {
		return err
	}
	for _, r := range records {
		if err := w.Write([]string{
			r.RunID,
			strconv.FormatInt(int64(r.Fold), 10),
			strconv.FormatInt(r.Timestamp, 10),
			floatStr(r.Predicted),
			floatStr(r.Actual),
		}); err != nil {
			return err
		}
	}
	return w.Error()
}

func floatStr(f float64) string { return strconv.FormatFloat(f, 'f', -1, 64) }
