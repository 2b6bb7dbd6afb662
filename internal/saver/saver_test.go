package saver

import (
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"MTFCast/internal/domain/models"
)

func sampleRecords() []Record {
	return []Record{
		{RunID: "run-1", Fold: 0, Timestamp: 1672653600, Predicted: 1.07, Actual: 1.08},
		{RunID: "run-1", Fold: 1, Timestamp: 1672653660, Predicted: 1.08, Actual: 1.06},
	}
}

func TestFactory(t *testing.T) {
	cases := []struct {
		format string
		ext    string
		ok     bool
	}{
		{"csv", "csv", true},
		{"JSON", "json", true},
		{" parquet ", "parquet", true},
		{"xml", "", false},
	}
	for _, tc := range cases {
		s, err := NewPredictionSaver(tc.format)
		if tc.ok && (err != nil || s.Extension() != tc.ext) {
			t.Fatalf("%q: saver=%v err=%v", tc.format, s, err)
		}
		if !tc.ok && err == nil {
			t.Fatalf("%q: expected error", tc.format)
		}
	}
}

func TestCSVSaverWritesHeaderAndRows(t *testing.T) {
	path := filepath.Join(t.TempDir(), "preds.csv")
	if err := (CSVSaver{}).Save(sampleRecords(), path); err != nil {
		t.Fatalf("save: %v", err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("got %d rows, want 3", len(rows))
	}
	if rows[0][0] != "run_id" || rows[1][3] != "1.07" {
		t.Fatalf("rows = %v", rows)
	}
}

func TestJSONSaverRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "preds.json")
	if err := (JSONSaver{}).Save(sampleRecords(), path); err != nil {
		t.Fatalf("save: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var got []Record
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(got) != 2 || got[1].Actual != 1.06 {
		t.Fatalf("got %+v", got)
	}
}

func TestParquetSaverWritesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "preds.parquet")
	if err := (ParquetSaver{}).Save(sampleRecords(), path); err != nil {
		t.Fatalf("save: %v", err)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if info.Size() == 0 {
		t.Fatal("empty parquet file")
	}
}

func TestFromOutcomesSkipsFailedFolds(t *testing.T) {
	ts := time.Date(2023, 1, 2, 10, 0, 0, 0, time.UTC)
	outcomes := []models.FoldOutcome{
		{
			Spec: models.FoldSpec{Index: 0},
			Records: []models.PredictionRecord{
				{Fold: 0, Timestamp: ts, Predicted: 1, Actual: 2},
			},
		},
		{
			Spec:   models.FoldSpec{Index: 1},
			Failed: true,
			Reason: "fit: boom",
		},
	}

	recs := FromOutcomes("run-9", outcomes)
	if len(recs) != 1 {
		t.Fatalf("got %d records, want 1", len(recs))
	}
	if recs[0].RunID != "run-9" || recs[0].Timestamp != ts.Unix() {
		t.Fatalf("record = %+v", recs[0])
	}
}
