package repository

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"MTFCast/internal/domain/models"
)

func writeCSV(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestCSVBarStoreQuery(t *testing.T) {
	path := writeCSV(t, "bars.csv",
		"20230102 100000;1.0700;1.0710;1.0695;1.0705;120\n"+
			"20230102 100100;1.0705;1.0712;1.0701;1.0708;95\n"+
			"20230102 100200;1.0708;1.0720;1.0706;1.0719;210\n")

	store := NewCSVBarStore(path, "EURUSD", nil)
	from := time.Date(2023, 1, 2, 10, 0, 0, 0, time.UTC)
	bars, err := store.Query(context.Background(), "EURUSD", from, from.Add(2*time.Minute))
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(bars) != 2 {
		t.Fatalf("got %d bars, want 2", len(bars))
	}
	if !bars[0].Start.Equal(from) {
		t.Fatalf("first bar start = %v, want %v", bars[0].Start, from)
	}
	if bars[1].Close != 1.0708 {
		t.Fatalf("second bar close = %v", bars[1].Close)
	}
	if bars[0].Timeframe != models.SourceTimeframe {
		t.Fatalf("timeframe = %v, want source", bars[0].Timeframe)
	}
}

func TestCSVBarStoreSortsAndDeduplicates(t *testing.T) {
	path := writeCSV(t, "bars.csv",
		"20230102 100200;3;3;3;3;1\n"+
			"20230102 100000;1;1;1;1;1\n"+
			"20230102 100000;9;9;9;9;9\n"+
			"20230102 100100;2;2;2;2;1\n")

	store := NewCSVBarStore(path, "EURUSD", nil)
	from := time.Date(2023, 1, 2, 10, 0, 0, 0, time.UTC)
	bars, err := store.Query(context.Background(), "EURUSD", from, from.Add(time.Hour))
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(bars) != 3 {
		t.Fatalf("got %d bars, want 3", len(bars))
	}
	for i := 1; i < len(bars); i++ {
		if !bars[i-1].Start.Before(bars[i].Start) {
			t.Fatalf("bars not strictly increasing at %d", i)
		}
	}
	if bars[0].Open != 1 {
		t.Fatalf("duplicate resolution kept wrong row: open = %v", bars[0].Open)
	}
}

func TestCSVBarStoreUTF16(t *testing.T) {
	plain := "20230102 100000;1.0700;1.0710;1.0695;1.0705;120\n"
	enc := unicode.UTF16(unicode.LittleEndian, unicode.UseBOM).NewEncoder()
	encoded, _, err := transform.String(enc, plain)
	if err != nil {
		t.Fatalf("encode utf16: %v", err)
	}
	path := writeCSV(t, "bars_utf16.csv", encoded)

	store := NewCSVBarStore(path, "EURUSD", nil)
	from := time.Date(2023, 1, 2, 10, 0, 0, 0, time.UTC)
	bars, err := store.Query(context.Background(), "EURUSD", from, from.Add(time.Minute))
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(bars) != 1 {
		t.Fatalf("got %d bars, want 1", len(bars))
	}
	if bars[0].High != 1.0710 {
		t.Fatalf("high = %v", bars[0].High)
	}
}

func TestCSVBarStoreSkipsMalformedRows(t *testing.T) {
	path := writeCSV(t, "bars.csv",
		"datetime;open;high;low;close;volume\n"+
			"20230102 100000;1;1;1;1;1\n"+
			"not-a-row\n"+
			"20230102 100100;2;bad;2;2;1\n")

	store := NewCSVBarStore(path, "EURUSD", nil)
	from := time.Date(2023, 1, 2, 10, 0, 0, 0, time.UTC)
	bars, err := store.Query(context.Background(), "EURUSD", from, from.Add(time.Hour))
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(bars) != 1 {
		t.Fatalf("got %d bars, want 1", len(bars))
	}
}

func TestCSVBarStoreWrongSymbol(t *testing.T) {
	path := writeCSV(t, "bars.csv", "20230102 100000;1;1;1;1;1\n")
	store := NewCSVBarStore(path, "EURUSD", nil)
	if _, err := store.Query(context.Background(), "GBPUSD", time.Time{}, time.Now()); err == nil {
		t.Fatal("expected error for mismatched symbol")
	}
}
