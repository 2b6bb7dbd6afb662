package usecase

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"MTFCast/internal/domain/models"
	"MTFCast/internal/repository"
	"MTFCast/internal/saver"
	"MTFCast/internal/service/model"
	"MTFCast/pkg/cache"
	"MTFCast/pkg/config"
	applogger "MTFCast/pkg/logger"
)

type memoryStore struct {
	bars []models.Bar
}

func (s *memoryStore) Query(_ context.Context, _ string, from, to time.Time) ([]models.Bar, error) {
	var out []models.Bar
	for _, b := range s.bars {
		if !b.Start.Before(from) && b.Start.Before(to) {
			out = append(out, b)
		}
	}
	return out, nil
}

func (s *memoryStore) Health(context.Context) error { return nil }
func (s *memoryStore) Close() error                 { return nil }

type nopMetrics struct{}

func (nopMetrics) RecordBarsQueried(string, int)   {}
func (nopMetrics) RecordResampledBars(string, int) {}
func (nopMetrics) RecordFold(string, float64)      {}
func (nopMetrics) RecordRunMetric(string, float64) {}
func (nopMetrics) RecordLeakageViolation()         {}
func (nopMetrics) RecordError(string)              {}

func minuteBars(start time.Time, n int) []models.Bar {
	bars := make([]models.Bar, n)
	for i := 0; i < n; i++ {
		price := 1.07 + float64(i%50)*0.0001
		bars[i] = models.Bar{
			Symbol:    "EURUSD",
			Timeframe: models.TF1m,
			Start:     start.Add(time.Duration(i) * time.Minute),
			Open:      price,
			High:      price + 0.0002,
			Low:       price - 0.0002,
			Close:     price + 0.0001,
			Volume:    10,
		}
	}
	return bars
}

func testConfig(t *testing.T, from, to time.Time) *config.Config {
	t.Helper()
	cfg := &config.Config{}
	cfg.Backtest.Symbol = "EURUSD"
	cfg.Backtest.Timeframes = []string{"5m", "15m"}
	cfg.Backtest.From = from
	cfg.Backtest.To = to
	cfg.Backtest.FoldPolicy = "rolling"
	cfg.Backtest.TrainWindow = 2 * time.Hour
	cfg.Backtest.EvalWindow = time.Hour
	cfg.Backtest.Step = time.Hour
	cfg.Backtest.MaxParallelFolds = 2
	cfg.Backtest.FoldTimeout = time.Minute
	cfg.Cache.TTL = time.Hour
	cfg.Output.Dir = t.TempDir()
	return cfg
}

func newTestUsecase(t *testing.T, from, to time.Time, opts ...func(*RunBacktest)) *RunBacktest {
	t.Helper()
	store := &memoryStore{bars: minuteBars(from, int(to.Sub(from)/time.Minute))}
	u := NewRunBacktest(
		store,
		model.NewBaseline(),
		repository.NopResultSink{},
		nopMetrics{},
		nil,
		saver.JSONSaver{},
		nil,
		testConfig(t, from, to),
		applogger.Nop(),
	)
	for _, opt := range opts {
		opt(u)
	}
	return u
}

func TestExecuteProducesReport(t *testing.T) {
	from := time.Date(2023, 1, 2, 0, 0, 0, 0, time.UTC)
	to := from.Add(10 * time.Hour)
	u := newTestUsecase(t, from, to)

	report, err := u.Execute(context.Background())
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if report.Symbol != "EURUSD" {
		t.Fatalf("symbol = %q", report.Symbol)
	}
	if len(report.Folds) == 0 {
		t.Fatal("no folds in report")
	}
	for _, o := range report.Folds {
		if o.Failed {
			t.Fatalf("fold %d failed: %s", o.Spec.Index, o.Reason)
		}
		for _, r := range o.Records {
			if !r.Timestamp.Before(o.Spec.Eval.End) || r.Timestamp.Before(o.Spec.Eval.Start) {
				t.Fatalf("fold %d record at %s outside eval %s", o.Spec.Index, r.Timestamp, o.Spec.Eval)
			}
		}
	}

	foundAggregate := false
	for _, m := range report.Metrics {
		if m.Scope == "aggregate" && m.Name == "mae" && m.Defined {
			foundAggregate = true
		}
	}
	if !foundAggregate {
		t.Fatal("missing aggregate mae")
	}

	latest, ok := u.LatestReport()
	if !ok || latest.RunID != report.RunID {
		t.Fatalf("latest report = %+v, ok = %v", latest, ok)
	}

	if _, err := os.Stat(filepath.Join(u.cfg.Output.Dir, report.RunID+".report.json")); err != nil {
		t.Fatalf("report artifact: %v", err)
	}
	if _, err := os.Stat(filepath.Join(u.cfg.Output.Dir, report.RunID+".predictions.json")); err != nil {
		t.Fatalf("predictions artifact: %v", err)
	}
}

func TestExecuteUsesResampleCache(t *testing.T) {
	from := time.Date(2023, 1, 2, 0, 0, 0, 0, time.UTC)
	to := from.Add(10 * time.Hour)
	mc := cache.NewMemoryCache()
	defer mc.Close()

	u := newTestUsecase(t, from, to, func(u *RunBacktest) { u.cache = mc })

	if _, err := u.Execute(context.Background()); err != nil {
		t.Fatalf("first execute: %v", err)
	}
	ok, err := mc.Exists(context.Background(), "resample:EURUSD:5m:"+unixStr(from)+":"+unixStr(to))
	if err != nil {
		t.Fatalf("exists: %v", err)
	}
	if !ok {
		t.Fatal("resampled series not cached")
	}

	// Second run must succeed entirely from cache as well.
	if _, err := u.Execute(context.Background()); err != nil {
		t.Fatalf("second execute: %v", err)
	}
}

func TestExecuteFailsOnEmptyRange(t *testing.T) {
	from := time.Date(2023, 1, 2, 0, 0, 0, 0, time.UTC)
	to := from.Add(10 * time.Hour)
	u := newTestUsecase(t, from, to)
	// Point the query window somewhere the store has no data.
	u.cfg.Backtest.From = from.AddDate(1, 0, 0)
	u.cfg.Backtest.To = to.AddDate(1, 0, 0)

	if _, err := u.Execute(context.Background()); err == nil {
		t.Fatal("expected error for empty source range")
	}
}

func TestExecuteRejectsBadTimeframe(t *testing.T) {
	from := time.Date(2023, 1, 2, 0, 0, 0, 0, time.UTC)
	to := from.Add(10 * time.Hour)
	u := newTestUsecase(t, from, to)
	u.cfg.Backtest.Timeframes = []string{"90s"}

	if _, err := u.Execute(context.Background()); err == nil {
		t.Fatal("expected error for sub-minute timeframe")
	}
}

func unixStr(t time.Time) string {
	return strconv.FormatInt(t.Unix(), 10)
}
