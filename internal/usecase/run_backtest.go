package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"MTFCast/internal/backtest"
	"MTFCast/internal/domain/models"
	"MTFCast/internal/domain/repository"
	"MTFCast/internal/saver"
	"MTFCast/pkg/cache"
	"MTFCast/pkg/config"
	applogger "MTFCast/pkg/logger"
	"MTFCast/pkg/metrics"
	"MTFCast/pkg/util"
)

// RunBacktest wires the full walk-forward pipeline: fetch 1-minute bars,
// resample every configured timeframe, align them onto the prediction clock,
// plan folds, drive the model across them, and fan the results out to the
// configured sinks.
type RunBacktest struct {
	store  repository.BarStore
	model  repository.Trainable
	sink   repository.ResultSink
	met    repository.Metrics
	cache  cache.Service
	saver  saver.PredictionSaver
	pusher *metrics.Pusher
	cfg    *config.Config
	log    *applogger.Logger

	mu   sync.RWMutex
	last *models.RunReport
}

func NewRunBacktest(
	store repository.BarStore,
	model repository.Trainable,
	sink repository.ResultSink,
	met repository.Metrics,
	cacheSvc cache.Service,
	predSaver saver.PredictionSaver,
	pusher *metrics.Pusher,
	cfg *config.Config,
	log *applogger.Logger,
) *RunBacktest {
	return &RunBacktest{
		store:  store,
		model:  model,
		sink:   sink,
		met:    met,
		cache:  cacheSvc,
		saver:  predSaver,
		pusher: pusher,
		cfg:    cfg,
		log:    log,
	}
}

// LatestReport returns the report of the most recent finished run.
func (u *RunBacktest) LatestReport() (models.RunReport, bool) {
	u.mu.RLock()
	defer u.mu.RUnlock()
	if u.last == nil {
		return models.RunReport{}, false
	}
	return *u.last, true
}

// Execute runs one complete backtest and returns its report.
func (u *RunBacktest) Execute(ctx context.Context) (*models.RunReport, error) {
	bt := u.cfg.Backtest
	runID := fmt.Sprintf("%s-%s", bt.Symbol, time.Now().UTC().Format("20060102T150405"))
	startedAt := time.Now().UTC()

	u.log.Info("backtest starting",
		applogger.String("run_id", runID),
		applogger.String("symbol", bt.Symbol),
		applogger.Strings("timeframes", bt.Timeframes),
	)

	tfs, err := parseTimeframes(bt.Timeframes)
	if err != nil {
		return nil, err
	}

	from, to := util.AlignRange(bt.From, bt.To, models.SourceTimeframe.Duration())
	source, err := u.store.Query(ctx, bt.Symbol, from, to)
	if err != nil {
		u.met.RecordError("store_query")
		return nil, fmt.Errorf("query bar store: %w", err)
	}
	if len(source) == 0 {
		return nil, fmt.Errorf("%w: no source bars in [%s, %s)", backtest.ErrInsufficientRange,
			bt.From.Format(time.RFC3339), bt.To.Format(time.RFC3339))
	}
	u.met.RecordBarsQueried(bt.Symbol, len(source))

	series, err := u.resampleAll(ctx, source, tfs)
	if err != nil {
		return nil, err
	}

	// The finest configured timeframe drives the reference clock and the
	// prediction target.
	predTF := tfs[0]
	refs := backtest.ReferenceClock(series[predTF])
	vectors, err := backtest.Align(refs, series)
	if err != nil {
		u.met.RecordError("align")
		return nil, fmt.Errorf("align timeframes: %w", err)
	}

	data := buildDataset(vectors, series[predTF], predTF)
	if len(data.Vectors) == 0 {
		return nil, fmt.Errorf("%w: no datapoints after alignment", backtest.ErrInsufficientRange)
	}

	total := models.Range{
		Start: data.Vectors[0].Ref,
		End:   data.Vectors[len(data.Vectors)-1].Ref.Add(predTF.Duration()),
	}
	folds, err := backtest.PlanFolds(total, backtest.FoldConfig{
		Policy:      backtest.FoldPolicy(bt.FoldPolicy),
		TrainWindow: bt.TrainWindow,
		EvalWindow:  bt.EvalWindow,
		Step:        bt.Step,
	})
	if err != nil {
		return nil, fmt.Errorf("plan folds: %w", err)
	}
	u.log.Info("folds planned",
		applogger.String("run_id", runID),
		applogger.Int("folds", len(folds)),
		applogger.String("policy", bt.FoldPolicy),
	)

	runner := backtest.NewRunner(u.model, backtest.RunnerConfig{
		MaxParallel: bt.MaxParallelFolds,
		Incremental: bt.Incremental,
		FoldTimeout: bt.FoldTimeout,
	}, u.log, u.met)

	outcomes, err := runner.Run(ctx, data, folds)
	if err != nil {
		u.met.RecordError("run")
		return nil, fmt.Errorf("run folds: %w", err)
	}

	results := backtest.Aggregate(outcomes)
	for _, m := range results {
		if m.Scope == "aggregate" && m.Defined {
			u.met.RecordRunMetric(m.Name, m.Value)
		}
	}

	report := &models.RunReport{
		RunID:      runID,
		Symbol:     bt.Symbol,
		Timeframes: bt.Timeframes,
		StartedAt:  startedAt,
		FinishedAt: time.Now().UTC(),
		Folds:      outcomes,
		Metrics:    results,
	}

	u.mu.Lock()
	u.last = report
	u.mu.Unlock()

	u.publish(ctx, report)

	u.log.Info("backtest finished",
		applogger.String("run_id", runID),
		applogger.Int("folds", len(outcomes)),
		applogger.Duration("duration_ms", report.FinishedAt.Sub(startedAt)),
	)
	return report, nil
}

// resampleAll produces every configured timeframe concurrently. Resampled
// series are cached keyed by symbol, timeframe and range, so repeated runs
// over the same window skip the aggregation.
func (u *RunBacktest) resampleAll(ctx context.Context, source []models.Bar, tfs []models.Timeframe) (map[models.Timeframe][]models.Bar, error) {
	bt := u.cfg.Backtest
	opts := backtest.ResampleOptions{AllowPartial: bt.AllowPartialBars}

	series := make(map[models.Timeframe][]models.Bar, len(tfs))
	var mu sync.Mutex
	var firstErr error
	var wg sync.WaitGroup

	for _, tf := range tfs {
		wg.Add(1)
		go func(tf models.Timeframe) {
			defer wg.Done()

			key := fmt.Sprintf("resample:%s:%s:%d:%d", bt.Symbol, tf, bt.From.Unix(), bt.To.Unix())
			if u.cache != nil {
				var cached []models.Bar
				if err := u.cache.Get(ctx, key, &cached); err == nil {
					mu.Lock()
					series[tf] = cached
					mu.Unlock()
					return
				}
			}

			bars, err := backtest.Resample(source, tf, opts)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				if firstErr == nil {
					firstErr = fmt.Errorf("resample %s: %w", tf, err)
				}
				return
			}
			series[tf] = bars
			u.met.RecordResampledBars(tf.String(), len(bars))

			if u.cache != nil {
				if err := u.cache.Set(ctx, key, bars, u.cfg.Cache.TTL); err != nil {
					u.log.Warn("resample cache set failed", applogger.String("key", key), applogger.Error(err))
				}
			}
		}(tf)
	}
	wg.Wait()

	if firstErr != nil {
		u.met.RecordError("resample")
		return nil, firstErr
	}
	return series, nil
}

// publish fans the finished report out to disk, Kafka and the Pushgateway.
// Delivery problems are logged, never fatal: the report itself is already
// complete.
func (u *RunBacktest) publish(ctx context.Context, report *models.RunReport) {
	records := saver.FromOutcomes(report.RunID, report.Folds)

	if err := os.MkdirAll(u.cfg.Output.Dir, 0o755); err != nil {
		u.log.Error("create output dir", applogger.Error(err))
	} else {
		reportPath := filepath.Join(u.cfg.Output.Dir, report.RunID+".report.json")
		if data, err := json.MarshalIndent(report, "", "  "); err != nil {
			u.log.Error("marshal report", applogger.Error(err))
		} else if err := os.WriteFile(reportPath, data, 0o644); err != nil {
			u.log.Error("save report", applogger.String("path", reportPath), applogger.Error(err))
		}

		if u.saver != nil {
			path := filepath.Join(u.cfg.Output.Dir, fmt.Sprintf("%s.predictions.%s", report.RunID, u.saver.Extension()))
			if err := u.saver.Save(records, path); err != nil {
				u.log.Error("save predictions", applogger.String("path", path), applogger.Error(err))
			}
		}
	}

	if u.sink != nil {
		var flat []models.PredictionRecord
		for _, o := range report.Folds {
			if !o.Failed {
				flat = append(flat, o.Records...)
			}
		}
		if err := u.sink.PublishPredictions(ctx, report.RunID, flat); err != nil {
			u.log.Error("publish predictions", applogger.Error(err))
		}
		if err := u.sink.PublishMetrics(ctx, report.RunID, report.Metrics); err != nil {
			u.log.Error("publish metrics", applogger.Error(err))
		}
	}

	if u.pusher != nil {
		if err := u.pusher.Push(ctx, report.Symbol, report.RunID); err != nil {
			u.log.Error("push metrics", applogger.Error(err))
		}
	}
}

func parseTimeframes(names []string) ([]models.Timeframe, error) {
	tfs := make([]models.Timeframe, 0, len(names))
	seen := map[models.Timeframe]struct{}{}
	for _, name := range names {
		tf, err := models.ParseTimeframe(name)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", backtest.ErrInvalidTimeframe, err)
		}
		if !tf.Valid() {
			return nil, fmt.Errorf("%w: %s", backtest.ErrInvalidTimeframe, name)
		}
		if _, dup := seen[tf]; dup {
			continue
		}
		seen[tf] = struct{}{}
		tfs = append(tfs, tf)
	}
	sort.Slice(tfs, func(i, j int) bool { return tfs[i] < tfs[j] })
	return tfs, nil
}

// buildDataset pairs each aligned vector with a next-close target on the
// prediction timeframe. The vector whose reference is the close of bar i gets
// bar i+1's close as its target; the final vector has no realized target yet
// and is dropped.
func buildDataset(vectors []models.AlignedVector, predBars []models.Bar, predTF models.Timeframe) backtest.Dataset {
	closeByEnd := make(map[time.Time]int, len(predBars))
	for i, b := range predBars {
		if !b.Incomplete {
			closeByEnd[b.End()] = i
		}
	}

	var data backtest.Dataset
	for _, v := range vectors {
		i, ok := closeByEnd[v.Ref]
		if !ok || i+1 >= len(predBars) {
			continue
		}
		next := predBars[i+1]
		if next.Incomplete {
			continue
		}
		data.Vectors = append(data.Vectors, v)
		data.Targets = append(data.Targets, next.Close)
	}
	return data
}
