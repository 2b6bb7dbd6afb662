package backtest

import (
	"context"
	"fmt"
	"sync"
	"time"

	"MTFCast/internal/domain/models"
	"MTFCast/internal/domain/repository"
	applogger "MTFCast/pkg/logger"
)

// Dataset pairs aligned feature vectors with their realized target values.
// Targets[i] is the value the model is asked to forecast at Vectors[i].Ref;
// it is always drawn from data at or after that reference timestamp.
type Dataset struct {
	Vectors []models.AlignedVector
	Targets []float64
}

// Slice returns the subset whose reference timestamps fall in rg.
func (d Dataset) Slice(rg models.Range) Dataset {
	lo, hi := 0, len(d.Vectors)
	for lo < hi && d.Vectors[lo].Ref.Before(rg.Start) {
		lo++
	}
	for hi > lo && !d.Vectors[hi-1].Ref.Before(rg.End) {
		hi--
	}
	return Dataset{Vectors: d.Vectors[lo:hi], Targets: d.Targets[lo:hi]}
}

// RunnerConfig controls fold execution.
type RunnerConfig struct {
	// MaxParallel bounds concurrent folds. Ignored when Incremental is set.
	MaxParallel int
	// Incremental declares that the external unit retains state between
	// folds; folds then execute strictly sequentially in index order. This
	// is an explicit configuration choice, never inferred.
	Incremental bool
	// FoldTimeout cancels a fold's fit/predict calls. A cancelled fold is
	// treated identically to a failed one.
	FoldTimeout time.Duration
}

// Runner drives the external trainable unit across the fold sequence.
type Runner struct {
	model repository.Trainable
	cfg   RunnerConfig
	log   *applogger.Logger
	met   repository.Metrics
}

func NewRunner(model repository.Trainable, cfg RunnerConfig, log *applogger.Logger, met repository.Metrics) *Runner {
	if cfg.MaxParallel <= 0 {
		cfg.MaxParallel = 1
	}
	return &Runner{model: model, cfg: cfg, log: log, met: met}
}

// Run executes every fold and joins at a barrier before returning. A fold
// whose external call fails is recorded with its reason and excluded from
// aggregation; only broken invariants abort the run.
func (r *Runner) Run(ctx context.Context, data Dataset, folds []models.FoldSpec) ([]models.FoldOutcome, error) {
	if len(data.Vectors) != len(data.Targets) {
		return nil, fmt.Errorf("dataset: %d vectors but %d targets", len(data.Vectors), len(data.Targets))
	}
	for _, f := range folds {
		if f.Train.End.After(f.Eval.Start) {
			return nil, fmt.Errorf("%w: fold %d train ends %s after eval starts %s",
				ErrLeakageViolation, f.Index, f.Train.End.Format(time.RFC3339), f.Eval.Start.Format(time.RFC3339))
		}
	}

	outcomes := make([]models.FoldOutcome, len(folds))

	if r.cfg.Incremental {
		for i, f := range folds {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			outcomes[i] = r.runFold(ctx, data, f)
		}
		return outcomes, nil
	}

	workers := r.cfg.MaxParallel
	if workers > len(folds) {
		workers = len(folds)
	}
	idx := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range idx {
				outcomes[i] = r.runFold(ctx, data, folds[i])
			}
		}()
	}
	for i := range folds {
		idx <- i
	}
	close(idx)
	wg.Wait()

	return outcomes, ctx.Err()
}

func (r *Runner) runFold(ctx context.Context, data Dataset, spec models.FoldSpec) models.FoldOutcome {
	start := time.Now()
	out := models.FoldOutcome{Spec: spec}

	if r.cfg.FoldTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.cfg.FoldTimeout)
		defer cancel()
	}

	train := data.Slice(spec.Train)
	eval := data.Slice(spec.Eval)

	fail := func(stage string, err error) models.FoldOutcome {
		out.Failed = true
		out.Reason = fmt.Sprintf("%s: %v", stage, err)
		if r.log != nil {
			r.log.Warn("fold failed",
				applogger.Int("fold", spec.Index),
				applogger.String("stage", stage),
				applogger.Error(err),
			)
		}
		if r.met != nil {
			r.met.RecordFold("failed", time.Since(start).Seconds())
		}
		return out
	}

	if len(train.Vectors) == 0 {
		return fail("fit", fmt.Errorf("no training vectors in %s", spec.Train))
	}
	if len(eval.Vectors) == 0 {
		return fail("predict", fmt.Errorf("no evaluation vectors in %s", spec.Eval))
	}

	handle, err := r.model.Fit(ctx, train.Vectors, train.Targets)
	if err != nil {
		return fail("fit", err)
	}
	preds, err := r.model.Predict(ctx, handle, eval.Vectors)
	if err != nil {
		return fail("predict", err)
	}
	if len(preds) != len(eval.Vectors) {
		return fail("predict", fmt.Errorf("got %d predictions for %d vectors", len(preds), len(eval.Vectors)))
	}

	out.Records = make([]models.PredictionRecord, len(preds))
	for i, p := range preds {
		out.Records[i] = models.PredictionRecord{
			Fold:      spec.Index,
			Timestamp: eval.Vectors[i].Ref,
			Predicted: p,
			Actual:    eval.Targets[i],
		}
	}

	if r.log != nil {
		r.log.Debug("fold complete",
			applogger.Int("fold", spec.Index),
			applogger.Int("train_vectors", len(train.Vectors)),
			applogger.Int("eval_vectors", len(eval.Vectors)),
			applogger.Duration("duration_ms", time.Since(start)),
		)
	}
	if r.met != nil {
		r.met.RecordFold("ok", time.Since(start).Seconds())
	}
	return out
}
