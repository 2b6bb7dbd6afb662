package backtest

import (
	"fmt"
	"time"

	"MTFCast/internal/domain/models"
)

// FoldPolicy selects how the training window advances between folds.
type FoldPolicy string

const (
	// PolicyRolling keeps a fixed-length training window that slides forward.
	PolicyRolling FoldPolicy = "rolling"
	// PolicyExpanding anchors the training window start and grows it.
	PolicyExpanding FoldPolicy = "expanding"
)

// FoldConfig parameterizes fold generation. PlanFolds is a pure function of
// this config and the data range, so a backtest run is fully reproducible.
type FoldConfig struct {
	Policy      FoldPolicy
	TrainWindow time.Duration
	EvalWindow  time.Duration
	Step        time.Duration
}

func (c FoldConfig) validate() error {
	switch c.Policy {
	case PolicyRolling, PolicyExpanding:
	default:
		return fmt.Errorf("unknown fold policy %q", c.Policy)
	}
	if c.TrainWindow <= 0 || c.EvalWindow <= 0 || c.Step <= 0 {
		return fmt.Errorf("train/eval/step windows must be positive")
	}
	return nil
}

// PlanFolds generates the ordered walk-forward fold sequence over total.
// By construction every fold's eval range starts exactly where its train
// range ends and never extends past total; a trailing fold that would
// overrun the range is dropped, not silently truncated. Returns
// ErrInsufficientRange when not even the first fold fits.
func PlanFolds(total models.Range, cfg FoldConfig) ([]models.FoldSpec, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if !total.Start.Before(total.End) {
		return nil, fmt.Errorf("%w: empty data range %s", ErrInsufficientRange, total)
	}

	var folds []models.FoldSpec
	for i := 0; ; i++ {
		var trainStart time.Time
		var trainLen time.Duration
		switch cfg.Policy {
		case PolicyRolling:
			trainStart = total.Start.Add(time.Duration(i) * cfg.Step)
			trainLen = cfg.TrainWindow
		case PolicyExpanding:
			trainStart = total.Start
			trainLen = cfg.TrainWindow + time.Duration(i)*cfg.Step
		}
		trainEnd := trainStart.Add(trainLen)
		evalEnd := trainEnd.Add(cfg.EvalWindow)
		if evalEnd.After(total.End) {
			break
		}
		folds = append(folds, models.FoldSpec{
			Index: i,
			Train: models.Range{Start: trainStart, End: trainEnd},
			Eval:  models.Range{Start: trainEnd, End: evalEnd},
		})
	}

	if len(folds) == 0 {
		return nil, fmt.Errorf("%w: %s cannot fit train %s + eval %s",
			ErrInsufficientRange, total.Duration(), cfg.TrainWindow, cfg.EvalWindow)
	}
	return folds, nil
}
