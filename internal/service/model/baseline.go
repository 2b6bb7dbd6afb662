package model

import (
	"context"
	"fmt"
	"sort"

	"MTFCast/internal/domain/models"
	"MTFCast/internal/domain/repository"
)

// Baseline is a persistence forecaster: it predicts the next close as the
// latest known close at the reference instant. Fit only records which
// timeframe to read from, so it doubles as a cheap correctness probe for the
// fold runner.
type Baseline struct{}

type baselineHandle struct {
	tf models.Timeframe
}

func NewBaseline() *Baseline {
	return &Baseline{}
}

func (b *Baseline) Fit(_ context.Context, train []models.AlignedVector, _ []float64) (repository.ModelHandle, error) {
	if len(train) == 0 {
		return nil, fmt.Errorf("baseline: empty training set")
	}
	tf, err := finestTimeframe(train)
	if err != nil {
		return nil, err
	}
	return baselineHandle{tf: tf}, nil
}

func (b *Baseline) Predict(_ context.Context, h repository.ModelHandle, eval []models.AlignedVector) ([]float64, error) {
	handle, ok := h.(baselineHandle)
	if !ok {
		return nil, fmt.Errorf("baseline: foreign model handle %T", h)
	}

	preds := make([]float64, len(eval))
	for i, v := range eval {
		bar, ok := v.Bar(handle.tf)
		if !ok {
			// No closed bar yet on the preferred timeframe; fall back to
			// whatever the vector carries.
			bar, ok = anyBar(v)
			if !ok {
				return nil, fmt.Errorf("baseline: empty vector at %s", v.Ref)
			}
		}
		preds[i] = bar.Close
	}
	return preds, nil
}

func finestTimeframe(vectors []models.AlignedVector) (models.Timeframe, error) {
	seen := map[models.Timeframe]struct{}{}
	for _, v := range vectors {
		for tf := range v.ByTF {
			seen[tf] = struct{}{}
		}
	}
	if len(seen) == 0 {
		return 0, fmt.Errorf("baseline: no timeframes in training vectors")
	}
	tfs := make([]models.Timeframe, 0, len(seen))
	for tf := range seen {
		tfs = append(tfs, tf)
	}
	sort.Slice(tfs, func(i, j int) bool { return tfs[i] < tfs[j] })
	return tfs[0], nil
}

func anyBar(v models.AlignedVector) (models.Bar, bool) {
	best := models.Bar{}
	found := false
	for _, bar := range v.ByTF {
		if !found || bar.Timeframe < best.Timeframe {
			best = bar
			found = true
		}
	}
	return best, found
}
