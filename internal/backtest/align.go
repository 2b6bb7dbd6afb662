package backtest

import (
	"fmt"
	"time"

	"MTFCast/internal/domain/models"
)

// ReferenceClock derives the reference timestamps from the finest-timeframe
// series: each closed bar contributes its period end, the first instant at
// which that bar's values are known.
func ReferenceClock(bars []models.Bar) []time.Time {
	out := make([]time.Time, 0, len(bars))
	for _, b := range bars {
		if b.Incomplete {
			continue
		}
		out = append(out, b.End())
	}
	return out
}

// Align joins the per-timeframe series onto the reference clock with an
// as-of backward join: for each reference timestamp and timeframe it selects
// the most recent bar whose period end is at or before the timestamp. A
// timeframe with no such bar is left absent, never zero-filled or
// interpolated. Stale data is acceptable; future data is not.
//
// Each series advances with its own monotonic cursor as the reference clock
// advances, so the join is linear in total bar count.
func Align(ref []time.Time, series map[models.Timeframe][]models.Bar) ([]models.AlignedVector, error) {
	for i := 1; i < len(ref); i++ {
		if !ref[i-1].Before(ref[i]) {
			return nil, fmt.Errorf("%w: reference timestamp %d does not advance", ErrUnsortedInput, i)
		}
	}
	for tf, bars := range series {
		for i := 1; i < len(bars); i++ {
			if !bars[i-1].Start.Before(bars[i].Start) {
				return nil, fmt.Errorf("%w: %s series at index %d", ErrUnsortedInput, tf, i)
			}
		}
	}

	cursors := make(map[models.Timeframe]int, len(series))
	out := make([]models.AlignedVector, 0, len(ref))

	for _, t := range ref {
		vec := models.AlignedVector{Ref: t, ByTF: make(map[models.Timeframe]models.Bar, len(series))}
		for tf, bars := range series {
			i := cursors[tf]
			for i < len(bars) && !bars[i].End().After(t) {
				i++
			}
			cursors[tf] = i
			if i == 0 {
				continue // nothing closed yet for this timeframe
			}
			chosen := bars[i-1]
			if chosen.Incomplete {
				continue // an in-progress bar is not closed data
			}
			// The as-of join above makes this unreachable; if it ever fires
			// the run must abort rather than evaluate on leaked data.
			if chosen.End().After(t) {
				return nil, fmt.Errorf("%w: %s bar ending %s selected for ref %s",
					ErrLeakageViolation, tf, chosen.End().Format(time.RFC3339), t.Format(time.RFC3339))
			}
			vec.ByTF[tf] = chosen
		}
		out = append(out, vec)
	}

	return out, nil
}
