package backtest

import (
	"fmt"
	"time"

	"MTFCast/internal/domain/models"
)

// ResampleOptions controls partial-window behavior.
type ResampleOptions struct {
	// AllowPartial includes a trailing window that has not fully elapsed as
	// of Cutoff; the produced bar is flagged Incomplete.
	AllowPartial bool

	// Cutoff is the latest known source timestamp. Zero means "end of the
	// last input bar". It is an explicit input so resampling never depends
	// on the wall clock.
	Cutoff time.Time
}

// Resample aggregates an ordered run of 1-minute bars into target-timeframe
// bars aligned to the same epoch grid as the source. Output is sparse: a
// window with no contributing source bars is omitted, never synthesized.
//
// open is taken from the earliest bar in the window and close from the
// latest; high/low are the extremes and volume the sum. The function is a
// pure transformation: identical input always yields identical output.
func Resample(src []models.Bar, target models.Timeframe, opts ResampleOptions) ([]models.Bar, error) {
	if !target.Valid() {
		return nil, fmt.Errorf("%w: %s is not a positive multiple of %s", ErrInvalidTimeframe, target.Duration(), models.SourceTimeframe)
	}
	if len(src) == 0 {
		return nil, nil
	}

	for i, b := range src {
		if b.Timeframe != models.SourceTimeframe {
			return nil, fmt.Errorf("%w: source bar %d has timeframe %s, want %s", ErrInvalidTimeframe, i, b.Timeframe, models.SourceTimeframe)
		}
		if err := b.Validate(); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedBar, err)
		}
		if i > 0 && !src[i-1].Start.Before(b.Start) {
			return nil, fmt.Errorf("%w: bar %d start %s does not advance past %s", ErrUnsortedInput, i, b.Start.Format(time.RFC3339), src[i-1].Start.Format(time.RFC3339))
		}
	}

	cutoff := opts.Cutoff
	if cutoff.IsZero() {
		cutoff = src[len(src)-1].End()
	}

	out := make([]models.Bar, 0, len(src)/int(target/models.SourceTimeframe)+1)
	var cur models.Bar
	open := false

	flush := func() {
		if !open {
			return
		}
		// A window whose end exceeds the cutoff has not fully elapsed.
		if cur.End().After(cutoff) {
			if !opts.AllowPartial {
				open = false
				return
			}
			cur.Incomplete = true
		}
		out = append(out, cur)
		open = false
	}

	for _, b := range src {
		window := target.Truncate(b.Start)
		if open && !cur.Start.Equal(window) {
			flush()
		}
		if !open {
			cur = models.Bar{
				Symbol:    b.Symbol,
				Timeframe: target,
				Start:     window,
				Open:      b.Open,
				High:      b.High,
				Low:       b.Low,
				Close:     b.Close,
				Volume:    b.Volume,
			}
			open = true
			continue
		}
		if b.High > cur.High {
			cur.High = b.High
		}
		if b.Low < cur.Low {
			cur.Low = b.Low
		}
		cur.Close = b.Close
		cur.Volume += b.Volume
	}
	flush()

	return out, nil
}
