package models

import (
	"fmt"
	"time"
)

// Bar is one OHLCV record. Start is the inclusive period start aligned to
// the bar's timeframe grid; the covered interval is [Start, End()).
// Higher-timeframe bars are derived on demand and immutable once produced.
type Bar struct {
	Symbol    string    `json:"symbol"`
	Timeframe Timeframe `json:"timeframe"`
	Start     time.Time `json:"start"`
	Open      float64   `json:"open"`
	High      float64   `json:"high"`
	Low       float64   `json:"low"`
	Close     float64   `json:"close"`
	Volume    float64   `json:"volume"`

	// Incomplete marks a bar whose window had not fully elapsed at resample
	// time. Evaluation code must never treat such a bar as closed.
	Incomplete bool `json:"incomplete,omitempty"`
}

// End returns the exclusive period end.
func (b Bar) End() time.Time { return b.Start.Add(time.Duration(b.Timeframe)) }

// Validate checks the OHLC envelope and volume sign. A violation indicates
// corrupt upstream data and is fatal to the run, never silently corrected.
func (b Bar) Validate() error {
	if b.Timeframe <= 0 {
		return fmt.Errorf("bar %s@%s: non-positive timeframe", b.Symbol, b.Start.Format(time.RFC3339))
	}
	if !b.Start.Equal(b.Timeframe.Truncate(b.Start)) {
		return fmt.Errorf("bar %s@%s: start not aligned to %s grid", b.Symbol, b.Start.Format(time.RFC3339), b.Timeframe)
	}
	if b.High < b.Open || b.High < b.Close || b.High < b.Low {
		return fmt.Errorf("bar %s@%s: high %.8f below open/low/close", b.Symbol, b.Start.Format(time.RFC3339), b.High)
	}
	if b.Low > b.Open || b.Low > b.Close {
		return fmt.Errorf("bar %s@%s: low %.8f above open/close", b.Symbol, b.Start.Format(time.RFC3339), b.Low)
	}
	if b.Volume < 0 {
		return fmt.Errorf("bar %s@%s: negative volume %.8f", b.Symbol, b.Start.Format(time.RFC3339), b.Volume)
	}
	return nil
}

// Range is a half-open time interval [Start, End).
type Range struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

func (r Range) Duration() time.Duration { return r.End.Sub(r.Start) }

// Contains reports whether t lies within [Start, End).
func (r Range) Contains(t time.Time) bool {
	return !t.Before(r.Start) && t.Before(r.End)
}

func (r Range) String() string {
	return fmt.Sprintf("[%s, %s)", r.Start.Format(time.RFC3339), r.End.Format(time.RFC3339))
}
