package models

import (
	"fmt"
	"time"
)

// Timeframe is the fixed duration a bar summarizes.
type Timeframe time.Duration

const (
	TF1m  = Timeframe(time.Minute)
	TF5m  = Timeframe(5 * time.Minute)
	TF15m = Timeframe(15 * time.Minute)
	TF30m = Timeframe(30 * time.Minute)
	TF1h  = Timeframe(time.Hour)
	TF4h  = Timeframe(4 * time.Hour)
	TF1d  = Timeframe(24 * time.Hour)
)

// SourceTimeframe is the granularity of the external bar store.
const SourceTimeframe = TF1m

var timeframeNames = map[Timeframe]string{
	TF1m:  "1m",
	TF5m:  "5m",
	TF15m: "15m",
	TF30m: "30m",
	TF1h:  "1h",
	TF4h:  "4h",
	TF1d:  "1d",
}

var timeframesByName = func() map[string]Timeframe {
	m := make(map[string]Timeframe, len(timeframeNames))
	for tf, name := range timeframeNames {
		m[name] = tf
	}
	return m
}()

// ParseTimeframe accepts the short keys ("1m", "5m", "1h", ...) or any
// Go duration literal ("90m", "2h").
func ParseTimeframe(s string) (Timeframe, error) {
	if tf, ok := timeframesByName[s]; ok {
		return tf, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("unsupported timeframe %q", s)
	}
	return Timeframe(d), nil
}

func (tf Timeframe) Duration() time.Duration { return time.Duration(tf) }

func (tf Timeframe) String() string {
	if name, ok := timeframeNames[tf]; ok {
		return name
	}
	return time.Duration(tf).String()
}

// Valid reports whether tf is a positive whole multiple of the source granularity.
func (tf Timeframe) Valid() bool {
	return tf > 0 && time.Duration(tf)%time.Duration(SourceTimeframe) == 0
}

// Truncate aligns t down to the timeframe grid. The grid is anchored at the
// Unix epoch, the same anchor the 1-minute store uses.
func (tf Timeframe) Truncate(t time.Time) time.Time {
	return t.Truncate(time.Duration(tf))
}
