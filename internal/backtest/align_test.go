package backtest

import (
	"errors"
	"math/rand"
	"testing"
	"time"

	"MTFCast/internal/domain/models"
)

func TestAlignBackwardJoin(t *testing.T) {
	src := minuteRun(0, 60)
	m5, err := Resample(src, models.TF5m, ResampleOptions{})
	if err != nil {
		t.Fatalf("resample 5m: %v", err)
	}
	m15, err := Resample(src, models.TF15m, ResampleOptions{})
	if err != nil {
		t.Fatalf("resample 15m: %v", err)
	}

	ref := ReferenceClock(src)
	vecs, err := Align(ref, map[models.Timeframe][]models.Bar{
		models.TF5m:  m5,
		models.TF15m: m15,
	})
	if err != nil {
		t.Fatalf("align: %v", err)
	}
	if len(vecs) != len(ref) {
		t.Fatalf("got %d vectors for %d reference timestamps", len(vecs), len(ref))
	}

	// Minute 0 closes at 10:01; no 5m or 15m bar has closed yet.
	if len(vecs[0].ByTF) != 0 {
		t.Fatalf("first vector should have no closed higher-timeframe bars, got %d", len(vecs[0].ByTF))
	}

	// At 10:05 the 10:00 5m bar is exactly closed.
	at := hourStart.Add(5 * time.Minute)
	for _, v := range vecs {
		if !v.Ref.Equal(at) {
			continue
		}
		b, ok := v.Bar(models.TF5m)
		if !ok {
			t.Fatalf("5m bar should be selectable at its own close")
		}
		if !b.Start.Equal(hourStart) {
			t.Fatalf("wrong 5m bar selected: start %v", b.Start)
		}
	}

	// At 10:17 the most recent closed 15m bar is still the 10:00 one (stale
	// is fine, future is not).
	at = hourStart.Add(17 * time.Minute)
	for _, v := range vecs {
		if !v.Ref.Equal(at) {
			continue
		}
		b, ok := v.Bar(models.TF15m)
		if !ok {
			t.Fatalf("15m bar should exist at 10:17")
		}
		if !b.Start.Equal(hourStart) {
			t.Fatalf("expected the 10:00 15m bar, got start %v", b.Start)
		}
	}
}

func TestAlignAbsentAcrossGap(t *testing.T) {
	// 1m data missing for minutes 10-20. The 15m series skips the empty
	// window and the join must expose only already-closed bars around it.
	src := append(minuteRun(0, 10), minuteRun(21, 60)...)
	m15, err := Resample(src, models.TF15m, ResampleOptions{})
	if err != nil {
		t.Fatalf("resample: %v", err)
	}

	ref := ReferenceClock(src)
	vecs, err := Align(ref, map[models.Timeframe][]models.Bar{models.TF15m: m15})
	if err != nil {
		t.Fatalf("align: %v", err)
	}
	for _, v := range vecs {
		if b, ok := v.Bar(models.TF15m); ok && b.End().After(v.Ref) {
			t.Fatalf("lookahead across gap: bar end %v > ref %v", b.End(), v.Ref)
		}
	}
}

func TestAlignSkipsIncompleteBars(t *testing.T) {
	src := minuteRun(0, 50)
	m1h, err := Resample(src, models.TF1h, ResampleOptions{AllowPartial: true})
	if err != nil {
		t.Fatalf("resample: %v", err)
	}
	if len(m1h) != 1 || !m1h[0].Incomplete {
		t.Fatalf("fixture should produce one incomplete hour bar")
	}

	ref := []time.Time{hourStart.Add(2 * time.Hour)}
	vecs, err := Align(ref, map[models.Timeframe][]models.Bar{models.TF1h: m1h})
	if err != nil {
		t.Fatalf("align: %v", err)
	}
	if _, ok := vecs[0].Bar(models.TF1h); ok {
		t.Fatalf("incomplete bar must never be selected as closed data")
	}
}

func TestAlignUnsortedReference(t *testing.T) {
	ref := []time.Time{hourStart.Add(2 * time.Minute), hourStart.Add(time.Minute)}
	if _, err := Align(ref, nil); !errors.Is(err, ErrUnsortedInput) {
		t.Fatalf("expected ErrUnsortedInput, got %v", err)
	}
}

// Randomized multi-timeframe gaps must never produce a vector referencing a
// bar that closes after its reference timestamp.
func TestAlignNoLookaheadFuzz(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	tfs := []models.Timeframe{models.TF5m, models.TF15m, models.TF1h}

	for trial := 0; trial < 200; trial++ {
		var src []models.Bar
		cursor := hourStart
		for len(src) < 300 {
			if rng.Intn(10) == 0 {
				cursor = cursor.Add(time.Duration(1+rng.Intn(120)) * time.Minute) // gap
			}
			base := 1.0 + rng.Float64()
			src = append(src, minuteBar(cursor, base, base+0.01, base-0.01, base, rng.Float64()*10))
			cursor = cursor.Add(time.Minute)
		}

		series := make(map[models.Timeframe][]models.Bar, len(tfs))
		for _, tf := range tfs {
			out, err := Resample(src, tf, ResampleOptions{AllowPartial: rng.Intn(2) == 0})
			if err != nil {
				t.Fatalf("trial %d: resample %s: %v", trial, tf, err)
			}
			series[tf] = out
		}

		vecs, err := Align(ReferenceClock(src), series)
		if err != nil {
			t.Fatalf("trial %d: align: %v", trial, err)
		}
		for _, v := range vecs {
			for tf, b := range v.ByTF {
				if b.End().After(v.Ref) {
					t.Fatalf("trial %d: %s bar ending %v leaked past ref %v", trial, tf, b.End(), v.Ref)
				}
				if b.Incomplete {
					t.Fatalf("trial %d: incomplete %s bar selected", trial, tf)
				}
			}
		}
	}
}
