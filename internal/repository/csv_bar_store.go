package repository

import (
	"bufio"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"MTFCast/internal/domain/models"
	applogger "MTFCast/pkg/logger"
)

// Datetime layouts seen in histdata.com 1-minute exports.
var histdataLayouts = []string{
	"20060102 150405",
	"2006.01.02 15:04",
	"20060102150405",
}

// CSVBarStore implements BarStore over a histdata-format 1-minute CSV file
// (semicolon or comma separated, optional UTF-16 BOM, datetime;O;H;L;C;V).
// The file is parsed once and queries are served from memory, sorted and
// deduplicated.
type CSVBarStore struct {
	path   string
	symbol string
	l      *applogger.Logger

	once sync.Once
	bars []models.Bar
	err  error
}

func NewCSVBarStore(path, symbol string, l *applogger.Logger) *CSVBarStore {
	return &CSVBarStore{path: path, symbol: symbol, l: l}
}

func (s *CSVBarStore) Query(ctx context.Context, symbol string, from, to time.Time) ([]models.Bar, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if symbol != s.symbol {
		return nil, fmt.Errorf("csv store holds %s, asked for %s", s.symbol, symbol)
	}
	s.once.Do(s.load)
	if s.err != nil {
		return nil, s.err
	}

	lo := sort.Search(len(s.bars), func(i int) bool { return !s.bars[i].Start.Before(from) })
	hi := sort.Search(len(s.bars), func(i int) bool { return !s.bars[i].Start.Before(to) })
	out := make([]models.Bar, hi-lo)
	copy(out, s.bars[lo:hi])
	return out, nil
}

func (s *CSVBarStore) Health(ctx context.Context) error {
	_, err := os.Stat(s.path)
	return err
}

func (s *CSVBarStore) Close() error { return nil }

func (s *CSVBarStore) load() {
	start := time.Now()
	f, err := os.Open(s.path)
	if err != nil {
		s.err = fmt.Errorf("open bar csv: %w", err)
		return
	}
	defer f.Close()

	br := bufio.NewReader(f)
	// histdata ships some archives as UTF-16; decode when a BOM is present.
	if b, _ := br.Peek(2); len(b) >= 2 && ((b[0] == 0xFF && b[1] == 0xFE) || (b[0] == 0xFE && b[1] == 0xFF)) {
		if _, err := f.Seek(0, io.SeekStart); err != nil {
			s.err = fmt.Errorf("seek bar csv: %w", err)
			return
		}
		tr := transform.NewReader(f, unicode.UTF16(unicode.LittleEndian, unicode.ExpectBOM).NewDecoder())
		br = bufio.NewReader(tr)
	}

	r := csv.NewReader(br)
	r.Comma = ';'
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	bars := make([]models.Bar, 0, 4096)
	skipped := 0
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			skipped++
			continue
		}
		// Tolerate comma-separated variants of the same layout.
		if len(rec) == 1 && strings.Contains(rec[0], ",") {
			rec = strings.Split(rec[0], ",")
		}
		b, ok := parseHistdataRow(rec, s.symbol)
		if !ok {
			skipped++
			continue
		}
		bars = append(bars, b)
	}

	sort.SliceStable(bars, func(i, j int) bool { return bars[i].Start.Before(bars[j].Start) })
	dedup := bars[:0]
	for _, b := range bars {
		if n := len(dedup); n > 0 && dedup[n-1].Start.Equal(b.Start) {
			continue
		}
		dedup = append(dedup, b)
	}
	s.bars = dedup

	if s.l != nil {
		s.l.Info("csv bar store loaded",
			applogger.String("path", s.path),
			applogger.String("symbol", s.symbol),
			applogger.Int("bars", len(s.bars)),
			applogger.Int("skipped_rows", skipped),
			applogger.Duration("duration_ms", time.Since(start)),
		)
	}
}

func parseHistdataRow(rec []string, symbol string) (models.Bar, bool) {
	if len(rec) < 5 {
		return models.Bar{}, false
	}
	stamp := strings.TrimSpace(strings.TrimPrefix(rec[0], "\uFEFF"))

	ts, ok := parseHistdataStamp(stamp)
	fieldStart := 1
	if !ok && len(rec) >= 6 {
		// Some exports split date and time into two columns.
		ts, ok = parseHistdataStamp(stamp + " " + strings.TrimSpace(rec[1]))
		fieldStart = 2
	}
	if !ok || len(rec) < fieldStart+4 {
		return models.Bar{}, false
	}

	num := func(i int) (float64, bool) {
		v, err := strconv.ParseFloat(strings.TrimSpace(strings.Trim(rec[i], `"`)), 64)
		return v, err == nil
	}
	o, ok1 := num(fieldStart)
	h, ok2 := num(fieldStart + 1)
	l, ok3 := num(fieldStart + 2)
	c, ok4 := num(fieldStart + 3)
	if !ok1 || !ok2 || !ok3 || !ok4 {
		return models.Bar{}, false
	}
	v := 0.0
	if len(rec) > fieldStart+4 {
		if parsed, ok := num(fieldStart + 4); ok {
			v = parsed
		}
	}

	return models.Bar{
		Symbol:    symbol,
		Timeframe: models.SourceTimeframe,
		Start:     ts,
		Open:      o,
		High:      h,
		Low:       l,
		Close:     c,
		Volume:    v,
	}, true
}

func parseHistdataStamp(s string) (time.Time, bool) {
	for _, layout := range histdataLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}
