package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"MTFCast/internal/domain/models"
	pkgch "MTFCast/pkg/clickhouse"
	applogger "MTFCast/pkg/logger"
)

// CHBarStore implements BarStore backed by a ClickHouse 1-minute bar table.
// Transient query failures are retried here with bounded backoff so the
// pure resampling code never sees them.
type CHBarStore struct {
	db       *sql.DB
	table    string
	attempts int
	backoff  time.Duration
	l        *applogger.Logger
}

func NewCHBarStore(ch *pkgch.Client, table string, attempts int, backoff time.Duration) *CHBarStore {
	if attempts < 1 {
		attempts = 1
	}
	if backoff <= 0 {
		backoff = 200 * time.Millisecond
	}
	return &CHBarStore{db: ch.DB(), table: table, attempts: attempts, backoff: backoff}
}

// SetLogger injects a structured logger.
func (s *CHBarStore) SetLogger(l *applogger.Logger) { s.l = l }

func (s *CHBarStore) Query(ctx context.Context, symbol string, from, to time.Time) ([]models.Bar, error) {
	start := time.Now()

	var bars []models.Bar
	var err error
	for attempt := 1; attempt <= s.attempts; attempt++ {
		bars, err = s.queryOnce(ctx, symbol, from, to)
		if err == nil {
			break
		}
		if s.l != nil {
			s.l.Warn("clickhouse query_bars retry",
				applogger.String("symbol", symbol),
				applogger.Int("attempt", attempt),
				applogger.Error(err),
			)
		}
		if attempt == s.attempts {
			return nil, fmt.Errorf("query bars after %d attempts: %w", s.attempts, err)
		}
		select {
		case <-time.After(time.Duration(attempt) * s.backoff):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	if s.l != nil {
		s.l.Info("clickhouse query_bars ok",
			applogger.String("table", s.table),
			applogger.String("symbol", symbol),
			applogger.Int("rows", len(bars)),
			applogger.Duration("duration_ms", time.Since(start)),
		)
	}
	return bars, nil
}

func (s *CHBarStore) queryOnce(ctx context.Context, symbol string, from, to time.Time) ([]models.Bar, error) {
	const qtpl = `
        SELECT start, open, high, low, close, volume
        FROM %s
        WHERE symbol = ? AND start >= ? AND start < ?
        ORDER BY start ASC
    `
	q := fmt.Sprintf(qtpl, s.table)
	rows, err := s.db.QueryContext(ctx, q, symbol, from, to)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	defer rows.Close()

	out := make([]models.Bar, 0, 1024)
	for rows.Next() {
		b := models.Bar{Symbol: symbol, Timeframe: models.SourceTimeframe}
		if err := rows.Scan(&b.Start, &b.Open, &b.High, &b.Low, &b.Close, &b.Volume); err != nil {
			return nil, fmt.Errorf("scan bar: %w", err)
		}
		b.Start = b.Start.UTC()
		// The store contract forbids duplicates; replicated MergeTree
		// tables can still surface them before merges settle.
		if n := len(out); n > 0 && !out[n-1].Start.Before(b.Start) {
			continue
		}
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	return out, nil
}

func (s *CHBarStore) Health(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *CHBarStore) Close() error {
	return nil // pool owned by pkg/clickhouse client
}

// SchemaStatements returns the idempotent DDL for the 1-minute bar table.
func SchemaStatements(database, table string) []string {
	return []string{
		fmt.Sprintf("CREATE DATABASE IF NOT EXISTS %s", database),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
            symbol String,
            start DateTime,
            open Float64,
            high Float64,
            low Float64,
            close Float64,
            volume Float64
        ) ENGINE=ReplacingMergeTree ORDER BY (symbol, start)`, table),
	}
}
