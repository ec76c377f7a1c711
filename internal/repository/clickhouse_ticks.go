package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"FinSignal/internal/domain/models"
	domrepo "FinSignal/internal/domain/repository"
	pkgch "FinSignal/pkg/clickhouse"
	applogger "FinSignal/pkg/logger"
)

// CHTickStore archives ticks into ClickHouse.
type CHTickStore struct {
	db    *sql.DB
	table string
}

func NewCHTickStore(ch *pkgch.Client) *CHTickStore {
	return &CHTickStore{db: ch.DB(), table: ch.Database() + "." + TicksTable}
}

// StoreTicks inserts ticks with multi-row VALUES in chunks.
func (s *CHTickStore) StoreTicks(ctx context.Context, ticks []*models.Tick) error {
	const chunkSize = 2000
	for start := 0; start < len(ticks); start += chunkSize {
		end := min(start+chunkSize, len(ticks))
		q, args := tickInsert(s.table, ticks[start:end])
		if len(args) == 0 {
			continue
		}
		if _, err := s.db.ExecContext(ctx, q, args...); err != nil {
			return fmt.Errorf("store ticks: %w", err)
		}
	}
	return nil
}

func tickInsert(table string, ticks []*models.Tick) (string, []interface{}) {
	values := make([]string, 0, len(ticks))
	args := make([]interface{}, 0, len(ticks)*4)
	for _, t := range ticks {
		if t == nil || t.Symbol == "" || t.Timestamp <= 0 {
			continue
		}
		values = append(values, "(?, ?, ?, ?)")
		args = append(args, time.UnixMilli(t.Timestamp).UTC(), t.Symbol, t.Price, t.Volume)
	}
	q := fmt.Sprintf("INSERT INTO %s (ts, symbol, price, volume) VALUES %s", table, strings.Join(values, ","))
	return q, args
}

// CHCandleHistory reads finalized minute candles for warm start.
type CHCandleHistory struct {
	db    *sql.DB
	table string
	l     *applogger.Logger
}

func NewCHCandleHistory(ch *pkgch.Client, l *applogger.Logger) *CHCandleHistory {
	return &CHCandleHistory{db: ch.DB(), table: ch.Database() + "." + Candles1m, l: l}
}

const candleSelect = `
    SELECT bucket, argMinMerge(open), max(high), min(low), argMaxMerge(close)
    FROM %s
    WHERE symbol = ? %s
    GROUP BY bucket
    ORDER BY bucket %s
    %s`

// LatestCandles returns up to n newest candles in ascending order.
func (s *CHCandleHistory) LatestCandles(ctx context.Context, symbol string, n int) ([]models.Candle, error) {
	q := fmt.Sprintf(candleSelect, s.table, "", "DESC", "LIMIT ?")
	out, err := s.query(ctx, "latest_candles", q, symbol, n)
	if err != nil {
		return nil, err
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

// CandlesBetween returns candles with from <= openTime <= to, ascending.
func (s *CHCandleHistory) CandlesBetween(ctx context.Context, symbol string, from, to time.Time) ([]models.Candle, error) {
	if from.After(to) {
		return nil, fmt.Errorf("from must be <= to")
	}
	q := fmt.Sprintf(candleSelect, s.table, "AND bucket >= ? AND bucket <= ?", "ASC", "")
	return s.query(ctx, "candles_between", q, symbol, from.UTC(), to.UTC())
}

func (s *CHCandleHistory) query(ctx context.Context, op, q string, args ...interface{}) ([]models.Candle, error) {
	start := time.Now()
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		s.l.Error("clickhouse candle query error", applogger.String("op", op), applogger.Error(err))
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	out := make([]models.Candle, 0, 256)
	for rows.Next() {
		var (
			bucket time.Time
			c      models.Candle
		)
		if err := rows.Scan(&bucket, &c.Open, &c.High, &c.Low, &c.Close); err != nil {
			return nil, fmt.Errorf("%s scan: %w", op, err)
		}
		c.OpenTime = bucket.UnixMilli()
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s rows: %w", op, err)
	}
	s.l.Debug("clickhouse candle query ok",
		applogger.String("op", op),
		applogger.Int("rows", len(out)),
		applogger.Duration("duration_ms", time.Since(start)),
	)
	return out, nil
}

var (
	_ domrepo.TickStore     = (*CHTickStore)(nil)
	_ domrepo.CandleHistory = (*CHCandleHistory)(nil)
)
